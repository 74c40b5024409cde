package table

import (
	"math/big"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

// ascendingLinePoints returns n strictly ascending fake line points, each
// fitting comfortably in 2*k bits, suitable for WritePark/ReadPark.
func ascendingLinePoints(rng *rand.Rand, k uint8, n int) []*big.Int {
	out := make([]*big.Int, n)
	cur := big.NewInt(0)
	for i := 0; i < n; i++ {
		step := rng.Intn(8) + 1 // keeps deltas small, near KMaxAverageDelta
		cur = new(big.Int).Add(cur, big.NewInt(int64(step)))
		out[i] = new(big.Int).Set(cur)
	}
	return out
}

func TestParkRoundTripFull(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for _, k := range []uint8{20, 25, 32} {
		for _, tbl := range []uint8{1, 2, 6} {
			lps := ascendingLinePoints(rng, k, KEntriesPerPark)
			buf, err := WritePark(k, tbl, lps)
			require.NoError(t, err)
			require.EqualValues(t, CalculateParkSize(k, tbl), len(buf))

			got, err := ReadPark(buf, k, tbl, len(lps))
			require.NoError(t, err)
			require.Len(t, got, len(lps))
			for i := range lps {
				require.Zerof(t, lps[i].Cmp(got[i]), "entry %d: want %s got %s", i, lps[i], got[i])
			}
		}
	}
}

func TestParkRoundTripLastParkRemainder(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	k := uint8(24)
	for _, n := range []int{1, 2, 17, KEntriesPerPark - 1} {
		lps := ascendingLinePoints(rng, k, n)
		buf, err := WritePark(k, 3, lps)
		require.NoError(t, err)

		got, err := ReadPark(buf, k, 3, n)
		require.NoError(t, err)
		require.Len(t, got, n)
		for i := range lps {
			require.Zerof(t, lps[i].Cmp(got[i]), "entry %d", i)
		}
	}
}

func TestParkWriteRejectsEmpty(t *testing.T) {
	_, err := WritePark(20, 1, nil)
	require.Error(t, err)
}

func TestParkWriteRejectsTooManyEntries(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	lps := ascendingLinePoints(rng, 20, KEntriesPerPark+1)
	_, err := WritePark(20, 1, lps)
	require.Error(t, err)
}

func TestParkWriteRejectsNonAscending(t *testing.T) {
	lps := []*big.Int{big.NewInt(10), big.NewInt(5)}
	_, err := WritePark(20, 1, lps)
	require.Error(t, err)
}
