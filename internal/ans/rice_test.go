package ans

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xdustinface/chiapos/internal/bitpack"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	for _, r := range []float64{3.5, 5.6, 1.0, 0.5} {
		rng := rand.New(rand.NewSource(int64(r * 1000)))
		deltas := make([]uint64, 500)
		for i := range deltas {
			// Geometric-ish distribution around r, matching the code's
			// design assumption.
			v := 0.0
			for rng.Float64() < r/(r+1) {
				v++
			}
			deltas[i] = uint64(v)
		}

		w := bitpack.NewWriter()
		EncodeDeltas(w, deltas, r)
		buf := w.PaddedBytes()

		got := DecodeDeltas(buf, 0, len(deltas), r)
		require.Equal(t, deltas, got, "r=%v", r)
	}
}

func TestEncodedBitsMatchesActualWrite(t *testing.T) {
	rng := rand.New(rand.NewSource(99))
	deltas := make([]uint64, 200)
	for i := range deltas {
		deltas[i] = rng.Uint64() % 20
	}
	w := bitpack.NewWriter()
	EncodeDeltas(w, deltas, 3.5)
	require.EqualValues(t, EncodedBits(deltas, 3.5), w.BitLen())
}
