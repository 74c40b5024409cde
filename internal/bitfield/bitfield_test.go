package bitfield

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSetGetCount(t *testing.T) {
	const n = 10007
	rng := rand.New(rand.NewSource(42))
	want := make([]bool, n)
	b := New(n)
	for i := 0; i < n; i++ {
		if rng.Intn(3) == 0 {
			want[i] = true
			b.Set(uint64(i))
		}
	}
	for i := 0; i < n; i++ {
		require.Equal(t, want[i], b.Get(uint64(i)), "bit %d", i)
	}

	var running uint64
	for i := 0; i <= n; i++ {
		require.Equal(t, running, b.Count(0, uint64(i)), "prefix count at %d", i)
		if i < n && want[i] {
			running++
		}
	}
}

func TestCountRange(t *testing.T) {
	b := New(128)
	for _, i := range []uint64{0, 1, 63, 64, 65, 100, 127} {
		b.Set(i)
	}
	require.EqualValues(t, 7, b.Count(0, 128))
	require.EqualValues(t, 3, b.Count(0, 64))
	require.EqualValues(t, 4, b.Count(64, 128))
	require.EqualValues(t, 1, b.Count(64, 65))
	require.EqualValues(t, 0, b.Count(2, 63))
}

func TestRankAfterClear(t *testing.T) {
	b := New(8)
	b.Set(1)
	b.Set(3)
	b.Set(6)
	require.EqualValues(t, 0, b.Rank(0))
	require.EqualValues(t, 0, b.Rank(1))
	require.EqualValues(t, 1, b.Rank(2))
	require.EqualValues(t, 1, b.Rank(3))
	require.EqualValues(t, 2, b.Rank(4))
	require.EqualValues(t, 2, b.Rank(6))
	require.EqualValues(t, 3, b.Rank(7))
	require.EqualValues(t, 3, b.CountAll())

	b.Clear(3)
	require.EqualValues(t, 2, b.CountAll())
	require.EqualValues(t, 1, b.Rank(6))
}
