package sortmanager

import (
	"encoding/binary"
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUniformSortIntoOrdersByKey(t *testing.T) {
	const entryLen = 8
	const numEntries = 500
	rng := rand.New(rand.NewSource(1))

	src := make([]byte, numEntries*entryLen)
	keys := make([]uint64, numEntries)
	for i := range keys {
		keys[i] = rng.Uint64() >> 4 // keep some headroom below the full 64 bits
		binary.BigEndian.PutUint64(src[i*entryLen:(i+1)*entryLen], keys[i])
	}

	dst := make([]byte, uniformSlotCount(numEntries)*entryLen)
	uniformSortInto(dst, src, numEntries, entryLen, 0, 64)
	got := compactSorted(dst, uniformSlotCount(numEntries), entryLen)
	require.Len(t, got, numEntries*entryLen)

	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	for i, want := range keys {
		gotKey := binary.BigEndian.Uint64(got[i*entryLen : (i+1)*entryLen])
		require.Equal(t, want, gotKey, "index %d", i)
	}
}

func TestIsPositionEmpty(t *testing.T) {
	buf := make([]byte, 16)
	require.True(t, isPositionEmpty(buf, 0, 8))
	buf[3] = 1
	require.False(t, isPositionEmpty(buf, 0, 8))
	require.True(t, isPositionEmpty(buf, 8, 8))
}
