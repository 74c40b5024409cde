package sortmanager

import (
	"encoding/binary"
	"math/rand"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/xdustinface/chiapos/internal/base"
	"github.com/xdustinface/chiapos/internal/retry"
	"github.com/xdustinface/chiapos/vfs"
)

func newTestManager(t *testing.T, strategy Strategy) *Manager {
	m, err := New(Config{
		FS:            vfs.NewMem(),
		Logger:        base.NoopLogger{},
		Policy:        retry.NewTestPolicy(time.Millisecond, func(time.Duration) {}),
		TmpDir:        "",
		FilePrefix:    "t",
		MemorySize:    1 << 20,
		NumBuckets:    8,
		LogNumBuckets: 3,
		EntrySize:     8,
		BeginBits:     0,
		StripeSize:    16,
		Strategy:      strategy,
	})
	require.NoError(t, err)
	return m
}

func encodeKey(k uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, k)
	return buf
}

func runSortTest(t *testing.T, strategy Strategy, numEntries int) {
	m := newTestManager(t, strategy)
	defer m.Close()

	rng := rand.New(rand.NewSource(7))
	keys := make([]uint64, numEntries)
	for i := range keys {
		keys[i] = rng.Uint64()
		require.NoError(t, m.AddEntry(encodeKey(keys[i])))
	}
	require.NoError(t, m.FlushCache())

	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	got := make([]uint64, numEntries)
	for i := 0; i < numEntries; i++ {
		entry, err := m.ReadEntry(uint64(i) * 8)
		require.NoError(t, err)
		got[i] = binary.BigEndian.Uint64(entry)
	}
	require.Equal(t, keys, got)
}

func TestManagerUniformSort(t *testing.T) {
	runSortTest(t, Uniform, 2000)
}

func TestManagerQuicksort(t *testing.T) {
	runSortTest(t, Quicksort, 2000)
}

func TestManagerQuicksortLast(t *testing.T) {
	runSortTest(t, QuicksortLast, 2000)
}

func TestManagerEmptyBuckets(t *testing.T) {
	// Exercise buckets that receive zero entries (only a handful of keys
	// spread across 8 buckets), which TriggerNewBucket must skip without
	// erroring.
	m := newTestManager(t, Uniform)
	defer m.Close()

	keys := []uint64{0x0100000000000000, 0x0100000000000001, 0xF000000000000000}
	for _, k := range keys {
		require.NoError(t, m.AddEntry(encodeKey(k)))
	}
	require.NoError(t, m.FlushCache())

	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	for i, want := range keys {
		entry, err := m.ReadEntry(uint64(i) * 8)
		require.NoError(t, err)
		require.Equal(t, want, binary.BigEndian.Uint64(entry))
	}
}

func TestManagerAddEntryWrongSize(t *testing.T) {
	m := newTestManager(t, Uniform)
	defer m.Close()
	require.Error(t, m.AddEntry([]byte{1, 2, 3}))
}

func TestManagerAddEntryAfterFlushRejected(t *testing.T) {
	m := newTestManager(t, Uniform)
	defer m.Close()
	require.NoError(t, m.AddEntry(encodeKey(1)))
	require.NoError(t, m.FlushCache())
	require.Error(t, m.AddEntry(encodeKey(2)))
}
