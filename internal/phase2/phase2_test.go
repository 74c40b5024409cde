package phase2

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/xdustinface/chiapos/internal/base"
	"github.com/xdustinface/chiapos/internal/bitpack"
	"github.com/xdustinface/chiapos/internal/oracle"
	"github.com/xdustinface/chiapos/internal/phase1"
	"github.com/xdustinface/chiapos/internal/retry"
	"github.com/xdustinface/chiapos/internal/sortmanager"
	"github.com/xdustinface/chiapos/internal/table"
	"github.com/xdustinface/chiapos/vfs"
)

func runPhase1(t *testing.T, k uint8) *phase1.Result {
	t.Helper()
	var id [32]byte
	for i := range id {
		id[i] = byte(i)
	}
	cfg := phase1.Config{
		K:             k,
		ID:            id,
		F1:            oracle.NewDefaultF1(id, k, table.KExtraBits),
		Matcher:       oracle.DefaultMatcher{},
		NumThreads:    2,
		StripeSize:    16,
		MemorySize:    64 << 20,
		NumBuckets:    8,
		LogNumBuckets: 3,
		Strategy:      sortmanager.Uniform,
		FS:            vfs.NewMem(),
		Logger:        base.NoopLogger{},
		Policy:        retry.NewTestPolicy(time.Millisecond, func(time.Duration) {}),
		FilePrefix:    "plot",
	}
	result, err := phase1.Run(context.Background(), cfg)
	require.NoError(t, err)
	return result
}

func testPhase2Config(k uint8, noBitfield bool) Config {
	return Config{
		K:          k,
		NoBitfield: noBitfield,
		FS:         vfs.NewMem(),
		Logger:     base.NoopLogger{},
		Policy:     retry.NewTestPolicy(time.Millisecond, func(time.Duration) {}),
		FilePrefix: "plot",
	}
}

// TestBitfieldPropagation checks design §8's testable property 3: for every
// (f, pos, offset) surviving in table t, both entries it references in
// table t-1 are marked live.
func TestBitfieldPropagation(t *testing.T) {
	k := uint8(8)
	p1 := runPhase1(t, k)
	result, err := Run(testPhase2Config(k, false), p1)
	require.NoError(t, err)

	for tbl := uint8(table.NumTables); tbl >= 2; tbl-- {
		size := p1.TableSizes[tbl]
		entrySize := table.ForwardEntrySize(k, tbl)
		liveAbove := result.Filters[tbl] // nil for NumTables: nothing prunes it.
		below := result.Filters[tbl-1]
		require.NotNil(t, below)

		for i := uint64(0); i < size; i++ {
			if liveAbove != nil && !liveAbove.Get(i) {
				continue
			}
			raw, err := p1.Managers[tbl].Read(i*uint64(entrySize), uint64(entrySize))
			require.NoError(t, err)
			e := table.UnpackForwardEntry(bitpack.Pad(raw), 0, k, tbl)
			require.Truef(t, below.Get(e.Pos), "table %d entry %d: pos %d not live in table %d", tbl, i, e.Pos, tbl-1)
			require.Truef(t, below.Get(e.Pos+e.Offset), "table %d entry %d: target %d not live in table %d", tbl, i, e.Pos+e.Offset, tbl-1)
		}
	}
}

// TestRewriteReadable checks the rewrite variant produces tables phase 3
// can read end to end: every table's first and last entry decodes cleanly,
// and every back-reference lands within the replacement table beneath it.
func TestRewriteReadable(t *testing.T) {
	k := uint8(8)
	p1 := runPhase1(t, k)
	result, err := Run(testPhase2Config(k, true), p1)
	require.NoError(t, err)

	for tbl := uint8(1); tbl <= table.NumTables; tbl++ {
		require.NotNilf(t, result.Disks[tbl], "table %d disk", tbl)
	}

	for tbl := uint8(2); tbl <= table.NumTables; tbl++ {
		size := result.TableSizes[tbl]
		entrySize := table.ForwardEntrySize(k, tbl)
		belowSize := result.TableSizes[tbl-1]
		for i := uint64(0); i < size; i++ {
			raw, err := result.Disks[tbl].Read(i*uint64(entrySize), uint64(entrySize))
			require.NoError(t, err)
			e := table.UnpackForwardEntry(bitpack.Pad(raw), 0, k, tbl)
			require.Lessf(t, e.Pos, belowSize, "table %d entry %d: pos %d out of range (size %d)", tbl, i, e.Pos, belowSize)
			require.Lessf(t, e.Pos+e.Offset, belowSize, "table %d entry %d: target %d out of range (size %d)", tbl, i, e.Pos+e.Offset, belowSize)
		}
	}
}

// TestBitfieldAndRewriteAgreeOnSurvivorCounts checks the two variants prune
// the same number of entries out of table 1, since both walk the same
// reachability relation from table 7 down.
func TestBitfieldAndRewriteAgreeOnSurvivorCounts(t *testing.T) {
	k := uint8(8)
	p1 := runPhase1(t, k)

	bf, err := Run(testPhase2Config(k, false), p1)
	require.NoError(t, err)

	p1b := runPhase1(t, k)
	rw, err := Run(testPhase2Config(k, true), p1b)
	require.NoError(t, err)

	require.Equal(t, bf.Filters[1].CountAll(), rw.TableSizes[1])
}

func TestRunRejectsBadK(t *testing.T) {
	p1 := runPhase1(t, 8)
	cfg := testPhase2Config(8, false)
	cfg.K = 255
	_, err := Run(cfg, p1)
	require.Error(t, err)
}
