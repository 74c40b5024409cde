package phase1

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/xdustinface/chiapos/internal/base"
	"github.com/xdustinface/chiapos/internal/oracle"
	"github.com/xdustinface/chiapos/internal/retry"
	"github.com/xdustinface/chiapos/internal/sortmanager"
	"github.com/xdustinface/chiapos/internal/table"
	"github.com/xdustinface/chiapos/vfs"
)

func testConfig(k uint8) Config {
	var id [32]byte
	for i := range id {
		id[i] = byte(i)
	}
	return Config{
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
		TmpDir:        "",
		FilePrefix:    "plot",
	}
}

func TestRunProducesAllTables(t *testing.T) {
	cfg := testConfig(8) // 2^8 = 256 table-1 entries, small enough to scan fully.
	result, err := Run(context.Background(), cfg)
	require.NoError(t, err)
	defer func() {
		for _, mgr := range result.Managers {
			if mgr != nil {
				_ = mgr.Close()
			}
		}
	}()

	require.EqualValues(t, 1<<cfg.K, result.TableSizes[1])
	for tbl := uint8(2); tbl <= table.NumTables; tbl++ {
		require.NotNilf(t, result.Managers[tbl], "table %d manager", tbl)
		// The placeholder matcher is deterministic but not guaranteed to
		// produce a match for every input; only assert internal
		// consistency (the manager holds exactly as many readable entries
		// as TableSizes records).
		size := result.TableSizes[tbl]
		if size == 0 {
			continue
		}
		entrySize := entrySizeOf(cfg.K, tbl)
		_, err := result.Managers[tbl].ReadEntry(0)
		require.NoError(t, err)
		_, err = result.Managers[tbl].ReadEntry((size - 1) * entrySize)
		require.NoError(t, err)
	}
}

func entrySizeOf(k uint8, t uint8) uint64 {
	return uint64((table.ForwardEntryBits(k, t) + 7) / 8)
}

func TestRunRejectsBadK(t *testing.T) {
	cfg := testConfig(8)
	cfg.K = 200
	_, err := Run(context.Background(), cfg)
	require.Error(t, err)
}

func TestRunRejectsInsufficientMemory(t *testing.T) {
	cfg := testConfig(8)
	cfg.MemorySize = 10 // far below the worker stripe buffer reservation.
	_, err := Run(context.Background(), cfg)
	require.Error(t, err)
}

func TestThreadMemoryReservationScalesWithThreadsAndStripe(t *testing.T) {
	a := ThreadMemoryReservation(2, 1000, 16)
	b := ThreadMemoryReservation(4, 1000, 16)
	require.Greater(t, b, a)
	c := ThreadMemoryReservation(2, 2000, 16)
	require.Greater(t, c, a)
}
