// Package phase1 implements forward propagation (design §4.4): it streams
// f1 across [0, 2^k) into table 1, then for each table 2..7 matches
// adjacent entries of the previous table under the Fx oracle's predicate
// and emits (f, pos, offset, metadata) records into the next table's sort
// manager. Every table's sort manager is handed back to the caller still
// open in its Emit state, ready for phase 2 to consume.
package phase1

import (
	"context"
	"fmt"

	chiaerrors "github.com/xdustinface/chiapos/errors"
	"github.com/xdustinface/chiapos/internal/base"
	"github.com/xdustinface/chiapos/internal/bitpack"
	"github.com/xdustinface/chiapos/internal/oracle"
	"github.com/xdustinface/chiapos/internal/retry"
	"github.com/xdustinface/chiapos/internal/sortmanager"
	"github.com/xdustinface/chiapos/internal/table"
	"github.com/xdustinface/chiapos/vfs"
)

// Config bundles phase 1's construction parameters.
type Config struct {
	K       uint8
	ID      [32]byte
	F1      oracle.F1Generator
	Matcher oracle.Matcher

	NumThreads int
	StripeSize uint64
	MemorySize uint64

	NumBuckets    uint32
	LogNumBuckets uint32
	Strategy      sortmanager.Strategy

	FS         vfs.FS
	Logger     base.Logger
	Policy     *retry.Policy
	TmpDir     string
	FilePrefix string

	// Progress is invoked synchronously from the calling/worker goroutine
	// after each stripe of table 1, and after each stripe-sized slice of
	// every later table's match scan.
	Progress func(phase, n, maxN int)
}

func (cfg Config) validate() error {
	if cfg.K == 0 || cfg.K > table.KMaxPlotSize {
		return chiaerrors.InvalidValuef("phase1: k=%d outside (0, %d]", cfg.K, table.KMaxPlotSize)
	}
	if cfg.NumThreads < 1 {
		return chiaerrors.InvalidValuef("phase1: num_threads must be >= 1")
	}
	if cfg.StripeSize == 0 {
		return chiaerrors.InvalidValuef("phase1: stripe_size must be > 0")
	}
	if cfg.F1 == nil || cfg.Matcher == nil {
		return chiaerrors.InvalidValuef("phase1: F1 and Matcher are required")
	}
	if cfg.NumBuckets == 0 || cfg.NumBuckets != 1<<cfg.LogNumBuckets {
		return chiaerrors.InvalidValuef("phase1: num_buckets %d is not 2^%d", cfg.NumBuckets, cfg.LogNumBuckets)
	}
	return nil
}

// Result holds, for every table 1..7, the sort manager holding its
// entries (still open, in the Emit state) and the number of entries it
// holds.
type Result struct {
	Managers   [table.NumTables + 1]*sortmanager.Manager
	TableSizes [table.NumTables + 1]uint64
}

// Run executes forward propagation for tables 1..7.
func Run(ctx context.Context, cfg Config) (*Result, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	maxEntryBits := table.Table1EntryBits(cfg.K)
	for t := uint8(2); t <= table.NumTables; t++ {
		if b := table.ForwardEntryBits(cfg.K, t); b > maxEntryBits {
			maxEntryBits = b
		}
	}
	maxEntrySize := uint32(bitpack.ByteLen(int(maxEntryBits)))
	reservation := ThreadMemoryReservation(cfg.NumThreads, cfg.StripeSize, maxEntrySize)
	if reservation >= cfg.MemorySize {
		return nil, chiaerrors.InsufficientMemoryf(
			"phase1: worker stripe buffers need %d bytes, only %d available", reservation, cfg.MemorySize)
	}
	sortMemory := cfg.MemorySize - reservation

	result := &Result{}

	table1Size := uint32(bitpack.ByteLen(int(table.Table1EntryBits(cfg.K))))
	mgr1, err := newManager(cfg, sortMemory, 1, table1Size)
	if err != nil {
		return nil, err
	}
	if err := runTable1(ctx, cfg, mgr1); err != nil {
		return nil, err
	}
	if err := mgr1.FlushCache(); err != nil {
		return nil, err
	}
	result.Managers[1] = mgr1
	result.TableSizes[1] = uint64(1) << cfg.K
	if cfg.Progress != nil {
		cfg.Progress(1, 1, table.NumTables)
	}

	prev := newPrevReader(mgr1, table1Size, cfg.K, true, 0, result.TableSizes[1])
	for t := uint8(2); t <= table.NumTables; t++ {
		entrySize := uint32(bitpack.ByteLen(int(table.ForwardEntryBits(cfg.K, t))))
		mgr, err := newManager(cfg, sortMemory, t, entrySize)
		if err != nil {
			return nil, err
		}
		count, err := matchTable(ctx, cfg, prev, t, mgr)
		if err != nil {
			return nil, err
		}
		if err := mgr.FlushCache(); err != nil {
			return nil, err
		}

		result.Managers[t] = mgr
		result.TableSizes[t] = count
		if cfg.Progress != nil {
			cfg.Progress(1, int(t), table.NumTables)
		}

		prev = newPrevReader(mgr, entrySize, cfg.K, false, t, count)
	}

	return result, nil
}

func newManager(cfg Config, memorySize uint64, t uint8, entrySize uint32) (*sortmanager.Manager, error) {
	return sortmanager.New(sortmanager.Config{
		FS:            cfg.FS,
		Logger:        cfg.Logger,
		Policy:        cfg.Policy,
		TmpDir:        cfg.TmpDir,
		FilePrefix:    fmt.Sprintf("%s.table%d", cfg.FilePrefix, t),
		MemorySize:    memorySize,
		NumBuckets:    cfg.NumBuckets,
		LogNumBuckets: cfg.LogNumBuckets,
		EntrySize:     entrySize,
		BeginBits:     0,
		StripeSize:    cfg.StripeSize,
		Strategy:      cfg.Strategy,
	})
}
