package plot

import (
	"context"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/xdustinface/chiapos/internal/phase1"
	"github.com/xdustinface/chiapos/internal/phase2"
	"github.com/xdustinface/chiapos/internal/phase3"
	"github.com/xdustinface/chiapos/internal/phase4"
	"github.com/xdustinface/chiapos/internal/table"
	"github.com/xdustinface/chiapos/vfs"
)

// headerMagic is the plot file's fixed 19-byte prologue (design §6).
const headerMagic = "Proof of Space Plot"

// Result is create_plot's return value: where the finished file landed,
// its total size, and the ten pointers written into its header (design
// §6: [0..6] are tables 1..7's park-stream starts, [7..9] are C1/C2/C3).
type Result struct {
	Path               string
	Size               uint64
	TableBeginPointers [10]uint64
}

// buildHeader lays out everything preceding the park streams (design §6):
// the magic string, id, k, format description, memo, and a block of ten
// zero-valued pointers patched in after phases 3 and 4 run. It returns the
// header bytes and the byte offset the pointer block starts at.
func buildHeader(cfg Config) ([]byte, uint64) {
	fmtDesc := []byte(table.KFormatDescription)

	buf := make([]byte, 0, 19+table.KIdLen+1+2+len(fmtDesc)+2+len(cfg.Memo)+80)
	buf = append(buf, []byte(headerMagic)...)
	buf = append(buf, cfg.ID[:]...)
	buf = append(buf, cfg.K)

	var lenBuf [2]byte
	binary.BigEndian.PutUint16(lenBuf[:], uint16(len(fmtDesc)))
	buf = append(buf, lenBuf[:]...)
	buf = append(buf, fmtDesc...)

	binary.BigEndian.PutUint16(lenBuf[:], uint16(len(cfg.Memo)))
	buf = append(buf, lenBuf[:]...)
	buf = append(buf, cfg.Memo...)

	pointersOffset := uint64(len(buf))
	buf = append(buf, make([]byte, 80)...)
	return buf, pointersOffset
}

// observePhase reports d's elapsed seconds to cfg.PhaseLatency, if the
// caller supplied one.
func (cfg Config) observePhase(start time.Time) {
	if cfg.PhaseLatency == nil {
		return
	}
	cfg.PhaseLatency.Observe(time.Since(start).Seconds())
}

func writePointers(out vfs.Disk, pointersOffset uint64, pointers [10]uint64) error {
	buf := make([]byte, 80)
	for i, p := range pointers {
		binary.BigEndian.PutUint64(buf[i*8:], p)
	}
	return out.Write(pointersOffset, buf)
}

// Create runs the four-phase pipeline (design §2, §6) over cfg and
// publishes the finished plot at {final_dir}/{filename}. On any error the
// under-construction file is left at {tmp2_dir}/{filename}.2.tmp for
// diagnosis and nothing is renamed into place (design §7).
func Create(ctx context.Context, cfg Config) (*Result, error) {
	cfg = cfg.EnsureDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	raiseFileDescriptorLimit(cfg.Logger)

	memorySize, err := cfg.admission()
	if err != nil {
		return nil, err
	}

	header, pointersOffset := buildHeader(cfg)
	headerSize := uint64(len(header))

	tmp2Path := cfg.FS.PathJoin(cfg.Tmp2Dir, cfg.Filename+".2.tmp")
	out := vfs.NewFileDisk(cfg.FS, tmp2Path, cfg.Logger, cfg.Policy, true)
	if err := out.Write(0, header); err != nil {
		return nil, err
	}

	cfg.Logger.Infof("plot: phase 1 starting (k=%d, num_buckets=%d)", cfg.K, cfg.NumBuckets)
	phaseStart := time.Now()
	p1, err := phase1.Run(ctx, phase1.Config{
		K:             cfg.K,
		ID:            cfg.ID,
		F1:            cfg.F1,
		Matcher:       cfg.Matcher,
		NumThreads:    cfg.NumThreads,
		StripeSize:    cfg.StripeSize,
		MemorySize:    memorySize,
		NumBuckets:    cfg.NumBuckets,
		LogNumBuckets: cfg.LogNumBuckets,
		Strategy:      cfg.Strategy,
		FS:            cfg.FS,
		Logger:        cfg.Logger,
		Policy:        cfg.Policy,
		TmpDir:        cfg.TmpDir,
		FilePrefix:    cfg.Filename,
		Progress:      cfg.Progress,
	})
	if err != nil {
		return nil, err
	}
	cfg.observePhase(phaseStart)
	cfg.Logger.Infof("plot: phase 1 done, table sizes %v", p1.TableSizes[1:])

	if cfg.Progress != nil {
		cfg.Progress(2, 0, 1)
	}
	cfg.Logger.Infof("plot: phase 2 starting (no_bitfield=%v)", cfg.NoBitfield)
	phaseStart = time.Now()
	p2, err := phase2.Run(phase2.Config{
		K:          cfg.K,
		NoBitfield: cfg.NoBitfield,
		FS:         cfg.FS,
		Logger:     cfg.Logger,
		Policy:     cfg.Policy,
		TmpDir:     cfg.TmpDir,
		FilePrefix: cfg.Filename,
	}, p1)
	if err != nil {
		return nil, err
	}
	if cfg.Progress != nil {
		cfg.Progress(2, 1, 1)
	}
	cfg.observePhase(phaseStart)
	cfg.Logger.Infof("plot: phase 2 done, surviving sizes %v", p2.TableSizes[1:])

	cfg.Logger.Infof("plot: phase 3 starting")
	phaseStart = time.Now()
	p3, err := phase3.Run(phase3.Config{
		K:             cfg.K,
		FS:            cfg.FS,
		Logger:        cfg.Logger,
		Policy:        cfg.Policy,
		TmpDir:        cfg.TmpDir,
		FilePrefix:    cfg.Filename,
		MemorySize:    memorySize,
		NumBuckets:    cfg.NumBuckets,
		LogNumBuckets: cfg.LogNumBuckets,
		StripeSize:    cfg.StripeSize,
		Strategy:      cfg.Strategy,
		Progress:      cfg.Progress,
	}, p2, out, headerSize)
	if err != nil {
		return nil, err
	}
	cfg.observePhase(phaseStart)
	cfg.Logger.Infof("plot: phase 3 done, table offsets %v", p3.TableOffsets[1:])

	table7Cursor := p3.TableOffsets[table.NumTables] + p3.TableSizes[table.NumTables]*uint64(p3.Table7EntrySize)

	if cfg.Progress != nil {
		cfg.Progress(4, 0, 1)
	}
	cfg.Logger.Infof("plot: phase 4 starting")
	phaseStart = time.Now()
	p4, err := phase4.Run(phase4.Config{K: cfg.K}, out, p3.TableOffsets[table.NumTables], p3.Table7EntrySize, p3.TableSizes[table.NumTables], table7Cursor)
	if err != nil {
		return nil, err
	}
	cfg.observePhase(phaseStart)
	if cfg.Progress != nil {
		cfg.Progress(4, 1, 1)
	}
	cfg.Logger.Infof("plot: phase 4 done, c1=%d c2/c3 derived, end_offset=%d", p4.NumC1, p4.EndOffset)

	var pointers [10]uint64
	for t := uint8(1); t <= table.NumTables; t++ {
		pointers[t-1] = p3.TableOffsets[t]
	}
	pointers[7] = p4.C1Offset
	pointers[8] = p4.C2Offset
	pointers[9] = p4.C3Offset
	if err := writePointers(out, pointersOffset, pointers); err != nil {
		return nil, err
	}

	cleanupScratch(cfg, p1)

	finalPath := cfg.FS.PathJoin(cfg.FinalDir, cfg.Filename)
	if err := cfg.Policy.Do(cfg.Logger, fmt.Sprintf("rename %s to %s", tmp2Path, finalPath), func() error {
		return cfg.FS.Rename(tmp2Path, finalPath)
	}); err != nil {
		return nil, err
	}

	totalWorkingSpace := memorySize
	for t := uint8(1); t <= table.NumTables; t++ {
		totalWorkingSpace += p1.TableSizes[t] * uint64(table.GetMaxEntrySize(cfg.K, t, false))
	}
	cfg.Logger.Infof("plot: wrote %s (%d bytes, ~%.2f GiB), working space %d bytes",
		finalPath, p4.EndOffset, float64(p4.EndOffset)/(1<<30), totalWorkingSpace)

	return &Result{Path: finalPath, Size: p4.EndOffset, TableBeginPointers: pointers}, nil
}

// cleanupScratch removes every temp file create_plot is responsible for
// once the final file has everything it needs from them (design §6: "all
// temps are deleted on success"). Phase 3's own intermediate sort managers
// close themselves as they finish draining each table; only phase 1's
// per-table sort managers and, for the rewrite variant, phase 2's
// replacement table files are this function's responsibility, since those
// are the only temp files whose concrete owner is visible here.
func cleanupScratch(cfg Config, p1 *phase1.Result) {
	for t := uint8(1); t <= table.NumTables; t++ {
		if mgr := p1.Managers[t]; mgr != nil {
			if err := mgr.Close(); err != nil {
				cfg.Logger.Infof("plot: cleanup table %d scratch: %v", t, err)
			}
		}
	}
	if !cfg.NoBitfield {
		return
	}
	for t := uint8(1); t <= table.NumTables; t++ {
		name := cfg.FS.PathJoin(cfg.TmpDir, fmt.Sprintf("%s.phase2_table%d.tmp", cfg.Filename, t))
		if err := cfg.FS.Remove(name); err != nil {
			cfg.Logger.Infof("plot: cleanup phase2 table %d scratch: %v", t, err)
		}
	}
}
