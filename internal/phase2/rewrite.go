package phase2

import (
	"fmt"

	"github.com/xdustinface/chiapos/internal/bitfield"
	"github.com/xdustinface/chiapos/internal/bitpack"
	"github.com/xdustinface/chiapos/internal/phase1"
	"github.com/xdustinface/chiapos/internal/table"
	"github.com/xdustinface/chiapos/vfs"
)

// newScratchDisk opens a fresh buffered, sequentially-written temp file
// for a table the rewrite variant is about to replace.
func newScratchDisk(cfg Config, suffix string) *vfs.Buffered {
	fs := cfg.FS
	if fs == nil {
		fs = vfs.Default
	}
	name := fs.PathJoin(cfg.TmpDir, fmt.Sprintf("%s.phase2_%s.tmp", cfg.FilePrefix, suffix))
	raw := vfs.NewFileDisk(fs, name, cfg.Logger, cfg.Policy, true)
	const writeCache = 4 << 20
	return vfs.NewBuffered(raw, 0, writeCache, writeCache, cfg.Logger)
}

// runRewrite implements design §4.5's legacy variant: it physically drops
// every dead entry and renumbers survivors to a dense id sequence, so
// every table handed to phase 3 needs no further filtering.
//
// Where the original design called for "an extra sort/merge" to translate
// a table's pos/offset fields to the referenced entries' new dense ids,
// this implementation uses bitfield.Bitfield.Rank directly: the same
// count-of-set-bits-below query the bitfield variant uses for its filtered
// view, applied here at rewrite time instead of read time. That sidesteps
// the extra pass the original needed, since our bitfield supports random-
// access rank queries the original's approach did not.
func runRewrite(cfg Config, p1 *phase1.Result) (*Result, error) {
	result := &Result{}

	var curDisk vfs.Disk = p1.Managers[table.NumTables]
	curSize := p1.TableSizes[table.NumTables]

	for t := uint8(table.NumTables); t >= 2; t-- {
		entrySize := table.ForwardEntrySize(cfg.K, t)
		usedPrev := bitfield.New(p1.TableSizes[t-1])

		for i := uint64(0); i < curSize; i++ {
			e, err := readForward(curDisk, entrySize, cfg.K, t, i)
			if err != nil {
				return nil, err
			}
			usedPrev.Set(e.Pos)
			usedPrev.Set(e.Pos + e.Offset)
		}

		rewritten := newScratchDisk(cfg, fmt.Sprintf("table%d", t))
		for i := uint64(0); i < curSize; i++ {
			e, err := readForward(curDisk, entrySize, cfg.K, t, i)
			if err != nil {
				return nil, err
			}
			newPos := usedPrev.Rank(e.Pos)
			newTarget := usedPrev.Rank(e.Pos + e.Offset)
			e.Pos = newPos
			e.Offset = newTarget - newPos
			if err := writeForward(rewritten, entrySize, cfg.K, t, i, e); err != nil {
				return nil, err
			}
		}
		if err := rewritten.FlushWrite(); err != nil {
			return nil, err
		}
		result.Disks[t] = rewritten
		result.TableSizes[t] = curSize

		denseCount, nextDisk, err := densifyPrev(cfg, p1, t-1, usedPrev)
		if err != nil {
			return nil, err
		}
		curDisk = nextDisk
		curSize = denseCount
	}

	result.Disks[1] = curDisk
	result.TableSizes[1] = curSize
	return result, nil
}

// densifyPrev drops every entry of table t-1 whose bit in used is clear,
// preserving relative order, and writes the survivors contiguously to a
// fresh file. Payloads are copied verbatim: table t-1's own pos/offset
// fields (if any) still reference table t-2's OLD ids, to be translated
// when t-1 becomes "cur" in the next loop iteration.
func densifyPrev(cfg Config, p1 *phase1.Result, prevTable uint8, used *bitfield.Bitfield) (uint64, vfs.Disk, error) {
	var entrySize uint32
	if prevTable == 1 {
		entrySize = table.Table1EntrySize(cfg.K)
	} else {
		entrySize = table.ForwardEntrySize(cfg.K, prevTable)
	}

	src := p1.Managers[prevTable]
	dst := newScratchDisk(cfg, fmt.Sprintf("table%d", prevTable))

	var dense uint64
	for i := uint64(0); i < p1.TableSizes[prevTable]; i++ {
		if !used.Get(i) {
			continue
		}
		raw, err := src.Read(i*uint64(entrySize), uint64(entrySize))
		if err != nil {
			return 0, nil, err
		}
		if err := dst.Write(dense*uint64(entrySize), raw); err != nil {
			return 0, nil, err
		}
		dense++
	}
	if err := dst.FlushWrite(); err != nil {
		return 0, nil, err
	}
	return dense, dst, nil
}

func readForward(disk vfs.Disk, entrySize uint32, k, t uint8, index uint64) (table.MatchEntry, error) {
	raw, err := disk.Read(index*uint64(entrySize), uint64(entrySize))
	if err != nil {
		return table.MatchEntry{}, err
	}
	return table.UnpackForwardEntry(bitpack.Pad(raw), 0, k, t), nil
}

func writeForward(disk vfs.Disk, entrySize uint32, k, t uint8, index uint64, e table.MatchEntry) error {
	w := bitpack.NewWriter()
	table.PackForwardEntry(w, k, t, e)
	buf := make([]byte, entrySize)
	copy(buf, w.Bytes())
	return disk.Write(index*uint64(entrySize), buf)
}
