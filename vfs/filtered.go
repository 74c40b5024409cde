package vfs

import (
	chiaerrors "github.com/xdustinface/chiapos/errors"
	"github.com/xdustinface/chiapos/internal/bitfield"
)

// Filtered presents a read-only, forward-only view over an underlying Disk
// that skips entries a caller has already marked dead, rather than
// physically rewriting the table to remove them (design §4.2, §4.5). Phase
// 3 uses this in place of compacting a pruned table: entries are still
// entrySize bytes apart in the backing file, but entry index i in the
// filtered view maps to the i-th surviving bit in keep.
//
// Reads must be issued in non-decreasing entry-index order; Filtered keeps
// a single forward cursor (the next live entry's byte offset) rather than
// a random-access index, matching the sequential access pattern of phase 3.
type Filtered struct {
	disk      Disk
	keep      *bitfield.Bitfield
	entrySize uint64

	nextIndex   uint64 // next live-entry ordinal this view will hand out
	cursorEntry uint64 // absolute entry index in the backing file for nextIndex
}

// NewFiltered returns a Filtered view over disk, using entrySize-byte
// records and keeping only the entries whose bit is set in keep.
func NewFiltered(disk Disk, keep *bitfield.Bitfield, entrySize uint64) *Filtered {
	return &Filtered{disk: disk, keep: keep, entrySize: entrySize}
}

// ReadNextEntry returns the next surviving entry's raw bytes, advancing the
// forward cursor past it. It returns io.EOF-equivalent via a nil slice and
// a false ok when no entries remain.
func (f *Filtered) ReadNextEntry() ([]byte, bool, error) {
	total := f.keep.Len()
	for f.cursorEntry < total && !f.keep.Get(f.cursorEntry) {
		f.cursorEntry++
	}
	if f.cursorEntry >= total {
		return nil, false, nil
	}
	data, err := f.disk.Read(f.cursorEntry*f.entrySize, f.entrySize)
	if err != nil {
		return nil, false, err
	}
	f.cursorEntry++
	f.nextIndex++
	return data, true, nil
}

// Read implements Disk for callers that still want positional access; begin
// and length are interpreted in the filtered (post-compaction) address
// space, and must land on live-entry boundaries reachable by advancing the
// forward cursor from its current position — Filtered cannot seek
// backward.
func (f *Filtered) Read(begin, length uint64) ([]byte, error) {
	if length%f.entrySize != 0 || begin%f.entrySize != 0 {
		return nil, chiaerrors.InvalidValuef("filtered read %d..%d is not entry-aligned to %d", begin, begin+length, f.entrySize)
	}
	wantIndex := begin / f.entrySize
	if wantIndex < f.nextIndex {
		return nil, chiaerrors.NewInvariantError("filtered disk %s: backward read requested (want index %d, cursor at %d)",
			f.disk.FileName(), wantIndex, f.nextIndex)
	}
	n := length / f.entrySize
	out := make([]byte, 0, length)
	for i := uint64(0); i < n; i++ {
		for f.nextIndex < wantIndex {
			if _, _, err := f.ReadNextEntry(); err != nil {
				return nil, err
			}
		}
		entry, ok, err := f.ReadNextEntry()
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, chiaerrors.Corruptionf("filtered disk %s: ran out of live entries at index %d", f.disk.FileName(), wantIndex+i)
		}
		out = append(out, entry...)
	}
	return out, nil
}

// Write always fails: Filtered is read-only.
func (f *Filtered) Write(begin uint64, data []byte) error {
	return chiaerrors.NewInvariantError("filtered disk %s is read-only", f.disk.FileName())
}

// Truncate always fails: Filtered is read-only.
func (f *Filtered) Truncate(size uint64) error {
	return chiaerrors.NewInvariantError("filtered disk %s is read-only", f.disk.FileName())
}

// FileName implements Disk.
func (f *Filtered) FileName() string {
	return f.disk.FileName()
}

// FreeMemory implements Disk.
func (f *Filtered) FreeMemory() {
	f.disk.FreeMemory()
}
