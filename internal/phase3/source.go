package phase3

import (
	"github.com/xdustinface/chiapos/internal/phase2"
	"github.com/xdustinface/chiapos/internal/table"
	"github.com/xdustinface/chiapos/vfs"
)

// entrySource streams a table's rows once, forward-only, in whatever order
// phase 2 left them in (f-sorted for the bitfield variant's underlying
// managers, dense-and-compacted for the rewrite variant) — phase 3 never
// needs random access to a table it is currently consuming, only to the
// renumber map belonging to the table beneath it (renumberJoin).
type entrySource interface {
	next() ([]byte, bool, error)
}

// filteredSource adapts a vfs.Filtered view, used when phase 2 ran the
// bitfield variant and left table t's dead rows marked rather than
// dropped.
type filteredSource struct {
	f *vfs.Filtered
}

func (s *filteredSource) next() ([]byte, bool, error) {
	return s.f.ReadNextEntry()
}

// plainSource reads a disk's rows 0..size-1 directly, used for the rewrite
// variant (already dense) and for table NumTables, which phase 2 never
// filters.
type plainSource struct {
	disk      vfs.Disk
	entrySize uint64
	idx, size uint64
}

func (s *plainSource) next() ([]byte, bool, error) {
	if s.idx >= s.size {
		return nil, false, nil
	}
	b, err := s.disk.Read(s.idx*s.entrySize, s.entrySize)
	if err != nil {
		return nil, false, err
	}
	s.idx++
	return b, true, nil
}

// openTableSource returns an entrySource over table t's surviving rows, per
// whichever phase 2 variant produced p2.
func openTableSource(k uint8, p2 *phase2.Result, t uint8) entrySource {
	var entrySize uint32
	if t == 1 {
		entrySize = table.Table1EntrySize(k)
	} else {
		entrySize = table.ForwardEntrySize(k, t)
	}
	if p2.Filters[t] != nil {
		return &filteredSource{f: vfs.NewFiltered(p2.Disks[t], p2.Filters[t], uint64(entrySize))}
	}
	return &plainSource{disk: p2.Disks[t], entrySize: uint64(entrySize), size: p2.TableSizes[t]}
}
