package phase3

import (
	"github.com/xdustinface/chiapos/internal/bitpack"
	"github.com/xdustinface/chiapos/internal/phase2"
	"github.com/xdustinface/chiapos/internal/sortmanager"
	"github.com/xdustinface/chiapos/internal/table"
)

// posFEntryBits is the width of the locally-packed (pos, f, offset) record
// buildTable7PosSorted emits: table 7 carries no sort_key of its own (no
// table 8 exists to renumber for), but still needs f alongside pos/offset
// once sorted, to recover f7 after the join against table 6's renumber map.
func posFEntryBits(k uint8) uint32 {
	kk := uint32(k)
	return kk + (kk + table.KExtraBits) + table.KOffsetSize
}

// buildTable7PosSorted re-keys table 7's rows as (pos, f, offset) and sorts
// them by pos, mirroring buildPosSorted but carrying f instead of a
// sort_key since nothing above table 7 needs one.
func buildTable7PosSorted(cfg Config, p2 *phase2.Result) (*sortmanager.Manager, uint64, error) {
	entrySize := byteSize(posFEntryBits(cfg.K))
	mgr, err := newSortManager(cfg, "phase3_pos7", entrySize, 0)
	if err != nil {
		return nil, 0, err
	}

	kk := uint32(cfg.K)
	source := openTableSource(cfg.K, p2, table.NumTables)
	var i uint64
	for {
		raw, ok, err := source.next()
		if err != nil {
			return nil, 0, err
		}
		if !ok {
			break
		}
		e := table.UnpackForwardEntry(bitpack.Pad(raw), 0, cfg.K, table.NumTables)
		w := bitpack.NewWriter()
		w.WriteUint64(e.Pos, kk)
		w.WriteUint64(e.F, kk+table.KExtraBits)
		w.WriteUint64(e.Offset, table.KOffsetSize)
		if err := mgr.AddEntry(w.Bytes()); err != nil {
			return nil, 0, err
		}
		i++
	}
	if err := mgr.FlushCache(); err != nil {
		return nil, 0, err
	}
	return mgr, i, nil
}

// unpackPosFEntry reads a (pos, f, offset) record back out.
func unpackPosFEntry(buf []byte, k uint8) (pos, f, offset uint64) {
	kk := uint32(k)
	pos = bitpack.SliceUint64(buf, 0, kk)
	f = bitpack.SliceUint64(buf, kk, kk+table.KExtraBits)
	offset = bitpack.SliceUint64(buf, kk+kk+table.KExtraBits, table.KOffsetSize)
	return pos, f, offset
}
