package phase2

import (
	"github.com/xdustinface/chiapos/internal/bitfield"
	"github.com/xdustinface/chiapos/internal/bitpack"
	"github.com/xdustinface/chiapos/internal/phase1"
	"github.com/xdustinface/chiapos/internal/table"
)

// runBitfield implements design §4.5's preferred variant: for every table
// t from NumTables down to 2, scan t's (already-filtered, for t <
// NumTables) entries and mark which positions of t-1 they reference. No
// table is ever rewritten; phase 3 consumes the original phase 1 managers
// through a vfs.Filtered view gated by the returned bitfields.
func runBitfield(cfg Config, p1 *phase1.Result) (*Result, error) {
	result := &Result{}
	for t := uint8(1); t <= table.NumTables; t++ {
		result.Disks[t] = p1.Managers[t]
		result.TableSizes[t] = p1.TableSizes[t]
	}

	var usedCur *bitfield.Bitfield // nil for t == NumTables: nothing prunes the last table.
	for t := uint8(table.NumTables); t >= 2; t-- {
		curSize := p1.TableSizes[t]
		entrySize := table.ForwardEntrySize(cfg.K, t)
		usedPrev := bitfield.New(p1.TableSizes[t-1])

		for i := uint64(0); i < curSize; i++ {
			if usedCur != nil && !usedCur.Get(i) {
				continue
			}
			raw, err := p1.Managers[t].Read(i*uint64(entrySize), uint64(entrySize))
			if err != nil {
				return nil, err
			}
			e := table.UnpackForwardEntry(bitpack.Pad(raw), 0, cfg.K, t)
			usedPrev.Set(e.Pos)
			usedPrev.Set(e.Pos + e.Offset)
		}

		result.Filters[t-1] = usedPrev
		usedCur = usedPrev
	}
	return result, nil
}
