// Package phase3 implements compression (design §4.6): for each table
// 1..6 it turns (pos, offset) back-pointers into the table beneath it
// into line points, sorts by line point, and writes fixed-size parks;
// table 7 is re-sorted by f7 instead and written as raw, uncompressed
// (line_point, f7) records for phase 4 to walk.
//
// Tables 2..6 carry pos/offset references into the table below; table 1
// has none (its rows are their own base values), so its line points are
// the degenerate pair (x, x) built directly from f1's x field. Either
// way, every table's rows get a dense "sort_key" once phase 3 has decided
// their position in this table's own park stream (or, for table 7, its
// own f7-sorted record stream) — the table above uses that sort_key, not
// the dense position phase 2 left behind, once it in turn gets
// compressed. renumberJoin carries that handoff from one iteration to the
// next.
package phase3

import (
	"fmt"
	"math/big"

	chiaerrors "github.com/xdustinface/chiapos/errors"
	"github.com/xdustinface/chiapos/internal/base"
	"github.com/xdustinface/chiapos/internal/bitfield"
	"github.com/xdustinface/chiapos/internal/bitpack"
	"github.com/xdustinface/chiapos/internal/phase2"
	"github.com/xdustinface/chiapos/internal/retry"
	"github.com/xdustinface/chiapos/internal/sortmanager"
	"github.com/xdustinface/chiapos/internal/table"
	"github.com/xdustinface/chiapos/vfs"
)

// Config bundles phase 3's construction parameters.
type Config struct {
	K uint8

	FS         vfs.FS
	Logger     base.Logger
	Policy     *retry.Policy
	TmpDir     string
	FilePrefix string

	MemorySize    uint64
	NumBuckets    uint32
	LogNumBuckets uint32
	StripeSize    uint64
	Strategy      sortmanager.Strategy

	// Progress is invoked with phase=3 after each park-sized slice of
	// every table's line-point drain.
	Progress func(phase, n, maxN int)
}

func (cfg Config) validate() error {
	if cfg.K == 0 || cfg.K > table.KMaxPlotSize {
		return chiaerrors.InvalidValuef("phase3: k=%d outside (0, %d]", cfg.K, table.KMaxPlotSize)
	}
	if cfg.NumBuckets == 0 || cfg.NumBuckets != 1<<cfg.LogNumBuckets {
		return chiaerrors.InvalidValuef("phase3: num_buckets %d is not 2^%d", cfg.NumBuckets, cfg.LogNumBuckets)
	}
	return nil
}

// Result records, per table 1..7, where its compressed (or, for table 7,
// raw) record stream begins in the output file and how many entries it
// holds. Table7EntrySize is the byte stride of table 7's raw records,
// which phase 4 needs to walk them.
type Result struct {
	TableOffsets    [table.NumTables + 1]uint64
	TableSizes      [table.NumTables + 1]uint64
	Table7EntrySize uint32
}

// Run executes compression for tables 1..7, writing park (or, for table 7,
// raw record) streams sequentially into out starting at startOffset.
func Run(cfg Config, p2 *phase2.Result, out vfs.Disk, startOffset uint64) (*Result, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	result := &Result{}
	cursor := startOffset

	lp1, size1, err := buildLinePointsTable1(cfg, p2)
	if err != nil {
		return nil, err
	}
	start, end, renumPrev, err := drainAndPark(cfg, lp1, size1, 1, out, cursor)
	if err != nil {
		return nil, err
	}
	result.TableOffsets[1] = start
	result.TableSizes[1] = size1
	cursor = end
	renumPrevSize := size1
	if cfg.Progress != nil {
		cfg.Progress(3, 1, table.NumTables)
	}

	for t := uint8(2); t < table.NumTables; t++ {
		posMgr, sizeT, err := buildPosSorted(cfg, p2, t)
		if err != nil {
			return nil, err
		}
		lpMgr, err := joinAndLinePoint(cfg, posMgr, sizeT, t, p2.Filters[t-1], renumPrev, renumPrevSize)
		if err != nil {
			return nil, err
		}
		start, end, renumT, err := drainAndPark(cfg, lpMgr, sizeT, t, out, cursor)
		if err != nil {
			return nil, err
		}
		result.TableOffsets[t] = start
		result.TableSizes[t] = sizeT
		cursor = end
		renumPrev = renumT
		renumPrevSize = sizeT
		if cfg.Progress != nil {
			cfg.Progress(3, int(t), table.NumTables)
		}
	}

	start7, size7, entrySize7, err := writeTable7(cfg, p2, renumPrev, renumPrevSize, out, cursor)
	if err != nil {
		return nil, err
	}
	result.TableOffsets[table.NumTables] = start7
	result.TableSizes[table.NumTables] = size7
	result.Table7EntrySize = entrySize7
	if cfg.Progress != nil {
		cfg.Progress(3, table.NumTables, table.NumTables)
	}

	return result, nil
}

func byteSize(bits uint32) uint32 {
	return uint32(bitpack.ByteLen(int(bits)))
}

func newSortManager(cfg Config, suffix string, entrySize, beginBits uint32) (*sortmanager.Manager, error) {
	return sortmanager.New(sortmanager.Config{
		FS:            cfg.FS,
		Logger:        cfg.Logger,
		Policy:        cfg.Policy,
		TmpDir:        cfg.TmpDir,
		FilePrefix:    fmt.Sprintf("%s.%s", cfg.FilePrefix, suffix),
		MemorySize:    cfg.MemorySize,
		NumBuckets:    cfg.NumBuckets,
		LogNumBuckets: cfg.LogNumBuckets,
		EntrySize:     entrySize,
		BeginBits:     beginBits,
		StripeSize:    cfg.StripeSize,
		Strategy:      cfg.Strategy,
	})
}

// buildLinePointsTable1 assigns table 1's surviving rows a 0-based index
// (their dense-position sort key for this round) and line-points each row
// against itself, per this package's doc comment on table 1's degenerate
// pair.
func buildLinePointsTable1(cfg Config, p2 *phase2.Result) (*sortmanager.Manager, uint64, error) {
	lpMgr, err := newSortManager(cfg, "phase3_lp1", byteSize(table.LinePointKeyEntryBits(cfg.K)), 0)
	if err != nil {
		return nil, 0, err
	}
	source := openTableSource(cfg.K, p2, 1)
	var i uint64
	for {
		raw, ok, err := source.next()
		if err != nil {
			return nil, 0, err
		}
		if !ok {
			break
		}
		e := table.UnpackTable1Entry(bitpack.Pad(raw), 0, cfg.K)
		lpe := table.LinePointKeyEntry{LinePoint: table.LinePoint(e.X, e.X), SortKey: i}
		w := bitpack.NewWriter()
		lpe.Pack(w, cfg.K)
		if err := lpMgr.AddEntry(w.Bytes()); err != nil {
			return nil, 0, err
		}
		i++
	}
	if err := lpMgr.FlushCache(); err != nil {
		return nil, 0, err
	}
	return lpMgr, i, nil
}

// buildPosSorted re-keys table t's rows as (sort_key=dense row index, pos,
// offset) and sorts them by pos (design §4.6 step 1), so joinAndLinePoint
// can walk them and the table-(t-1) renumber map in lockstep.
func buildPosSorted(cfg Config, p2 *phase2.Result, t uint8) (*sortmanager.Manager, uint64, error) {
	entrySize := byteSize(table.KeyPosOffsetBits(cfg.K))
	posMgr, err := newSortManager(cfg, fmt.Sprintf("phase3_pos%d", t), entrySize, 0)
	if err != nil {
		return nil, 0, err
	}
	source := openTableSource(cfg.K, p2, t)
	var i uint64
	for {
		raw, ok, err := source.next()
		if err != nil {
			return nil, 0, err
		}
		if !ok {
			break
		}
		e := table.UnpackForwardEntry(bitpack.Pad(raw), 0, cfg.K, t)
		kpo := table.KeyPosOffsetEntry{SortKey: i, Pos: e.Pos, Offset: e.Offset}
		w := bitpack.NewWriter()
		kpo.Pack(w, cfg.K)
		if err := posMgr.AddEntry(w.Bytes()); err != nil {
			return nil, 0, err
		}
		i++
	}
	if err := posMgr.FlushCache(); err != nil {
		return nil, 0, err
	}
	return posMgr, i, nil
}

// renumberedPos translates a raw dense position in table t-1's original
// (p1.TableSizes[t-1]-wide) index space into the compacted rank space
// renumberJoin's window is keyed on, mirroring runRewrite's
// usedPrev.Rank(e.Pos). filter is nil when phase 2 already left table t-1
// dense (the rewrite variant, or table NumTables, which nothing prunes),
// in which case the raw position already is the compacted one.
func renumberedPos(filter *bitfield.Bitfield, pos uint64) uint64 {
	if filter == nil {
		return pos
	}
	return filter.Rank(pos)
}

// joinAndLinePoint drains posMgr in pos order, translates each row's
// (pos, pos+offset) into the two referenced rows' sort keys via
// renumberPrev, and emits (line_point, sort_key) keyed on line point
// (design §4.6 steps 2-3). filter is table (t-1)'s survivor bitfield,
// needed to translate pos/offset out of table (t-1)'s raw index space
// before they can be used as renumberJoin lookups, which are keyed on
// the same compacted rank space buildPosSorted assigned table (t-1)'s
// surviving rows when it was "current".
func joinAndLinePoint(cfg Config, posMgr *sortmanager.Manager, size uint64, t uint8, filter *bitfield.Bitfield, renumberPrev *sortmanager.Manager, renumberPrevSize uint64) (*sortmanager.Manager, error) {
	defer posMgr.Close()
	defer renumberPrev.Close()
	posEntrySize := byteSize(table.KeyPosOffsetBits(cfg.K))
	lpMgr, err := newSortManager(cfg, fmt.Sprintf("phase3_lp%d", t), byteSize(table.LinePointKeyEntryBits(cfg.K)), 0)
	if err != nil {
		return nil, err
	}
	join := newRenumberJoin(renumberPrev, byteSize(table.RenumberEntryBits(cfg.K)), cfg.K, renumberPrevSize)

	for idx := uint64(0); idx < size; idx++ {
		raw, err := posMgr.ReadEntry(idx * uint64(posEntrySize))
		if err != nil {
			return nil, err
		}
		kpo := table.UnpackKeyPosOffsetEntry(bitpack.Pad(raw), 0, cfg.K)
		pos := renumberedPos(filter, kpo.Pos)
		target := renumberedPos(filter, kpo.Pos+kpo.Offset)

		if err := join.advance(pos); err != nil {
			return nil, err
		}
		x, err := join.lookup(pos)
		if err != nil {
			return nil, err
		}
		y, err := join.lookup(target)
		if err != nil {
			return nil, err
		}
		if x > y {
			x, y = y, x
		}

		lpe := table.LinePointKeyEntry{LinePoint: table.LinePoint(x, y), SortKey: kpo.SortKey}
		w := bitpack.NewWriter()
		lpe.Pack(w, cfg.K)
		if err := lpMgr.AddEntry(w.Bytes()); err != nil {
			return nil, err
		}
	}
	if err := lpMgr.FlushCache(); err != nil {
		return nil, err
	}
	return lpMgr, nil
}

// drainAndPark reads lpMgr in ascending line-point order, groups rows into
// KEntriesPerPark-sized parks written to out at cursor, and assigns each
// row's rank in that drain as its new sort key, emitted into a fresh
// sort manager keyed on the old sort key for the next table up to join
// against (design §4.6 steps 4-5).
func drainAndPark(cfg Config, lpMgr *sortmanager.Manager, size uint64, t uint8, out vfs.Disk, cursor uint64) (start, end uint64, renumberMgr *sortmanager.Manager, err error) {
	defer lpMgr.Close()
	lpEntrySize := byteSize(table.LinePointKeyEntryBits(cfg.K))
	renumberMgr, err = newSortManager(cfg, fmt.Sprintf("phase3_renum%d", t), byteSize(table.RenumberEntryBits(cfg.K)), 0)
	if err != nil {
		return 0, 0, nil, err
	}

	start = cursor
	var group []*big.Int
	var groupKeys []uint64
	var rank uint64

	flush := func() error {
		if len(group) == 0 {
			return nil
		}
		park, err := table.WritePark(cfg.K, t, group)
		if err != nil {
			return err
		}
		if err := out.Write(cursor, park); err != nil {
			return err
		}
		cursor += uint64(len(park))
		for _, sk := range groupKeys {
			re := table.RenumberEntry{OldSortKey: sk, NewSortKey: rank}
			w := bitpack.NewWriter()
			re.Pack(w, cfg.K)
			if err := renumberMgr.AddEntry(w.Bytes()); err != nil {
				return err
			}
			rank++
		}
		group = group[:0]
		groupKeys = groupKeys[:0]
		return nil
	}

	for idx := uint64(0); idx < size; idx++ {
		raw, err := lpMgr.ReadEntry(idx * uint64(lpEntrySize))
		if err != nil {
			return 0, 0, nil, err
		}
		lpe := table.UnpackLinePointKeyEntry(bitpack.Pad(raw), 0, cfg.K)
		group = append(group, lpe.LinePoint)
		groupKeys = append(groupKeys, lpe.SortKey)
		if len(group) == table.KEntriesPerPark {
			if err := flush(); err != nil {
				return 0, 0, nil, err
			}
		}
		if cfg.Progress != nil && cfg.StripeSize > 0 && idx%cfg.StripeSize == 0 {
			cfg.Progress(3, int(idx), int(size))
		}
	}
	if err := flush(); err != nil {
		return 0, 0, nil, err
	}
	if err := renumberMgr.FlushCache(); err != nil {
		return 0, 0, nil, err
	}
	return start, cursor, renumberMgr, nil
}

// writeTable7 re-sorts table 7 by its narrowed f7 value (design §4.6: "the
// anchor line-point encoding of table 7 uses 3k-1 bits for (line_point,
// f7)") and writes each row as a raw, byte-aligned record — no stub/delta
// coding, since f7 order does not correlate with line-point order the way
// WritePark's ascending-difference coding assumes.
func writeTable7(cfg Config, p2 *phase2.Result, renumberPrev *sortmanager.Manager, renumberPrevSize uint64, out vfs.Disk, cursor uint64) (start uint64, size uint64, entrySize uint32, err error) {
	defer renumberPrev.Close()
	entrySize = byteSize(table.Table7EntryBits(cfg.K))

	posMgr, posSize, err := buildTable7PosSorted(cfg, p2)
	if err != nil {
		return 0, 0, 0, err
	}
	defer posMgr.Close()
	posEntrySize := byteSize(posFEntryBits(cfg.K))

	// f7Mgr reorders the record so f7 leads: the bucket prefix a sort
	// manager keys on is always an entry's leading bits, and table 7 must
	// end up sorted by f7, not by pos or line point.
	f7Mgr, err := newSortManager(cfg, "phase3_f7", entrySize, 0)
	if err != nil {
		return 0, 0, 0, err
	}
	defer f7Mgr.Close()
	join := newRenumberJoin(renumberPrev, byteSize(table.RenumberEntryBits(cfg.K)), cfg.K, renumberPrevSize)
	filter := p2.Filters[table.NumTables-1]

	kk := uint32(cfg.K)
	for idx := uint64(0); idx < posSize; idx++ {
		raw, err := posMgr.ReadEntry(idx * uint64(posEntrySize))
		if err != nil {
			return 0, 0, 0, err
		}
		rawPos, f, offset := unpackPosFEntry(bitpack.Pad(raw), cfg.K)
		pos := renumberedPos(filter, rawPos)
		target := renumberedPos(filter, rawPos+offset)

		if err := join.advance(pos); err != nil {
			return 0, 0, 0, err
		}
		x, err := join.lookup(pos)
		if err != nil {
			return 0, 0, 0, err
		}
		y, err := join.lookup(target)
		if err != nil {
			return 0, 0, 0, err
		}
		if x > y {
			x, y = y, x
		}

		f7 := f >> (table.KExtraBits + 1)
		w := bitpack.NewWriter()
		w.WriteUint64(f7, kk-1)
		w.WriteBig(table.LinePoint(x, y), 2*kk)
		if err := f7Mgr.AddEntry(w.Bytes()); err != nil {
			return 0, 0, 0, err
		}
	}
	if err := f7Mgr.FlushCache(); err != nil {
		return 0, 0, 0, err
	}
	count := posSize

	start = cursor
	for idx := uint64(0); idx < count; idx++ {
		raw, err := f7Mgr.ReadEntry(idx * uint64(entrySize))
		if err != nil {
			return 0, 0, 0, err
		}
		padded := bitpack.Pad(raw)
		f7 := bitpack.SliceUint64(padded, 0, kk-1)
		lp := bitpack.SliceBig(padded, kk-1, 2*kk)

		e := table.Table7Entry{LinePoint: lp, F7: f7}
		w := bitpack.NewWriter()
		e.Pack(w, cfg.K)
		buf := make([]byte, entrySize)
		copy(buf, w.Bytes())
		if err := out.Write(cursor, buf); err != nil {
			return 0, 0, 0, err
		}
		cursor += uint64(entrySize)
	}
	return start, count, entrySize, nil
}
