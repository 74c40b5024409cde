package table

import (
	"math/big"

	"github.com/xdustinface/chiapos/internal/bitpack"
)

// Table1EntrySize returns the byte length of a packed Table1Entry for k.
func Table1EntrySize(k uint8) uint32 {
	return uint32(bitpack.ByteLen(int(Table1EntryBits(k))))
}

// ForwardEntrySize returns the byte length of a packed table-t phase-1
// output record for t in [2, NumTables].
func ForwardEntrySize(k, t uint8) uint32 {
	return uint32(bitpack.ByteLen(int(ForwardEntryBits(k, t))))
}

// Table1Entry is phase 1's table-1 record: f1 ‖ x, width k+KExtraBits+k
// bits (design §3).
type Table1Entry struct {
	F1 uint64
	X  uint64
}

// Table1EntryBits returns the bit width of a Table1Entry for parameter k.
func Table1EntryBits(k uint8) uint32 {
	kk := uint32(k)
	return kk + KExtraBits + kk
}

// Pack writes e into a bitpack.Writer in the on-disk layout.
func (e Table1Entry) Pack(w *bitpack.Writer, k uint8) {
	kk := uint32(k)
	w.WriteUint64(e.F1, kk+KExtraBits)
	w.WriteUint64(e.X, kk)
}

// UnpackTable1Entry reads a Table1Entry out of buf starting at startBit.
func UnpackTable1Entry(buf []byte, startBit uint32, k uint8) Table1Entry {
	kk := uint32(k)
	f1 := bitpack.SliceUint64(buf, startBit, kk+KExtraBits)
	x := bitpack.SliceUint64(buf, startBit+kk+KExtraBits, kk)
	return Table1Entry{F1: f1, X: x}
}

// MatchEntry is phase 1's table t (2..6) record: f ‖ pos ‖ offset ‖
// metadata, width k+KExtraBits+k+KOffsetSize+k*KVectorLens[t+1] bits
// (design §3). Metadata can exceed 64 bits (up to k*4 bits), hence big.Int.
type MatchEntry struct {
	F        uint64
	Pos      uint64
	Offset   uint64
	Metadata *big.Int
}

// MatchEntryBits returns the bit width of a MatchEntry for table t (2..6)
// and parameter k.
func MatchEntryBits(k uint8, t uint8) uint32 {
	kk := uint32(k)
	return kk + KExtraBits + kk + KOffsetSize + kk*KVectorLens[t+1]
}

// Pack writes e into w for table t.
func (e MatchEntry) Pack(w *bitpack.Writer, k uint8, t uint8) {
	kk := uint32(k)
	w.WriteUint64(e.F, kk+KExtraBits)
	w.WriteUint64(e.Pos, kk)
	w.WriteUint64(e.Offset, KOffsetSize)
	metaBits := kk * KVectorLens[t+1]
	meta := e.Metadata
	if meta == nil {
		meta = new(big.Int)
	}
	w.WriteBig(meta, metaBits)
}

// UnpackMatchEntry reads a MatchEntry for table t out of buf starting at
// startBit.
func UnpackMatchEntry(buf []byte, startBit uint32, k uint8, t uint8) MatchEntry {
	kk := uint32(k)
	pos := startBit
	f := bitpack.SliceUint64(buf, pos, kk+KExtraBits)
	pos += kk + KExtraBits
	p := bitpack.SliceUint64(buf, pos, kk)
	pos += kk
	off := bitpack.SliceUint64(buf, pos, KOffsetSize)
	pos += KOffsetSize
	metaBits := kk * KVectorLens[t+1]
	meta := bitpack.SliceBig(buf, pos, metaBits)
	return MatchEntry{F: f, Pos: p, Offset: off, Metadata: meta}
}

// ForwardEntryBits returns the bit width of table t's phase-1 output
// record for t in [2, NumTables]: f ‖ pos ‖ offset ‖ metadata, except for
// the last table, which carries no metadata since no table t+1 exists to
// consume it.
func ForwardEntryBits(k, t uint8) uint32 {
	kk := uint32(k)
	base := kk + KExtraBits + kk + KOffsetSize
	if int(t) >= NumTables {
		return base
	}
	return base + kk*KVectorLens[t+1]
}

// PackForwardEntry writes e (t's phase-1 output) into w, matching
// ForwardEntryBits(k, t).
func PackForwardEntry(w *bitpack.Writer, k, t uint8, e MatchEntry) {
	kk := uint32(k)
	w.WriteUint64(e.F, kk+KExtraBits)
	w.WriteUint64(e.Pos, kk)
	w.WriteUint64(e.Offset, KOffsetSize)
	if int(t) >= NumTables {
		return
	}
	metaBits := kk * KVectorLens[t+1]
	meta := e.Metadata
	if meta == nil {
		meta = new(big.Int)
	}
	w.WriteBig(meta, metaBits)
}

// UnpackForwardEntry reads a table-t phase-1 output record out of buf
// starting at startBit, matching PackForwardEntry.
func UnpackForwardEntry(buf []byte, startBit uint32, k, t uint8) MatchEntry {
	kk := uint32(k)
	pos := startBit
	f := bitpack.SliceUint64(buf, pos, kk+KExtraBits)
	pos += kk + KExtraBits
	p := bitpack.SliceUint64(buf, pos, kk)
	pos += kk
	off := bitpack.SliceUint64(buf, pos, KOffsetSize)
	pos += KOffsetSize
	e := MatchEntry{F: f, Pos: p, Offset: off}
	if int(t) < NumTables {
		metaBits := kk * KVectorLens[t+1]
		e.Metadata = bitpack.SliceBig(buf, pos, metaBits)
	}
	return e
}

// Table7Entry is table 7's phase-3 record: line_point ‖ f7, width 3k-1
// bits (design §3, §4.6).
type Table7Entry struct {
	LinePoint *big.Int
	F7        uint64
}

// Table7EntryBits returns the bit width of a Table7Entry for parameter k.
func Table7EntryBits(k uint8) uint32 {
	return 3*uint32(k) - 1
}

// Pack writes e into w.
func (e Table7Entry) Pack(w *bitpack.Writer, k uint8) {
	kk := uint32(k)
	lpBits := 2 * kk
	w.WriteBig(e.LinePoint, lpBits)
	w.WriteUint64(e.F7, kk-1)
}

// UnpackTable7Entry reads a Table7Entry out of buf starting at startBit.
func UnpackTable7Entry(buf []byte, startBit uint32, k uint8) Table7Entry {
	kk := uint32(k)
	lpBits := 2 * kk
	lp := bitpack.SliceBig(buf, startBit, lpBits)
	f7 := bitpack.SliceUint64(buf, startBit+lpBits, kk-1)
	return Table7Entry{LinePoint: lp, F7: f7}
}

// KeyPosOffsetEntry is the phase-3 intermediate record (pos, sort_key,
// offset), width 2k+KOffsetSize bits (design §4.6 step 1). pos leads so a
// sort manager bucketing and ordering from bit 0 sorts by pos, the join
// key renumberJoin walks in lockstep with a table's renumber map.
type KeyPosOffsetEntry struct {
	Pos     uint64
	SortKey uint64
	Offset  uint64
}

// KeyPosOffsetBits returns the bit width of a KeyPosOffsetEntry for
// parameter k.
func KeyPosOffsetBits(k uint8) uint32 {
	return 2*uint32(k) + KOffsetSize
}

// Pack writes e into w.
func (e KeyPosOffsetEntry) Pack(w *bitpack.Writer, k uint8) {
	kk := uint32(k)
	w.WriteUint64(e.Pos, kk)
	w.WriteUint64(e.SortKey, kk)
	w.WriteUint64(e.Offset, KOffsetSize)
}

// UnpackKeyPosOffsetEntry reads a KeyPosOffsetEntry out of buf starting at
// startBit.
func UnpackKeyPosOffsetEntry(buf []byte, startBit uint32, k uint8) KeyPosOffsetEntry {
	kk := uint32(k)
	pos := startBit
	p := bitpack.SliceUint64(buf, pos, kk)
	pos += kk
	key := bitpack.SliceUint64(buf, pos, kk)
	pos += kk
	off := bitpack.SliceUint64(buf, pos, KOffsetSize)
	return KeyPosOffsetEntry{Pos: p, SortKey: key, Offset: off}
}

// LinePointKeyEntry is the phase-3 (line_point, sort_key) record emitted
// while sorting a table's entries by line point (design §4.6 step 3):
// line_point in 2k bits, the referencing table's original row index in k
// bits (it addresses an array of at most 2^k rows).
type LinePointKeyEntry struct {
	LinePoint *big.Int
	SortKey   uint64
}

// LinePointKeyEntryBits returns the bit width of a LinePointKeyEntry for k.
func LinePointKeyEntryBits(k uint8) uint32 {
	return 3 * uint32(k)
}

// Pack writes e into w.
func (e LinePointKeyEntry) Pack(w *bitpack.Writer, k uint8) {
	kk := uint32(k)
	w.WriteBig(e.LinePoint, 2*kk)
	w.WriteUint64(e.SortKey, kk)
}

// UnpackLinePointKeyEntry reads a LinePointKeyEntry out of buf starting at
// startBit.
func UnpackLinePointKeyEntry(buf []byte, startBit uint32, k uint8) LinePointKeyEntry {
	kk := uint32(k)
	lp := bitpack.SliceBig(buf, startBit, 2*kk)
	key := bitpack.SliceUint64(buf, startBit+2*kk, kk)
	return LinePointKeyEntry{LinePoint: lp, SortKey: key}
}

// RenumberEntry is the (old_sort_key, new_sort_key) pair phase 3 emits
// alongside a table's park stream to become the next table's "previous"
// input (design §4.6 step 5).
type RenumberEntry struct {
	OldSortKey uint64
	NewSortKey uint64
}

// RenumberEntryBits returns the bit width of a RenumberEntry for k.
func RenumberEntryBits(k uint8) uint32 {
	return 2 * uint32(k)
}

// Pack writes e into w.
func (e RenumberEntry) Pack(w *bitpack.Writer, k uint8) {
	kk := uint32(k)
	w.WriteUint64(e.OldSortKey, kk)
	w.WriteUint64(e.NewSortKey, kk)
}

// UnpackRenumberEntry reads a RenumberEntry out of buf starting at
// startBit.
func UnpackRenumberEntry(buf []byte, startBit uint32, k uint8) RenumberEntry {
	kk := uint32(k)
	old := bitpack.SliceUint64(buf, startBit, kk)
	new_ := bitpack.SliceUint64(buf, startBit+kk, kk)
	return RenumberEntry{OldSortKey: old, NewSortKey: new_}
}
