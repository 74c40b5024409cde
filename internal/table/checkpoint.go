package table

import (
	"encoding/binary"

	chiaerrors "github.com/xdustinface/chiapos/errors"
	"github.com/xdustinface/chiapos/internal/ans"
	"github.com/xdustinface/chiapos/internal/bitpack"
)

// EncodeC1 packs f7 values sampled every KCheckpoint1Interval entries into
// the C1 table: k bits per entry, no further compression (design §4.7).
func EncodeC1(k uint8, f7s []uint64) []byte {
	w := bitpack.NewWriter()
	for _, f7 := range f7s {
		w.WriteUint64(f7, uint32(k))
	}
	return w.PaddedBytes()
}

// DecodeC1 is the inverse of EncodeC1.
func DecodeC1(buf []byte, k uint8, count int) []uint64 {
	out := make([]uint64, count)
	for i := range out {
		out[i] = bitpack.SliceUint64(buf, uint32(i)*uint32(k), uint32(k))
	}
	return out
}

// EncodeC2 packs C1 checkpoints sampled every KCheckpoint1Interval-th C1
// entry; the on-disk format is identical to C1's (design §4.7).
func EncodeC2(k uint8, c1s []uint64) []byte {
	return EncodeC1(k, c1s)
}

// DecodeC2 is the inverse of EncodeC2.
func DecodeC2(buf []byte, k uint8, count int) []uint64 {
	return DecodeC1(buf, k, count)
}

// kC3AverageDelta is the ANS range parameter for C3's delta stream: table 7's
// f7 values are roughly uniform over a range close to the table's own entry
// count, so consecutive deltas average close to 1 ("each >= 0, usually 0 or
// 1", design §4.7). KC3BitsPerEntry is a bits-budget constant for sizing
// CalculateC3Size, not this average, so it is kept separate.
const kC3AverageDelta = 1.0

// EncodeC3Park Rice-codes the deltas between KCheckpoint1Interval-1
// consecutive f7 values following a C1 boundary (the boundary value itself
// lives in C1, not here) into a fixed CalculateC3Size(k)-byte block: a
// little-endian u16 bit length followed by the coded deltas, mirroring
// WritePark's delta region (design §4.7).
func EncodeC3Park(k uint8, deltas []uint64) ([]byte, error) {
	out := make([]byte, CalculateC3Size(k))
	numBits := ans.EncodedBits(deltas, kC3AverageDelta)
	if uint64(numBits) > uint64(len(out)-2)*8 {
		return nil, chiaerrors.InsufficientMemoryf("table: C3 park (%d bits) exceeds budget %d bytes", numBits, len(out))
	}

	w := bitpack.NewWriter()
	ans.EncodeDeltas(w, deltas, kC3AverageDelta)
	coded := w.Bytes()
	binary.LittleEndian.PutUint16(out, uint16(numBits))
	copy(out[2:], coded)
	return out, nil
}

// DecodeC3Park decodes count deltas out of a C3 park produced by
// EncodeC3Park.
func DecodeC3Park(buf []byte, count int) []uint64 {
	// buf[:2] carries the written bit length, informational only: the
	// caller always knows count ahead of time (kCheckpoint1Interval - 1,
	// or fewer for the table's last boundary).
	return ans.DecodeDeltas(buf[2:], 0, count, kC3AverageDelta)
}
