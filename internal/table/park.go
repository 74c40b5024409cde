package table

import (
	"encoding/binary"
	"math/big"

	chiaerrors "github.com/xdustinface/chiapos/errors"
	"github.com/xdustinface/chiapos/internal/ans"
	"github.com/xdustinface/chiapos/internal/bitpack"
)

// WritePark encodes up to KEntriesPerPark ascending line points (the last
// park of a table may hold fewer) into a fixed CalculateParkSize(k, t)-byte
// block laid out as three independently byte-aligned regions —
// CalculateLinePointSize(k) bytes of anchor, CalculateStubsSize(k) bytes of
// stubs, and CalculateMaxDeltasSize(k, t) bytes of a little-endian u16
// delta-block bit length followed by the ANS-coded (here, Golomb-Rice
// coded, see internal/ans) high bits of successive line-point differences
// — matching entry_sizes.cpp's CalculateParkSize, which sums those three
// regions' sizes rather than bit-packing them contiguously (design §4.6
// step 4).
func WritePark(k uint8, t uint8, linePoints []*big.Int) ([]byte, error) {
	if len(linePoints) == 0 {
		return nil, chiaerrors.InvalidValuef("table: WritePark called with no line points")
	}
	if len(linePoints) > KEntriesPerPark {
		return nil, chiaerrors.InvalidValuef("table: WritePark got %d line points, max is %d", len(linePoints), KEntriesPerPark)
	}

	kk := uint32(k)
	stubBits := kk - KStubMinusBits
	r := KMaxAverageDelta
	if t == 1 {
		r = KMaxAverageDeltaTable1
	}

	stubs := make([]uint64, 0, len(linePoints)-1)
	deltas := make([]uint64, 0, len(linePoints)-1)
	prev := linePoints[0]
	stubMask := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), uint(stubBits)), big.NewInt(1))
	for _, lp := range linePoints[1:] {
		diff := new(big.Int).Sub(lp, prev)
		if diff.Sign() < 0 {
			return nil, chiaerrors.Corruptionf("table: WritePark got non-ascending line points")
		}
		stubs = append(stubs, new(big.Int).And(diff, stubMask).Uint64())
		deltas = append(deltas, new(big.Int).Rsh(diff, uint(stubBits)).Uint64())
		prev = lp
	}

	lpSize := CalculateLinePointSize(k)
	anchorScratch := make([]byte, lpSize+bitpack.TailPadding)
	bitpack.WriteBigAt(anchorScratch, 0, 2*kk, linePoints[0])
	anchorRegion := anchorScratch[:lpSize]

	stubWriter := bitpack.NewWriter()
	for _, s := range stubs {
		stubWriter.WriteUint64(s, stubBits)
	}
	stubRegion := make([]byte, CalculateStubsSize(k))
	copy(stubRegion, stubWriter.Bytes())

	deltaWriter := bitpack.NewWriter()
	ans.EncodeDeltas(deltaWriter, deltas, r)
	deltaBytes := deltaWriter.Bytes()

	deltaRegion := make([]byte, CalculateMaxDeltasSize(k, t))
	if len(deltaBytes)+2 > len(deltaRegion) {
		return nil, chiaerrors.InsufficientMemoryf("table: park delta block (%d bytes) exceeds budget %d for table %d", len(deltaBytes), len(deltaRegion), t)
	}
	binary.LittleEndian.PutUint16(deltaRegion, uint16(ans.EncodedBits(deltas, r)))
	copy(deltaRegion[2:], deltaBytes)

	out := make([]byte, CalculateParkSize(k, t))
	copy(out, anchorRegion)
	copy(out[len(anchorRegion):], stubRegion)
	copy(out[len(anchorRegion)+len(stubRegion):], deltaRegion)
	return out, nil
}

// ReadPark decodes count (<= KEntriesPerPark) ascending line points back
// out of a park block produced by WritePark.
func ReadPark(buf []byte, k uint8, t uint8, count int) ([]*big.Int, error) {
	if count <= 0 {
		return nil, chiaerrors.InvalidValuef("table: ReadPark called with count <= 0")
	}
	kk := uint32(k)
	stubBits := kk - KStubMinusBits
	r := KMaxAverageDelta
	if t == 1 {
		r = KMaxAverageDeltaTable1
	}

	lpSize := CalculateLinePointSize(k)
	stubsSize := CalculateStubsSize(k)
	if len(buf) < int(lpSize+stubsSize)+2 {
		return nil, chiaerrors.Corruptionf("table: ReadPark: park too small")
	}

	padded := append(append([]byte{}, buf[:lpSize]...), make([]byte, bitpack.TailPadding)...)
	anchor := bitpack.SliceBig(padded, 0, 2*kk)

	stubsBuf := buf[lpSize : lpSize+stubsSize]
	deltaRegion := buf[lpSize+stubsSize:]
	_ = binary.LittleEndian.Uint16(deltaRegion[:2]) // delta bit length, informational

	numDeltas := count - 1
	deltas := ans.DecodeDeltas(deltaRegion[2:], 0, numDeltas, r)

	out := make([]*big.Int, count)
	out[0] = anchor
	prev := anchor
	for i := 0; i < numDeltas; i++ {
		stub := bitpack.SliceUint64(stubsBuf, uint32(i)*stubBits, stubBits)
		diff := new(big.Int).Lsh(new(big.Int).SetUint64(deltas[i]), uint(stubBits))
		diff.Or(diff, new(big.Int).SetUint64(stub))
		next := new(big.Int).Add(prev, diff)
		out[i+1] = next
		prev = next
	}
	return out, nil
}
