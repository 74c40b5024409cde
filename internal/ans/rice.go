// Package ans implements the variable-length code a park's delta block and
// a C3 checkpoint park are compressed with (design §3, §4.6, §4.7). The
// real plot format uses an ANS (range) coder keyed by (table, R) where R is
// the expected average delta value; no implementation of that coder (only
// its call sites) was available in the retrieved reference material, so
// this package substitutes a Golomb-Rice code, which is the standard
// textbook choice for encoding a stream whose values are geometrically
// distributed around a known mean — exactly what R describes — and is
// simple enough to keep bit-exact and round-trip-testable. See DESIGN.md
// for the substitution rationale.
package ans

import (
	"math"
	"math/bits"

	"github.com/xdustinface/chiapos/internal/bitpack"
)

// riceParameter picks the Rice code's remainder width k from the expected
// average value r: the optimal k for a geometric source with mean r is
// close to log2(r) (Golomb's original result, specialized to a power-of-
// two divisor).
func riceParameter(r float64) uint32 {
	if r < 1 {
		return 0
	}
	return uint32(bits.Len64(uint64(math.Round(r))) - 1)
}

// EncodeDeltas appends the Rice code of each value in deltas to w, using a
// parameter derived from the average value r (KMaxAverageDelta or
// KMaxAverageDeltaTable1 in the caller).
func EncodeDeltas(w *bitpack.Writer, deltas []uint64, r float64) {
	k := riceParameter(r)
	mask := uint64(1)<<k - 1
	for _, v := range deltas {
		q := v >> k
		for ; q > 0; q-- {
			w.WriteUint64(1, 1)
		}
		w.WriteUint64(0, 1)
		if k > 0 {
			w.WriteUint64(v&mask, k)
		}
	}
}

// DecodeDeltas reads count Rice-coded values out of buf starting at
// startBit, using the same parameter EncodeDeltas used for r.
func DecodeDeltas(buf []byte, startBit uint32, count int, r float64) []uint64 {
	k := riceParameter(r)
	out := make([]uint64, count)
	pos := startBit
	for i := 0; i < count; i++ {
		var q uint64
		for bitpack.SliceUint64(buf, pos, 1) == 1 {
			q++
			pos++
		}
		pos++ // consume the terminating zero
		var rem uint64
		if k > 0 {
			rem = bitpack.SliceUint64(buf, pos, k)
			pos += k
		}
		out[i] = q<<k | rem
	}
	return out
}

// EncodedBits returns the number of bits EncodeDeltas would emit for
// deltas under parameter r, without actually encoding them — used to size
// a park's delta-length field ahead of writing. A count that does not fit
// in a uint32 is returned as math.MaxUint32.
func EncodedBits(deltas []uint64, r float64) uint32 {
	k := riceParameter(r)
	var total uint64
	for _, v := range deltas {
		total += min(v>>k, math.MaxUint32) + 1 + uint64(k)
		if total >= math.MaxUint32 {
			return math.MaxUint32
		}
	}
	return uint32(total)
}
