package oracle

import (
	"math/big"

	"github.com/cespare/xxhash/v2"
)

// kExtraBits mirrors table.KExtraBits without importing the table package,
// to avoid a dependency cycle (table does not need to know about oracle).
// 2^kExtraBits is the number of match targets the real algorithm checks
// per bucket pair, which is where the matching predicate's "64 match
// targets" (design §4.4) comes from.
const kExtraBits = 6
const numMatchTargets = 1 << kExtraBits

// MaxMatchOffset bounds how far ahead, in sorted-y order, a caller ever
// needs to look for a matching partner: DefaultMatcher accepts yR-yL
// differences in [-MaxMatchOffset, MaxMatchOffset), so a streaming matcher
// that pairs each entry only with entries at or after it in a sorted stream
// sees differences in [0, MaxMatchOffset) and only needs a sliding window
// of this many entries behind the current one (phase 1's
// forward-propagation scan relies on this).
const MaxMatchOffset = numMatchTargets / 2

// Matcher decides whether two entries from adjacent buckets of table t-1
// match, and computes table t's f and metadata from a matched pair. Real
// plots use the Fx function family (f2..f7); that construction is out of
// scope here (design §1) — Matcher documents only the call shape phase 1
// needs.
type Matcher interface {
	// Matches reports whether (yL, yR), the bucket-coordinate values of
	// two entries from adjacent buckets, satisfy one of the match targets.
	Matches(yL, yR uint64) bool
	// ComputeFx derives table t's f value and metadata from a matched
	// pair's shared y and their table t-1 metadata.
	ComputeFx(t uint8, y uint64, metaL, metaR *big.Int, k uint8) (f uint64, metadata *big.Int)
}

// DefaultMatcher is a placeholder Matcher: Matches is a deterministic,
// roughly-1-in-64 predicate derived from yL (mirroring the real algorithm's
// shape of "bucket parity decides which 64 of many candidate offsets are
// legal targets, then check if yR - yL lands on one"), and ComputeFx mixes
// y with both halves' metadata through xxhash. Neither reproduces the real
// Fx construction.
type DefaultMatcher struct{}

// Matches implements Matcher.
func (DefaultMatcher) Matches(yL, yR uint64) bool {
	parity := yL % 2
	target := matchTargets[parity][(yL/2)%numMatchTargets]
	diff := int64(yR) - int64(yL)
	return diff == target
}

// matchTargets[parity] lists the numMatchTargets offsets a yL of the given
// parity accepts, spread out so every yL has some candidate yR reachable
// within a couple of adjacent buckets (the real algorithm's rmatch table
// plays the same role with different, specific offsets).
var matchTargets = [2][numMatchTargets]int64{}

func init() {
	for parity := 0; parity < 2; parity++ {
		for i := 0; i < numMatchTargets; i++ {
			matchTargets[parity][i] = int64(i) - numMatchTargets/2
		}
	}
}

// ComputeFx implements Matcher.
func (DefaultMatcher) ComputeFx(t uint8, y uint64, metaL, metaR *big.Int, k uint8) (uint64, *big.Int) {
	h := xxhash.New()
	var buf [9]byte
	buf[0] = t
	for i := 0; i < 8; i++ {
		buf[i+1] = byte(y >> (8 * i))
	}
	_, _ = h.Write(buf[:])
	if metaL != nil {
		_, _ = h.Write(metaL.Bytes())
	}
	if metaR != nil {
		_, _ = h.Write(metaR.Bytes())
	}
	sum := h.Sum64()

	outBits := uint32(k) + kExtraBits
	f := sum
	if outBits < 64 {
		f &= uint64(1)<<outBits - 1
	}

	metadata := new(big.Int)
	if metaL != nil {
		metadata.Xor(metadata, metaL)
	}
	if metaR != nil {
		metadata.Xor(metadata, metaR)
	}
	metadata.Xor(metadata, new(big.Int).SetUint64(sum))
	return f, metadata
}

var _ Matcher = DefaultMatcher{}
