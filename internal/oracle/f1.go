// Package oracle defines the two collaborators the plotter core treats as
// out-of-scope black boxes (design §1): the f1 bit-stream generator for
// table 1 and the Fx matching predicate used to build tables 2..7. Both are
// documented here only by their call signature — "the ChaCha8-based f1
// bit-stream generator and the Fx matching functions... are the object of
// the separate calculate-bucket specification" — so this package exposes
// interfaces plus a placeholder default implementation that satisfies the
// contract (deterministic in (id, x) or (y) and cheap to call many
// millions of times) without claiming to reproduce the real cryptographic
// construction.
//
// The placeholders are built on cespare/xxhash/v2, the same keyed-digest
// library pebble's sstable/block package uses for block checksums
// (sstable/block/block.go), rather than on a hand-rolled hash: any fixed-
// width pseudo-random oracle in this corpus reaches for xxhash, not a
// bespoke mix function.
package oracle

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
)

// F1Generator produces the table-1 f1 value for a given x ∈ [0, 2^k). Real
// plots use a ChaCha8 stream keyed by the plot id; that construction is out
// of scope here.
type F1Generator interface {
	// F1 returns the (k+KExtraBits)-bit f1 value for x.
	F1(x uint64) uint64
}

// DefaultF1 is a placeholder F1Generator: deterministic in (id, x), cheap,
// and uniformly distributed enough to exercise the sort manager and
// matching logic, but not bit-exact to the real f1 construction.
type DefaultF1 struct {
	id      [32]byte
	k       uint8
	outBits uint32
}

// NewDefaultF1 returns a DefaultF1 keyed by id for plot-size parameter k,
// producing f1 values of k+extraBits bits.
func NewDefaultF1(id [32]byte, k uint8, extraBits uint32) *DefaultF1 {
	return &DefaultF1{id: id, k: k, outBits: uint32(k) + extraBits}
}

// F1 implements F1Generator.
func (g *DefaultF1) F1(x uint64) uint64 {
	var buf [40]byte
	copy(buf[:32], g.id[:])
	binary.BigEndian.PutUint64(buf[32:], x)
	h := xxhash.Sum64(buf[:])
	if g.outBits >= 64 {
		return h
	}
	return h & (uint64(1)<<g.outBits - 1)
}

var _ F1Generator = (*DefaultF1)(nil)
