package sortmanager

import (
	"math/bits"

	"github.com/xdustinface/chiapos/internal/bitpack"
)

// uniformOverheadNumerator/Denominator size the slot array a bucket's
// entries are scattered into: 10% more slots than entries, a margin that
// keeps linear-probe chains short when keys really are close to uniform.
const (
	uniformOverheadNumerator   = 11
	uniformOverheadDenominator = 10
)

// isPositionEmpty reports whether the entryLen bytes starting at off in
// memory are the all-zero sentinel uniformSortInto leaves in unused slots.
// A genuine all-zero entry (possible in bucket 0) is indistinguishable
// from the sentinel: uniformSortInto treats its slot as free and the entry
// is lost, which sortBucketLocked detects by the short result and answers
// by sorting the bucket with quicksort instead.
func isPositionEmpty(memory []byte, off uint64, entryLen uint32) bool {
	for i := uint32(0); i < entryLen; i++ {
		if memory[off+uint64(i)] != 0 {
			return false
		}
	}
	return true
}

// keyAt extracts the keyBits-wide key starting at bitsBegin from the
// entryLen-byte record at byte offset off in memory, using scratch as
// padded backing when off's record runs past memory's end minus
// bitpack.TailPadding, the same slack SliceUint64 needs past the bits it
// reads.
func keyAt(memory []byte, off uint64, entryLen, bitsBegin, keyBits uint32, scratch []byte) uint64 {
	end := off + uint64(entryLen)
	if end+uint64(bitpack.TailPadding) <= uint64(len(memory)) {
		return bitpack.SliceUint64(memory[off:], bitsBegin, keyBits)
	}
	copy(scratch, memory[off:end])
	for j := entryLen; j < entryLen+bitpack.TailPadding; j++ {
		scratch[j] = 0
	}
	return bitpack.SliceUint64(scratch, bitsBegin, keyBits)
}

// uniformSortInto sorts numEntries entryLen-byte records read from src
// (bits_begin bits into each entry is where the post-bucket key starts,
// keyBits wide) into dst, which must be zeroed and sized for at least
// uniformSlotCount(numEntries) entries. Entries are placed by a slot
// computed from their key's high-order bits; on collision the incoming
// record is inserted in place and the occupant is displaced onward only if
// the occupant's key is strictly greater, otherwise the incoming record
// keeps probing forward past it. Iterating that invariant to a fixed point
// is insertion sort run across the probe sequence instead of an array
// index, so dst's populated slots, read back in order, come out in
// ascending key order as long as no probe run passes the last slot.
// Probing wraps to slot 0, and an entry a wrapped run leaves there comes
// out ahead of smaller keys.
func uniformSortInto(dst []byte, src []byte, numEntries uint64, entryLen uint32, bitsBegin uint32, keyBits uint32) {
	numSlots := uniformSlotCount(numEntries)
	if keyBits > 64 {
		keyBits = 64
	}

	// SliceUint64 requires bitpack.TailPadding bytes of addressable slack
	// past the bits it reads; every entry but the last has the next entry
	// immediately following it in src to serve as that slack, so only the
	// last needs an explicit padded copy.
	padded := make([]byte, entryLen+bitpack.TailPadding)
	dstScratch := make([]byte, entryLen+bitpack.TailPadding)
	cur := make([]byte, entryLen)
	swap := make([]byte, entryLen)

	for i := uint64(0); i < numEntries; i++ {
		lo, hi := i*uint64(entryLen), (i+1)*uint64(entryLen)
		var entry []byte
		if hi+bitpack.TailPadding <= uint64(len(src)) {
			entry = src[lo : hi+bitpack.TailPadding]
		} else {
			copy(padded, src[lo:hi])
			for j := entryLen; j < entryLen+bitpack.TailPadding; j++ {
				padded[j] = 0
			}
			entry = padded
		}
		key := bitpack.SliceUint64(entry, bitsBegin, keyBits)
		slot := scaleToSlot(key, keyBits, numSlots)
		copy(cur, entry[:entryLen])

		for {
			off := slot * uint64(entryLen)
			if isPositionEmpty(dst, off, entryLen) {
				copy(dst[off:off+uint64(entryLen)], cur)
				break
			}
			occupantKey := keyAt(dst, off, entryLen, bitsBegin, keyBits, dstScratch)
			if occupantKey > key {
				copy(swap, dst[off:off+uint64(entryLen)])
				copy(dst[off:off+uint64(entryLen)], cur)
				copy(cur, swap)
				key = occupantKey
			}
			slot = (slot + 1) % numSlots
		}
	}
}

// scaleToSlot maps a keyBits-wide key into [0, numSlots) by its high-order
// bits, the way a radix/bucket sort selects a bucket from a key prefix:
// floor(key * numSlots / 2^keyBits), with the product taken at 128 bits so
// it cannot overflow.
func scaleToSlot(key uint64, keyBits uint32, numSlots uint64) uint64 {
	if keyBits == 0 {
		return 0
	}
	hi, lo := bits.Mul64(key, numSlots)
	if keyBits >= 64 {
		return hi
	}
	return hi<<(64-keyBits) | lo>>keyBits
}

// uniformSlotCount returns the slot array size uniformSortInto needs for
// numEntries entries.
func uniformSlotCount(numEntries uint64) uint64 {
	return numEntries*uniformOverheadNumerator/uniformOverheadDenominator + 1
}

// compactSorted scans a uniform-sorted slot array (entryLen bytes per slot,
// slotCount slots, with isPositionEmpty marking unused ones) and returns
// the occupied entries packed contiguously in slot order.
func compactSorted(slots []byte, slotCount uint64, entryLen uint32) []byte {
	out := make([]byte, 0, slotCount*uint64(entryLen))
	for s := uint64(0); s < slotCount; s++ {
		off := s * uint64(entryLen)
		if off+uint64(entryLen) > uint64(len(slots)) {
			break
		}
		if !isPositionEmpty(slots, off, entryLen) {
			out = append(out, slots[off:off+uint64(entryLen)]...)
		}
	}
	return out
}
