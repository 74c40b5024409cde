package sortmanager

import (
	"bytes"
	"sort"
)

// quicksortInto sorts numEntries entryLen-byte records read from src into
// dst (same size as src) by byte-lexicographic order of the whole record.
// With begin_bits 0, as every Manager in this module is configured, the
// bucket-selecting bits lead each record and are shared within a bucket,
// so comparing the full record is equivalent to comparing only the key
// region the design calls out (begin_bits onward) — there is no
// per-record slicing needed, unlike Uniform which must read the key out to
// pick a slot.
//
// There is no third-party sort usable here: every sort-related dependency
// in the corpus (pebble's batchskl, arenaskl) sorts structured keyed
// entries behind a skiplist, not a flat byte-record array, so this stays
// on sort.Slice plus an index permutation rather than importing one of
// those for an unrelated shape of data.
func quicksortInto(dst []byte, src []byte, numEntries uint64, entryLen uint32) {
	idx := make([]uint64, numEntries)
	for i := range idx {
		idx[i] = uint64(i)
	}
	sort.Slice(idx, func(i, j int) bool {
		a := src[idx[i]*uint64(entryLen) : (idx[i]+1)*uint64(entryLen)]
		b := src[idx[j]*uint64(entryLen) : (idx[j]+1)*uint64(entryLen)]
		return bytes.Compare(a, b) < 0
	})
	for i, srcIdx := range idx {
		off := uint64(i) * uint64(entryLen)
		srcOff := srcIdx * uint64(entryLen)
		copy(dst[off:off+uint64(entryLen)], src[srcOff:srcOff+uint64(entryLen)])
	}
}
