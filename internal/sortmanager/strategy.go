// Package sortmanager implements the plotter's external, bucket-partitioned
// sort (design §4.3): entries are scattered into num_buckets on-disk
// scratch files by a fixed-width key prefix as they arrive, and later
// replayed in globally sorted order by sorting one bucket into RAM at a
// time. Because the bucket index already is the entries' most-significant
// key bits, sorting each bucket independently and concatenating them
// produces a fully sorted stream without ever holding more than one
// bucket in memory.
//
// The package is grounded on sort_manager.hpp/uniformsort.hpp/quicksort.hpp
// in the reference implementation, re-expressed with pebble's FileDisk/
// Buffered split (vfs.FileDisk, vfs.Buffered) standing in for the original
// FileDisk/BufferedDisk pair, and pebble's internal/rate.Limiter
// (internal/rate, §9) throttling how often TriggerNewBucket logs progress
// rather than gating any actual I/O.
package sortmanager

// Strategy selects how a single bucket is sorted into memory on emit.
type Strategy uint8

const (
	// Uniform places every entry by a slot derived from its key's
	// high-order bits, linear-probing on collision. It is fast (near
	// linear) when the bucket's keys really are uniformly distributed
	// across the slot range, which holds for every bucket except
	// possibly the last (the id-space tail is not perfectly dense).
	Uniform Strategy = iota
	// Quicksort falls back to an ordinary comparison sort, used for
	// buckets where Uniform's memory precondition is not met.
	Quicksort
	// QuicksortLast is Uniform for every bucket except the last, which
	// is sorted with Quicksort — the reference implementation's
	// documented accommodation for the last bucket's skewed
	// distribution.
	QuicksortLast
)

func (s Strategy) String() string {
	switch s {
	case Uniform:
		return "uniform"
	case Quicksort:
		return "quicksort"
	case QuicksortLast:
		return "quicksort_last"
	default:
		return "unknown"
	}
}

// useUniform reports whether bucket bucketIndex of numBuckets total should
// be sorted with the Uniform strategy under s.
func (s Strategy) useUniform(bucketIndex, numBuckets uint32) bool {
	switch s {
	case Uniform:
		return true
	case QuicksortLast:
		return bucketIndex != numBuckets-1
	default:
		return false
	}
}
