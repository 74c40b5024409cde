package phase1

// threadMemoryMargin is the empirical constant the admission check
// subtracts per worker, beyond the stripe's own entries, to cover the
// double-buffering of "current" and "in-flight next" stripes plus slack
// for matches spilling across a stripe boundary (design §4.4, open
// question in §9: "the constant is empirical and should be surfaced as a
// named parameter").
const threadMemoryMargin = 5000

// ThreadMemoryReservation returns the bytes phase 1 reserves across all
// worker stripe buffers, before any of it is available to the sort
// managers: two buffers of (stripeSize + threadMemoryMargin) entries per
// thread, sized by the largest entry any table in this run will produce.
func ThreadMemoryReservation(numThreads int, stripeSize uint64, maxEntrySize uint32) uint64 {
	perThread := 2 * (stripeSize + threadMemoryMargin) * uint64(maxEntrySize)
	return uint64(numThreads) * perThread
}
