// Package table holds the plot format's fixed constants and the per-table,
// per-phase entry layouts built on top of them (design §3, §4.4-4.6),
// grounded on entry_sizes.cpp's formulas from the reference implementation.
//
// pos_constants.hpp, which originally defines the numeric values below, was
// not part of the retrieved reference material (only entry_sizes.cpp's
// formulas were available, which consume but don't define these
// constants). The values here are the well-known chiapos plot-format
// constants; see DESIGN.md for the open-question note.
package table

// NumTables is the number of intermediate relations the plot format
// builds, t ∈ [1, NumTables].
const NumTables = 7

const (
	// KExtraBits is the number of extra bits appended to f1 beyond k, the
	// "kExtraBits" of the design's data model.
	KExtraBits = 6

	// KOffsetSize is the bit width of the offset half of a (pos, offset)
	// back-pointer.
	KOffsetSize = 10

	// KStubMinusBits trims a park's per-entry stub width from k down to
	// k - KStubMinusBits bits, with the remaining high bits ANS-encoded as
	// a delta.
	KStubMinusBits = 1

	// KCheckpoint1Interval is the number of table-7 f7 values between
	// successive C1 checkpoints, and the number of C1 checkpoints between
	// successive C2 checkpoints.
	KCheckpoint1Interval = 10000

	// KEntriesPerPark (EPP) is the number of consecutive sorted entries a
	// single park encodes.
	KEntriesPerPark = 2048

	// KMinPlotSize and KMaxPlotSize bound the supported k range.
	KMinPlotSize = 18
	KMaxPlotSize = 50

	// KMinBuckets and KMaxBuckets bound num_buckets.
	KMinBuckets = 16
	KMaxBuckets = 1 << 16

	// KIdLen is the byte length of the plot id.
	KIdLen = 32

	// KMemSortProportion is the fraction of memory_size usable by the sort
	// manager's scratch regions when auto-selecting num_buckets.
	KMemSortProportion = 0.75

	// KMaxAverageDelta and KMaxAverageDeltaTable1 are the ANS range
	// parameter R for tables >=2 and table 1 respectively: the expected
	// average value of a park's high-order deltas, used to size both the
	// codec's range and CalculateMaxDeltasSize's worst-case allocation.
	KMaxAverageDelta       = 3.5
	KMaxAverageDeltaTable1 = 5.6

	// KC3BitsPerEntry bounds the average number of bits the C3 codec
	// spends per table-7 entry, used by CalculateC3Size for k >= 20.
	KC3BitsPerEntry = 2.4
)

// KFormatDescription identifies the plot format version written into the
// header.
const KFormatDescription = "v1.0"

// KVectorLens holds, for table index t (1-indexed), the number of k-bit
// words of metadata carried forward into table t+1's entry -- indexed here
// by t+1 as entry_sizes.cpp does (kVectorLens[table_index+1]).
var KVectorLens = [8]uint32{0, 0, 1, 2, 4, 4, 3, 2}
