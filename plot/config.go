// Package plot implements create_plot (design §6): it wires phases 1..4
// together over one id/k/memo, producing the final plot file at
// {final_dir}/{filename} from scratch files under {tmp_dir}/{tmp2_dir}.
//
// Config mirrors pebble's Options struct (options.go): a flat bag of
// knobs with an EnsureDefaults/Validate pair instead of a long
// constructor, so callers can build a Config literal and let the plotter
// fill in the rest.
package plot

import (
	"math/bits"

	"github.com/prometheus/client_golang/prometheus"

	chiaerrors "github.com/xdustinface/chiapos/errors"
	"github.com/xdustinface/chiapos/internal/base"
	"github.com/xdustinface/chiapos/internal/oracle"
	"github.com/xdustinface/chiapos/internal/retry"
	"github.com/xdustinface/chiapos/internal/sortmanager"
	"github.com/xdustinface/chiapos/internal/table"
	"github.com/xdustinface/chiapos/vfs"
)

// Defaults matching create_plot's abstract signature (design §6).
const (
	DefaultBufMegabytes = 4608
	DefaultStripeSize   = 65536
	DefaultNumThreads   = 2
)

// dynamicAllocFraction and dynamicAllocCapMiB reproduce
// CreatePlotDisk's sub_mbytes margin exactly: min(buf_megabytes*0.05, 50)
// MiB of the buffer budget is reserved for allocator overhead and is not
// available to the sort managers.
const (
	dynamicAllocFraction = 0.05
	dynamicAllocCapMiB   = 50
)

// threadStripeMargin is the empirical constant the admission check adds to
// stripe_size before sizing each worker's two scan buffers (design §9's
// open question: "the constant is empirical and should be surfaced as a
// named parameter" rather than inlined).
const threadStripeMargin = 5000

// Config bundles every create_plot parameter (design §6) plus the
// collaborators spec.md treats as external (the f1/Fx oracles, the
// logger, the retry policy, the storage namespace) so tests can substitute
// fakes the way phase1/phase2/phase3's own Config structs do.
type Config struct {
	TmpDir   string
	Tmp2Dir  string
	FinalDir string
	Filename string

	K    uint8
	ID   [32]byte
	Memo []byte

	BufMegabytes  uint64
	NumBuckets    uint32
	LogNumBuckets uint32
	StripeSize    uint64
	NumThreads    int
	NoBitfield    bool
	Strategy      sortmanager.Strategy

	F1      oracle.F1Generator
	Matcher oracle.Matcher

	FS     vfs.FS
	Logger base.Logger
	Policy *retry.Policy

	// Progress is invoked synchronously as (phase, n, maxN) throughout
	// phases 1..4; phase ∈ {1,2,3,4}. Phases 2 and 4 report (0, 1) then
	// (1, 1). Phases 1 and 3 interleave per-table reports (t, 7) with
	// count reports whose maxN is the size of the table being processed
	// and whose n restarts at every table, so n/maxN is not monotone
	// within those two phases.
	Progress func(phase, n, maxN int)

	// PhaseLatency, if set, records each phase's wall-clock duration in
	// seconds, the way wal.Options.FsyncLatency lets a caller plug a
	// Prometheus histogram into an optional observation point without
	// Create itself depending on any particular metrics backend.
	PhaseLatency prometheus.Histogram
}

// EnsureDefaults returns a copy of cfg with every zero-valued optional
// field replaced by its create_plot default, mirroring
// Options.EnsureDefaults.
func (cfg Config) EnsureDefaults() Config {
	if cfg.BufMegabytes == 0 {
		cfg.BufMegabytes = DefaultBufMegabytes
	}
	if cfg.StripeSize == 0 {
		cfg.StripeSize = DefaultStripeSize
	}
	if cfg.NumThreads == 0 {
		cfg.NumThreads = DefaultNumThreads
	}
	if cfg.NumBuckets == 0 {
		cfg.NumBuckets, cfg.LogNumBuckets = autoNumBuckets(cfg.K, cfg.BufMegabytes<<20)
	}
	if cfg.FS == nil {
		cfg.FS = vfs.Default
	}
	if cfg.Logger == nil {
		cfg.Logger = base.DefaultLogger{}
	}
	if cfg.Policy == nil {
		cfg.Policy = retry.NewPolicy()
	}
	if cfg.F1 == nil {
		cfg.F1 = oracle.NewDefaultF1(cfg.ID, cfg.K, table.KExtraBits)
	}
	if cfg.Matcher == nil {
		cfg.Matcher = oracle.DefaultMatcher{}
	}
	if cfg.Tmp2Dir == "" {
		cfg.Tmp2Dir = cfg.TmpDir
	}
	if cfg.FinalDir == "" {
		cfg.FinalDir = cfg.TmpDir
	}
	return cfg
}

// admission reproduces CreatePlotDisk's memory accounting: the dynamic
// allocation margin plus each worker thread's pair of stripe buffers must
// fit inside buf_megabytes, with the remainder available to the sort
// managers.
func (cfg Config) admission() (sortManagerBytes uint64, err error) {
	bufBytes := cfg.BufMegabytes << 20

	dynamicAllocBytes := uint64(float64(bufBytes) * dynamicAllocFraction)
	capBytes := uint64(dynamicAllocCapMiB) << 20
	if dynamicAllocBytes > capBytes {
		dynamicAllocBytes = capBytes
	}

	maxEntrySize := uint64(0)
	for t := uint8(1); t <= table.NumTables; t++ {
		if size := uint64(table.GetMaxEntrySize(cfg.K, t, true)); size > maxEntrySize {
			maxEntrySize = size
		}
	}
	threadMemory := uint64(cfg.NumThreads) * 2 * (cfg.StripeSize + threadStripeMargin) * maxEntrySize

	if dynamicAllocBytes+threadMemory >= bufBytes {
		return 0, chiaerrors.InsufficientMemoryf(
			"plot: buf_megabytes=%d cannot cover admission margin %d + thread memory %d",
			cfg.BufMegabytes, dynamicAllocBytes, threadMemory)
	}
	return bufBytes - dynamicAllocBytes - threadMemory, nil
}

// Validate checks every Config field against the constraints design §6
// and §8 bind it to: the k range, the bucket-count power-of-two and
// range constraints, the admission check, and the stripe-size floor
// (design §3 item 4: max_table_size/num_buckets must exceed
// stripe_size*30, or a single stripe could straddle more buckets than the
// sort manager can usefully prefetch).
func (cfg Config) Validate() error {
	if cfg.K < table.KMinPlotSize || cfg.K > table.KMaxPlotSize {
		return chiaerrors.InvalidValuef("plot: k=%d outside [%d, %d]", cfg.K, table.KMinPlotSize, table.KMaxPlotSize)
	}
	if cfg.Filename == "" {
		return chiaerrors.InvalidValuef("plot: filename is required")
	}
	if cfg.StripeSize == 0 {
		return chiaerrors.InvalidValuef("plot: stripe_size must be > 0")
	}
	if cfg.NumThreads < 1 {
		return chiaerrors.InvalidValuef("plot: num_threads must be >= 1")
	}
	if cfg.NumBuckets == 0 || cfg.NumBuckets != 1<<cfg.LogNumBuckets {
		return chiaerrors.InvalidValuef("plot: num_buckets %d is not 2^%d", cfg.NumBuckets, cfg.LogNumBuckets)
	}
	if cfg.NumBuckets < table.KMinBuckets || cfg.NumBuckets > table.KMaxBuckets {
		return chiaerrors.InvalidValuef("plot: num_buckets %d outside [%d, %d]", cfg.NumBuckets, table.KMinBuckets, table.KMaxBuckets)
	}

	if _, err := cfg.admission(); err != nil {
		return err
	}

	maxTableSize := uint64(1) << cfg.K
	if maxTableSize/uint64(cfg.NumBuckets) < cfg.StripeSize*30 {
		return chiaerrors.InvalidValuef(
			"plot: stripe_size=%d too large for num_buckets=%d at k=%d", cfg.StripeSize, cfg.NumBuckets, cfg.K)
	}
	return nil
}

// autoNumBuckets implements create_plot's auto-bucket formula (design §6):
// 2 * round_up_pow2(ceil(max_table_size / (memory_size * kMemSortProportion))),
// clamped to [kMinBuckets, kMaxBuckets].
func autoNumBuckets(k uint8, memorySize uint64) (numBuckets uint32, logNumBuckets uint32) {
	maxTableSize := uint64(1) << k
	usable := float64(memorySize) * table.KMemSortProportion
	if usable < 1 {
		usable = 1
	}
	raw := uint32(cdiv64(maxTableSize, uint64(usable)))
	if raw == 0 {
		raw = 1
	}
	n := 2 * roundUpPow2(raw)

	switch {
	case n < table.KMinBuckets:
		n = table.KMinBuckets
	case n > table.KMaxBuckets:
		n = table.KMaxBuckets
	}
	return n, uint32(bits.Len32(n - 1))
}

func cdiv64(a, b uint64) uint64 {
	return (a + b - 1) / b
}

func roundUpPow2(v uint32) uint32 {
	if v <= 1 {
		return 1
	}
	return 1 << bits.Len32(v-1)
}
