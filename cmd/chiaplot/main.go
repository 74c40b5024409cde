// Command chiaplot is a thin convenience wrapper over the plot package's
// Create function, in the spirit of pebble's own tool.New() command tree
// (design's Non-goals: "the command-line wrapper ... remain external
// collaborators ... not a feature this spec tests").
package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
	"github.com/guptarohit/asciigraph"
	"github.com/olekukonko/tablewriter"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/xdustinface/chiapos/internal/base"
	"github.com/xdustinface/chiapos/plot"
)

// phaseTimer turns plot.Config.Progress events into a per-phase duration
// series, the way cmd/pebble's namedHistogram tracks per-operation
// latency: one HDR histogram across every phase, plus a millisecond
// series printSummary renders as a sparkline.
type phaseTimer struct {
	hist    *hdrhistogram.Histogram
	current int
	start   time.Time
	series  []float64
}

func newPhaseTimer() *phaseTimer {
	return &phaseTimer{hist: hdrhistogram.New(1, int64(time.Hour/time.Microsecond), 3)}
}

func (pt *phaseTimer) progress(phase, _, _ int) {
	if phase == pt.current {
		return
	}
	pt.finishCurrent()
	pt.current = phase
	pt.start = time.Now()
}

func (pt *phaseTimer) finishCurrent() {
	if pt.start.IsZero() {
		return
	}
	d := time.Since(pt.start)
	_ = pt.hist.RecordValue(int64(d / time.Microsecond))
	pt.series = append(pt.series, float64(d/time.Millisecond))
	pt.start = time.Time{}
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var (
		tmpDir, tmp2Dir, finalDir, filename string
		idHex, memo                         string
		k                                   uint8
		bufMegabytes                        uint64
		numBuckets                          uint32
		stripeSize                          uint64
		numThreads                          int
		noBitfield                          bool
	)

	root := &cobra.Command{
		Use:   "chiaplot",
		Short: "Create a proof-of-space plot file",
		RunE: func(cmd *cobra.Command, args []string) error {
			idBytes, err := hex.DecodeString(idHex)
			if err != nil {
				return fmt.Errorf("--id must be 64 hex characters: %w", err)
			}
			var id [32]byte
			if n := copy(id[:], idBytes); n != 32 {
				return fmt.Errorf("--id must decode to exactly 32 bytes, got %d", n)
			}

			timer := newPhaseTimer()
			phaseLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
				Namespace: "chiaplot",
				Name:      "phase_duration_seconds",
				Help:      "wall-clock duration of each plotting phase",
				Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
			})

			cfg := plot.Config{
				TmpDir:       tmpDir,
				Tmp2Dir:      tmp2Dir,
				FinalDir:     finalDir,
				Filename:     filename,
				K:            k,
				ID:           id,
				Memo:         []byte(memo),
				BufMegabytes: bufMegabytes,
				NumBuckets:   numBuckets,
				StripeSize:   stripeSize,
				NumThreads:   numThreads,
				NoBitfield:   noBitfield,
				Logger:       base.DefaultLogger{},
				Progress:     timer.progress,
				PhaseLatency: phaseLatency,
			}
			if numBuckets != 0 {
				for shift := uint32(0); shift < 32; shift++ {
					if uint32(1)<<shift == numBuckets {
						cfg.LogNumBuckets = shift
						break
					}
				}
			}

			result, err := plot.Create(context.Background(), cfg)
			timer.finishCurrent()
			if err != nil {
				return err
			}
			printSummary(result, timer)
			return nil
		},
	}

	flags := root.Flags()
	flags.StringVar(&tmpDir, "tmp_dir", ".", "directory for first-pass temp files")
	flags.StringVar(&tmp2Dir, "tmp2_dir", "", "directory for the second-pass temp file (defaults to tmp_dir)")
	flags.StringVar(&finalDir, "final_dir", "", "directory for the finished plot (defaults to tmp_dir)")
	flags.StringVar(&filename, "filename", "plot.dat", "output plot filename")
	flags.StringVar(&idHex, "id", "", "32-byte plot id, hex-encoded")
	flags.StringVar(&memo, "memo", "", "plot memo")
	flags.Uint8Var(&k, "k", 32, "plot size parameter")
	flags.Uint64Var(&bufMegabytes, "buf_megabytes", plot.DefaultBufMegabytes, "sort buffer budget in MiB")
	flags.Uint32Var(&numBuckets, "num_buckets", 0, "sort bucket count, a power of two (0 = auto)")
	flags.Uint64Var(&stripeSize, "stripe_size", plot.DefaultStripeSize, "entries per phase 1 scan stripe")
	flags.IntVar(&numThreads, "num_threads", plot.DefaultNumThreads, "phase 1 worker threads")
	flags.BoolVar(&noBitfield, "nobitfield", false, "use the rewrite phase 2/3 variant instead of the bitfield one")

	return root
}

// printSummary renders final_table_begin_pointers the way pebble's tool/
// commands render their introspection tables, followed by a phase-latency
// sparkline in the spirit of cmd/pebble's namedHistogram summaries.
func printSummary(result *plot.Result, timer *phaseTimer) {
	fmt.Printf("wrote %s (%d bytes)\n", result.Path, result.Size)

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"table", "begin offset"})
	for i, ptr := range result.TableBeginPointers {
		label := fmt.Sprintf("table %d", i+1)
		switch i {
		case 7:
			label = "C1"
		case 8:
			label = "C2"
		case 9:
			label = "C3"
		}
		table.Append([]string{label, fmt.Sprintf("%d", ptr)})
	}
	table.Render()

	if len(timer.series) > 1 {
		fmt.Println(asciigraph.Plot(timer.series, asciigraph.Height(8), asciigraph.Caption("phase duration (ms)")))
	}
	fmt.Printf("mean phase duration: %.0fus, p99: %dus\n", timer.hist.Mean(), timer.hist.ValueAtQuantile(99))
}
