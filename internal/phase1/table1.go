package phase1

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/xdustinface/chiapos/internal/bitpack"
	"github.com/xdustinface/chiapos/internal/sortmanager"
	"github.com/xdustinface/chiapos/internal/table"
)

// runTable1 evaluates f1 over [0, 2^k) in cfg.NumThreads concurrent
// stripes of cfg.StripeSize consecutive x values, appending each (f1, x)
// entry to mgr. AddEntry is safe under concurrent calls against different
// buckets (design §4.3), so workers don't serialize on anything but the
// shared stripe cursor.
func runTable1(ctx context.Context, cfg Config, mgr *sortmanager.Manager) error {
	total := uint64(1) << cfg.K

	var mu sync.Mutex
	nextStripe := uint64(0)
	doneCount := uint64(0)
	claimStripe := func() (uint64, uint64, bool) {
		mu.Lock()
		defer mu.Unlock()
		if nextStripe >= total {
			return 0, 0, false
		}
		start := nextStripe
		end := start + cfg.StripeSize
		if end > total {
			end = total
		}
		nextStripe = end
		return start, end, true
	}
	// reportDone serializes progress reporting through the same mutex
	// stripes are claimed with, so n is reported non-decreasing even
	// though stripes are processed concurrently and may finish out of
	// claim order.
	reportDone := func(n uint64) {
		if cfg.Progress == nil {
			return
		}
		mu.Lock()
		doneCount += n
		cfg.Progress(1, int(doneCount), int(total))
		mu.Unlock()
	}

	g, _ := errgroup.WithContext(ctx)
	for i := 0; i < cfg.NumThreads; i++ {
		g.Go(func() error {
			for {
				start, end, ok := claimStripe()
				if !ok {
					return nil
				}
				for x := start; x < end; x++ {
					e := table.Table1Entry{F1: cfg.F1.F1(x), X: x}
					w := bitpack.NewWriter()
					e.Pack(w, cfg.K)
					if err := mgr.AddEntry(w.Bytes()); err != nil {
						return err
					}
				}
				reportDone(end - start)
			}
		})
	}
	return g.Wait()
}
