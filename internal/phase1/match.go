package phase1

import (
	"context"
	"math/big"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/xdustinface/chiapos/internal/bitpack"
	"github.com/xdustinface/chiapos/internal/oracle"
	"github.com/xdustinface/chiapos/internal/sortmanager"
	"github.com/xdustinface/chiapos/internal/table"
)

// prevReader gives random access into the previous table's sorted-by-f
// entries, decoding either a Table1Entry (for table 1) or a ForwardEntry
// (for every later table) into the common (y, metadata) shape matchTable
// needs. Unlike a plain sequential scan, matchTable's stripe workers each
// read a disjoint index range concurrently, so this only ever does
// position-addressed reads.
type prevReader struct {
	mgr       *sortmanager.Manager
	entrySize uint32
	k         uint8
	isTable1  bool
	prevTable uint8
	size      uint64
}

func newPrevReader(mgr *sortmanager.Manager, entrySize uint32, k uint8, isTable1 bool, prevTable uint8, size uint64) *prevReader {
	return &prevReader{mgr: mgr, entrySize: entrySize, k: k, isTable1: isTable1, prevTable: prevTable, size: size}
}

// at returns entry index's (y, metadata) pair, the value phase 1 records as
// pos/offset when a later table matches against it.
func (r *prevReader) at(index uint64) (y uint64, metadata *big.Int, err error) {
	raw, err := r.mgr.ReadEntry(index * uint64(r.entrySize))
	if err != nil {
		return 0, nil, err
	}
	padded := bitpack.Pad(raw)
	if r.isTable1 {
		e := table.UnpackTable1Entry(padded, 0, r.k)
		return e.F1, new(big.Int).SetUint64(e.X), nil
	}
	e := table.UnpackForwardEntry(padded, 0, r.k, r.prevTable)
	return e.F, e.Metadata, nil
}

// maxOffsetIndex bounds how far back in index space a match partner may
// be: Offset is stored in KOffsetSize bits, so an index gap wider than
// that can never be represented, regardless of how close the two entries'
// y values are (only reachable with heavily duplicated y values). It also
// bounds how far a stripe worker needs to look behind its own range to
// rebuild the window state a sequential scan would have carried in from
// the previous stripe.
const maxOffsetIndex = 1<<table.KOffsetSize - 1

// matchTable scans prev's entries across cfg.NumThreads disjoint index
// stripes, keeping a per-worker sliding window of recently seen entries,
// and for every entry in its own stripe checks it against every window
// entry still close enough (in both y-distance and index-distance) to
// possibly match, per design §4.4 step 2. Each worker primes its window by
// reading up to maxOffsetIndex entries before its stripe's own start —
// the same span a sequential scan would still be holding in its window at
// that point — without treating them as matchable "current" entries,
// since the stripe that actually owns those indices already did. Matches
// are emitted into next, keyed implicitly by the table's own f
// (next.AddEntry bucket-routes on the entry's leading bits and serializes
// per-bucket internally, so concurrent workers never race on a bucket).
func matchTable(ctx context.Context, cfg Config, prev *prevReader, t uint8, next *sortmanager.Manager) (uint64, error) {
	type windowEntry struct {
		y     uint64
		meta  *big.Int
		index uint64
	}

	var mu sync.Mutex
	nextStripe := uint64(0)
	doneCount := uint64(0)
	claimStripe := func() (uint64, uint64, bool) {
		mu.Lock()
		defer mu.Unlock()
		if nextStripe >= prev.size {
			return 0, 0, false
		}
		start := nextStripe
		end := start + cfg.StripeSize
		if end > prev.size {
			end = prev.size
		}
		nextStripe = end
		return start, end, true
	}
	reportDone := func(n uint64) {
		if cfg.Progress == nil {
			return
		}
		mu.Lock()
		doneCount += n
		cfg.Progress(1, int(doneCount), int(prev.size))
		mu.Unlock()
	}

	var count uint64
	g, _ := errgroup.WithContext(ctx)
	for i := 0; i < cfg.NumThreads; i++ {
		g.Go(func() error {
			for {
				start, end, ok := claimStripe()
				if !ok {
					return nil
				}

				contextStart := uint64(0)
				if start > maxOffsetIndex {
					contextStart = start - maxOffsetIndex
				}

				var window []windowEntry
				for index := contextStart; index < end; index++ {
					y, meta, err := prev.at(index)
					if err != nil {
						return err
					}

					trim := 0
					for trim < len(window) &&
						(y-window[trim].y > oracle.MaxMatchOffset || index-window[trim].index > maxOffsetIndex) {
						trim++
					}
					window = window[trim:]

					if index >= start {
						for _, l := range window {
							if !cfg.Matcher.Matches(l.y, y) {
								continue
							}
							f, metadata := cfg.Matcher.ComputeFx(t, l.y, l.meta, meta, cfg.K)
							out := table.MatchEntry{F: f, Pos: l.index, Offset: index - l.index, Metadata: metadata}
							w := bitpack.NewWriter()
							table.PackForwardEntry(w, cfg.K, t, out)
							if err := next.AddEntry(w.Bytes()); err != nil {
								return err
							}
							atomic.AddUint64(&count, 1)
						}
					}
					window = append(window, windowEntry{y: y, meta: meta, index: index})
				}

				reportDone(end - start)
			}
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}
	return count, nil
}
