package phase3

import (
	"github.com/cockroachdb/swiss"

	chiaerrors "github.com/xdustinface/chiapos/errors"
	"github.com/xdustinface/chiapos/internal/bitpack"
	"github.com/xdustinface/chiapos/internal/sortmanager"
	"github.com/xdustinface/chiapos/internal/table"
)

// maxOffsetIndex bounds how far forward, in dense-position space, a table's
// pos+offset back-pointer can reach: Offset is stored in KOffsetSize bits,
// mirroring phase1's matchTable window bound.
const maxOffsetIndex = 1<<table.KOffsetSize - 1

// renumberJoin streams a table's renumber map (old dense position -> new
// line-point-rank sort key, ascending by old position) and answers lookups
// for the current row's pos and pos+offset, per design §4.6 step 2. Since
// the caller visits rows in ascending pos order (phase 3 sorts table t by
// pos before joining), advance(pos) only ever needs to look ahead by
// maxOffsetIndex entries and can safely drop everything behind pos,
// keeping the window's memory bounded regardless of table size. The
// window is a swiss.Map rather than a builtin map because every advance()
// call inserts new entries into it and evicts old ones across a table with
// up to 2^k entries, and open-addressed probing keeps that churn cheap (the same
// tradeoff the cache package's block map makes).
type renumberJoin struct {
	mgr       *sortmanager.Manager
	entrySize uint32
	k         uint8
	size      uint64

	nextIdx uint64
	window  swiss.Map[uint64, uint64]
	evict   []uint64
}

func newRenumberJoin(mgr *sortmanager.Manager, entrySize uint32, k uint8, size uint64) *renumberJoin {
	j := &renumberJoin{mgr: mgr, entrySize: entrySize, k: k, size: size}
	j.window.Init(maxOffsetIndex + 1)
	return j
}

// advance fills the window up through pos+maxOffsetIndex (or the end of
// the map) and drops every entry behind pos, which no future call can ever
// need again.
func (j *renumberJoin) advance(pos uint64) error {
	target := pos + maxOffsetIndex
	if target >= j.size {
		target = j.size - 1
	}
	for j.nextIdx <= target && j.nextIdx < j.size {
		raw, err := j.mgr.ReadEntry(j.nextIdx * uint64(j.entrySize))
		if err != nil {
			return err
		}
		re := table.UnpackRenumberEntry(bitpack.Pad(raw), 0, j.k)
		j.window.Put(re.OldSortKey, re.NewSortKey)
		j.nextIdx++
	}

	j.evict = j.evict[:0]
	j.window.All(func(old, _ uint64) bool {
		if old < pos {
			j.evict = append(j.evict, old)
		}
		return true
	})
	for _, old := range j.evict {
		j.window.Delete(old)
	}
	return nil
}

// lookup returns the new sort key for a previously-advanced-to old
// position.
func (j *renumberJoin) lookup(oldPos uint64) (uint64, error) {
	v, ok := j.window.Get(oldPos)
	if !ok {
		return 0, chiaerrors.Corruptionf("phase3: renumber map has no entry for position %d", oldPos)
	}
	return v, nil
}
