// Package phase2 implements back-propagation (design §4.5): walking
// tables 7 down to 2, it determines which entries of each table are
// reachable from table 7's output, so phase 3 can skip the dead ones.
//
// Two implementations exist, selected by Config.NoBitfield, matching the
// source's own bifurcation (design §9's note that the rewrite variant
// predates the bitfield one and is kept only for k below an undocumented
// heuristic threshold):
//
//   - The bitfield variant (preferred) never rewrites a table file: it
//     hands phase 3 a bitfield per table plus the original, untouched
//     sort manager, which phase 3 wraps in a vfs.Filtered view.
//   - The rewrite variant physically drops dead entries and renumbers the
//     survivors to a dense id sequence, producing a smaller replacement
//     file per table. It exists for parity with the legacy path; the
//     bitfield variant is equivalent and cheaper, and is the default.
package phase2

import (
	chiaerrors "github.com/xdustinface/chiapos/errors"
	"github.com/xdustinface/chiapos/internal/base"
	"github.com/xdustinface/chiapos/internal/bitfield"
	"github.com/xdustinface/chiapos/internal/phase1"
	"github.com/xdustinface/chiapos/internal/retry"
	"github.com/xdustinface/chiapos/internal/table"
	"github.com/xdustinface/chiapos/vfs"
)

// Config bundles phase 2's construction parameters.
type Config struct {
	K          uint8
	NoBitfield bool

	FS         vfs.FS
	Logger     base.Logger
	Policy     *retry.Policy
	TmpDir     string
	FilePrefix string
}

// Result is phase 3's input: for every table 1..7, a Disk to read entries
// from (the bitfield variant's is the original phase 1 manager; the
// rewrite variant's is a fresh, dense replacement file) plus the number of
// entries readable from it — already pruned down to survivors for the
// rewrite variant, or the original count for the bitfield variant (phase
// 3 must additionally skip through Filters[t] in that case).
type Result struct {
	Disks      [table.NumTables + 1]vfs.Disk
	TableSizes [table.NumTables + 1]uint64
	// Filters[t] is non-nil only in the bitfield variant, for t in
	// [1, NumTables-1]: table NumTables is never filtered, since nothing
	// above it prunes it.
	Filters [table.NumTables + 1]*bitfield.Bitfield
}

// Run executes back-propagation over phase1Result.
func Run(cfg Config, phase1Result *phase1.Result) (*Result, error) {
	if cfg.K == 0 || cfg.K > table.KMaxPlotSize {
		return nil, chiaerrors.InvalidValuef("phase2: k=%d outside (0, %d]", cfg.K, table.KMaxPlotSize)
	}
	if cfg.NoBitfield {
		return runRewrite(cfg, phase1Result)
	}
	return runBitfield(cfg, phase1Result)
}
