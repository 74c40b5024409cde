// Copyright 2014 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

//go:build linux

package plot

import (
	"golang.org/x/sys/unix"

	"github.com/xdustinface/chiapos/internal/base"
)

// targetNoFile is the reference implementation's hard-coded RLIMIT_NOFILE
// target: eight temp files plus up to kMaxBuckets sort-bucket files per
// phase, with headroom.
const targetNoFile = 600

// raiseFileDescriptorLimit is the Go-idiomatic equivalent of the original's
// rlimit bump (design §3 item 1 of SPEC_FULL.md): best-effort, logged, never
// fatal — a plot with too few open buckets fails loudly later at the first
// open() instead.
func raiseFileDescriptorLimit(logger base.Logger) {
	var rlimit unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_NOFILE, &rlimit); err != nil {
		logger.Infof("plot: getrlimit(RLIMIT_NOFILE) failed: %v", err)
		return
	}
	if rlimit.Cur >= targetNoFile {
		return
	}
	want := rlimit.Max
	if want > targetNoFile {
		want = targetNoFile
	}
	rlimit.Cur = want
	if err := unix.Setrlimit(unix.RLIMIT_NOFILE, &rlimit); err != nil {
		logger.Infof("plot: setrlimit(RLIMIT_NOFILE, %d) failed: %v", want, err)
		return
	}
	logger.Infof("plot: raised RLIMIT_NOFILE to %d", want)
}
