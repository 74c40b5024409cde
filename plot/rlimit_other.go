// Copyright 2014 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

//go:build !linux

package plot

import "github.com/xdustinface/chiapos/internal/base"

// raiseFileDescriptorLimit is a no-op outside Linux: Go's RLIMIT_NOFILE
// story on darwin/windows is not worth the platform-specific syscalls for a
// best-effort bump the original itself only logs about.
func raiseFileDescriptorLimit(logger base.Logger) {
	logger.Infof("plot: RLIMIT_NOFILE bump skipped on this platform")
}
