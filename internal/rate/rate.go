// Copyright 2023 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package rate provides a rate limiter.
package rate

import (
	"sync"

	"github.com/cockroachdb/tokenbucket"
)

// A Limiter controls how frequently events are allowed to happen.
// It implements a "token bucket" of size b, initially full and refilled
// at rate r tokens per second.
//
// Informally, in any large enough time interval, the Limiter limits the
// rate to r tokens per second, with a maximum burst size of b events.
//
// Limiter is thread-safe. Only the non-blocking TryAcquire is implemented
// here; sortmanager's bucket progress log is the only caller, and it never
// wants to stall on the hot ingest path waiting for tokens to regenerate.
type Limiter struct {
	mu struct {
		sync.Mutex
		tb tokenbucket.TokenBucket
	}
}

// NewLimiter returns a new Limiter that allows events up to rate r and permits
// bursts of at most b tokens.
func NewLimiter(r float64, b float64) *Limiter {
	l := &Limiter{}
	l.mu.tb.Init(tokenbucket.TokensPerSecond(r), tokenbucket.Tokens(b))
	return l
}

// TryAcquire attempts to fulfill n tokens without blocking. It reports
// whether the tokens were available; callers that only want to throttle how
// often they do something non-essential (like emitting a progress log line)
// should use this instead of blocking on the bucket refilling.
func (l *Limiter) TryAcquire(n float64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	ok, _ := l.mu.tb.TryToFulfill(tokenbucket.Tokens(n))
	return ok
}
