// Package base holds small, dependency-free types shared by every layer of
// the plotter: the logging interface and (eventually) other cross-cutting
// primitives that don't belong in any one phase.
package base

import (
	"fmt"
	"log"
	"os"
)

// Logger defines an interface for writing log messages. Every phase takes
// one of these instead of calling the log package directly, so a caller
// embedding the plotter can route output anywhere (or nowhere).
type Logger interface {
	Infof(format string, args ...interface{})
	Fatalf(format string, args ...interface{})
}

// DefaultLogger logs to the Go stdlib logs.
type DefaultLogger struct{}

// Infof implements the Logger.Infof interface.
func (DefaultLogger) Infof(format string, args ...interface{}) {
	_ = log.Output(2, fmt.Sprintf(format, args...))
}

// Fatalf implements the Logger.Fatalf interface.
func (DefaultLogger) Fatalf(format string, args ...interface{}) {
	_ = log.Output(2, fmt.Sprintf(format, args...))
	os.Exit(1)
}

// NoopLogger discards everything. Useful for tests that exercise phases
// without wanting the progress narration on stderr.
type NoopLogger struct{}

// Infof implements the Logger.Infof interface.
func (NoopLogger) Infof(string, ...interface{}) {}

// Fatalf implements the Logger.Fatalf interface. Unlike DefaultLogger it
// does not call os.Exit, since tests need to keep running after exercising
// a fatal code path; callers that reach Fatalf in a NoopLogger context are
// expected to also check the returned error.
func (NoopLogger) Fatalf(string, ...interface{}) {}

var _ Logger = DefaultLogger{}
var _ Logger = NoopLogger{}
