// Package errors defines the plotter's error taxonomy on top of
// github.com/cockroachdb/errors. It mirrors the shape of pebble's own
// errors package (a thin wrapper type plus re-exported constructors) rather
// than introducing a parallel error-handling convention.
package errors

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// Sentinels identifying the taxonomy from the design's error-handling
// section. Use errors.Is against these to classify a returned error.
var (
	// ErrInvalidValue marks an error as a parameter precondition violation
	// (bad k, bucket count, or stripe size).
	ErrInvalidValue = errors.New("invalid value")
	// ErrInsufficientMemory marks an admission-check failure or an
	// exhausted uniform-sort fallback.
	ErrInsufficientMemory = errors.New("insufficient memory")
	// ErrIoFatal marks an open failure that occurred without the retry
	// flag set.
	ErrIoFatal = errors.New("fatal i/o error")
	// ErrCorruption marks a bit-pack or on-disk invariant violated on
	// read-back.
	ErrCorruption = errors.New("plot corruption")
)

// InvariantError wraps errors due to internal constraint violations,
// exactly as pebble's errors.InvariantError does. It is used for bugs in
// this program's own bookkeeping (e.g. a bitfield rank query out of range)
// rather than for bad user input or disk failures.
type InvariantError struct {
	Err error
}

// Unwrap returns the wrapped descriptive error that describes the
// constraint that got violated.
func (i InvariantError) Unwrap() error {
	return i.Err
}

func (i InvariantError) Error() string {
	return i.Err.Error()
}

// NewInvariantError builds an InvariantError from a format string, in the
// style of errors.Newf.
func NewInvariantError(format string, args ...interface{}) error {
	return InvariantError{Err: fmt.Errorf(format, args...)}
}

// InvalidValuef returns an error marked ErrInvalidValue.
func InvalidValuef(format string, args ...interface{}) error {
	return errors.Mark(errors.Newf(format, args...), ErrInvalidValue)
}

// InsufficientMemoryf returns an error marked ErrInsufficientMemory.
func InsufficientMemoryf(format string, args ...interface{}) error {
	return errors.Mark(errors.Newf(format, args...), ErrInsufficientMemory)
}

// IoFatalf returns an error marked ErrIoFatal, wrapping the underlying
// cause.
func IoFatalf(cause error, format string, args ...interface{}) error {
	return errors.Mark(errors.Wrapf(cause, format, args...), ErrIoFatal)
}

// Corruptionf returns an error marked ErrCorruption.
func Corruptionf(format string, args ...interface{}) error {
	return errors.Mark(errors.Newf(format, args...), ErrCorruption)
}

// Re-exported for callers that just want to wrap/annotate without caring
// about the taxonomy, matching pebble's convention of routing all error
// construction through this package instead of "errors" or "fmt".
var (
	New    = errors.New
	Newf   = errors.Newf
	Wrap   = errors.Wrap
	Wrapf  = errors.Wrapf
	Is     = errors.Is
	As     = errors.As
	Mark   = errors.Mark
	Errorf = errors.Newf
)
