// Package timelapse defines the shared value types of the generation
// pipeline: the error taxonomy, progress snapshots, and run states.
package timelapse

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a generation failure. The set is closed: every
// error surfaced by the pipeline carries exactly one of these kinds.
type ErrorKind int

const (
	// ErrNoFrames indicates the plan would contain no frames.
	ErrNoFrames ErrorKind = iota
	// ErrInvalidConfig indicates a pacing configuration that violates
	// its invariants (bad fps, odd resolution, zone out of bounds, ...).
	ErrInvalidConfig
	// ErrInvalidImageData indicates a source image that could not be
	// decoded. SourceIndex identifies the offending frame.
	ErrInvalidImageData
	// ErrWriterCreationFailed indicates the output container could not
	// be created.
	ErrWriterCreationFailed
	// ErrInputCreationFailed indicates the encoder input could not be
	// set up.
	ErrInputCreationFailed
	// ErrWritingFailed indicates a failure while writing encoded samples.
	ErrWritingFailed
	// ErrCancelled indicates the run was cancelled by the caller.
	ErrCancelled
	// ErrInsufficientDiskSpace indicates the destination volume cannot
	// hold the estimated output size.
	ErrInsufficientDiskSpace
	// ErrAlreadyRunning indicates a concurrent Generate call on a
	// controller that already has a run in flight.
	ErrAlreadyRunning
)

// String returns the string representation of the error kind.
func (k ErrorKind) String() string {
	switch k {
	case ErrNoFrames:
		return "no frames"
	case ErrInvalidConfig:
		return "invalid config"
	case ErrInvalidImageData:
		return "invalid image data"
	case ErrWriterCreationFailed:
		return "writer creation failed"
	case ErrInputCreationFailed:
		return "input creation failed"
	case ErrWritingFailed:
		return "writing failed"
	case ErrCancelled:
		return "cancelled"
	case ErrInsufficientDiskSpace:
		return "insufficient disk space"
	case ErrAlreadyRunning:
		return "already running"
	default:
		return "unknown"
	}
}

// Error is the concrete error type of the generation pipeline.
type Error struct {
	Kind        ErrorKind
	SourceIndex int    // valid for ErrInvalidImageData, -1 otherwise
	Reason      string // human-readable detail, may be empty
	Err         error  // underlying cause, may be nil
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Kind == ErrInvalidImageData {
		msg = fmt.Sprintf("%s at source index %d", msg, e.SourceIndex)
	}
	if e.Reason != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Reason)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %s", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates an Error of the given kind.
func NewError(kind ErrorKind) *Error {
	return &Error{Kind: kind, SourceIndex: -1}
}

// InvalidConfig creates an ErrInvalidConfig error with a reason.
func InvalidConfig(format string, args ...interface{}) *Error {
	return &Error{Kind: ErrInvalidConfig, SourceIndex: -1, Reason: fmt.Sprintf(format, args...)}
}

// InvalidImageData creates an ErrInvalidImageData error for a source index.
func InvalidImageData(sourceIndex int, err error) *Error {
	return &Error{Kind: ErrInvalidImageData, SourceIndex: sourceIndex, Err: err}
}

// WrapError creates an Error of the given kind around an underlying cause.
func WrapError(kind ErrorKind, err error) *Error {
	return &Error{Kind: kind, SourceIndex: -1, Err: err}
}

// IsKind reports whether err is (or wraps) a pipeline Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
