package ports

import (
	"image"
)

// VideoEncoder abstracts one output container session. Open creates
// the session, Submit feeds rendered frames, Finish flushes and closes
// the container, Abort discards any partially written output.
//
// Submit must only be called while Ready reports true, and presentation
// timestamps must be non-decreasing across calls; both are hard
// preconditions of the underlying writer. A single worker owns the
// session for its whole lifetime.
type VideoEncoder interface {
	// Open creates the output container at path.
	Open(path string, opts EncoderOptions) error

	// Ready reports whether the encoder can accept another frame
	// without unbounded buffering. Callers poll it as backpressure.
	Ready() bool

	// Submit encodes one frame. ptsTicks and durTicks are expressed in
	// the session's timescale (EncoderOptions.Timescale).
	Submit(frame image.Image, ptsTicks, durTicks int64) error

	// BytesWritten returns the number of bytes written to the output
	// file so far. Safe to call from any goroutine.
	BytesWritten() int64

	// Finish flushes pending samples, closes the container and returns
	// the output file path.
	Finish() (string, error)

	// Abort discards the session and removes any partial output file.
	// Safe to call after a failed Open or Submit.
	Abort() error
}

// EncoderOptions configures a video encoding session.
type EncoderOptions struct {
	Width       int
	Height      int
	FPS         float64
	BitrateKbps int    // Target bitrate in kbps
	Container   string // "mp4" or "mov"
	Timescale   uint32 // Media timescale for presentation timestamps
}
