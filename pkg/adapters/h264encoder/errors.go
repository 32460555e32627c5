package h264encoder

import "errors"

var (
	// ErrNotOpen is returned when session methods are called before Open.
	ErrNotOpen = errors.New("h264encoder: session not open")

	// ErrFFmpegNotFound is returned when no ffmpeg binary can be located.
	ErrFFmpegNotFound = errors.New("h264encoder: ffmpeg not found")

	// ErrSPSNotFound is returned when no SPS NAL unit arrives before muxing.
	ErrSPSNotFound = errors.New("h264encoder: SPS not found in bitstream")

	// ErrPPSNotFound is returned when no PPS NAL unit arrives before muxing.
	ErrPPSNotFound = errors.New("h264encoder: PPS not found in bitstream")
)
