// Package pacing provides the frame-pacing planner: it turns a source
// frame count and a pacing configuration into a deterministic sequence
// of encode instructions. The planner is pure; it does no I/O and
// holds no state.
package pacing

import (
	"github.com/jamischarles/timelapser/pkg/timelapse"
)

// Mode selects how the planner assigns output timing to kept frames.
// The modes are mutually exclusive interpretations of Config's extra
// fields: SpeedZones only apply in ModeVariable, Repetitions only in
// ModeManual, RampEndMultiplier only in ModeSpeedRamp.
type Mode int

const (
	// ModeUniform gives every kept frame a duration of 1/fps.
	ModeUniform Mode = iota
	// ModeVariable scales durations inside configured SpeedZones.
	ModeVariable
	// ModeSpeedRamp interpolates the playback speed linearly from 1.0
	// to RampEndMultiplier across the kept sequence.
	ModeSpeedRamp
	// ModeManual repeats individual frames per the Repetitions list.
	ModeManual
)

// String returns the string representation of the mode.
func (m Mode) String() string {
	switch m {
	case ModeUniform:
		return "uniform"
	case ModeVariable:
		return "variable"
	case ModeSpeedRamp:
		return "ramp"
	case ModeManual:
		return "manual"
	default:
		return "unknown"
	}
}

// Format identifies the output container format.
type Format int

const (
	// FormatMP4 produces an ISO base media file (.mp4).
	FormatMP4 Format = iota
	// FormatMOV produces a QuickTime file (.mov).
	FormatMOV
)

// String returns the string representation of the format.
func (f Format) String() string {
	if f == FormatMOV {
		return "mov"
	}
	return "mp4"
}

// Extension returns the file extension for the format, including the dot.
func (f Format) Extension() string {
	if f == FormatMOV {
		return ".mov"
	}
	return ".mp4"
}

// SkipPattern is a cyclic keep/drop rule applied to the source index
// sequence before any other pacing step: of every window of WindowSize
// consecutive indices, the first KeepCount are kept.
type SkipPattern struct {
	KeepCount  int
	WindowSize int
}

// SpeedZone scales playback speed for a range of source indices.
// StartFrame and EndFrame are inclusive. When zones overlap, the zone
// listed last wins for each covered index.
type SpeedZone struct {
	StartFrame      int
	EndFrame        int
	SpeedMultiplier float64
}

// FrameRepetition emits extra consecutive copies of one source frame
// in manual mode. Multiple entries for the same index accumulate.
type FrameRepetition struct {
	FrameIndex  int
	ExtraCopies int
}

// Config is the pacing and encoding configuration for one generation
// run. Zero values are not usable; start from DefaultConfig.
type Config struct {
	FPS         float64
	Width       int
	Height      int
	BitrateKbps int
	Format      Format
	Mode        Mode

	SkipPattern *SkipPattern
	SpeedZones  []SpeedZone
	Repetitions []FrameRepetition

	// RampEndMultiplier is the playback speed reached at the end of the
	// kept sequence in ModeSpeedRamp.
	RampEndMultiplier float64
}

// DefaultConfig returns a Config with default values: 30 fps uniform
// pacing into a 1920x1080 MP4 at 8 Mbps.
func DefaultConfig() Config {
	return Config{
		FPS:               30.0,
		Width:             1920,
		Height:            1080,
		BitrateKbps:       8000,
		Format:            FormatMP4,
		Mode:              ModeUniform,
		RampEndMultiplier: 2.0,
	}
}

// Validate checks the configuration invariants against a source frame
// count. It returns an ErrInvalidConfig error describing the first
// violation found.
func (c Config) Validate(sourceFrameCount int) error {
	if c.FPS <= 0 {
		return timelapse.InvalidConfig("fps must be positive, got %g", c.FPS)
	}
	if c.Width <= 0 || c.Height <= 0 {
		return timelapse.InvalidConfig("resolution must be positive, got %dx%d", c.Width, c.Height)
	}
	if c.Width%2 != 0 || c.Height%2 != 0 {
		return timelapse.InvalidConfig("resolution dimensions must be even, got %dx%d", c.Width, c.Height)
	}
	if c.Format != FormatMP4 && c.Format != FormatMOV {
		return timelapse.InvalidConfig("unknown container format %d", int(c.Format))
	}
	if p := c.SkipPattern; p != nil {
		if p.KeepCount < 1 {
			return timelapse.InvalidConfig("skip pattern keep count must be at least 1, got %d", p.KeepCount)
		}
		if p.KeepCount > p.WindowSize {
			return timelapse.InvalidConfig("skip pattern keep count %d exceeds window size %d", p.KeepCount, p.WindowSize)
		}
	}
	if c.Mode == ModeVariable {
		for i, z := range c.SpeedZones {
			if z.StartFrame > z.EndFrame {
				return timelapse.InvalidConfig("speed zone %d: start frame %d after end frame %d", i, z.StartFrame, z.EndFrame)
			}
			if z.StartFrame < 0 || z.EndFrame >= sourceFrameCount {
				return timelapse.InvalidConfig("speed zone %d: range [%d,%d] outside source frames [0,%d)", i, z.StartFrame, z.EndFrame, sourceFrameCount)
			}
			if z.SpeedMultiplier <= 0 {
				return timelapse.InvalidConfig("speed zone %d: multiplier must be positive, got %g", i, z.SpeedMultiplier)
			}
		}
	}
	if c.Mode == ModeSpeedRamp && c.RampEndMultiplier <= 0 {
		return timelapse.InvalidConfig("ramp end multiplier must be positive, got %g", c.RampEndMultiplier)
	}
	if c.Mode == ModeManual {
		for i, r := range c.Repetitions {
			if r.FrameIndex < 0 || r.FrameIndex >= sourceFrameCount {
				return timelapse.InvalidConfig("repetition %d: frame index %d outside source frames [0,%d)", i, r.FrameIndex, sourceFrameCount)
			}
			if r.ExtraCopies < 0 {
				return timelapse.InvalidConfig("repetition %d: extra copies must not be negative, got %d", i, r.ExtraCopies)
			}
		}
	}
	return nil
}
