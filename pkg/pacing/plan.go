package pacing

import (
	"math"

	"github.com/jamischarles/timelapser/pkg/timelapse"
)

// PlannedFrame is one emitted video frame: which source image to show,
// when, and for how long.
type PlannedFrame struct {
	SourceIndex      int
	PresentationTime Rational
	Duration         Rational
}

// FramePlan is the ordered encode instruction sequence for one run.
// Presentation times are strictly increasing and the durations sum to
// TotalDuration. The plan is computed once and never mutated.
type FramePlan struct {
	Frames        []PlannedFrame
	TotalDuration Rational
}

// TotalFrames returns the number of planned output frames.
func (p *FramePlan) TotalFrames() int {
	return len(p.Frames)
}

// Plan computes the frame plan for sourceFrameCount ordered source
// images under cfg. It is deterministic and side-effect free: the same
// inputs always yield the same plan.
func Plan(sourceFrameCount int, cfg Config) (*FramePlan, error) {
	if sourceFrameCount <= 0 {
		return nil, timelapse.NewError(timelapse.ErrNoFrames)
	}
	if err := cfg.Validate(sourceFrameCount); err != nil {
		return nil, err
	}

	kept := applySkip(sourceFrameCount, cfg.SkipPattern)
	if len(kept) == 0 {
		return nil, timelapse.NewError(timelapse.ErrNoFrames)
	}

	var frames []PlannedFrame
	switch cfg.Mode {
	case ModeVariable:
		frames = planVariable(kept, cfg)
	case ModeSpeedRamp:
		frames = planRamp(kept, cfg)
	case ModeManual:
		frames = planManual(kept, cfg)
	default:
		frames = planUniform(kept, cfg)
	}

	total := Zero()
	for i := range frames {
		frames[i].PresentationTime = total
		total = total.Add(frames[i].Duration)
	}

	if len(frames) == 0 || !total.IsPositive() {
		return nil, timelapse.NewError(timelapse.ErrNoFrames)
	}
	return &FramePlan{Frames: frames, TotalDuration: total}, nil
}

// applySkip filters the source index sequence through the cyclic
// keep/drop pattern. A nil pattern keeps everything. The last partial
// window keeps min(keepCount, remaining) indices.
func applySkip(sourceFrameCount int, p *SkipPattern) []int {
	if p == nil {
		kept := make([]int, sourceFrameCount)
		for i := range kept {
			kept[i] = i
		}
		return kept
	}
	kept := make([]int, 0, sourceFrameCount/p.WindowSize*p.KeepCount+p.KeepCount)
	for i := 0; i < sourceFrameCount; i++ {
		if i%p.WindowSize < p.KeepCount {
			kept = append(kept, i)
		}
	}
	return kept
}

func planUniform(kept []int, cfg Config) []PlannedFrame {
	dur := frameDuration(cfg.FPS, 1.0)
	frames := make([]PlannedFrame, len(kept))
	for i, src := range kept {
		frames[i] = PlannedFrame{SourceIndex: src, Duration: dur}
	}
	return frames
}

func planVariable(kept []int, cfg Config) []PlannedFrame {
	frames := make([]PlannedFrame, len(kept))
	for i, src := range kept {
		// Overlapping zones: the last listed zone covering the index wins.
		mult := 1.0
		for _, z := range cfg.SpeedZones {
			if src >= z.StartFrame && src <= z.EndFrame {
				mult = z.SpeedMultiplier
			}
		}
		frames[i] = PlannedFrame{SourceIndex: src, Duration: frameDuration(cfg.FPS, mult)}
	}
	return frames
}

// planRamp interpolates the speed multiplier over the kept sequence
// position, not the source index, so the ramp shape is insensitive to
// skip filtering.
func planRamp(kept []int, cfg Config) []PlannedFrame {
	frames := make([]PlannedFrame, len(kept))
	n := len(kept)
	for i, src := range kept {
		t := 0.0
		if n > 1 {
			t = float64(i) / float64(n-1)
		}
		mult := 1.0 + (cfg.RampEndMultiplier-1.0)*t
		frames[i] = PlannedFrame{SourceIndex: src, Duration: frameDuration(cfg.FPS, mult)}
	}
	return frames
}

// planManual expands repeated frames into extra consecutive copies in
// the output sequence; durations stay at 1/fps. Repetitions pointing
// at skipped-out indices never reach this function's kept list and are
// silently ignored.
func planManual(kept []int, cfg Config) []PlannedFrame {
	extras := make(map[int]int, len(cfg.Repetitions))
	for _, r := range cfg.Repetitions {
		extras[r.FrameIndex] += r.ExtraCopies
	}
	dur := frameDuration(cfg.FPS, 1.0)
	frames := make([]PlannedFrame, 0, len(kept))
	for _, src := range kept {
		copies := 1 + extras[src]
		for c := 0; c < copies; c++ {
			frames = append(frames, PlannedFrame{SourceIndex: src, Duration: dur})
		}
	}
	return frames
}

// frameDuration returns 1/(fps*mult) as ticks of the shared timescale,
// clamped to at least one tick so presentation times stay strictly
// increasing for any valid configuration.
func frameDuration(fps, mult float64) Rational {
	ticks := int64(math.Round(Timescale / (fps * mult)))
	if ticks < 1 {
		ticks = 1
	}
	return NewRational(ticks, Timescale)
}
