// Package config provides pacing configuration loading from YAML files
// and parsing of the compact CLI syntaxes for skip patterns, speed
// zones and repetitions.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/jamischarles/timelapser/pkg/pacing"
)

// File mirrors the YAML configuration file layout.
type File struct {
	FPS         float64 `yaml:"fps"`
	Width       int     `yaml:"width"`
	Height      int     `yaml:"height"`
	BitrateKbps int     `yaml:"bitrate_kbps"`
	Format      string  `yaml:"format"`
	Mode        string  `yaml:"mode"`

	SkipPattern *SkipPatternConfig `yaml:"skip_pattern"`
	SpeedZones  []SpeedZoneConfig  `yaml:"speed_zones"`
	Repetitions []RepetitionConfig `yaml:"repetitions"`

	RampEndMultiplier float64 `yaml:"ramp_end_multiplier"`
}

// SkipPatternConfig mirrors the skip_pattern YAML section.
type SkipPatternConfig struct {
	Keep   int `yaml:"keep"`
	Window int `yaml:"window"`
}

// SpeedZoneConfig mirrors one speed_zones YAML entry.
type SpeedZoneConfig struct {
	Start      int     `yaml:"start"`
	End        int     `yaml:"end"`
	Multiplier float64 `yaml:"multiplier"`
}

// RepetitionConfig mirrors one repetitions YAML entry.
type RepetitionConfig struct {
	Frame       int `yaml:"frame"`
	ExtraCopies int `yaml:"extra_copies"`
}

// Load reads a YAML configuration file and applies it on top of the
// pacing defaults. Zero-valued fields keep their defaults.
func Load(path string) (pacing.Config, error) {
	cfg := pacing.DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	return apply(cfg, f)
}

func apply(cfg pacing.Config, f File) (pacing.Config, error) {
	if f.FPS > 0 {
		cfg.FPS = f.FPS
	}
	if f.Width > 0 {
		cfg.Width = f.Width
	}
	if f.Height > 0 {
		cfg.Height = f.Height
	}
	if f.BitrateKbps > 0 {
		cfg.BitrateKbps = f.BitrateKbps
	}
	if f.Format != "" {
		format, err := ParseFormat(f.Format)
		if err != nil {
			return cfg, err
		}
		cfg.Format = format
	}
	if f.Mode != "" {
		mode, err := ParseMode(f.Mode)
		if err != nil {
			return cfg, err
		}
		cfg.Mode = mode
	}
	if f.SkipPattern != nil {
		cfg.SkipPattern = &pacing.SkipPattern{
			KeepCount:  f.SkipPattern.Keep,
			WindowSize: f.SkipPattern.Window,
		}
	}
	for _, z := range f.SpeedZones {
		cfg.SpeedZones = append(cfg.SpeedZones, pacing.SpeedZone{
			StartFrame:      z.Start,
			EndFrame:        z.End,
			SpeedMultiplier: z.Multiplier,
		})
	}
	for _, r := range f.Repetitions {
		cfg.Repetitions = append(cfg.Repetitions, pacing.FrameRepetition{
			FrameIndex:  r.Frame,
			ExtraCopies: r.ExtraCopies,
		})
	}
	if f.RampEndMultiplier > 0 {
		cfg.RampEndMultiplier = f.RampEndMultiplier
	}
	return cfg, nil
}

// ParseMode parses a pacing mode name.
func ParseMode(s string) (pacing.Mode, error) {
	switch strings.ToLower(s) {
	case "uniform":
		return pacing.ModeUniform, nil
	case "variable":
		return pacing.ModeVariable, nil
	case "ramp", "speedramp", "speed-ramp":
		return pacing.ModeSpeedRamp, nil
	case "manual":
		return pacing.ModeManual, nil
	default:
		return 0, fmt.Errorf("unknown pacing mode %q (uniform, variable, ramp, manual)", s)
	}
}

// ParseFormat parses a container format name.
func ParseFormat(s string) (pacing.Format, error) {
	switch strings.ToLower(s) {
	case "mp4":
		return pacing.FormatMP4, nil
	case "mov":
		return pacing.FormatMOV, nil
	default:
		return 0, fmt.Errorf("unknown container format %q (mp4, mov)", s)
	}
}

// ParseSkipPattern parses the CLI keep:window syntax, e.g. "1:2".
func ParseSkipPattern(s string) (*pacing.SkipPattern, error) {
	keep, window, ok := splitIntPair(s, ":")
	if !ok {
		return nil, fmt.Errorf("invalid skip pattern %q, want keep:window", s)
	}
	return &pacing.SkipPattern{KeepCount: keep, WindowSize: window}, nil
}

// ParseSpeedZone parses the CLI start-end:multiplier syntax, e.g. "10-40:2.5".
func ParseSpeedZone(s string) (pacing.SpeedZone, error) {
	rangePart, multPart, found := strings.Cut(s, ":")
	if !found {
		return pacing.SpeedZone{}, fmt.Errorf("invalid speed zone %q, want start-end:multiplier", s)
	}
	start, end, ok := splitIntPair(rangePart, "-")
	if !ok {
		return pacing.SpeedZone{}, fmt.Errorf("invalid speed zone range %q, want start-end", rangePart)
	}
	mult, err := strconv.ParseFloat(multPart, 64)
	if err != nil {
		return pacing.SpeedZone{}, fmt.Errorf("invalid speed zone multiplier %q: %w", multPart, err)
	}
	return pacing.SpeedZone{StartFrame: start, EndFrame: end, SpeedMultiplier: mult}, nil
}

// ParseRepetition parses the CLI frame:extra syntax, e.g. "5:3".
func ParseRepetition(s string) (pacing.FrameRepetition, error) {
	frame, extra, ok := splitIntPair(s, ":")
	if !ok {
		return pacing.FrameRepetition{}, fmt.Errorf("invalid repetition %q, want frame:extraCopies", s)
	}
	return pacing.FrameRepetition{FrameIndex: frame, ExtraCopies: extra}, nil
}

func splitIntPair(s, sep string) (int, int, bool) {
	a, b, found := strings.Cut(s, sep)
	if !found {
		return 0, 0, false
	}
	first, err1 := strconv.Atoi(strings.TrimSpace(a))
	second, err2 := strconv.Atoi(strings.TrimSpace(b))
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	return first, second, true
}
