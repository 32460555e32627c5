// Package main provides the CLI entry point for timelapser.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/ideamans/go-l10n"
	"github.com/urfave/cli/v2"

	"github.com/jamischarles/timelapser/pkg/adapters/ggrenderer"
	"github.com/jamischarles/timelapser/pkg/adapters/h264encoder"
	"github.com/jamischarles/timelapser/pkg/adapters/imagesource"
	"github.com/jamischarles/timelapser/pkg/adapters/logger"
	"github.com/jamischarles/timelapser/pkg/adapters/osfilesystem"
	"github.com/jamischarles/timelapser/pkg/config"
	"github.com/jamischarles/timelapser/pkg/generation"
	"github.com/jamischarles/timelapser/pkg/pacing"
	"github.com/jamischarles/timelapser/pkg/ports"
	"github.com/jamischarles/timelapser/pkg/timelapse"
)

var version = "dev"

func main() {
	app := &cli.App{
		Name:    "timelapser",
		Usage:   "Turn an ordered collection of still images into a timelapse video.",
		Version: version,
		Commands: []*cli.Command{
			renderCommand(),
			{
				Name:  "version",
				Usage: "Print the version.",
				Action: func(c *cli.Context) error {
					fmt.Printf("timelapser %s\n", version)
					return nil
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func renderCommand() *cli.Command {
	return &cli.Command{
		Name:      "render",
		Usage:     "Render a timelapse video from images (files in argument order, or one directory in name order).",
		ArgsUsage: "<images...|directory>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Required: true, Usage: "Output video file path (.mp4 or .mov)."},
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "YAML pacing configuration file."},
			&cli.Float64Flag{Name: "fps", Usage: "Output frame rate."},
			&cli.IntFlag{Name: "width", Aliases: []string{"W"}, Usage: "Output video width (even)."},
			&cli.IntFlag{Name: "height", Aliases: []string{"H"}, Usage: "Output video height (even)."},
			&cli.IntFlag{Name: "bitrate", Aliases: []string{"b"}, Usage: "Target bitrate in kbps."},
			&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Usage: "Container format (mp4 or mov; default from output extension)."},
			&cli.StringFlag{Name: "mode", Aliases: []string{"m"}, Usage: "Pacing mode (uniform, variable, ramp, manual)."},
			&cli.StringFlag{Name: "skip", Usage: "Skip pattern keep:window, e.g. 1:2."},
			&cli.StringSliceFlag{Name: "zone", Usage: "Speed zone start-end:multiplier, e.g. 10-40:2.5 (repeatable, variable mode)."},
			&cli.StringSliceFlag{Name: "repeat", Usage: "Frame repetition frame:extraCopies, e.g. 5:3 (repeatable, manual mode)."},
			&cli.Float64Flag{Name: "ramp-end", Usage: "End speed multiplier for ramp mode."},
			&cli.StringFlag{Name: "ffmpeg-path", Usage: "Path to the ffmpeg binary (falls back to FFMPEG_PATH env, then PATH)."},
			&cli.StringFlag{Name: "log-level", Aliases: []string{"l"}, Value: "info", Usage: "Log level (debug, info, warn, error)."},
			&cli.BoolFlag{Name: "quiet", Aliases: []string{"Q"}, Usage: "Suppress all log output."},
		},
		Action: runRender,
	}
}

func runRender(c *cli.Context) error {
	var log ports.Logger
	if c.Bool("quiet") {
		log = logger.NewNoop()
	} else {
		log = logger.NewConsole(ports.ParseLogLevel(c.String("log-level")))
	}

	cfg, err := buildConfig(c)
	if err != nil {
		return err
	}

	paths, err := collectImagePaths(c.Args().Slice())
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return cli.Exit(l10n.F("No images found in %s", strings.Join(c.Args().Slice(), " ")), 1)
	}

	if p := c.String("ffmpeg-path"); p != "" {
		h264encoder.SetFFmpegPath(p)
	}

	output := c.String("output")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	controller := generation.New(
		imagesource.New(paths),
		ggrenderer.New(),
		h264encoder.New(),
		osfilesystem.New(),
		log.WithComponent("pipeline"),
		generation.Options{Progress: progressPrinter(log)},
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		<-sigCh
		log.Warn(l10n.T("Interrupted, cancelling..."))
		controller.Cancel()
	}()

	log.Info(l10n.F("Rendering %d frames to %s...", len(paths), output))

	result, err := controller.Generate(ctx, cfg, output)
	if err != nil {
		if timelapse.IsKind(err, timelapse.ErrCancelled) {
			return cli.Exit("cancelled", 130)
		}
		return fmt.Errorf("render: %w", err)
	}

	log.Info(l10n.F("Output saved to %s", result.OutputPath))
	if result.SkippedFrames > 0 {
		log.Warn(l10n.F("Skipped %d undecodable frames", result.SkippedFrames))
	}
	return nil
}

// buildConfig layers defaults, the optional YAML file, and CLI flags.
func buildConfig(c *cli.Context) (pacing.Config, error) {
	cfg := pacing.DefaultConfig()
	var err error

	if path := c.String("config"); path != "" {
		cfg, err = config.Load(path)
		if err != nil {
			return cfg, err
		}
	}

	if c.IsSet("fps") {
		cfg.FPS = c.Float64("fps")
	}
	if c.IsSet("width") {
		cfg.Width = c.Int("width")
	}
	if c.IsSet("height") {
		cfg.Height = c.Int("height")
	}
	if c.IsSet("bitrate") {
		cfg.BitrateKbps = c.Int("bitrate")
	}
	if c.IsSet("format") {
		cfg.Format, err = config.ParseFormat(c.String("format"))
		if err != nil {
			return cfg, err
		}
	} else if ext := strings.ToLower(filepath.Ext(c.String("output"))); ext == ".mov" {
		cfg.Format = pacing.FormatMOV
	}
	if c.IsSet("mode") {
		cfg.Mode, err = config.ParseMode(c.String("mode"))
		if err != nil {
			return cfg, err
		}
	}
	if c.IsSet("skip") {
		cfg.SkipPattern, err = config.ParseSkipPattern(c.String("skip"))
		if err != nil {
			return cfg, err
		}
	}
	for _, s := range c.StringSlice("zone") {
		zone, err := config.ParseSpeedZone(s)
		if err != nil {
			return cfg, err
		}
		cfg.SpeedZones = append(cfg.SpeedZones, zone)
	}
	for _, s := range c.StringSlice("repeat") {
		rep, err := config.ParseRepetition(s)
		if err != nil {
			return cfg, err
		}
		cfg.Repetitions = append(cfg.Repetitions, rep)
	}
	if c.IsSet("ramp-end") {
		cfg.RampEndMultiplier = c.Float64("ramp-end")
	}

	// Implied modes: zones imply variable, repetitions imply manual.
	if !c.IsSet("mode") {
		if len(cfg.SpeedZones) > 0 {
			cfg.Mode = pacing.ModeVariable
		} else if len(cfg.Repetitions) > 0 {
			cfg.Mode = pacing.ModeManual
		}
	}

	return cfg, nil
}

// collectImagePaths expands the CLI arguments into the ordered source
// list: explicit files keep argument order, a single directory is
// listed in name order.
func collectImagePaths(args []string) ([]string, error) {
	if len(args) == 1 {
		info, err := os.Stat(args[0])
		if err != nil {
			return nil, err
		}
		if info.IsDir() {
			entries, err := os.ReadDir(args[0])
			if err != nil {
				return nil, err
			}
			var paths []string
			for _, e := range entries {
				if e.IsDir() || !isImageFile(e.Name()) {
					continue
				}
				paths = append(paths, filepath.Join(args[0], e.Name()))
			}
			sort.Strings(paths)
			return paths, nil
		}
	}
	return args, nil
}

func isImageFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg", ".png", ".bmp", ".tif", ".tiff", ".webp":
		return true
	}
	return false
}

// progressPrinter logs progress at most once per second.
func progressPrinter(log ports.Logger) timelapse.ProgressFunc {
	var last time.Time
	return func(p timelapse.GenerationProgress) {
		final := p.FramesEncoded >= p.TotalFrames
		if !final && time.Since(last) < time.Second {
			return
		}
		last = time.Now()
		if p.EstimatedRemaining >= 0 {
			log.Info(l10n.F("Encoded %d/%d frames (%d bytes, ~%s remaining)",
				p.FramesEncoded, p.TotalFrames, p.BytesWritten, p.EstimatedRemaining.Round(time.Second)))
			return
		}
		log.Info(l10n.F("Encoded %d/%d frames (%d bytes)", p.FramesEncoded, p.TotalFrames, p.BytesWritten))
	}
}
