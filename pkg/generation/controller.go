// Package generation coordinates a timelapse run: it computes the
// frame plan, then streams planned frames through decode, render and
// encode under backpressure, with cancellation and progress reporting.
package generation

import (
	"context"
	"errors"
	"fmt"
	"image"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/ideamans/go-l10n"
	"github.com/shirou/gopsutil/v3/disk"
	"golang.org/x/sync/errgroup"

	"github.com/jamischarles/timelapser/pkg/pacing"
	"github.com/jamischarles/timelapser/pkg/ports"
	"github.com/jamischarles/timelapser/pkg/timelapse"
)

const (
	// defaultPollInterval is the encoder readiness poll period. Each
	// tick is also a cancellation checkpoint.
	defaultPollInterval = 20 * time.Millisecond

	// defaultProgressInterval throttles observer notifications so a
	// slow observer cannot backpressure the encode loop.
	defaultProgressInterval = 100 * time.Millisecond

	// diskHeadroom pads the conservative output size estimate.
	diskHeadroom = 1.2
)

// Options configures optional controller behavior.
type Options struct {
	// Progress receives generation snapshots. Delivery is throttled;
	// the final snapshot is always delivered.
	Progress timelapse.ProgressFunc

	// PollInterval overrides the encoder readiness poll period.
	PollInterval time.Duration

	// ProgressInterval overrides the observer throttle period.
	ProgressInterval time.Duration

	// FreeSpace overrides the free disk space probe, mainly for tests.
	FreeSpace func(dir string) (uint64, error)
}

// Result summarizes a completed generation run.
type Result struct {
	OutputPath    string
	PlannedFrames int
	FramesEncoded int
	SkippedFrames int
	Duration      time.Duration
	BytesWritten  int64
}

// Controller runs at most one generation at a time. Terminal states
// are final; every Generate call is a fresh run with a fresh encoder
// session.
type Controller struct {
	source   ports.FrameSource
	renderer ports.FrameRenderer
	encoder  ports.VideoEncoder
	fs       ports.FileSystem
	logger   ports.Logger

	onProgress       timelapse.ProgressFunc
	pollInterval     time.Duration
	progressInterval time.Duration
	freeSpace        func(dir string) (uint64, error)

	running   atomic.Bool
	cancelled atomic.Bool
	state     atomic.Int32
}

// New creates a Controller over the given collaborators.
func New(source ports.FrameSource, renderer ports.FrameRenderer, encoder ports.VideoEncoder, fs ports.FileSystem, logger ports.Logger, opts Options) *Controller {
	c := &Controller{
		source:           source,
		renderer:         renderer,
		encoder:          encoder,
		fs:               fs,
		logger:           logger,
		onProgress:       opts.Progress,
		pollInterval:     opts.PollInterval,
		progressInterval: opts.ProgressInterval,
		freeSpace:        opts.FreeSpace,
	}
	if c.pollInterval <= 0 {
		c.pollInterval = defaultPollInterval
	}
	if c.progressInterval <= 0 {
		c.progressInterval = defaultProgressInterval
	}
	if c.freeSpace == nil {
		c.freeSpace = func(dir string) (uint64, error) {
			usage, err := disk.Usage(dir)
			if err != nil {
				return 0, err
			}
			return usage.Free, nil
		}
	}
	return c
}

// State returns the controller's current run state.
func (c *Controller) State() timelapse.State {
	return timelapse.State(c.state.Load())
}

// Cancel requests cooperative cancellation of the in-flight run. It is
// idempotent, safe from any goroutine, and a no-op while no run is
// encoding.
func (c *Controller) Cancel() {
	c.cancelled.Store(true)
}

// Generate runs the full pipeline and blocks until it reaches a
// terminal state. A second call while a run is in flight fails with
// ErrAlreadyRunning.
func (c *Controller) Generate(ctx context.Context, cfg pacing.Config, outputPath string) (Result, error) {
	if !c.running.CompareAndSwap(false, true) {
		return Result{}, timelapse.NewError(timelapse.ErrAlreadyRunning)
	}
	defer c.running.Store(false)
	c.cancelled.Store(false)

	start := time.Now()
	c.setState(timelapse.StatePlanning)

	plan, err := c.planRun(cfg, outputPath)
	if err != nil {
		c.setState(timelapse.StateFailed)
		return Result{}, err
	}
	c.logger.Info(l10n.F("Planned %d frames, %.2fs total", plan.TotalFrames(), plan.TotalDuration.Seconds()))

	if err := c.checkDiskSpace(cfg, plan, outputPath); err != nil {
		c.setState(timelapse.StateFailed)
		return Result{}, err
	}

	if err := c.encoder.Open(outputPath, ports.EncoderOptions{
		Width:       cfg.Width,
		Height:      cfg.Height,
		FPS:         cfg.FPS,
		BitrateKbps: cfg.BitrateKbps,
		Container:   cfg.Format.String(),
		Timescale:   pacing.Timescale,
	}); err != nil {
		c.setState(timelapse.StateFailed)
		return Result{}, fmt.Errorf("open encoder session: %w", err)
	}

	c.setState(timelapse.StateEncoding)
	encoded, skipped, runErr := c.encodeLoop(ctx, cfg, plan, start)

	if runErr != nil {
		c.discard(outputPath)
		if timelapse.IsKind(runErr, timelapse.ErrCancelled) {
			c.setState(timelapse.StateCancelled)
			c.logger.Warn(l10n.T("Generation cancelled, partial output removed"))
		} else {
			c.setState(timelapse.StateFailed)
		}
		c.publishFinal(encoded, plan.TotalFrames(), start)
		return Result{}, runErr
	}

	if encoded == 0 {
		// Every planned frame failed to decode; nothing worth keeping.
		c.discard(outputPath)
		c.setState(timelapse.StateFailed)
		c.publishFinal(encoded, plan.TotalFrames(), start)
		return Result{}, &timelapse.Error{Kind: timelapse.ErrInvalidImageData, SourceIndex: plan.Frames[0].SourceIndex, Reason: "no source frame could be decoded"}
	}

	path, err := c.encoder.Finish()
	if err != nil {
		c.discard(outputPath)
		c.setState(timelapse.StateFailed)
		c.publishFinal(encoded, plan.TotalFrames(), start)
		return Result{}, fmt.Errorf("finish encoder session: %w", err)
	}

	c.setState(timelapse.StateCompleted)
	c.publishFinal(encoded, plan.TotalFrames(), start)
	c.logger.Info(l10n.F("Encoded %d frames to %s", encoded, path))

	return Result{
		OutputPath:    path,
		PlannedFrames: plan.TotalFrames(),
		FramesEncoded: encoded,
		SkippedFrames: skipped,
		Duration:      time.Since(start),
		BytesWritten:  c.encoder.BytesWritten(),
	}, nil
}

// planRun validates the output path and computes the frame plan. No
// file exists yet, so failures here leave nothing behind.
func (c *Controller) planRun(cfg pacing.Config, outputPath string) (*pacing.FramePlan, error) {
	ext := strings.ToLower(filepath.Ext(outputPath))
	if ext != cfg.Format.Extension() {
		return nil, timelapse.InvalidConfig("output extension %q does not match container format %s", ext, cfg.Format)
	}
	return pacing.Plan(c.source.Count(), cfg)
}

// checkDiskSpace proactively verifies the destination volume can hold
// a conservative output size estimate (target bitrate over the planned
// duration, plus headroom) before any file is created.
func (c *Controller) checkDiskSpace(cfg pacing.Config, plan *pacing.FramePlan, outputPath string) error {
	dir := filepath.Dir(outputPath)
	free, err := c.freeSpace(dir)
	if err != nil {
		// An unreadable volume surfaces later as a write failure.
		c.logger.Debug("disk space check failed for %s: %s", dir, err)
		return nil
	}
	need := uint64(float64(cfg.BitrateKbps) * 1000 / 8 * plan.TotalDuration.Seconds() * diskHeadroom)
	if free < need {
		return &timelapse.Error{
			Kind:   timelapse.ErrInsufficientDiskSpace,
			Reason: fmt.Sprintf("need about %d bytes, %d free on %s", need, free, dir),
		}
	}
	return nil
}

// renderedFrame pairs a rendered raster with its planned timing.
type renderedFrame struct {
	img image.Image
	pts int64
	dur int64
}

// encodeLoop streams the plan through a decode/render prefetch worker
// and the submit loop. The channel capacity of 1 plus the frame held
// by the submit loop bounds residency at two rasters regardless of
// video length.
func (c *Controller) encodeLoop(ctx context.Context, cfg pacing.Config, plan *pacing.FramePlan, start time.Time) (encoded, skipped int, err error) {
	frames := make(chan renderedFrame, 1)

	eg, egCtx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		defer close(frames)
		lastIndex := -1
		var lastRaster image.Image
		for _, pf := range plan.Frames {
			if cErr := c.checkpoint(egCtx); cErr != nil {
				return cErr
			}
			// Manual-mode repetitions arrive as consecutive plan entries
			// for one source index; reuse the raster instead of decoding
			// the same file again.
			if pf.SourceIndex != lastIndex {
				img, loadErr := c.source.Load(egCtx, pf.SourceIndex)
				if loadErr != nil {
					if timelapse.IsKind(loadErr, timelapse.ErrInvalidImageData) {
						c.logger.Warn(l10n.F("Skipping undecodable frame %d: %s", pf.SourceIndex, loadErr))
						skipped++
						lastIndex = -1
						lastRaster = nil
						continue
					}
					return loadErr
				}
				lastRaster = c.renderer.Render(img, cfg.Width, cfg.Height)
				lastIndex = pf.SourceIndex
			}
			if lastRaster == nil {
				skipped++
				continue
			}
			select {
			case frames <- renderedFrame{img: lastRaster, pts: pf.PresentationTime.Ticks(pacing.Timescale), dur: pf.Duration.Ticks(pacing.Timescale)}:
			case <-egCtx.Done():
				return egCtx.Err()
			}
		}
		return nil
	})

	var lastPublish time.Time
	eg.Go(func() error {
		for f := range frames {
			if wErr := c.waitReady(egCtx); wErr != nil {
				return wErr
			}
			if sErr := c.encoder.Submit(f.img, f.pts, f.dur); sErr != nil {
				return fmt.Errorf("submit frame: %w", sErr)
			}
			encoded++
			if time.Since(lastPublish) >= c.progressInterval {
				c.publish(encoded, plan.TotalFrames(), start)
				lastPublish = time.Now()
			}
		}
		return nil
	})

	err = eg.Wait()
	if errors.Is(err, context.Canceled) && !timelapse.IsKind(err, timelapse.ErrCancelled) {
		err = timelapse.WrapError(timelapse.ErrCancelled, err)
	}
	return encoded, skipped, err
}

// checkpoint reports cancellation between frames.
func (c *Controller) checkpoint(ctx context.Context) error {
	if c.cancelled.Load() {
		return timelapse.NewError(timelapse.ErrCancelled)
	}
	if ctx.Err() != nil {
		return timelapse.WrapError(timelapse.ErrCancelled, ctx.Err())
	}
	return nil
}

// waitReady blocks until the encoder can accept a frame. Each poll
// tick doubles as a cancellation checkpoint; there is no intrinsic
// timeout because long runs are expected.
func (c *Controller) waitReady(ctx context.Context) error {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()
	for {
		if err := c.checkpoint(ctx); err != nil {
			return err
		}
		if c.encoder.Ready() {
			return nil
		}
		select {
		case <-ctx.Done():
			return timelapse.WrapError(timelapse.ErrCancelled, ctx.Err())
		case <-ticker.C:
		}
	}
}

// discard aborts the encoder session and removes any partial output so
// no torn video file is left behind.
func (c *Controller) discard(outputPath string) {
	if err := c.encoder.Abort(); err != nil {
		c.logger.Debug("abort encoder session: %s", err)
	}
	if exists, _ := c.fs.Exists(outputPath); exists {
		if err := c.fs.Remove(outputPath); err != nil {
			c.logger.Warn(l10n.F("Failed to remove partial output %s: %s", outputPath, err))
		}
	}
}

func (c *Controller) setState(s timelapse.State) {
	c.state.Store(int32(s))
}

func (c *Controller) publish(encoded, total int, start time.Time) {
	if c.onProgress == nil {
		return
	}
	elapsed := time.Since(start)
	remaining := timelapse.EstimateUnknown
	if encoded >= 3 && encoded < total {
		remaining = time.Duration(float64(elapsed) / float64(encoded) * float64(total-encoded))
	}
	c.onProgress(timelapse.GenerationProgress{
		FramesEncoded:      encoded,
		TotalFrames:        total,
		Elapsed:            elapsed,
		EstimatedRemaining: remaining,
		BytesWritten:       c.encoder.BytesWritten(),
	})
}

// publishFinal delivers the closing snapshot regardless of throttling.
func (c *Controller) publishFinal(encoded, total int, start time.Time) {
	if c.onProgress == nil {
		return
	}
	c.onProgress(timelapse.GenerationProgress{
		FramesEncoded: encoded,
		TotalFrames:   total,
		Elapsed:       time.Since(start),
		EstimatedRemaining: func() time.Duration {
			if encoded >= total {
				return 0
			}
			return timelapse.EstimateUnknown
		}(),
		BytesWritten: c.encoder.BytesWritten(),
	})
}
