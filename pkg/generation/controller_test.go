package generation

import (
	"context"
	"errors"
	"image"
	"sync"
	"testing"
	"time"

	"github.com/jamischarles/timelapser/pkg/adapters/logger"
	"github.com/jamischarles/timelapser/pkg/mocks"
	"github.com/jamischarles/timelapser/pkg/pacing"
	"github.com/jamischarles/timelapser/pkg/ports"
	"github.com/jamischarles/timelapser/pkg/timelapse"
)

func testConfig() pacing.Config {
	cfg := pacing.DefaultConfig()
	cfg.FPS = 10.0
	cfg.Width = 64
	cfg.Height = 64
	cfg.BitrateKbps = 100
	return cfg
}

func plentyOfSpace(string) (uint64, error) {
	return 1 << 40, nil
}

func newTestController(source *mocks.FrameSource, encoder *mocks.VideoEncoder, fs *mocks.FileSystem, opts Options) *Controller {
	if opts.FreeSpace == nil {
		opts.FreeSpace = plentyOfSpace
	}
	return New(source, &mocks.FrameRenderer{}, encoder, fs, logger.NewNoop(), opts)
}

func TestController_Generate(t *testing.T) {
	source := &mocks.FrameSource{Frames: 20}
	encoder := &mocks.VideoEncoder{}
	fs := mocks.NewFileSystem()

	c := newTestController(source, encoder, fs, Options{})

	result, err := c.Generate(context.Background(), testConfig(), "out.mp4")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !encoder.OpenCalled {
		t.Error("expected Open to be called")
	}
	if !encoder.FinishCalled {
		t.Error("expected Finish to be called")
	}
	if encoder.AbortCalled {
		t.Error("Abort must not be called on a successful run")
	}
	if result.FramesEncoded != 20 {
		t.Errorf("expected 20 encoded frames, got %d", result.FramesEncoded)
	}
	if result.OutputPath != "out.mp4" {
		t.Errorf("expected output path out.mp4, got %q", result.OutputPath)
	}
	if c.State() != timelapse.StateCompleted {
		t.Errorf("expected completed state, got %s", c.State())
	}
}

func TestController_Generate_SubmitOrder(t *testing.T) {
	source := &mocks.FrameSource{Frames: 10}
	encoder := &mocks.VideoEncoder{}

	c := newTestController(source, encoder, mocks.NewFileSystem(), Options{})

	if _, err := c.Generate(context.Background(), testConfig(), "out.mp4"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	calls := encoder.Submitted()
	if len(calls) != 10 {
		t.Fatalf("expected 10 submits, got %d", len(calls))
	}
	for i := 1; i < len(calls); i++ {
		if calls[i].Pts <= calls[i-1].Pts {
			t.Fatalf("submit %d: pts %d not increasing after %d", i, calls[i].Pts, calls[i-1].Pts)
		}
	}
	// 10 fps at the 90000 timescale is 9000 ticks per frame.
	if calls[0].Pts != 0 || calls[0].Dur != 9000 {
		t.Errorf("first submit: expected pts 0 dur 9000, got pts %d dur %d", calls[0].Pts, calls[0].Dur)
	}
}

func TestController_Generate_ExtensionMismatch(t *testing.T) {
	c := newTestController(&mocks.FrameSource{Frames: 5}, &mocks.VideoEncoder{}, mocks.NewFileSystem(), Options{})

	_, err := c.Generate(context.Background(), testConfig(), "out.mov")
	if !timelapse.IsKind(err, timelapse.ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestController_Generate_NoFrames(t *testing.T) {
	encoder := &mocks.VideoEncoder{}
	c := newTestController(&mocks.FrameSource{Frames: 0}, encoder, mocks.NewFileSystem(), Options{})

	_, err := c.Generate(context.Background(), testConfig(), "out.mp4")
	if !timelapse.IsKind(err, timelapse.ErrNoFrames) {
		t.Errorf("expected ErrNoFrames, got %v", err)
	}
	if encoder.OpenCalled {
		t.Error("planning failures must not open an encoder session")
	}
	if c.State() != timelapse.StateFailed {
		t.Errorf("expected failed state, got %s", c.State())
	}
}

func TestController_Generate_InsufficientDiskSpace(t *testing.T) {
	encoder := &mocks.VideoEncoder{}
	c := newTestController(&mocks.FrameSource{Frames: 10}, encoder, mocks.NewFileSystem(), Options{
		FreeSpace: func(string) (uint64, error) { return 10, nil },
	})

	_, err := c.Generate(context.Background(), testConfig(), "out.mp4")
	if !timelapse.IsKind(err, timelapse.ErrInsufficientDiskSpace) {
		t.Errorf("expected ErrInsufficientDiskSpace, got %v", err)
	}
	if encoder.OpenCalled {
		t.Error("disk check failures must not open an encoder session")
	}
}

func TestController_Generate_SkipsUndecodableFrames(t *testing.T) {
	source := &mocks.FrameSource{Frames: 10, Bad: map[int]bool{3: true, 7: true}}
	encoder := &mocks.VideoEncoder{}

	c := newTestController(source, encoder, mocks.NewFileSystem(), Options{})

	result, err := c.Generate(context.Background(), testConfig(), "out.mp4")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.FramesEncoded != 8 {
		t.Errorf("expected 8 encoded frames, got %d", result.FramesEncoded)
	}
	if result.SkippedFrames != 2 {
		t.Errorf("expected 2 skipped frames, got %d", result.SkippedFrames)
	}
}

func TestController_Generate_AllFramesUndecodable(t *testing.T) {
	source := &mocks.FrameSource{Frames: 3, Bad: map[int]bool{0: true, 1: true, 2: true}}
	encoder := &mocks.VideoEncoder{}
	fs := mocks.NewFileSystem()

	c := newTestController(source, encoder, fs, Options{})

	_, err := c.Generate(context.Background(), testConfig(), "out.mp4")
	if !timelapse.IsKind(err, timelapse.ErrInvalidImageData) {
		t.Errorf("expected ErrInvalidImageData, got %v", err)
	}
	if !encoder.AbortCalled {
		t.Error("expected Abort when nothing could be encoded")
	}
	if c.State() != timelapse.StateFailed {
		t.Errorf("expected failed state, got %s", c.State())
	}
}

func TestController_Cancel(t *testing.T) {
	source := &mocks.FrameSource{Frames: 1000}
	fs := mocks.NewFileSystem()

	encoder := &mocks.VideoEncoder{
		// Simulate the partial file appearing once the session opens.
		OpenFunc: func(path string, _ ports.EncoderOptions) error {
			return fs.WriteFile(path, []byte("partial"))
		},
	}

	// Cancel from the progress callback a few frames in.
	var c *Controller
	c = newTestController(source, encoder, fs, Options{
		ProgressInterval: time.Nanosecond,
		Progress: func(p timelapse.GenerationProgress) {
			if p.FramesEncoded == 5 {
				c.Cancel()
			}
		},
	})

	_, err := c.Generate(context.Background(), testConfig(), "out.mp4")
	if !timelapse.IsKind(err, timelapse.ErrCancelled) {
		t.Fatalf("expected ErrCancelled, got %v", err)
	}
	if !encoder.AbortCalled {
		t.Error("expected Abort on cancellation")
	}
	if exists, _ := fs.Exists("out.mp4"); exists {
		t.Error("partial output must not exist after cancellation")
	}
	if c.State() != timelapse.StateCancelled {
		t.Errorf("expected cancelled state, got %s", c.State())
	}
}

func TestController_ContextCancellation(t *testing.T) {
	source := &mocks.FrameSource{Frames: 1000}
	encoder := &mocks.VideoEncoder{}
	fs := mocks.NewFileSystem()

	ctx, cancel := context.WithCancel(context.Background())

	c := newTestController(source, encoder, fs, Options{
		ProgressInterval: time.Nanosecond,
		Progress: func(p timelapse.GenerationProgress) {
			if p.FramesEncoded == 3 {
				cancel()
			}
		},
	})

	_, err := c.Generate(ctx, testConfig(), "out.mp4")
	if !timelapse.IsKind(err, timelapse.ErrCancelled) {
		t.Fatalf("expected ErrCancelled, got %v", err)
	}
}

func TestController_AlreadyRunning(t *testing.T) {
	source := &mocks.FrameSource{Frames: 50}
	fs := mocks.NewFileSystem()

	release := make(chan struct{})
	started := make(chan struct{})
	var once sync.Once
	encoder := &mocks.VideoEncoder{
		SubmitFunc: func(_ image.Image, _, _ int64) error {
			once.Do(func() { close(started) })
			<-release
			return nil
		},
	}

	c := newTestController(source, encoder, fs, Options{})

	firstDone := make(chan error, 1)
	go func() {
		_, err := c.Generate(context.Background(), testConfig(), "out.mp4")
		firstDone <- err
	}()

	<-started
	_, err := c.Generate(context.Background(), testConfig(), "other.mp4")
	if !timelapse.IsKind(err, timelapse.ErrAlreadyRunning) {
		t.Errorf("expected ErrAlreadyRunning, got %v", err)
	}

	close(release)
	if err := <-firstDone; err != nil {
		t.Fatalf("first run failed: %v", err)
	}
}

func TestController_FinalProgressSnapshot(t *testing.T) {
	source := &mocks.FrameSource{Frames: 10}
	encoder := &mocks.VideoEncoder{}

	var mu sync.Mutex
	var snapshots []timelapse.GenerationProgress

	c := newTestController(source, encoder, mocks.NewFileSystem(), Options{
		// A long throttle suppresses intermediate snapshots; the final
		// one must still arrive.
		ProgressInterval: time.Hour,
		Progress: func(p timelapse.GenerationProgress) {
			mu.Lock()
			snapshots = append(snapshots, p)
			mu.Unlock()
		},
	})

	if _, err := c.Generate(context.Background(), testConfig(), "out.mp4"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(snapshots) == 0 {
		t.Fatal("expected at least the final snapshot")
	}
	final := snapshots[len(snapshots)-1]
	if final.FramesEncoded != 10 || final.TotalFrames != 10 {
		t.Errorf("final snapshot: got %d/%d frames", final.FramesEncoded, final.TotalFrames)
	}
	if final.BytesWritten == 0 {
		t.Error("final snapshot should report bytes written")
	}
}

func TestController_SubmitFailureAbortsAndRemovesOutput(t *testing.T) {
	source := &mocks.FrameSource{Frames: 10}
	fs := mocks.NewFileSystem()

	encoder := &mocks.VideoEncoder{
		OpenFunc: func(path string, _ ports.EncoderOptions) error {
			return fs.WriteFile(path, []byte("partial"))
		},
	}
	failure := timelapse.WrapError(timelapse.ErrWritingFailed, errors.New("pipe closed"))
	encoder.SubmitFunc = func(_ image.Image, _, _ int64) error {
		if len(encoder.Submitted()) >= 3 {
			return failure
		}
		return nil
	}

	c := newTestController(source, encoder, fs, Options{})

	_, err := c.Generate(context.Background(), testConfig(), "out.mp4")
	if !timelapse.IsKind(err, timelapse.ErrWritingFailed) {
		t.Fatalf("expected ErrWritingFailed, got %v", err)
	}
	if c.State() != timelapse.StateFailed {
		t.Errorf("expected failed state, got %s", c.State())
	}
	if !encoder.AbortCalled {
		t.Error("expected Abort after a submit failure")
	}
	if encoder.FinishCalled {
		t.Error("Finish must not be called after a submit failure")
	}
	if exists, _ := fs.Exists("out.mp4"); exists {
		t.Error("partial output must not exist after a failed run")
	}
}

func TestController_FinishFailureAbortsAndRemovesOutput(t *testing.T) {
	source := &mocks.FrameSource{Frames: 5}
	fs := mocks.NewFileSystem()

	encoder := &mocks.VideoEncoder{
		OpenFunc: func(path string, _ ports.EncoderOptions) error {
			return fs.WriteFile(path, []byte("partial"))
		},
		FinishFunc: func() (string, error) {
			return "", timelapse.WrapError(timelapse.ErrWritingFailed, errors.New("moov truncated"))
		},
	}

	c := newTestController(source, encoder, fs, Options{})

	_, err := c.Generate(context.Background(), testConfig(), "out.mp4")
	if !timelapse.IsKind(err, timelapse.ErrWritingFailed) {
		t.Fatalf("expected ErrWritingFailed, got %v", err)
	}
	if c.State() != timelapse.StateFailed {
		t.Errorf("expected failed state, got %s", c.State())
	}
	if !encoder.AbortCalled {
		t.Error("expected Abort after a finish failure")
	}
	if exists, _ := fs.Exists("out.mp4"); exists {
		t.Error("partial output must not exist after a failed finish")
	}
}

func TestController_ManualModeReusesDecodedFrame(t *testing.T) {
	source := &mocks.FrameSource{Frames: 5}
	encoder := &mocks.VideoEncoder{}

	cfg := testConfig()
	cfg.Mode = pacing.ModeManual
	cfg.Repetitions = []pacing.FrameRepetition{{FrameIndex: 2, ExtraCopies: 3}}

	c := newTestController(source, encoder, mocks.NewFileSystem(), Options{})

	result, err := c.Generate(context.Background(), cfg, "out.mp4")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.FramesEncoded != 8 {
		t.Errorf("expected 8 encoded frames, got %d", result.FramesEncoded)
	}
	// Consecutive copies of frame 2 decode once.
	if got := len(source.Loaded()); got != 5 {
		t.Errorf("expected 5 decodes, got %d", got)
	}
}
