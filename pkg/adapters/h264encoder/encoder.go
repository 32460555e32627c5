// Package h264encoder implements ports.VideoEncoder on top of an
// ffmpeg subprocess. Raw RGBA rasters go in on stdin, a raw H.264
// elementary stream comes back on stdout, and the samples are muxed
// in-process into a fragmented MP4/MOV container that grows on disk
// while the run is in flight.
package h264encoder

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"io"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"

	"github.com/jamischarles/timelapser/pkg/ports"
	"github.com/jamischarles/timelapser/pkg/timelapse"
)

// maxInflight is the number of submitted frames that may be awaiting
// muxing before Ready turns false.
const maxInflight = 2

// sampleTiming is the planned timing of one submitted frame, queued
// until its encoded access unit arrives.
type sampleTiming struct {
	pts int64
	dur int64
}

// Encoder implements ports.VideoEncoder. One Encoder handles one
// session; Open resets it for a fresh run.
type Encoder struct {
	mu sync.Mutex

	opts    ports.EncoderOptions
	path    string
	file    *os.File
	written atomic.Int64

	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stderr bytes.Buffer

	writer   *mp4Writer
	pending  []sampleTiming
	lastPts  int64
	lastDur  int64
	raster   *image.RGBA
	readerWG sync.WaitGroup
	muxErr   error
	open     bool
	aborted  bool
}

// New creates a new H.264 encoder.
func New() *Encoder {
	return &Encoder{}
}

// ffmpegArgs builds the x264 invocation for one session. The tuning is
// load-bearing for the readiness protocol: baseline profile has no
// B-frames, so output order matches submission order; aud=1 marks
// access unit boundaries for the stream scanner; zerolatency disables
// the encoder's lookahead and frame-thread delay, so every submitted
// frame produces an access unit before the next submit. Without it,
// x264 withholds rc-lookahead frames (~30) of output and the pending
// queue never drains below maxInflight.
func ffmpegArgs(opts ports.EncoderOptions) []string {
	args := []string{
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"-s", fmt.Sprintf("%dx%d", opts.Width, opts.Height),
		"-r", fmt.Sprintf("%.3f", opts.FPS),
		"-i", "pipe:0",
		"-c:v", "libx264",
		"-preset", "fast",
		"-tune", "zerolatency",
		"-profile:v", "baseline",
		"-level", "3.1",
		"-x264-params", "aud=1",
		"-pix_fmt", "yuv420p",
		"-vsync", "0",
	}
	if opts.BitrateKbps > 0 {
		args = append(args, "-b:v", fmt.Sprintf("%dk", opts.BitrateKbps))
	}
	return append(args, "-f", "h264", "pipe:1")
}

// Open creates the output container and starts the ffmpeg process.
func (e *Encoder) Open(path string, opts ports.EncoderOptions) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.open {
		return fmt.Errorf("h264encoder: session already open")
	}

	ffmpegPath, err := FindFFmpeg()
	if err != nil {
		return timelapse.WrapError(timelapse.ErrInputCreationFailed, err)
	}

	file, err := os.Create(path)
	if err != nil {
		return timelapse.WrapError(timelapse.ErrWriterCreationFailed, err)
	}

	cmd := exec.Command(ffmpegPath, ffmpegArgs(opts)...)
	e.stderr.Reset()
	cmd.Stderr = &e.stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		file.Close()
		os.Remove(path)
		return timelapse.WrapError(timelapse.ErrInputCreationFailed, err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		file.Close()
		os.Remove(path)
		return timelapse.WrapError(timelapse.ErrInputCreationFailed, err)
	}
	if err := cmd.Start(); err != nil {
		file.Close()
		os.Remove(path)
		return timelapse.WrapError(timelapse.ErrInputCreationFailed, err)
	}

	e.opts = opts
	e.path = path
	e.file = file
	e.cmd = cmd
	e.stdin = stdin
	e.written.Store(0)
	e.writer = newMP4Writer(&countingWriter{f: file, n: &e.written}, opts.Width, opts.Height, opts.Timescale, opts.Container)
	e.pending = nil
	e.lastPts = 0
	e.lastDur = int64(float64(opts.Timescale)/opts.FPS + 0.5)
	e.raster = image.NewRGBA(image.Rect(0, 0, opts.Width, opts.Height))
	e.muxErr = nil
	e.open = true
	e.aborted = false

	e.readerWG.Add(1)
	go e.muxLoop(stdout)

	return nil
}

// Ready reports whether another frame can be submitted without more
// than maxInflight encoded pictures outstanding.
func (e *Encoder) Ready() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.open {
		return false
	}
	// Report ready on mux failure so the caller reaches Submit and
	// observes the error instead of polling forever.
	if e.muxErr != nil {
		return true
	}
	return len(e.pending) < maxInflight
}

// Submit feeds one frame to ffmpeg and queues its timing for muxing.
func (e *Encoder) Submit(frame image.Image, ptsTicks, durTicks int64) error {
	e.mu.Lock()
	if !e.open {
		e.mu.Unlock()
		return ErrNotOpen
	}
	if e.muxErr != nil {
		err := e.muxErr
		e.mu.Unlock()
		return timelapse.WrapError(timelapse.ErrWritingFailed, err)
	}
	raster := e.raster
	stdin := e.stdin
	e.mu.Unlock()

	draw.Draw(raster, raster.Bounds(), frame, frame.Bounds().Min, draw.Src)
	if _, err := stdin.Write(raster.Pix); err != nil {
		return timelapse.WrapError(timelapse.ErrWritingFailed, fmt.Errorf("%w; ffmpeg: %s", err, e.stderrTail()))
	}

	e.mu.Lock()
	e.pending = append(e.pending, sampleTiming{pts: ptsTicks, dur: durTicks})
	e.lastDur = durTicks
	e.mu.Unlock()
	return nil
}

// BytesWritten returns the output file size so far.
func (e *Encoder) BytesWritten() int64 {
	return e.written.Load()
}

// Finish flushes the encoder, muxes the remaining samples and closes
// the container.
func (e *Encoder) Finish() (string, error) {
	e.mu.Lock()
	if !e.open {
		e.mu.Unlock()
		return "", ErrNotOpen
	}
	stdin := e.stdin
	e.mu.Unlock()

	// Closing stdin drains the encoder; the mux loop reads until EOF.
	stdin.Close()
	e.readerWG.Wait()
	waitErr := e.cmd.Wait()

	e.mu.Lock()
	defer e.mu.Unlock()
	e.open = false

	if e.muxErr != nil {
		e.closeAndRemoveLocked()
		return "", timelapse.WrapError(timelapse.ErrWritingFailed, e.muxErr)
	}
	if waitErr != nil {
		e.closeAndRemoveLocked()
		return "", timelapse.WrapError(timelapse.ErrWritingFailed, fmt.Errorf("%w; ffmpeg: %s", waitErr, e.stderrTail()))
	}
	if !e.writer.initWritten {
		e.closeAndRemoveLocked()
		return "", timelapse.WrapError(timelapse.ErrWritingFailed, ErrSPSNotFound)
	}
	if err := e.file.Close(); err != nil {
		e.file = nil
		os.Remove(e.path)
		return "", timelapse.WrapError(timelapse.ErrWritingFailed, err)
	}
	// Ownership of the file transfers to the caller here; a late Abort
	// must not remove it.
	e.file = nil
	return e.path, nil
}

// Abort kills the encoder process and removes the partial output.
// Idempotent; safe after a failed Open.
func (e *Encoder) Abort() error {
	e.mu.Lock()
	if e.aborted || e.file == nil {
		e.mu.Unlock()
		return nil
	}
	e.aborted = true
	open := e.open
	e.open = false
	stdin := e.stdin
	cmd := e.cmd
	e.mu.Unlock()

	if open {
		if stdin != nil {
			stdin.Close()
		}
		if cmd != nil && cmd.Process != nil {
			cmd.Process.Kill()
		}
		e.readerWG.Wait()
		if cmd != nil {
			cmd.Wait()
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.closeAndRemoveLocked()
	return nil
}

// muxLoop reads access units off ffmpeg's stdout and appends them to
// the container, pairing each with the submitted timing queue in FIFO
// order.
func (e *Encoder) muxLoop(stdout io.Reader) {
	defer e.readerWG.Done()

	scanner := newAUScanner(stdout)
	for {
		au, err := scanner.Next()
		if err == io.EOF {
			return
		}
		if err != nil {
			e.setMuxErr(err)
			return
		}

		e.mu.Lock()
		if !e.writer.initWritten {
			sps, pps := au.parameterSets()
			if sps == nil {
				e.mu.Unlock()
				e.setMuxErr(ErrSPSNotFound)
				return
			}
			if pps == nil {
				e.mu.Unlock()
				e.setMuxErr(ErrPPSNotFound)
				return
			}
			if err := e.writer.writeInit(sps, pps); err != nil {
				e.mu.Unlock()
				e.setMuxErr(err)
				return
			}
		}

		var timing sampleTiming
		if len(e.pending) > 0 {
			timing = e.pending[0]
			e.pending = e.pending[1:]
		} else {
			// Should not happen with one access unit per submitted
			// frame; keep the stream monotonic if it does.
			timing = sampleTiming{pts: e.lastPts + e.lastDur, dur: e.lastDur}
		}
		e.lastPts = timing.pts
		err = e.writer.writeSample(au.avccSample(), timing.pts, timing.dur, au.keyframe())
		e.mu.Unlock()

		if err != nil {
			e.setMuxErr(err)
			return
		}
	}
}

func (e *Encoder) setMuxErr(err error) {
	e.mu.Lock()
	if e.muxErr == nil {
		e.muxErr = err
	}
	e.mu.Unlock()
}

func (e *Encoder) closeAndRemoveLocked() {
	if e.file != nil {
		e.file.Close()
		e.file = nil
		os.Remove(e.path)
	}
}

// stderrTail returns the last part of ffmpeg's stderr for error context.
func (e *Encoder) stderrTail() string {
	s := e.stderr.String()
	if len(s) > 512 {
		s = s[len(s)-512:]
	}
	return s
}

// countingWriter tracks bytes written to the output file so progress
// can report file growth without stat calls.
type countingWriter struct {
	f *os.File
	n *atomic.Int64
}

func (w *countingWriter) Write(p []byte) (int, error) {
	n, err := w.f.Write(p)
	w.n.Add(int64(n))
	return n, err
}

var _ ports.VideoEncoder = (*Encoder)(nil)
