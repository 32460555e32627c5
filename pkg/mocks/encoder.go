package mocks

import (
	"image"
	"sync"

	"github.com/jamischarles/timelapser/pkg/ports"
)

// VideoEncoder is a mock implementation of ports.VideoEncoder.
type VideoEncoder struct {
	OpenFunc   func(path string, opts ports.EncoderOptions) error
	ReadyFunc  func() bool
	SubmitFunc func(frame image.Image, ptsTicks, durTicks int64) error
	FinishFunc func() (string, error)
	AbortFunc  func() error

	mu sync.Mutex

	// Recorded calls for verification
	OpenCalled   bool
	OpenPath     string
	OpenOptions  ports.EncoderOptions
	SubmitCalls  []SubmitCall
	FinishCalled bool
	AbortCalled  bool
	Bytes        int64
}

// SubmitCall records a call to Submit.
type SubmitCall struct {
	Pts int64
	Dur int64
}

func (m *VideoEncoder) Open(path string, opts ports.EncoderOptions) error {
	m.mu.Lock()
	m.OpenCalled = true
	m.OpenPath = path
	m.OpenOptions = opts
	m.mu.Unlock()
	if m.OpenFunc != nil {
		return m.OpenFunc(path, opts)
	}
	return nil
}

func (m *VideoEncoder) Ready() bool {
	if m.ReadyFunc != nil {
		return m.ReadyFunc()
	}
	return true
}

func (m *VideoEncoder) Submit(frame image.Image, ptsTicks, durTicks int64) error {
	m.mu.Lock()
	m.SubmitCalls = append(m.SubmitCalls, SubmitCall{Pts: ptsTicks, Dur: durTicks})
	m.Bytes += 1024
	m.mu.Unlock()
	if m.SubmitFunc != nil {
		return m.SubmitFunc(frame, ptsTicks, durTicks)
	}
	return nil
}

func (m *VideoEncoder) BytesWritten() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Bytes
}

func (m *VideoEncoder) Finish() (string, error) {
	m.mu.Lock()
	m.FinishCalled = true
	path := m.OpenPath
	m.mu.Unlock()
	if m.FinishFunc != nil {
		return m.FinishFunc()
	}
	return path, nil
}

func (m *VideoEncoder) Abort() error {
	m.mu.Lock()
	m.AbortCalled = true
	m.mu.Unlock()
	if m.AbortFunc != nil {
		return m.AbortFunc()
	}
	return nil
}

// Submitted returns a copy of the recorded Submit calls.
func (m *VideoEncoder) Submitted() []SubmitCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SubmitCall, len(m.SubmitCalls))
	copy(out, m.SubmitCalls)
	return out
}

var _ ports.VideoEncoder = (*VideoEncoder)(nil)
