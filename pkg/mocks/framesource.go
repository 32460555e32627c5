package mocks

import (
	"context"
	"image"
	"sync"

	"github.com/jamischarles/timelapser/pkg/ports"
	"github.com/jamischarles/timelapser/pkg/timelapse"
)

// FrameSource is a mock implementation of ports.FrameSource backed by
// a fixed frame count. Indices listed in Bad fail with
// ErrInvalidImageData.
type FrameSource struct {
	Frames   int
	Bad      map[int]bool
	LoadFunc func(ctx context.Context, sourceIndex int) (image.Image, error)

	mu        sync.Mutex
	LoadCalls []int
}

func (m *FrameSource) Count() int {
	return m.Frames
}

func (m *FrameSource) Load(ctx context.Context, sourceIndex int) (image.Image, error) {
	m.mu.Lock()
	m.LoadCalls = append(m.LoadCalls, sourceIndex)
	m.mu.Unlock()
	if m.LoadFunc != nil {
		return m.LoadFunc(ctx, sourceIndex)
	}
	if m.Bad[sourceIndex] {
		return nil, timelapse.InvalidImageData(sourceIndex, nil)
	}
	return image.NewRGBA(image.Rect(0, 0, 4, 4)), nil
}

// Loaded returns a copy of the recorded Load indices.
func (m *FrameSource) Loaded() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]int, len(m.LoadCalls))
	copy(out, m.LoadCalls)
	return out
}

var _ ports.FrameSource = (*FrameSource)(nil)
