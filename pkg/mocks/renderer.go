package mocks

import (
	"image"

	"github.com/jamischarles/timelapser/pkg/ports"
)

// FrameRenderer is a mock implementation of ports.FrameRenderer that
// returns a blank raster of the requested size.
type FrameRenderer struct {
	RenderFunc func(img image.Image, width, height int) image.Image

	RenderCalls int
}

func (m *FrameRenderer) Render(img image.Image, width, height int) image.Image {
	m.RenderCalls++
	if m.RenderFunc != nil {
		return m.RenderFunc(img, width, height)
	}
	return image.NewRGBA(image.Rect(0, 0, width, height))
}

var _ ports.FrameRenderer = (*FrameRenderer)(nil)
