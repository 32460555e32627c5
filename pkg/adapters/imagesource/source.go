// Package imagesource implements ports.FrameSource over an ordered
// list of image file paths. List order is the source-of-truth temporal
// order; the source has no notion of capture timestamps.
package imagesource

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"os"

	// Registered decoders. JPEG and PNG cover typical capture output;
	// the x/image formats show up in imported material.
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/jamischarles/timelapser/pkg/ports"
	"github.com/jamischarles/timelapser/pkg/timelapse"
)

// Source decodes frames lazily, one per Load call. It holds no decoded
// pixels itself, so memory stays bounded by the caller's prefetch depth.
type Source struct {
	paths []string
}

// New creates a Source over the given ordered image paths.
func New(paths []string) *Source {
	return &Source{paths: paths}
}

// Count returns the number of source frames.
func (s *Source) Count() int {
	return len(s.paths)
}

// Load decodes the image at the given source index. Unreadable or
// undecodable files surface as ErrInvalidImageData carrying the index.
func (s *Source) Load(ctx context.Context, sourceIndex int) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if sourceIndex < 0 || sourceIndex >= len(s.paths) {
		return nil, timelapse.InvalidImageData(sourceIndex, fmt.Errorf("index out of range [0,%d)", len(s.paths)))
	}
	data, err := os.ReadFile(s.paths[sourceIndex])
	if err != nil {
		return nil, timelapse.InvalidImageData(sourceIndex, err)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, timelapse.InvalidImageData(sourceIndex, err)
	}
	return img, nil
}

var _ ports.FrameSource = (*Source)(nil)
