package ports

import (
	"context"
	"image"
)

// FrameSource abstracts decoded access to the ordered source images.
// Indices may be requested out of submission order (the controller may
// prefetch); implementations must not assume sequential access.
type FrameSource interface {
	// Count returns the number of source frames.
	Count() int

	// Load decodes the image at the given source index.
	Load(ctx context.Context, sourceIndex int) (image.Image, error)
}
