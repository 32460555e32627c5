package ports

import (
	"image"
)

// FrameRenderer scales a decoded image into the fixed output raster.
// The result preserves aspect ratio, is centered on a black canvas of
// exactly width x height, and is deterministic for identical inputs.
type FrameRenderer interface {
	Render(img image.Image, width, height int) image.Image
}
