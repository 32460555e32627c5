// Package ggrenderer implements ports.FrameRenderer using the gg
// library for the canvas and x/image for high-quality scaling.
package ggrenderer

import (
	"image"
	"image/color"

	"github.com/fogleman/gg"
	"golang.org/x/image/draw"

	"github.com/jamischarles/timelapser/pkg/ports"
)

// Renderer letterboxes decoded images onto a black canvas of the
// output raster size. The scaling kernel and placement are fixed, so
// identical inputs always produce identical pixels.
type Renderer struct{}

// New creates a new Renderer.
func New() *Renderer {
	return &Renderer{}
}

// Render scales img preserving aspect ratio and centers it on a black
// width x height canvas.
func (r *Renderer) Render(img image.Image, width, height int) image.Image {
	dc := gg.NewContext(width, height)
	dc.SetColor(color.Black)
	dc.Clear()

	bounds := img.Bounds()
	srcW := bounds.Dx()
	srcH := bounds.Dy()
	if srcW <= 0 || srcH <= 0 {
		return dc.Image()
	}

	fitW, fitH := fitDimensions(srcW, srcH, width, height)
	if fitW != srcW || fitH != srcH {
		scaled := image.NewRGBA(image.Rect(0, 0, fitW, fitH))
		draw.CatmullRom.Scale(scaled, scaled.Bounds(), img, bounds, draw.Over, nil)
		img = scaled
	}

	dc.DrawImage(img, (width-fitW)/2, (height-fitH)/2)
	return dc.Image()
}

// fitDimensions computes the largest size with the source aspect ratio
// that fits inside the target, at least 1x1.
func fitDimensions(srcW, srcH, dstW, dstH int) (int, int) {
	scaleW := float64(dstW) / float64(srcW)
	scaleH := float64(dstH) / float64(srcH)
	scale := scaleW
	if scaleH < scale {
		scale = scaleH
	}
	w := int(float64(srcW)*scale + 0.5)
	h := int(float64(srcH)*scale + 0.5)
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	if w > dstW {
		w = dstW
	}
	if h > dstH {
		h = dstH
	}
	return w, h
}

var _ ports.FrameRenderer = (*Renderer)(nil)
