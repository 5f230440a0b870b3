package render

import (
	"image"
	"image/color"
	"math"
)

// A greyscale accumulation buffer. Samples are summed per pixel and
// normalized when the image is exported.
type Image struct {
	width  uint32
	height uint32
	data   []float32
}

func NewImage(w, h uint32) *Image {
	return &Image{
		width:  w,
		height: h,
		data:   make([]float32, w*h),
	}
}

func (im *Image) Width() uint32 {
	return im.width
}

func (im *Image) Height() uint32 {
	return im.height
}

// Reset all accumulated samples.
func (im *Image) Zero() {
	for ii := range im.data {
		im.data[ii] = 0
	}
}

// Accumulate a sample value at a pixel.
func (im *Image) Add(x, y uint32, val float32) {
	im.data[x+y*im.width] += val
}

// Accumulated value at a pixel.
func (im *Image) At(x, y uint32) float32 {
	return im.data[x+y*im.width]
}

// NRGBA exports the buffer as an 8-bit greyscale image, normalized to the
// brightest pixel and gamma encoded. Row 0 of the buffer becomes the bottom
// image row, matching the y-up camera.
func (im *Image) NRGBA() *image.NRGBA {
	var max float32
	for _, p := range im.data {
		if p > max {
			max = p
		}
	}

	var scale float32
	if max > 0 {
		scale = 1.0 / max
	}

	out := image.NewNRGBA(image.Rect(0, 0, int(im.width), int(im.height)))
	for y := uint32(0); y < im.height; y++ {
		src := im.data[(im.height-(y+1))*im.width:]

		for x := uint32(0); x < im.width; x++ {
			val := math.Pow(float64(scale*src[x]), 1.0/2.4)
			v := uint8(val * 255.0)

			out.SetNRGBA(int(x), int(y), color.NRGBA{R: v, G: v, B: v, A: 255})
		}
	}

	return out
}
