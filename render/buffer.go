package render

import (
	"image"

	fractal "github.com/marben/dist_fractal"
)

// Buffer is a packed RGB raster, 3 bytes per pixel, row major.
type Buffer struct {
	Width, Height int
	Pix           []uint8
}

func NewBuffer(w, h int) *Buffer {
	return &Buffer{Width: w, Height: h, Pix: make([]uint8, w*h*3)}
}

func (b *Buffer) offset(x, y int) int {
	return (y*b.Width + x) * 3
}

func (b *Buffer) At(x, y int) fractal.RGB {
	i := b.offset(x, y)
	return fractal.RGB{R: b.Pix[i], G: b.Pix[i+1], B: b.Pix[i+2]}
}

func (b *Buffer) Set(x, y int, c fractal.RGB) {
	i := b.offset(x, y)
	b.Pix[i], b.Pix[i+1], b.Pix[i+2] = c.R, c.G, c.B
}

// RGBA converts the buffer into an opaque image for encoding.
func (b *Buffer) RGBA() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, b.Width, b.Height))
	for i, j := 0, 0; i < len(b.Pix); i, j = i+3, j+4 {
		img.Pix[j] = b.Pix[i]
		img.Pix[j+1] = b.Pix[i+1]
		img.Pix[j+2] = b.Pix[i+2]
		img.Pix[j+3] = 0xff
	}
	return img
}
