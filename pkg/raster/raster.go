// Package raster converts between images and per-channel sample grids in
// the [0,1] range.
package raster

import (
	"image"
	"image/color"
	"math"

	"github.com/haivivi/mediaseal/pkg/watermark"
)

// Planes holds the channels of an image as grids of height x width.
// Grayscale images only populate Y.
type Planes struct {
	Width  int
	Height int

	// Gray reports whether the source was a grayscale image.
	Gray bool

	Y       *watermark.Grid
	R, G, B *watermark.Grid

	alpha []uint8
}

// Split decomposes img into channel grids.
func Split(img image.Image) *Planes {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	p := &Planes{Width: w, Height: h}

	switch img.(type) {
	case *image.Gray, *image.Gray16:
		p.Gray = true
		p.Y = watermark.NewGrid(h, w)
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				c := color.GrayModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.Gray)
				p.Y.Set(y, x, float64(c.Y)/255)
			}
		}
		return p
	}

	p.R = watermark.NewGrid(h, w)
	p.G = watermark.NewGrid(h, w)
	p.B = watermark.NewGrid(h, w)
	p.alpha = make([]uint8, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := color.NRGBAModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA)
			p.R.Set(y, x, float64(c.R)/255)
			p.G.Set(y, x, float64(c.G)/255)
			p.B.Set(y, x, float64(c.B)/255)
			p.alpha[y*w+x] = c.A
		}
	}
	return p
}

// Grids returns the populated channel grids: Y for grayscale, otherwise
// R, G, B.
func (p *Planes) Grids() []*watermark.Grid {
	if p.Gray {
		return []*watermark.Grid{p.Y}
	}
	return []*watermark.Grid{p.R, p.G, p.B}
}

// Primary returns the channel extraction reads from: Y for grayscale, R
// otherwise.
func (p *Planes) Primary() *watermark.Grid {
	if p.Gray {
		return p.Y
	}
	return p.R
}

// Image composes the planes back into an 8-bit image. Values are clamped
// to [0,1] and rounded.
func (p *Planes) Image() image.Image {
	rect := image.Rect(0, 0, p.Width, p.Height)
	if p.Gray {
		out := image.NewGray(rect)
		for i, v := range p.Y.Data {
			out.Pix[(i/p.Width)*out.Stride+i%p.Width] = quantize(v)
		}
		return out
	}
	out := image.NewNRGBA(rect)
	for i := range p.R.Data {
		o := (i/p.Width)*out.Stride + (i%p.Width)*4
		out.Pix[o+0] = quantize(p.R.Data[i])
		out.Pix[o+1] = quantize(p.G.Data[i])
		out.Pix[o+2] = quantize(p.B.Data[i])
		out.Pix[o+3] = p.alpha[i]
	}
	return out
}

// Red returns the red channel of img, or the luma of a grayscale image.
func Red(img image.Image) *watermark.Grid {
	return Split(img).Primary()
}

// Luma returns the 0-255 luma of every pixel, row-major.
func Luma(img image.Image) []float64 {
	b := img.Bounds()
	out := make([]float64, 0, b.Dx()*b.Dy())
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			out = append(out, float64(color.GrayModel.Convert(img.At(x, y)).(color.Gray).Y))
		}
	}
	return out
}

func quantize(v float64) uint8 {
	return uint8(math.Round(math.Max(0, math.Min(1, v)) * 255))
}
