package raster

import (
	"image"
	"image/color"
	"testing"
)

func TestSplit_rgbRoundTrip(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 3, 2))
	for y := 0; y < 2; y++ {
		for x := 0; x < 3; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(10 * x), G: uint8(20 * y), B: 200, A: 255 - uint8(x)})
		}
	}
	p := Split(img)
	if p.Gray {
		t.Fatal("NRGBA image reported as gray")
	}
	if p.R.Rows != 2 || p.R.Cols != 3 {
		t.Fatalf("R is %dx%d, want 2x3", p.R.Rows, p.R.Cols)
	}
	if got := p.R.At(0, 2); got != 20.0/255 {
		t.Errorf("R(0,2) = %v, want %v", got, 20.0/255)
	}
	if len(p.Grids()) != 3 || p.Primary() != p.R {
		t.Error("colour planes should expose R, G, B with R primary")
	}

	back := p.Image().(*image.NRGBA)
	for y := 0; y < 2; y++ {
		for x := 0; x < 3; x++ {
			if back.NRGBAAt(x, y) != img.NRGBAAt(x, y) {
				t.Errorf("(%d,%d) = %v, want %v", x, y, back.NRGBAAt(x, y), img.NRGBAAt(x, y))
			}
		}
	}
}

func TestSplit_gray(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 2, 2))
	img.SetGray(1, 1, color.Gray{Y: 128})
	p := Split(img)
	if !p.Gray || p.Y == nil || p.R != nil {
		t.Fatal("gray image should only populate Y")
	}
	back := p.Image().(*image.Gray)
	if back.GrayAt(1, 1).Y != 128 {
		t.Errorf("Y(1,1) = %d, want 128", back.GrayAt(1, 1).Y)
	}
}

func TestImage_clamps(t *testing.T) {
	p := Split(image.NewGray(image.Rect(0, 0, 2, 1)))
	p.Y.Data[0] = -0.2
	p.Y.Data[1] = 1.4
	out := p.Image().(*image.Gray)
	if out.Pix[0] != 0 || out.Pix[1] != 255 {
		t.Errorf("Pix = %v, want [0 255]", out.Pix)
	}
}

func TestLuma(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 2, 1))
	img.Pix[0], img.Pix[1] = 7, 250
	got := Luma(img)
	if len(got) != 2 || got[0] != 7 || got[1] != 250 {
		t.Errorf("Luma = %v, want [7 250]", got)
	}
}
