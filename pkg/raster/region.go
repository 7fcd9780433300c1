package raster

import "github.com/haivivi/mediaseal/pkg/watermark"

// Region returns the size of the top-left region of a rows x cols plane
// that alg embeds into: whole blocks for block codecs, the largest
// power-of-two rectangle for wavelet codecs. Pixels outside the region are
// never touched, so every bit it carries reads back from the same region.
func Region(alg watermark.Algorithm, rows, cols int) (int, int) {
	if alg.PadMode() == watermark.PadPowerOfTwo {
		return floorPowerOfTwo(rows), floorPowerOfTwo(cols)
	}
	bs := watermark.BlockSizeOf(alg)
	return rows / bs * bs, cols / bs * bs
}

// Capacity returns the bits a rows x cols plane carries under alg.
func Capacity(alg watermark.Algorithm, rows, cols int) int {
	r, c := Region(alg, rows, cols)
	if r == 0 || c == 0 {
		return 0
	}
	return alg.Capacity(r, c)
}

// Fit returns the embedding region of g. It is g itself when g is already
// aligned.
func Fit(alg watermark.Algorithm, g *watermark.Grid) *watermark.Grid {
	rows, cols := Region(alg, g.Rows, g.Cols)
	return watermark.Crop(g, rows, cols)
}

// Paste copies the top-left overlap of region into g.
func Paste(g, region *watermark.Grid) {
	rows, cols := min(g.Rows, region.Rows), min(g.Cols, region.Cols)
	for r := 0; r < rows; r++ {
		copy(g.Data[r*g.Cols:r*g.Cols+cols], region.Data[r*region.Cols:r*region.Cols+cols])
	}
}

func floorPowerOfTwo(n int) int {
	if n < 1 {
		return 0
	}
	p := 1
	for p*2 <= n {
		p *= 2
	}
	return p
}
