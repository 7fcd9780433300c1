package watermark

import (
	"fmt"
	"math"
)

// Grid is a 2D array of samples stored row-major.
//
// Image channels use the [0,1] range; audio uses [-1,1]. A Grid is created
// per call and never shared between calls.
type Grid struct {
	Rows int
	Cols int
	Data []float64
}

// NewGrid returns a zeroed rows x cols grid.
func NewGrid(rows, cols int) *Grid {
	return &Grid{Rows: rows, Cols: cols, Data: make([]float64, rows*cols)}
}

// GridFromSlice wraps data as a rows x cols grid. The slice is copied.
func GridFromSlice(rows, cols int, data []float64) (*Grid, error) {
	if rows < 0 || cols < 0 || len(data) != rows*cols {
		return nil, fmt.Errorf("%w: %d samples do not fill a %dx%d grid", ErrInvalidArgument, len(data), rows, cols)
	}
	g := NewGrid(rows, cols)
	copy(g.Data, data)
	return g, nil
}

// At returns the sample at (r, c).
func (g *Grid) At(r, c int) float64 {
	return g.Data[r*g.Cols+c]
}

// Set stores v at (r, c).
func (g *Grid) Set(r, c int, v float64) {
	g.Data[r*g.Cols+c] = v
}

// Clone returns a deep copy of g.
func (g *Grid) Clone() *Grid {
	out := NewGrid(g.Rows, g.Cols)
	copy(out.Data, g.Data)
	return out
}

// PadMode selects the shape constraint ToGrid rounds the square side to.
type PadMode int

const (
	// PadBlockMultiple rounds the side up to a multiple of the block size.
	PadBlockMultiple PadMode = iota
	// PadPowerOfTwo rounds the side up to the next power of two.
	PadPowerOfTwo
)

func (m PadMode) String() string {
	switch m {
	case PadBlockMultiple:
		return "block-multiple"
	case PadPowerOfTwo:
		return "power-of-two"
	default:
		return fmt.Sprintf("PadMode(%d)", int(m))
	}
}

// Range describes the value range of grid samples.
type Range int

const (
	// RangeUnit is the image channel range [0,1]; FromGrid clamps to it.
	RangeUnit Range = iota
	// RangeAudio is the audio range [-1,1]; FromGrid leaves values as-is so
	// the caller's own limiter can shape them.
	RangeAudio
)

// ToGrid lays samples out row-major in the smallest square grid whose side
// is at least ceil(sqrt(len(samples))) and satisfies mode. The remainder is
// filled with zeros (silence).
func ToGrid(samples []float64, blockSize int, mode PadMode) *Grid {
	side := GridSide(len(samples), blockSize, mode)
	g := NewGrid(side, side)
	copy(g.Data, samples)
	return g
}

// GridSide returns the side of the square grid ToGrid builds for n samples.
func GridSide(n, blockSize int, mode PadMode) int {
	side := squareSide(n)
	if mode == PadPowerOfTwo {
		return nextPowerOfTwo(side)
	}
	if blockSize < 1 {
		blockSize = DefaultBlockSize
	}
	return roundUp(side, blockSize)
}

// ToGridMirror is ToGrid with the remainder filled by mirroring the tail of
// samples instead of zeros. It suits flattened image data where silence
// would inject an artificial edge.
func ToGridMirror(samples []float64, blockSize int, mode PadMode) *Grid {
	g := ToGrid(samples, blockSize, mode)
	n := len(samples)
	if n == 0 {
		return g
	}
	for j := n; j < len(g.Data); j++ {
		g.Data[j] = samples[mirrorIndex(j, n)]
	}
	return g
}

// FromGrid flattens g row-major and truncates or zero-extends the result to
// originalLength. RangeUnit values are clamped to [0,1].
func FromGrid(g *Grid, originalLength int, r Range) []float64 {
	out := make([]float64, originalLength)
	copy(out, g.Data)
	if r == RangeUnit {
		for i, v := range out {
			out[i] = clamp(v, 0, 1)
		}
	}
	return out
}

// Capacity returns the payload bit count a width x height grid carries
// under kind. Block codecs carry one bit per (partial) block. Wavelet
// codecs are sized by the quarter area of the even-padded grid, capped at
// the detail positions of the power-of-two grid the codec transforms.
func Capacity(width, height int, kind Kind) (int, error) {
	if width < 0 || height < 0 {
		return 0, fmt.Errorf("%w: negative dimensions %dx%d", ErrInvalidArgument, width, height)
	}
	switch kind {
	case KindDCT:
		return ceilDiv(width, DefaultBlockSize) * ceilDiv(height, DefaultBlockSize), nil
	case KindDWT:
		area := padEven(width) * padEven(height) / 4
		return min(area, len(detailPositions(nextPowerOfTwo(height), nextPowerOfTwo(width)))), nil
	default:
		return 0, fmt.Errorf("%w: algorithm %q", ErrUnsupportedFormat, kind)
	}
}

// PadToBlock extends g by edge-mirroring so both dimensions are multiples
// of blockSize. An aligned grid is returned as-is.
func PadToBlock(g *Grid, blockSize int) *Grid {
	return padMirror(g, roundUp(g.Rows, blockSize), roundUp(g.Cols, blockSize))
}

// PadToPowerOfTwo extends g by edge-mirroring so both dimensions are powers
// of two. An already conforming grid is returned as-is.
func PadToPowerOfTwo(g *Grid) *Grid {
	return padMirror(g, nextPowerOfTwo(g.Rows), nextPowerOfTwo(g.Cols))
}

// Crop returns the top-left rows x cols region of g. When the dimensions
// already match, g is returned as-is.
func Crop(g *Grid, rows, cols int) *Grid {
	if g.Rows == rows && g.Cols == cols {
		return g
	}
	out := NewGrid(rows, cols)
	for r := 0; r < rows; r++ {
		copy(out.Data[r*cols:(r+1)*cols], g.Data[r*g.Cols:r*g.Cols+cols])
	}
	return out
}

func padMirror(g *Grid, rows, cols int) *Grid {
	if rows == g.Rows && cols == g.Cols {
		return g
	}
	out := NewGrid(rows, cols)
	if g.Rows == 0 || g.Cols == 0 {
		return out
	}
	for r := 0; r < rows; r++ {
		sr := r
		if sr >= g.Rows {
			sr = mirrorIndex(r, g.Rows)
		}
		for c := 0; c < cols; c++ {
			sc := c
			if sc >= g.Cols {
				sc = mirrorIndex(c, g.Cols)
			}
			out.Data[r*cols+c] = g.Data[sr*g.Cols+sc]
		}
	}
	return out
}

// mirrorIndex reflects an out-of-range index j >= n back into [0, n).
func mirrorIndex(j, n int) int {
	return n - 1 - min(j-n, n-1)
}

func squareSide(n int) int {
	if n <= 1 {
		return 1
	}
	s := int(math.Ceil(math.Sqrt(float64(n))))
	for s*s < n {
		s++
	}
	for s > 1 && (s-1)*(s-1) >= n {
		s--
	}
	return s
}

func nextPowerOfTwo(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

func isPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}

func roundUp(n, m int) int {
	return ceilDiv(n, m) * m
}

func ceilDiv(n, m int) int {
	return (n + m - 1) / m
}

func padEven(n int) int {
	return n + n%2
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
