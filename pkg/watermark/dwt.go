package watermark

import (
	"fmt"
	"math"
)

// Wavelet codec defaults.
const (
	DefaultLevels = 1

	// waveletWindow is the side of the window taken from each detail
	// sub-band.
	waveletWindow = 4
)

// WaveletCodec embeds bits in the sign of Haar DWT detail coefficients
// taken from 4x4 windows of the HH, HL and LH sub-bands that border LL.
// LL is never modified. Grids must have power-of-two dimensions.
type WaveletCodec struct {
	// Levels is the number of decomposition levels. Default 1.
	Levels int

	// MinMagnitude floors the coefficient before the strength boost.
	MinMagnitude float64
}

// NewWaveletCodec returns a single-level WaveletCodec.
func NewWaveletCodec() *WaveletCodec {
	return &WaveletCodec{Levels: DefaultLevels, MinMagnitude: DefaultMinMagnitude}
}

// Name implements Algorithm.
func (w *WaveletCodec) Name() string { return "DWT" }

// Kind implements Algorithm.
func (w *WaveletCodec) Kind() Kind { return KindDWT }

// PadMode implements Algorithm.
func (w *WaveletCodec) PadMode() PadMode { return PadPowerOfTwo }

// Capacity returns the number of embedding positions for a rows x cols
// grid, or 0 when the grid cannot be transformed. It never exceeds the
// quarter area of the grid.
func (w *WaveletCodec) Capacity(rows, cols int) int {
	if !isPowerOfTwo(rows) || !isPowerOfTwo(cols) {
		return 0
	}
	return waveletCapacity(rows, cols)
}

// waveletCapacity is min(rows*cols/4, detail positions) for power-of-two
// dimensions.
func waveletCapacity(rows, cols int) int {
	return min(rows*cols/4, len(detailPositions(rows, cols)))
}

// Embed forces the sign of one detail coefficient per bit to positive for 1
// and negative for 0, scaling its magnitude to
// max(|c|, MinMagnitude) * (1 + strength).
func (w *WaveletCodec) Embed(g *Grid, bits []byte, strength float64) (*Grid, error) {
	if err := checkStrength(strength); err != nil {
		return nil, err
	}
	positions, err := w.positions(g, len(bits))
	if err != nil {
		return nil, err
	}
	out := g.Clone()
	if len(bits) == 0 {
		return out, nil
	}
	levels := w.forward(out)
	floor := w.minMagnitude()
	for i, bit := range bits {
		p := positions[i]
		c := out.At(p.Row, p.Col)
		out.Set(p.Row, p.Col, bitSign(bit)*math.Max(math.Abs(c), floor)*(1+strength))
	}
	w.inverse(out, levels)
	return out, nil
}

// Extract reads n bits from the detail coefficients: non-negative is 1.
func (w *WaveletCodec) Extract(g *Grid, n int) ([]byte, error) {
	positions, err := w.positions(g, n)
	if err != nil {
		return nil, err
	}
	bits := make([]byte, 0, n)
	if n == 0 {
		return bits, nil
	}
	coeffs := g.Clone()
	w.forward(coeffs)
	for _, p := range positions[:n] {
		if coeffs.At(p.Row, p.Col) >= 0 {
			bits = append(bits, 1)
		} else {
			bits = append(bits, 0)
		}
	}
	return bits, nil
}

// Forward returns the multi-level Haar decomposition of g.
func (w *WaveletCodec) Forward(g *Grid) (*Grid, error) {
	if err := checkPowerOfTwo(g); err != nil {
		return nil, err
	}
	out := g.Clone()
	w.forward(out)
	return out, nil
}

// Inverse reconstructs samples from a decomposition produced by Forward.
func (w *WaveletCodec) Inverse(g *Grid) (*Grid, error) {
	if err := checkPowerOfTwo(g); err != nil {
		return nil, err
	}
	out := g.Clone()
	w.inverse(out, w.levelsFor(g.Rows, g.Cols))
	return out, nil
}

func (w *WaveletCodec) positions(g *Grid, n int) ([]Position, error) {
	if n < 0 {
		return nil, fmt.Errorf("%w: negative bit count %d", ErrInvalidArgument, n)
	}
	if err := checkPowerOfTwo(g); err != nil {
		return nil, err
	}
	if capacity := waveletCapacity(g.Rows, g.Cols); n > capacity {
		return nil, fmt.Errorf("%w: %d bits exceed capacity %d of %dx%d grid", ErrInvalidArgument, n, capacity, g.Rows, g.Cols)
	}
	return detailPositions(g.Rows, g.Cols), nil
}

// forward decomposes g in place and returns the number of levels applied.
func (w *WaveletCodec) forward(g *Grid) int {
	levels := w.levelsFor(g.Rows, g.Cols)
	rows, cols := g.Rows, g.Cols
	tmp := make([]float64, max(rows, cols))
	for l := 0; l < levels; l++ {
		haarRows(g, rows, cols, tmp)
		haarCols(g, rows, cols, tmp)
		rows, cols = rows/2, cols/2
	}
	return levels
}

// inverse undoes levels decomposition levels of g in place.
func (w *WaveletCodec) inverse(g *Grid, levels int) {
	tmp := make([]float64, max(g.Rows, g.Cols))
	for l := levels - 1; l >= 0; l-- {
		rows, cols := g.Rows>>l, g.Cols>>l
		inverseHaarCols(g, rows, cols, tmp)
		inverseHaarRows(g, rows, cols, tmp)
	}
}

// levelsFor clamps the configured levels so every decomposed region keeps
// at least two samples per axis.
func (w *WaveletCodec) levelsFor(rows, cols int) int {
	levels := w.Levels
	if levels < 1 {
		levels = DefaultLevels
	}
	n := 0
	for r, c := rows, cols; n < levels && r >= 2 && c >= 2; r, c = r/2, c/2 {
		n++
	}
	return n
}

func (w *WaveletCodec) minMagnitude() float64 {
	if w.MinMagnitude > 0 {
		return w.MinMagnitude
	}
	return DefaultMinMagnitude
}

// detailPositions lists the embedding positions of a rows x cols level-1
// decomposition in HH, HL, LH order.
func detailPositions(rows, cols int) []Position {
	halfRows, halfCols := rows/2, cols/2
	if halfRows == 0 || halfCols == 0 {
		return nil
	}
	var positions []Position
	for i := halfRows; i < min(rows, halfRows+waveletWindow); i++ {
		for j := halfCols; j < min(cols, halfCols+waveletWindow); j++ {
			positions = append(positions, Position{i, j})
		}
	}
	for i := 0; i < min(halfRows, waveletWindow); i++ {
		for j := halfCols; j < min(cols, halfCols+waveletWindow); j++ {
			positions = append(positions, Position{i, j})
		}
	}
	for i := halfRows; i < min(rows, halfRows+waveletWindow); i++ {
		for j := 0; j < min(halfCols, waveletWindow); j++ {
			positions = append(positions, Position{i, j})
		}
	}
	return positions
}

func checkPowerOfTwo(g *Grid) error {
	if !isPowerOfTwo(g.Rows) || !isPowerOfTwo(g.Cols) {
		return fmt.Errorf("%w: wavelet grid %dx%d is not a power of two", ErrInvalidArgument, g.Rows, g.Cols)
	}
	return nil
}

func haarRows(g *Grid, rows, cols int, tmp []float64) {
	half := cols / 2
	for r := 0; r < rows; r++ {
		row := g.Data[r*g.Cols : r*g.Cols+cols]
		for k := 0; k < half; k++ {
			a, b := row[2*k], row[2*k+1]
			tmp[k] = (a + b) / math.Sqrt2
			tmp[half+k] = (a - b) / math.Sqrt2
		}
		copy(row, tmp[:cols])
	}
}

func haarCols(g *Grid, rows, cols int, tmp []float64) {
	half := rows / 2
	for c := 0; c < cols; c++ {
		for k := 0; k < half; k++ {
			a, b := g.At(2*k, c), g.At(2*k+1, c)
			tmp[k] = (a + b) / math.Sqrt2
			tmp[half+k] = (a - b) / math.Sqrt2
		}
		for r := 0; r < rows; r++ {
			g.Set(r, c, tmp[r])
		}
	}
}

func inverseHaarRows(g *Grid, rows, cols int, tmp []float64) {
	half := cols / 2
	for r := 0; r < rows; r++ {
		row := g.Data[r*g.Cols : r*g.Cols+cols]
		for k := 0; k < half; k++ {
			lo, hi := row[k], row[half+k]
			tmp[2*k] = (lo + hi) / math.Sqrt2
			tmp[2*k+1] = (lo - hi) / math.Sqrt2
		}
		copy(row, tmp[:cols])
	}
}

func inverseHaarCols(g *Grid, rows, cols int, tmp []float64) {
	half := rows / 2
	for c := 0; c < cols; c++ {
		for k := 0; k < half; k++ {
			lo, hi := g.At(k, c), g.At(half+k, c)
			tmp[2*k] = (lo + hi) / math.Sqrt2
			tmp[2*k+1] = (lo - hi) / math.Sqrt2
		}
		for r := 0; r < rows; r++ {
			g.Set(r, c, tmp[r])
		}
	}
}
