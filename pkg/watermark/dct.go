package watermark

import (
	"fmt"
	"math"
	"sync"

	"gonum.org/v1/gonum/mat"
)

// Block codec defaults. Magnitudes are in orthonormal coefficient units for
// samples in the [0,1] or [-1,1] range.
const (
	DefaultBlockSize      = 8
	DefaultMinMagnitude   = 0.05
	DefaultAudioSafeRatio = 0.3
)

// Position is a (row, col) coefficient position inside a block or sub-band.
type Position struct {
	Row int
	Col int
}

// MidFrequencyTable is the ordered list of block coefficients used for
// embedding. Bit i goes to MidFrequencyTable[i % len(MidFrequencyTable)].
// The DC position (0,0) is never used.
var MidFrequencyTable = []Position{
	{2, 1}, {1, 2}, {3, 1}, {2, 2}, {1, 3},
	{4, 1}, {3, 2}, {2, 3}, {1, 4}, {5, 1},
	{4, 2}, {3, 3}, {2, 4}, {1, 5}, {6, 1},
	{5, 2}, {4, 3}, {3, 4}, {2, 5}, {1, 6},
}

// BlockCodec embeds one bit per block in the sign of a mid-frequency
// coefficient of the block's orthonormal 2D DCT.
//
// The zero value is ready to use with the package defaults. A BlockCodec
// caches DCT basis matrices per transform length and is safe for concurrent
// use; it must not be copied after first use.
type BlockCodec struct {
	// BlockSize is the side of each square block. Default 8.
	BlockSize int

	// MinMagnitude is the floor applied to a coefficient before the
	// strength boost so that near-zero coefficients still carry a sign
	// that survives quantization.
	MinMagnitude float64

	// AudioSafeRatio caps EmbedAudioSafe adjustments at this fraction of
	// the standard delta.
	AudioSafeRatio float64

	// Table overrides MidFrequencyTable.
	Table []Position

	mu    sync.Mutex
	plans map[int]*dctPlan
}

// NewBlockCodec returns a BlockCodec with default parameters.
func NewBlockCodec() *BlockCodec {
	return &BlockCodec{
		BlockSize:      DefaultBlockSize,
		MinMagnitude:   DefaultMinMagnitude,
		AudioSafeRatio: DefaultAudioSafeRatio,
	}
}

// Name implements Algorithm.
func (c *BlockCodec) Name() string { return "DCT" }

// Kind implements Algorithm.
func (c *BlockCodec) Kind() Kind { return KindDCT }

// PadMode implements Algorithm.
func (c *BlockCodec) PadMode() PadMode { return PadBlockMultiple }

// Capacity returns the number of blocks, partial edge blocks included, in a
// rows x cols grid.
func (c *BlockCodec) Capacity(rows, cols int) int {
	bs := c.blockSize()
	return ceilDiv(rows, bs) * ceilDiv(cols, bs)
}

// Embed forces the sign of one table coefficient per block: positive for 1,
// negative for 0, with magnitude max(|c|, MinMagnitude) * (1 + strength).
// Blocks are visited row-major. The grid is edge-mirrored to a block
// multiple during the transform and cropped back afterwards, so bits in
// partial edge blocks may not read back exactly.
func (c *BlockCodec) Embed(g *Grid, bits []byte, strength float64) (*Grid, error) {
	return c.embed(g, bits, strength, c.forceSign)
}

// EmbedAudioSafe is Embed tuned for audio. A coefficient whose sign already
// encodes the bit moves at most AudioSafeRatio of the standard delta; one
// that must flip lands on the target sign at AudioSafeRatio of the standard
// magnitude.
func (c *BlockCodec) EmbedAudioSafe(g *Grid, bits []byte, strength float64) (*Grid, error) {
	return c.embed(g, bits, strength, c.nudgeSign)
}

// Extract reads n bits, one per block in row-major order: a non-negative
// table coefficient is 1, a negative one is 0.
func (c *BlockCodec) Extract(g *Grid, n int) ([]byte, error) {
	coeffs, err := c.Coefficients(g, n)
	if err != nil {
		return nil, err
	}
	bits := make([]byte, len(coeffs))
	for i, v := range coeffs {
		if v >= 0 {
			bits[i] = 1
		}
	}
	return bits, nil
}

// Coefficients returns the table coefficient of each of the first n blocks,
// the values whose signs Extract reads.
func (c *BlockCodec) Coefficients(g *Grid, n int) ([]float64, error) {
	if n < 0 {
		return nil, fmt.Errorf("%w: negative bit count %d", ErrInvalidArgument, n)
	}
	if capacity := c.Capacity(g.Rows, g.Cols); n > capacity {
		return nil, fmt.Errorf("%w: %d bits requested, grid %dx%d holds %d", ErrInvalidArgument, n, g.Rows, g.Cols, capacity)
	}
	out := make([]float64, 0, n)
	if n == 0 {
		return out, nil
	}
	table, err := c.table()
	if err != nil {
		return nil, err
	}
	bs := c.blockSize()
	padded := PadToBlock(g, bs)
	m := mat.NewDense(padded.Rows, padded.Cols, padded.Data)
	blocksPerRow := padded.Cols / bs
	for i := 0; i < n; i++ {
		r0, c0 := (i/blocksPerRow)*bs, (i%blocksPerRow)*bs
		coeffs := c.forward(m.Slice(r0, r0+bs, c0, c0+bs))
		p := table[i%len(table)]
		out = append(out, coeffs.At(p.Row, p.Col))
	}
	return out, nil
}

// Forward2D returns the orthonormal 2D DCT-II of g: every row, then every
// column.
func (c *BlockCodec) Forward2D(g *Grid) *Grid {
	if g.Rows == 0 || g.Cols == 0 {
		return g.Clone()
	}
	return denseToGrid(c.forward(mat.NewDense(g.Rows, g.Cols, g.Data)))
}

// Inverse2D returns the 2D DCT-III of g, undoing Forward2D.
func (c *BlockCodec) Inverse2D(g *Grid) *Grid {
	if g.Rows == 0 || g.Cols == 0 {
		return g.Clone()
	}
	return denseToGrid(c.inverse(mat.NewDense(g.Rows, g.Cols, g.Data)))
}

type coeffFunc func(coeff float64, bit byte, strength float64) float64

func (c *BlockCodec) embed(g *Grid, bits []byte, strength float64, apply coeffFunc) (*Grid, error) {
	if err := checkStrength(strength); err != nil {
		return nil, err
	}
	if capacity := c.Capacity(g.Rows, g.Cols); len(bits) > capacity {
		return nil, fmt.Errorf("%w: %d bits exceed capacity %d of %dx%d grid", ErrInvalidArgument, len(bits), capacity, g.Rows, g.Cols)
	}
	if len(bits) == 0 {
		return g.Clone(), nil
	}
	table, err := c.table()
	if err != nil {
		return nil, err
	}

	bs := c.blockSize()
	padded := PadToBlock(g, bs)
	if padded == g {
		padded = g.Clone()
	}
	m := mat.NewDense(padded.Rows, padded.Cols, padded.Data)
	blocksPerRow := padded.Cols / bs
	for i, bit := range bits {
		r0, c0 := (i/blocksPerRow)*bs, (i%blocksPerRow)*bs
		block := m.Slice(r0, r0+bs, c0, c0+bs).(*mat.Dense)
		coeffs := c.forward(block)
		p := table[i%len(table)]
		coeffs.Set(p.Row, p.Col, apply(coeffs.At(p.Row, p.Col), bit, strength))
		block.Copy(c.inverse(coeffs))
	}
	return Crop(padded, g.Rows, g.Cols), nil
}

func (c *BlockCodec) forceSign(coeff float64, bit byte, strength float64) float64 {
	return bitSign(bit) * math.Max(math.Abs(coeff), c.minMagnitude()) * (1 + strength)
}

func (c *BlockCodec) nudgeSign(coeff float64, bit byte, strength float64) float64 {
	ratio := c.audioSafeRatio()
	target := math.Max(math.Abs(coeff), c.minMagnitude()) * (1 + strength)
	if (coeff >= 0) == (bit != 0) {
		mag := math.Abs(coeff)
		return bitSign(bit) * (mag + ratio*(target-mag))
	}
	return bitSign(bit) * math.Max(ratio*target, ratio*c.minMagnitude())
}

func (c *BlockCodec) forward(b mat.Matrix) *mat.Dense {
	r, cols := b.Dims()
	pr, pc := c.plan(r), c.plan(cols)
	var tmp, out mat.Dense
	tmp.Mul(b, pc.basis.T())
	out.Mul(pr.basis, &tmp)
	return &out
}

func (c *BlockCodec) inverse(x mat.Matrix) *mat.Dense {
	r, cols := x.Dims()
	pr, pc := c.plan(r), c.plan(cols)
	var tmp, out mat.Dense
	tmp.Mul(pr.basis.T(), x)
	out.Mul(&tmp, pc.basis)
	return &out
}

// dctPlan holds the orthonormal DCT-II basis for one transform length.
type dctPlan struct {
	basis *mat.Dense
}

func newDCTPlan(n int) *dctPlan {
	basis := mat.NewDense(n, n, nil)
	s0 := math.Sqrt(1 / float64(n))
	sk := math.Sqrt(2 / float64(n))
	for k := 0; k < n; k++ {
		s := sk
		if k == 0 {
			s = s0
		}
		for i := 0; i < n; i++ {
			basis.Set(k, i, s*math.Cos(math.Pi*float64(k)*float64(2*i+1)/float64(2*n)))
		}
	}
	return &dctPlan{basis: basis}
}

func (c *BlockCodec) plan(n int) *dctPlan {
	c.mu.Lock()
	defer c.mu.Unlock()
	if p, ok := c.plans[n]; ok {
		return p
	}
	if c.plans == nil {
		c.plans = make(map[int]*dctPlan)
	}
	p := newDCTPlan(n)
	c.plans[n] = p
	return p
}

func (c *BlockCodec) table() ([]Position, error) {
	src := c.Table
	if len(src) == 0 {
		src = MidFrequencyTable
	}
	bs := c.blockSize()
	table := make([]Position, 0, len(src))
	for _, p := range src {
		if p.Row < bs && p.Col < bs && (p.Row != 0 || p.Col != 0) {
			table = append(table, p)
		}
	}
	if len(table) == 0 {
		return nil, fmt.Errorf("%w: no table positions fit block size %d", ErrInvalidArgument, bs)
	}
	return table, nil
}

func (c *BlockCodec) blockSize() int {
	if c.BlockSize > 0 {
		return c.BlockSize
	}
	return DefaultBlockSize
}

func (c *BlockCodec) minMagnitude() float64 {
	if c.MinMagnitude > 0 {
		return c.MinMagnitude
	}
	return DefaultMinMagnitude
}

func (c *BlockCodec) audioSafeRatio() float64 {
	if c.AudioSafeRatio > 0 {
		return c.AudioSafeRatio
	}
	return DefaultAudioSafeRatio
}

func bitSign(bit byte) float64 {
	if bit != 0 {
		return 1
	}
	return -1
}

func checkStrength(strength float64) error {
	if math.IsNaN(strength) || math.IsInf(strength, 0) || strength < 0 {
		return fmt.Errorf("%w: strength %v", ErrInvalidArgument, strength)
	}
	return nil
}

func denseToGrid(m *mat.Dense) *Grid {
	r, c := m.Dims()
	g := NewGrid(r, c)
	for i := 0; i < r; i++ {
		copy(g.Data[i*c:(i+1)*c], m.RawRowView(i))
	}
	return g
}
