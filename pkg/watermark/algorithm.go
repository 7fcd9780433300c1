package watermark

import (
	"fmt"
	"strings"
)

// Kind identifies a watermark algorithm.
type Kind string

const (
	// KindDCT selects the block DCT codec.
	KindDCT Kind = "dct"
	// KindDWT selects the Haar wavelet codec.
	KindDWT Kind = "dwt"
)

// Kinds lists every supported algorithm.
var Kinds = []Kind{KindDCT, KindDWT}

// ParseKind parses an algorithm tag case-insensitively.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindDCT, KindDWT:
		return k, nil
	default:
		return "", fmt.Errorf("%w: algorithm %q", ErrUnsupportedFormat, s)
	}
}

// Algorithm is a watermark codec operating on grids.
type Algorithm interface {
	// Name returns a human-readable codec name.
	Name() string

	// Kind returns the algorithm tag.
	Kind() Kind

	// Embed returns a copy of g carrying bits. The input grid is not
	// modified. Returns ErrInvalidArgument when bits exceed the capacity
	// of g or g has the wrong shape.
	Embed(g *Grid, bits []byte, strength float64) (*Grid, error)

	// Extract reads n bits from g.
	Extract(g *Grid, n int) ([]byte, error)

	// Capacity returns the exact number of bits a rows x cols grid carries.
	Capacity(rows, cols int) int

	// PadMode returns the shape constraint grids must satisfy.
	PadMode() PadMode
}

// New returns a fresh codec for kind.
func New(kind Kind) (Algorithm, error) {
	switch kind {
	case KindDCT:
		return NewBlockCodec(), nil
	case KindDWT:
		return NewWaveletCodec(), nil
	default:
		return nil, fmt.Errorf("%w: algorithm %q", ErrUnsupportedFormat, kind)
	}
}

var (
	_ Algorithm = (*BlockCodec)(nil)
	_ Algorithm = (*WaveletCodec)(nil)
)

// BlockSizeOf returns the block side alg tiles grids with. Codecs that do
// not work in blocks report 1.
func BlockSizeOf(alg Algorithm) int {
	switch a := alg.(type) {
	case *BlockCodec:
		return a.blockSize()
	default:
		if alg.PadMode() == PadBlockMultiple {
			return DefaultBlockSize
		}
		return 1
	}
}
