package watermark

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// StringToBits serializes s as UTF-8, 8 bits per byte, most significant
// bit first.
func StringToBits(s string) []byte {
	return BytesToBits([]byte(s))
}

// BytesToBits expands each byte into 8 bits, most significant first.
func BytesToBits(data []byte) []byte {
	bits := make([]byte, 0, len(data)*8)
	for _, b := range data {
		for i := 7; i >= 0; i-- {
			bits = append(bits, (b>>i)&1)
		}
	}
	return bits
}

// BitsToBytes packs bits into bytes, most significant bit first. Any
// non-zero bit value counts as 1. A trailing partial byte is padded with
// zeros.
func BitsToBytes(bits []byte) []byte {
	out := make([]byte, 0, (len(bits)+7)/8)
	for i := 0; i < len(bits); i += 8 {
		var b byte
		for j := 0; j < 8; j++ {
			b <<= 1
			if i+j < len(bits) && bits[i+j] != 0 {
				b |= 1
			}
		}
		out = append(out, b)
	}
	return out
}

// BitsToString decodes bits strictly. It fails with ErrInvalidWatermark
// when the bit count is not a multiple of 8 or the bytes are not valid
// UTF-8.
func BitsToString(bits []byte) (string, error) {
	if len(bits)%8 != 0 {
		return "", fmt.Errorf("%w: %d bits is not a whole number of bytes", ErrInvalidWatermark, len(bits))
	}
	data := BitsToBytes(bits)
	if !utf8.Valid(data) {
		return "", fmt.Errorf("%w: extracted bytes are not valid UTF-8", ErrInvalidWatermark)
	}
	return string(data), nil
}

// BitsToStringLossy decodes bits replacing invalid UTF-8 sequences with
// U+FFFD. A trailing partial byte is dropped. Diagnostic use only.
func BitsToStringLossy(bits []byte) string {
	data := BitsToBytes(bits[:len(bits)-len(bits)%8])
	return strings.ToValidUTF8(string(data), string(utf8.RuneError))
}

// Analysis summarizes an extracted bit sequence.
type Analysis struct {
	BitCount  int     `json:"bit_count" yaml:"bit_count"`
	ByteCount int     `json:"byte_count" yaml:"byte_count"`
	Ones      int     `json:"ones" yaml:"ones"`
	Zeros     int     `json:"zeros" yaml:"zeros"`
	OnesRatio float64 `json:"ones_ratio" yaml:"ones_ratio"`
	Bytes     []byte  `json:"bytes" yaml:"bytes"`
	ValidUTF8 bool    `json:"valid_utf8" yaml:"valid_utf8"`
	Text      string  `json:"text,omitempty" yaml:"text,omitempty"`
	Lossy     string  `json:"lossy" yaml:"lossy"`
}

// Analyze reports bit statistics and both decodings of bits.
func Analyze(bits []byte) Analysis {
	a := Analysis{BitCount: len(bits)}
	for _, b := range bits {
		if b != 0 {
			a.Ones++
		} else {
			a.Zeros++
		}
	}
	if len(bits) > 0 {
		a.OnesRatio = float64(a.Ones) / float64(len(bits))
	}
	a.Bytes = BitsToBytes(bits)
	a.ByteCount = len(a.Bytes)
	if text, err := BitsToString(bits); err == nil {
		a.ValidUTF8 = true
		a.Text = text
	}
	a.Lossy = BitsToStringLossy(bits)
	return a
}

// String renders the analysis for terminal output.
func (a Analysis) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "bits: %d (%d bytes)\n", a.BitCount, a.ByteCount)
	fmt.Fprintf(&sb, "ones: %d zeros: %d ratio: %.3f\n", a.Ones, a.Zeros, a.OnesRatio)
	fmt.Fprintf(&sb, "bytes: % x\n", a.Bytes)
	if a.ValidUTF8 {
		fmt.Fprintf(&sb, "text: %q\n", a.Text)
	} else {
		fmt.Fprintf(&sb, "text: invalid UTF-8, lossy %q\n", a.Lossy)
	}
	return sb.String()
}
