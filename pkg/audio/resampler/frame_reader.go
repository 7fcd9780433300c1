package resampler

import "io"

// frameReader returns whole PCM frames from r. Partial frames are carried
// over to the next call; a partial frame left at EOF is dropped and
// reported as io.ErrUnexpectedEOF.
type frameReader struct {
	r         io.Reader
	frameSize int
	carry     []byte
}

func newFrameReader(r io.Reader, frameSize int) *frameReader {
	return &frameReader{r: r, frameSize: frameSize, carry: make([]byte, 0, frameSize)}
}

// Read fills p with at least one frame unless an error occurs.
func (fr *frameReader) Read(p []byte) (int, error) {
	if len(p) < fr.frameSize {
		return 0, io.ErrShortBuffer
	}
	p = p[:len(p)/fr.frameSize*fr.frameSize]
	n := copy(p, fr.carry)
	fr.carry = fr.carry[:0]

	for n < fr.frameSize {
		rn, err := fr.r.Read(p[n:])
		n += rn
		if err != nil {
			whole := n / fr.frameSize * fr.frameSize
			if err == io.EOF && n != whole {
				return whole, io.ErrUnexpectedEOF
			}
			return whole, err
		}
	}

	whole := n / fr.frameSize * fr.frameSize
	fr.carry = append(fr.carry, p[whole:n]...)
	return whole, nil
}
