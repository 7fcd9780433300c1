package resampler

import (
	"bytes"
	"io"
	"testing"
)

// chunkedReader returns at most chunk bytes per call.
type chunkedReader struct {
	data  []byte
	chunk int
}

func (c *chunkedReader) Read(p []byte) (int, error) {
	if len(c.data) == 0 {
		return 0, io.EOF
	}
	n := min(c.chunk, len(p), len(c.data))
	copy(p, c.data[:n])
	c.data = c.data[n:]
	return n, nil
}

func readFrames(t *testing.T, fr *frameReader, bufSize int) ([]byte, error) {
	t.Helper()
	var out []byte
	buf := make([]byte, bufSize)
	for {
		n, err := fr.Read(buf)
		if n%fr.frameSize != 0 {
			t.Fatalf("Read returned %d bytes, not a multiple of %d", n, fr.frameSize)
		}
		out = append(out, buf[:n]...)
		if err != nil {
			return out, err
		}
	}
}

func TestFrameReader(t *testing.T) {
	data := []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}
	tests := []struct {
		name    string
		src     io.Reader
		frame   int
		bufSize int
		want    []byte
		wantErr error
	}{
		{"aligned", bytes.NewReader(data), 4, 8, data, io.EOF},
		{"byte at a time", &chunkedReader{data: data, chunk: 1}, 4, 8, data, io.EOF},
		{"odd chunks", &chunkedReader{data: data, chunk: 5}, 4, 6, data, io.EOF},
		{"stereo16 frames", bytes.NewReader(data[:10]), 4, 16, data[:8], io.ErrUnexpectedEOF},
		{"empty", bytes.NewReader(nil), 2, 4, nil, io.EOF},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := readFrames(t, newFrameReader(tt.src, tt.frame), tt.bufSize)
			if err != tt.wantErr {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if !bytes.Equal(got, tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFrameReaderShortBuffer(t *testing.T) {
	fr := newFrameReader(bytes.NewReader([]byte{1, 2, 3, 4}), 4)
	if _, err := fr.Read(make([]byte, 2)); err != io.ErrShortBuffer {
		t.Fatalf("err = %v, want io.ErrShortBuffer", err)
	}
}
