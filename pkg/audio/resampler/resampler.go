package resampler

import (
	"errors"
	"fmt"
	"io"
	"sync"

	resampling "github.com/tphakala/go-audio-resampling"

	"github.com/haivivi/mediaseal/pkg/audio/pcm"
)

// chunkFrames is the number of source frames converted per fill.
const chunkFrames = 4096

// Stream resamples a 16-bit PCM reader. It must be closed to release the
// resampler state.
type Stream struct {
	src    *frameReader
	srcFmt Format
	dstFmt Format

	mu        sync.Mutex
	rs        resampling.Resampler
	readBuf   []byte
	pending   []byte
	inFrames  int64
	outFrames int64
	eof       bool
	closeErr  error
}

// New creates a Stream converting src from srcFmt to dstFmt.
func New(src io.Reader, srcFmt, dstFmt Format) (*Stream, error) {
	if err := srcFmt.validate(); err != nil {
		return nil, err
	}
	if err := dstFmt.validate(); err != nil {
		return nil, err
	}
	if !convertible(srcFmt, dstFmt) {
		return nil, fmt.Errorf("resampler: cannot convert %d channels to %d", srcFmt.Channels, dstFmt.Channels)
	}

	s := &Stream{
		src:    newFrameReader(src, srcFmt.frameBytes()),
		srcFmt: srcFmt,
		dstFmt: dstFmt,
	}
	if srcFmt.SampleRate != dstFmt.SampleRate {
		rs, err := newResampler(srcFmt.SampleRate, dstFmt.SampleRate, dstFmt.Channels)
		if err != nil {
			return nil, err
		}
		s.rs = rs
	}
	return s, nil
}

func newResampler(src, dst, channels int) (resampling.Resampler, error) {
	rs, err := resampling.New(&resampling.Config{
		InputRate:  float64(src),
		OutputRate: float64(dst),
		Channels:   channels,
		Quality:    resampling.QualitySpec{Preset: resampling.QualityHigh},
	})
	if err != nil {
		return nil, fmt.Errorf("resampler: create: %w", err)
	}
	return rs, nil
}

// Read copies converted PCM into p. It is not safe for concurrent use with
// itself but may race with Close.
func (s *Stream) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for len(s.pending) == 0 {
		if s.closeErr != nil {
			return 0, s.closeErr
		}
		if s.eof {
			return 0, io.EOF
		}
		if err := s.fill(); err != nil {
			return 0, err
		}
	}
	n := copy(p, s.pending)
	s.pending = s.pending[n:]
	return n, nil
}

func (s *Stream) fill() error {
	fb := s.srcFmt.frameBytes()
	if cap(s.readBuf) < chunkFrames*fb {
		s.readBuf = make([]byte, chunkFrames*fb)
	}
	n, err := s.src.Read(s.readBuf[:chunkFrames*fb])
	switch {
	case err == nil:
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		s.eof = true
	default:
		return err
	}

	in := remix(pcm.FromInt16LE(s.readBuf[:n]), s.srcFmt.Channels, s.dstFmt.Channels)
	s.inFrames += int64(n / fb)

	out := in
	if s.rs != nil {
		out = nil
		if len(in) > 0 {
			if out, err = s.rs.Process(in); err != nil {
				return fmt.Errorf("resampler: process: %w", err)
			}
		}
		if s.eof {
			tail, err := s.rs.Process(make([]float64, s.srcFmt.SampleRate/10*s.dstFmt.Channels))
			if err != nil {
				return fmt.Errorf("resampler: flush: %w", err)
			}
			out = append(out, tail...)
		}
	}

	ch := s.dstFmt.Channels
	frames := int64(len(out) / ch)
	if s.eof {
		want := expectedFrames(s.inFrames, s.srcFmt.SampleRate, s.dstFmt.SampleRate) - s.outFrames
		switch {
		case frames > want:
			out = out[:max(want, 0)*int64(ch)]
		case frames < want:
			out = append(out, make([]float64, (want-frames)*int64(ch))...)
		}
		frames = int64(len(out) / ch)
	}
	s.outFrames += frames
	s.pending = pcm.Int16LE(out)
	return nil
}

// Close releases the resampler. Subsequent reads return io.ErrClosedPipe.
func (s *Stream) Close() error {
	return s.CloseWithError(fmt.Errorf("resampler: %w", io.ErrClosedPipe))
}

// CloseWithError is like Close but reads return err.
func (s *Stream) CloseWithError(err error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closeErr == nil {
		s.closeErr = err
	}
	s.rs = nil
	s.pending = nil
	return nil
}

// Resample converts a mono signal from srcRate to dstRate.
func Resample(samples []float64, srcRate, dstRate int) ([]float64, error) {
	if srcRate <= 0 || dstRate <= 0 {
		return nil, fmt.Errorf("resampler: invalid rates %d -> %d", srcRate, dstRate)
	}
	if srcRate == dstRate {
		out := make([]float64, len(samples))
		copy(out, samples)
		return out, nil
	}
	rs, err := newResampler(srcRate, dstRate, 1)
	if err != nil {
		return nil, err
	}
	var out []float64
	if len(samples) > 0 {
		if out, err = rs.Process(samples); err != nil {
			return nil, fmt.Errorf("resampler: process: %w", err)
		}
	}
	tail, err := rs.Process(make([]float64, srcRate/10))
	if err != nil {
		return nil, fmt.Errorf("resampler: flush: %w", err)
	}
	out = append(out, tail...)

	want := int(expectedFrames(int64(len(samples)), srcRate, dstRate))
	if len(out) >= want {
		return out[:want], nil
	}
	return append(out, make([]float64, want-len(out))...), nil
}
