package pcm

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"
)

// L16Mono44K is the working format of the audio pipeline:
// audio/L16; rate=44100; channels=1.
var L16Mono44K = Format{SampleRate: 44100, Channels: 1, Depth: 16}

// Format describes interleaved integer PCM.
type Format struct {
	SampleRate int
	Channels   int
	Depth      int
}

// Validate reports whether the format is usable.
func (f Format) Validate() error {
	if f.SampleRate <= 0 {
		return fmt.Errorf("pcm: invalid sample rate %d", f.SampleRate)
	}
	if f.Channels <= 0 {
		return fmt.Errorf("pcm: invalid channel count %d", f.Channels)
	}
	switch f.Depth {
	case 8, 16, 24, 32:
	default:
		return fmt.Errorf("pcm: unsupported bit depth %d", f.Depth)
	}
	return nil
}

// FrameBytes is the size of one sample across all channels.
func (f Format) FrameBytes() int {
	return f.Channels * f.Depth / 8
}

// Samples returns the number of frames in the given number of bytes.
func (f Format) Samples(bytes int64) int64 {
	return bytes * 8 / int64(f.Channels) / int64(f.Depth)
}

// SamplesInDuration returns the number of frames in d.
func (f Format) SamplesInDuration(d time.Duration) int64 {
	return int64(time.Duration(f.SampleRate) * d / time.Second)
}

// BytesInDuration returns the number of bytes in d.
func (f Format) BytesInDuration(d time.Duration) int64 {
	return f.SamplesInDuration(d) * int64(f.FrameBytes())
}

// Duration returns the playing time of the given number of frames.
func (f Format) Duration(frames int) time.Duration {
	return time.Duration(frames) * time.Second / time.Duration(f.SampleRate)
}

// BytesRate returns the byte rate of the audio data.
func (f Format) BytesRate() int {
	return f.SampleRate * f.FrameBytes()
}

func (f Format) String() string {
	return fmt.Sprintf("audio/L%d; rate=%d; channels=%d", f.Depth, f.SampleRate, f.Channels)
}

func scale(depth int) float64 {
	return float64(int64(1) << (depth - 1))
}

// Normalize maps signed integer samples of the given depth into [-1, 1].
func Normalize(data []int, depth int) []float64 {
	s := scale(depth)
	out := make([]float64, len(data))
	for i, v := range data {
		out[i] = float64(v) / s
	}
	return out
}

// Quantize is the inverse of Normalize. Values are rounded and clamped to
// the representable range.
func Quantize(samples []float64, depth int) []int {
	s := scale(depth)
	lo, hi := -s, s-1
	out := make([]int, len(samples))
	for i, v := range samples {
		q := math.Round(v * s)
		switch {
		case math.IsNaN(q):
			q = 0
		case q < lo:
			q = lo
		case q > hi:
			q = hi
		}
		out[i] = int(q)
	}
	return out
}

// Downmix averages interleaved channels into one. Trailing partial frames
// are dropped.
func Downmix(interleaved []float64, channels int) []float64 {
	if channels <= 1 {
		out := make([]float64, len(interleaved))
		copy(out, interleaved)
		return out
	}
	frames := len(interleaved) / channels
	out := make([]float64, frames)
	for i := range frames {
		var sum float64
		for c := range channels {
			sum += interleaved[i*channels+c]
		}
		out[i] = sum / float64(channels)
	}
	return out
}

// Int16LE encodes normalized samples as signed 16-bit little-endian.
func Int16LE(samples []float64) []byte {
	q := Quantize(samples, 16)
	out := make([]byte, 2*len(q))
	for i, v := range q {
		binary.LittleEndian.PutUint16(out[2*i:], uint16(int16(v)))
	}
	return out
}

// FromInt16LE decodes signed 16-bit little-endian samples. A trailing odd
// byte is ignored.
func FromInt16LE(b []byte) []float64 {
	out := make([]float64, len(b)/2)
	for i := range out {
		out[i] = float64(int16(binary.LittleEndian.Uint16(b[2*i:]))) / 32768
	}
	return out
}
