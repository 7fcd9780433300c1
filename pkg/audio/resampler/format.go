package resampler

import "fmt"

// Format describes 16-bit signed integer PCM.
type Format struct {
	SampleRate int
	Channels   int
}

func (f Format) frameBytes() int {
	return 2 * f.Channels
}

func (f Format) validate() error {
	if f.SampleRate <= 0 || f.Channels <= 0 {
		return fmt.Errorf("resampler: invalid format %+v", f)
	}
	return nil
}

// convertible reports whether channel conversion from src to dst is
// supported: identical layouts, downmix to mono, or upmix from mono.
func convertible(src, dst Format) bool {
	return src.Channels == dst.Channels || dst.Channels == 1 || src.Channels == 1
}

// remix converts interleaved samples between channel layouts.
func remix(in []float64, from, to int) []float64 {
	if from == to {
		return in
	}
	frames := len(in) / from
	out := make([]float64, frames*to)
	for i := range frames {
		if to == 1 {
			var sum float64
			for c := range from {
				sum += in[i*from+c]
			}
			out[i] = sum / float64(from)
			continue
		}
		for c := range to {
			out[i*to+c] = in[i]
		}
	}
	return out
}

// expectedFrames is round(frames * dst / src).
func expectedFrames(frames int64, src, dst int) int64 {
	return (frames*int64(dst) + int64(src)/2) / int64(src)
}
