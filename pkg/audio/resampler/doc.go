// Package resampler converts PCM audio between sample rates and channel
// layouts using a pure Go soxr-quality resampler.
//
// [Stream] wraps a reader of signed 16-bit little-endian PCM, as produced
// by ffmpeg with -f s16le, and yields the converted stream:
//
//	src := resampler.Format{SampleRate: 48000, Channels: 2}
//	r, err := resampler.New(ffmpegStdout, src, resampler.Format{SampleRate: 44100, Channels: 1})
//	if err != nil {
//	    return err
//	}
//	defer r.Close()
//	io.Copy(out, r)
//
// [Resample] does the same for an in-memory mono signal.
//
// Output length is always round(inputFrames * dstRate / srcRate); the
// filter tail is flushed with silence and trimmed.
package resampler
