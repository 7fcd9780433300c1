// Package audio groups the audio pipeline used for watermarking.
//
// Sub-packages:
//
//   - pcm: sample formats and 16-bit PCM conversion
//   - wavio: WAV and FLAC decoding, WAV encoding
//   - resampler: sample rate and channel conversion
//   - shaper: frequency-domain embedding into a sample stream
//
// Every pipeline works on mono float64 samples at 44.1 kHz:
//
//	a, err := wavio.ReadFile("voice.flac")
//	mono, err := resampler.Resample(a.Mono(), a.Format.SampleRate, pcm.L16Mono44K.SampleRate)
//	marked, err := shaper.New(shaper.DefaultConfig()).Embed(mono, bits, alg, 0.1)
package audio
