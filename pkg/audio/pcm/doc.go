// Package pcm converts between integer PCM samples and the normalized
// float64 signal the watermark codecs operate on.
//
// Normalized samples live in [-1, 1]. Integer samples of bit depth d are
// scaled by 2^(d-1), so 16-bit audio maps -32768 to -1 and 32767 to just
// below 1.
//
//	f := pcm.L16Mono44K
//	n := f.BytesInDuration(20 * time.Millisecond) // 1764
//	samples := pcm.FromInt16LE(raw)
//	raw = pcm.Int16LE(samples)
package pcm
