// Package media watermarks image, audio and video files.
//
// It owns everything around the grid codecs in package watermark: format
// detection, decoding and encoding, channel handling, and the ffmpeg
// collaborator used for compressed audio and for video.
//
// # Images
//
// Grayscale images carry the payload in luma. Colour images carry the same
// payload in each of R, G and B; extraction reads R, and Inspect can fall
// back to a vote over all three channels.
//
// # Audio
//
// Audio is decoded (WAV and FLAC natively, anything else through ffmpeg),
// downmixed to mono, resampled to 44.1 kHz and embedded through
// package shaper. The result is always 16-bit PCM; non-WAV outputs are
// re-encoded by ffmpeg, and MP3 outputs get an ID3v2 provenance comment.
//
// # Video
//
// Video embeds into every frame, into the audio track, or both. Extraction
// votes over sampled frames with package framevote.
package media
