// Package wavio reads WAV and FLAC files into normalized samples and writes
// 16-bit PCM WAV.
package wavio

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/mewkiz/flac"

	"github.com/haivivi/mediaseal/pkg/audio/pcm"
)

// ErrUnsupportedFormat is returned for containers or encodings this package
// cannot decode.
var ErrUnsupportedFormat = errors.New("wavio: unsupported format")

const (
	wavFormatPCM        = 1
	wavFormatExtensible = 0xFFFE
)

// Audio is a decoded clip. Samples are interleaved and normalized to
// [-1, 1].
type Audio struct {
	Samples []float64
	Format  pcm.Format
}

// Frames returns the number of sample frames.
func (a *Audio) Frames() int {
	if a.Format.Channels == 0 {
		return 0
	}
	return len(a.Samples) / a.Format.Channels
}

// Duration returns the playing time.
func (a *Audio) Duration() time.Duration {
	if a.Format.SampleRate == 0 {
		return 0
	}
	return a.Format.Duration(a.Frames())
}

// Mono returns the channel average.
func (a *Audio) Mono() []float64 {
	return pcm.Downmix(a.Samples, a.Format.Channels)
}

// Sniff reports the container from the first bytes of a file: "wav",
// "flac" or "".
func Sniff(head []byte) string {
	switch {
	case len(head) >= 12 && bytes.Equal(head[:4], []byte("RIFF")) && bytes.Equal(head[8:12], []byte("WAVE")):
		return "wav"
	case len(head) >= 4 && bytes.Equal(head[:4], []byte("fLaC")):
		return "flac"
	}
	return ""
}

// ReadFile decodes a WAV or FLAC file, chosen by content.
func ReadFile(path string) (*Audio, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	head := make([]byte, 12)
	n, _ := io.ReadFull(f, head)
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	switch Sniff(head[:n]) {
	case "wav":
		return DecodeWAV(f)
	case "flac":
		return DecodeFLAC(f)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Base(path))
}

// DecodeWAV decodes integer PCM WAV data.
func DecodeWAV(r io.ReadSeeker) (*Audio, error) {
	d := wav.NewDecoder(r)
	if !d.IsValidFile() {
		return nil, fmt.Errorf("%w: not a valid wav stream", ErrUnsupportedFormat)
	}
	if d.WavAudioFormat != wavFormatPCM && d.WavAudioFormat != wavFormatExtensible {
		return nil, fmt.Errorf("%w: wav encoding %d", ErrUnsupportedFormat, d.WavAudioFormat)
	}
	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("wavio: decode wav: %w", err)
	}

	format := pcm.Format{
		SampleRate: int(d.SampleRate),
		Channels:   int(d.NumChans),
		Depth:      int(d.BitDepth),
	}
	if err := format.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}

	data := buf.Data
	if format.Depth == 8 {
		// 8-bit WAV stores unsigned samples.
		data = make([]int, len(buf.Data))
		for i, v := range buf.Data {
			data[i] = v - 128
		}
	}
	return &Audio{Samples: pcm.Normalize(data, format.Depth), Format: format}, nil
}

// DecodeFLAC decodes a FLAC stream.
func DecodeFLAC(r io.Reader) (*Audio, error) {
	stream, err := flac.New(r)
	if err != nil {
		return nil, fmt.Errorf("wavio: open flac: %w", err)
	}
	defer stream.Close()

	format := pcm.Format{
		SampleRate: int(stream.Info.SampleRate),
		Channels:   int(stream.Info.NChannels),
		Depth:      int(stream.Info.BitsPerSample),
	}
	if format.SampleRate <= 0 || format.Channels <= 0 || format.Depth <= 0 || format.Depth > 32 {
		return nil, fmt.Errorf("%w: flac stream %s", ErrUnsupportedFormat, format)
	}

	var data []int
	for {
		frame, err := stream.ParseNext()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("wavio: decode flac: %w", err)
		}
		if len(frame.Subframes) != format.Channels {
			return nil, fmt.Errorf("wavio: flac frame has %d channels, want %d", len(frame.Subframes), format.Channels)
		}
		n := len(frame.Subframes[0].Samples)
		for i := range n {
			for _, sub := range frame.Subframes {
				data = append(data, int(sub.Samples[i]))
			}
		}
	}
	return &Audio{Samples: pcm.Normalize(data, format.Depth), Format: format}, nil
}

// EncodeWAV writes samples as 16-bit PCM WAV. The format's depth is
// ignored.
func EncodeWAV(w io.WriteSeeker, a *Audio) error {
	f := a.Format
	if f.SampleRate <= 0 || f.Channels <= 0 {
		return fmt.Errorf("wavio: invalid output format %s", f)
	}
	enc := wav.NewEncoder(w, f.SampleRate, 16, f.Channels, wavFormatPCM)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: f.Channels, SampleRate: f.SampleRate},
		Data:           pcm.Quantize(a.Samples, 16),
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("wavio: encode wav: %w", err)
	}
	return enc.Close()
}

// WriteFile writes a 16-bit PCM WAV file.
func WriteFile(path string, a *Audio) error {
	if ext := strings.ToLower(filepath.Ext(path)); ext != ".wav" {
		return fmt.Errorf("%w: cannot write %s", ErrUnsupportedFormat, ext)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := EncodeWAV(f, a); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	return f.Close()
}
