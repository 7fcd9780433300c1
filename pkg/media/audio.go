package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/haivivi/mediaseal/pkg/audio/pcm"
	"github.com/haivivi/mediaseal/pkg/audio/resampler"
	"github.com/haivivi/mediaseal/pkg/audio/shaper"
	"github.com/haivivi/mediaseal/pkg/audio/wavio"
	"github.com/haivivi/mediaseal/pkg/watermark"
)

// AudioFormat is the working format of every audio pipeline.
var AudioFormat = pcm.L16Mono44K

// loadAudio decodes path to mono samples at AudioFormat's rate. WAV and
// FLAC are decoded natively, everything else through ffmpeg.
func (s *Sealer) loadAudio(ctx context.Context, path string) ([]float64, error) {
	a, err := wavio.ReadFile(path)
	switch {
	case err == nil:
		s.logger().Debug("audio decoded", "format", a.Format.String(), "duration", a.Duration())
		return resampler.Resample(a.Mono(), a.Format.SampleRate, AudioFormat.SampleRate)
	case errors.Is(err, wavio.ErrUnsupportedFormat):
		return s.decodeWithFFmpeg(ctx, path)
	default:
		return nil, fmt.Errorf("%w: %v", watermark.ErrProcessing, err)
	}
}

func (s *Sealer) decodeWithFFmpeg(ctx context.Context, path string) ([]float64, error) {
	info, err := s.FFmpeg.Probe(ctx, path)
	if err != nil {
		return nil, err
	}
	if !info.HasAudio || info.SampleRate <= 0 || info.Channels <= 0 {
		return nil, fmt.Errorf("%w: %s has no audio stream", watermark.ErrUnsupportedFormat, filepath.Base(path))
	}
	raw, err := s.FFmpeg.DecodePCM(ctx, path)
	if err != nil {
		return nil, err
	}
	stream, err := resampler.New(bytes.NewReader(raw),
		resampler.Format{SampleRate: info.SampleRate, Channels: info.Channels},
		resampler.Format{SampleRate: AudioFormat.SampleRate, Channels: AudioFormat.Channels},
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", watermark.ErrProcessing, err)
	}
	defer stream.Close()
	out, err := io.ReadAll(stream)
	if err != nil {
		return nil, fmt.Errorf("%w: resample: %v", watermark.ErrProcessing, err)
	}
	s.logger().Debug("audio decoded by ffmpeg", "rate", info.SampleRate, "channels", info.Channels, "samples", len(out)/2)
	return pcm.FromInt16LE(out), nil
}

// writeAudio writes mono AudioFormat samples to out. WAV is written
// natively; other formats are transcoded by ffmpeg from a temporary WAV.
func (s *Sealer) writeAudio(ctx context.Context, out string, samples []float64) error {
	a := &wavio.Audio{Samples: samples, Format: AudioFormat}
	if strings.EqualFold(filepath.Ext(out), ".wav") {
		return wavio.WriteFile(out, a)
	}
	dir, cleanup, err := s.tempDir("mediaseal-audio-*")
	if err != nil {
		return err
	}
	defer cleanup()
	tmp := filepath.Join(dir, "watermarked.wav")
	if err := wavio.WriteFile(tmp, a); err != nil {
		return err
	}
	return s.FFmpeg.Transcode(ctx, tmp, out)
}

// EmbedAudioFile embeds text into the audio at in and writes out. MP3
// outputs also get a provenance comment.
func (s *Sealer) EmbedAudioFile(ctx context.Context, in, out, text string, opts Options) (*EmbedResult, error) {
	opts = opts.withDefaults()
	alg, err := opts.algorithm()
	if err != nil {
		return nil, err
	}
	samples, err := s.loadAudio(ctx, in)
	if err != nil {
		return nil, err
	}
	payload := watermark.StringToBits(text)
	capacity := shaper.Capacity(len(samples), alg)
	if len(payload) > capacity {
		return nil, fmt.Errorf("%w: %d bits exceed capacity %d of %d samples", watermark.ErrInvalidArgument, len(payload), capacity, len(samples))
	}

	marked, err := s.shaper().Embed(samples, payload, alg, opts.strength())
	if err != nil {
		return nil, err
	}
	if err := s.writeAudio(ctx, out, marked); err != nil {
		return nil, err
	}
	if strings.EqualFold(filepath.Ext(out), ".mp3") {
		p := Provenance{
			Tool:      Tool,
			Tag:       opts.Tag,
			Algorithm: alg.Kind(),
			Strength:  opts.strength(),
			Bits:      len(payload),
		}
		if err := WriteProvenance(out, p); err != nil {
			return nil, err
		}
	}
	return &EmbedResult{
		Media:     TypeAudio,
		Input:     in,
		Output:    out,
		Algorithm: alg.Kind(),
		Strength:  opts.strength(),
		Bits:      len(payload),
		Capacity:  capacity,
	}, nil
}

// ExtractAudio reads length bytes from mono AudioFormat samples.
func (s *Sealer) ExtractAudio(samples []float64, length int, alg watermark.Algorithm) (*Extraction, error) {
	if length <= 0 {
		return nil, fmt.Errorf("%w: payload length %d", watermark.ErrInvalidArgument, length)
	}
	raw, err := s.shaper().Extract(samples, alg, length*8)
	if err != nil {
		return nil, err
	}
	text, err := watermark.BitsToString(raw)
	if err != nil {
		return nil, err
	}
	return &Extraction{Media: TypeAudio, Text: text, Bits: raw, Source: "audio", Confidence: 1}, nil
}

// ExtractAudioFile reads length bytes from the audio at in.
func (s *Sealer) ExtractAudioFile(ctx context.Context, in string, length int, opts Options) (*Extraction, error) {
	alg, err := opts.withDefaults().algorithm()
	if err != nil {
		return nil, err
	}
	samples, err := s.loadAudio(ctx, in)
	if err != nil {
		return nil, err
	}
	res, err := s.ExtractAudio(samples, length, alg)
	if err != nil {
		return nil, err
	}
	if strings.EqualFold(filepath.Ext(in), ".mp3") {
		p, err := ReadProvenanceFile(in)
		if err != nil {
			s.logger().Warn("unreadable provenance comment", "input", in, "error", err)
		}
		res.Provenance = p
	}
	return res, nil
}

func (s *Sealer) inspectAudio(ctx context.Context, in string, length int, opts Options) (*Report, error) {
	alg, err := opts.algorithm()
	if err != nil {
		return nil, err
	}
	samples, err := s.loadAudio(ctx, in)
	if err != nil {
		return nil, err
	}
	raw, err := s.shaper().Extract(samples, alg, length*8)
	if err != nil {
		return nil, err
	}
	return newReport(TypeAudio, "audio", raw), nil
}

// fileExists reports whether path names an existing file.
func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
