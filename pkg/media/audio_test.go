package media

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/haivivi/mediaseal/pkg/audio/pcm"
	"github.com/haivivi/mediaseal/pkg/audio/wavio"
	"github.com/haivivi/mediaseal/pkg/watermark"
)

func writeWAV(t *testing.T, path string, samples []float64, format pcm.Format) {
	t.Helper()
	if err := wavio.WriteFile(path, &wavio.Audio{Samples: samples, Format: format}); err != nil {
		t.Fatal(err)
	}
}

func TestAudioFileRoundTrip(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "silence.wav")
	out := filepath.Join(dir, "marked.wav")
	writeWAV(t, in, make([]float64, 20000), AudioFormat)

	s := New(nil)
	ctx := context.Background()
	res, err := s.Embed(ctx, in, out, "Hi", Options{Algorithm: watermark.KindDCT, Strength: strengthOf(1)})
	if err != nil {
		t.Fatal(err)
	}
	if res.Media != TypeAudio || res.Bits != 16 || res.Capacity != 324 {
		t.Errorf("result = %+v", res)
	}

	a, err := wavio.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if a.Format.SampleRate != 44100 || a.Format.Channels != 1 || len(a.Samples) != 20000 {
		t.Fatalf("output format %s with %d samples", a.Format, len(a.Samples))
	}

	got, err := s.Extract(ctx, out, 2, Options{Algorithm: watermark.KindDCT})
	if err != nil {
		t.Fatal(err)
	}
	if got.Text != "Hi" || got.Source != "audio" {
		t.Errorf("extraction = %+v", got)
	}
	if got.Provenance != nil {
		t.Errorf("wav output has provenance %+v", got.Provenance)
	}
}

func TestAudioFile_downmixesStereo(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "stereo.wav")
	samples := make([]float64, 2*1000)
	for i := range samples {
		if i%2 == 0 {
			samples[i] = 0.5
		} else {
			samples[i] = -0.5
		}
	}
	writeWAV(t, in, samples, pcm.Format{SampleRate: 44100, Channels: 2, Depth: 16})

	s := New(nil)
	mono, err := s.loadAudio(context.Background(), in)
	if err != nil {
		t.Fatal(err)
	}
	if len(mono) != 1000 {
		t.Fatalf("len = %d, want 1000", len(mono))
	}
	for i, v := range mono {
		if v != 0 {
			t.Fatalf("mono[%d] = %v, want 0", i, v)
		}
	}
}

func TestAudioFile_overCapacity(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "short.wav")
	writeWAV(t, in, make([]float64, 64), AudioFormat)

	s := New(nil)
	_, err := s.Embed(context.Background(), in, filepath.Join(dir, "out.wav"), "far too long", Options{})
	if !errors.Is(err, watermark.ErrInvalidArgument) {
		t.Errorf("err = %v, want ErrInvalidArgument", err)
	}
}

func TestSealer_audioCapacity(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "clip.wav")
	writeWAV(t, in, make([]float64, 5000), AudioFormat)

	r, err := New(nil).Capacity(context.Background(), in, watermark.KindDWT)
	if err != nil {
		t.Fatal(err)
	}
	if r.Media != TypeAudio || r.Samples != 5000 || r.Bits != 48 || r.Bytes != 6 {
		t.Errorf("capacity = %+v", r)
	}
}

func TestExtractAudio_invalidLength(t *testing.T) {
	s := New(nil)
	_, err := s.ExtractAudio(make([]float64, 100), 0, watermark.NewBlockCodec())
	if !errors.Is(err, watermark.ErrInvalidArgument) {
		t.Errorf("err = %v, want ErrInvalidArgument", err)
	}
}
