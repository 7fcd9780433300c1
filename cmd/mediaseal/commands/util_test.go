package commands

import (
	"errors"
	"testing"

	"github.com/haivivi/mediaseal/pkg/cli"
	"github.com/haivivi/mediaseal/pkg/framevote"
	"github.com/haivivi/mediaseal/pkg/media"
	"github.com/haivivi/mediaseal/pkg/registry"
	"github.com/haivivi/mediaseal/pkg/watermark"
)

func intPtr(v int) *int { return &v }

func floatPtr(v float64) *float64 { return &v }

func TestResolveOptions(t *testing.T) {
	tests := []struct {
		name     string
		ctx      cli.Context
		req      request
		strength float64
		want     media.Options
	}{
		{
			name:     "defaults",
			strength: media.DefaultStrength,
			want: media.Options{
				Algorithm: watermark.KindDCT,
				Mode:      media.ModeVideo,
				Sampling:  framevote.DefaultConfig(),
			},
		},
		{
			name: "context",
			ctx:      cli.Context{Algorithm: "dwt", Strength: 0.3, SampleFrames: 9, SkipFrames: 2, ConfidenceThreshold: 0.8, Lossless: true},
			strength: 0.3,
			want: media.Options{
				Algorithm: watermark.KindDWT,
				Mode:      media.ModeVideo,
				Lossless:  true,
				Sampling:  framevote.Config{SampleFrames: 9, SkipFrames: 2, ConfidenceThreshold: 0.8},
			},
		},
		{
			name: "request over context",
			ctx:      cli.Context{Algorithm: "dwt", Strength: 0.3, SkipFrames: 2},
			req:      request{Algorithm: "DCT", Strength: floatPtr(0.05), Mode: "both", SkipFrames: intPtr(0), Tag: "t1"},
			strength: 0.05,
			want: media.Options{
				Algorithm: watermark.KindDCT,
				Mode:      media.ModeBoth,
				Tag:       "t1",
				Sampling:  framevote.Config{SampleFrames: framevote.DefaultSampleFrames, SkipFrames: 0, ConfidenceThreshold: framevote.DefaultConfidenceThreshold},
			},
		},
		{
			name:     "zero strength request",
			ctx:      cli.Context{Strength: 0.3},
			req:      request{Strength: floatPtr(0)},
			strength: 0,
			want: media.Options{
				Algorithm: watermark.KindDCT,
				Mode:      media.ModeVideo,
				Sampling:  framevote.DefaultConfig(),
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := resolveOptions(&tt.ctx, &tt.req)
			if err != nil {
				t.Fatal(err)
			}
			if got.Strength == nil || *got.Strength != tt.strength {
				t.Errorf("strength = %v, want %v", got.Strength, tt.strength)
			}
			got.Strength = nil
			if got != tt.want {
				t.Errorf("got %+v\nwant %+v", got, tt.want)
			}
		})
	}
}

func TestResolveOptions_invalid(t *testing.T) {
	tests := []struct {
		name string
		ctx  cli.Context
		req  request
		want error
	}{
		{"algorithm", cli.Context{}, request{Algorithm: "lsb"}, watermark.ErrUnsupportedFormat},
		{"context algorithm", cli.Context{Algorithm: "fft"}, request{}, watermark.ErrUnsupportedFormat},
		{"strength", cli.Context{}, request{Strength: floatPtr(-1)}, watermark.ErrInvalidArgument},
		{"context strength", cli.Context{Strength: -0.5}, request{}, watermark.ErrInvalidArgument},
		{"mode", cli.Context{}, request{Mode: "subtitles"}, watermark.ErrInvalidArgument},
		{"skip", cli.Context{}, request{SkipFrames: intPtr(-1)}, watermark.ErrInvalidArgument},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := resolveOptions(&tt.ctx, &tt.req); !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestApplyRecord(t *testing.T) {
	rec := &registry.Record{Algorithm: "dwt", Mode: "audio", BitLength: 40}

	opts := media.Options{Algorithm: watermark.KindDCT, Mode: media.ModeVideo}
	if n := applyRecord(rec, &request{}, &opts); n != 5 {
		t.Errorf("length = %d, want 5", n)
	}
	if opts.Algorithm != watermark.KindDWT || opts.Mode != media.ModeAudio {
		t.Errorf("opts = %+v", opts)
	}

	// Explicit settings win over the record.
	opts = media.Options{Algorithm: watermark.KindDCT, Mode: media.ModeBoth}
	applyRecord(rec, &request{Algorithm: "dct", Mode: "both"}, &opts)
	if opts.Algorithm != watermark.KindDCT || opts.Mode != media.ModeBoth {
		t.Errorf("opts = %+v", opts)
	}
}
