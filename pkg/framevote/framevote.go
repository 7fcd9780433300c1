// Package framevote recovers a watermark from a video by extracting it from
// several sampled frames and reconciling the results with a
// quality-weighted vote.
//
// Frames are decoded by a FrameSource collaborator. A frame that fails to
// decode or whose payload is not valid UTF-8 is dropped; extraction fails
// only when every sampled frame is dropped.
package framevote

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"math"
	"sort"
	"strings"

	"gonum.org/v1/gonum/stat"

	"github.com/haivivi/mediaseal/pkg/raster"
	"github.com/haivivi/mediaseal/pkg/watermark"
)

// Defaults.
const (
	DefaultSampleFrames        = 7
	DefaultSkipFrames          = 5
	DefaultConfidenceThreshold = 0.6

	// Quality = VarianceWeight * variance + GradientWeight * mean gradient.
	VarianceWeight = 0.7
	GradientWeight = 0.3
)

// minFrameWeight keeps perfectly flat frames in the vote.
const minFrameWeight = 1e-9

// Config tunes frame sampling.
type Config struct {
	// SampleFrames is the number of frames to sample.
	SampleFrames int `json:"sample_frames" yaml:"sample_frames"`

	// SkipFrames is the number of leading frames to skip; encoders tend to
	// leave keyframe artifacts at the very start.
	SkipFrames int `json:"skip_frames" yaml:"skip_frames"`

	// ConfidenceThreshold marks results below it as low confidence.
	ConfidenceThreshold float64 `json:"confidence_threshold" yaml:"confidence_threshold"`
}

// DefaultConfig returns the default sampling configuration.
func DefaultConfig() Config {
	return Config{
		SampleFrames:        DefaultSampleFrames,
		SkipFrames:          DefaultSkipFrames,
		ConfidenceThreshold: DefaultConfidenceThreshold,
	}
}

func (c Config) withDefaults() Config {
	if c.SampleFrames <= 0 {
		c.SampleFrames = DefaultSampleFrames
	}
	if c.SkipFrames < 0 {
		c.SkipFrames = DefaultSkipFrames
	}
	if c.ConfidenceThreshold <= 0 {
		c.ConfidenceThreshold = DefaultConfidenceThreshold
	}
	return c
}

// Indices returns the frame indices sampled under c.
func (c Config) Indices() []int {
	c = c.withDefaults()
	return GenerateIndices(c.SampleFrames, c.SkipFrames, c.SkipFrames+c.SampleFrames)
}

// GenerateIndices spreads count frame indices evenly over [skip, maxFrames).
// A single sample takes the midpoint. The result is sorted, deduplicated and
// at most count long.
func GenerateIndices(count, skip, maxFrames int) []int {
	if count <= 0 {
		return nil
	}
	available := maxFrames - skip
	if available <= 0 {
		return []int{skip}
	}
	if count == 1 {
		return []int{skip + available/2}
	}

	indices := make([]int, 0, count)
	for i := 0; i < count; i++ {
		idx := skip + i*available/(count-1)
		if idx > maxFrames-1 {
			idx = maxFrames - 1
		}
		indices = append(indices, idx)
	}
	sort.Ints(indices)
	out := indices[:1]
	for _, idx := range indices[1:] {
		if idx != out[len(out)-1] {
			out = append(out, idx)
		}
	}
	if len(out) > count {
		out = out[:count]
	}
	return out
}

// Quality scores a frame by contrast and sharpness on its 0-255 luma:
// 0.7 * variance + 0.3 * mean finite-difference gradient magnitude over
// interior pixels.
func Quality(img image.Image) (float64, error) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return 0, fmt.Errorf("%w: empty frame", watermark.ErrProcessing)
	}
	luma := raster.Luma(img)
	variance := stat.PopVariance(luma, nil)

	var sharpness float64
	if w > 2 && h > 2 {
		var sum float64
		for y := 1; y < h-1; y++ {
			for x := 1; x < w-1; x++ {
				i := y*w + x
				dx := luma[i+1] - luma[i-1]
				dy := luma[i+w] - luma[i-w]
				sum += math.Hypot(dx, dy)
			}
		}
		sharpness = sum / float64((w-2)*(h-2))
	}
	return VarianceWeight*variance + GradientWeight*sharpness, nil
}

// FrameSource decodes single video frames.
type FrameSource interface {
	// Frame returns the decoded frame at index.
	Frame(ctx context.Context, index int) (image.Image, error)
}

// FrameSourceFunc adapts a function to FrameSource.
type FrameSourceFunc func(ctx context.Context, index int) (image.Image, error)

// Frame implements FrameSource.
func (f FrameSourceFunc) Frame(ctx context.Context, index int) (image.Image, error) {
	return f(ctx, index)
}

// FrameResult describes one sampled frame.
type FrameResult struct {
	Index   int     `json:"index" yaml:"index"`
	Quality float64 `json:"quality" yaml:"quality"`
	Text    string  `json:"text,omitempty" yaml:"text,omitempty"`
	Error   string  `json:"error,omitempty" yaml:"error,omitempty"`
}

// Result is the outcome of a multi-frame extraction.
type Result struct {
	Text          string        `json:"text" yaml:"text"`
	Bits          []byte        `json:"-" yaml:"-"`
	Confidence    float64       `json:"confidence" yaml:"confidence"`
	LowConfidence bool          `json:"low_confidence" yaml:"low_confidence"`
	Lossy         bool          `json:"lossy,omitempty" yaml:"lossy,omitempty"`
	FramesUsed    int           `json:"frames_used" yaml:"frames_used"`
	Frames        []FrameResult `json:"frames" yaml:"frames"`
}

// Voter extracts a watermark from sampled frames.
type Voter struct {
	Config Config

	// Codec extracts bits from a frame's red (or luma) channel. Defaults to
	// a BlockCodec.
	Codec watermark.Algorithm

	Logger *slog.Logger
}

// NewVoter returns a Voter with cfg and a default block codec.
func NewVoter(cfg Config) *Voter {
	return &Voter{Config: cfg, Codec: watermark.NewBlockCodec()}
}

// Extract samples frames from src, extracts bitCount bits from each and
// votes. It fails with ErrProcessing only when no frame yields a valid
// payload. A confidence below the threshold is flagged in the result, not
// returned as an error. When the voted bits are not valid UTF-8 the text is
// decoded lossily, trimmed at the first NUL, and the result is marked
// Lossy and LowConfidence.
func (v *Voter) Extract(ctx context.Context, src FrameSource, bitCount int) (*Result, error) {
	if bitCount <= 0 || bitCount%8 != 0 {
		return nil, fmt.Errorf("%w: bit count %d is not a positive whole number of bytes", watermark.ErrInvalidArgument, bitCount)
	}
	cfg := v.Config.withDefaults()
	codec := v.Codec
	if codec == nil {
		codec = watermark.NewBlockCodec()
	}
	log := v.logger()

	res := &Result{}
	var samples []watermark.Sample
	for _, idx := range cfg.Indices() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		fr := FrameResult{Index: idx}
		sample, err := v.frame(ctx, src, codec, idx, bitCount, &fr)
		if err != nil {
			fr.Error = err.Error()
			log.Debug("frame dropped", "index", idx, "error", err)
		} else {
			samples = append(samples, sample)
		}
		res.Frames = append(res.Frames, fr)
	}
	if len(samples) == 0 {
		return nil, fmt.Errorf("%w: all %d sampled frames failed", watermark.ErrProcessing, len(res.Frames))
	}

	vote := watermark.Vote(samples)
	text, err := watermark.BitsToString(vote.Bits)
	if err != nil {
		text, _, _ = strings.Cut(watermark.BitsToStringLossy(vote.Bits), "\x00")
		res.Lossy = true
		log.Debug("voted bits are not valid UTF-8", "error", err)
	}
	res.Text = text
	res.Bits = vote.Bits
	res.Confidence = vote.Confidence
	res.FramesUsed = len(samples)
	res.LowConfidence = res.Lossy || vote.Confidence < cfg.ConfidenceThreshold
	log.Debug("frames voted", "used", res.FramesUsed, "sampled", len(res.Frames), "confidence", res.Confidence)
	return res, nil
}

func (v *Voter) frame(ctx context.Context, src FrameSource, codec watermark.Algorithm, idx, bitCount int, fr *FrameResult) (watermark.Sample, error) {
	img, err := src.Frame(ctx, idx)
	if err != nil {
		return watermark.Sample{}, fmt.Errorf("%w: decode frame %d: %v", watermark.ErrProcessing, idx, err)
	}
	if img == nil {
		return watermark.Sample{}, fmt.Errorf("%w: frame %d is empty", watermark.ErrProcessing, idx)
	}
	quality, err := Quality(img)
	if err != nil {
		return watermark.Sample{}, err
	}
	fr.Quality = quality

	bits, err := codec.Extract(raster.Fit(codec, raster.Red(img)), bitCount)
	if err != nil {
		return watermark.Sample{}, err
	}
	text, err := watermark.BitsToString(bits)
	if err != nil {
		return watermark.Sample{}, err
	}
	fr.Text = text
	return watermark.Sample{
		Bits:   fitBits(watermark.StringToBits(text), bitCount),
		Weight: math.Max(quality, minFrameWeight),
	}, nil
}

func (v *Voter) logger() *slog.Logger {
	if v.Logger != nil {
		return v.Logger
	}
	return slog.Default()
}

// fitBits truncates or zero-extends bits to n.
func fitBits(bits []byte, n int) []byte {
	out := make([]byte, n)
	copy(out, bits)
	return out
}

var errNoFrames = errors.New("framevote: no frames")

// SliceSource serves frames from memory. Index i maps to Frames[i]; out of
// range indices fail.
type SliceSource []image.Image

// Frame implements FrameSource.
func (s SliceSource) Frame(_ context.Context, index int) (image.Image, error) {
	if index < 0 || index >= len(s) {
		return nil, fmt.Errorf("%w: index %d of %d", errNoFrames, index, len(s))
	}
	return s[index], nil
}
