package media

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/haivivi/mediaseal/pkg/audio/shaper"
	"github.com/haivivi/mediaseal/pkg/framevote"
	"github.com/haivivi/mediaseal/pkg/watermark"
)

// DefaultStrength is the embedding strength used when none is given.
const DefaultStrength = 0.1

// Options controls embedding and extraction.
type Options struct {
	Algorithm watermark.Kind `json:"algorithm" yaml:"algorithm"`

	// Strength is the embedding strength. Nil selects DefaultStrength; zero
	// is a valid strength.
	Strength *float64 `json:"strength,omitempty" yaml:"strength,omitempty"`

	// Mode selects the carrier of a video. Ignored for images and audio.
	Mode VideoMode `json:"mode,omitempty" yaml:"mode,omitempty"`

	// Lossless re-encodes video losslessly.
	Lossless bool `json:"lossless,omitempty" yaml:"lossless,omitempty"`

	// Sampling tunes multi-frame video extraction.
	Sampling framevote.Config `json:"sampling" yaml:"sampling"`

	// Tag, when set, is written into the ID3v2 provenance comment of MP3
	// outputs.
	Tag string `json:"tag,omitempty" yaml:"tag,omitempty"`
}

func (o Options) withDefaults() Options {
	if o.Algorithm == "" {
		o.Algorithm = watermark.KindDCT
	}
	if o.Strength == nil {
		v := DefaultStrength
		o.Strength = &v
	}
	if o.Mode == "" {
		o.Mode = ModeVideo
	}
	return o
}

func (o Options) strength() float64 {
	if o.Strength == nil {
		return DefaultStrength
	}
	return *o.Strength
}

func (o Options) algorithm() (watermark.Algorithm, error) {
	return watermark.New(o.Algorithm)
}

// EmbedResult describes a completed embed.
type EmbedResult struct {
	Media     Type           `json:"media" yaml:"media"`
	Input     string         `json:"input" yaml:"input"`
	Output    string         `json:"output" yaml:"output"`
	Algorithm watermark.Kind `json:"algorithm" yaml:"algorithm"`
	Strength  float64        `json:"strength" yaml:"strength"`
	Mode      VideoMode      `json:"mode,omitempty" yaml:"mode,omitempty"`
	Bits      int            `json:"bits" yaml:"bits"`
	Capacity  int            `json:"capacity" yaml:"capacity"`
	Frames    int            `json:"frames,omitempty" yaml:"frames,omitempty"`
	Lossless  bool           `json:"lossless,omitempty" yaml:"lossless,omitempty"`
}

// Extraction is a recovered payload.
type Extraction struct {
	Media Type   `json:"media" yaml:"media"`
	Text  string `json:"text" yaml:"text"`
	Bits  []byte `json:"-" yaml:"-"`

	// Source names what the payload was read from: "luma", "red",
	// "audio" or "frames".
	Source string `json:"source" yaml:"source"`

	Confidence    float64                 `json:"confidence" yaml:"confidence"`
	LowConfidence bool                    `json:"low_confidence,omitempty" yaml:"low_confidence,omitempty"`
	Lossy         bool                    `json:"lossy,omitempty" yaml:"lossy,omitempty"`
	Frames        []framevote.FrameResult `json:"frames,omitempty" yaml:"frames,omitempty"`

	// Provenance is the ID3v2 comment of a tagged MP3, if any.
	Provenance *Provenance `json:"provenance,omitempty" yaml:"provenance,omitempty"`
}

// String returns the extracted text.
func (e *Extraction) String() string { return e.Text }

// CapacityReport describes how many payload bits a file can carry.
type CapacityReport struct {
	Media     Type           `json:"media" yaml:"media"`
	Algorithm watermark.Kind `json:"algorithm" yaml:"algorithm"`
	Width     int            `json:"width,omitempty" yaml:"width,omitempty"`
	Height    int            `json:"height,omitempty" yaml:"height,omitempty"`
	Samples   int            `json:"samples,omitempty" yaml:"samples,omitempty"`
	Bits      int            `json:"bits" yaml:"bits"`
	Bytes     int            `json:"bytes" yaml:"bytes"`
}

// Fits reports whether text fits the capacity.
func (r *CapacityReport) Fits(text string) bool {
	return len(text)*8 <= r.Bits
}

func newCapacityReport(t Type, kind watermark.Kind, bits int) *CapacityReport {
	return &CapacityReport{Media: t, Algorithm: kind, Bits: bits, Bytes: bits / 8}
}

// Report is the diagnostic view of an extraction.
type Report struct {
	Media    Type               `json:"media" yaml:"media"`
	Source   string             `json:"source" yaml:"source"`
	Analysis watermark.Analysis `json:"analysis" yaml:"analysis"`

	// StrictError is set when the bits are not valid UTF-8.
	StrictError string `json:"strict_error,omitempty" yaml:"strict_error,omitempty"`

	// Vote is the fallback over channels or frames, when one ran.
	Vote *Extraction `json:"vote,omitempty" yaml:"vote,omitempty"`

	// VoteError explains a failed fallback.
	VoteError string `json:"vote_error,omitempty" yaml:"vote_error,omitempty"`
}

// Sealer embeds and extracts watermarks in media files.
type Sealer struct {
	FFmpeg *FFmpeg
	Shaper *shaper.Shaper
	Logger *slog.Logger

	// TempDir holds intermediate files. Defaults to os.TempDir().
	TempDir string
}

// New returns a Sealer using ff for ffmpeg work.
func New(ff *FFmpeg) *Sealer {
	if ff == nil {
		ff = NewFFmpeg("")
	}
	return &Sealer{FFmpeg: ff, Shaper: shaper.New(shaper.DefaultConfig())}
}

func (s *Sealer) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

func (s *Sealer) shaper() *shaper.Shaper {
	if s.Shaper != nil {
		return s.Shaper
	}
	return shaper.New(shaper.DefaultConfig())
}

func (s *Sealer) tempDir(pattern string) (string, func(), error) {
	dir, err := os.MkdirTemp(s.TempDir, pattern)
	if err != nil {
		return "", nil, fmt.Errorf("%w: create temp dir: %v", watermark.ErrProcessing, err)
	}
	return dir, func() { os.RemoveAll(dir) }, nil
}

// Embed watermarks in with text and writes out. The media type is taken
// from in; out must be a writable format of the same type.
func (s *Sealer) Embed(ctx context.Context, in, out, text string, opts Options) (*EmbedResult, error) {
	if text == "" {
		return nil, fmt.Errorf("%w: empty watermark text", watermark.ErrInvalidArgument)
	}
	opts = opts.withDefaults()
	t, err := DetectFile(in)
	if err != nil {
		return nil, err
	}
	if ot, err := DetectType(out); err != nil {
		return nil, err
	} else if ot != t {
		return nil, fmt.Errorf("%w: cannot write %s input as %s", watermark.ErrUnsupportedFormat, t, ot)
	}
	s.logger().Debug("embed", "media", t, "input", in, "output", out, "algorithm", opts.Algorithm, "strength", opts.strength())

	switch t {
	case TypeImage:
		return s.EmbedImageFile(ctx, in, out, text, opts)
	case TypeAudio:
		return s.EmbedAudioFile(ctx, in, out, text, opts)
	default:
		return s.EmbedVideoFile(ctx, in, out, text, opts)
	}
}

// Extract reads a payload of length bytes from in.
func (s *Sealer) Extract(ctx context.Context, in string, length int, opts Options) (*Extraction, error) {
	if length <= 0 {
		return nil, fmt.Errorf("%w: payload length %d", watermark.ErrInvalidArgument, length)
	}
	opts = opts.withDefaults()
	t, err := DetectFile(in)
	if err != nil {
		return nil, err
	}
	s.logger().Debug("extract", "media", t, "input", in, "length", length, "algorithm", opts.Algorithm)

	switch t {
	case TypeImage:
		return s.ExtractImageFile(ctx, in, length, opts)
	case TypeAudio:
		return s.ExtractAudioFile(ctx, in, length, opts)
	default:
		return s.ExtractVideoFile(ctx, in, length, opts)
	}
}

// Capacity reports how many payload bits in can carry under kind.
func (s *Sealer) Capacity(ctx context.Context, in string, kind watermark.Kind) (*CapacityReport, error) {
	if kind == "" {
		kind = watermark.KindDCT
	}
	alg, err := watermark.New(kind)
	if err != nil {
		return nil, err
	}
	t, err := DetectFile(in)
	if err != nil {
		return nil, err
	}
	switch t {
	case TypeImage:
		return ImageFileCapacity(in, alg)
	case TypeAudio:
		samples, err := s.loadAudio(ctx, in)
		if err != nil {
			return nil, err
		}
		r := newCapacityReport(TypeAudio, kind, shaper.Capacity(len(samples), alg))
		r.Samples = len(samples)
		return r, nil
	default:
		return s.videoCapacity(ctx, in, alg)
	}
}

// Inspect extracts length bytes from in and reports the raw bits, both
// decodings and the voting fallback.
func (s *Sealer) Inspect(ctx context.Context, in string, length int, opts Options) (*Report, error) {
	if length <= 0 {
		return nil, fmt.Errorf("%w: payload length %d", watermark.ErrInvalidArgument, length)
	}
	opts = opts.withDefaults()
	t, err := DetectFile(in)
	if err != nil {
		return nil, err
	}
	switch t {
	case TypeImage:
		return s.inspectImage(in, length, opts)
	case TypeAudio:
		return s.inspectAudio(ctx, in, length, opts)
	default:
		return s.inspectVideo(ctx, in, length, opts)
	}
}

func newReport(t Type, source string, bits []byte) *Report {
	r := &Report{Media: t, Source: source, Analysis: watermark.Analyze(bits)}
	if _, err := watermark.BitsToString(bits); err != nil {
		r.StrictError = err.Error()
	}
	return r
}
