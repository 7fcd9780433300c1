// Package shaper embeds watermarks into audio buffers while keeping the
// perturbation inaudible.
//
// Codecs that provide an audio-safe embed (the block DCT codec) go through
// the gentle pipeline:
//
//  1. audio-safe embed at StrengthScale * strength
//  2. protective peak normalization
//  3. light smoothing
//  4. short square-root fades at both ends
//  5. reinforcement: payload blocks whose coefficient no longer carries
//     its bit with at least ReinforceMargin are re-embedded with the plain
//     sign-forcing embed
//
// Other codecs go through the strong pipeline: plain embed, peak
// normalization, de-emphasis, windowed-RMS compression, fades and a tanh
// soft limiter.
//
// Extraction always uses the codec's plain extractor. Reinforcement makes
// the signs survive the conditioning steps and 16-bit quantization; lossy
// re-encoding beyond that is not guaranteed.
package shaper

import (
	"fmt"
	"log/slog"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/haivivi/mediaseal/pkg/watermark"
)

// Config holds the tuned constants of both pipelines.
type Config struct {
	// StrengthScale scales the caller's strength for the gentle pipeline.
	StrengthScale float64 `json:"strength_scale" yaml:"strength_scale"`

	// PeakLimit triggers peak normalization when exceeded.
	PeakLimit float64 `json:"peak_limit" yaml:"peak_limit"`
	// PeakCeiling is the peak after normalization.
	PeakCeiling float64 `json:"peak_ceiling" yaml:"peak_ceiling"`

	// SmoothingAlpha blends each sample toward its 3-sample mean.
	SmoothingAlpha float64 `json:"smoothing_alpha" yaml:"smoothing_alpha"`

	// Gentle fade length is len/GentleFadeDivisor clamped to
	// [GentleFadeMin, GentleFadeMax].
	GentleFadeDivisor int `json:"gentle_fade_divisor" yaml:"gentle_fade_divisor"`
	GentleFadeMin     int `json:"gentle_fade_min" yaml:"gentle_fade_min"`
	GentleFadeMax     int `json:"gentle_fade_max" yaml:"gentle_fade_max"`

	// Strong fade length is len/StrongFadeDivisor clamped to
	// [StrongFadeMin, StrongFadeMax].
	StrongFadeDivisor int `json:"strong_fade_divisor" yaml:"strong_fade_divisor"`
	StrongFadeMin     int `json:"strong_fade_min" yaml:"strong_fade_min"`
	StrongFadeMax     int `json:"strong_fade_max" yaml:"strong_fade_max"`

	// DeemphasisCoeff is the feedback of y[n] = x[n] + c*y[n-1].
	DeemphasisCoeff float64 `json:"deemphasis_coeff" yaml:"deemphasis_coeff"`

	// Compressor windows are CompressorWindow samples long, CompressorHop
	// apart. Windows louder than CompressorRMS are attenuated.
	CompressorWindow int     `json:"compressor_window" yaml:"compressor_window"`
	CompressorHop    int     `json:"compressor_hop" yaml:"compressor_hop"`
	CompressorRMS    float64 `json:"compressor_rms" yaml:"compressor_rms"`

	// LimiterThreshold is where the soft limiter starts; LimiterRange is
	// the most it adds above the threshold.
	LimiterThreshold float64 `json:"limiter_threshold" yaml:"limiter_threshold"`
	LimiterRange     float64 `json:"limiter_range" yaml:"limiter_range"`

	// ReinforceMargin is the smallest signed coefficient a payload block
	// may keep after gentle conditioning before it is re-embedded. Zero
	// re-embeds only blocks whose sign flipped.
	ReinforceMargin float64 `json:"reinforce_margin" yaml:"reinforce_margin"`
}

// DefaultConfig returns the tuned defaults.
func DefaultConfig() Config {
	return Config{
		StrengthScale:     0.05,
		PeakLimit:         0.99,
		PeakCeiling:       0.95,
		SmoothingAlpha:    0.005,
		GentleFadeDivisor: 500,
		GentleFadeMin:     16,
		GentleFadeMax:     128,
		StrongFadeDivisor: 200,
		StrongFadeMin:     32,
		StrongFadeMax:     512,
		DeemphasisCoeff:   0.95,
		CompressorWindow:  1024,
		CompressorHop:     512,
		CompressorRMS:     0.1,
		LimiterThreshold:  0.95,
		LimiterRange:      0.04,
		ReinforceMargin:   0.005,
	}
}

// AudioSafeEmbedder is implemented by block codecs with an audio-tuned
// embed. Coefficients exposes the values Extract reads signs from.
type AudioSafeEmbedder interface {
	watermark.Algorithm
	EmbedAudioSafe(g *watermark.Grid, bits []byte, strength float64) (*watermark.Grid, error)
	Coefficients(g *watermark.Grid, n int) ([]float64, error)
}

// Shaper runs the audio embedding pipelines.
type Shaper struct {
	Config Config
	Logger *slog.Logger
}

// New returns a Shaper using cfg.
func New(cfg Config) *Shaper {
	return &Shaper{Config: cfg}
}

// Capacity returns the number of bits alg can embed into n samples.
func Capacity(n int, alg watermark.Algorithm) int {
	side := watermark.GridSide(n, watermark.DefaultBlockSize, alg.PadMode())
	return alg.Capacity(side, side)
}

// Embed returns a watermarked copy of samples. The input is not modified.
func (s *Shaper) Embed(samples []float64, bits []byte, alg watermark.Algorithm, strength float64) ([]float64, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("%w: empty audio buffer", watermark.ErrInvalidArgument)
	}
	log := s.logger()
	g := watermark.ToGrid(samples, watermark.DefaultBlockSize, alg.PadMode())

	if safe, ok := alg.(AudioSafeEmbedder); ok {
		eff := strength * s.Config.StrengthScale
		log.Debug("gentle audio embed", "algorithm", alg.Name(), "strength", strength, "effective", eff)
		out, err := safe.EmbedAudioSafe(g, bits, eff)
		if err != nil {
			return nil, err
		}
		buf := watermark.FromGrid(out, len(samples), watermark.RangeAudio)
		s.gentle(buf)
		n, err := s.reinforce(buf, bits, safe, eff)
		if err != nil {
			return nil, err
		}
		if n > 0 {
			log.Debug("reinforced weak blocks", "blocks", n, "bits", len(bits))
		}
		return buf, nil
	}

	log.Debug("strong audio embed", "algorithm", alg.Name(), "strength", strength)
	out, err := alg.Embed(g, bits, strength)
	if err != nil {
		return nil, err
	}
	buf := watermark.FromGrid(out, len(samples), watermark.RangeAudio)
	s.strong(buf)
	return buf, nil
}

// Extract reads bitCount bits with the codec's plain extractor.
func (s *Shaper) Extract(samples []float64, alg watermark.Algorithm, bitCount int) ([]byte, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("%w: empty audio buffer", watermark.ErrInvalidArgument)
	}
	g := watermark.ToGrid(samples, watermark.DefaultBlockSize, alg.PadMode())
	return alg.Extract(g, bitCount)
}

func (s *Shaper) gentle(buf []float64) {
	c := s.Config
	PeakNormalize(buf, c.PeakLimit, c.PeakCeiling)
	Smooth(buf, c.SmoothingAlpha)
	Fade(buf, fadeLength(len(buf), c.GentleFadeDivisor, c.GentleFadeMin, c.GentleFadeMax))
}

// reinforce re-embeds, in place, the payload blocks of buf whose
// coefficient carries its bit by less than ReinforceMargin. Other samples
// are left alone. It returns the number of blocks rewritten.
func (s *Shaper) reinforce(buf []float64, bits []byte, alg AudioSafeEmbedder, strength float64) (int, error) {
	bs := watermark.BlockSizeOf(alg)
	g := watermark.ToGrid(buf, watermark.DefaultBlockSize, alg.PadMode())
	if g.Cols%bs != 0 || g.Rows%bs != 0 {
		return 0, nil
	}
	coeffs, err := alg.Coefficients(g, len(bits))
	if err != nil {
		return 0, err
	}
	perRow := g.Cols / bs
	var forced *watermark.Grid
	n := 0
	for i, bit := range bits {
		signed := coeffs[i]
		if bit == 0 {
			signed = -signed
		}
		if signed > 0 && signed >= s.Config.ReinforceMargin {
			continue
		}
		if forced == nil {
			if forced, err = alg.Embed(g, bits, strength); err != nil {
				return 0, err
			}
		}
		r0, c0 := i/perRow*bs, i%perRow*bs
		for r := r0; r < r0+bs; r++ {
			lo := r*g.Cols + c0
			hi := min(lo+bs, len(buf))
			if lo < hi {
				copy(buf[lo:hi], forced.Data[lo:hi])
			}
		}
		n++
	}
	return n, nil
}

func (s *Shaper) strong(buf []float64) {
	c := s.Config
	PeakNormalize(buf, c.PeakLimit, c.PeakCeiling)
	Deemphasis(buf, c.DeemphasisCoeff)
	Compress(buf, c.CompressorWindow, c.CompressorHop, c.CompressorRMS)
	Fade(buf, fadeLength(len(buf), c.StrongFadeDivisor, c.StrongFadeMin, c.StrongFadeMax))
	SoftLimit(buf, c.LimiterThreshold, c.LimiterRange)
}

func (s *Shaper) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

// PeakNormalize scales buf so its peak equals ceiling when the peak exceeds
// limit. It returns the applied factor (1 when untouched).
func PeakNormalize(buf []float64, limit, ceiling float64) float64 {
	peak := peakOf(buf)
	if peak <= limit {
		return 1
	}
	factor := ceiling / peak
	floats.Scale(factor, buf)
	return factor
}

// Smooth blends every interior sample toward the mean of itself and its two
// neighbours by alpha.
func Smooth(buf []float64, alpha float64) {
	if len(buf) < 3 || alpha <= 0 {
		return
	}
	prev := buf[0]
	for i := 1; i < len(buf)-1; i++ {
		cur := buf[i]
		avg := (prev + cur + buf[i+1]) / 3
		buf[i] = cur*(1-alpha) + avg*alpha
		prev = cur
	}
}

// Fade applies square-root fade-in and fade-out ramps of n samples.
func Fade(buf []float64, n int) {
	if n <= 0 {
		return
	}
	n = min(n, len(buf))
	for i := 0; i < n; i++ {
		buf[i] *= math.Sqrt(float64(i) / float64(n))
	}
	for i := len(buf) - n; i < len(buf); i++ {
		buf[i] *= math.Sqrt(float64(len(buf)-i) / float64(n))
	}
}

// Deemphasis runs y[n] = x[n] + coeff*y[n-1] and rescales the result back
// to the input's peak.
func Deemphasis(buf []float64, coeff float64) {
	if len(buf) < 2 {
		return
	}
	before := peakOf(buf)
	var y float64
	for i, x := range buf {
		y = x + coeff*y
		buf[i] = y
	}
	if after := peakOf(buf); after > 0 {
		floats.Scale(before/after, buf)
	}
}

// Compress attenuates windows whose RMS exceeds threshold by
// 0.8 + 0.2*min(threshold/rms, 1). Windows overlap when hop < window.
func Compress(buf []float64, window, hop int, threshold float64) {
	if window <= 0 || hop <= 0 {
		return
	}
	for start := 0; start < len(buf); start += hop {
		w := buf[start:min(start+window, len(buf))]
		rms := floats.Norm(w, 2) / math.Sqrt(float64(len(w)))
		if rms > threshold {
			floats.Scale(0.8+0.2*math.Min(threshold/rms, 1), w)
		}
	}
}

// SoftLimit maps |x| above threshold to threshold + tanh(|x|-threshold)*span,
// keeping the sign.
func SoftLimit(buf []float64, threshold, span float64) {
	for i, x := range buf {
		if a := math.Abs(x); a > threshold {
			buf[i] = math.Copysign(threshold+math.Tanh(a-threshold)*span, x)
		}
	}
}

func fadeLength(n, divisor, lo, hi int) int {
	if divisor <= 0 {
		return lo
	}
	return max(lo, min(n/divisor, hi))
}

func peakOf(buf []float64) float64 {
	if len(buf) == 0 {
		return 0
	}
	return floats.Norm(buf, math.Inf(1))
}
