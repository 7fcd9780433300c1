package media

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/haivivi/mediaseal/pkg/audio/shaper"
	"github.com/haivivi/mediaseal/pkg/audio/wavio"
	"github.com/haivivi/mediaseal/pkg/framevote"
	"github.com/haivivi/mediaseal/pkg/raster"
	"github.com/haivivi/mediaseal/pkg/watermark"
)

// VideoMode selects which track of a video carries the payload.
type VideoMode string

const (
	// ModeVideo embeds into every frame.
	ModeVideo VideoMode = "video"
	// ModeAudio embeds into the audio track only.
	ModeAudio VideoMode = "audio"
	// ModeBoth embeds into frames and audio; extraction keeps the more
	// confident result.
	ModeBoth VideoMode = "both"
)

// VideoModes lists every mode.
var VideoModes = []VideoMode{ModeVideo, ModeAudio, ModeBoth}

// ParseVideoMode parses a mode name case-insensitively. Empty means
// ModeVideo.
func ParseVideoMode(s string) (VideoMode, error) {
	switch m := VideoMode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return ModeVideo, nil
	case ModeVideo, ModeAudio, ModeBoth:
		return m, nil
	default:
		return "", fmt.Errorf("%w: video mode %q", watermark.ErrInvalidArgument, s)
	}
}

func (m VideoMode) frames() bool { return m == ModeVideo || m == ModeBoth }
func (m VideoMode) audio() bool  { return m == ModeAudio || m == ModeBoth }

// EmbedVideoFile embeds text into the video at in and writes out.
func (s *Sealer) EmbedVideoFile(ctx context.Context, in, out, text string, opts Options) (*EmbedResult, error) {
	opts = opts.withDefaults()
	alg, err := opts.algorithm()
	if err != nil {
		return nil, err
	}
	info, err := s.FFmpeg.Probe(ctx, in)
	if err != nil {
		return nil, err
	}
	if !info.HasVideo {
		return nil, fmt.Errorf("%w: %s has no video stream", watermark.ErrUnsupportedFormat, filepath.Base(in))
	}
	mode := opts.Mode
	if mode.audio() && !info.HasAudio {
		if mode == ModeAudio {
			return nil, fmt.Errorf("%w: %s has no audio track", watermark.ErrInvalidArgument, filepath.Base(in))
		}
		s.logger().Warn("no audio track, embedding into frames only", "input", in)
		mode = ModeVideo
	}

	dir, cleanup, err := s.tempDir("mediaseal-video-*")
	if err != nil {
		return nil, err
	}
	defer cleanup()

	payload := watermark.StringToBits(text)
	res := &EmbedResult{
		Media:     TypeVideo,
		Input:     in,
		Output:    out,
		Algorithm: alg.Kind(),
		Strength:  opts.strength(),
		Mode:      mode,
		Bits:      len(payload),
		Lossless:  opts.Lossless,
	}

	var markedAudio string
	if mode.audio() {
		markedAudio = filepath.Join(dir, "watermarked.wav")
		capacity, err := s.embedTrack(ctx, in, dir, markedAudio, payload, alg, opts.strength())
		if err != nil {
			return nil, err
		}
		res.Capacity = capacity
	}
	if mode == ModeAudio {
		if err := s.FFmpeg.ReplaceAudio(ctx, in, markedAudio, out); err != nil {
			return nil, err
		}
		return res, nil
	}

	capacity := ImageCapacity(info.Width, info.Height, alg)
	if len(payload) > capacity {
		return nil, fmt.Errorf("%w: %d bits exceed capacity %d of %dx%d frames", watermark.ErrInvalidArgument, len(payload), capacity, info.Width, info.Height)
	}
	if res.Capacity == 0 || capacity < res.Capacity {
		res.Capacity = capacity
	}

	framesDir := filepath.Join(dir, "frames")
	if err := os.Mkdir(framesDir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: %v", watermark.ErrProcessing, err)
	}
	fps := info.FrameRate
	if fps <= 0 {
		fps = DefaultFrameRate
	}
	if err := s.FFmpeg.SplitFrames(ctx, in, framesDir, fps); err != nil {
		return nil, err
	}
	frames, err := s.embedFrames(ctx, framesDir, text, alg, opts.strength())
	if err != nil {
		return nil, err
	}
	res.Frames = frames

	enc := EncodeOptions{FrameRate: fps, Lossless: opts.Lossless}
	switch {
	case markedAudio != "":
		enc.Audio = markedAudio
	case info.HasAudio:
		enc.Audio, enc.CopyAudio = in, true
	}
	if err := s.FFmpeg.JoinFrames(ctx, framesDir, out, enc); err != nil {
		return nil, err
	}
	return res, nil
}

// embedTrack watermarks the audio track of a video into wav and returns
// the track's capacity.
func (s *Sealer) embedTrack(ctx context.Context, in, dir, wav string, payload []byte, alg watermark.Algorithm, strength float64) (int, error) {
	samples, err := s.loadTrack(ctx, in, dir)
	if err != nil {
		return 0, err
	}
	capacity := shaper.Capacity(len(samples), alg)
	if len(payload) > capacity {
		return 0, fmt.Errorf("%w: %d bits exceed audio track capacity %d", watermark.ErrInvalidArgument, len(payload), capacity)
	}
	marked, err := s.shaper().Embed(samples, payload, alg, strength)
	if err != nil {
		return 0, err
	}
	return capacity, wavio.WriteFile(wav, &wavio.Audio{Samples: marked, Format: AudioFormat})
}

func (s *Sealer) loadTrack(ctx context.Context, in, dir string) ([]float64, error) {
	track := filepath.Join(dir, "track.wav")
	if err := s.FFmpeg.ExtractAudio(ctx, in, track); err != nil {
		return nil, err
	}
	if !fileExists(track) {
		return nil, fmt.Errorf("%w: ffmpeg wrote no audio track", watermark.ErrProcessing)
	}
	return s.loadAudio(ctx, track)
}

// embedFrames watermarks every PNG in dir in place and returns the frame
// count.
func (s *Sealer) embedFrames(ctx context.Context, dir, text string, alg watermark.Algorithm, strength float64) (int, error) {
	frames, err := filepath.Glob(filepath.Join(dir, "frame_*.png"))
	if err != nil {
		return 0, err
	}
	if len(frames) == 0 {
		return 0, fmt.Errorf("%w: ffmpeg produced no frames", watermark.ErrProcessing)
	}
	sort.Strings(frames)

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(runtime.GOMAXPROCS(0))
	for _, frame := range frames {
		eg.Go(func() error {
			img, _, err := DecodeImage(frame)
			if err != nil {
				return err
			}
			marked, err := EmbedImage(ctx, img, text, alg, strength)
			if err != nil {
				return fmt.Errorf("%s: %w", filepath.Base(frame), err)
			}
			return EncodeImage(frame, marked)
		})
	}
	if err := eg.Wait(); err != nil {
		return 0, err
	}
	s.logger().Debug("frames embedded", "count", len(frames))
	return len(frames), nil
}

// ExtractVideoFile reads length bytes from the video at in using the
// carrier selected by opts.Mode.
func (s *Sealer) ExtractVideoFile(ctx context.Context, in string, length int, opts Options) (*Extraction, error) {
	opts = opts.withDefaults()
	alg, err := opts.algorithm()
	if err != nil {
		return nil, err
	}
	switch opts.Mode {
	case ModeAudio:
		return s.extractTrack(ctx, in, length, alg)
	case ModeBoth:
		video, verr := s.extractFrames(ctx, in, length, alg, opts.Sampling)
		audio, aerr := s.extractTrack(ctx, in, length, alg)
		return pickExtraction(video, verr, audio, aerr)
	default:
		return s.extractFrames(ctx, in, length, alg, opts.Sampling)
	}
}

// pickExtraction keeps the more confident of two extractions. A strictly
// decoded result beats a lossy one; frame results win ties.
func pickExtraction(video *Extraction, verr error, audio *Extraction, aerr error) (*Extraction, error) {
	switch {
	case verr != nil && aerr != nil:
		return nil, errors.Join(verr, aerr)
	case verr != nil:
		return audio, nil
	case aerr != nil:
		return video, nil
	case video.Lossy != audio.Lossy:
		if video.Lossy {
			return audio, nil
		}
		return video, nil
	case audio.Confidence > video.Confidence:
		return audio, nil
	default:
		return video, nil
	}
}

func (s *Sealer) extractFrames(ctx context.Context, in string, length int, alg watermark.Algorithm, cfg framevote.Config) (*Extraction, error) {
	voter := framevote.NewVoter(cfg)
	voter.Codec = alg
	voter.Logger = s.logger()
	res, err := voter.Extract(ctx, s.FFmpeg.FrameSource(in), length*8)
	if err != nil {
		return nil, err
	}
	if res.LowConfidence {
		s.logger().Warn("low confidence extraction", "confidence", res.Confidence, "frames_used", res.FramesUsed)
	}
	return &Extraction{
		Media:         TypeVideo,
		Text:          res.Text,
		Bits:          res.Bits,
		Source:        "frames",
		Confidence:    res.Confidence,
		LowConfidence: res.LowConfidence,
		Lossy:         res.Lossy,
		Frames:        res.Frames,
	}, nil
}

func (s *Sealer) extractTrack(ctx context.Context, in string, length int, alg watermark.Algorithm) (*Extraction, error) {
	dir, cleanup, err := s.tempDir("mediaseal-track-*")
	if err != nil {
		return nil, err
	}
	defer cleanup()
	samples, err := s.loadTrack(ctx, in, dir)
	if err != nil {
		return nil, err
	}
	res, err := s.ExtractAudio(samples, length, alg)
	if err != nil {
		return nil, err
	}
	res.Media = TypeVideo
	return res, nil
}

func (s *Sealer) videoCapacity(ctx context.Context, in string, alg watermark.Algorithm) (*CapacityReport, error) {
	info, err := s.FFmpeg.Probe(ctx, in)
	if err != nil {
		return nil, err
	}
	if !info.HasVideo {
		return nil, fmt.Errorf("%w: %s has no video stream", watermark.ErrUnsupportedFormat, filepath.Base(in))
	}
	r := newCapacityReport(TypeVideo, alg.Kind(), ImageCapacity(info.Width, info.Height, alg))
	r.Width, r.Height = info.Width, info.Height
	return r, nil
}

// inspectVideo analyses the first sampled frame and runs the frame vote.
func (s *Sealer) inspectVideo(ctx context.Context, in string, length int, opts Options) (*Report, error) {
	alg, err := opts.algorithm()
	if err != nil {
		return nil, err
	}
	if opts.Mode == ModeAudio {
		dir, cleanup, err := s.tempDir("mediaseal-track-*")
		if err != nil {
			return nil, err
		}
		defer cleanup()
		samples, err := s.loadTrack(ctx, in, dir)
		if err != nil {
			return nil, err
		}
		raw, err := s.shaper().Extract(samples, alg, length*8)
		if err != nil {
			return nil, err
		}
		return newReport(TypeVideo, "audio", raw), nil
	}

	idx := opts.Sampling.Indices()[0]
	img, err := s.FFmpeg.Frame(ctx, in, idx)
	if err != nil {
		return nil, err
	}
	raw, err := alg.Extract(raster.Fit(alg, raster.Red(img)), length*8)
	if err != nil {
		return nil, err
	}
	r := newReport(TypeVideo, fmt.Sprintf("frame %d", idx), raw)
	vote, err := s.extractFrames(ctx, in, length, alg, opts.Sampling)
	if err != nil {
		r.VoteError = err.Error()
		return r, nil
	}
	r.Vote = vote
	return r, nil
}
