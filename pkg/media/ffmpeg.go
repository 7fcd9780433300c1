package media

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"math"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/haivivi/mediaseal/pkg/framevote"
	"github.com/haivivi/mediaseal/pkg/watermark"
)

// Default binaries, resolved through PATH.
const (
	DefaultFFmpeg  = "ffmpeg"
	DefaultFFprobe = "ffprobe"
)

// DefaultFrameRate is used when a video's frame rate cannot be probed.
const DefaultFrameRate = 30

// framePattern names frames written by SplitFrames.
const framePattern = "frame_%06d.png"

// stderrTail bounds the ffmpeg diagnostics kept in errors.
const stderrTail = 512

// FFmpeg runs the ffmpeg and ffprobe binaries.
type FFmpeg struct {
	// Bin is the ffmpeg binary. Defaults to DefaultFFmpeg.
	Bin string

	// ProbeBin is the ffprobe binary. Defaults to the ffprobe next to Bin.
	ProbeBin string

	Logger *slog.Logger
}

// NewFFmpeg returns an FFmpeg using bin, or the PATH binary when bin is
// empty.
func NewFFmpeg(bin string) *FFmpeg {
	return &FFmpeg{Bin: bin}
}

func (f *FFmpeg) bin() string {
	if f.Bin != "" {
		return f.Bin
	}
	return DefaultFFmpeg
}

func (f *FFmpeg) probeBin() string {
	if f.ProbeBin != "" {
		return f.ProbeBin
	}
	if dir := filepath.Dir(f.bin()); dir != "." {
		return filepath.Join(dir, DefaultFFprobe)
	}
	return DefaultFFprobe
}

func (f *FFmpeg) logger() *slog.Logger {
	if f.Logger != nil {
		return f.Logger
	}
	return slog.Default()
}

// Available reports whether the ffmpeg binary can be found.
func (f *FFmpeg) Available() error {
	if _, err := exec.LookPath(f.bin()); err != nil {
		return fmt.Errorf("%w: ffmpeg not found: %v", watermark.ErrProcessing, err)
	}
	return nil
}

// Run executes ffmpeg with args, overwriting outputs, and returns stdout.
// A failed run wraps ErrProcessing with the tail of ffmpeg's stderr.
func (f *FFmpeg) Run(ctx context.Context, args ...string) ([]byte, error) {
	full := append([]string{"-hide_banner", "-loglevel", "error", "-y"}, args...)
	return f.exec(ctx, f.bin(), full)
}

func (f *FFmpeg) exec(ctx context.Context, bin string, args []string) ([]byte, error) {
	start := time.Now()
	cmd := exec.CommandContext(ctx, bin, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	f.logger().Debug("ffmpeg", "bin", filepath.Base(bin), "args", strings.Join(args, " "), "duration", time.Since(start), "error", err)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: %s: %v: %s", watermark.ErrProcessing, filepath.Base(bin), err, tail(stderr.String(), stderrTail))
	}
	return stdout.Bytes(), nil
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) > n {
		return "..." + s[len(s)-n:]
	}
	return s
}

// ProbeInfo describes a media file.
type ProbeInfo struct {
	Container  string        `json:"container" yaml:"container"`
	Duration   time.Duration `json:"duration" yaml:"duration"`
	HasVideo   bool          `json:"has_video" yaml:"has_video"`
	Width      int           `json:"width,omitempty" yaml:"width,omitempty"`
	Height     int           `json:"height,omitempty" yaml:"height,omitempty"`
	FrameRate  float64       `json:"frame_rate,omitempty" yaml:"frame_rate,omitempty"`
	Frames     int           `json:"frames,omitempty" yaml:"frames,omitempty"`
	HasAudio   bool          `json:"has_audio" yaml:"has_audio"`
	SampleRate int           `json:"sample_rate,omitempty" yaml:"sample_rate,omitempty"`
	Channels   int           `json:"channels,omitempty" yaml:"channels,omitempty"`
}

type probeOutput struct {
	Streams []struct {
		CodecType    string `json:"codec_type"`
		Width        int    `json:"width"`
		Height       int    `json:"height"`
		RFrameRate   string `json:"r_frame_rate"`
		AvgFrameRate string `json:"avg_frame_rate"`
		NbFrames     string `json:"nb_frames"`
		SampleRate   string `json:"sample_rate"`
		Channels     int    `json:"channels"`
	} `json:"streams"`
	Format struct {
		FormatName string `json:"format_name"`
		Duration   string `json:"duration"`
	} `json:"format"`
}

// Probe inspects path with ffprobe.
func (f *FFmpeg) Probe(ctx context.Context, path string) (*ProbeInfo, error) {
	out, err := f.exec(ctx, f.probeBin(), []string{
		"-v", "error", "-print_format", "json", "-show_format", "-show_streams", path,
	})
	if err != nil {
		return nil, err
	}
	return parseProbe(out)
}

func parseProbe(data []byte) (*ProbeInfo, error) {
	var po probeOutput
	if err := json.Unmarshal(data, &po); err != nil {
		return nil, fmt.Errorf("%w: parse ffprobe output: %v", watermark.ErrProcessing, err)
	}
	info := &ProbeInfo{Container: po.Format.FormatName}
	if secs, err := strconv.ParseFloat(po.Format.Duration, 64); err == nil {
		info.Duration = time.Duration(math.Round(secs * float64(time.Second)))
	}
	for _, s := range po.Streams {
		switch s.CodecType {
		case "video":
			if info.HasVideo {
				continue
			}
			info.HasVideo = true
			info.Width, info.Height = s.Width, s.Height
			info.FrameRate = parseRate(s.AvgFrameRate)
			if info.FrameRate == 0 {
				info.FrameRate = parseRate(s.RFrameRate)
			}
			info.Frames, _ = strconv.Atoi(s.NbFrames)
		case "audio":
			if info.HasAudio {
				continue
			}
			info.HasAudio = true
			info.SampleRate, _ = strconv.Atoi(s.SampleRate)
			info.Channels = s.Channels
		}
	}
	if info.HasVideo && info.Frames == 0 && info.FrameRate > 0 {
		info.Frames = int(info.Duration.Seconds() * info.FrameRate)
	}
	return info, nil
}

// parseRate parses an ffprobe rational such as "30000/1001".
func parseRate(s string) float64 {
	num, den, ok := strings.Cut(s, "/")
	if !ok {
		v, _ := strconv.ParseFloat(s, 64)
		return v
	}
	n, err1 := strconv.ParseFloat(num, 64)
	d, err2 := strconv.ParseFloat(den, 64)
	if err1 != nil || err2 != nil || d == 0 {
		return 0
	}
	return n / d
}

// Frame decodes the frame at index from a video.
func (f *FFmpeg) Frame(ctx context.Context, path string, index int) (image.Image, error) {
	out, err := f.Run(ctx,
		"-i", path,
		"-vf", fmt.Sprintf(`select=eq(n\,%d)`, index),
		"-vframes", "1",
		"-f", "image2pipe", "-c:v", "png", "pipe:1",
	)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: frame %d not found", watermark.ErrProcessing, index)
	}
	img, err := png.Decode(bytes.NewReader(out))
	if err != nil {
		return nil, fmt.Errorf("%w: decode frame %d: %v", watermark.ErrProcessing, index, err)
	}
	return img, nil
}

// FrameSource returns a framevote.FrameSource reading frames of path.
func (f *FFmpeg) FrameSource(path string) framevote.FrameSource {
	return framevote.FrameSourceFunc(func(ctx context.Context, index int) (image.Image, error) {
		return f.Frame(ctx, path, index)
	})
}

// SplitFrames writes every frame of a video into dir as numbered PNGs
// sampled at fps.
func (f *FFmpeg) SplitFrames(ctx context.Context, path, dir string, fps float64) error {
	_, err := f.Run(ctx,
		"-i", path,
		"-vf", "fps="+formatRate(fps),
		filepath.Join(dir, framePattern),
	)
	return err
}

// EncodeOptions controls video re-encoding.
type EncodeOptions struct {
	FrameRate float64

	// Lossless encodes x264 at crf 0 with full chroma; otherwise crf 23.
	Lossless bool

	// Audio, when set, is muxed in as the soundtrack.
	Audio string

	// CopyAudio stream-copies Audio instead of storing it as PCM.
	CopyAudio bool
}

// JoinFrames encodes the numbered PNGs in dir into a video at out.
func (f *FFmpeg) JoinFrames(ctx context.Context, dir, out string, opts EncodeOptions) error {
	args := []string{
		"-framerate", formatRate(opts.FrameRate),
		"-i", filepath.Join(dir, framePattern),
	}
	if opts.Audio != "" {
		args = append(args, "-i", opts.Audio, "-map", "0:v:0", "-map", "1:a:0")
	}
	args = append(args, videoCodecArgs(opts.Lossless)...)
	if opts.Audio != "" {
		if opts.CopyAudio {
			args = append(args, "-c:a", "copy")
		} else {
			args = append(args, "-c:a", losslessAudioCodec(out))
		}
	}
	args = append(args, out)
	_, err := f.Run(ctx, args...)
	return err
}

func videoCodecArgs(lossless bool) []string {
	if lossless {
		return []string{"-c:v", "libx264", "-crf", "0", "-preset", "ultrafast", "-pix_fmt", "yuv444p"}
	}
	return []string{"-c:v", "libx264", "-crf", "23", "-preset", "medium", "-pix_fmt", "yuv420p"}
}

// losslessAudioCodec picks a lossless audio codec the output container can
// hold. WebM only takes Opus or Vorbis.
func losslessAudioCodec(out string) string {
	switch strings.ToLower(filepath.Ext(out)) {
	case ".mp4", ".m4v":
		return "alac"
	case ".webm":
		return "libopus"
	default:
		return "pcm_s16le"
	}
}

// ExtractAudio writes the audio track of a video as 16-bit 44.1 kHz WAV.
func (f *FFmpeg) ExtractAudio(ctx context.Context, path, wav string) error {
	_, err := f.Run(ctx,
		"-i", path,
		"-vn", "-acodec", "pcm_s16le", "-ar", "44100",
		wav,
	)
	return err
}

// ReplaceAudio stream-copies the video of path and muxes audio in as its
// soundtrack.
func (f *FFmpeg) ReplaceAudio(ctx context.Context, path, audio, out string) error {
	_, err := f.Run(ctx,
		"-i", path, "-i", audio,
		"-map", "0:v:0", "-map", "1:a:0",
		"-c:v", "copy", "-c:a", losslessAudioCodec(out),
		out,
	)
	return err
}

// DecodePCM decodes the first audio stream of path into interleaved 16-bit
// little-endian PCM at its native rate and channel count.
func (f *FFmpeg) DecodePCM(ctx context.Context, path string) ([]byte, error) {
	return f.Run(ctx,
		"-i", path,
		"-vn", "-f", "s16le", "-acodec", "pcm_s16le",
		"pipe:1",
	)
}

// Transcode converts in to out, letting ffmpeg pick codecs from the output
// extension.
func (f *FFmpeg) Transcode(ctx context.Context, in, out string) error {
	_, err := f.Run(ctx, "-i", in, out)
	return err
}

func formatRate(fps float64) string {
	if fps <= 0 {
		fps = DefaultFrameRate
	}
	return strconv.FormatFloat(fps, 'f', -1, 64)
}
