package media

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
	"golang.org/x/sync/errgroup"

	"github.com/haivivi/mediaseal/pkg/raster"
	"github.com/haivivi/mediaseal/pkg/watermark"
)

// JPEGQuality is the quality of JPEG outputs.
const JPEGQuality = 95

// DecodeImage reads an image file and returns it with its format name.
func DecodeImage(path string) (image.Image, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, "", err
	}
	defer f.Close()
	img, format, err := image.Decode(f)
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			return nil, "", fmt.Errorf("%w: %s: %v", watermark.ErrUnsupportedFormat, filepath.Base(path), err)
		}
		return nil, "", fmt.Errorf("%w: decode %s: %v", watermark.ErrProcessing, filepath.Base(path), err)
	}
	return img, format, nil
}

// EncodeImage writes img in the format named by the extension of path.
// GIF and WebP are read-only: GIF palettes and the lack of a WebP encoder
// would both destroy the payload.
func EncodeImage(path string, img image.Image) error {
	ext := strings.ToLower(filepath.Ext(path))
	var encode func(io.Writer, image.Image) error
	switch ext {
	case ".png":
		encode = png.Encode
	case ".jpg", ".jpeg":
		encode = func(w io.Writer, img image.Image) error {
			return jpeg.Encode(w, img, &jpeg.Options{Quality: JPEGQuality})
		}
	case ".bmp":
		encode = bmp.Encode
	case ".tif", ".tiff":
		encode = func(w io.Writer, img image.Image) error {
			return tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate})
		}
	default:
		return fmt.Errorf("%w: cannot write %s images", watermark.ErrUnsupportedFormat, ext)
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := encode(f, img); err != nil {
		f.Close()
		os.Remove(path)
		return fmt.Errorf("%w: encode %s: %v", watermark.ErrProcessing, filepath.Base(path), err)
	}
	return f.Close()
}

// ImageCapacity returns the payload bits a width x height image carries
// under alg. Only the aligned top-left region of the image carries bits;
// see raster.Region.
func ImageCapacity(width, height int, alg watermark.Algorithm) int {
	return raster.Capacity(alg, height, width)
}

// ImageFileCapacity reads only the header of path and reports its
// capacity.
func ImageFileCapacity(path string, alg watermark.Algorithm) (*CapacityReport, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", watermark.ErrUnsupportedFormat, filepath.Base(path), err)
	}
	r := newCapacityReport(TypeImage, alg.Kind(), ImageCapacity(cfg.Width, cfg.Height, alg))
	r.Width, r.Height = cfg.Width, cfg.Height
	return r, nil
}

// EmbedImage returns a watermarked copy of img. Grayscale images carry the
// payload in luma; colour images carry it in each of R, G and B, embedded
// in parallel.
func EmbedImage(ctx context.Context, img image.Image, text string, alg watermark.Algorithm, strength float64) (image.Image, error) {
	payload := watermark.StringToBits(text)
	p := raster.Split(img)
	if capacity := ImageCapacity(p.Width, p.Height, alg); len(payload) > capacity {
		return nil, fmt.Errorf("%w: %d bits exceed capacity %d of %dx%d image", watermark.ErrInvalidArgument, len(payload), capacity, p.Width, p.Height)
	}

	eg, ctx := errgroup.WithContext(ctx)
	for _, g := range p.Grids() {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			return embedPlane(alg, g, payload, strength)
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return p.Image(), nil
}

// embedPlane embeds payload into the aligned region of g in place.
func embedPlane(alg watermark.Algorithm, g *watermark.Grid, payload []byte, strength float64) error {
	out, err := alg.Embed(raster.Fit(alg, g), payload, strength)
	if err != nil {
		return err
	}
	raster.Paste(g, out)
	return nil
}

// ExtractImage reads length bytes from img. It reads luma for grayscale
// images and R for colour images; when R does not decode, it votes over
// R, G and B.
func ExtractImage(img image.Image, length int, alg watermark.Algorithm) (*Extraction, error) {
	if length <= 0 {
		return nil, fmt.Errorf("%w: payload length %d", watermark.ErrInvalidArgument, length)
	}
	n := length * 8
	p := raster.Split(img)
	raw, err := alg.Extract(raster.Fit(alg, p.Primary()), n)
	if err != nil {
		return nil, err
	}
	source := primarySource(p)
	text, strictErr := watermark.BitsToString(raw)
	if strictErr == nil {
		return &Extraction{Media: TypeImage, Text: text, Bits: raw, Source: source, Confidence: 1}, nil
	}
	if p.Gray {
		return nil, strictErr
	}

	vote, err := voteChannels(p, n, alg)
	if err != nil {
		return nil, err
	}
	text, err = watermark.BitsToString(vote.Bits)
	if err != nil {
		return nil, err
	}
	return &Extraction{
		Media:      TypeImage,
		Text:       text,
		Bits:       vote.Bits,
		Source:     "vote",
		Confidence: vote.Confidence,
	}, nil
}

func primarySource(p *raster.Planes) string {
	if p.Gray {
		return "luma"
	}
	return "red"
}

func voteChannels(p *raster.Planes, n int, alg watermark.Algorithm) (watermark.VoteResult, error) {
	grids := p.Grids()
	for i, g := range grids {
		grids[i] = raster.Fit(alg, g)
	}
	return watermark.ExtractWithVoting(alg, grids, n)
}

// EmbedImageFile embeds text into the image at in and writes out.
func (s *Sealer) EmbedImageFile(ctx context.Context, in, out, text string, opts Options) (*EmbedResult, error) {
	opts = opts.withDefaults()
	alg, err := opts.algorithm()
	if err != nil {
		return nil, err
	}
	img, format, err := DecodeImage(in)
	if err != nil {
		return nil, err
	}
	b := img.Bounds()
	s.logger().Debug("image decoded", "format", format, "width", b.Dx(), "height", b.Dy())

	marked, err := EmbedImage(ctx, img, text, alg, opts.strength())
	if err != nil {
		return nil, err
	}
	if err := EncodeImage(out, marked); err != nil {
		return nil, err
	}
	return &EmbedResult{
		Media:     TypeImage,
		Input:     in,
		Output:    out,
		Algorithm: alg.Kind(),
		Strength:  opts.strength(),
		Bits:      len(text) * 8,
		Capacity:  ImageCapacity(b.Dx(), b.Dy(), alg),
	}, nil
}

// ExtractImageFile reads length bytes from the image at in.
func (s *Sealer) ExtractImageFile(_ context.Context, in string, length int, opts Options) (*Extraction, error) {
	alg, err := opts.withDefaults().algorithm()
	if err != nil {
		return nil, err
	}
	img, _, err := DecodeImage(in)
	if err != nil {
		return nil, err
	}
	return ExtractImage(img, length, alg)
}

func (s *Sealer) inspectImage(in string, length int, opts Options) (*Report, error) {
	alg, err := opts.algorithm()
	if err != nil {
		return nil, err
	}
	img, _, err := DecodeImage(in)
	if err != nil {
		return nil, err
	}
	n := length * 8
	p := raster.Split(img)
	raw, err := alg.Extract(raster.Fit(alg, p.Primary()), n)
	if err != nil {
		return nil, err
	}
	r := newReport(TypeImage, primarySource(p), raw)
	if p.Gray {
		return r, nil
	}
	vote, err := voteChannels(p, n, alg)
	if err != nil {
		r.VoteError = err.Error()
		return r, nil
	}
	r.Vote = &Extraction{Media: TypeImage, Bits: vote.Bits, Source: "vote", Confidence: vote.Confidence}
	if text, err := watermark.BitsToString(vote.Bits); err != nil {
		r.VoteError = err.Error()
		r.Vote.Text = watermark.BitsToStringLossy(vote.Bits)
	} else {
		r.Vote.Text = text
	}
	return r, nil
}
