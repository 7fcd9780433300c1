package framevote

import (
	"context"
	"errors"
	"image"
	"image/color"
	"math"
	"math/rand"
	"testing"

	"github.com/haivivi/mediaseal/pkg/raster"
	"github.com/haivivi/mediaseal/pkg/watermark"
)

func TestGenerateIndices(t *testing.T) {
	tests := []struct {
		name              string
		count, skip, maxF int
		want              []int
	}{
		{"three", 3, 5, 12, []int{5, 8, 11}},
		{"default", 7, 5, 12, []int{5, 6, 7, 8, 9, 10, 11}},
		{"single midpoint", 1, 5, 6, []int{5}},
		{"single wide", 1, 0, 10, []int{5}},
		{"none", 0, 5, 12, nil},
		{"no frames available", 3, 5, 5, []int{5}},
		{"dedup", 5, 0, 2, []int{0, 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := GenerateIndices(tt.count, tt.skip, tt.maxF)
			if len(got) != len(tt.want) {
				t.Fatalf("GenerateIndices(%d, %d, %d) = %v, want %v", tt.count, tt.skip, tt.maxF, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("GenerateIndices(%d, %d, %d) = %v, want %v", tt.count, tt.skip, tt.maxF, got, tt.want)
				}
			}
		})
	}
}

func TestGenerateIndices_properties(t *testing.T) {
	for count := 1; count < 30; count++ {
		got := GenerateIndices(count, DefaultSkipFrames, DefaultSkipFrames+count)
		if len(got) > count {
			t.Fatalf("count %d: %d indices", count, len(got))
		}
		for i, idx := range got {
			if idx < DefaultSkipFrames || idx >= DefaultSkipFrames+count {
				t.Fatalf("count %d: index %d out of range", count, idx)
			}
			if i > 0 && idx <= got[i-1] {
				t.Fatalf("count %d: %v not strictly ascending", count, got)
			}
		}
	}
}

func TestQuality(t *testing.T) {
	flat := image.NewGray(image.Rect(0, 0, 8, 8))
	for i := range flat.Pix {
		flat.Pix[i] = 100
	}
	q, err := Quality(flat)
	if err != nil {
		t.Fatal(err)
	}
	if q != 0 {
		t.Errorf("flat quality = %v, want 0", q)
	}

	// Vertical stripes 0/255: variance 16256.25, interior gradient 0.
	stripes := image.NewGray(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			if x%2 == 1 {
				stripes.SetGray(x, y, color.Gray{Y: 255})
			}
		}
	}
	q, err = Quality(stripes)
	if err != nil {
		t.Fatal(err)
	}
	if want := 0.7 * 16256.25; math.Abs(q-want) > 1e-9 {
		t.Errorf("stripes quality = %v, want %v", q, want)
	}

	// Horizontal ramp: every interior gradient is 2*10.
	ramp := image.NewGray(image.Rect(0, 0, 5, 3))
	for y := 0; y < 3; y++ {
		for x := 0; x < 5; x++ {
			ramp.SetGray(x, y, color.Gray{Y: uint8(10 * x)})
		}
	}
	q, _ = Quality(ramp)
	if want := 0.7*200 + 0.3*20; math.Abs(q-want) > 1e-9 {
		t.Errorf("ramp quality = %v, want %v", q, want)
	}

	if _, err := Quality(image.NewGray(image.Rect(0, 0, 0, 0))); !errors.Is(err, watermark.ErrProcessing) {
		t.Errorf("empty frame err = %v, want ErrProcessing", err)
	}
}

// watermarkedFrame returns a gently textured 64x64 frame whose red channel
// carries text.
func watermarkedFrame(t *testing.T, rng *rand.Rand, text string) image.Image {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			v := uint8(100 + x + rng.Intn(20))
			img.SetNRGBA(x, y, color.NRGBA{R: v, G: v, B: v, A: 255})
		}
	}
	p := raster.Split(img)
	r, err := watermark.NewBlockCodec().Embed(p.R, watermark.StringToBits(text), 0.5)
	if err != nil {
		t.Fatal(err)
	}
	p.R = r
	return p.Image()
}

func TestVoter_Extract(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	frames := make(SliceSource, 12)
	for i := range frames {
		frames[i] = watermarkedFrame(t, rng, "Hi")
	}
	// A frame that fails to decode is dropped.
	broken := FrameSourceFunc(func(ctx context.Context, index int) (image.Image, error) {
		if index == 8 {
			return nil, errors.New("decoder crashed")
		}
		return frames.Frame(ctx, index)
	})

	v := NewVoter(DefaultConfig())
	res, err := v.Extract(context.Background(), broken, 16)
	if err != nil {
		t.Fatal(err)
	}
	if res.Text != "Hi" {
		t.Errorf("text = %q, want Hi", res.Text)
	}
	if res.Confidence != 1 || res.LowConfidence {
		t.Errorf("confidence = %v low=%v, want 1 false", res.Confidence, res.LowConfidence)
	}
	if res.FramesUsed != 6 || len(res.Frames) != 7 {
		t.Errorf("used %d of %d frames, want 6 of 7", res.FramesUsed, len(res.Frames))
	}
	for _, fr := range res.Frames {
		if fr.Index == 8 && fr.Error == "" {
			t.Error("frame 8 should report its error")
		}
	}
}

func TestVoter_lowConfidence(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	frames := make(SliceSource, 12)
	for i := range frames {
		text := "Hi"
		if i%3 == 0 {
			text = "Hk"
		}
		frames[i] = watermarkedFrame(t, rng, text)
	}
	v := NewVoter(Config{SampleFrames: 7, SkipFrames: 5, ConfidenceThreshold: 0.99})
	res, err := v.Extract(context.Background(), frames, 16)
	if err != nil {
		t.Fatal(err)
	}
	if res.Text != "Hi" {
		t.Errorf("text = %q, want majority Hi", res.Text)
	}
	if res.Confidence >= 1 || !res.LowConfidence {
		t.Errorf("confidence = %v low=%v, want < 1 and flagged", res.Confidence, res.LowConfidence)
	}
}

func TestVoter_mixedFramesDecodeLossily(t *testing.T) {
	// Every frame is valid UTF-8 on its own; the weighted vote mixes them
	// into 0x61 0xE3 0x61, which is not.
	texts := []string{"éa", "éa", "aé", "aé", "abc", "abc", "abc"}
	frames := make(SliceSource, len(texts))
	for i, text := range texts {
		frames[i] = watermarkedFrame(t, rand.New(rand.NewSource(4)), text)
	}
	v := NewVoter(Config{SampleFrames: len(texts), SkipFrames: 0})
	res, err := v.Extract(context.Background(), frames, 24)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if !res.Lossy || !res.LowConfidence {
		t.Errorf("lossy=%v low=%v, want both set", res.Lossy, res.LowConfidence)
	}
	if res.Text != "a\uFFFDa" {
		t.Errorf("text = %q, want %q", res.Text, "a\uFFFDa")
	}
	if res.FramesUsed != len(texts) {
		t.Errorf("used %d frames, want %d", res.FramesUsed, len(texts))
	}
}

func TestVoter_allFramesFail(t *testing.T) {
	v := NewVoter(DefaultConfig())
	_, err := v.Extract(context.Background(), SliceSource(nil), 16)
	if !errors.Is(err, watermark.ErrProcessing) {
		t.Errorf("err = %v, want ErrProcessing", err)
	}
}

func TestVoter_invalidBitCount(t *testing.T) {
	v := NewVoter(DefaultConfig())
	if _, err := v.Extract(context.Background(), SliceSource(nil), 12); !errors.Is(err, watermark.ErrInvalidArgument) {
		t.Errorf("err = %v, want ErrInvalidArgument", err)
	}
}

func TestVoter_canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	v := NewVoter(DefaultConfig())
	if _, err := v.Extract(ctx, SliceSource(nil), 8); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}
