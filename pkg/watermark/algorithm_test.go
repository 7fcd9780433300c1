package watermark

import (
	"errors"
	"testing"
)

func TestParseKind(t *testing.T) {
	for in, want := range map[string]Kind{"dct": KindDCT, "DWT": KindDWT, " Dct ": KindDCT} {
		got, err := ParseKind(in)
		if err != nil || got != want {
			t.Errorf("ParseKind(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := ParseKind("lsb"); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("ParseKind(lsb) err = %v, want ErrUnsupportedFormat", err)
	}
}

func TestNew(t *testing.T) {
	for _, kind := range Kinds {
		alg, err := New(kind)
		if err != nil {
			t.Fatalf("New(%s): %v", kind, err)
		}
		if alg.Kind() != kind {
			t.Errorf("New(%s).Kind() = %s", kind, alg.Kind())
		}
	}
	if _, err := New("lsb"); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("New(lsb) err = %v, want ErrUnsupportedFormat", err)
	}
}

func TestAlgorithm_audioGridRoundTrip(t *testing.T) {
	samples := make([]float64, 5000)
	for i := range samples {
		samples[i] = 0.3 * float64(i%50-25) / 25
	}
	bits := StringToBits("Hi")
	for _, kind := range Kinds {
		alg, _ := New(kind)
		g := ToGrid(samples, DefaultBlockSize, alg.PadMode())
		out, err := alg.Embed(g, bits, 0.5)
		if err != nil {
			t.Fatalf("%s: Embed: %v", kind, err)
		}
		flat := FromGrid(out, len(samples), RangeAudio)
		got, err := alg.Extract(ToGrid(flat, DefaultBlockSize, alg.PadMode()), len(bits))
		if err != nil {
			t.Fatalf("%s: Extract: %v", kind, err)
		}
		text, err := BitsToString(got)
		if err != nil || text != "Hi" {
			t.Errorf("%s: got %q, %v; want Hi", kind, text, err)
		}
	}
}
