package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/haivivi/mediaseal/pkg/cli"
)

type status struct {
	Status  string          `json:"status"`
	Action  string          `json:"action"`
	Message string          `json:"message"`
	Output  string          `json:"output"`
	Result  json.RawMessage `json:"result"`
}

// setupHome points HOME at a temp dir so the registry and cache stay
// inside the test, and returns a config path there.
func setupHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	return filepath.Join(home, "config.yaml")
}

func runCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(args)
	err := ExecuteContext(context.Background())
	resetFlags(rootCmd)
	globalConfig = nil
	return out.String(), err
}

func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		f.Changed = false
		f.Value.Set(f.DefValue)
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, sub := range cmd.Commands() {
		resetFlags(sub)
	}
}

func parseStatus(t *testing.T, out string) status {
	t.Helper()
	lines := strings.Split(strings.TrimSpace(out), "\n")
	var s status
	if err := json.Unmarshal([]byte(lines[len(lines)-1]), &s); err != nil {
		t.Fatalf("status line %q: %v", out, err)
	}
	return s
}

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	rng := rand.New(rand.NewSource(7))
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{
				R: uint8(80 + rng.Intn(96)),
				G: uint8(80 + rng.Intn(96)),
				B: uint8(80 + rng.Intn(96)),
				A: 255,
			})
		}
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
}

func TestConfigCommands(t *testing.T) {
	cfg := setupHome(t)

	if _, err := runCmd(t, "--config", cfg, "config", "add-context", "dev", "-a", "dwt", "-s", "0.2"); err != nil {
		t.Fatal(err)
	}
	if _, err := runCmd(t, "--config", cfg, "config", "add-context", "prod"); err != nil {
		t.Fatal(err)
	}

	out, err := runCmd(t, "--config", cfg, "config", "list-contexts")
	if err != nil {
		t.Fatal(err)
	}
	if out != "* dev\n  prod\n" {
		t.Errorf("list-contexts = %q", out)
	}

	if _, err := runCmd(t, "--config", cfg, "config", "use-context", "prod"); err != nil {
		t.Fatal(err)
	}
	out, _ = runCmd(t, "--config", cfg, "config", "get-context")
	if strings.TrimSpace(out) != "prod" {
		t.Errorf("get-context = %q", out)
	}

	if _, err := runCmd(t, "--config", cfg, "-c", "dev", "config", "set", "s3.secret_key", "abcd1234efgh5678"); err != nil {
		t.Fatal(err)
	}
	if _, err := runCmd(t, "--config", cfg, "config", "set", "bogus", "1"); err == nil {
		t.Error("set unknown key succeeded")
	}

	out, err = runCmd(t, "--config", cfg, "config", "view")
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"algorithm: dwt", "strength: 0.2", "abcd********5678"} {
		if !strings.Contains(out, want) {
			t.Errorf("view missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "abcd1234efgh5678") {
		t.Error("view leaked the secret key")
	}

	if _, err := runCmd(t, "--config", cfg, "config", "delete-context", "prod"); err != nil {
		t.Fatal(err)
	}
	out, _ = runCmd(t, "--config", cfg, "config", "list-contexts")
	if out != "  dev\n" {
		t.Errorf("list-contexts after delete = %q", out)
	}
}

func TestEmbedExtract_image(t *testing.T) {
	cfg := setupHome(t)
	dir := t.TempDir()
	in := filepath.Join(dir, "in.png")
	out := filepath.Join(dir, "out.png")
	writePNG(t, in, 64, 64)

	stdout, err := runCmd(t, "--config", cfg, "--json", "embed", in, out, "--text", "seal")
	if err != nil {
		t.Fatal(err)
	}
	s := parseStatus(t, stdout)
	if s.Status != "success" || s.Action != "embed" || s.Output != out {
		t.Fatalf("embed status = %+v", s)
	}
	var embedded struct {
		Media    string `json:"media"`
		Bits     int    `json:"bits"`
		RecordID string `json:"record_id"`
	}
	if err := json.Unmarshal(s.Result, &embedded); err != nil {
		t.Fatal(err)
	}
	if embedded.Media != "image" || embedded.Bits != 32 || embedded.RecordID == "" {
		t.Fatalf("embed result = %+v", embedded)
	}

	// No --length: the registry supplies it.
	stdout, err = runCmd(t, "--config", cfg, "--json", "extract", out)
	if err != nil {
		t.Fatal(err)
	}
	var extracted struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(parseStatus(t, stdout).Result, &extracted); err != nil {
		t.Fatal(err)
	}
	if extracted.Text != "seal" {
		t.Errorf("extract = %+v", extracted)
	}

	stdout, err = runCmd(t, "--config", cfg, "registry", "show", out)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(stdout, "payload: seal") || !strings.Contains(stdout, embedded.RecordID) {
		t.Errorf("registry show:\n%s", stdout)
	}

	if _, err := runCmd(t, "--config", cfg, "registry", "delete", embedded.RecordID); err != nil {
		t.Fatal(err)
	}
	stdout, err = runCmd(t, "--config", cfg, "--json", "registry", "list")
	if err != nil {
		t.Fatal(err)
	}
	if s := parseStatus(t, stdout); s.Status != "success" || strings.Contains(string(s.Result), embedded.RecordID) {
		t.Errorf("registry list after delete = %+v", s)
	}
}

func TestEmbed_requestFile(t *testing.T) {
	cfg := setupHome(t)
	dir := t.TempDir()
	in := filepath.Join(dir, "in.png")
	out := filepath.Join(dir, "out.png")
	writePNG(t, in, 64, 64)
	req := filepath.Join(dir, "embed.yaml")
	body := "input: " + in + "\noutput: " + out + "\ntext: Hey\nalgorithm: dct\n"
	if err := os.WriteFile(req, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	// The flag overrides the file's algorithm.
	if _, err := runCmd(t, "--config", cfg, "-f", req, "embed", "-a", "dwt", "--no-registry"); err != nil {
		t.Fatal(err)
	}
	stdout, err := runCmd(t, "--config", cfg, "--format", "raw", "extract", out, "-l", "3", "-a", "dwt")
	if err != nil {
		t.Fatal(err)
	}
	if stdout != "Hey\n" {
		t.Errorf("extract = %q, want %q", stdout, "Hey\n")
	}

	// --no-registry left nothing to look up.
	stdout, err = runCmd(t, "--config", cfg, "extract", out)
	if err == nil {
		t.Fatal("extract without length or record succeeded")
	}
	if s := parseStatus(t, stdout); s.Status != "error" || s.Action != "extract" {
		t.Errorf("error status = %+v", s)
	}
}

func TestCapacity(t *testing.T) {
	cfg := setupHome(t)
	in := filepath.Join(t.TempDir(), "in.png")
	writePNG(t, in, 32, 24)

	stdout, err := runCmd(t, "--config", cfg, "--json", "capacity", in, "--text", "toolong")
	if err != nil {
		t.Fatal(err)
	}
	var got struct {
		Bits  int   `json:"bits"`
		Width int   `json:"width"`
		Fits  *bool `json:"fits"`
	}
	if err := json.Unmarshal(parseStatus(t, stdout).Result, &got); err != nil {
		t.Fatal(err)
	}
	if got.Bits != 12 || got.Width != 32 || got.Fits == nil || *got.Fits {
		t.Errorf("capacity = %+v", got)
	}
}

func TestOutputFile(t *testing.T) {
	cfg := setupHome(t)
	dir := t.TempDir()
	in := filepath.Join(dir, "in.png")
	writePNG(t, in, 64, 64)
	result := filepath.Join(dir, "capacity.yaml")

	stdout, err := runCmd(t, "--config", cfg, "-o", result, "capacity", in)
	if err != nil {
		t.Fatal(err)
	}
	if stdout != "" {
		t.Errorf("stdout = %q, want empty", stdout)
	}
	data, err := os.ReadFile(result)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "bits: 64") {
		t.Errorf("result file:\n%s", data)
	}
}

func TestEmbed_errors(t *testing.T) {
	cfg := setupHome(t)
	dir := t.TempDir()
	in := filepath.Join(dir, "in.png")
	writePNG(t, in, 16, 16)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"no text", []string{"embed", in, filepath.Join(dir, "a.png")}, "--text is required"},
		{"no output", []string{"embed", in, "-t", "x"}, "output is required"},
		{"bad algorithm", []string{"embed", in, filepath.Join(dir, "b.png"), "-t", "x", "-a", "lsb"}, "algorithm"},
		{"bad mode", []string{"embed", in, filepath.Join(dir, "c.png"), "-t", "x", "--mode", "subtitles"}, "video mode"},
		{"over capacity", []string{"embed", in, filepath.Join(dir, "d.png"), "-t", "far too long"}, "exceed capacity"},
		{"unknown context", []string{"-c", "nope", "embed", in, filepath.Join(dir, "e.png"), "-t", "x"}, "not found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stdout, err := runCmd(t, append([]string{"--config", cfg}, tt.args...)...)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("err = %v, want containing %q", err, tt.want)
			}
			if s := parseStatus(t, stdout); s.Status != "error" {
				t.Errorf("status = %+v", s)
			}
		})
	}
}

func TestActionName(t *testing.T) {
	if got := actionName(registryListCmd); got != "registry list" {
		t.Errorf("actionName = %q", got)
	}
	if got := actionName(rootCmd); got != appName {
		t.Errorf("actionName(root) = %q", got)
	}
}

func TestStager_localOutput(t *testing.T) {
	setupHome(t)
	target := filepath.Join(t.TempDir(), "nested", "out.wav")

	st := newStager(&cli.Context{})
	local, publish, err := st.output(target)
	if err != nil {
		t.Fatal(err)
	}
	if local == target || filepath.Ext(local) != ".wav" {
		t.Fatalf("staging path = %q", local)
	}
	if err := os.WriteFile(local, []byte("RIFF"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(target); !os.IsNotExist(err) {
		t.Fatalf("target exists before publish: %v", err)
	}
	if err := publish(context.Background()); err != nil {
		t.Fatal(err)
	}
	if data, err := os.ReadFile(target); err != nil || string(data) != "RIFF" {
		t.Fatalf("published %q, %v", data, err)
	}

	if err := st.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(local); !os.IsNotExist(err) {
		t.Errorf("staging file survived Close: %v", err)
	}

	in, err := st.input(context.Background(), target)
	if err != nil || in != target {
		t.Errorf("input = %q, %v; want the local path unchanged", in, err)
	}
}
