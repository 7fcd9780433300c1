package commands

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/haivivi/mediaseal/pkg/cli"
	"github.com/haivivi/mediaseal/pkg/framevote"
	"github.com/haivivi/mediaseal/pkg/kv"
	"github.com/haivivi/mediaseal/pkg/media"
	"github.com/haivivi/mediaseal/pkg/registry"
	"github.com/haivivi/mediaseal/pkg/storage"
	"github.com/haivivi/mediaseal/pkg/watermark"
)

// request is the shape of a -f request file. Positional arguments and
// explicitly set flags override its fields.
type request struct {
	Input     string   `json:"input,omitempty" yaml:"input,omitempty"`
	Output    string   `json:"output,omitempty" yaml:"output,omitempty"`
	Text      string   `json:"text,omitempty" yaml:"text,omitempty"`
	Length    int      `json:"length,omitempty" yaml:"length,omitempty"`
	Algorithm string   `json:"algorithm,omitempty" yaml:"algorithm,omitempty"`
	Strength  *float64 `json:"strength,omitempty" yaml:"strength,omitempty"`
	Mode      string   `json:"mode,omitempty" yaml:"mode,omitempty"`
	Lossless  bool     `json:"lossless,omitempty" yaml:"lossless,omitempty"`
	Tag       string   `json:"tag,omitempty" yaml:"tag,omitempty"`

	SampleFrames        int     `json:"sample_frames,omitempty" yaml:"sample_frames,omitempty"`
	SkipFrames          *int    `json:"skip_frames,omitempty" yaml:"skip_frames,omitempty"`
	ConfidenceThreshold float64 `json:"confidence_threshold,omitempty" yaml:"confidence_threshold,omitempty"`
}

// mediaFlags holds the flag values of one media command.
type mediaFlags struct {
	text                string
	length              int
	algorithm           string
	strength            float64
	mode                string
	lossless            bool
	tag                 string
	sampleFrames        int
	skipFrames          int
	confidenceThreshold float64
	noRegistry          bool
}

func addAlgorithmFlags(cmd *cobra.Command, f *mediaFlags) {
	cmd.Flags().StringVarP(&f.algorithm, "algorithm", "a", "", "watermark algorithm: dct or dwt (default dct)")
	cmd.Flags().StringVar(&f.mode, "mode", "", "video carrier: video, audio or both (default video)")
}

func addSamplingFlags(cmd *cobra.Command, f *mediaFlags) {
	cmd.Flags().IntVarP(&f.length, "length", "l", 0, "payload length in bytes (default: looked up in the registry)")
	cmd.Flags().IntVar(&f.sampleFrames, "sample-frames", 0, fmt.Sprintf("video frames to vote over (default %d)", framevote.DefaultSampleFrames))
	cmd.Flags().IntVar(&f.skipFrames, "skip-frames", 0, fmt.Sprintf("leading video frames to skip (default %d)", framevote.DefaultSkipFrames))
	cmd.Flags().Float64Var(&f.confidenceThreshold, "confidence-threshold", 0, fmt.Sprintf("warn below this vote confidence (default %g)", framevote.DefaultConfidenceThreshold))
}

// loadRequest builds the request of a media command from -f, positional
// args and the flags set on the command line, in that order.
func loadRequest(cmd *cobra.Command, args []string, f *mediaFlags) (*request, error) {
	req := &request{}
	if inputFile != "" {
		if err := cli.LoadRequest(inputFile, req); err != nil {
			return nil, err
		}
	}
	if len(args) > 0 {
		req.Input = args[0]
	}
	if len(args) > 1 {
		req.Output = args[1]
	}

	fs := cmd.Flags()
	if fs.Changed("text") {
		req.Text = f.text
	}
	if fs.Changed("length") {
		req.Length = f.length
	}
	if fs.Changed("algorithm") {
		req.Algorithm = f.algorithm
	}
	if fs.Changed("strength") {
		req.Strength = &f.strength
	}
	if fs.Changed("mode") {
		req.Mode = f.mode
	}
	if fs.Changed("lossless") {
		req.Lossless = f.lossless
	}
	if fs.Changed("tag") {
		req.Tag = f.tag
	}
	if fs.Changed("sample-frames") {
		req.SampleFrames = f.sampleFrames
	}
	if fs.Changed("skip-frames") {
		skip := f.skipFrames
		req.SkipFrames = &skip
	}
	if fs.Changed("confidence-threshold") {
		req.ConfidenceThreshold = f.confidenceThreshold
	}

	if req.Input == "" {
		return nil, fmt.Errorf("%w: input is required", watermark.ErrInvalidArgument)
	}
	return req, nil
}

// resolveOptions layers the request over the context over the built-in
// defaults.
func resolveOptions(c *cli.Context, req *request) (media.Options, error) {
	opts := media.Options{
		Algorithm: watermark.KindDCT,
		Lossless:  c.Lossless || req.Lossless,
		Tag:       req.Tag,
		Sampling:  framevote.DefaultConfig(),
	}

	alg := c.Algorithm
	if req.Algorithm != "" {
		alg = req.Algorithm
	}
	if alg != "" {
		kind, err := watermark.ParseKind(alg)
		if err != nil {
			return media.Options{}, err
		}
		opts.Algorithm = kind
	}

	// A zero context strength inherits the default; a request may set zero.
	strength := media.DefaultStrength
	if c.Strength != 0 {
		strength = c.Strength
	}
	if req.Strength != nil {
		strength = *req.Strength
	}
	if strength < 0 || math.IsNaN(strength) || math.IsInf(strength, 0) {
		return media.Options{}, fmt.Errorf("%w: strength must not be negative, got %g", watermark.ErrInvalidArgument, strength)
	}
	opts.Strength = &strength

	mode, err := media.ParseVideoMode(req.Mode)
	if err != nil {
		return media.Options{}, err
	}
	opts.Mode = mode

	if c.SampleFrames > 0 {
		opts.Sampling.SampleFrames = c.SampleFrames
	}
	if req.SampleFrames > 0 {
		opts.Sampling.SampleFrames = req.SampleFrames
	}
	if c.SkipFrames > 0 {
		opts.Sampling.SkipFrames = c.SkipFrames
	}
	if req.SkipFrames != nil {
		if *req.SkipFrames < 0 {
			return media.Options{}, fmt.Errorf("%w: skip frames must not be negative", watermark.ErrInvalidArgument)
		}
		opts.Sampling.SkipFrames = *req.SkipFrames
	}
	if c.ConfidenceThreshold > 0 {
		opts.Sampling.ConfidenceThreshold = c.ConfidenceThreshold
	}
	if req.ConfidenceThreshold > 0 {
		opts.Sampling.ConfidenceThreshold = req.ConfidenceThreshold
	}
	return opts, nil
}

// newSealer returns a Sealer configured from c.
func newSealer(c *cli.Context) *media.Sealer {
	return media.New(media.NewFFmpeg(c.FFmpeg))
}

// openRegistry opens the badger-backed registry of c. The caller closes
// the returned store.
func openRegistry(c *cli.Context) (*registry.Registry, kv.Store, error) {
	dir := c.RegistryDir
	if dir == "" {
		paths, err := cli.NewPaths(appName)
		if err != nil {
			return nil, nil, err
		}
		dir = paths.RegistryDir()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("create registry dir: %w", err)
	}
	store, err := kv.NewBadger(kv.BadgerOptions{Dir: dir})
	if err != nil {
		return nil, nil, fmt.Errorf("open registry: %w", err)
	}
	return registry.New(store), store, nil
}

// stager moves inputs and outputs through a local working directory,
// fetching and publishing s3:// locations.
type stager struct {
	c     *cli.Context
	dir   string
	cache map[string]storage.FileStore
}

func newStager(c *cli.Context) *stager {
	return &stager{c: c, cache: make(map[string]storage.FileStore)}
}

func (s *stager) workDir() (string, error) {
	if s.dir != "" {
		return s.dir, nil
	}
	base := ""
	if paths, err := cli.NewPaths(appName); err == nil {
		if err := paths.EnsureCacheDir(); err == nil {
			base = paths.CacheDir()
		}
	}
	dir, err := os.MkdirTemp(base, "stage-*")
	if err != nil {
		return "", fmt.Errorf("create staging dir: %w", err)
	}
	s.dir = dir
	return dir, nil
}

func (s *stager) bucket(name string) (storage.FileStore, error) {
	if st, ok := s.cache[name]; ok {
		return st, nil
	}
	var cfg storage.S3Config
	if s.c.S3 != nil {
		cfg = *s.c.S3
	}
	client, err := storage.NewS3Client(cfg)
	if err != nil {
		return nil, err
	}
	st := storage.NewS3(client, name, "")
	s.cache[name] = st
	return st, nil
}

// input returns a local path for uri, downloading remote objects.
func (s *stager) input(ctx context.Context, uri string) (string, error) {
	loc, err := storage.ParseLocation(uri)
	if err != nil {
		return "", err
	}
	if !loc.IsRemote() {
		return loc.Path, nil
	}
	st, err := s.bucket(loc.Bucket)
	if err != nil {
		return "", err
	}
	dir, err := s.workDir()
	if err != nil {
		return "", err
	}
	local := filepath.Join(dir, "in-"+loc.Base())
	if err := storage.Fetch(ctx, st, loc.Path, local); err != nil {
		return "", fmt.Errorf("fetch %s: %w", loc, err)
	}
	return local, nil
}

// output returns a staging path to write uri to, and a publish step that
// moves it into place. Local outputs are renamed in atomically; remote ones
// are uploaded.
func (s *stager) output(uri string) (string, func(context.Context) error, error) {
	loc, err := storage.ParseLocation(uri)
	if err != nil {
		return "", nil, err
	}
	var (
		st   storage.FileStore
		path = loc.Path
	)
	if loc.IsRemote() {
		st, err = s.bucket(loc.Bucket)
	} else {
		st, err = storage.NewLocal(filepath.Dir(loc.Path))
		path = loc.Base()
	}
	if err != nil {
		return "", nil, err
	}
	dir, err := s.workDir()
	if err != nil {
		return "", nil, err
	}
	local := filepath.Join(dir, "out-"+loc.Base())
	publish := func(ctx context.Context) error {
		if err := storage.Publish(ctx, st, local, path); err != nil {
			return fmt.Errorf("publish %s: %w", loc, err)
		}
		return nil
	}
	return local, publish, nil
}

// Close removes staged files.
func (s *stager) Close() error {
	if s.dir == "" {
		return nil
	}
	return os.RemoveAll(s.dir)
}

// outputResult prints result in the --format to stdout or the -o file.
// With --json the result is wrapped in a success status line instead.
func outputResult(cmd *cobra.Command, result any, output string) error {
	if isJSONOutput() {
		status := cli.SuccessStatus(actionName(cmd), output, result)
		if outputFile != "" {
			f, err := os.Create(outputFile)
			if err != nil {
				return fmt.Errorf("failed to create output file: %w", err)
			}
			if err := cli.WriteStatus(f, status); err != nil {
				f.Close()
				return err
			}
			return f.Close()
		}
		return cli.WriteStatus(cmd.OutOrStdout(), status)
	}
	format, err := cli.ParseOutputFormat(outputFormat)
	if err != nil {
		return err
	}
	opts := cli.OutputOptions{Format: format, File: outputFile}
	if outputFile == "" {
		opts.Writer = cmd.OutOrStdout()
	}
	return cli.Output(result, opts)
}

// isJSONOutput returns whether output should be JSON
func isJSONOutput() bool {
	return outputJSON
}

// fileExists reports whether path names an existing file.
func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
