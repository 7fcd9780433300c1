package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/goccy/go-yaml"

	"github.com/haivivi/mediaseal/pkg/storage"
)

const (
	// DefaultBaseDir is the base configuration directory name.
	DefaultBaseDir = ".mediaseal"
	// DefaultConfigFile is the default configuration filename.
	DefaultConfigFile = "config.yaml"
)

// Config is the on-disk configuration of a CLI app.
type Config struct {
	AppName        string              `yaml:"-"`
	CurrentContext string              `yaml:"current_context,omitempty"`
	Contexts       map[string]*Context `yaml:"contexts,omitempty"`

	configPath string
}

// Context is a named set of defaults. Zero values mean "use the built-in
// default".
type Context struct {
	Name string `yaml:"name"`

	Algorithm           string  `yaml:"algorithm,omitempty"`
	Strength            float64 `yaml:"strength,omitempty"`
	SampleFrames        int     `yaml:"sample_frames,omitempty"`
	SkipFrames          int     `yaml:"skip_frames,omitempty"`
	ConfidenceThreshold float64 `yaml:"confidence_threshold,omitempty"`
	Lossless            bool    `yaml:"lossless,omitempty"`

	// FFmpeg is the ffmpeg binary; empty means "ffmpeg" on PATH.
	FFmpeg string `yaml:"ffmpeg,omitempty"`

	// RegistryDir overrides the registry location.
	RegistryDir string `yaml:"registry_dir,omitempty"`

	S3 *storage.S3Config `yaml:"s3,omitempty"`
}

// ContextKeys lists the keys accepted by Context.Set.
var ContextKeys = []string{
	"algorithm", "strength", "sample_frames", "skip_frames",
	"confidence_threshold", "lossless", "ffmpeg", "registry_dir",
	"s3.region", "s3.endpoint", "s3.use_path_style", "s3.access_key", "s3.secret_key",
}

// LoadConfig loads or creates configuration for the specified app.
func LoadConfig(appName string) (*Config, error) {
	return LoadConfigWithPath(appName, "")
}

// LoadConfigWithPath loads configuration from customPath, or from the
// default location when customPath is empty. A missing file yields an
// empty configuration that is written on first Save.
func LoadConfigWithPath(appName, customPath string) (*Config, error) {
	configPath := customPath
	if configPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		configPath = filepath.Join(home, DefaultBaseDir, appName, DefaultConfigFile)
	}

	cfg := &Config{
		AppName:    appName,
		Contexts:   make(map[string]*Context),
		configPath: configPath,
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.Contexts == nil {
		cfg.Contexts = make(map[string]*Context)
	}
	for name, c := range cfg.Contexts {
		c.Name = name
	}
	cfg.AppName = appName
	cfg.configPath = configPath
	return cfg, nil
}

// Save writes the configuration to disk, creating the directory.
func (c *Config) Save() error {
	if err := os.MkdirAll(filepath.Dir(c.configPath), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(c.configPath, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Path returns the config file path.
func (c *Config) Path() string { return c.configPath }

// Dir returns the config directory path.
func (c *Config) Dir() string { return filepath.Dir(c.configPath) }

// AddContext adds or replaces a context.
func (c *Config) AddContext(name string, ctx *Context) error {
	if name == "" {
		return fmt.Errorf("context name is required")
	}
	ctx.Name = name
	c.Contexts[name] = ctx
	if c.CurrentContext == "" {
		c.CurrentContext = name
	}
	return c.Save()
}

// DeleteContext removes a context.
func (c *Config) DeleteContext(name string) error {
	if _, ok := c.Contexts[name]; !ok {
		return fmt.Errorf("context %q not found", name)
	}
	delete(c.Contexts, name)
	if c.CurrentContext == name {
		c.CurrentContext = ""
	}
	return c.Save()
}

// UseContext sets the current context.
func (c *Config) UseContext(name string) error {
	if _, ok := c.Contexts[name]; !ok {
		return fmt.Errorf("context %q not found", name)
	}
	c.CurrentContext = name
	return c.Save()
}

// GetContext returns a specific context.
func (c *Config) GetContext(name string) (*Context, error) {
	ctx, ok := c.Contexts[name]
	if !ok {
		return nil, fmt.Errorf("context %q not found", name)
	}
	return ctx, nil
}

// ResolveContext returns the named context, the current context when name
// is empty, or an empty context when nothing is configured.
func (c *Config) ResolveContext(name string) (*Context, error) {
	if name != "" {
		return c.GetContext(name)
	}
	if c.CurrentContext == "" {
		return &Context{}, nil
	}
	return c.GetContext(c.CurrentContext)
}

// ListContexts returns all context names, sorted.
func (c *Config) ListContexts() []string {
	names := make([]string, 0, len(c.Contexts))
	for name := range c.Contexts {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Set assigns a value by its YAML key. See ContextKeys.
func (ctx *Context) Set(key, value string) error {
	var err error
	switch key {
	case "algorithm":
		ctx.Algorithm = value
	case "strength":
		ctx.Strength, err = strconv.ParseFloat(value, 64)
	case "sample_frames":
		ctx.SampleFrames, err = strconv.Atoi(value)
	case "skip_frames":
		ctx.SkipFrames, err = strconv.Atoi(value)
	case "confidence_threshold":
		ctx.ConfidenceThreshold, err = strconv.ParseFloat(value, 64)
	case "lossless":
		ctx.Lossless, err = strconv.ParseBool(value)
	case "ffmpeg":
		ctx.FFmpeg = value
	case "registry_dir":
		ctx.RegistryDir = value
	default:
		sub, ok := strings.CutPrefix(key, "s3.")
		if !ok {
			return fmt.Errorf("unknown key %q (valid: %s)", key, strings.Join(ContextKeys, ", "))
		}
		return ctx.setS3(sub, value)
	}
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	return nil
}

func (ctx *Context) setS3(key, value string) error {
	if ctx.S3 == nil {
		ctx.S3 = &storage.S3Config{}
	}
	switch key {
	case "region":
		ctx.S3.Region = value
	case "endpoint":
		ctx.S3.Endpoint = value
	case "use_path_style":
		v, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid value for s3.use_path_style: %w", err)
		}
		ctx.S3.UsePathStyle = v
	case "access_key":
		ctx.S3.AccessKey = value
	case "secret_key":
		ctx.S3.SecretKey = value
	default:
		return fmt.Errorf("unknown key %q", "s3."+key)
	}
	return nil
}

// Masked returns a copy safe for display.
func (ctx *Context) Masked() *Context {
	cp := *ctx
	if ctx.S3 != nil {
		s3 := *ctx.S3
		s3.AccessKey = MaskSecret(s3.AccessKey)
		s3.SecretKey = MaskSecret(s3.SecretKey)
		cp.S3 = &s3
	}
	return &cp
}

// MaskSecret masks all but the first and last four characters.
func MaskSecret(key string) string {
	if len(key) <= 8 {
		return strings.Repeat("*", len(key))
	}
	return key[:4] + strings.Repeat("*", len(key)-8) + key[len(key)-4:]
}
