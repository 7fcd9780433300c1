package cli

import (
	"os"
	"path/filepath"
)

// Paths describes the per-app directory layout under ~/.mediaseal.
type Paths struct {
	AppName string
	HomeDir string
}

// NewPaths creates a Paths for appName rooted at the user's home.
func NewPaths(appName string) (*Paths, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}
	return &Paths{AppName: appName, HomeDir: home}, nil
}

// BaseDir returns ~/.mediaseal.
func (p *Paths) BaseDir() string {
	return filepath.Join(p.HomeDir, DefaultBaseDir)
}

// AppDir returns ~/.mediaseal/<app>.
func (p *Paths) AppDir() string {
	return filepath.Join(p.BaseDir(), p.AppName)
}

// ConfigFile returns ~/.mediaseal/<app>/config.yaml.
func (p *Paths) ConfigFile() string {
	return filepath.Join(p.AppDir(), DefaultConfigFile)
}

// DataDir returns ~/.mediaseal/<app>/data.
func (p *Paths) DataDir() string {
	return filepath.Join(p.AppDir(), "data")
}

// RegistryDir returns the default badger directory for the registry.
func (p *Paths) RegistryDir() string {
	return filepath.Join(p.DataDir(), "registry")
}

// CacheDir returns ~/.mediaseal/<app>/cache, used for staging remote
// media and ffmpeg intermediates.
func (p *Paths) CacheDir() string {
	return filepath.Join(p.AppDir(), "cache")
}

// EnsureCacheDir creates the cache directory.
func (p *Paths) EnsureCacheDir() error {
	return os.MkdirAll(p.CacheDir(), 0o755)
}

// EnsureDataDir creates the data directory.
func (p *Paths) EnsureDataDir() error {
	return os.MkdirAll(p.DataDir(), 0o755)
}
