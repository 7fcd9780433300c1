// Package storage moves media files between the local filesystem and S3
// compatible object stores.
//
// The embed and extract commands work on local files because decoders and
// ffmpeg need seekable paths. Remote inputs are staged into a temporary
// directory with [Fetch] and results are pushed back with [Publish].
package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// FileStore is a minimal interface for file-oriented storage.
//
// Paths are forward-slash separated and relative to the store root.
// Implementations must be safe for concurrent use.
type FileStore interface {
	// Read opens the named file for reading.
	// If the file does not exist, an error wrapping os.ErrNotExist is returned.
	Read(ctx context.Context, path string) (io.ReadCloser, error)

	// Write opens the named file for writing, truncating any existing
	// content. Data is committed when the writer is closed.
	Write(ctx context.Context, path string) (io.WriteCloser, error)

	// Delete removes the named file. Missing files are not an error.
	Delete(ctx context.Context, path string) error

	// Exists reports whether the named file exists.
	Exists(ctx context.Context, path string) (bool, error)
}

// Scheme identifies the backend addressed by a [Location].
type Scheme string

const (
	SchemeFile Scheme = "file"
	SchemeS3   Scheme = "s3"
)

// Location is a parsed media address.
//
//	/tmp/in.png           -> file, Path "/tmp/in.png"
//	file:///tmp/in.png    -> file, Path "/tmp/in.png"
//	s3://bucket/a/in.wav  -> s3, Bucket "bucket", Path "a/in.wav"
type Location struct {
	Scheme Scheme
	Bucket string
	Path   string
}

// ParseLocation parses a local path or URI.
func ParseLocation(uri string) (Location, error) {
	if uri == "" {
		return Location{}, fmt.Errorf("storage: empty location")
	}
	switch {
	case strings.HasPrefix(uri, "s3://"):
		rest := strings.TrimPrefix(uri, "s3://")
		bucket, key, ok := strings.Cut(rest, "/")
		if !ok || bucket == "" || key == "" {
			return Location{}, fmt.Errorf("storage: invalid s3 location %q", uri)
		}
		return Location{Scheme: SchemeS3, Bucket: bucket, Path: key}, nil
	case strings.HasPrefix(uri, "file://"):
		return Location{Scheme: SchemeFile, Path: strings.TrimPrefix(uri, "file://")}, nil
	case strings.Contains(uri, "://"):
		return Location{}, fmt.Errorf("storage: unsupported scheme in %q", uri)
	}
	return Location{Scheme: SchemeFile, Path: uri}, nil
}

// IsRemote reports whether the location needs staging.
func (l Location) IsRemote() bool { return l.Scheme == SchemeS3 }

// Ext returns the lower-cased file extension including the dot.
func (l Location) Ext() string { return strings.ToLower(filepath.Ext(l.Path)) }

// Base returns the last element of the path.
func (l Location) Base() string { return filepath.Base(filepath.FromSlash(l.Path)) }

func (l Location) String() string {
	if l.Scheme == SchemeS3 {
		return "s3://" + l.Bucket + "/" + l.Path
	}
	return l.Path
}

// Fetch copies path from store into the local file dst.
func Fetch(ctx context.Context, store FileStore, path, dst string) error {
	r, err := store.Read(ctx, path)
	if err != nil {
		return err
	}
	defer r.Close()

	f, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return fmt.Errorf("storage: fetch %s: %w", path, err)
	}
	return f.Close()
}

// Publish copies the local file src to path in store.
func Publish(ctx context.Context, store FileStore, src, path string) error {
	f, err := os.Open(src)
	if err != nil {
		return err
	}
	defer f.Close()

	w, err := store.Write(ctx, path)
	if err != nil {
		return err
	}
	if _, err := io.Copy(w, f); err != nil {
		w.Close()
		return fmt.Errorf("storage: publish %s: %w", path, err)
	}
	return w.Close()
}
