// Package registry remembers what was embedded where.
//
// Every successful embed stores a [Record] keyed by time and indexed by ID
// and by the SHA-256 digest of the watermarked output. Extraction uses the
// digest index to recover the payload length when the caller does not pass
// one.
//
// Key layout under the registry prefix:
//
//	{prefix}:rec:{ts_ns}:{id}  -> msgpack Record
//	{prefix}:id:{id}            -> ts_ns
//	{prefix}:sha:{digest}       -> id
//
// Timestamps are zero padded so lexicographic order is chronological.
package registry

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/haivivi/mediaseal/pkg/kv"
)

// ErrNotFound is returned when no record matches.
var ErrNotFound = errors.New("registry: not found")

// Record describes one embed operation.
type Record struct {
	ID        string  `json:"id" yaml:"id" msgpack:"id"`
	Timestamp int64   `json:"ts" yaml:"ts" msgpack:"ts"`
	Media     string  `json:"media" yaml:"media" msgpack:"media"`
	Mode      string  `json:"mode,omitempty" yaml:"mode,omitempty" msgpack:"mode,omitempty"`
	Algorithm string  `json:"algorithm" yaml:"algorithm" msgpack:"algorithm"`
	Strength  float64 `json:"strength" yaml:"strength" msgpack:"strength"`
	Payload   string  `json:"payload" yaml:"payload" msgpack:"payload"`
	BitLength int     `json:"bit_length" yaml:"bit_length" msgpack:"bits"`
	Source    string  `json:"source" yaml:"source" msgpack:"src"`
	Output    string  `json:"output" yaml:"output" msgpack:"out"`
	Digest    string  `json:"digest" yaml:"digest" msgpack:"sha"`
	Lossless  bool    `json:"lossless,omitempty" yaml:"lossless,omitempty" msgpack:"lossless,omitempty"`
}

// Time returns the creation time.
func (r *Record) Time() time.Time {
	return time.Unix(0, r.Timestamp)
}

// PayloadLength returns the payload length in characters as the CLI
// counts it (bytes of UTF-8).
func (r *Record) PayloadLength() int {
	return r.BitLength / 8
}

// DefaultPrefix is the key prefix used by New.
var DefaultPrefix = kv.Key{"mediaseal", "v1"}

// Registry stores embed records in a kv.Store.
type Registry struct {
	store  kv.Store
	prefix kv.Key
	now    func() time.Time
}

// New creates a Registry under DefaultPrefix.
func New(store kv.Store) *Registry {
	return NewWithPrefix(store, DefaultPrefix)
}

// NewWithPrefix creates a Registry whose keys live under prefix.
func NewWithPrefix(store kv.Store, prefix kv.Key) *Registry {
	return &Registry{store: store, prefix: slices.Clone(prefix), now: time.Now}
}

func (r *Registry) key(parts ...string) kv.Key {
	k := make(kv.Key, 0, len(r.prefix)+len(parts))
	k = append(k, r.prefix...)
	return append(k, parts...)
}

func tsString(ts int64) string {
	return fmt.Sprintf("%020d", ts)
}

// Add assigns rec an ID and timestamp, stores it, and returns the stored
// copy. A record for an already registered digest replaces the digest
// index entry.
func (r *Registry) Add(ctx context.Context, rec Record) (Record, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Timestamp == 0 {
		rec.Timestamp = r.now().UnixNano()
	}
	data, err := msgpack.Marshal(&rec)
	if err != nil {
		return Record{}, fmt.Errorf("registry: encode: %w", err)
	}

	ts := tsString(rec.Timestamp)
	entries := []kv.Entry{
		{Key: r.key("rec", ts, rec.ID), Value: data},
		{Key: r.key("id", rec.ID), Value: []byte(ts)},
	}
	if rec.Digest != "" {
		entries = append(entries, kv.Entry{Key: r.key("sha", rec.Digest), Value: []byte(rec.ID)})
	}
	if err := r.store.BatchSet(ctx, entries); err != nil {
		return Record{}, fmt.Errorf("registry: store: %w", err)
	}
	return rec, nil
}

// Get returns the record with the given ID.
func (r *Registry) Get(ctx context.Context, id string) (*Record, error) {
	ts, err := r.store.Get(ctx, r.key("id", id))
	if errors.Is(err, kv.ErrNotFound) {
		return nil, fmt.Errorf("%w: id %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return r.load(ctx, string(ts), id)
}

// FindByDigest returns the most recent record whose output had digest.
func (r *Registry) FindByDigest(ctx context.Context, digest string) (*Record, error) {
	id, err := r.store.Get(ctx, r.key("sha", digest))
	if errors.Is(err, kv.ErrNotFound) {
		return nil, fmt.Errorf("%w: digest %s", ErrNotFound, digest)
	}
	if err != nil {
		return nil, err
	}
	return r.Get(ctx, string(id))
}

// FindByFile hashes path and looks the digest up.
func (r *Registry) FindByFile(ctx context.Context, path string) (*Record, error) {
	digest, err := FileDigest(path)
	if err != nil {
		return nil, err
	}
	return r.FindByDigest(ctx, digest)
}

func (r *Registry) load(ctx context.Context, ts, id string) (*Record, error) {
	data, err := r.store.Get(ctx, r.key("rec", ts, id))
	if errors.Is(err, kv.ErrNotFound) {
		return nil, fmt.Errorf("%w: record %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	var rec Record
	if err := msgpack.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("registry: decode %s: %w", id, err)
	}
	return &rec, nil
}

// List returns up to limit records, newest first. A non-positive limit
// returns all records. Malformed entries are skipped.
func (r *Registry) List(ctx context.Context, limit int) ([]Record, error) {
	var all []Record
	for entry, err := range r.store.List(ctx, r.key("rec")) {
		if err != nil {
			return nil, err
		}
		var rec Record
		if err := msgpack.Unmarshal(entry.Value, &rec); err != nil {
			continue
		}
		all = append(all, rec)
	}
	slices.Reverse(all)
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

// Delete removes the record and its index entries.
func (r *Registry) Delete(ctx context.Context, id string) error {
	rec, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	keys := []kv.Key{
		r.key("rec", tsString(rec.Timestamp), rec.ID),
		r.key("id", rec.ID),
	}
	if rec.Digest != "" {
		// Only drop the digest index if it still points at this record.
		owner, err := r.store.Get(ctx, r.key("sha", rec.Digest))
		if err == nil && string(owner) == rec.ID {
			keys = append(keys, r.key("sha", rec.Digest))
		}
	}
	return r.store.BatchDelete(ctx, keys)
}

// FileDigest returns the hex SHA-256 of the file at path.
func FileDigest(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("registry: hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
