// Package kv is a small key-value store with hierarchical keys, used to
// persist the embed registry.
//
// Keys are string slices such as Key{"embed", "by-digest", "ab12..."} and
// are stored joined by a separator (':' by default). [Badger] persists to
// disk; [Memory] is for tests and dry runs.
package kv

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"
)

var (
	// ErrNotFound is returned when a key does not exist in the store.
	ErrNotFound = errors.New("kv: not found")

	// ErrInvalidKey is returned for empty keys or segments containing the
	// separator.
	ErrInvalidKey = errors.New("kv: invalid key")
)

// Key is a hierarchical path.
type Key []string

func (k Key) String() string {
	return strings.Join(k, string(DefaultSeparator))
}

// Entry is a key-value pair.
type Entry struct {
	Key   Key
	Value []byte
}

// Store is a key-value store with path-based keys.
type Store interface {
	// Get returns ErrNotFound if the key is not present.
	Get(ctx context.Context, key Key) ([]byte, error)

	Set(ctx context.Context, key Key, value []byte) error

	// Delete is a no-op for missing keys.
	Delete(ctx context.Context, key Key) error

	// List yields entries under prefix in lexicographic key order. An
	// empty prefix lists everything.
	List(ctx context.Context, prefix Key) iter.Seq2[Entry, error]

	// BatchSet stores all entries atomically.
	BatchSet(ctx context.Context, entries []Entry) error

	// BatchDelete removes all keys atomically.
	BatchDelete(ctx context.Context, keys []Key) error

	Close() error
}

// DefaultSeparator joins key segments.
const DefaultSeparator byte = ':'

// Options configures key encoding.
type Options struct {
	Separator byte
}

func (o *Options) sep() byte {
	if o != nil && o.Separator != 0 {
		return o.Separator
	}
	return DefaultSeparator
}

// encode joins k with the separator. Segments containing the separator
// would not decode back to the same key and are rejected.
func (o *Options) encode(k Key) ([]byte, error) {
	if len(k) == 0 {
		return nil, fmt.Errorf("%w: empty key", ErrInvalidKey)
	}
	return o.encodePrefix(k)
}

func (o *Options) encodePrefix(k Key) ([]byte, error) {
	s := o.sep()
	var b []byte
	for i, seg := range k {
		if strings.IndexByte(seg, s) >= 0 {
			return nil, fmt.Errorf("%w: segment %q contains %q", ErrInvalidKey, seg, s)
		}
		if i > 0 {
			b = append(b, s)
		}
		b = append(b, seg...)
	}
	return b, nil
}

// scanPrefix returns the byte prefix matched by List. A trailing separator
// keeps "a:b" from matching "a:bc".
func (o *Options) scanPrefix(prefix Key) ([]byte, error) {
	if len(prefix) == 0 {
		return nil, nil
	}
	p, err := o.encodePrefix(prefix)
	if err != nil {
		return nil, err
	}
	return append(p, o.sep()), nil
}

func (o *Options) decode(b []byte) Key {
	return Key(strings.Split(string(b), string(o.sep())))
}
