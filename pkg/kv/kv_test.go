package kv_test

import (
	"context"
	"errors"
	"path/filepath"
	"slices"
	"testing"

	"github.com/haivivi/mediaseal/pkg/kv"
)

type backend struct {
	name string
	open func(t *testing.T, opts *kv.Options) kv.Store
}

var backends = []backend{
	{"memory", func(t *testing.T, opts *kv.Options) kv.Store {
		s := kv.NewMemory(opts)
		t.Cleanup(func() { s.Close() })
		return s
	}},
	{"badger", func(t *testing.T, opts *kv.Options) kv.Store {
		s, err := kv.NewBadger(kv.BadgerOptions{Options: opts, InMemory: true})
		if err != nil {
			t.Fatalf("NewBadger: %v", err)
		}
		t.Cleanup(func() { s.Close() })
		return s
	}},
}

func eachBackend(t *testing.T, fn func(t *testing.T, s kv.Store)) {
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) { fn(t, b.open(t, nil)) })
	}
}

func collect(t *testing.T, s kv.Store, prefix kv.Key) []string {
	t.Helper()
	var keys []string
	for e, err := range s.List(context.Background(), prefix) {
		if err != nil {
			t.Fatalf("List(%v): %v", prefix, err)
		}
		keys = append(keys, e.Key.String())
	}
	return keys
}

func TestGetSetDelete(t *testing.T) {
	eachBackend(t, func(t *testing.T, s kv.Store) {
		ctx := context.Background()
		key := kv.Key{"embed", "rec", "0001"}

		if _, err := s.Get(ctx, key); !errors.Is(err, kv.ErrNotFound) {
			t.Fatalf("Get missing = %v, want ErrNotFound", err)
		}
		if err := s.Set(ctx, key, []byte("v1")); err != nil {
			t.Fatal(err)
		}
		if err := s.Set(ctx, key, []byte("v2")); err != nil {
			t.Fatal(err)
		}
		got, err := s.Get(ctx, key)
		if err != nil || string(got) != "v2" {
			t.Fatalf("Get = %q, %v; want v2", got, err)
		}

		got[0] = 'X'
		again, _ := s.Get(ctx, key)
		if string(again) != "v2" {
			t.Fatal("Get must return a copy")
		}

		if err := s.Delete(ctx, key); err != nil {
			t.Fatal(err)
		}
		if err := s.Delete(ctx, key); err != nil {
			t.Fatalf("second Delete: %v", err)
		}
		if _, err := s.Get(ctx, key); !errors.Is(err, kv.ErrNotFound) {
			t.Fatalf("Get after delete = %v", err)
		}
	})
}

func TestList(t *testing.T) {
	eachBackend(t, func(t *testing.T, s kv.Store) {
		ctx := context.Background()
		entries := []kv.Entry{
			{Key: kv.Key{"a", "b", "2"}, Value: []byte("2")},
			{Key: kv.Key{"a", "b", "1"}, Value: []byte("1")},
			{Key: kv.Key{"a", "bc", "1"}, Value: []byte("x")},
			{Key: kv.Key{"z"}, Value: []byte("z")},
		}
		if err := s.BatchSet(ctx, entries); err != nil {
			t.Fatal(err)
		}

		tests := []struct {
			prefix kv.Key
			want   []string
		}{
			{kv.Key{"a", "b"}, []string{"a:b:1", "a:b:2"}},
			{kv.Key{"a"}, []string{"a:b:1", "a:b:2", "a:bc:1"}},
			{nil, []string{"a:b:1", "a:b:2", "a:bc:1", "z"}},
			{kv.Key{"missing"}, nil},
		}
		for _, tt := range tests {
			if got := collect(t, s, tt.prefix); !slices.Equal(got, tt.want) {
				t.Errorf("List(%v) = %v, want %v", tt.prefix, got, tt.want)
			}
		}

		n := 0
		for range s.List(ctx, nil) {
			n++
			break
		}
		if n != 1 {
			t.Errorf("early break yielded %d entries", n)
		}
	})
}

func TestBatchDelete(t *testing.T) {
	eachBackend(t, func(t *testing.T, s kv.Store) {
		ctx := context.Background()
		s.BatchSet(ctx, []kv.Entry{
			{Key: kv.Key{"r", "1"}, Value: []byte("1")},
			{Key: kv.Key{"r", "2"}, Value: []byte("2")},
			{Key: kv.Key{"r", "3"}, Value: []byte("3")},
		})
		if err := s.BatchDelete(ctx, []kv.Key{{"r", "1"}, {"r", "3"}, {"r", "9"}}); err != nil {
			t.Fatal(err)
		}
		if got := collect(t, s, kv.Key{"r"}); !slices.Equal(got, []string{"r:2"}) {
			t.Fatalf("remaining = %v", got)
		}
	})
}

func TestInvalidKeys(t *testing.T) {
	eachBackend(t, func(t *testing.T, s kv.Store) {
		ctx := context.Background()
		if err := s.Set(ctx, kv.Key{"a:b"}, nil); !errors.Is(err, kv.ErrInvalidKey) {
			t.Errorf("Set with separator = %v", err)
		}
		if err := s.Set(ctx, nil, nil); !errors.Is(err, kv.ErrInvalidKey) {
			t.Errorf("Set empty key = %v", err)
		}
		err := s.BatchSet(ctx, []kv.Entry{
			{Key: kv.Key{"ok"}, Value: []byte("1")},
			{Key: kv.Key{"bad:seg"}, Value: []byte("2")},
		})
		if !errors.Is(err, kv.ErrInvalidKey) {
			t.Errorf("BatchSet = %v", err)
		}
		if _, err := s.Get(ctx, kv.Key{"ok"}); !errors.Is(err, kv.ErrNotFound) {
			t.Errorf("partial batch was applied: %v", err)
		}
		for _, err := range s.List(ctx, kv.Key{"x:y"}) {
			if !errors.Is(err, kv.ErrInvalidKey) {
				t.Errorf("List bad prefix = %v", err)
			}
		}
	})
}

func TestCustomSeparator(t *testing.T) {
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			s := b.open(t, &kv.Options{Separator: '/'})
			ctx := context.Background()
			if err := s.Set(ctx, kv.Key{"sha256:ab", "x"}, []byte("1")); err != nil {
				t.Fatal(err)
			}
			for e, err := range s.List(ctx, kv.Key{"sha256:ab"}) {
				if err != nil {
					t.Fatal(err)
				}
				if !slices.Equal(e.Key, kv.Key{"sha256:ab", "x"}) {
					t.Fatalf("key = %v", e.Key)
				}
			}
		})
	}
}

func TestBadgerPersists(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "db")
	ctx := context.Background()

	s, err := kv.NewBadger(kv.BadgerOptions{Dir: dir})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Set(ctx, kv.Key{"k"}, []byte("persisted")); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	s, err = kv.NewBadger(kv.BadgerOptions{Dir: dir})
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	got, err := s.Get(ctx, kv.Key{"k"})
	if err != nil || string(got) != "persisted" {
		t.Fatalf("Get = %q, %v", got, err)
	}

	if _, err := kv.NewBadger(kv.BadgerOptions{}); err == nil {
		t.Fatal("expected error without Dir")
	}
}
