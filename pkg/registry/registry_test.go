package registry

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/haivivi/mediaseal/pkg/kv"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	r := New(kv.NewMemory(nil))
	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	r.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return r
}

func TestAddGet(t *testing.T) {
	ctx := context.Background()
	r := newTestRegistry(t)

	rec, err := r.Add(ctx, Record{
		Media:     "image",
		Algorithm: "dct",
		Strength:  0.1,
		Payload:   "hello",
		BitLength: 40,
		Source:    "in.png",
		Output:    "out.png",
		Digest:    "abc123",
	})
	if err != nil {
		t.Fatal(err)
	}
	if rec.ID == "" || rec.Timestamp == 0 {
		t.Fatalf("Add did not fill ID/timestamp: %+v", rec)
	}
	if got := rec.Time().UTC(); got != time.Date(2026, 3, 1, 12, 0, 1, 0, time.UTC) {
		t.Errorf("Time() = %v", got)
	}

	got, err := r.Get(ctx, rec.ID)
	if err != nil {
		t.Fatal(err)
	}
	if *got != rec {
		t.Fatalf("Get = %+v, want %+v", *got, rec)
	}
	if got.PayloadLength() != 5 {
		t.Errorf("PayloadLength = %d", got.PayloadLength())
	}

	byDigest, err := r.FindByDigest(ctx, "abc123")
	if err != nil {
		t.Fatal(err)
	}
	if byDigest.ID != rec.ID {
		t.Fatalf("FindByDigest ID = %s, want %s", byDigest.ID, rec.ID)
	}

	if _, err := r.Get(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get missing = %v", err)
	}
	if _, err := r.FindByDigest(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("FindByDigest missing = %v", err)
	}
}

func TestListNewestFirst(t *testing.T) {
	ctx := context.Background()
	r := newTestRegistry(t)
	for _, p := range []string{"one", "two", "three"} {
		if _, err := r.Add(ctx, Record{Payload: p}); err != nil {
			t.Fatal(err)
		}
	}

	all, err := r.List(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 || all[0].Payload != "three" || all[2].Payload != "one" {
		t.Fatalf("List = %+v", all)
	}
	two, _ := r.List(ctx, 2)
	if len(two) != 2 || two[1].Payload != "two" {
		t.Fatalf("List(2) = %+v", two)
	}
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	r := newTestRegistry(t)

	first, _ := r.Add(ctx, Record{Payload: "old", Digest: "d1"})
	second, _ := r.Add(ctx, Record{Payload: "new", Digest: "d1"})

	// The digest index now points at the second record; deleting the first
	// must leave it alone.
	if err := r.Delete(ctx, first.ID); err != nil {
		t.Fatal(err)
	}
	got, err := r.FindByDigest(ctx, "d1")
	if err != nil || got.ID != second.ID {
		t.Fatalf("FindByDigest after delete = %+v, %v", got, err)
	}

	if err := r.Delete(ctx, second.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := r.FindByDigest(ctx, "d1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("digest should be gone: %v", err)
	}
	if all, _ := r.List(ctx, 0); len(all) != 0 {
		t.Fatalf("List after delete = %+v", all)
	}
	if err := r.Delete(ctx, second.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Delete twice = %v", err)
	}
}

func TestFindByFile(t *testing.T) {
	ctx := context.Background()
	r := newTestRegistry(t)

	path := filepath.Join(t.TempDir(), "out.wav")
	if err := os.WriteFile(path, []byte("sealed"), 0o644); err != nil {
		t.Fatal(err)
	}
	digest, err := FileDigest(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(digest) != 64 {
		t.Fatalf("digest = %q", digest)
	}
	rec, _ := r.Add(ctx, Record{Payload: "x", Digest: digest})

	got, err := r.FindByFile(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != rec.ID {
		t.Fatalf("FindByFile = %s, want %s", got.ID, rec.ID)
	}
	if _, err := FileDigest(filepath.Join(t.TempDir(), "missing")); !os.IsNotExist(err) {
		t.Fatalf("FileDigest missing = %v", err)
	}
}

func TestListSkipsMalformed(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemory(nil)
	r := New(store)
	r.Add(ctx, Record{Payload: "ok"})
	store.Set(ctx, r.key("rec", tsString(1), "junk"), []byte{0xc1})

	all, err := r.List(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 1 || all[0].Payload != "ok" {
		t.Fatalf("List = %+v", all)
	}
}

func TestPrefixIsolation(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemory(nil)
	a := NewWithPrefix(store, kv.Key{"tenant", "a"})
	b := NewWithPrefix(store, kv.Key{"tenant", "b"})
	a.Add(ctx, Record{Payload: "a"})

	if all, _ := b.List(ctx, 0); len(all) != 0 {
		t.Fatalf("tenant b sees %+v", all)
	}
}
