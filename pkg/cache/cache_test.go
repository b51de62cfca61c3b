package cache

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/matzehuels/mdbook-diagrams/pkg/diagram"
)

func TestNullCache(t *testing.T) {
	ctx := context.Background()
	c := NewNullCache()
	defer c.Close()

	data, hit, err := c.Get(ctx, "key")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if hit || data != nil {
		t.Error("NullCache.Get should always miss")
	}

	if err := c.Set(ctx, "key", []byte("value"), time.Hour); err != nil {
		t.Errorf("Set error: %v", err)
	}
	if _, hit, _ = c.Get(ctx, "key"); hit {
		t.Error("NullCache should not store data")
	}
	if err := c.Delete(ctx, "key"); err != nil {
		t.Errorf("Delete error: %v", err)
	}
}

func TestNewKeyDeterministic(t *testing.T) {
	k1 := NewKey("a -> b", "graphviz", diagram.SVG, nil)
	k2 := NewKey("a -> b", "graphviz", diagram.SVG, nil)
	if k1 != k2 {
		t.Errorf("keys differ for identical input: %v vs %v", k1, k2)
	}
	if len(k1.Sum) != 40 {
		t.Errorf("Sum length = %d, want 40", len(k1.Sum))
	}

	// Empty option maps do not change the key.
	if k3 := NewKey("a -> b", "graphviz", diagram.SVG, map[string]string{}); k3 != k1 {
		t.Error("empty options should not change the key")
	}
}

func TestNewKeySensitivity(t *testing.T) {
	base := NewKey("a -> b", "graphviz", diagram.SVG, nil)

	tests := []struct {
		name string
		key  Key
	}{
		{"source", NewKey("a -> c", "graphviz", diagram.SVG, nil)},
		{"type", NewKey("a -> b", "mermaid", diagram.SVG, nil)},
		{"format", NewKey("a -> b", "graphviz", diagram.PNG, nil)},
		{"options", NewKey("a -> b", "graphviz", diagram.SVG, map[string]string{"html-labels": "false"})},
		{"field boundary", NewKey("a -> bgraphviz", "", diagram.SVG, nil)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.key.Sum == base.Sum {
				t.Errorf("changing %s should change the key", tt.name)
			}
		})
	}
}

func TestNewKeyOptionOrder(t *testing.T) {
	a := NewKey("x", "mermaid", diagram.SVG, map[string]string{"theme": "dark", "html-labels": "false"})
	b := NewKey("x", "mermaid", diagram.SVG, map[string]string{"html-labels": "false", "theme": "dark"})
	if a != b {
		t.Error("option order should not matter")
	}
}

func TestFileStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir, "diagram-")
	if err != nil {
		t.Fatal(err)
	}
	key := NewKey("a -> b", "graphviz", diagram.SVG, nil)

	if s.Exists(key) {
		t.Fatal("empty store reports artifact")
	}
	if _, err := s.Read(key); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Read on empty store = %v, want ErrNotFound", err)
	}

	want := filepath.Join(dir, "diagram-"+key.Sum+".svg")
	if got := s.Path(key); got != want {
		t.Errorf("Path = %s, want %s", got, want)
	}

	path, err := s.Write(key, []byte("<svg/>"))
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if path != want {
		t.Errorf("Write path = %s, want %s", path, want)
	}
	if !s.Exists(key) {
		t.Error("artifact should exist after Write")
	}
	data, err := s.Read(key)
	if err != nil || string(data) != "<svg/>" {
		t.Errorf("Read = %q, %v", data, err)
	}
}

func TestFileStoreNeverOverwrites(t *testing.T) {
	s, _ := NewFileStore(t.TempDir(), "")
	key := NewKey("x", "d2", diagram.SVG, nil)

	if _, err := s.Write(key, []byte("first")); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Write(key, []byte("second")); err != nil {
		t.Fatalf("second Write should succeed: %v", err)
	}
	data, _ := s.Read(key)
	if string(data) != "first" {
		t.Errorf("artifact was overwritten: %q", data)
	}
}

func TestFileStoreZeroLengthIsMiss(t *testing.T) {
	s, _ := NewFileStore(t.TempDir(), "p-")
	key := NewKey("x", "d2", diagram.PNG, nil)

	if err := os.WriteFile(s.Path(key), nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if s.Exists(key) {
		t.Error("zero-length file should not count as cached")
	}
	if _, err := s.Read(key); !errors.Is(err, ErrNotFound) {
		t.Errorf("Read = %v, want ErrNotFound", err)
	}

	if _, err := s.Write(key, []byte{0x89, 'P', 'N', 'G'}); err != nil {
		t.Fatal(err)
	}
	if !s.Exists(key) {
		t.Error("Write should replace a zero-length leftover")
	}

	if _, err := s.Write(key, nil); !errors.Is(err, ErrEmptyArtifact) {
		t.Errorf("Write(nil) = %v, want ErrEmptyArtifact", err)
	}
}

func TestFileStoreConcurrentWriters(t *testing.T) {
	s, _ := NewFileStore(t.TempDir(), "diagram-")
	key := NewKey("same", "graphviz", diagram.SVG, nil)

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.Write(key, []byte("<svg>same</svg>")); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("concurrent Write: %v", err)
	}

	data, err := s.Read(key)
	if err != nil || string(data) != "<svg>same</svg>" {
		t.Errorf("Read = %q, %v", data, err)
	}
	entries, _ := s.List()
	if len(entries) != 1 {
		t.Errorf("expected 1 artifact and no staging files, got %d entries", len(entries))
	}
}

func TestFileStoreListAndClear(t *testing.T) {
	dir := t.TempDir()
	s, _ := NewFileStore(dir, "diagram-")

	for _, src := range []string{"a", "b", "c"} {
		if _, err := s.Write(NewKey(src, "graphviz", diagram.SVG, nil), []byte(src)); err != nil {
			t.Fatal(err)
		}
	}
	// Unrelated files in the same directory are left alone.
	for _, name := range []string{"notes.txt", "diagram-short.svg", "other-" + NewKey("a", "x", diagram.SVG, nil).String()} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	entries, err := s.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 3 {
		t.Fatalf("List returned %d entries, want 3", len(entries))
	}
	for _, e := range entries {
		if e.Format != diagram.SVG || len(e.Sum) != 40 || e.Size != 1 {
			t.Errorf("unexpected entry %+v", e)
		}
	}

	n, err := s.Clear()
	if err != nil || n != 3 {
		t.Fatalf("Clear = %d, %v", n, err)
	}
	if _, err := os.Stat(filepath.Join(dir, "notes.txt")); err != nil {
		t.Error("Clear removed an unrelated file")
	}
}

func TestMemoryCache(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(2)
	defer c.Close()

	if _, hit, _ := c.Get(ctx, "a"); hit {
		t.Error("empty cache should miss")
	}
	_ = c.Set(ctx, "a", []byte("1"), 0)
	_ = c.Set(ctx, "b", []byte("2"), time.Hour)
	if data, hit, _ := c.Get(ctx, "a"); !hit || string(data) != "1" {
		t.Errorf("Get(a) = %q, %v", data, hit)
	}

	_ = c.Set(ctx, "c", []byte("3"), 0)
	if c.Len() != 2 {
		t.Errorf("capacity not enforced: Len = %d", c.Len())
	}

	_ = c.Delete(ctx, "c")
	if _, hit, _ := c.Get(ctx, "c"); hit {
		t.Error("deleted key should miss")
	}
}

func TestMemoryCacheExpiry(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(0)
	defer c.Close()

	_ = c.Set(ctx, "k", []byte("v"), 10*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	if _, hit, _ := c.Get(ctx, "k"); hit {
		t.Error("expired entry should miss")
	}
}

func TestScoped(t *testing.T) {
	ctx := context.Background()
	inner := NewMemoryCache(0)
	defer inner.Close()

	a := NewScoped(inner, "book-a:")
	b := NewScoped(inner, "book-b:")

	_ = a.Set(ctx, "k", []byte("from a"), 0)
	if _, hit, _ := b.Get(ctx, "k"); hit {
		t.Error("scopes should not share keys")
	}
	if data, hit, _ := inner.Get(ctx, "book-a:k"); !hit || string(data) != "from a" {
		t.Error("scoped key should be prefixed in the inner cache")
	}
}

func TestScopedNilInner(t *testing.T) {
	s := NewScoped(nil, "p:")
	if _, hit, err := s.Get(context.Background(), "k"); hit || err != nil {
		t.Error("nil inner should behave like NullCache")
	}
}

func TestRedisCache(t *testing.T) {
	url := os.Getenv("MDBOOK_DIAGRAMS_TEST_REDIS_URL")
	if url == "" {
		t.Skip("MDBOOK_DIAGRAMS_TEST_REDIS_URL not set")
	}
	ctx := context.Background()
	c, err := NewRedisCache(ctx, url)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	key := "mdbook-diagrams-test:" + NewKey(t.Name(), "test", diagram.SVG, nil).String()
	defer c.Delete(ctx, key)

	if _, hit, err := c.Get(ctx, key); hit || err != nil {
		t.Fatalf("Get before Set = %v, %v", hit, err)
	}
	if err := c.Set(ctx, key, []byte("<svg/>"), time.Minute); err != nil {
		t.Fatal(err)
	}
	if data, hit, err := c.Get(ctx, key); !hit || err != nil || string(data) != "<svg/>" {
		t.Errorf("Get = %q, %v, %v", data, hit, err)
	}
}
