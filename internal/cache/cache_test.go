package cache

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	c, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestContentAndAnswerSidesAreIndependent(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	if err := c.PutContent(ctx, 7, "what is the airspeed of an unladen swallow"); err != nil {
		t.Fatalf("PutContent failed: %v", err)
	}
	if err := c.PutAnswer(ctx, 7, "african or european?"); err != nil {
		t.Fatalf("PutAnswer failed: %v", err)
	}

	entry, err := c.Get(ctx, 7)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if entry == nil {
		t.Fatal("Get returned nil for a cached prayer")
	}
	if entry.Content != "what is the airspeed of an unladen swallow" {
		t.Errorf("Content = %q", entry.Content)
	}
	if entry.Answer != "african or european?" {
		t.Errorf("Answer = %q", entry.Answer)
	}
	if entry.UpdatedAt == 0 {
		t.Error("UpdatedAt not set")
	}

	// Re-caching one side keeps the other.
	if err := c.PutContent(ctx, 7, "revised question"); err != nil {
		t.Fatalf("PutContent failed: %v", err)
	}
	entry, err = c.Get(ctx, 7)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if entry.Content != "revised question" {
		t.Errorf("Content = %q, want %q", entry.Content, "revised question")
	}
	if entry.Answer != "african or european?" {
		t.Errorf("Answer lost on content update: %q", entry.Answer)
	}
}

func TestGetMissIsNotAnError(t *testing.T) {
	c := newTestCache(t)

	entry, err := c.Get(context.Background(), 999)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if entry != nil {
		t.Errorf("entry = %+v, want nil", entry)
	}
}

func TestPurge(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	for id := uint64(0); id < 3; id++ {
		if err := c.PutContent(ctx, id, "text"); err != nil {
			t.Fatalf("PutContent failed: %v", err)
		}
	}

	n, err := c.Purge(ctx)
	if err != nil {
		t.Fatalf("Purge failed: %v", err)
	}
	if n != 3 {
		t.Errorf("purged %d entries, want 3", n)
	}

	entry, err := c.Get(ctx, 0)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if entry != nil {
		t.Error("entry survived purge")
	}
}

func TestOpenRestrictsPermissions(t *testing.T) {
	dir := t.TempDir()
	c, err := Open(dir)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer c.Close()

	info, err := os.Stat(filepath.Join(dir, "cache.db"))
	if err != nil {
		t.Fatalf("stat failed: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("cache.db perm = %o, want 0600", perm)
	}
}
