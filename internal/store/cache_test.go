package store

import (
	"context"
	"testing"
)

func newTestCache(t *testing.T) *BodyCache {
	t.Helper()

	c, err := Open(":memory:")
	if err != nil {
		t.Fatalf("opening test cache: %v", err)
	}
	t.Cleanup(func() {
		if err := c.Close(); err != nil {
			t.Errorf("closing test cache: %v", err)
		}
	})

	return c
}

func TestBodyCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t)

	if _, ok, err := c.Get(ctx, "INBOX", 42); err != nil || ok {
		t.Fatalf("Get on empty cache = ok=%v err=%v, want miss", ok, err)
	}

	if err := c.Put(ctx, "INBOX", 42, "hello"); err != nil {
		t.Fatalf("Put: %v", err)
	}

	body, ok, err := c.Get(ctx, "INBOX", 42)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok || body != "hello" {
		t.Errorf("Get = (%q, %v), want (%q, true)", body, ok, "hello")
	}
}

func TestBodyCacheKeyedByFolderAndUID(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t)

	if err := c.Put(ctx, "INBOX", 1, "inbox body"); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := c.Put(ctx, "Archive", 1, "archive body"); err != nil {
		t.Fatalf("Put: %v", err)
	}

	body, ok, err := c.Get(ctx, "Archive", 1)
	if err != nil || !ok {
		t.Fatalf("Get = ok=%v err=%v, want hit", ok, err)
	}
	if body != "archive body" {
		t.Errorf("Get = %q, want %q", body, "archive body")
	}

	if _, ok, _ := c.Get(ctx, "INBOX", 2); ok {
		t.Error("unexpected hit for unknown uid")
	}
}

func TestBodyCachePutReplaces(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t)

	if err := c.Put(ctx, "INBOX", 7, "old"); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := c.Put(ctx, "INBOX", 7, "new"); err != nil {
		t.Fatalf("Put: %v", err)
	}

	body, ok, err := c.Get(ctx, "INBOX", 7)
	if err != nil || !ok {
		t.Fatalf("Get = ok=%v err=%v, want hit", ok, err)
	}
	if body != "new" {
		t.Errorf("Get = %q, want %q", body, "new")
	}
}
