package cache

import (
	"strings"
	"testing"
	"time"
)

func TestKey_StableAndScoped(t *testing.T) {
	a := Key("pages", []byte("pdf bytes"))
	b := Key("pages", []byte("pdf bytes"))
	if a != b {
		t.Errorf("expected stable key, got %q and %q", a, b)
	}
	if !strings.HasPrefix(a, "citecheck:v1:pages:") {
		t.Errorf("unexpected key prefix: %q", a)
	}
	if Key("other", []byte("pdf bytes")) == a {
		t.Error("expected kind to change the key")
	}
	if Key("pages", []byte("different")) == a {
		t.Error("expected content to change the key")
	}
}

func TestMemoryCache_SetGetDelete(t *testing.T) {
	c := NewMemoryCache(time.Minute, time.Minute)
	if _, ok := c.Get("missing"); ok {
		t.Fatal("expected miss on empty cache")
	}
	if err := c.Set("k", []byte("v"), 0); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, ok := c.Get("k")
	if !ok || string(got) != "v" {
		t.Fatalf("expected hit with %q, got %q (ok=%v)", "v", got, ok)
	}
	if c.Len() != 1 {
		t.Errorf("expected 1 entry, got %d", c.Len())
	}
	_ = c.Delete("k")
	if _, ok := c.Get("k"); ok {
		t.Error("expected miss after delete")
	}
}

func TestMemoryCache_Expires(t *testing.T) {
	c := NewMemoryCache(time.Minute, time.Minute)
	_ = c.Set("k", []byte("v"), 10*time.Millisecond)
	time.Sleep(25 * time.Millisecond)
	if _, ok := c.Get("k"); ok {
		t.Error("expected entry to expire")
	}
}

func TestDiskCache_RoundTripAndExpiry(t *testing.T) {
	dir := t.TempDir()
	c := NewDiskCache(dir, time.Hour)

	if err := c.Set("citecheck:v1:pages:abc", []byte("payload"), 0); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, ok := c.Get("citecheck:v1:pages:abc")
	if !ok || string(got) != "payload" {
		t.Fatalf("expected payload, got %q (ok=%v)", got, ok)
	}

	if err := c.Set("short", []byte("x"), time.Millisecond); err != nil {
		t.Fatalf("set: %v", err)
	}
	time.Sleep(10 * time.Millisecond)
	if _, ok := c.Get("short"); ok {
		t.Error("expected expired disk entry to miss")
	}

	if err := c.Delete("never-written"); err != nil {
		t.Errorf("expected deleting a missing key to succeed, got %v", err)
	}
}

func TestLayeredCache_PromotesDiskHits(t *testing.T) {
	dir := t.TempDir()
	disk := NewDiskCache(dir, time.Hour)
	_ = disk.Set("k", []byte("from-disk"), 0)

	lc := NewLayeredCache(time.Hour, dir, time.Hour)
	got, ok := lc.Get("k")
	if !ok || string(got) != "from-disk" {
		t.Fatalf("expected disk hit, got %q (ok=%v)", got, ok)
	}
	if _, ok := lc.memory.Get("k"); !ok {
		t.Error("expected disk hit to be promoted into memory")
	}
}

func TestNew_MemoryOnlyWithoutDir(t *testing.T) {
	if _, ok := New("", time.Minute).(*MemoryCache); !ok {
		t.Error("expected memory cache when no dir is configured")
	}
	if _, ok := New(t.TempDir(), time.Minute).(*LayeredCache); !ok {
		t.Error("expected layered cache when a dir is configured")
	}
}
