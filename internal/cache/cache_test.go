package cache

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/panbanda/cohere/pkg/ir"
	"github.com/zeebo/blake3"
)

func sampleUnits() []ir.Unit {
	return []ir.Unit{{
		Path:      "src/Cart.php",
		Namespace: "Shop",
		Decls:     []ir.Decl{{Kind: ir.DeclClass, Name: "Cart"}},
	}}
}

func TestNew(t *testing.T) {
	tmpDir := t.TempDir()

	c, err := New(filepath.Join(tmpDir, "cache"), 24, true)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if !c.Enabled() {
		t.Error("cache should be enabled")
	}

	c, err = New("", 0, false)
	if err != nil {
		t.Fatalf("New() error for disabled cache: %v", err)
	}
	if c.Enabled() {
		t.Error("cache should be disabled")
	}
}

func TestNewCreatesDirectory(t *testing.T) {
	cacheDir := filepath.Join(t.TempDir(), "nested", "cache", "dir")

	if _, err := New(cacheDir, 24, true); err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if _, err := os.Stat(cacheDir); os.IsNotExist(err) {
		t.Error("New() should create cache directory")
	}
}

func TestPutAndGet(t *testing.T) {
	c, err := New(t.TempDir(), 24, true)
	if err != nil {
		t.Fatal(err)
	}
	digest := blake3.Sum256([]byte("<?php class Cart {}"))

	if _, ok := c.Get("src/Cart.php", digest); ok {
		t.Error("Get() hit on an empty cache")
	}
	if err := c.Put("src/Cart.php", digest, sampleUnits()); err != nil {
		t.Fatalf("Put() error: %v", err)
	}

	units, ok := c.Get("src/Cart.php", digest)
	if !ok {
		t.Fatal("Get() missed after Put()")
	}
	if len(units) != 1 || units[0].Namespace != "Shop" || units[0].Decls[0].Name != "Cart" {
		t.Errorf("Get() = %+v", units)
	}
}

func TestGetDigestMismatch(t *testing.T) {
	c, err := New(t.TempDir(), 24, true)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Put("a.php", blake3.Sum256([]byte("v1")), sampleUnits()); err != nil {
		t.Fatal(err)
	}
	if _, ok := c.Get("a.php", blake3.Sum256([]byte("v2"))); ok {
		t.Error("Get() should miss when the content changed")
	}
	if _, ok := c.Get("b.php", blake3.Sum256([]byte("v1"))); ok {
		t.Error("Get() should miss for another path")
	}
}

func TestGetExpired(t *testing.T) {
	c, err := New(t.TempDir(), 1, true)
	if err != nil {
		t.Fatal(err)
	}
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return start }

	digest := blake3.Sum256([]byte("x"))
	if err := c.Put("a.php", digest, sampleUnits()); err != nil {
		t.Fatal(err)
	}
	c.now = func() time.Time { return start.Add(2 * time.Hour) }

	if _, ok := c.Get("a.php", digest); ok {
		t.Error("Get() should miss an expired entry")
	}
	if _, err := os.Stat(c.keyPath("a.php")); !os.IsNotExist(err) {
		t.Error("expired entry should be removed")
	}
}

func TestGetCorrupt(t *testing.T) {
	c, err := New(t.TempDir(), 24, true)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(c.keyPath("a.php"), []byte("{not json"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, ok := c.Get("a.php", blake3.Sum256(nil)); ok {
		t.Error("Get() should miss a corrupt entry")
	}
}

func TestDisabled(t *testing.T) {
	c, err := New("", 0, false)
	if err != nil {
		t.Fatal(err)
	}
	digest := blake3.Sum256([]byte("x"))
	if err := c.Put("a.php", digest, sampleUnits()); err != nil {
		t.Errorf("Put() on disabled cache: %v", err)
	}
	if _, ok := c.Get("a.php", digest); ok {
		t.Error("disabled cache should always miss")
	}
	if err := c.Invalidate("a.php"); err != nil {
		t.Error(err)
	}
	if err := c.Clear(); err != nil {
		t.Error(err)
	}
	stats, err := c.GetStats()
	if err != nil || stats.Entries != 0 {
		t.Errorf("GetStats() = %+v, %v", stats, err)
	}
}

func TestInvalidate(t *testing.T) {
	c, err := New(t.TempDir(), 24, true)
	if err != nil {
		t.Fatal(err)
	}
	digest := blake3.Sum256([]byte("x"))
	if err := c.Put("a.php", digest, sampleUnits()); err != nil {
		t.Fatal(err)
	}
	if err := c.Invalidate("a.php"); err != nil {
		t.Fatalf("Invalidate() error: %v", err)
	}
	if _, ok := c.Get("a.php", digest); ok {
		t.Error("Get() hit after Invalidate()")
	}
	if err := c.Invalidate("a.php"); err != nil {
		t.Errorf("Invalidate() of a missing entry: %v", err)
	}
}

func TestClearAndStats(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "cache")
	c, err := New(dir, 24, true)
	if err != nil {
		t.Fatal(err)
	}
	for _, p := range []string{"a.php", "b.php"} {
		if err := c.Put(p, blake3.Sum256([]byte(p)), sampleUnits()); err != nil {
			t.Fatal(err)
		}
	}

	stats, err := c.GetStats()
	if err != nil {
		t.Fatal(err)
	}
	if stats.Entries != 2 || stats.TotalSize == 0 {
		t.Errorf("GetStats() = %+v", stats)
	}

	if err := c.Clear(); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Error("Clear() should remove the cache directory")
	}
}

func TestHashBytes(t *testing.T) {
	a, b := HashBytes([]byte("a")), HashBytes([]byte("b"))
	if len(a) != 64 {
		t.Errorf("hash length = %d, want 64", len(a))
	}
	if a == b {
		t.Error("different inputs hashed equal")
	}
	if a != HashBytes([]byte("a")) {
		t.Error("hash is not deterministic")
	}
}
