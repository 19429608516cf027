package cache

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func openTemp(t *testing.T) *Cache {
	t.Helper()
	c, err := Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestKeyIsStable(t *testing.T) {
	a := Key([]byte("say(\"hi\")"))
	b := Key([]byte("say(\"hi\")"))
	if a != b {
		t.Error("same source hashed differently")
	}
	if len(a) != 64 {
		t.Errorf("key length = %d", len(a))
	}
	if Key([]byte("say(\"hi\")\n")) == a {
		t.Error("distinct sources share a key")
	}
}

func TestMissBeforePut(t *testing.T) {
	c := openTemp(t)
	if _, err := c.Get([]byte("nothing here")); !errors.Is(err, ErrMiss) {
		t.Errorf("err = %v, want ErrMiss", err)
	}
}

func TestPutGetRoundTrip(t *testing.T) {
	c := openTemp(t)
	source := []byte("print(1 + 2)")
	program := []byte{0xAA, 0x55, 0x00, 0x42}

	if err := c.Put(source, program); err != nil {
		t.Fatal(err)
	}
	got, err := c.Get(source)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, program) {
		t.Errorf("cached program = %v, want %v", got, program)
	}

	// A second Put for the same source replaces, not duplicates.
	newer := []byte{0x01, 0x02}
	if err := c.Put(source, newer); err != nil {
		t.Fatal(err)
	}
	got, err = c.Get(source)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, newer) {
		t.Errorf("after replace got %v, want %v", got, newer)
	}
}

func TestCacheSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	source := []byte("let x = 1")
	program := []byte("compiled")

	c, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Put(source, program); err != nil {
		t.Fatal(err)
	}
	if err := c.Close(); err != nil {
		t.Fatal(err)
	}

	c, err = Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	got, err := c.Get(source)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, program) {
		t.Errorf("after reopen got %v, want %v", got, program)
	}
}

func TestPrune(t *testing.T) {
	c := openTemp(t)
	if err := c.Put([]byte("old"), []byte{1}); err != nil {
		t.Fatal(err)
	}
	if err := c.Put([]byte("new"), []byte{2}); err != nil {
		t.Fatal(err)
	}

	// Backdate one entry so it falls outside the retention window.
	if _, err := c.db.Exec(
		"UPDATE programs SET created_at = ? WHERE source_hash = ?",
		time.Now().Add(-48*time.Hour).Unix(), Key([]byte("old")),
	); err != nil {
		t.Fatal(err)
	}

	removed, err := c.Prune(24 * time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}
	if _, err := c.Get([]byte("old")); !errors.Is(err, ErrMiss) {
		t.Errorf("pruned entry still readable: %v", err)
	}
	if _, err := c.Get([]byte("new")); err != nil {
		t.Errorf("recent entry pruned: %v", err)
	}
}

func TestOpenCreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "deep", "cache")
	c, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	if _, err := os.Stat(filepath.Join(dir, "programs.db")); err != nil {
		t.Errorf("database file missing: %v", err)
	}
}
