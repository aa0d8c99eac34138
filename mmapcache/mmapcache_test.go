package mmapcache

import (
	"os"
	"path/filepath"
	"testing"
)

func TestOpenCacheMissRunsLayoutAndPopulatesFile(t *testing.T) {
	dir := t.TempDir()
	called := false
	c, err := Open(dir, "deadbeef", 4, true, func(w *os.File) error {
		called = true
		_, err := w.WriteAt([]byte{1, 2, 3, 4}, 0)
		return err
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer c.Close()

	if !called {
		t.Errorf("layout not called on cache miss")
	}
	got := c.Bytes()
	want := []byte{1, 2, 3, 4}
	if len(got) != len(want) {
		t.Fatalf("Bytes() len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Bytes()[%d] = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestOpenCacheHitSkipsLayout(t *testing.T) {
	dir := t.TempDir()
	c1, err := Open(dir, "cafef00d", 4, true, func(w *os.File) error {
		_, err := w.WriteAt([]byte{9, 9, 9, 9}, 0)
		return err
	})
	if err != nil {
		t.Fatalf("Open (first): %v", err)
	}
	c1.Close()

	called := false
	c2, err := Open(dir, "cafef00d", 4, true, func(w *os.File) error {
		called = true
		return nil
	})
	if err != nil {
		t.Fatalf("Open (second): %v", err)
	}
	defer c2.Close()

	if called {
		t.Errorf("layout called on cache hit, want skipped")
	}
	got := c2.Bytes()
	for i, b := range []byte{9, 9, 9, 9} {
		if got[i] != b {
			t.Errorf("Bytes()[%d] = %d, want %d (persisted from first Open)", i, got[i], b)
		}
	}
}

func TestCloseRemovesFileWhenKeepFalse(t *testing.T) {
	dir := t.TempDir()
	c, err := Open(dir, "0badf00d", 2, false, func(w *os.File) error {
		_, err := w.WriteAt([]byte{5, 6}, 0)
		return err
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	path := filepath.Join(dir, "0badf00d.img")
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("backing file missing before Close: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("backing file still present after Close with keep=false: err=%v", err)
	}
}

func TestCloseKeepsFileWhenKeepTrue(t *testing.T) {
	dir := t.TempDir()
	c, err := Open(dir, "f00dcafe", 2, true, func(w *os.File) error {
		_, err := w.WriteAt([]byte{7, 8}, 0)
		return err
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	path := filepath.Join(dir, "f00dcafe.img")
	if _, err := os.Stat(path); err != nil {
		t.Errorf("backing file removed despite keep=true: %v", err)
	}
}
