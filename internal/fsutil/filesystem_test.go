package fsutil

import (
	"errors"
	"io/fs"
	"path/filepath"
	"testing"
)

func exercise(t *testing.T, fsys FileSystem, dir string) {
	t.Helper()
	plots := filepath.Join(dir, "plots", "2026")
	if err := fsys.MkdirAll(plots, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if !fsys.Exists(plots) || !fsys.Exists(filepath.Join(dir, "plots")) {
		t.Error("MkdirAll did not create the directory and its parent")
	}

	name := filepath.Join(plots, "trace.png")
	w, err := fsys.Create(name)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := w.Write([]byte("\x89PNG")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := fsys.ReadFile(name)
	if err != nil || string(data) != "\x89PNG" {
		t.Errorf("ReadFile = %q, %v", data, err)
	}

	if _, err := fsys.ReadFile(filepath.Join(plots, "missing.png")); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("ReadFile(missing) error = %v, want fs.ErrNotExist", err)
	}
}

func TestOSFileSystem(t *testing.T) {
	exercise(t, OSFileSystem{}, t.TempDir())
}

func TestMemoryFileSystem(t *testing.T) {
	m := NewMemoryFileSystem()
	exercise(t, m, "/var/lib/motion")

	w, _ := m.Create("/tmp/pending.png")
	w.Write([]byte("x"))
	if m.Exists("/tmp/pending.png") {
		t.Error("file should not be visible before Close")
	}
	w.Close()
	if !m.Exists("/tmp/pending.png") {
		t.Error("file should be visible after Close")
	}
}
