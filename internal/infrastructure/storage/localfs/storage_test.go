package localfs

import (
	"context"
	"os"
	"strings"
	"testing"
)

func TestSaveRemoveCycle(t *testing.T) {
	store, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	ctx := context.Background()

	path, err := store.Save(ctx, "clip.mp4", strings.NewReader("payload"))
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("saved path not readable: %v", err)
	}
	if string(data) != "payload" {
		t.Fatalf("read back %q", data)
	}

	if err := store.Remove(ctx, "clip.mp4"); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("file still present after Remove")
	}
}

func TestRemoveMissingKeyIsNoError(t *testing.T) {
	store, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := store.Remove(context.Background(), "never-saved"); err != nil {
		t.Fatalf("Remove() on missing key error = %v", err)
	}
}

func TestSaveStripsDirectoryComponents(t *testing.T) {
	dir := t.TempDir()
	store, err := New(dir)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	path, err := store.Save(context.Background(), "../escape.bin", strings.NewReader("x"))
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if !strings.HasPrefix(path, dir) {
		t.Fatalf("path escaped scratch dir: %q", path)
	}
}
