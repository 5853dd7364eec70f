package pipeline

import (
	"image"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/platewatch-data/platewatch/internal/vision"
)

func TestFilePatchStoreSaveAndCleanup(t *testing.T) {
	dir := t.TempDir()
	store := &FilePatchStore{Dir: dir}

	patch := &vision.RectifiedPatch{Image: image.NewGray(image.Rect(0, 0, 52, 11))}
	rel, err := store.SavePatch("det-1", patch)
	if err != nil {
		t.Fatalf("SavePatch: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, rel)); err != nil {
		t.Fatalf("saved patch missing: %v", err)
	}

	// Plant an old day directory and sweep it.
	old := filepath.Join(dir, "2020-01-01")
	if err := os.MkdirAll(old, 0755); err != nil {
		t.Fatal(err)
	}
	if err := store.CleanupOlderThan(time.Now().AddDate(0, 0, -30)); err != nil {
		t.Fatalf("CleanupOlderThan: %v", err)
	}
	if _, err := os.Stat(old); !os.IsNotExist(err) {
		t.Error("old day directory not removed")
	}
	if _, err := os.Stat(filepath.Join(dir, rel)); err != nil {
		t.Error("current patch removed by cleanup")
	}
}

func TestFilePatchStoreNilPatch(t *testing.T) {
	store := &FilePatchStore{Dir: t.TempDir()}
	if _, err := store.SavePatch("det-2", nil); err == nil {
		t.Error("expected error for nil patch")
	}
}

func TestFilePatchStoreSanitizesDetectionID(t *testing.T) {
	dir := t.TempDir()
	store := &FilePatchStore{Dir: dir}
	patch := &vision.RectifiedPatch{Image: image.NewGray(image.Rect(0, 0, 52, 11))}

	rel, err := store.SavePatch("../../escape", patch)
	if err != nil {
		t.Fatalf("SavePatch: %v", err)
	}
	if filepath.IsAbs(rel) || rel != filepath.Clean(rel) {
		t.Errorf("relative path not clean: %q", rel)
	}
	if _, err := os.Stat(filepath.Join(dir, rel)); err != nil {
		t.Errorf("patch not written inside store dir: %v", err)
	}
	if _, err := os.Stat(filepath.Join(filepath.Dir(dir), "escape.png")); !os.IsNotExist(err) {
		t.Error("patch escaped the store directory")
	}
}
