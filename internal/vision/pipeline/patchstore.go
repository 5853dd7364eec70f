package pipeline

import (
	"fmt"
	"image/png"
	"os"
	"path/filepath"
	"time"

	"github.com/platewatch-data/platewatch/internal/security"
	"github.com/platewatch-data/platewatch/internal/vision"
)

// FilePatchStore writes rectified patches as PNG files under a base
// directory, one subdirectory per capture day so retention sweeps can
// remove whole days at once.
type FilePatchStore struct {
	Dir string
}

// SavePatch writes the patch and returns its path relative to Dir.
func (s *FilePatchStore) SavePatch(detectionID string, patch *vision.RectifiedPatch) (string, error) {
	if patch == nil || patch.Image == nil {
		return "", fmt.Errorf("nil patch for detection %s", detectionID)
	}

	day := time.Now().UTC().Format("2006-01-02")
	dir := filepath.Join(s.Dir, day)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}

	// Detection IDs are UUIDs in normal operation, but the store also
	// accepts caller-supplied IDs, so they are sanitized before use.
	rel := filepath.Join(day, security.SanitizeFilename(detectionID)+".png")
	full := filepath.Join(s.Dir, rel)
	if err := security.ValidatePathWithinDirectory(full, s.Dir); err != nil {
		return "", fmt.Errorf("patch path for detection %s: %w", detectionID, err)
	}
	f, err := os.Create(full)
	if err != nil {
		return "", err
	}
	defer f.Close()

	if err := png.Encode(f, patch.Image); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("encode patch %s: %w", detectionID, err)
	}
	return rel, nil
}

// CleanupOlderThan removes day directories whose date is older than the
// cutoff. Used by the retention sweep alongside database cleanup.
func (s *FilePatchStore) CleanupOlderThan(cutoff time.Time) error {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	cutoffDay := cutoff.UTC().Format("2006-01-02")
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if _, err := time.Parse("2006-01-02", e.Name()); err != nil {
			continue // not a day directory
		}
		if e.Name() < cutoffDay {
			if err := os.RemoveAll(filepath.Join(s.Dir, e.Name())); err != nil {
				return err
			}
		}
	}
	return nil
}
