package camera

import (
	"context"
	"image"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/platewatch-data/platewatch/internal/monitoring"
	"github.com/platewatch-data/platewatch/internal/vision"
)

// DirectorySource replays image files from a directory in lexical order,
// optionally paced by an interval. Useful for offline reprocessing and for
// exercising the pipeline against captured footage.
type DirectorySource struct {
	Dir      string
	Interval time.Duration // zero means replay as fast as the consumer accepts
	Label    string        // frame source label; defaults to the directory name
}

var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
}

// Stream decodes each image file and sends it as a frame. Files that fail
// to decode are logged and skipped; an unreadable directory is a
// resource-level error.
func (s *DirectorySource) Stream(ctx context.Context, out chan<- vision.Frame) error {
	defer close(out)

	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		return err
	}

	label := s.Label
	if label == "" {
		label = filepath.Base(s.Dir)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || !imageExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	var ticker *time.Ticker
	if s.Interval > 0 {
		ticker = time.NewTicker(s.Interval)
		defer ticker.Stop()
	}

	for _, name := range names {
		if ticker != nil {
			select {
			case <-ticker.C:
			case <-ctx.Done():
				return nil
			}
		}

		path := filepath.Join(s.Dir, name)
		img, err := decodeFile(path)
		if err != nil {
			monitoring.Logf("camera: skipping %s: %v", path, err)
			continue
		}
		if err := send(ctx, out, vision.NewFrame(img, label)); err != nil {
			return nil // cancelled mid-send, benign
		}
	}
	return nil
}

func decodeFile(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, decodeErr(path, err)
	}
	return img, nil
}
