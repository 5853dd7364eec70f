package camera

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"net/http"
	"time"

	"github.com/platewatch-data/platewatch/internal/monitoring"
	"github.com/platewatch-data/platewatch/internal/vision"
)

// maxSnapshotBytes bounds a single snapshot body (16MB covers 4K JPEG
// with generous headroom).
const maxSnapshotBytes = 16 << 20

// SnapshotSource polls an IP camera's still-image endpoint at a fixed
// interval. Most plate cameras expose one (e.g. /snapshot.jpg); polling
// stills avoids carrying an RTSP stack for sites that only need a few
// frames per second.
type SnapshotSource struct {
	URL      string
	Interval time.Duration
	Label    string // frame source label; defaults to the URL

	// Client may be overridden in tests; nil uses a client with a
	// per-request timeout slightly under the poll interval.
	Client *http.Client

	// consecutive fetch failures before Stream gives up
	maxFailures int
}

// defaultMaxFailures ends the stream after this many consecutive fetch
// failures so a dead camera surfaces as a resource error instead of an
// eternal silent retry loop.
const defaultMaxFailures = 30

// Stream polls the snapshot URL until ctx is cancelled. Individual fetch
// or decode failures are logged and retried; persistent failure is a
// resource-level error.
func (s *SnapshotSource) Stream(ctx context.Context, out chan<- vision.Frame) error {
	defer close(out)

	interval := s.Interval
	if interval <= 0 {
		interval = time.Second
	}
	client := s.Client
	if client == nil {
		client = &http.Client{Timeout: interval * 9 / 10}
	}
	maxFailures := s.maxFailures
	if maxFailures <= 0 {
		maxFailures = defaultMaxFailures
	}
	label := s.Label
	if label == "" {
		label = s.URL
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	failures := 0
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		img, err := s.fetch(ctx, client)
		if err != nil {
			failures++
			monitoring.Logf("camera: snapshot fetch failed (%d/%d): %v", failures, maxFailures, err)
			if failures >= maxFailures {
				return fmt.Errorf("camera %s unreachable after %d attempts: %w", s.URL, failures, err)
			}
			continue
		}
		failures = 0

		if err := send(ctx, out, vision.NewFrame(img, label)); err != nil {
			return nil
		}
	}
}

func (s *SnapshotSource) fetch(ctx context.Context, client *http.Client) (image.Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("snapshot endpoint returned %s", resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxSnapshotBytes))
	if err != nil {
		return nil, err
	}
	img, _, err := image.Decode(bytes.NewReader(body))
	if err != nil {
		return nil, decodeErr(s.URL, err)
	}
	return img, nil
}
