package camera

import (
	"context"
	"image"
	"sync"
	"time"

	"github.com/platewatch-data/platewatch/internal/vision"
)

// MockSource implements Source with configurable behaviour for testing.
// It emits a fixed set of images, optionally paced and optionally ending
// with an error, and records how far it got.
type MockSource struct {
	mu sync.Mutex

	// Images are emitted in order, one frame each.
	Images []image.Image

	// Interval paces emission; zero emits as fast as the consumer accepts.
	Interval time.Duration

	// Err is returned after all images are emitted, if set.
	Err error

	// Label is the frame source label (default "mock").
	Label string

	// Emitted records the number of frames actually delivered.
	Emitted int
}

// Stream emits the configured images and then returns Err (usually nil).
func (m *MockSource) Stream(ctx context.Context, out chan<- vision.Frame) error {
	defer close(out)

	label := m.Label
	if label == "" {
		label = "mock"
	}

	for _, img := range m.Images {
		if m.Interval > 0 {
			select {
			case <-time.After(m.Interval):
			case <-ctx.Done():
				return nil
			}
		}
		if err := send(ctx, out, vision.NewFrame(img, label)); err != nil {
			return nil
		}
		m.mu.Lock()
		m.Emitted++
		m.mu.Unlock()
	}
	return m.Err
}

// EmittedCount returns the number of frames delivered so far.
func (m *MockSource) EmittedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Emitted
}
