package pipeline

import (
	"context"
	"errors"
	"image"
	"testing"
	"time"

	"github.com/platewatch-data/platewatch/internal/config"
	"github.com/platewatch-data/platewatch/internal/vision"
	"github.com/platewatch-data/platewatch/internal/vision/ocr"
)

// Zero frames: the source closes immediately, Run terminates cleanly with
// no detections and no error.
func TestRunEmptySource(t *testing.T) {
	o := New(config.NewStore(nil), &stubDetector{}, &stubEngine{}, &memorySink{}, nil)

	frames := make(chan vision.Frame)
	close(frames)

	if err := o.Run(context.Background(), frames); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if s := o.Stats(); s.Detections != 0 {
		t.Errorf("detections = %d, want 0", s.Detections)
	}
}

func TestRunProcessesFrames(t *testing.T) {
	detector := &stubDetector{regions: []vision.Region{plateRegion(testPlateBounds, 0.9)}}
	engine := &stubEngine{fragments: []ocr.Fragment{{Text: "AB1234CD", Confidence: 0.92}}}
	sink := &memorySink{}
	o := New(config.NewStore(nil), detector, engine, sink, nil)

	frames := make(chan vision.Frame)
	go func() {
		defer close(frames)
		for i := 0; i < 3; i++ {
			frames <- sceneFrame(640, 480, testPlateBounds)
		}
	}()

	if err := o.Run(context.Background(), frames); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := len(sink.recorded()); got == 0 {
		t.Error("no detections persisted")
	}
}

func TestRunCancellation(t *testing.T) {
	o := New(config.NewStore(nil), &stubDetector{}, &stubEngine{}, &memorySink{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	frames := make(chan vision.Frame)
	done := make(chan error, 1)
	go func() { done <- o.Run(ctx, frames) }()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned %v on cancellation, want nil", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancellation")
	}
	close(frames)
}

// A burst of frames delivered faster than processing keeps only the newest
// pending frame; intervening frames are counted as dropped.
func TestRunDropsStaleFrames(t *testing.T) {
	slowEngine := &slowStubEngine{delay: 20 * time.Millisecond}
	detector := &stubDetector{regions: []vision.Region{plateRegion(testPlateBounds, 0.9)}}
	o := New(config.NewStore(nil), detector, slowEngine, &memorySink{}, nil)

	frames := make(chan vision.Frame)
	go func() {
		defer close(frames)
		for i := 0; i < 10; i++ {
			frames <- sceneFrame(640, 480, testPlateBounds)
		}
	}()

	if err := o.Run(context.Background(), frames); err != nil {
		t.Fatalf("Run: %v", err)
	}
	s := o.Stats()
	if s.FramesProcessed+s.FramesDropped < 2 {
		t.Errorf("stats = %+v, expected frames accounted for", s)
	}
	if s.FramesDropped == 0 {
		t.Logf("no frames dropped; processing kept up (processed=%d)", s.FramesProcessed)
	}
}

func TestRunStopsOnResourceError(t *testing.T) {
	detector := &stubDetector{err: errors.New("inference server down")}
	o := New(config.NewStore(nil), detector, &stubEngine{}, &memorySink{}, nil)

	frames := make(chan vision.Frame, 1)
	frames <- sceneFrame(640, 480, testPlateBounds)
	close(frames)

	if err := o.Run(context.Background(), frames); err == nil {
		t.Fatal("resource error did not stop Run")
	}
}

func TestRunContinuesPastSinkErrors(t *testing.T) {
	detector := &stubDetector{regions: []vision.Region{plateRegion(testPlateBounds, 0.9)}}
	engine := &stubEngine{fragments: []ocr.Fragment{{Text: "AB1234CD", Confidence: 0.92}}}
	o := New(config.NewStore(nil), detector, engine, &memorySink{err: errors.New("disk full")}, nil)

	frames := make(chan vision.Frame, 2)
	frames <- sceneFrame(640, 480, testPlateBounds)
	frames <- sceneFrame(640, 480, testPlateBounds)
	close(frames)

	if err := o.Run(context.Background(), frames); err != nil {
		t.Fatalf("Run stopped on sink error: %v", err)
	}
	if s := o.Stats(); s.FramesProcessed != 2 {
		t.Errorf("FramesProcessed = %d, want 2", s.FramesProcessed)
	}
}

// slowStubEngine delays recognition to let the frame feeder outpace
// processing.
type slowStubEngine struct {
	delay time.Duration
}

func (e *slowStubEngine) Recognize(ctx context.Context, img image.Image) ([]ocr.Fragment, error) {
	time.Sleep(e.delay)
	return []ocr.Fragment{{Text: "AB1234CD", Confidence: 0.92}}, nil
}

func (e *slowStubEngine) Close() error { return nil }
