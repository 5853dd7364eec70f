package locate

import (
	"context"
	"errors"
	"image"
	"testing"

	"github.com/platewatch-data/platewatch/internal/vision"
)

// stubDetector returns canned regions or a canned error.
type stubDetector struct {
	regions []vision.Region
	err     error
	calls   int
}

func (s *stubDetector) Detect(_ context.Context, _ image.Image, _ float64) ([]vision.Region, error) {
	s.calls++
	return s.regions, s.err
}

func grayFrame(w, h int) vision.Frame {
	return vision.NewFrame(image.NewGray(image.Rect(0, 0, w, h)), "test")
}

func TestLocateEmptyFrame(t *testing.T) {
	det := &stubDetector{}
	l := NewLocalizer(det)

	regions, err := l.Locate(context.Background(), vision.Frame{}, DefaultParams())
	if err != nil {
		t.Fatalf("Locate on empty frame: %v", err)
	}
	if len(regions) != 0 {
		t.Errorf("empty frame yielded %d regions, want 0", len(regions))
	}
	if det.calls != 0 {
		t.Error("detector should not run on an empty frame")
	}
}

func TestLocateModelPath(t *testing.T) {
	det := &stubDetector{regions: []vision.Region{
		vision.RegionFromBBox(image.Rect(10, 10, 150, 45), 0.7, vision.RegionSourceModel),
		vision.RegionFromBBox(image.Rect(200, 100, 340, 135), 0.9, vision.RegionSourceModel),
		vision.RegionFromBBox(image.Rect(5, 5, 60, 20), 0.3, vision.RegionSourceModel), // below threshold
	}}
	l := NewLocalizer(det)

	regions, err := l.Locate(context.Background(), grayFrame(640, 480), DefaultParams())
	if err != nil {
		t.Fatalf("Locate: %v", err)
	}
	if len(regions) != 2 {
		t.Fatalf("got %d regions, want 2", len(regions))
	}
	if regions[0].Confidence < regions[1].Confidence {
		t.Error("regions not ordered by descending confidence")
	}
	for _, r := range regions {
		if r.Source != vision.RegionSourceModel {
			t.Errorf("region source = %q, want model", r.Source)
		}
	}
}

func TestLocateDetectorError(t *testing.T) {
	det := &stubDetector{err: errors.New("connection refused")}
	l := NewLocalizer(det)

	if _, err := l.Locate(context.Background(), grayFrame(64, 48), DefaultParams()); err == nil {
		t.Fatal("detector failure should surface as an error")
	}
}

func TestLocateFallsBackWhenModelEmpty(t *testing.T) {
	det := &stubDetector{} // zero candidates
	l := NewLocalizer(det)
	frame := vision.NewFrame(syntheticPlateImage(640, 480, image.Rect(200, 220, 440, 280)), "test")

	regions, err := l.Locate(context.Background(), frame, DefaultParams())
	if err != nil {
		t.Fatalf("Locate: %v", err)
	}
	if len(regions) == 0 {
		t.Fatal("fallback found no regions for a synthetic plate")
	}
	if regions[0].Source != vision.RegionSourceFallback {
		t.Errorf("region source = %q, want fallback", regions[0].Source)
	}
}

func TestLocateNilDetectorUsesFallbackOnly(t *testing.T) {
	l := NewLocalizer(nil)
	frame := vision.NewFrame(syntheticPlateImage(640, 480, image.Rect(200, 220, 440, 280)), "test")

	regions, err := l.Locate(context.Background(), frame, DefaultParams())
	if err != nil {
		t.Fatalf("Locate: %v", err)
	}
	if len(regions) == 0 {
		t.Fatal("expected fallback regions with nil detector")
	}
}

func TestDedupeKeepsHigherConfidence(t *testing.T) {
	a := vision.RegionFromBBox(image.Rect(0, 0, 100, 30), 0.9, vision.RegionSourceModel)
	b := vision.RegionFromBBox(image.Rect(5, 2, 105, 32), 0.6, vision.RegionSourceModel) // heavy overlap with a
	c := vision.RegionFromBBox(image.Rect(300, 300, 400, 330), 0.5, vision.RegionSourceModel)

	out := dedupe([]vision.Region{b, c, a}, 0.4)
	if len(out) != 2 {
		t.Fatalf("got %d regions after dedupe, want 2", len(out))
	}
	if out[0].Confidence != 0.9 {
		t.Errorf("winner confidence = %v, want 0.9 (higher of the overlapping pair)", out[0].Confidence)
	}
	if out[1].Confidence != 0.5 {
		t.Errorf("second region confidence = %v, want 0.5", out[1].Confidence)
	}
}

func TestLocateMaxRegionsCap(t *testing.T) {
	var canned []vision.Region
	for i := 0; i < 20; i++ {
		canned = append(canned, vision.RegionFromBBox(
			image.Rect(i*50, 0, i*50+45, 15), 0.6, vision.RegionSourceModel))
	}
	l := NewLocalizer(&stubDetector{regions: canned})

	p := DefaultParams()
	p.MaxRegions = 3
	regions, err := l.Locate(context.Background(), grayFrame(1200, 100), p)
	if err != nil {
		t.Fatalf("Locate: %v", err)
	}
	if len(regions) != 3 {
		t.Errorf("got %d regions, want cap of 3", len(regions))
	}
}
