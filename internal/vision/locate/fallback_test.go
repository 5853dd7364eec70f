package locate

import (
	"image"
	"image/color"
	"testing"

	"github.com/platewatch-data/platewatch/internal/vision"
)

// syntheticPlateImage draws a bright plate rectangle with dark character
// strokes on a dark background: a high-gradient, wide-aspect blob the
// geometric fallback is designed to find.
func syntheticPlateImage(w, h int, plate image.Rectangle) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 20
	}
	for y := plate.Min.Y; y < plate.Max.Y; y++ {
		for x := plate.Min.X; x < plate.Max.X; x++ {
			img.SetGray(x, y, color.Gray{Y: 230})
		}
	}
	// Vertical strokes every 10 px, inset from the plate border.
	inner := plate.Inset(5)
	for x := inner.Min.X; x < inner.Max.X; x += 10 {
		for dx := 0; dx < 4 && x+dx < inner.Max.X; dx++ {
			for y := inner.Min.Y; y < inner.Max.Y; y++ {
				img.SetGray(x+dx, y, color.Gray{Y: 30})
			}
		}
	}
	return img
}

func TestFallbackFindsSyntheticPlate(t *testing.T) {
	plate := image.Rect(200, 220, 440, 280)
	img := syntheticPlateImage(640, 480, plate)

	regions := FallbackLocate(img, DefaultParams())
	if len(regions) == 0 {
		t.Fatal("fallback found nothing")
	}

	best := regions[0]
	for _, r := range regions[1:] {
		if r.Confidence > best.Confidence {
			best = r
		}
	}
	if vision.IoU(best.BBox, plate) < 0.5 {
		t.Errorf("best region %v poorly overlaps plate %v", best.BBox, plate)
	}
	if best.Source != vision.RegionSourceFallback {
		t.Errorf("source = %q, want fallback", best.Source)
	}
	if best.Confidence <= 0 || best.Confidence > 1 {
		t.Errorf("synthetic confidence = %v, want (0, 1]", best.Confidence)
	}
	if !best.HasCorners() {
		t.Error("fallback region should carry corner estimates")
	}
	if err := best.Validate(); err != nil {
		t.Errorf("fallback region violates invariant: %v", err)
	}
}

func TestFallbackRejectsSquareBlob(t *testing.T) {
	// A square blob fails the aspect-ratio band even though it is large.
	img := syntheticPlateImage(640, 480, image.Rect(200, 150, 320, 270))

	for _, r := range FallbackLocate(img, DefaultParams()) {
		ar := r.AspectRatio()
		if ar >= DefaultParams().MinAspect && ar <= DefaultParams().MaxAspect &&
			vision.IoU(r.BBox, image.Rect(200, 150, 320, 270)) > 0.5 {
			t.Errorf("square blob %v passed the aspect filter", r.BBox)
		}
	}
}

func TestFallbackEmptyAndTinyInputs(t *testing.T) {
	if got := FallbackLocate(image.NewGray(image.Rect(0, 0, 2, 2)), DefaultParams()); got != nil {
		t.Errorf("tiny image yielded %d regions, want none", len(got))
	}

	flat := image.NewGray(image.Rect(0, 0, 320, 240))
	if got := FallbackLocate(flat, DefaultParams()); len(got) != 0 {
		t.Errorf("featureless image yielded %d regions, want 0", len(got))
	}
}

func TestFallbackMinAreaFilter(t *testing.T) {
	// Plate-shaped but far below the minimum area.
	img := syntheticPlateImage(320, 240, image.Rect(100, 100, 130, 110))

	p := DefaultParams()
	if got := FallbackLocate(img, p); len(got) != 0 {
		t.Errorf("sub-minimum blob yielded %d regions, want 0", len(got))
	}
}

func TestConnectedComponents(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 20, 10))
	// Two disjoint blobs.
	for x := 2; x < 8; x++ {
		for y := 2; y < 5; y++ {
			img.SetGray(x, y, color.Gray{Y: 255})
		}
	}
	for x := 12; x < 18; x++ {
		for y := 6; y < 9; y++ {
			img.SetGray(x, y, color.Gray{Y: 255})
		}
	}

	comps := connectedComponents(img)
	if len(comps) != 2 {
		t.Fatalf("found %d components, want 2", len(comps))
	}
	if comps[0].area != 18 || comps[1].area != 18 {
		t.Errorf("component areas = %d, %d, want 18 each", comps[0].area, comps[1].area)
	}
	if got := comps[0].bbox; got != image.Rect(2, 2, 8, 5) {
		t.Errorf("first bbox = %v, want (2,2)-(8,5)", got)
	}
}
