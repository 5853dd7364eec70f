// Package vision defines the domain types shared by the plate detection
// pipeline: frames, candidate regions, rectified patches, text candidates
// and the persisted detection record.
//
// Values of these types are owned by exactly one pipeline stage at a time
// and are never mutated after construction; pipeline stages hand ownership
// forward with their return values.
package vision

import (
	"fmt"
	"image"
	"time"

	"github.com/google/uuid"
)

// RegionSource tags which localization strategy produced a Region.
type RegionSource string

const (
	// RegionSourceModel marks regions found by the primary model-based detector.
	RegionSourceModel RegionSource = "model"
	// RegionSourceFallback marks regions found by the geometric contour fallback.
	RegionSourceFallback RegionSource = "fallback"
)

// ValidationStatus describes confidence-gated acceptance of extracted text.
type ValidationStatus string

const (
	StatusValid     ValidationStatus = "valid"
	StatusUncertain ValidationStatus = "uncertain"
	StatusRejected  ValidationStatus = "rejected"
)

// Frame is a single captured image plus capture metadata. Frames are
// immutable after capture: stages derive new frames instead of writing
// into the pixel buffer.
type Frame struct {
	ID         string
	Image      image.Image
	Width      int
	Height     int
	CapturedAt time.Time
	Source     string // name of the producing camera source
}

// NewFrame wraps an image in a Frame with a fresh ID and the current
// capture timestamp.
func NewFrame(img image.Image, source string) Frame {
	return NewFrameAt(img, source, time.Now())
}

// NewFrameAt wraps an image in a Frame with an explicit capture timestamp.
func NewFrameAt(img image.Image, source string, capturedAt time.Time) Frame {
	var w, h int
	if img != nil {
		b := img.Bounds()
		w, h = b.Dx(), b.Dy()
	}
	return Frame{
		ID:         uuid.NewString(),
		Image:      img,
		Width:      w,
		Height:     h,
		CapturedAt: capturedAt,
		Source:     source,
	}
}

// Empty reports whether the frame carries no pixels.
func (f Frame) Empty() bool {
	return f.Image == nil || f.Width == 0 || f.Height == 0
}

// WithImage returns a copy of the frame carrying a different pixel buffer.
// ID, timestamp and source are preserved so provenance survives
// preprocessing.
func (f Frame) WithImage(img image.Image) Frame {
	out := f
	out.Image = img
	if img != nil {
		b := img.Bounds()
		out.Width, out.Height = b.Dx(), b.Dy()
	} else {
		out.Width, out.Height = 0, 0
	}
	return out
}

// Point is a position in image space. Sub-pixel precision matters for
// homography estimation, hence float64 rather than image.Point.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Region is a candidate plate location: an axis-aligned bounding box, four
// ordered corner points (top-left, top-right, bottom-right, bottom-left in
// image space) and the confidence/source of the localization that produced
// it. Corners may be empty when the detector only reports boxes; the
// rectifier synthesizes them from the box in that case.
type Region struct {
	BBox       image.Rectangle
	Corners    []Point // empty or exactly 4, ordered TL, TR, BR, BL
	Confidence float64
	Source     RegionSource
}

// RegionFromBBox builds a Region whose corners are the four corners of the
// bounding box.
func RegionFromBBox(box image.Rectangle, confidence float64, source RegionSource) Region {
	return Region{
		BBox: box,
		Corners: []Point{
			{X: float64(box.Min.X), Y: float64(box.Min.Y)},
			{X: float64(box.Max.X), Y: float64(box.Min.Y)},
			{X: float64(box.Max.X), Y: float64(box.Max.Y)},
			{X: float64(box.Min.X), Y: float64(box.Max.Y)},
		},
		Confidence: confidence,
		Source:     source,
	}
}

// HasCorners reports whether the region carries a usable four-point
// quadrilateral.
func (r Region) HasCorners() bool {
	return len(r.Corners) == 4
}

// AspectRatio returns width/height of the bounding box, or 0 for an empty
// box.
func (r Region) AspectRatio() float64 {
	w, h := r.BBox.Dx(), r.BBox.Dy()
	if h == 0 {
		return 0
	}
	return float64(w) / float64(h)
}

// Validate checks the Region invariant: corners, when present, must form a
// non-self-intersecting quadrilateral whose bounds enclose the bounding box.
func (r Region) Validate() error {
	if !r.HasCorners() {
		if len(r.Corners) != 0 {
			return fmt.Errorf("region carries %d corners, want 0 or 4", len(r.Corners))
		}
		return nil
	}
	if QuadSelfIntersects(r.Corners) {
		return fmt.Errorf("region corners self-intersect")
	}
	// One pixel of slack: corner coordinates are geometric while the bbox
	// is a pixel rectangle whose Max edge is exclusive.
	qb := quadBounds(r.Corners).Inset(-1)
	if !r.BBox.Empty() && !r.BBox.In(qb) {
		return fmt.Errorf("region corners %v do not enclose bounding box %v", qb, r.BBox)
	}
	return nil
}

// RectifiedPatch is a perspective-corrected, canonical-size grayscale image
// of a plate candidate. It keeps a back-reference to the Region it was
// derived from and is never mutated once produced.
type RectifiedPatch struct {
	Image  *image.Gray
	Region Region
}

// Bounds returns the pixel bounds of the patch image.
func (p *RectifiedPatch) Bounds() image.Rectangle {
	if p == nil || p.Image == nil {
		return image.Rectangle{}
	}
	return p.Image.Bounds()
}

// TextCandidate is one OCR fragment extracted from a rectified patch.
type TextCandidate struct {
	Text       string
	Confidence float64
	Patch      *RectifiedPatch
}

// DetectionResult is the unit handed to the persistence sink: one validated
// (or audit-retained) plate reading per surviving Region. Constructed once
// by the orchestrator and immutable thereafter.
type DetectionResult struct {
	ID         string           `json:"id"`
	PlateText  string           `json:"plate_text"`
	Confidence float64          `json:"confidence"`
	Status     ValidationStatus `json:"status"`
	Source     RegionSource     `json:"source"`
	FrameID    string           `json:"frame_id"`
	FrameTime  time.Time        `json:"frame_time"`
	PatchPath  string           `json:"patch_path,omitempty"`
}

// NewDetectionID returns a fresh identifier for a detection record.
func NewDetectionID() string {
	return uuid.NewString()
}
