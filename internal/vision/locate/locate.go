// Package locate finds candidate plate regions in a frame.
//
// Localization runs a primary model-based detector behind the Detector
// interface; when the model yields no qualifying candidates a geometric
// fallback (gradient, morphology, connected components) takes over. Both
// paths emit vision.Region values ordered by descending confidence and
// deduplicated by intersection-over-union.
package locate

import (
	"context"
	"fmt"
	"image"
	"sort"

	"github.com/platewatch-data/platewatch/internal/vision"
)

// Detector is the capability interface for model-based plate detection.
// Implementations are selected at startup; the pipeline depends only on
// this contract.
type Detector interface {
	// Detect returns plate regions with confidence at or above threshold,
	// in any order. An empty slice is a normal result. An error means the
	// detector itself is unavailable, which is fatal to the caller.
	Detect(ctx context.Context, img image.Image, threshold float64) ([]vision.Region, error)
}

// Params are the runtime-adjustable localization settings. They are read
// once per Locate call, so concurrent invocations with different settings
// cannot interfere.
type Params struct {
	ConfidenceThreshold float64 // minimum model confidence for a candidate
	IoUThreshold        float64 // overlap above which two regions are duplicates
	MaxRegions          int     // cap on regions returned per frame

	// Geometric fallback filters.
	MinAspect float64 // minimum bbox width/height ratio
	MaxAspect float64 // maximum bbox width/height ratio
	MinArea   int     // minimum component area in pixels
	MinWidth  int     // minimum bbox width in pixels
	MinHeight int     // minimum bbox height in pixels
	MaxWidth  int     // maximum bbox width in pixels
	MaxHeight int     // maximum bbox height in pixels
}

// DefaultParams mirror the tuning defaults: plates are wide rectangles
// (aspect roughly 2:1 to 6:1) of at least 1000 px.
func DefaultParams() Params {
	return Params{
		ConfidenceThreshold: 0.5,
		IoUThreshold:        0.4,
		MaxRegions:          10,
		MinAspect:           2.0,
		MaxAspect:           6.0,
		MinArea:             1000,
		MinWidth:            80,
		MinHeight:           20,
		MaxWidth:            400,
		MaxHeight:           200,
	}
}

// Localizer sequences the primary detector and the geometric fallback.
// It is stateless across calls: every invocation operates only on its
// arguments.
type Localizer struct {
	detector Detector // nil runs the fallback only
}

// NewLocalizer returns a Localizer backed by the given detector. A nil
// detector disables the model path entirely (fallback-only operation).
func NewLocalizer(d Detector) *Localizer {
	return &Localizer{detector: d}
}

// Locate finds candidate plate regions in the frame, ordered by descending
// confidence and deduplicated by IoU. An empty frame yields an empty
// result. Only a detector transport/runtime failure returns an error.
func (l *Localizer) Locate(ctx context.Context, frame vision.Frame, p Params) ([]vision.Region, error) {
	if frame.Empty() {
		return nil, nil
	}

	var regions []vision.Region
	if l.detector != nil {
		detected, err := l.detector.Detect(ctx, frame.Image, p.ConfidenceThreshold)
		if err != nil {
			return nil, fmt.Errorf("model detector: %w", err)
		}
		for _, r := range detected {
			if r.Confidence >= p.ConfidenceThreshold {
				r.Source = vision.RegionSourceModel
				regions = append(regions, r)
			}
		}
	}

	if len(regions) == 0 {
		regions = FallbackLocate(vision.Grayscale(frame.Image), p)
	}

	regions = dedupe(regions, p.IoUThreshold)
	if p.MaxRegions > 0 && len(regions) > p.MaxRegions {
		regions = regions[:p.MaxRegions]
	}
	return regions, nil
}

// dedupe sorts regions by descending confidence and suppresses any region
// overlapping an already-kept region above the IoU threshold.
func dedupe(regions []vision.Region, iouThreshold float64) []vision.Region {
	if len(regions) < 2 {
		return regions
	}
	sort.SliceStable(regions, func(i, j int) bool {
		return regions[i].Confidence > regions[j].Confidence
	})
	kept := regions[:0:0]
	for _, r := range regions {
		overlaps := false
		for _, k := range kept {
			if vision.IoU(r.BBox, k.BBox) > iouThreshold {
				overlaps = true
				break
			}
		}
		if !overlaps {
			kept = append(kept, r)
		}
	}
	return kept
}
