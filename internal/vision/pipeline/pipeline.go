// Package pipeline orchestrates the detection flow for a single camera:
// preprocess, localize, rectify, extract, validate, persist.
//
// This package is the composition root: it imports the stage packages
// (preprocess, locate, rectify, ocr, validate) and the sink adapter, but
// none of those packages import pipeline/. Each frame moves strictly
// forward through the stages; a failure in one region never aborts its
// siblings, and only resource-level failures (detector or OCR backend
// unavailable) surface as errors from ProcessFrame.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/platewatch-data/platewatch/internal/config"
	"github.com/platewatch-data/platewatch/internal/vision"
	"github.com/platewatch-data/platewatch/internal/vision/locate"
	"github.com/platewatch-data/platewatch/internal/vision/ocr"
	"github.com/platewatch-data/platewatch/internal/vision/preprocess"
	"github.com/platewatch-data/platewatch/internal/vision/rectify"
	"github.com/platewatch-data/platewatch/internal/vision/validate"
)

// Sink receives completed detection records. Implementations must tolerate
// concurrent Record calls and own their write serialization.
type Sink interface {
	Record(ctx context.Context, result *vision.DetectionResult) error
}

// PatchStore persists rectified patches for audit and review. Optional;
// a nil store leaves DetectionResult.PatchPath empty.
type PatchStore interface {
	SavePatch(detectionID string, patch *vision.RectifiedPatch) (string, error)
}

// ErrSinkWrite marks a detection that could not be persisted. The
// in-memory result is still returned to the caller, never silently
// dropped; Run logs these and keeps the pipeline alive.
var ErrSinkWrite = errors.New("pipeline: sink write failed")

// Orchestrator sequences the pipeline stages per frame. Configuration is
// snapshotted from the store at the start of each invocation, so runtime
// updates take effect on the next frame. The orchestrator keeps no
// per-frame state; only rolling statistics survive across frames.
type Orchestrator struct {
	cfg       *config.Store
	localizer *locate.Localizer
	engine    ocr.Engine
	sink      Sink
	patches   PatchStore

	stats statsState
	bus   broadcaster
}

// New builds an Orchestrator. detector may be nil (fallback-only
// localization); engine may be nil (regions are rejected with empty text);
// sink may be nil (results are returned but not persisted); patches may be
// nil (no patch files written).
func New(cfg *config.Store, detector locate.Detector, engine ocr.Engine, sink Sink, patches PatchStore) *Orchestrator {
	if cfg == nil {
		cfg = config.NewStore(nil)
	}
	o := &Orchestrator{
		cfg:       cfg,
		localizer: locate.NewLocalizer(detector),
		engine:    engine,
		sink:      sink,
		patches:   patches,
	}
	o.bus.init()
	return o
}

// ProcessFrame runs one frame through the full pipeline and returns every
// DetectionResult produced. Region-local failures are logged and skipped.
// The error is non-nil only for resource-level failures (detector or OCR
// backend) or when one or more sink writes failed, in which case it wraps
// ErrSinkWrite and the returned results are still complete.
func (o *Orchestrator) ProcessFrame(ctx context.Context, frame vision.Frame) ([]vision.DetectionResult, error) {
	start := time.Now()
	snap := o.cfg.Snapshot()

	if frame.Empty() {
		o.stats.recordFrame(time.Since(start))
		return nil, nil
	}

	pre := preprocess.Preprocess(frame, snap.GetEnhanceContrast())

	regions, err := o.localizer.Locate(ctx, pre, localizeParams(snap))
	if err != nil {
		o.stats.recordFrame(time.Since(start))
		return nil, fmt.Errorf("localize frame %s: %w", frame.ID, err)
	}
	if len(regions) == 0 {
		tracef("frame %s: no candidate regions", frame.ID)
		o.stats.recordFrame(time.Since(start))
		return nil, nil
	}
	tracef("frame %s: %d candidate regions", frame.ID, len(regions))

	var (
		results  []vision.DetectionResult
		sinkErrs []error
	)
	for i, region := range regions {
		result, err := o.processRegion(ctx, snap, pre, region)
		if err != nil {
			if isRegionLocal(err) {
				diagf("frame %s region %d discarded: %v", frame.ID, i, err)
				continue
			}
			// Detector/OCR backend failure or cancellation: abandon the
			// frame. Partial results are never persisted past this point.
			o.stats.recordFrame(time.Since(start))
			return results, fmt.Errorf("frame %s region %d: %w", frame.ID, i, err)
		}

		shouldPersist := o.sink != nil &&
			(result.Status != vision.StatusRejected || snap.GetPersistRejected())
		if shouldPersist {
			if err := ctx.Err(); err != nil {
				o.stats.recordFrame(time.Since(start))
				return results, err
			}
			if err := o.sink.Record(ctx, &result); err != nil {
				opsf("frame %s: record detection %s failed: %v", frame.ID, result.ID, err)
				sinkErrs = append(sinkErrs, err)
			}
		}

		results = append(results, result)
		o.bus.publish(result)
		o.stats.recordDetection(result.Status)
	}

	o.stats.recordFrame(time.Since(start))
	if len(sinkErrs) > 0 {
		return results, fmt.Errorf("%w: %v", ErrSinkWrite, errors.Join(sinkErrs...))
	}
	return results, nil
}

// processRegion takes one region from rectification through validation.
func (o *Orchestrator) processRegion(ctx context.Context, snap *config.TuningConfig, frame vision.Frame, region vision.Region) (vision.DetectionResult, error) {
	patch, err := rectify.Rectify(frame, region, snap.GetPatchWidth(), snap.GetPatchHeight())
	if err != nil {
		return vision.DetectionResult{}, err
	}

	var candidates []vision.TextCandidate
	if o.engine != nil {
		extractor := ocr.NewExtractor(o.engine,
			ocr.WithResizeFactor(snap.GetOCRResizeFactor()),
			ocr.WithBinarize(snap.GetOCRBinarize()))
		candidates, err = extractor.Extract(ctx, patch)
		if err != nil {
			return vision.DetectionResult{}, err
		}
	}

	// No text found is a rejected record with empty text, not a discard,
	// so the miss stays visible for audit.
	verdict := validate.Result{Status: vision.StatusRejected}
	if len(candidates) > 0 {
		verdict = validate.Validate(candidates, plateRules(snap))
	}

	result := vision.DetectionResult{
		ID:         vision.NewDetectionID(),
		PlateText:  verdict.Text,
		Confidence: verdict.Confidence,
		Status:     verdict.Status,
		Source:     region.Source,
		FrameID:    frame.ID,
		FrameTime:  frame.CapturedAt,
	}

	if o.patches != nil {
		path, err := o.patches.SavePatch(result.ID, patch)
		if err != nil {
			opsf("save patch for %s: %v", result.ID, err)
		} else {
			result.PatchPath = path
		}
	}
	return result, nil
}

// isRegionLocal reports whether err discards only the offending region.
func isRegionLocal(err error) bool {
	return errors.Is(err, rectify.ErrNoCorners) || errors.Is(err, rectify.ErrDegenerateGeometry)
}

// localizeParams maps the config snapshot onto localizer parameters.
// Detector width/height bounds are operational constants, not user-tunable.
func localizeParams(snap *config.TuningConfig) locate.Params {
	p := locate.DefaultParams()
	p.ConfidenceThreshold = snap.GetConfidenceThreshold()
	p.IoUThreshold = snap.GetIoUThreshold()
	p.MaxRegions = snap.GetMaxRegions()
	p.MinAspect = snap.GetMinAspectRatio()
	p.MaxAspect = snap.GetMaxAspectRatio()
	p.MinArea = snap.GetMinRegionArea()
	return p
}

// plateRules maps the config snapshot onto validation rules.
func plateRules(snap *config.TuningConfig) validate.Rules {
	return validate.Rules{
		Alphabet:       snap.GetPlateAlphabet(),
		Separators:     snap.GetPlateSeparators(),
		MinLength:      snap.GetMinPlateLength(),
		MaxLength:      snap.GetMaxPlateLength(),
		LowConfidence:  snap.GetLowConfidence(),
		HighConfidence: snap.GetHighConfidence(),
	}
}
