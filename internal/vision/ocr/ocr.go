// Package ocr extracts text candidates from rectified plate patches.
//
// Recognition runs behind the Engine capability interface so backends can
// be swapped at startup; the packaged backend wraps Tesseract. The
// extractor applies its own secondary preprocessing (upscale + binarize)
// tuned for plate text before handing the patch to the engine.
package ocr

import (
	"context"
	"fmt"
	"image"
	"strings"

	"github.com/platewatch-data/platewatch/internal/vision"
)

// Fragment is one recognized piece of text with its confidence in [0, 1].
type Fragment struct {
	Text       string
	Confidence float64
}

// Engine is the capability interface for OCR backends.
type Engine interface {
	// Recognize returns all text fragments found in the image. An empty
	// slice is a normal result; an error means the engine itself failed.
	Recognize(ctx context.Context, img image.Image) ([]Fragment, error)
	Close() error
}

// Extractor runs an Engine over rectified patches. It holds no per-frame
// state; concurrent use is safe as long as the Engine is.
type Extractor struct {
	engine       Engine
	resizeFactor float64
	binarize     bool
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithResizeFactor overrides the pre-OCR upscale factor (default 2.0;
// values <= 1 disable scaling).
func WithResizeFactor(f float64) Option {
	return func(e *Extractor) { e.resizeFactor = f }
}

// WithBinarize toggles Otsu binarization before recognition (default on).
func WithBinarize(enabled bool) Option {
	return func(e *Extractor) { e.binarize = enabled }
}

// NewExtractor returns an Extractor over the given engine.
func NewExtractor(engine Engine, opts ...Option) *Extractor {
	e := &Extractor{
		engine:       engine,
		resizeFactor: 2.0,
		binarize:     true,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract runs OCR over the patch and returns all candidates with their
// per-fragment confidence. It does not decide acceptance; an empty slice
// is a valid result when the patch carries no recognizable text.
func (e *Extractor) Extract(ctx context.Context, patch *vision.RectifiedPatch) ([]vision.TextCandidate, error) {
	if patch == nil || patch.Image == nil {
		return nil, nil
	}

	prepared := PrepareForOCR(patch.Image, e.resizeFactor, e.binarize)
	fragments, err := e.engine.Recognize(ctx, prepared)
	if err != nil {
		return nil, fmt.Errorf("ocr engine: %w", err)
	}

	candidates := make([]vision.TextCandidate, 0, len(fragments))
	for _, f := range fragments {
		text := strings.TrimSpace(f.Text)
		if text == "" {
			continue
		}
		candidates = append(candidates, vision.TextCandidate{
			Text:       text,
			Confidence: f.Confidence,
			Patch:      patch,
		})
	}
	return candidates, nil
}
