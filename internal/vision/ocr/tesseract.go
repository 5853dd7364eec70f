package ocr

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"strings"
	"sync"

	"github.com/otiai10/gosseract/v2"
)

// TesseractEngine recognizes text via a local Tesseract installation.
// The underlying client is not safe for concurrent use, so Recognize
// serializes behind a mutex.
type TesseractEngine struct {
	mu     sync.Mutex
	client *gosseract.Client
}

// NewTesseractEngine starts a Tesseract client configured for the given
// language set and character whitelist. An empty language list defaults to
// English; an empty whitelist leaves Tesseract's full alphabet enabled.
func NewTesseractEngine(languages []string, whitelist string) (*TesseractEngine, error) {
	client := gosseract.NewClient()
	if len(languages) == 0 {
		languages = []string{"eng"}
	}
	if err := client.SetLanguage(languages...); err != nil {
		client.Close()
		return nil, fmt.Errorf("set ocr languages %v: %w", languages, err)
	}
	// Plates are a single line of text.
	if err := client.SetPageSegMode(gosseract.PSM_SINGLE_LINE); err != nil {
		client.Close()
		return nil, fmt.Errorf("set page segmentation mode: %w", err)
	}
	if whitelist != "" {
		if err := client.SetWhitelist(whitelist); err != nil {
			client.Close()
			return nil, fmt.Errorf("set ocr whitelist: %w", err)
		}
	}
	return &TesseractEngine{client: client}, nil
}

// Recognize returns per-word fragments with Tesseract's confidence scaled
// to [0, 1].
func (t *TesseractEngine) Recognize(ctx context.Context, img image.Image) ([]Fragment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode patch: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.client.SetImageFromBytes(buf.Bytes()); err != nil {
		return nil, fmt.Errorf("set image: %w", err)
	}
	boxes, err := t.client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return nil, fmt.Errorf("recognize: %w", err)
	}

	fragments := make([]Fragment, 0, len(boxes))
	for _, box := range boxes {
		word := strings.TrimSpace(box.Word)
		if word == "" {
			continue
		}
		fragments = append(fragments, Fragment{
			Text:       word,
			Confidence: box.Confidence / 100.0,
		})
	}
	return fragments, nil
}

// Close releases the Tesseract client.
func (t *TesseractEngine) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.client.Close()
}
