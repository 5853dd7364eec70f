package ocr

import (
	"image"
	"math"

	xdraw "golang.org/x/image/draw"

	"github.com/platewatch-data/platewatch/internal/vision"
)

// PrepareForOCR applies the secondary preprocessing pass tuned for plate
// text: upscale by factor (bilinear), then Otsu binarization. Recognition
// engines deal far better with large, high-contrast glyphs than with raw
// camera patches.
func PrepareForOCR(img *image.Gray, factor float64, binarize bool) *image.Gray {
	out := img
	if factor > 1 {
		out = scaleGray(out, factor)
	}
	if binarize {
		out = vision.Binarize(out, vision.OtsuThreshold(vision.Histogram(out)))
	}
	return out
}

// scaleGray resizes a grayscale image by the given factor using bilinear
// interpolation.
func scaleGray(img *image.Gray, factor float64) *image.Gray {
	b := img.Bounds()
	w := int(math.Round(float64(b.Dx()) * factor))
	h := int(math.Round(float64(b.Dy()) * factor))
	if w < 1 || h < 1 {
		return img
	}
	out := image.NewGray(image.Rect(0, 0, w, h))
	xdraw.BiLinear.Scale(out, out.Bounds(), img, b, xdraw.Src, nil)
	return out
}
