// Package preprocess normalizes captured frames before plate localization.
//
// Preprocess is a pure function of its input: it never fails, never mutates
// the source frame, and produces identical output for identical input.
package preprocess

import (
	"image"

	"github.com/platewatch-data/platewatch/internal/vision"
)

// contrast stretch ignores the darkest and brightest tails so a few hot or
// dead pixels cannot collapse the output range.
const stretchTailFraction = 0.02

// Preprocess converts a frame to grayscale and, when enhanceContrast is
// set, additionally applies a 3x3 median denoise and a percentile contrast
// stretch. Inapplicable operations degrade to pass-through: an
// already-grayscale frame with enhanceContrast=false is returned unchanged,
// which makes the operation idempotent in that mode.
func Preprocess(frame vision.Frame, enhanceContrast bool) vision.Frame {
	if frame.Empty() {
		return frame
	}
	gray := vision.Grayscale(frame.Image)
	if !enhanceContrast {
		if gray == frame.Image {
			return frame
		}
		return frame.WithImage(gray)
	}
	out := stretchContrast(medianDenoise(gray))
	return frame.WithImage(out)
}

// medianDenoise applies a 3x3 median filter. Border pixels are copied
// unchanged.
func medianDenoise(img *image.Gray) *image.Gray {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	out := image.NewGray(image.Rect(0, 0, w, h))
	if w < 3 || h < 3 {
		copyPixels(out, img)
		return out
	}
	copyPixels(out, img)

	var window [9]uint8
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			k := 0
			for dy := -1; dy <= 1; dy++ {
				row := img.Pix[(y+dy)*img.Stride:]
				window[k] = row[x-1]
				window[k+1] = row[x]
				window[k+2] = row[x+1]
				k += 3
			}
			out.Pix[y*out.Stride+x] = median9(window)
		}
	}
	return out
}

// median9 returns the median of nine values via insertion sort; cheaper
// than sort.Slice for a fixed tiny window.
func median9(w [9]uint8) uint8 {
	for i := 1; i < 9; i++ {
		v := w[i]
		j := i - 1
		for j >= 0 && w[j] > v {
			w[j+1] = w[j]
			j--
		}
		w[j+1] = v
	}
	return w[4]
}

// stretchContrast maps the [low, high] percentile band of intensities onto
// the full [0, 255] range. A flat image (high == low) passes through.
func stretchContrast(img *image.Gray) *image.Gray {
	hist := vision.Histogram(img)
	total := 0
	for _, c := range hist {
		total += c
	}
	if total == 0 {
		return img
	}

	tail := int(float64(total) * stretchTailFraction)
	low, high := 0, 255
	acc := 0
	for i := 0; i < 256; i++ {
		acc += hist[i]
		if acc > tail {
			low = i
			break
		}
	}
	acc = 0
	for i := 255; i >= 0; i-- {
		acc += hist[i]
		if acc > tail {
			high = i
			break
		}
	}
	if high <= low {
		return img
	}

	var lut [256]uint8
	scale := 255.0 / float64(high-low)
	for i := range lut {
		switch {
		case i <= low:
			lut[i] = 0
		case i >= high:
			lut[i] = 255
		default:
			lut[i] = uint8(float64(i-low)*scale + 0.5)
		}
	}

	b := img.Bounds()
	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		src := img.Pix[y*img.Stride : y*img.Stride+b.Dx()]
		dst := out.Pix[y*out.Stride : y*out.Stride+b.Dx()]
		for x, v := range src {
			dst[x] = lut[v]
		}
	}
	return out
}

func copyPixels(dst, src *image.Gray) {
	b := src.Bounds()
	for y := 0; y < b.Dy(); y++ {
		copy(dst.Pix[y*dst.Stride:y*dst.Stride+b.Dx()], src.Pix[y*src.Stride:y*src.Stride+b.Dx()])
	}
}
