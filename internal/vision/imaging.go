package vision

import (
	"image"
	"image/color"
)

// Grayscale converts any image to 8-bit grayscale. If the input already is
// *image.Gray it is returned as-is (the pipeline treats images as
// immutable, so sharing the buffer is safe).
func Grayscale(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok {
		return g
	}
	b := img.Bounds()
	out := image.NewGray(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			out.Set(x, y, color.GrayModel.Convert(img.At(x, y)))
		}
	}
	return out
}

// Histogram counts pixel intensities of a grayscale image into 256 bins.
func Histogram(img *image.Gray) [256]int {
	var hist [256]int
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := img.Pix[(y-b.Min.Y)*img.Stride : (y-b.Min.Y)*img.Stride+b.Dx()]
		for _, v := range row {
			hist[v]++
		}
	}
	return hist
}

// OtsuThreshold picks the intensity threshold maximizing between-class
// variance over the histogram. Returns 127 for a degenerate (empty or
// single-level) histogram.
func OtsuThreshold(hist [256]int) uint8 {
	total := 0
	for _, c := range hist {
		total += c
	}
	if total == 0 {
		return 127
	}
	var sum float64
	for i, c := range hist {
		sum += float64(i) * float64(c)
	}

	var sumB, wB float64
	var best float64
	// The variance can plateau across an empty valley between two modes;
	// tracking both ends of the plateau and returning its midpoint keeps
	// the threshold centered between the modes.
	lo, hi := 127, 127
	for t := 0; t < 256; t++ {
		wB += float64(hist[t])
		if wB == 0 {
			continue
		}
		wF := float64(total) - wB
		if wF == 0 {
			break
		}
		sumB += float64(t) * float64(hist[t])
		mB := sumB / wB
		mF := (sum - sumB) / wF
		between := wB * wF * (mB - mF) * (mB - mF)
		if between > best {
			best = between
			lo, hi = t, t
		} else if between == best {
			hi = t
		}
	}
	return uint8((lo + hi) / 2)
}

// Binarize thresholds a grayscale image into a new image where pixels above
// the threshold become white (255) and the rest black (0).
func Binarize(img *image.Gray, threshold uint8) *image.Gray {
	b := img.Bounds()
	out := image.NewGray(b)
	for y := 0; y < b.Dy(); y++ {
		src := img.Pix[y*img.Stride : y*img.Stride+b.Dx()]
		dst := out.Pix[y*out.Stride : y*out.Stride+b.Dx()]
		for x, v := range src {
			if v > threshold {
				dst[x] = 255
			}
		}
	}
	return out
}
