package locate

import (
	"image"
	"math"

	"github.com/platewatch-data/platewatch/internal/vision"
)

// Morphological close kernel. Plates are wide, so the kernel is wider than
// tall: it bridges the gaps between character strokes into one blob without
// merging vertically separated structures.
const (
	closeKernelWidth  = 9
	closeKernelHeight = 3
)

// FallbackLocate is the geometric localization path used when the model
// detector returns no qualifying candidates: gradient magnitude, Otsu
// threshold, morphological close, connected components, then an
// aspect-ratio and area filter. Surviving components become Regions with a
// synthetic confidence derived from how closely the component fills its
// corner quadrilateral (contour regularity).
func FallbackLocate(gray *image.Gray, p Params) []vision.Region {
	b := gray.Bounds()
	if b.Dx() < 3 || b.Dy() < 3 {
		return nil
	}

	grad := gradientMagnitude(gray)
	binary := vision.Binarize(grad, vision.OtsuThreshold(vision.Histogram(grad)))
	closed := erode(dilate(binary, closeKernelWidth, closeKernelHeight), closeKernelWidth, closeKernelHeight)

	var regions []vision.Region
	for _, c := range connectedComponents(closed) {
		w, h := c.bbox.Dx(), c.bbox.Dy()
		if c.area < p.MinArea || w < p.MinWidth || h < p.MinHeight {
			continue
		}
		if (p.MaxWidth > 0 && w > p.MaxWidth) || (p.MaxHeight > 0 && h > p.MaxHeight) {
			continue
		}
		aspect := float64(w) / float64(h)
		if aspect < p.MinAspect || aspect > p.MaxAspect {
			continue
		}

		corners := c.cornerQuad()
		// Fill ratio of the component within its box approximates how
		// rectangular the underlying contour is; a clean plate blob fills
		// most of its box, noise does not.
		fill := float64(c.area) / float64(w*h)
		regions = append(regions, vision.Region{
			BBox:       quadBBox(corners),
			Corners:    corners,
			Confidence: fill,
			Source:     vision.RegionSourceFallback,
		})
	}
	return regions
}

// gradientMagnitude computes a Sobel gradient magnitude image. Horizontal
// gradients are weighted double: plate characters produce dense vertical
// strokes, so |Gx| carries most of the plate signal.
func gradientMagnitude(img *image.Gray) *image.Gray {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	out := image.NewGray(image.Rect(0, 0, w, h))

	for y := 1; y < h-1; y++ {
		prev := img.Pix[(y-1)*img.Stride:]
		cur := img.Pix[y*img.Stride:]
		next := img.Pix[(y+1)*img.Stride:]
		dst := out.Pix[y*out.Stride:]
		for x := 1; x < w-1; x++ {
			gx := int(prev[x+1]) + 2*int(cur[x+1]) + int(next[x+1]) -
				int(prev[x-1]) - 2*int(cur[x-1]) - int(next[x-1])
			gy := int(next[x-1]) + 2*int(next[x]) + int(next[x+1]) -
				int(prev[x-1]) - 2*int(prev[x]) - int(prev[x+1])
			mag := (2*abs(gx) + abs(gy)) / 8
			if mag > 255 {
				mag = 255
			}
			dst[x] = uint8(mag)
		}
	}
	return out
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// dilate grows white areas with a kw x kh rectangular structuring element,
// implemented as separable horizontal and vertical passes.
func dilate(img *image.Gray, kw, kh int) *image.Gray {
	return verticalMax(horizontalMax(img, kw/2), kh/2)
}

// erode shrinks white areas with a kw x kh rectangular structuring element.
func erode(img *image.Gray, kw, kh int) *image.Gray {
	return verticalMin(horizontalMin(img, kw/2), kh/2)
}

func horizontalMax(img *image.Gray, r int) *image.Gray {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	out := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		src := img.Pix[y*img.Stride : y*img.Stride+w]
		dst := out.Pix[y*out.Stride : y*out.Stride+w]
		for x := 0; x < w; x++ {
			var m uint8
			for dx := -r; dx <= r; dx++ {
				if x+dx >= 0 && x+dx < w && src[x+dx] > m {
					m = src[x+dx]
				}
			}
			dst[x] = m
		}
	}
	return out
}

func verticalMax(img *image.Gray, r int) *image.Gray {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	out := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		dst := out.Pix[y*out.Stride : y*out.Stride+w]
		for x := 0; x < w; x++ {
			var m uint8
			for dy := -r; dy <= r; dy++ {
				if y+dy >= 0 && y+dy < h {
					if v := img.Pix[(y+dy)*img.Stride+x]; v > m {
						m = v
					}
				}
			}
			dst[x] = m
		}
	}
	return out
}

func horizontalMin(img *image.Gray, r int) *image.Gray {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	out := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		src := img.Pix[y*img.Stride : y*img.Stride+w]
		dst := out.Pix[y*out.Stride : y*out.Stride+w]
		for x := 0; x < w; x++ {
			m := uint8(255)
			for dx := -r; dx <= r; dx++ {
				if x+dx < 0 || x+dx >= w {
					m = 0
					break
				}
				if src[x+dx] < m {
					m = src[x+dx]
				}
			}
			dst[x] = m
		}
	}
	return out
}

func verticalMin(img *image.Gray, r int) *image.Gray {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	out := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		dst := out.Pix[y*out.Stride : y*out.Stride+w]
		for x := 0; x < w; x++ {
			m := uint8(255)
			for dy := -r; dy <= r; dy++ {
				if y+dy < 0 || y+dy >= h {
					m = 0
					break
				}
				if v := img.Pix[(y+dy)*img.Stride+x]; v < m {
					m = v
				}
			}
			dst[x] = m
		}
	}
	return out
}

// component is one 4-connected white blob in a binary image.
type component struct {
	bbox image.Rectangle
	area int

	// Extremal pixels used to estimate the corner quadrilateral of a
	// possibly rotated plate: argmin/argmax of x+y and x-y.
	minSum, maxSum   image.Point // x+y extremes: top-left / bottom-right
	minDiff, maxDiff image.Point // x-y extremes: bottom-left / top-right
}

// cornerQuad estimates the TL, TR, BR, BL corners of the component from
// its extremal pixels.
func (c *component) cornerQuad() []vision.Point {
	return []vision.Point{
		{X: float64(c.minSum.X), Y: float64(c.minSum.Y)},
		{X: float64(c.maxDiff.X), Y: float64(c.maxDiff.Y)},
		{X: float64(c.maxSum.X), Y: float64(c.maxSum.Y)},
		{X: float64(c.minDiff.X), Y: float64(c.minDiff.Y)},
	}
}

// connectedComponents labels 4-connected white blobs with an iterative
// flood fill (explicit stack, no recursion on large frames).
func connectedComponents(binary *image.Gray) []*component {
	b := binary.Bounds()
	w, h := b.Dx(), b.Dy()
	visited := make([]bool, w*h)
	var comps []*component
	var stack []image.Point

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if visited[y*w+x] || binary.Pix[y*binary.Stride+x] == 0 {
				continue
			}
			c := &component{
				bbox:    image.Rect(x, y, x+1, y+1),
				minSum:  image.Pt(x, y),
				maxSum:  image.Pt(x, y),
				minDiff: image.Pt(x, y),
				maxDiff: image.Pt(x, y),
			}
			stack = append(stack[:0], image.Pt(x, y))
			visited[y*w+x] = true
			for len(stack) > 0 {
				p := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				c.absorb(p)
				for _, q := range [4]image.Point{
					{p.X + 1, p.Y}, {p.X - 1, p.Y}, {p.X, p.Y + 1}, {p.X, p.Y - 1},
				} {
					if q.X < 0 || q.X >= w || q.Y < 0 || q.Y >= h {
						continue
					}
					idx := q.Y*w + q.X
					if !visited[idx] && binary.Pix[q.Y*binary.Stride+q.X] != 0 {
						visited[idx] = true
						stack = append(stack, q)
					}
				}
			}
			comps = append(comps, c)
		}
	}
	return comps
}

func (c *component) absorb(p image.Point) {
	c.area++
	if p.X < c.bbox.Min.X {
		c.bbox.Min.X = p.X
	}
	if p.Y < c.bbox.Min.Y {
		c.bbox.Min.Y = p.Y
	}
	if p.X >= c.bbox.Max.X {
		c.bbox.Max.X = p.X + 1
	}
	if p.Y >= c.bbox.Max.Y {
		c.bbox.Max.Y = p.Y + 1
	}
	if p.X+p.Y < c.minSum.X+c.minSum.Y {
		c.minSum = p
	}
	if p.X+p.Y > c.maxSum.X+c.maxSum.Y {
		c.maxSum = p
	}
	if p.X-p.Y < c.minDiff.X-c.minDiff.Y {
		c.minDiff = p
	}
	if p.X-p.Y > c.maxDiff.X-c.maxDiff.Y {
		c.maxDiff = p
	}
}

// quadBBox returns the integer bounding box of a corner quadrilateral so
// the Region invariant (corners enclose the bbox) holds by construction.
func quadBBox(q []vision.Point) image.Rectangle {
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, p := range q {
		minX = math.Min(minX, p.X)
		minY = math.Min(minY, p.Y)
		maxX = math.Max(maxX, p.X)
		maxY = math.Max(maxY, p.Y)
	}
	return image.Rect(int(minX), int(minY), int(math.Ceil(maxX))+1, int(math.Ceil(maxY))+1)
}
