// Package rectify maps a quadrilateral plate region onto a canonical
// fronto-parallel rectangle.
//
// The mapping is a projective homography estimated from the region's four
// corner correspondences (direct linear transform). The patch is produced
// by inverse-mapping every target pixel through the homography and
// bilinearly sampling the source frame.
package rectify

import (
	"errors"
	"image"

	"gonum.org/v1/gonum/mat"

	"github.com/platewatch-data/platewatch/internal/vision"
)

var (
	// ErrNoCorners means the region carries fewer than four usable points
	// and none could be synthesized from its bounding box.
	ErrNoCorners = errors.New("rectify: region has no usable corners")
	// ErrDegenerateGeometry means the corners are collinear or the
	// homography is singular or ill-conditioned.
	ErrDegenerateGeometry = errors.New("rectify: degenerate region geometry")
)

// Triangle-area tolerance for the collinearity pre-check. Scaled for
// pixel coordinates: three corners spanning less than ~1 px² of area are
// treated as one line.
const collinearAreaTol = 1.0

// minDeterminant rejects homographies that are numerically singular.
const minDeterminant = 1e-9

// Rectify resamples the region of the frame into a width x height
// grayscale patch. When the region has no corner points they are
// synthesized from the bounding box. Fails with ErrNoCorners or
// ErrDegenerateGeometry; sibling regions of the same frame are unaffected
// by a failure here.
func Rectify(frame vision.Frame, region vision.Region, width, height int) (*vision.RectifiedPatch, error) {
	if width <= 0 || height <= 0 {
		return nil, errors.New("rectify: non-positive patch dimensions")
	}
	corners := region.Corners
	if len(corners) != 4 {
		if region.BBox.Empty() {
			return nil, ErrNoCorners
		}
		corners = vision.RegionFromBBox(region.BBox, region.Confidence, region.Source).Corners
	}
	if degenerateCorners(corners) {
		return nil, ErrDegenerateGeometry
	}

	h, err := homography(targetCorners(width, height), corners)
	if err != nil {
		return nil, err
	}

	if frame.Empty() {
		return nil, ErrNoCorners
	}
	src := vision.Grayscale(frame.Image)
	out := image.NewGray(image.Rect(0, 0, width, height))
	for v := 0; v < height; v++ {
		for u := 0; u < width; u++ {
			x, y, ok := h.apply(float64(u), float64(v))
			if !ok {
				continue
			}
			out.Pix[v*out.Stride+u] = sampleBilinear(src, x, y)
		}
	}
	return &vision.RectifiedPatch{Image: out, Region: region}, nil
}

// degenerateCorners reports whether any three of the four corners are
// collinear, or two corners coincide.
func degenerateCorners(q []vision.Point) bool {
	for i := 0; i < 4; i++ {
		for j := i + 1; j < 4; j++ {
			if q[i] == q[j] {
				return true
			}
		}
	}
	idx := [4][3]int{{0, 1, 2}, {0, 1, 3}, {0, 2, 3}, {1, 2, 3}}
	for _, t := range idx {
		if vision.Collinear(q[t[0]], q[t[1]], q[t[2]], collinearAreaTol) {
			return true
		}
	}
	return false
}

// targetCorners lists the canonical rectangle's corners in TL, TR, BR, BL
// order, matching Region corner ordering.
func targetCorners(width, height int) []vision.Point {
	w, h := float64(width-1), float64(height-1)
	return []vision.Point{{X: 0, Y: 0}, {X: w, Y: 0}, {X: w, Y: h}, {X: 0, Y: h}}
}

// hmat is a 3x3 projective transform with h33 fixed to 1.
type hmat [8]float64

// apply maps (u, v) through the homography. ok is false when the point
// maps to the plane at infinity.
func (h hmat) apply(u, v float64) (x, y float64, ok bool) {
	w := h[6]*u + h[7]*v + 1
	if w == 0 {
		return 0, 0, false
	}
	return (h[0]*u + h[1]*v + h[2]) / w, (h[3]*u + h[4]*v + h[5]) / w, true
}

// det3 returns the determinant of the full 3x3 matrix.
func (h hmat) det3() float64 {
	return h[0]*(h[4]-h[5]*h[7]) - h[1]*(h[3]-h[5]*h[6]) + h[2]*(h[3]*h[7]-h[4]*h[6])
}

// homography solves the direct linear transform for the projective map
// taking each src[i] to dst[i]. Four point pairs give eight equations in
// the eight unknowns of the normalized homography.
func homography(src, dst []vision.Point) (hmat, error) {
	var a mat.Dense
	a.ReuseAs(8, 8)
	b := mat.NewVecDense(8, nil)

	for i := 0; i < 4; i++ {
		sx, sy := src[i].X, src[i].Y
		dx, dy := dst[i].X, dst[i].Y
		a.SetRow(2*i, []float64{sx, sy, 1, 0, 0, 0, -sx * dx, -sy * dx})
		a.SetRow(2*i+1, []float64{0, 0, 0, sx, sy, 1, -sx * dy, -sy * dy})
		b.SetVec(2*i, dx)
		b.SetVec(2*i+1, dy)
	}

	var sol mat.VecDense
	if err := sol.SolveVec(&a, b); err != nil {
		return hmat{}, ErrDegenerateGeometry
	}

	var h hmat
	for i := range h {
		h[i] = sol.AtVec(i)
	}
	if d := h.det3(); d < minDeterminant && d > -minDeterminant {
		return hmat{}, ErrDegenerateGeometry
	}
	return h, nil
}

// sampleBilinear samples the source image at a sub-pixel position,
// clamping to the image border.
func sampleBilinear(img *image.Gray, x, y float64) uint8 {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return 0
	}

	x -= float64(b.Min.X)
	y -= float64(b.Min.Y)
	x0 := int(x)
	y0 := int(y)
	fx := x - float64(x0)
	fy := y - float64(y0)

	clamp := func(v, hi int) int {
		if v < 0 {
			return 0
		}
		if v > hi {
			return hi
		}
		return v
	}
	x0 = clamp(x0, w-1)
	y0 = clamp(y0, h-1)
	x1 := clamp(x0+1, w-1)
	y1 := clamp(y0+1, h-1)

	p00 := float64(img.Pix[y0*img.Stride+x0])
	p10 := float64(img.Pix[y0*img.Stride+x1])
	p01 := float64(img.Pix[y1*img.Stride+x0])
	p11 := float64(img.Pix[y1*img.Stride+x1])

	top := p00 + (p10-p00)*fx
	bot := p01 + (p11-p01)*fx
	v := top + (bot-top)*fy
	if v < 0 {
		v = 0
	}
	if v > 255 {
		v = 255
	}
	return uint8(v + 0.5)
}
