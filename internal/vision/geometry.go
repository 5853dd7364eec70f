package vision

import (
	"image"
	"math"
)

// IoU computes intersection-over-union of two axis-aligned boxes.
// Returns 0 when either box is empty.
func IoU(a, b image.Rectangle) float64 {
	if a.Empty() || b.Empty() {
		return 0
	}
	inter := a.Intersect(b)
	if inter.Empty() {
		return 0
	}
	interArea := float64(inter.Dx() * inter.Dy())
	union := float64(a.Dx()*a.Dy()+b.Dx()*b.Dy()) - interArea
	if union <= 0 {
		return 0
	}
	return interArea / union
}

// cross returns the z-component of (b-a) x (c-a).
func cross(a, b, c Point) float64 {
	return (b.X-a.X)*(c.Y-a.Y) - (b.Y-a.Y)*(c.X-a.X)
}

// Collinear reports whether three points lie on one line within tolerance.
// The tolerance is on the triangle area, so it scales with point spacing.
func Collinear(a, b, c Point, tol float64) bool {
	return math.Abs(cross(a, b, c)) <= tol
}

// QuadConvex reports whether four ordered points form a convex
// quadrilateral. All four cross products of consecutive edges must share a
// sign; a zero cross product (collinear corner) counts as non-convex.
func QuadConvex(q []Point) bool {
	if len(q) != 4 {
		return false
	}
	var sign float64
	for i := 0; i < 4; i++ {
		c := cross(q[i], q[(i+1)%4], q[(i+2)%4])
		if c == 0 {
			return false
		}
		if sign == 0 {
			sign = c
		} else if (sign > 0) != (c > 0) {
			return false
		}
	}
	return true
}

// QuadSelfIntersects reports whether the closed polygon TL-TR-BR-BL crosses
// itself, i.e. edge 0-1 intersects edge 2-3 or edge 1-2 intersects edge 3-0.
func QuadSelfIntersects(q []Point) bool {
	if len(q) != 4 {
		return false
	}
	return segmentsCross(q[0], q[1], q[2], q[3]) || segmentsCross(q[1], q[2], q[3], q[0])
}

// segmentsCross reports proper intersection of segments ab and cd.
func segmentsCross(a, b, c, d Point) bool {
	d1 := cross(c, d, a)
	d2 := cross(c, d, b)
	d3 := cross(a, b, c)
	d4 := cross(a, b, d)
	return ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) &&
		((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0))
}

// quadBounds returns the integer bounding rectangle of a corner set.
func quadBounds(q []Point) image.Rectangle {
	if len(q) == 0 {
		return image.Rectangle{}
	}
	minX, minY := q[0].X, q[0].Y
	maxX, maxY := q[0].X, q[0].Y
	for _, p := range q[1:] {
		minX = math.Min(minX, p.X)
		minY = math.Min(minY, p.Y)
		maxX = math.Max(maxX, p.X)
		maxY = math.Max(maxY, p.Y)
	}
	return image.Rect(
		int(math.Floor(minX)), int(math.Floor(minY)),
		int(math.Ceil(maxX)), int(math.Ceil(maxY)),
	)
}
