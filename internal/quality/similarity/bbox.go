// Package similarity computes geometric similarity scores in [0, 1] between
// two annotations of a compatible kind.
package similarity

import "math"

// BBox is an axis-aligned rectangle with X1 <= X2 and Y1 <= Y2.
type BBox struct {
	X1, Y1, X2, Y2 float64
}

// BBoxOf returns the bounding box of flat x,y pairs. The zero BBox is
// returned for an empty list.
func BBoxOf(points []float64) BBox {
	if len(points) < 2 {
		return BBox{}
	}
	b := BBox{X1: points[0], Y1: points[1], X2: points[0], Y2: points[1]}
	for i := 2; i+1 < len(points); i += 2 {
		b = b.extend(points[i], points[i+1])
	}
	return b
}

// BoxFromCorners builds a box annotation rectangle from its two corners in
// either order.
func BoxFromCorners(points []float64) BBox {
	if len(points) < 4 {
		return BBox{}
	}
	return BBox{
		X1: math.Min(points[0], points[2]),
		Y1: math.Min(points[1], points[3]),
		X2: math.Max(points[0], points[2]),
		Y2: math.Max(points[1], points[3]),
	}
}

func (b BBox) extend(x, y float64) BBox {
	b.X1 = math.Min(b.X1, x)
	b.Y1 = math.Min(b.Y1, y)
	b.X2 = math.Max(b.X2, x)
	b.Y2 = math.Max(b.Y2, y)
	return b
}

// Width of the box.
func (b BBox) Width() float64 { return b.X2 - b.X1 }

// Height of the box.
func (b BBox) Height() float64 { return b.Y2 - b.Y1 }

// Area of the box.
func (b BBox) Area() float64 {
	return b.Width() * b.Height()
}

// Diagonal length of the box.
func (b BBox) Diagonal() float64 {
	return math.Hypot(b.Width(), b.Height())
}

// Union is the smallest box containing both boxes.
func (b BBox) Union(o BBox) BBox {
	return BBox{
		X1: math.Min(b.X1, o.X1),
		Y1: math.Min(b.Y1, o.Y1),
		X2: math.Max(b.X2, o.X2),
		Y2: math.Max(b.Y2, o.Y2),
	}
}

// Intersect returns the overlap of both boxes and whether it is non-empty.
func (b BBox) Intersect(o BBox) (BBox, bool) {
	r := BBox{
		X1: math.Max(b.X1, o.X1),
		Y1: math.Max(b.Y1, o.Y1),
		X2: math.Min(b.X2, o.X2),
		Y2: math.Min(b.Y2, o.Y2),
	}
	if r.X1 >= r.X2 || r.Y1 >= r.Y2 {
		return BBox{}, false
	}
	return r, true
}

// Overlaps reports whether the boxes share a region of positive area.
func (b BBox) Overlaps(o BBox) bool {
	_, ok := b.Intersect(o)
	return ok
}

// MeanBBox averages the corners of two boxes.
func MeanBBox(a, b BBox) BBox {
	return BBox{
		X1: (a.X1 + b.X1) / 2,
		Y1: (a.Y1 + b.Y1) / 2,
		X2: (a.X2 + b.X2) / 2,
		Y2: (a.Y2 + b.Y2) / 2,
	}
}
