package similarity

import (
	"image"
	"math"

	"golang.org/x/image/vector"
)

// The raster used for polygon IoU has at least minRasterSide pixels along the
// longer side of the extent and at most maxRasterPixels in total. Small or
// normalised geometry is scaled up, larger extents are scaled down uniformly.
const (
	minRasterSide   = 512
	maxRasterPixels = 2048 * 2048
)

// BoxIoU is the intersection over union of two rectangles. It returns 0 when
// the boxes do not overlap or either has no area.
func BoxIoU(a, b BBox) float64 {
	inter, ok := a.Intersect(b)
	if !ok {
		return 0
	}
	areaA, areaB := a.Area(), b.Area()
	if areaA <= 0 || areaB <= 0 {
		return 0
	}
	i := inter.Area()
	union := areaA + areaB - i
	if union <= 0 {
		return 0
	}
	return i / union
}

// PolygonIoU rasterises both rings over their common extent and returns the
// coverage-weighted intersection over union. Rings with fewer than three
// vertices have no area and score 0.
func PolygonIoU(a, b []float64) float64 {
	if len(a) < 6 || len(b) < 6 {
		return 0
	}
	boxA, boxB := BBoxOf(a), BBoxOf(b)
	if !boxA.Overlaps(boxB) {
		return 0
	}
	g := newGrid(boxA.Union(boxB))
	return g.iou(g.fillPolygon(a), g.fillPolygon(b))
}

// PolylineIoU widens each polyline into a band of thickness
// relThickness × diagonal of the common extent (at least one raster pixel)
// and compares the bands like polygons.
func PolylineIoU(a, b []float64, relThickness float64) float64 {
	if len(a) < 4 || len(b) < 4 {
		return 0
	}
	extent := BBoxOf(a).Union(BBoxOf(b))
	half := relThickness * extent.Diagonal() / 2

	// Pad so the band edges stay inside the raster.
	g := newGrid(pad(extent, half))
	if minHalf := 0.5 / g.scale; half < minHalf {
		half = minHalf
		g = newGrid(pad(extent, half))
	}
	return g.iou(g.fillPolyline(a, half), g.fillPolyline(b, half))
}

func pad(b BBox, d float64) BBox {
	return BBox{X1: b.X1 - d, Y1: b.Y1 - d, X2: b.X2 + d, Y2: b.Y2 + d}
}

// grid maps annotation coordinates onto a raster.
type grid struct {
	originX, originY float64
	scale            float64
	w, h             int
}

func newGrid(extent BBox) grid {
	ox, oy := math.Floor(extent.X1), math.Floor(extent.Y1)
	w := math.Max(math.Ceil(extent.X2)-ox, 1)
	h := math.Max(math.Ceil(extent.Y2)-oy, 1)
	scale := 1.0
	// Integer upscaling keeps integer coordinates on pixel boundaries.
	if side := math.Max(w, h); side < minRasterSide {
		scale = math.Ceil(minRasterSide / side)
	}
	if w*h*scale*scale > maxRasterPixels {
		scale = math.Sqrt(maxRasterPixels / (w * h))
	}
	return grid{
		originX: ox,
		originY: oy,
		scale:   scale,
		w:       max(int(math.Ceil(w*scale)), 1),
		h:       max(int(math.Ceil(h*scale)), 1),
	}
}

func (g grid) xy(x, y float64) (float32, float32) {
	return float32((x - g.originX) * g.scale), float32((y - g.originY) * g.scale)
}

func (g grid) draw(z *vector.Rasterizer) *image.Alpha {
	dst := image.NewAlpha(image.Rect(0, 0, g.w, g.h))
	z.Draw(dst, dst.Bounds(), image.Opaque, image.Point{})
	return dst
}

func (g grid) fillPolygon(points []float64) *image.Alpha {
	z := vector.NewRasterizer(g.w, g.h)
	z.MoveTo(g.xy(points[0], points[1]))
	for i := 2; i+1 < len(points); i += 2 {
		z.LineTo(g.xy(points[i], points[i+1]))
	}
	z.ClosePath()
	return g.draw(z)
}

// fillPolyline draws one quad per segment. Every quad winds the same way so
// overlapping bands accumulate instead of cancelling.
func (g grid) fillPolyline(points []float64, half float64) *image.Alpha {
	z := vector.NewRasterizer(g.w, g.h)
	for i := 0; i+3 < len(points); i += 2 {
		x1, y1, x2, y2 := points[i], points[i+1], points[i+2], points[i+3]
		dx, dy := x2-x1, y2-y1
		length := math.Hypot(dx, dy)
		if length == 0 {
			continue
		}
		nx, ny := -dy/length*half, dx/length*half
		z.MoveTo(g.xy(x1+nx, y1+ny))
		z.LineTo(g.xy(x2+nx, y2+ny))
		z.LineTo(g.xy(x2-nx, y2-ny))
		z.LineTo(g.xy(x1-nx, y1-ny))
		z.ClosePath()
	}
	return g.draw(z)
}

func (g grid) iou(a, b *image.Alpha) float64 {
	var inter, union float64
	for i := range a.Pix {
		pa, pb := float64(a.Pix[i]), float64(b.Pix[i])
		inter += math.Min(pa, pb)
		union += math.Max(pa, pb)
	}
	if union == 0 {
		return 0
	}
	return inter / union
}
