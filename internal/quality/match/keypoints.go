package match

import (
	"fmt"
	"slices"

	"github.com/banshee-data/quality.report/internal/annotation"
	"github.com/banshee-data/quality.report/internal/quality/similarity"
	"github.com/banshee-data/quality.report/internal/quality/skeleton"
)

// Extent is the bounding box of an annotation's geometry. Skeletons use
// their non-absent element points; tags have no extent.
func Extent(a annotation.Annotation) similarity.BBox {
	switch a.Kind {
	case annotation.KindBox:
		return similarity.BoxFromCorners(a.Points)
	case annotation.KindSkeleton:
		var pts []float64
		for _, el := range a.Elements {
			if el.PointCount() == 0 || el.VisibilityAt(0) == annotation.VisibilityAbsent {
				continue
			}
			pts = append(pts, el.Points[0], el.Points[1])
		}
		return similarity.BBoxOf(pts)
	case annotation.KindTag:
		return similarity.BBox{}
	}
	return similarity.BBoxOf(a.Points)
}

// keypointSet is a points annotation or a flattened skeleton together with
// the extent used to gate and scale OKS.
type keypointSet struct {
	points   []float64
	visible  []bool
	instance similarity.BBox
}

func instanceBox(e Entry, own similarity.BBox) similarity.BBox {
	if e.InstanceBox != nil {
		return *e.InstanceBox
	}
	return own
}

func visibleMask(a annotation.Annotation) []bool {
	if len(a.Visibility) == 0 {
		return nil
	}
	mask := make([]bool, a.PointCount())
	for i := range mask {
		mask[i] = a.VisibilityAt(i) == annotation.VisibilityVisible
	}
	return mask
}

func (m *Matcher) matchPoints(a, b []Entry) Result {
	toSets := func(entries []Entry) []keypointSet {
		sets := make([]keypointSet, len(entries))
		for i, e := range entries {
			sets[i] = keypointSet{
				points:   e.Annotation.Points,
				visible:  visibleMask(e.Annotation),
				instance: instanceBox(e, similarity.BBoxOf(e.Annotation.Points)),
			}
		}
		return sets
	}
	return m.matchKeypoints(annotation.KindPoints, a, b, toSets(a), toSets(b))
}

func (m *Matcher) matchSkeletons(a, b []Entry) (Result, error) {
	setsA, err := m.flatten(a, m.opts.TaxonomyA)
	if err != nil {
		return Result{}, err
	}
	setsB, err := m.flatten(b, m.opts.TaxonomyB)
	if err != nil {
		return Result{}, err
	}
	return m.matchKeypoints(annotation.KindSkeleton, a, b, setsA, setsB), nil
}

// flatten turns skeleton entries into keypoint sets. The flattened records
// keep their owner index, which is the entry index.
func (m *Matcher) flatten(entries []Entry, labels *annotation.Taxonomy) ([]keypointSet, error) {
	if labels == nil {
		return nil, fmt.Errorf("skeleton matching requires a taxonomy")
	}
	skeletons := make([]annotation.Annotation, len(entries))
	for i, e := range entries {
		skeletons[i] = e.Annotation
	}
	flat, err := skeleton.FlattenAll(skeletons, labels, m.skeletons)
	if err != nil {
		return nil, err
	}
	sets := make([]keypointSet, len(entries))
	for _, kp := range flat {
		e := entries[kp.Owner]
		sets[kp.Owner] = keypointSet{
			points:   kp.Points,
			visible:  kp.Visible(),
			instance: instanceBox(e, kp.BBox()),
		}
	}
	return sets, nil
}

// matchKeypoints scores pairs with OKS. Pairs whose instance boxes do not
// overlap score 0 without evaluating OKS.
func (m *Matcher) matchKeypoints(kind annotation.Kind, a, b []Entry, setsA, setsB []keypointSet) Result {
	return m.bipartite(kind, a, b, func(i, j int) float64 {
		sa, sb := setsA[i], setsB[j]
		if !instancesOverlap(sa.instance, sb.instance) {
			return 0
		}
		ref := similarity.MeanBBox(sa.instance, sb.instance)
		return similarity.OKS(sa.points, sb.points, similarity.OKSOptions{
			Sigma:    m.opts.Sigma,
			Sigmas:   sigmas(a[i].Label.Sigmas, b[j].Label.Sigmas),
			VisibleA: sa.visible,
			VisibleB: sb.visible,
			BBox:     &ref,
		})
	})
}

// sigmas picks the per-point OKS constants of a pair. A declaration on
// either side applies; when both sides declare different values the default
// sigma is used, so the score does not depend on which side is which.
func sigmas(a, b []float64) []float64 {
	switch {
	case len(a) == 0:
		return b
	case len(b) == 0 || slices.Equal(a, b):
		return a
	}
	return nil
}

// instancesOverlap requires IoU > 0 between instance boxes with area. A box
// without area (a single point or collinear points) only needs to touch the
// other box.
func instancesOverlap(a, b similarity.BBox) bool {
	if a.Area() > 0 && b.Area() > 0 {
		return similarity.BoxIoU(a, b) > 0
	}
	return a.X1 <= b.X2 && b.X1 <= a.X2 && a.Y1 <= b.Y2 && b.Y1 <= a.Y2
}
