// Package skeleton flattens skeleton instances into keypoint lists with a
// canonical sublabel order so they can be scored with OKS.
package skeleton

import (
	"fmt"

	"github.com/banshee-data/quality.report/internal/annotation"
	"github.com/banshee-data/quality.report/internal/quality/similarity"
)

// OrderCache maps a skeleton label name to its sublabel names, ordered by
// sublabel id. It is built once per run and only read afterwards, so frame
// workers can share it without locking.
type OrderCache struct {
	orders map[string][]string
}

// NewOrderCache collects the sublabel order of every skeleton label. The
// first taxonomy wins for labels present in several; pass the reference
// taxonomy first so both sides flatten in its order.
func NewOrderCache(taxonomies ...*annotation.Taxonomy) *OrderCache {
	c := &OrderCache{orders: make(map[string][]string)}
	for _, tax := range taxonomies {
		if tax == nil {
			continue
		}
		for _, l := range tax.Labels() {
			if l.HasParent() {
				continue
			}
			if _, seen := c.orders[l.Name]; seen {
				continue
			}
			subs := tax.Sublabels(l.ID)
			if len(subs) == 0 {
				continue
			}
			names := make([]string, len(subs))
			for i, s := range subs {
				names[i] = s.Name
			}
			c.orders[l.Name] = names
		}
	}
	return c
}

// Order returns the sublabel order of a skeleton label.
func (c *OrderCache) Order(skeletonLabel string) ([]string, bool) {
	order, ok := c.orders[skeletonLabel]
	return order, ok
}

// Keypoints is a skeleton flattened into one keypoint record. Owner is the
// index of the source skeleton in the slice passed to FlattenAll.
type Keypoints struct {
	Owner      int
	LabelID    int
	Points     []float64
	Visibility []annotation.Visibility
}

// Visible reports, per point, whether the point is marked visible. Hidden
// and absent points carry no position evidence.
func (k Keypoints) Visible() []bool {
	out := make([]bool, len(k.Visibility))
	for i, v := range k.Visibility {
		out[i] = v == annotation.VisibilityVisible
	}
	return out
}

// BBox is the bounding box of the points that are not absent.
func (k Keypoints) BBox() similarity.BBox {
	var present []float64
	for i, v := range k.Visibility {
		if v != annotation.VisibilityAbsent {
			present = append(present, k.Points[2*i], k.Points[2*i+1])
		}
	}
	return similarity.BBoxOf(present)
}

// Flatten concatenates the skeleton's elements in the given sublabel order.
// Missing sublabels become a zero point marked absent.
func Flatten(sk annotation.Annotation, labels *annotation.Taxonomy, order []string, owner int) (Keypoints, error) {
	if sk.Kind != annotation.KindSkeleton {
		return Keypoints{}, fmt.Errorf("%w: expected skeleton, got %s", annotation.ErrUnsupportedKind, sk.Kind)
	}

	byName := make(map[string]annotation.Annotation, len(sk.Elements))
	for _, el := range sk.Elements {
		l, ok := labels.Lookup(el.LabelID)
		if !ok {
			return Keypoints{}, fmt.Errorf("skeleton element label %d: %w", el.LabelID, annotation.ErrUnknownLabel)
		}
		byName[l.Name] = el
	}

	kp := Keypoints{
		Owner:      owner,
		LabelID:    sk.LabelID,
		Points:     make([]float64, 0, 2*len(order)),
		Visibility: make([]annotation.Visibility, 0, len(order)),
	}
	for _, name := range order {
		el, ok := byName[name]
		if !ok || el.PointCount() == 0 {
			kp.Points = append(kp.Points, 0, 0)
			kp.Visibility = append(kp.Visibility, annotation.VisibilityAbsent)
			continue
		}
		kp.Points = append(kp.Points, el.Points[0], el.Points[1])
		kp.Visibility = append(kp.Visibility, el.VisibilityAt(0))
	}
	return kp, nil
}

// FlattenAll flattens a list of skeletons. The order of each skeleton is
// looked up by its label name; skeletons whose label has no sublabels
// flatten to an empty record.
func FlattenAll(skeletons []annotation.Annotation, labels *annotation.Taxonomy, cache *OrderCache) ([]Keypoints, error) {
	out := make([]Keypoints, len(skeletons))
	for i, sk := range skeletons {
		l, ok := labels.Lookup(sk.LabelID)
		if !ok {
			return nil, fmt.Errorf("skeleton label %d: %w", sk.LabelID, annotation.ErrUnknownLabel)
		}
		order, _ := cache.Order(l.Name)
		kp, err := Flatten(sk, labels, order, i)
		if err != nil {
			return nil, err
		}
		out[i] = kp
	}
	return out, nil
}
