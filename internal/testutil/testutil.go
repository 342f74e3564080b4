// Package testutil provides shared test utilities and fixtures.
//
// The fixture builders create annotations and datasets in the shapes the
// comparator tests need without spelling out every field.
package testutil

import (
	"testing"

	"github.com/banshee-data/quality.report/internal/annotation"
)

// AssertNoError fails the test if err is not nil.
func AssertNoError(t testing.TB, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t testing.TB, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// Box returns a box annotation spanning (x1,y1)-(x2,y2).
func Box(label int, x1, y1, x2, y2 float64) annotation.Annotation {
	return annotation.Annotation{Kind: annotation.KindBox, LabelID: label, Points: []float64{x1, y1, x2, y2}}
}

// Polygon returns a polygon annotation over the flat x,y ring.
func Polygon(label int, points ...float64) annotation.Annotation {
	return annotation.Annotation{Kind: annotation.KindPolygon, LabelID: label, Points: points}
}

// Polyline returns a polyline annotation over the flat x,y vertices.
func Polyline(label int, points ...float64) annotation.Annotation {
	return annotation.Annotation{Kind: annotation.KindPolyline, LabelID: label, Points: points}
}

// Points returns a points annotation over the flat x,y keypoints.
func Points(label int, points ...float64) annotation.Annotation {
	return annotation.Annotation{Kind: annotation.KindPoints, LabelID: label, Points: points}
}

// Tag returns a tag annotation.
func Tag(label int) annotation.Annotation {
	return annotation.Annotation{Kind: annotation.KindTag, LabelID: label}
}

// Element returns a skeleton element: one keypoint of a sublabel.
func Element(label int, x, y float64, v annotation.Visibility) annotation.Annotation {
	return annotation.Annotation{
		Kind:       annotation.KindPoints,
		LabelID:    label,
		Points:     []float64{x, y},
		Visibility: []annotation.Visibility{v},
	}
}

// Skeleton returns a skeleton container over the given elements.
func Skeleton(label int, elements ...annotation.Annotation) annotation.Annotation {
	return annotation.Annotation{Kind: annotation.KindSkeleton, LabelID: label, Elements: elements}
}

// WithAttributes returns a copy of a carrying attrs.
func WithAttributes(a annotation.Annotation, attrs map[string]any) annotation.Annotation {
	a.Attributes = attrs
	return a
}

// WithGroup returns a copy of a in group g.
func WithGroup(a annotation.Annotation, g int) annotation.Annotation {
	a.GroupID = g
	return a
}

// Labels is the taxonomy used across the comparator tests: two plain
// labels and a two-point skeleton.
func Labels() *annotation.Taxonomy {
	return annotation.MustTaxonomy(
		annotation.Label{ID: 0, Name: "car", Attributes: []string{"color"}},
		annotation.Label{ID: 1, Name: "person"},
		annotation.Label{ID: 10, Name: "body"},
		annotation.Label{ID: 11, Name: "head", Parent: annotation.ParentID(10)},
		annotation.Label{ID: 12, Name: "foot", Parent: annotation.ParentID(10)},
	)
}

// Dataset builds a dataset from frame id → annotations.
func Dataset(name string, labels *annotation.Taxonomy, frames map[string][]annotation.Annotation) *annotation.Dataset {
	var fs []annotation.Frame
	for id, anns := range frames {
		fs = append(fs, annotation.Frame{ID: id, Annotations: anns})
	}
	return annotation.NewDataset(name, labels, fs)
}
