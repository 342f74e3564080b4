package annotation

import "fmt"

// Annotation is one geometric entity on a frame.
//
// Points holds flat x,y pairs whose meaning depends on Kind: two corners for
// a box, the ring for polygons and masks, the vertices for polylines and the
// keypoints for points. Skeleton containers keep their keypoints in Elements,
// one per sublabel, and leave Points empty.
type Annotation struct {
	Kind       Kind           `json:"kind"`
	LabelID    int            `json:"label_id"`
	Points     []float64      `json:"points,omitempty"`
	Attributes map[string]any `json:"attributes,omitempty"`
	GroupID    int            `json:"group,omitempty"`
	ZOrder     int            `json:"z_order,omitempty"`
	Elements   []Annotation   `json:"elements,omitempty"`
	Visibility []Visibility   `json:"visibility,omitempty"`
}

// PointCount is the number of x,y pairs in Points.
func (a Annotation) PointCount() int {
	return len(a.Points) / 2
}

// Grouped reports whether the annotation belongs to a multi-part instance.
func (a Annotation) Grouped() bool {
	return a.GroupID != 0
}

// VisibilityAt returns the visibility of point i. Points without an explicit
// state are visible.
func (a Annotation) VisibilityAt(i int) Visibility {
	if i < len(a.Visibility) {
		return a.Visibility[i]
	}
	return VisibilityVisible
}

// AnnotationID references an annotation in a report by source, ordinal index
// within its frame and kind. It is never used to look annotations up by value.
type AnnotationID struct {
	Source Source `json:"source"`
	Index  int    `json:"index"`
	Kind   Kind   `json:"kind"`
}

func (id AnnotationID) String() string {
	return fmt.Sprintf("%s:%s#%d", id.Source, id.Kind, id.Index)
}
