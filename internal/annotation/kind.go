package annotation

import (
	"errors"
	"fmt"
)

// ErrUnsupportedKind is returned for annotation kinds the comparator has no
// handler for. Runs fail on it instead of skipping the annotation.
var ErrUnsupportedKind = errors.New("unsupported annotation kind")

// Kind is the geometric type of an annotation.
type Kind int

const (
	KindUnknown Kind = iota
	KindBox
	KindPolygon
	KindPolyline
	KindPoints
	KindMask
	KindSkeleton
	KindTag
)

var kindNames = map[Kind]string{
	KindBox:      "box",
	KindPolygon:  "polygon",
	KindPolyline: "polyline",
	KindPoints:   "points",
	KindMask:     "mask",
	KindSkeleton: "skeleton",
	KindTag:      "tag",
}

// AllKinds lists every supported kind in report order.
var AllKinds = []Kind{KindBox, KindMask, KindPoints, KindPolygon, KindPolyline, KindSkeleton, KindTag}

// DefaultKinds are compared unless configured otherwise. Tags are compared
// separately and are not part of the default set.
var DefaultKinds = []Kind{KindBox, KindMask, KindPoints, KindPolygon, KindPolyline, KindSkeleton}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Valid reports whether k is one of the supported kinds.
func (k Kind) Valid() bool {
	_, ok := kindNames[k]
	return ok
}

// ParseKind converts a kind name into a Kind.
func ParseKind(name string) (Kind, error) {
	for k, n := range kindNames {
		if n == name {
			return k, nil
		}
	}
	return KindUnknown, fmt.Errorf("%w: %q", ErrUnsupportedKind, name)
}

// MarshalText renders the kind by name.
func (k Kind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedKind, int(k))
	}
	return []byte(k.String()), nil
}

// UnmarshalText parses a kind name.
func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Visibility is the state of a single keypoint.
type Visibility int

const (
	VisibilityVisible Visibility = iota
	VisibilityHidden
	VisibilityAbsent
)

func (v Visibility) String() string {
	switch v {
	case VisibilityVisible:
		return "visible"
	case VisibilityHidden:
		return "hidden"
	case VisibilityAbsent:
		return "absent"
	}
	return fmt.Sprintf("visibility(%d)", int(v))
}

// MarshalText renders the visibility by name.
func (v Visibility) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

// UnmarshalText parses a visibility name.
func (v *Visibility) UnmarshalText(text []byte) error {
	switch string(text) {
	case "visible":
		*v = VisibilityVisible
	case "hidden":
		*v = VisibilityHidden
	case "absent":
		*v = VisibilityAbsent
	default:
		return fmt.Errorf("unknown visibility %q", string(text))
	}
	return nil
}

// Source names which of the two compared datasets an annotation belongs to.
type Source string

const (
	SourceThis        Source = "this"
	SourceGroundTruth Source = "ground_truth"
)
