package annotation

import (
	"errors"
	"fmt"
	"sort"
)

// ErrUnknownLabel is returned when an annotation references a label id that
// is not part of its dataset's taxonomy.
var ErrUnknownLabel = errors.New("unknown label")

// Label is one entry of a label taxonomy. Skeleton sublabels point at their
// skeleton label through Parent; top-level labels leave it nil, so any id,
// including 0, can be a skeleton.
type Label struct {
	ID         int       `json:"id"`
	Name       string    `json:"name"`
	Parent     *int      `json:"parent,omitempty"`
	Attributes []string  `json:"attributes,omitempty"`
	Sigmas     []float64 `json:"sigmas,omitempty"` // optional per-point OKS sigmas
}

// ParentID returns a Parent reference to the label with the given id.
func ParentID(id int) *int {
	return &id
}

// HasParent reports whether l is a sublabel.
func (l Label) HasParent() bool {
	return l.Parent != nil
}

// Taxonomy is an ordered set of labels. Label identity across datasets is by
// qualified name, so two datasets may number their labels differently.
type Taxonomy struct {
	labels []Label
	byID   map[int]int
	byName map[string]int
}

// NewTaxonomy indexes labels. Duplicate ids or duplicate qualified names are
// rejected.
func NewTaxonomy(labels []Label) (*Taxonomy, error) {
	t := &Taxonomy{
		labels: make([]Label, len(labels)),
		byID:   make(map[int]int, len(labels)),
		byName: make(map[string]int, len(labels)),
	}
	copy(t.labels, labels)

	for i, l := range t.labels {
		if _, dup := t.byID[l.ID]; dup {
			return nil, fmt.Errorf("duplicate label id %d", l.ID)
		}
		t.byID[l.ID] = i
	}
	for i, l := range t.labels {
		if l.HasParent() {
			if *l.Parent == l.ID {
				return nil, fmt.Errorf("label %q is its own parent", l.Name)
			}
			if _, ok := t.byID[*l.Parent]; !ok {
				return nil, fmt.Errorf("label %q: parent %d: %w", l.Name, *l.Parent, ErrUnknownLabel)
			}
		}
		name := t.QualifiedName(l)
		if _, dup := t.byName[name]; dup {
			return nil, fmt.Errorf("duplicate label name %q", name)
		}
		t.byName[name] = i
	}
	return t, nil
}

// MustTaxonomy is NewTaxonomy for fixtures; it panics on error.
func MustTaxonomy(labels ...Label) *Taxonomy {
	t, err := NewTaxonomy(labels)
	if err != nil {
		panic(err)
	}
	return t
}

// Labels returns the labels in declaration order.
func (t *Taxonomy) Labels() []Label {
	out := make([]Label, len(t.labels))
	copy(out, t.labels)
	return out
}

// Lookup resolves a label id.
func (t *Taxonomy) Lookup(id int) (Label, bool) {
	i, ok := t.byID[id]
	if !ok {
		return Label{}, false
	}
	return t.labels[i], true
}

// LookupName resolves a qualified name ("skeleton/sublabel" for sublabels).
func (t *Taxonomy) LookupName(name string) (Label, bool) {
	i, ok := t.byName[name]
	if !ok {
		return Label{}, false
	}
	return t.labels[i], true
}

// QualifiedName is the cross-dataset identity of a label.
func (t *Taxonomy) QualifiedName(l Label) string {
	if !l.HasParent() {
		return l.Name
	}
	if i, ok := t.byID[*l.Parent]; ok {
		return t.labels[i].Name + "/" + l.Name
	}
	return l.Name
}

// Sublabels returns the children of parentID sorted by label id.
func (t *Taxonomy) Sublabels(parentID int) []Label {
	var out []Label
	for _, l := range t.labels {
		if l.HasParent() && *l.Parent == parentID {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
