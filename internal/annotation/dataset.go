package annotation

import "sort"

// Frame is one annotated image or video frame.
type Frame struct {
	ID          string       `json:"id"`
	Annotations []Annotation `json:"annotations"`
}

// Dataset is a read-only set of annotated frames sharing one taxonomy.
type Dataset struct {
	Name   string
	Labels *Taxonomy
	Frames []Frame

	index map[string]int
}

// NewDataset builds a dataset. Later frames with a repeated id replace
// earlier ones in lookups.
func NewDataset(name string, labels *Taxonomy, frames []Frame) *Dataset {
	d := &Dataset{Name: name, Labels: labels, Frames: frames}
	d.index = make(map[string]int, len(frames))
	for i, f := range frames {
		d.index[f.ID] = i
	}
	return d
}

// Frame returns the frame with the given id.
func (d *Dataset) Frame(id string) (Frame, bool) {
	i, ok := d.index[id]
	if !ok {
		return Frame{}, false
	}
	return d.Frames[i], true
}

// FrameIDs returns the distinct frame ids in sorted order.
func (d *Dataset) FrameIDs() []string {
	ids := make([]string, 0, len(d.index))
	for id := range d.index {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// FrameCount is the number of distinct frames.
func (d *Dataset) FrameCount() int {
	return len(d.index)
}

// SharedFrameIDs returns the sorted ids present in both datasets.
func SharedFrameIDs(a, b *Dataset) []string {
	var ids []string
	for _, id := range a.FrameIDs() {
		if _, ok := b.index[id]; ok {
			ids = append(ids, id)
		}
	}
	return ids
}

// AnnotationCount counts annotations of the given kinds over the whole dataset.
func (d *Dataset) AnnotationCount(kinds []Kind) int {
	include := kindSet(kinds)
	n := 0
	for _, id := range d.FrameIDs() {
		f, _ := d.Frame(id)
		for _, a := range f.Annotations {
			if include[a.Kind] {
				n++
			}
		}
	}
	return n
}

// AttributeCount counts the non-ignored attributes carried by annotations of
// the given kinds over the whole dataset.
func (d *Dataset) AttributeCount(kinds []Kind, ignored []string) int {
	include := kindSet(kinds)
	skip := make(map[string]bool, len(ignored))
	for _, k := range ignored {
		skip[k] = true
	}
	n := 0
	for _, id := range d.FrameIDs() {
		f, _ := d.Frame(id)
		for _, a := range f.Annotations {
			if !include[a.Kind] {
				continue
			}
			for k := range a.Attributes {
				if !skip[k] {
					n++
				}
			}
		}
	}
	return n
}

func kindSet(kinds []Kind) map[Kind]bool {
	set := make(map[Kind]bool, len(kinds))
	for _, k := range kinds {
		set[k] = true
	}
	return set
}
