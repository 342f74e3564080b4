package compare

import (
	"fmt"
	"sort"

	"github.com/banshee-data/quality.report/internal/annotation"
	"github.com/banshee-data/quality.report/internal/quality/attributes"
	"github.com/banshee-data/quality.report/internal/quality/match"
	"github.com/banshee-data/quality.report/internal/quality/similarity"
)

// FrameComparator compares the annotations of one frame. It holds only
// read-only state and may be shared by concurrent frame workers.
type FrameComparator struct {
	opts       Options
	included   map[annotation.Kind]bool
	matcher    *match.Matcher
	attrs      *attributes.Comparator
	gtLabels   *annotation.Taxonomy
	thisLabels *annotation.Taxonomy
}

// NewFrameComparator builds a frame comparator for datasets labelled with
// the given taxonomies. The ground truth taxonomy wins when both define the
// same skeleton.
func NewFrameComparator(opts Options, gtLabels, thisLabels *annotation.Taxonomy) *FrameComparator {
	opts = opts.withDefaults()
	if gtLabels == nil {
		gtLabels = annotation.MustTaxonomy()
	}
	if thisLabels == nil {
		thisLabels = annotation.MustTaxonomy()
	}
	c := &FrameComparator{
		opts:       opts,
		included:   make(map[annotation.Kind]bool, len(opts.IncludedKinds)),
		matcher:    match.NewMatcher(opts.matchOptions(gtLabels, thisLabels), nil),
		attrs:      attributes.NewComparator(opts.IgnoredAttributes),
		gtLabels:   gtLabels,
		thisLabels: thisLabels,
	}
	for _, k := range opts.IncludedKinds {
		c.included[k] = true
	}
	return c
}

// side is one frame's annotations of one dataset, resolved and bucketed by
// kind.
type side struct {
	entries map[annotation.Kind][]match.Entry
	count   int
}

func (c *FrameComparator) resolve(frameID string, src annotation.Source, anns []annotation.Annotation, labels *annotation.Taxonomy) (side, error) {
	s := side{entries: make(map[annotation.Kind][]match.Entry)}
	groups := make(map[int]similarity.BBox)

	for i, a := range anns {
		id := annotation.AnnotationID{Source: src, Index: i, Kind: a.Kind}
		if !a.Kind.Valid() {
			return s, &DataError{FrameID: frameID, Annotation: id, Err: fmt.Errorf("%w: %s", annotation.ErrUnsupportedKind, a.Kind)}
		}
		if !c.included[a.Kind] {
			continue
		}
		label, ok := labels.Lookup(a.LabelID)
		if !ok {
			return s, &DataError{FrameID: frameID, Annotation: id, Err: fmt.Errorf("%w: label id %d", annotation.ErrUnknownLabel, a.LabelID)}
		}
		for _, el := range a.Elements {
			if _, ok := labels.Lookup(el.LabelID); !ok {
				return s, &DataError{FrameID: frameID, Annotation: id, Err: fmt.Errorf("%w: element label id %d", annotation.ErrUnknownLabel, el.LabelID)}
			}
		}

		s.entries[a.Kind] = append(s.entries[a.Kind], match.Entry{
			Index:      i,
			Annotation: a,
			Label:      label,
			LabelName:  labels.QualifiedName(label),
		})
		s.count++

		if a.Grouped() && a.Kind != annotation.KindTag {
			ext := match.Extent(a)
			if g, ok := groups[a.GroupID]; ok {
				ext = g.Union(ext)
			}
			groups[a.GroupID] = ext
		}
	}

	// Every member of a group sees the extent of the whole group.
	for _, list := range s.entries {
		for i := range list {
			if !list[i].Annotation.Grouped() {
				continue
			}
			if box, ok := groups[list[i].Annotation.GroupID]; ok {
				list[i].InstanceBox = &box
			}
		}
	}
	return s, nil
}

// Compare matches gt against this kind by kind and classifies the outcome.
// The inputs are not modified.
func (c *FrameComparator) Compare(frameID string, gt, this []annotation.Annotation) (*FrameResult, error) {
	gtSide, err := c.resolve(frameID, annotation.SourceGroundTruth, gt, c.gtLabels)
	if err != nil {
		return nil, err
	}
	thisSide, err := c.resolve(frameID, annotation.SourceThis, this, c.thisLabels)
	if err != nil {
		return nil, err
	}

	res := &FrameResult{
		GTAnnotationsCount:   gtSide.count,
		ThisAnnotationsCount: thisSide.count,
		Conflicts:            []AnnotationConflict{},
	}
	for _, kind := range c.opts.IncludedKinds {
		a, b := gtSide.entries[kind], thisSide.entries[kind]
		if len(a) == 0 && len(b) == 0 {
			continue
		}
		mr, err := c.matcher.Match(kind, a, b)
		if err != nil {
			return nil, fmt.Errorf("frame %q: match %s: %w", frameID, kind, err)
		}
		c.classify(frameID, a, b, mr, res)
	}

	res.AnnotationAccuracy = ratio(res.ValidAnnotationsCount, res.ComparedAnnotationsCount)
	res.AttributeAccuracy = ratio(res.ValidAttributesCount, res.ComparedAttributesCount)
	res.OverallAccuracy = ratio(res.ValidAnnotationsCount+res.ValidAttributesCount,
		res.ComparedAnnotationsCount+res.ComparedAttributesCount)
	res.ErrorCount = len(res.Conflicts)
	return res, nil
}

// classify turns one kind's match result into counts and conflicts.
func (c *FrameComparator) classify(frameID string, a, b []match.Entry, mr match.Result, res *FrameResult) {
	res.MatchedCount += len(mr.Matched)
	res.MismatchedCount += len(mr.Mismatched)
	res.MissingCount += len(mr.UnmatchedA)
	res.ExtraCount += len(mr.UnmatchedB)
	res.ComparedAnnotationsCount += mr.Compared()

	conflict := func(t ConflictType, data ConflictData) {
		res.Conflicts = append(res.Conflicts, AnnotationConflict{FrameID: frameID, Type: t, Data: data})
	}

	for _, p := range mr.Matched {
		ea, eb := a[p.A], b[p.B]
		ar := c.attrs.Compare(ea.Annotation.Attributes, eb.Annotation.Attributes)
		res.ComparedAttributesCount += ar.Total()
		res.ValidAttributesCount += len(ar.Matches)
		if ar.Discrepancies() == 0 {
			res.ValidAnnotationsCount++
			continue
		}

		keys := make([]string, 0, ar.Discrepancies())
		keys = append(keys, ar.Mismatches...)
		keys = append(keys, ar.ExtraA...)
		keys = append(keys, ar.ExtraB...)
		sort.Strings(keys)
		for _, k := range keys {
			conflict(ConflictMismatchingAnnotation, ConflictData{
				AnnotationIDs: []annotation.AnnotationID{gtID(ea), thisID(eb)},
				Kind:          MismatchAttribute,
				Attribute:     k,
				Expected:      ea.Annotation.Attributes[k],
				Actual:        eb.Annotation.Attributes[k],
			})
		}
	}

	// A same-label pair below the threshold takes its slot without a
	// conflict and without counting as valid.
	for _, p := range mr.Mismatched {
		ea, eb := a[p.A], b[p.B]
		if ea.LabelName == eb.LabelName {
			continue
		}
		conflict(ConflictMismatchingAnnotation, ConflictData{
			AnnotationIDs: []annotation.AnnotationID{gtID(ea), thisID(eb)},
			Kind:          MismatchLabel,
			Expected:      ea.LabelName,
			Actual:        eb.LabelName,
		})
	}

	for _, i := range mr.UnmatchedA {
		conflict(ConflictMissingAnnotation, ConflictData{
			AnnotationIDs: []annotation.AnnotationID{gtID(a[i])},
		})
	}
	for _, j := range mr.UnmatchedB {
		conflict(ConflictExtraAnnotation, ConflictData{
			AnnotationIDs: []annotation.AnnotationID{thisID(b[j])},
		})
	}
}

func gtID(e match.Entry) annotation.AnnotationID {
	return annotation.AnnotationID{Source: annotation.SourceGroundTruth, Index: e.Index, Kind: e.Annotation.Kind}
}

func thisID(e match.Entry) annotation.AnnotationID {
	return annotation.AnnotationID{Source: annotation.SourceThis, Index: e.Index, Kind: e.Annotation.Kind}
}

// ratio divides with a zero denominator replaced by 1.
func ratio(n, d int) float64 {
	if d == 0 {
		d = 1
	}
	return float64(n) / float64(d)
}
