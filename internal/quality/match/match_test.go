package match

import (
	"errors"
	"math/rand"
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/quality.report/internal/annotation"
	"github.com/banshee-data/quality.report/internal/quality/similarity"
	"github.com/banshee-data/quality.report/internal/quality/skeleton"
)

func box(index int, label string, x1, y1, x2, y2 float64) Entry {
	return Entry{
		Index:      index,
		Annotation: annotation.Annotation{Kind: annotation.KindBox, Points: []float64{x1, y1, x2, y2}},
		Label:      annotation.Label{Name: label},
		LabelName:  label,
	}
}

func newMatcher() *Matcher {
	return NewMatcher(Options{}, skeleton.NewOrderCache())
}

func TestMatch_Boxes(t *testing.T) {
	a := []Entry{
		box(0, "car", 0, 0, 10, 10),
		box(1, "car", 100, 100, 110, 110),
		box(2, "car", 50, 50, 60, 60),
	}
	b := []Entry{
		box(0, "car", 50, 50, 60, 61),
		box(1, "car", 0, 0, 10, 10),
		box(2, "car", 300, 300, 310, 310),
	}

	r, err := newMatcher().Match(annotation.KindBox, a, b)
	require.NoError(t, err)

	assert.Equal(t, []Pair{{A: 0, B: 1, Similarity: 1}, {A: 2, B: 0, Similarity: 100.0 / 110.0}}, r.Matched)
	assert.Empty(t, r.Mismatched)
	assert.Equal(t, []int{1}, r.UnmatchedA)
	assert.Equal(t, []int{2}, r.UnmatchedB)
	assert.Equal(t, 4, r.Compared())
}

func TestMatch_ThresholdBoundary(t *testing.T) {
	m := newMatcher()
	ref := []Entry{box(0, "car", 0, 0, 10, 10)}

	// IoU exactly 0.5 is accepted.
	r, err := m.Match(annotation.KindBox, ref, []Entry{box(0, "car", 0, 0, 10, 5)})
	require.NoError(t, err)
	require.Len(t, r.Matched, 1)
	assert.Equal(t, 0.5, r.Matched[0].Similarity)

	// Just below is a mismatch, still a correspondence.
	r, err = m.Match(annotation.KindBox, ref, []Entry{box(0, "car", 0, 0, 10, 4.999)})
	require.NoError(t, err)
	assert.Empty(t, r.Matched)
	require.Len(t, r.Mismatched, 1)
	assert.Empty(t, r.UnmatchedA)
	assert.Empty(t, r.UnmatchedB)
}

func TestMatch_KindThresholdOverride(t *testing.T) {
	m := NewMatcher(Options{KindThresholds: map[annotation.Kind]float64{annotation.KindBox: 0.3}}, nil)
	assert.Equal(t, 0.3, m.Threshold(annotation.KindBox))
	assert.Equal(t, DefaultThreshold, m.Threshold(annotation.KindPolygon))
	assert.Equal(t, DefaultThreshold, m.Threshold(annotation.KindPoints))

	r, err := m.Match(annotation.KindBox, []Entry{box(0, "car", 0, 0, 10, 10)}, []Entry{box(0, "car", 0, 0, 10, 4)})
	require.NoError(t, err)
	assert.Len(t, r.Matched, 1)
}

func TestMatch_CrossLabelIsMismatched(t *testing.T) {
	r, err := newMatcher().Match(annotation.KindBox,
		[]Entry{box(0, "car", 0, 0, 10, 10)},
		[]Entry{box(0, "truck", 0, 0, 10, 10)})
	require.NoError(t, err)
	assert.Empty(t, r.Matched)
	assert.Equal(t, []Pair{{A: 0, B: 0, Similarity: 1}}, r.Mismatched)
}

func TestMatch_EmptySides(t *testing.T) {
	m := newMatcher()
	r, err := m.Match(annotation.KindBox, nil, []Entry{box(0, "car", 0, 0, 1, 1)})
	require.NoError(t, err)
	assert.Equal(t, []int{0}, r.UnmatchedB)

	r, err = m.Match(annotation.KindBox, []Entry{box(0, "car", 0, 0, 1, 1)}, nil)
	require.NoError(t, err)
	assert.Equal(t, []int{0}, r.UnmatchedA)

	r, err = m.Match(annotation.KindBox, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, r.Compared())
}

func TestMatch_KindMismatchRejected(t *testing.T) {
	_, err := newMatcher().Match(annotation.KindPolygon, []Entry{box(0, "car", 0, 0, 1, 1)}, nil)
	assert.True(t, errors.Is(err, annotation.ErrUnsupportedKind))

	_, err = newMatcher().Match(annotation.KindUnknown, nil, nil)
	assert.True(t, errors.Is(err, annotation.ErrUnsupportedKind))
}

func TestMatch_EveryKindHasHandler(t *testing.T) {
	m := NewMatcher(Options{TaxonomyA: annotation.MustTaxonomy(), TaxonomyB: annotation.MustTaxonomy()}, nil)
	for _, k := range annotation.AllKinds {
		_, err := m.Match(k, nil, nil)
		assert.NoError(t, err, "kind %s", k)
	}
}

func normalize(r Result) Result {
	sortPairs := func(ps []Pair) {
		sort.Slice(ps, func(i, j int) bool { return ps[i].A < ps[j].A })
	}
	sortPairs(r.Matched)
	sortPairs(r.Mismatched)
	return r
}

func swapped(r Result) Result {
	swap := func(ps []Pair) []Pair {
		out := make([]Pair, len(ps))
		for i, p := range ps {
			out[i] = Pair{A: p.B, B: p.A, Similarity: p.Similarity}
		}
		return out
	}
	return normalize(Result{
		Matched:    swap(r.Matched),
		Mismatched: swap(r.Mismatched),
		UnmatchedA: r.UnmatchedB,
		UnmatchedB: r.UnmatchedA,
	})
}

func TestMatch_Symmetry(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	labels := []string{"car", "bus"}
	randomBoxes := func(n int) []Entry {
		out := make([]Entry, n)
		for i := range out {
			x, y := rng.Float64()*60, rng.Float64()*60
			w, h := 5+rng.Float64()*25, 5+rng.Float64()*25
			out[i] = box(i, labels[rng.Intn(2)], x, y, x+w, y+h)
		}
		return out
	}

	m := newMatcher()
	for iter := 0; iter < 50; iter++ {
		a := randomBoxes(1 + rng.Intn(6))
		b := randomBoxes(1 + rng.Intn(6))

		ab, err := m.Match(annotation.KindBox, a, b)
		require.NoError(t, err)
		ba, err := m.Match(annotation.KindBox, b, a)
		require.NoError(t, err)

		if diff := cmp.Diff(normalize(ab), swapped(ba), cmpopts.EquateEmpty()); diff != "" {
			t.Fatalf("iteration %d: swapped match differs (-ab +ba):\n%s", iter, diff)
		}
	}
}

func TestMatch_Polygons(t *testing.T) {
	poly := func(index int, pts ...float64) Entry {
		return Entry{
			Index:      index,
			Annotation: annotation.Annotation{Kind: annotation.KindPolygon, Points: pts},
			LabelName:  "road",
		}
	}
	a := []Entry{poly(0, 0, 0, 10, 0, 10, 10, 0, 10)}
	b := []Entry{poly(0, 40, 40, 50, 40, 50, 50), poly(1, 0, 0, 10, 0, 10, 10, 0, 10)}

	r, err := newMatcher().Match(annotation.KindPolygon, a, b)
	require.NoError(t, err)
	assert.Equal(t, []Pair{{A: 0, B: 1, Similarity: 1}}, r.Matched)
	assert.Equal(t, []int{0}, r.UnmatchedB)

	masks := []Entry{{Annotation: annotation.Annotation{Kind: annotation.KindMask, Points: []float64{0, 0, 10, 0, 10, 10}}, LabelName: "road"}}
	r, err = newMatcher().Match(annotation.KindMask, masks, masks)
	require.NoError(t, err)
	assert.Len(t, r.Matched, 1)
}

func TestMatch_Polylines(t *testing.T) {
	line := Entry{Annotation: annotation.Annotation{Kind: annotation.KindPolyline, Points: []float64{0, 0, 100, 0}}, LabelName: "lane"}
	r, err := newMatcher().Match(annotation.KindPolyline, []Entry{line}, []Entry{line})
	require.NoError(t, err)
	assert.Len(t, r.Matched, 1)
}

func pointsEntry(index int, group int, pts ...float64) Entry {
	return Entry{
		Index:      index,
		Annotation: annotation.Annotation{Kind: annotation.KindPoints, Points: pts, GroupID: group},
		LabelName:  "face",
	}
}

func TestMatch_Points(t *testing.T) {
	a := []Entry{pointsEntry(0, 0, 0, 0, 10, 10)}
	b := []Entry{pointsEntry(0, 0, 0, 0, 10, 10), pointsEntry(1, 0, 200, 200, 210, 210)}

	r, err := newMatcher().Match(annotation.KindPoints, a, b)
	require.NoError(t, err)
	require.Len(t, r.Matched, 1)
	assert.InDelta(t, 1.0, r.Matched[0].Similarity, 1e-12)
	assert.Equal(t, []int{1}, r.UnmatchedB)
}

func TestMatch_PointsSigmas(t *testing.T) {
	withSigmas := func(e Entry, sigmas ...float64) Entry {
		e.Label.Sigmas = sigmas
		return e
	}
	score := func(a, b Entry) float64 {
		r, err := newMatcher().Match(annotation.KindPoints, []Entry{a}, []Entry{b})
		require.NoError(t, err)
		require.Len(t, r.Matched, 1)
		return r.Matched[0].Similarity
	}
	a := pointsEntry(0, 0, 0, 0, 10, 10)
	b := pointsEntry(0, 0, 1, 0, 10, 11)
	plain := score(a, b)

	// Sigmas declared on one side apply in both directions.
	wide := withSigmas(a, 0.5, 0.5)
	assert.InDelta(t, score(wide, b), score(b, wide), 1e-12)
	assert.Greater(t, score(wide, b), plain)

	// Disagreeing declarations fall back to the default sigma.
	narrow := withSigmas(b, 0.05, 0.05)
	assert.InDelta(t, plain, score(wide, narrow), 1e-12)
	assert.InDelta(t, plain, score(narrow, wide), 1e-12)
}

func TestMatch_PointsInstanceGate(t *testing.T) {
	// Identical points, but their groups sit in disjoint instance boxes.
	a := pointsEntry(0, 1, 5, 5, 6, 6)
	b := pointsEntry(0, 1, 5, 5, 6, 6)
	boxA := similarity.BBox{X1: 0, Y1: 0, X2: 7, Y2: 7}
	boxB := similarity.BBox{X1: 20, Y1: 20, X2: 30, Y2: 30}
	a.InstanceBox, b.InstanceBox = &boxA, &boxB

	r, err := newMatcher().Match(annotation.KindPoints, []Entry{a}, []Entry{b})
	require.NoError(t, err)
	assert.Empty(t, r.Matched)
	assert.Empty(t, r.Mismatched)
	assert.Equal(t, []int{0}, r.UnmatchedA)
	assert.Equal(t, []int{0}, r.UnmatchedB)
}

func TestMatch_SinglePointInstances(t *testing.T) {
	a := []Entry{pointsEntry(0, 0, 3, 3)}
	r, err := newMatcher().Match(annotation.KindPoints, a, a)
	require.NoError(t, err)
	assert.Len(t, r.Matched, 1)
}

func TestMatch_Skeletons(t *testing.T) {
	tax := annotation.MustTaxonomy(
		annotation.Label{ID: 1, Name: "body"},
		annotation.Label{ID: 2, Name: "head", Parent: annotation.ParentID(1)},
		annotation.Label{ID: 3, Name: "foot", Parent: annotation.ParentID(1)},
	)
	el := func(label int, x, y float64) annotation.Annotation {
		return annotation.Annotation{Kind: annotation.KindPoints, LabelID: label, Points: []float64{x, y}}
	}
	sk := func(index int, dx float64) Entry {
		return Entry{
			Index: index,
			Annotation: annotation.Annotation{
				Kind:     annotation.KindSkeleton,
				LabelID:  1,
				Elements: []annotation.Annotation{el(3, 10+dx, 40), el(2, 10+dx, 0)},
			},
			LabelName: "body",
		}
	}

	m := NewMatcher(Options{TaxonomyA: tax, TaxonomyB: tax}, skeleton.NewOrderCache(tax))
	r, err := m.Match(annotation.KindSkeleton, []Entry{sk(0, 0), sk(1, 100)}, []Entry{sk(0, 100), sk(1, 0)})
	require.NoError(t, err)

	require.Len(t, r.Matched, 2)
	got := normalize(r)
	assert.Equal(t, 1, got.Matched[0].B)
	assert.Equal(t, 0, got.Matched[1].B)
	assert.InDelta(t, 1.0, got.Matched[0].Similarity, 1e-12)
}

func TestMatch_SkeletonUnknownElementLabel(t *testing.T) {
	tax := annotation.MustTaxonomy(annotation.Label{ID: 1, Name: "body"}, annotation.Label{ID: 2, Name: "head", Parent: annotation.ParentID(1)})
	bad := Entry{Annotation: annotation.Annotation{
		Kind:     annotation.KindSkeleton,
		LabelID:  1,
		Elements: []annotation.Annotation{{Kind: annotation.KindPoints, LabelID: 77, Points: []float64{0, 0}}},
	}}
	m := NewMatcher(Options{TaxonomyA: tax, TaxonomyB: tax}, nil)
	_, err := m.Match(annotation.KindSkeleton, []Entry{bad}, nil)
	assert.True(t, errors.Is(err, annotation.ErrUnknownLabel))
}

func TestMatch_Tags(t *testing.T) {
	tag := func(index int, label string) Entry {
		return Entry{Index: index, Annotation: annotation.Annotation{Kind: annotation.KindTag}, LabelName: label}
	}
	a := []Entry{tag(0, "day"), tag(1, "rain"), tag(2, "day")}
	b := []Entry{tag(0, "day"), tag(1, "night")}

	r, err := newMatcher().Match(annotation.KindTag, a, b)
	require.NoError(t, err)
	assert.Equal(t, []Pair{{A: 0, B: 0, Similarity: 1}}, r.Matched)
	assert.Empty(t, r.Mismatched)
	assert.Equal(t, []int{1, 2}, r.UnmatchedA)
	assert.Equal(t, []int{1}, r.UnmatchedB)
}

func TestExtent(t *testing.T) {
	assert.Equal(t, similarity.BBox{X1: 0, Y1: 0, X2: 4, Y2: 3},
		Extent(annotation.Annotation{Kind: annotation.KindBox, Points: []float64{4, 3, 0, 0}}))
	sk := annotation.Annotation{Kind: annotation.KindSkeleton, Elements: []annotation.Annotation{
		{Points: []float64{1, 1}},
		{Points: []float64{5, 9}},
		{Points: []float64{100, 100}, Visibility: []annotation.Visibility{annotation.VisibilityAbsent}},
	}}
	assert.Equal(t, similarity.BBox{X1: 1, Y1: 1, X2: 5, Y2: 9}, Extent(sk))
	assert.Equal(t, similarity.BBox{}, Extent(annotation.Annotation{Kind: annotation.KindTag}))
}
