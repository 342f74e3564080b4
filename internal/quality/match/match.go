// Package match pairs the annotations of one kind on one frame between two
// sides (ground truth and candidate) by solving an exact assignment over
// their similarity matrix.
package match

import (
	"fmt"
	"sort"

	"github.com/banshee-data/quality.report/internal/annotation"
	"github.com/banshee-data/quality.report/internal/quality/assign"
	"github.com/banshee-data/quality.report/internal/quality/similarity"
	"github.com/banshee-data/quality.report/internal/quality/skeleton"
)

// DefaultThreshold is the acceptance threshold for every kind unless
// configured otherwise.
const DefaultThreshold = 0.5

// Entry is one annotation presented to the matcher.
type Entry struct {
	// Index is the ordinal of the annotation in its frame's list.
	Index      int
	Annotation annotation.Annotation
	// Label is the resolved label and LabelName its cross-dataset identity.
	Label     annotation.Label
	LabelName string
	// InstanceBox is the extent of the annotation's group on its side, when
	// the annotation is grouped with others.
	InstanceBox *similarity.BBox
}

// Pair links A[A] with B[B].
type Pair struct {
	A          int     `json:"a"`
	B          int     `json:"b"`
	Similarity float64 `json:"similarity"`
}

// Result is the outcome of matching one kind on one frame. Indices refer to
// the input slices, not to frame ordinals.
type Result struct {
	Matched    []Pair
	Mismatched []Pair
	UnmatchedA []int
	UnmatchedB []int
}

// Compared is the number of matching outcomes.
func (r Result) Compared() int {
	return len(r.Matched) + len(r.Mismatched) + len(r.UnmatchedA) + len(r.UnmatchedB)
}

// Options configures thresholds and metric constants.
type Options struct {
	// KindThresholds overrides the threshold of individual kinds.
	KindThresholds map[annotation.Kind]float64
	// IoUThreshold applies to box, polygon, polyline and mask.
	IoUThreshold float64
	// OKSThreshold applies to points and skeletons. Zero falls back to
	// IoUThreshold.
	OKSThreshold float64
	// Sigma is the default OKS constant.
	Sigma float64
	// LineThickness is the polyline band width relative to the extent
	// diagonal.
	LineThickness float64
	// Taxonomies resolve skeleton element labels on side A and side B.
	TaxonomyA, TaxonomyB *annotation.Taxonomy
}

// Matcher matches annotation lists kind by kind. It holds no per-frame
// state and is safe for concurrent use.
type Matcher struct {
	opts      Options
	skeletons *skeleton.OrderCache
}

// NewMatcher builds a matcher. The skeleton order cache is shared, read-only,
// across all frames of a run.
func NewMatcher(opts Options, skeletons *skeleton.OrderCache) *Matcher {
	if opts.IoUThreshold <= 0 {
		opts.IoUThreshold = DefaultThreshold
	}
	if opts.OKSThreshold <= 0 {
		opts.OKSThreshold = opts.IoUThreshold
	}
	if opts.Sigma <= 0 {
		opts.Sigma = similarity.DefaultSigma
	}
	if opts.LineThickness <= 0 {
		opts.LineThickness = 0.01
	}
	if skeletons == nil {
		skeletons = skeleton.NewOrderCache(opts.TaxonomyA, opts.TaxonomyB)
	}
	return &Matcher{opts: opts, skeletons: skeletons}
}

// Threshold returns the acceptance threshold of a kind.
func (m *Matcher) Threshold(kind annotation.Kind) float64 {
	if t, ok := m.opts.KindThresholds[kind]; ok {
		return t
	}
	switch kind {
	case annotation.KindPoints, annotation.KindSkeleton:
		return m.opts.OKSThreshold
	}
	return m.opts.IoUThreshold
}

// Match pairs a and b, which must all be of the given kind.
func (m *Matcher) Match(kind annotation.Kind, a, b []Entry) (Result, error) {
	for _, list := range [][]Entry{a, b} {
		for _, e := range list {
			if e.Annotation.Kind != kind {
				return Result{}, fmt.Errorf("%w: %s entry in %s match", annotation.ErrUnsupportedKind, e.Annotation.Kind, kind)
			}
		}
	}

	switch kind {
	case annotation.KindBox:
		return m.bipartite(kind, a, b, func(i, j int) float64 {
			return similarity.BoxIoU(similarity.BoxFromCorners(a[i].Annotation.Points), similarity.BoxFromCorners(b[j].Annotation.Points))
		}), nil
	case annotation.KindPolygon, annotation.KindMask:
		return m.bipartite(kind, a, b, func(i, j int) float64 {
			return similarity.PolygonIoU(a[i].Annotation.Points, b[j].Annotation.Points)
		}), nil
	case annotation.KindPolyline:
		return m.bipartite(kind, a, b, func(i, j int) float64 {
			return similarity.PolylineIoU(a[i].Annotation.Points, b[j].Annotation.Points, m.opts.LineThickness)
		}), nil
	case annotation.KindPoints:
		return m.matchPoints(a, b), nil
	case annotation.KindSkeleton:
		return m.matchSkeletons(a, b)
	case annotation.KindTag:
		return matchTags(a, b), nil
	default:
		return Result{}, fmt.Errorf("%w: %s", annotation.ErrUnsupportedKind, kind)
	}
}

// bipartite scores every pair, solves the assignment that maximises total
// similarity and classifies the assigned pairs. A zero-similarity pair is no
// correspondence: both of its sides stay unmatched.
func (m *Matcher) bipartite(kind annotation.Kind, a, b []Entry, score func(i, j int) float64) Result {
	sim := make([][]float64, len(a))
	cost := make([][]float64, len(a))
	for i := range a {
		sim[i] = make([]float64, len(b))
		cost[i] = make([]float64, len(b))
		for j := range b {
			s := score(i, j)
			sim[i][j] = s
			cost[i][j] = 1 - s
		}
	}

	threshold := m.Threshold(kind)
	var r Result
	usedB := make([]bool, len(b))

	rows := assign.Solve(cost)
	for i := range a {
		j := rows[i]
		if j < 0 || sim[i][j] <= 0 {
			r.UnmatchedA = append(r.UnmatchedA, i)
			continue
		}
		usedB[j] = true
		p := Pair{A: i, B: j, Similarity: sim[i][j]}
		if p.Similarity >= threshold && a[i].LabelName == b[j].LabelName {
			r.Matched = append(r.Matched, p)
		} else {
			r.Mismatched = append(r.Mismatched, p)
		}
	}
	for j := range b {
		if !usedB[j] {
			r.UnmatchedB = append(r.UnmatchedB, j)
		}
	}
	return r
}

// matchTags pairs tags with equal labels in frame order. Tags carry no
// geometry, so there is no assignment and no mismatched pair.
func matchTags(a, b []Entry) Result {
	byLabel := make(map[string][]int)
	for j, e := range b {
		byLabel[e.LabelName] = append(byLabel[e.LabelName], j)
	}

	var r Result
	usedB := make([]bool, len(b))
	for i, e := range a {
		queue := byLabel[e.LabelName]
		if len(queue) == 0 {
			r.UnmatchedA = append(r.UnmatchedA, i)
			continue
		}
		j := queue[0]
		byLabel[e.LabelName] = queue[1:]
		usedB[j] = true
		r.Matched = append(r.Matched, Pair{A: i, B: j, Similarity: 1})
	}
	for j := range b {
		if !usedB[j] {
			r.UnmatchedB = append(r.UnmatchedB, j)
		}
	}
	sort.Ints(r.UnmatchedB)
	return r
}
