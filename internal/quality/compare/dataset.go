package compare

import (
	"context"
	"errors"
	"math"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/quality.report/internal/annotation"
	"github.com/banshee-data/quality.report/internal/monitoring"
)

// DatasetComparator compares every frame shared by two datasets.
type DatasetComparator struct {
	opts Options
	now  func() time.Time
}

// NewDatasetComparator creates a comparator with the given options.
func NewDatasetComparator(opts Options) *DatasetComparator {
	return &DatasetComparator{opts: opts.withDefaults(), now: time.Now}
}

// Compare compares this against the ground truth gt. Frames present in both
// datasets are compared independently on a bounded worker pool; the first
// error cancels the remaining frames and is returned. Neither dataset is
// modified.
func (c *DatasetComparator) Compare(ctx context.Context, this, gt *annotation.Dataset) (*Report, error) {
	if this == nil || gt == nil {
		return nil, errors.New("compare: nil dataset")
	}

	ids := annotation.SharedFrameIDs(this, gt)
	monitoring.Logf("comparing %q against %q: %d shared frames (%d, %d total)",
		this.Name, gt.Name, len(ids), this.FrameCount(), gt.FrameCount())

	fc := NewFrameComparator(c.opts, gt.Labels, this.Labels)
	results := make(map[string]*FrameResult, len(ids))
	var mu sync.Mutex

	workers := c.opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, id := range ids {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			gtFrame, _ := gt.Frame(id)
			thisFrame, _ := this.Frame(id)
			fr, err := fc.Compare(id, gtFrame.Annotations, thisFrame.Annotations)
			if err != nil {
				return err
			}
			monitoring.Debugf("frame %s: %d matched, %d mismatched, %d missing, %d extra, %d conflicts",
				id, fr.MatchedCount, fr.MismatchedCount, fr.MissingCount, fr.ExtraCount, fr.ErrorCount)

			mu.Lock()
			results[id] = fr
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	// Caller cancellation that landed after the last frame was scheduled.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	report := &Report{
		RunID:        uuid.NewString(),
		CreatedAt:    c.now().UTC(),
		ThisDataset:  this.Name,
		GTDataset:    gt.Name,
		Parameters:   c.opts,
		FrameResults: results,
	}
	report.Summary = summarize(results)
	report.Summary.ThisFrameCount = this.FrameCount()
	report.Summary.GTFrameCount = gt.FrameCount()
	report.Summary.DatasetAnnotationsCount = this.AnnotationCount(c.opts.IncludedKinds)
	report.Summary.DatasetAttributesCount = this.AttributeCount(c.opts.IncludedKinds, c.opts.IgnoredAttributes)
	report.Summary.EstimatedInvalidAnnotationsCount = estimateInvalid(
		report.Summary.AnnotationAccuracy, report.Summary.DatasetAnnotationsCount, report.Summary.ComparedAnnotationsCount)
	report.Summary.EstimatedInvalidAttributesCount = estimateInvalid(
		report.Summary.AttributeAccuracy, report.Summary.DatasetAttributesCount, report.Summary.ComparedAttributesCount)

	monitoring.Logf("run %s: %d frames, annotation accuracy %.3f, attribute accuracy %.3f, %d conflicts",
		report.RunID, report.Summary.FrameCount, report.Summary.AnnotationAccuracy,
		report.Summary.AttributeAccuracy, report.Summary.ErrorCount)
	return report, nil
}

// Compare runs a DatasetComparator with opts.
func Compare(ctx context.Context, this, gt *annotation.Dataset, opts Options) (*Report, error) {
	return NewDatasetComparator(opts).Compare(ctx, this, gt)
}

// summarize sums the per-frame counts and recomputes the ratios globally.
// Means are over frames; with no frames they are zero.
func summarize(results map[string]*FrameResult) Summary {
	s := Summary{
		FrameCount:      len(results),
		ConflictsByType: make(map[ConflictType]int, len(ConflictTypes)),
	}
	for _, t := range ConflictTypes {
		s.ConflictsByType[t] = 0
	}

	var annAcc, attrAcc, overall, conflicts []float64
	for _, id := range sortedKeys(results) {
		fr := results[id]
		s.ValidAnnotationsCount += fr.ValidAnnotationsCount
		s.ComparedAnnotationsCount += fr.ComparedAnnotationsCount
		s.ValidAttributesCount += fr.ValidAttributesCount
		s.ComparedAttributesCount += fr.ComparedAttributesCount
		s.GTAnnotationsCount += fr.GTAnnotationsCount
		s.ThisAnnotationsCount += fr.ThisAnnotationsCount
		s.ErrorCount += fr.ErrorCount
		for _, c := range fr.Conflicts {
			s.ConflictsByType[c.Type]++
		}

		annAcc = append(annAcc, fr.AnnotationAccuracy)
		attrAcc = append(attrAcc, fr.AttributeAccuracy)
		overall = append(overall, fr.OverallAccuracy)
		conflicts = append(conflicts, float64(fr.ErrorCount))
	}

	s.AnnotationAccuracy = ratio(s.ValidAnnotationsCount, s.ComparedAnnotationsCount)
	s.AttributeAccuracy = ratio(s.ValidAttributesCount, s.ComparedAttributesCount)
	s.OverallAccuracy = ratio(s.ValidAnnotationsCount+s.ValidAttributesCount,
		s.ComparedAnnotationsCount+s.ComparedAttributesCount)

	s.MeanAnnotationAccuracy = mean(annAcc)
	s.MeanAttributeAccuracy = mean(attrAcc)
	s.MeanOverallAccuracy = mean(overall)
	s.MeanConflictCount = mean(conflicts)
	return s
}

// estimateInvalid extrapolates the sampled accuracy to a whole-dataset
// total. Without compared items there is nothing to extrapolate from.
func estimateInvalid(accuracy float64, total, compared int) int {
	if compared == 0 {
		return 0
	}
	return int(math.Round((1 - accuracy) * float64(total)))
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	return stat.Mean(xs, nil)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
