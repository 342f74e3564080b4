// Package compare turns per-kind match results into classified conflicts and
// accuracy figures, frame by frame and for a whole dataset pair.
package compare

import (
	"fmt"
	"time"

	"github.com/banshee-data/quality.report/internal/annotation"
)

// ConflictType classifies a disagreement between the compared datasets.
type ConflictType string

const (
	ConflictMissingAnnotation     ConflictType = "missing_annotation"
	ConflictExtraAnnotation       ConflictType = "extra_annotation"
	ConflictMismatchingAnnotation ConflictType = "mismatching_annotation"
)

// ConflictTypes lists every conflict type in report order.
var ConflictTypes = []ConflictType{
	ConflictMissingAnnotation,
	ConflictExtraAnnotation,
	ConflictMismatchingAnnotation,
}

// MismatchKind tells label mismatches from attribute mismatches.
type MismatchKind string

const (
	MismatchLabel     MismatchKind = "label"
	MismatchAttribute MismatchKind = "attribute"
)

// ConflictData is the payload of a conflict. Expected values come from the
// ground truth and actual values from the compared dataset.
type ConflictData struct {
	AnnotationIDs []annotation.AnnotationID `json:"annotation_ids"`
	Kind          MismatchKind              `json:"kind,omitempty"`
	Attribute     string                    `json:"attribute,omitempty"`
	Expected      any                       `json:"expected,omitempty"`
	Actual        any                       `json:"actual,omitempty"`
}

// AnnotationConflict is one classified disagreement on a frame.
type AnnotationConflict struct {
	FrameID string       `json:"frame_id"`
	Type    ConflictType `json:"type"`
	Data    ConflictData `json:"data"`
}

// FrameResult holds the counts, ratios and conflicts of one frame.
type FrameResult struct {
	ValidAnnotationsCount    int `json:"valid_annotations_count"`
	ComparedAnnotationsCount int `json:"compared_annotations_count"`
	ValidAttributesCount     int `json:"valid_attributes_count"`
	ComparedAttributesCount  int `json:"compared_attributes_count"`
	GTAnnotationsCount       int `json:"gt_annotations_count"`
	ThisAnnotationsCount     int `json:"this_annotations_count"`

	MatchedCount    int `json:"matched_count"`
	MismatchedCount int `json:"mismatched_count"`
	MissingCount    int `json:"missing_count"`
	ExtraCount      int `json:"extra_count"`

	AnnotationAccuracy float64 `json:"annotation_accuracy"`
	AttributeAccuracy  float64 `json:"attribute_accuracy"`
	OverallAccuracy    float64 `json:"overall_accuracy"`

	ErrorCount int                  `json:"error_count"`
	Conflicts  []AnnotationConflict `json:"conflicts"`
}

// Summary aggregates the frame results of a run.
type Summary struct {
	FrameCount     int `json:"frame_count"`
	ThisFrameCount int `json:"this_frame_count"`
	GTFrameCount   int `json:"gt_frame_count"`

	ValidAnnotationsCount    int `json:"valid_annotations_count"`
	ComparedAnnotationsCount int `json:"compared_annotations_count"`
	ValidAttributesCount     int `json:"valid_attributes_count"`
	ComparedAttributesCount  int `json:"compared_attributes_count"`
	GTAnnotationsCount       int `json:"gt_annotations_count"`
	ThisAnnotationsCount     int `json:"this_annotations_count"`

	AnnotationAccuracy float64 `json:"annotation_accuracy"`
	AttributeAccuracy  float64 `json:"attribute_accuracy"`
	OverallAccuracy    float64 `json:"overall_accuracy"`

	MeanAnnotationAccuracy float64 `json:"mean_annotation_accuracy"`
	MeanAttributeAccuracy  float64 `json:"mean_attribute_accuracy"`
	MeanOverallAccuracy    float64 `json:"mean_overall_accuracy"`

	ErrorCount        int                  `json:"error_count"`
	MeanConflictCount float64              `json:"mean_conflict_count"`
	ConflictsByType   map[ConflictType]int `json:"conflicts_by_type"`

	// Whole-dataset counts of the compared dataset, not only shared frames.
	DatasetAnnotationsCount int `json:"this_dataset_annotations_count"`
	DatasetAttributesCount  int `json:"this_dataset_attributes_count"`

	EstimatedInvalidAnnotationsCount int `json:"estimated_invalid_annotations_count"`
	EstimatedInvalidAttributesCount  int `json:"estimated_invalid_attributes_count"`
}

// Report is the outcome of one comparison run.
type Report struct {
	RunID        string                  `json:"run_id"`
	CreatedAt    time.Time               `json:"created_at"`
	ThisDataset  string                  `json:"this_dataset"`
	GTDataset    string                  `json:"gt_dataset"`
	Parameters   Options                 `json:"parameters"`
	Summary      Summary                 `json:"summary"`
	FrameResults map[string]*FrameResult `json:"frame_results"`
}

// Conflicts returns every conflict of the report, by frame id then frame
// order.
func (r *Report) Conflicts() []AnnotationConflict {
	var out []AnnotationConflict
	for _, id := range r.FrameIDs() {
		out = append(out, r.FrameResults[id].Conflicts...)
	}
	return out
}

// FrameIDs returns the ids of the compared frames in sorted order.
func (r *Report) FrameIDs() []string {
	return sortedKeys(r.FrameResults)
}

// DataError reports input that cannot be compared: an unresolvable label or
// an unsupported kind. It fails the run; a degenerate but valid input never
// produces one.
type DataError struct {
	FrameID    string
	Annotation annotation.AnnotationID
	Err        error
}

func (e *DataError) Error() string {
	return fmt.Sprintf("frame %q, annotation %s: %v", e.FrameID, e.Annotation, e.Err)
}

func (e *DataError) Unwrap() error {
	return e.Err
}
