package db

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/quality.report/internal/quality/compare"
)

// ErrReportNotFound is returned for unknown run ids.
var ErrReportNotFound = errors.New("report not found")

// RunSummary is one entry of the run history.
type RunSummary struct {
	RunID              string    `json:"run_id"`
	CreatedAt          time.Time `json:"created_at"`
	ThisDataset        string    `json:"this_dataset"`
	GTDataset          string    `json:"gt_dataset"`
	FrameCount         int       `json:"frame_count"`
	AnnotationAccuracy float64   `json:"annotation_accuracy"`
	AttributeAccuracy  float64   `json:"attribute_accuracy"`
	OverallAccuracy    float64   `json:"overall_accuracy"`
	ErrorCount         int       `json:"error_count"`
}

// ReportStore persists comparison reports: one row per run, one per
// compared frame and one per conflict.
type ReportStore struct {
	db *sql.DB
}

// NewReportStore creates a new ReportStore.
func NewReportStore(db *sql.DB) *ReportStore {
	return &ReportStore{db: db}
}

// Insert persists a report. If RunID is empty, a UUID is generated; a zero
// CreatedAt is set to the current time.
func (s *ReportStore) Insert(r *compare.Report) error {
	if r.RunID == "" {
		r.RunID = uuid.New().String()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}

	params, err := json.Marshal(r.Parameters)
	if err != nil {
		return fmt.Errorf("marshal parameters: %w", err)
	}
	summary, err := json.Marshal(r.Summary)
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}

	return retryOnBusy(func() error {
		tx, err := s.db.Begin()
		if err != nil {
			return err
		}
		defer tx.Rollback()

		_, err = tx.Exec(`
			INSERT INTO quality_runs (
				run_id, created_at, this_dataset, gt_dataset, frame_count,
				annotation_accuracy, attribute_accuracy, overall_accuracy, error_count,
				params_json, summary_json
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			r.RunID, r.CreatedAt.UnixNano(), r.ThisDataset, r.GTDataset, r.Summary.FrameCount,
			r.Summary.AnnotationAccuracy, r.Summary.AttributeAccuracy, r.Summary.OverallAccuracy, r.Summary.ErrorCount,
			string(params), string(summary),
		)
		if err != nil {
			return fmt.Errorf("insert run: %w", err)
		}

		for _, frameID := range r.FrameIDs() {
			if err := insertFrame(tx, r.RunID, frameID, r.FrameResults[frameID]); err != nil {
				return err
			}
		}
		return tx.Commit()
	})
}

func insertFrame(tx *sql.Tx, runID, frameID string, fr *compare.FrameResult) error {
	result, err := json.Marshal(fr)
	if err != nil {
		return fmt.Errorf("marshal frame %s: %w", frameID, err)
	}
	_, err = tx.Exec(`
		INSERT INTO quality_frames (
			run_id, frame_id, valid_annotations_count, compared_annotations_count,
			valid_attributes_count, compared_attributes_count,
			annotation_accuracy, attribute_accuracy, overall_accuracy, error_count, result_json
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, frameID, fr.ValidAnnotationsCount, fr.ComparedAnnotationsCount,
		fr.ValidAttributesCount, fr.ComparedAttributesCount,
		fr.AnnotationAccuracy, fr.AttributeAccuracy, fr.OverallAccuracy, fr.ErrorCount, string(result),
	)
	if err != nil {
		return fmt.Errorf("insert frame %s: %w", frameID, err)
	}

	for i, c := range fr.Conflicts {
		data, err := json.Marshal(c.Data)
		if err != nil {
			return fmt.Errorf("marshal conflict %s/%d: %w", frameID, i, err)
		}
		_, err = tx.Exec(`
			INSERT INTO quality_conflicts (run_id, frame_id, ordinal, type, kind, attribute, data_json)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			runID, frameID, i, string(c.Type), nullString(string(c.Data.Kind)), nullString(c.Data.Attribute), string(data),
		)
		if err != nil {
			return fmt.Errorf("insert conflict %s/%d: %w", frameID, i, err)
		}
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// Get returns a stored report with all of its frame results.
func (s *ReportStore) Get(runID string) (*compare.Report, error) {
	r := &compare.Report{RunID: runID}
	var createdAt int64
	var params, summary string
	err := s.db.QueryRow(`
		SELECT created_at, this_dataset, gt_dataset, params_json, summary_json
		FROM quality_runs
		WHERE run_id = ?`, runID).Scan(&createdAt, &r.ThisDataset, &r.GTDataset, &params, &summary)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("run %s: %w", runID, ErrReportNotFound)
		}
		return nil, fmt.Errorf("scan run: %w", err)
	}
	r.CreatedAt = time.Unix(0, createdAt).UTC()
	if err := json.Unmarshal([]byte(params), &r.Parameters); err != nil {
		return nil, fmt.Errorf("decode parameters: %w", err)
	}
	if err := json.Unmarshal([]byte(summary), &r.Summary); err != nil {
		return nil, fmt.Errorf("decode summary: %w", err)
	}

	rows, err := s.db.Query(`
		SELECT frame_id, result_json
		FROM quality_frames
		WHERE run_id = ?
		ORDER BY frame_id`, runID)
	if err != nil {
		return nil, fmt.Errorf("query frames: %w", err)
	}
	defer rows.Close()

	r.FrameResults = make(map[string]*compare.FrameResult)
	for rows.Next() {
		var frameID, result string
		if err := rows.Scan(&frameID, &result); err != nil {
			return nil, fmt.Errorf("scan frame: %w", err)
		}
		var fr compare.FrameResult
		if err := json.Unmarshal([]byte(result), &fr); err != nil {
			return nil, fmt.Errorf("decode frame %s: %w", frameID, err)
		}
		r.FrameResults[frameID] = &fr
	}
	return r, rows.Err()
}

// List returns the stored runs, newest first.
func (s *ReportStore) List() ([]RunSummary, error) {
	rows, err := s.db.Query(`
		SELECT run_id, created_at, this_dataset, gt_dataset, frame_count,
		       annotation_accuracy, attribute_accuracy, overall_accuracy, error_count
		FROM quality_runs
		ORDER BY created_at DESC, run_id`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []RunSummary
	for rows.Next() {
		var rs RunSummary
		var createdAt int64
		if err := rows.Scan(&rs.RunID, &createdAt, &rs.ThisDataset, &rs.GTDataset, &rs.FrameCount,
			&rs.AnnotationAccuracy, &rs.AttributeAccuracy, &rs.OverallAccuracy, &rs.ErrorCount); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		rs.CreatedAt = time.Unix(0, createdAt).UTC()
		runs = append(runs, rs)
	}
	return runs, rows.Err()
}

// Conflicts returns the conflicts of a run in frame order, optionally
// restricted to the given types.
func (s *ReportStore) Conflicts(runID string, types ...compare.ConflictType) ([]compare.AnnotationConflict, error) {
	query := `
		SELECT frame_id, type, data_json
		FROM quality_conflicts
		WHERE run_id = ?`
	args := []interface{}{runID}
	if len(types) > 0 {
		query += ` AND type IN (?` + strings.Repeat(", ?", len(types)-1) + `)`
		for _, t := range types {
			args = append(args, string(t))
		}
	}
	query += ` ORDER BY frame_id, ordinal`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query conflicts: %w", err)
	}
	defer rows.Close()

	var out []compare.AnnotationConflict
	for rows.Next() {
		var c compare.AnnotationConflict
		var typ, data string
		if err := rows.Scan(&c.FrameID, &typ, &data); err != nil {
			return nil, fmt.Errorf("scan conflict: %w", err)
		}
		c.Type = compare.ConflictType(typ)
		if err := json.Unmarshal([]byte(data), &c.Data); err != nil {
			return nil, fmt.Errorf("decode conflict: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Delete removes a run together with its frames and conflicts.
func (s *ReportStore) Delete(runID string) error {
	return retryOnBusy(func() error {
		result, err := s.db.Exec(`DELETE FROM quality_runs WHERE run_id = ?`, runID)
		if err != nil {
			return fmt.Errorf("delete run: %w", err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("run %s: %w", runID, ErrReportNotFound)
		}
		return nil
	})
}
