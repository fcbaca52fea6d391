package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/inhaletech/inhalyzer/internal/models"
)

// AnalysisRun is one archived completed run.
type AnalysisRun struct {
	ID          string
	DeviceID    string
	FileName    string
	TotalSteps  int
	PassedSteps int
	FailedSteps int
	Score       float64
	Result      *models.AnalysisResult
	CompletedAt time.Time
}

type RunRepository struct {
	db *DB
}

func NewRunRepository(db *DB) *RunRepository {
	return &RunRepository{db: db}
}

// InsertRun archives a completed result. The full payload is stored as
// JSON so exports remain reproducible after the session ends.
func (r *RunRepository) InsertRun(ctx context.Context, deviceID string, result *models.AnalysisResult) (*AnalysisRun, error) {
	if result == nil || result.Summary == nil {
		return nil, fmt.Errorf("cannot archive run without a summary")
	}

	payload, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}

	run := &AnalysisRun{
		ID:          uuid.New().String(),
		DeviceID:    deviceID,
		TotalSteps:  result.Summary.TotalSteps,
		PassedSteps: result.Summary.PassedSteps,
		FailedSteps: result.Summary.FailedSteps,
		Score:       result.Summary.Score,
		Result:      result,
		CompletedAt: time.Now(),
	}
	if result.VideoInfo != nil {
		run.FileName = result.VideoInfo.FileName
	}

	query := `
		INSERT INTO analysis_runs (
			id, device_id, file_name, total_steps, passed_steps,
			failed_steps, score, result_json, completed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = r.db.conn.ExecContext(ctx, query,
		run.ID,
		run.DeviceID,
		run.FileName,
		run.TotalSteps,
		run.PassedSteps,
		run.FailedSteps,
		run.Score,
		string(payload),
		run.CompletedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert run: %w", err)
	}

	return run, nil
}

// GetRunByID returns nil without error when the run does not exist.
func (r *RunRepository) GetRunByID(ctx context.Context, id string) (*AnalysisRun, error) {
	query := `
		SELECT id, device_id, file_name, total_steps, passed_steps,
			   failed_steps, score, result_json, completed_at
		FROM analysis_runs
		WHERE id = ?`

	run, err := scanRun(r.db.conn.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// ListRuns returns archived runs, most recent first.
func (r *RunRepository) ListRuns(ctx context.Context, limit int) ([]*AnalysisRun, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, device_id, file_name, total_steps, passed_steps,
			   failed_steps, score, result_json, completed_at
		FROM analysis_runs
		ORDER BY completed_at DESC
		LIMIT ?`

	rows, err := r.db.conn.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []*AnalysisRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}

	return runs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*AnalysisRun, error) {
	run := &AnalysisRun{}
	var payload string

	err := row.Scan(
		&run.ID,
		&run.DeviceID,
		&run.FileName,
		&run.TotalSteps,
		&run.PassedSteps,
		&run.FailedSteps,
		&run.Score,
		&payload,
		&run.CompletedAt,
	)
	if err != nil {
		return nil, err
	}

	var result models.AnalysisResult
	if err := json.Unmarshal([]byte(payload), &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal archived result: %w", err)
	}
	run.Result = &result

	return run, nil
}
