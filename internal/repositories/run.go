package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/champbox/internal/models"
	"github.com/desertthunder/champbox/internal/shared"
)

// ErrRunNotFound is returned when no run has the requested ID.
var ErrRunNotFound = errors.New("run not found")

// RunRepository implements [models.Repository] for [models.Run] persistence.
type RunRepository struct {
	db *sql.DB
}

// NewRunRepository creates a new [RunRepository] with the given database connection
func NewRunRepository(db *sql.DB) *RunRepository {
	return &RunRepository{db: db}
}

// Create inserts a new run with generated ID and sequence
func (r *RunRepository) Create(run *models.Run) error {
	if err := run.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	sequence, err := NextSequence(r.db, "runs")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	id := shared.GenerateID()

	query := `
		INSERT INTO runs (id, sequence, subject, stage, location, error, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.Exec(query, id, sequence, run.Subject(), string(run.Stage()), run.Location(), run.ErrorMessage(),
		run.CreatedAt(), nullTime(run.FinishedAt()))
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	run.SetID(id)
	run.SetSequence(sequence)
	return nil
}

// Get retrieves a run by ID
func (r *RunRepository) Get(id string) (*models.Run, error) {
	query := `
		SELECT id, sequence, subject, stage, location, error, started_at, finished_at
		FROM runs
		WHERE id = ?
	`

	run, err := scanRun(r.db.QueryRow(query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query run: %w", err)
	}

	return run, nil
}

// Update writes the run's stage, location, error and finish time
func (r *RunRepository) Update(run *models.Run) error {
	if err := run.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	query := `
		UPDATE runs
		SET stage = ?, location = ?, error = ?, finished_at = ?
		WHERE id = ?
	`

	result, err := r.db.Exec(query, string(run.Stage()), run.Location(), run.ErrorMessage(), nullTime(run.FinishedAt()), run.ID())
	if err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, run.ID())
	}

	return nil
}

// Delete removes a run by ID
func (r *RunRepository) Delete(id string) error {
	result, err := r.db.Exec("DELETE FROM runs WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}

	return nil
}

// List retrieves runs newest first.
//
// Supported criteria: "subject" (string), "stage" ([models.Stage] or string), "limit" (int).
func (r *RunRepository) List(criteria map[string]any) ([]*models.Run, error) {
	query := `
		SELECT id, sequence, subject, stage, location, error, started_at, finished_at
		FROM runs
		WHERE 1 = 1
	`
	args := []any{}

	if subject, ok := criteria["subject"].(string); ok && subject != "" {
		query += " AND subject = ?"
		args = append(args, subject)
	}

	switch stage := criteria["stage"].(type) {
	case models.Stage:
		query += " AND stage = ?"
		args = append(args, string(stage))
	case string:
		if stage != "" {
			query += " AND stage = ?"
			args = append(args, stage)
		}
	}

	query += " ORDER BY sequence DESC"

	if limit, ok := criteria["limit"].(int); ok && limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []*models.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return runs, nil
}

// Recent returns at most limit runs, newest first.
func (r *RunRepository) Recent(limit int) ([]*models.Run, error) {
	return r.List(map[string]any{"limit": limit})
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (*models.Run, error) {
	var (
		id         string
		sequence   int
		subject    string
		stage      string
		location   string
		errMsg     string
		startedAt  time.Time
		finishedAt sql.NullTime
	)

	if err := s.Scan(&id, &sequence, &subject, &stage, &location, &errMsg, &startedAt, &finishedAt); err != nil {
		return nil, err
	}

	run := models.NewRun(subject)
	run.SetID(id)
	run.SetSequence(sequence)
	run.SetStartedAt(startedAt)
	run.SetLocation(location)
	run.Restore(models.Stage(stage), errMsg)
	if finishedAt.Valid {
		t := finishedAt.Time
		run.SetFinishedAt(&t)
	}

	return run, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
