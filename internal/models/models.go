// package models defines the data model for the champion upload service
package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// Model defines the base interface for all persistent models.
type Model interface {
	ID() string           // ID returns the unique identifier for this model
	CreatedAt() time.Time // CreatedAt returns when this model was created
	UpdatedAt() time.Time // UpdatedAt returns when this model was last updated
	Validate() error      // Validate checks if the model's data is valid and returns an error if not
}

// Repository defines the interface for data access operations.
// Implementations handle database interactions for specific model types.
type Repository[T Model] interface {
	Create(model T) error                      // Create inserts a new model into the database
	Get(id string) (T, error)                  // Get retrieves a model by its ID
	Update(model T) error                      // Update modifies an existing model in the database
	Delete(id string) error                    // Delete removes a model from the database by its ID
	List(criteria map[string]any) ([]T, error) // List retrieves all models matching the given criteria
}

// Stage is a step of the upload pipeline.
type Stage string

const (
	StageValidating   Stage = "validating"
	StageAwaitingAuth Stage = "awaiting_auth"
	StageExchanging   Stage = "exchanging"
	StageDownloading  Stage = "downloading"
	StageUploading    Stage = "uploading"
	StageDone         Stage = "done"
	StageFailed       Stage = "failed"
)

// Terminal reports whether no further transition can happen from s.
func (s Stage) Terminal() bool {
	return s == StageDone || s == StageFailed
}

// Valid reports whether s is one of the known stages.
func (s Stage) Valid() bool {
	switch s {
	case StageValidating, StageAwaitingAuth, StageExchanging, StageDownloading, StageUploading, StageDone, StageFailed:
		return true
	}
	return false
}

// Run is one resumed pipeline execution: exchange, download, upload.
type Run struct {
	id         string
	sequence   int
	subject    string
	stage      Stage
	location   string
	errMsg     string
	startedAt  time.Time
	finishedAt *time.Time
}

// NewRun creates a run for subject in the exchanging stage.
func NewRun(subject string) *Run {
	return &Run{
		subject:   subject,
		stage:     StageExchanging,
		startedAt: time.Now().UTC(),
	}
}

func (r *Run) ID() string { return r.id }
func (r *Run) Sequence() int { return r.sequence }
func (r *Run) Subject() string { return r.subject }
func (r *Run) Stage() Stage { return r.stage }
func (r *Run) Location() string { return r.location }
func (r *Run) ErrorMessage() string { return r.errMsg }
func (r *Run) CreatedAt() time.Time { return r.startedAt }
func (r *Run) FinishedAt() *time.Time { return r.finishedAt }

// UpdatedAt returns the finish time of a terminal run, otherwise its start time.
func (r *Run) UpdatedAt() time.Time {
	if r.finishedAt != nil {
		return *r.finishedAt
	}
	return r.startedAt
}

func (r *Run) SetID(id string) { r.id = id }
func (r *Run) SetSequence(seq int) { r.sequence = seq }
func (r *Run) SetStartedAt(t time.Time) { r.startedAt = t }
func (r *Run) SetFinishedAt(t *time.Time) { r.finishedAt = t }
func (r *Run) SetLocation(location string) { r.location = location }

// Advance moves the run to stage. Reaching a terminal stage stamps the finish time.
func (r *Run) Advance(stage Stage) {
	r.stage = stage
	if stage.Terminal() && r.finishedAt == nil {
		now := time.Now().UTC()
		r.finishedAt = &now
	}
}

// Fail records err and moves the run to [StageFailed].
func (r *Run) Fail(err error) {
	if err != nil {
		r.errMsg = err.Error()
	}
	r.Advance(StageFailed)
}

// Restore sets the stage and error message as loaded from storage, without stamping times.
func (r *Run) Restore(stage Stage, errMsg string) {
	r.stage = stage
	r.errMsg = errMsg
}

// Validate checks that the run names a subject and a known stage.
func (r *Run) Validate() error {
	if r.subject == "" {
		return fmt.Errorf("run subject is required")
	}
	if !r.stage.Valid() {
		return fmt.Errorf("unknown run stage %q", r.stage)
	}
	return nil
}

// MarshalJSON renders the run for the /runs endpoint.
func (r *Run) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ID         string     `json:"id"`
		Sequence   int        `json:"sequence"`
		Subject    string     `json:"subject"`
		Stage      Stage      `json:"stage"`
		Location   string     `json:"location,omitempty"`
		Error      string     `json:"error,omitempty"`
		StartedAt  time.Time  `json:"started_at"`
		FinishedAt *time.Time `json:"finished_at,omitempty"`
	}{r.id, r.sequence, r.subject, r.stage, r.location, r.errMsg, r.startedAt, r.finishedAt})
}
