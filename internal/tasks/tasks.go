// package tasks implements the champion upload pipeline.
//
// The core abstraction is Pipeline, which validates a champion, waits for Dropbox authorization, then downloads
// and uploads the champion art. Operations emit progress updates via channels for non-blocking status reporting.
package tasks

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/champbox/internal/assets"
	"github.com/desertthunder/champbox/internal/flow"
	"github.com/desertthunder/champbox/internal/models"
	"github.com/desertthunder/champbox/internal/services"
	"github.com/desertthunder/champbox/internal/shared"
	"golang.org/x/oauth2"
)

// ChampionSource validates champion names and serves their art ([services.DDragonService]).
type ChampionSource interface {
	ValidateChampion(ctx context.Context, name string) error
	DownloadImage(ctx context.Context, name string) ([]byte, error)
}

// StorageProvider authorizes the user and stores files on their behalf ([services.DropboxService]).
type StorageProvider interface {
	AuthCodeURL(state string) string
	ExchangeCode(ctx context.Context, code string) (*oauth2.Token, error)
	UploadImage(ctx context.Context, data []byte, filename string, token *oauth2.Token) (*services.UploadResult, error)
}

// AssetStore holds downloaded images between download and upload ([assets.Store]).
type AssetStore interface {
	Write(name string, data []byte) error
	Read(name string) ([]byte, error)
	Remove(name string) error
}

// RunRecorder persists pipeline runs (repositories.RunRepository).
type RunRecorder interface {
	Create(run *models.Run) error
	Update(run *models.Run) error
}

// PipelineOpts contains the dependencies of a [Pipeline].
//
// Recorder, Logger and Progress are optional.
type PipelineOpts struct {
	Source            ChampionSource
	Storage           StorageProvider
	Assets            AssetStore
	Coordinator       flow.Coordinator
	Recorder          RunRecorder
	Logger            *log.Logger
	Progress          chan<- StageUpdate
	RemoveAfterUpload bool // Delete the local copy once the upload succeeds
}

// Pipeline implements the two-request champion upload flow.
type Pipeline struct {
	source            ChampionSource
	storage           StorageProvider
	assets            AssetStore
	coordinator       flow.Coordinator
	recorder          RunRecorder
	logger            *log.Logger
	progress          chan<- StageUpdate
	removeAfterUpload bool
}

// NewPipeline creates a new [Pipeline] from opts.
func NewPipeline(opts PipelineOpts) (*Pipeline, error) {
	switch {
	case opts.Source == nil:
		return nil, fmt.Errorf("%w: pipeline requires a champion source", shared.ErrInvalidConfig)
	case opts.Storage == nil:
		return nil, fmt.Errorf("%w: pipeline requires a storage provider", shared.ErrInvalidConfig)
	case opts.Assets == nil:
		return nil, fmt.Errorf("%w: pipeline requires an asset store", shared.ErrInvalidConfig)
	case opts.Coordinator == nil:
		return nil, fmt.Errorf("%w: pipeline requires a flow coordinator", shared.ErrInvalidConfig)
	}

	logger := opts.Logger
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	return &Pipeline{
		source:            opts.Source,
		storage:           opts.Storage,
		assets:            opts.Assets,
		coordinator:       opts.Coordinator,
		recorder:          opts.Recorder,
		logger:            logger,
		progress:          opts.Progress,
		removeAfterUpload: opts.RemoveAfterUpload,
	}, nil
}

// sendProgress sends a progress update through the channel without blocking.
// Uses select with default to ensure progress reporting never blocks execution.
func (p *Pipeline) sendProgress(update StageUpdate) {
	if p.progress == nil {
		return
	}
	select {
	case p.progress <- update:
	default:
	}
}

// Start validates subject, records it as pending and returns the authorize URL to redirect the browser to.
//
// Nothing is stored when validation fails.
func (p *Pipeline) Start(ctx context.Context, subject string) (string, error) {
	logger := shared.WithLogger(p.logger, "subject", subject)

	p.sendProgress(validatingUpdate(subject))
	if err := p.source.ValidateChampion(ctx, subject); err != nil {
		logger.Warn("champion validation failed", "error", err)
		p.sendProgress(failedUpdate(subject, err))
		return "", &StageError{Stage: models.StageValidating, Subject: subject, Err: err}
	}

	state, err := p.coordinator.Begin(ctx, subject)
	if err != nil {
		p.sendProgress(failedUpdate(subject, err))
		return "", &StageError{Stage: models.StageValidating, Subject: subject, Err: err}
	}

	p.sendProgress(awaitingAuthUpdate(subject))
	logger.Info("awaiting authorization", "state", state)

	return p.storage.AuthCodeURL(state), nil
}

// Resume completes the flow pending under state using the authorization code from the callback.
//
// Exchange, download, write, read and upload run in order and the first failure ends the run. When nothing is
// pending the call fails with [shared.ErrNoPendingFlow] before any network request is made.
func (p *Pipeline) Resume(ctx context.Context, state, code string) (string, error) {
	subject, err := p.coordinator.Resume(ctx, state)
	if err != nil {
		p.logger.Warn("callback without pending flow", "state", state, "error", err)
		return "", &StageError{Stage: models.StageAwaitingAuth, Err: err}
	}

	logger := shared.WithLogger(p.logger, "subject", subject)
	run := models.NewRun(subject)
	p.record(logger, run, true)

	p.sendProgress(exchangingUpdate(subject))
	token, err := p.storage.ExchangeCode(ctx, code)
	if err != nil {
		return "", p.fail(logger, run, err)
	}

	p.advance(logger, run, models.StageDownloading)
	p.sendProgress(downloadingUpdate(subject))
	data, err := p.source.DownloadImage(ctx, subject)
	if err != nil {
		return "", p.fail(logger, run, err)
	}

	filename := assets.FileName(subject)
	if err := p.assets.Write(filename, data); err != nil {
		return "", p.fail(logger, run, err)
	}

	stored, err := p.assets.Read(filename)
	if err != nil {
		return "", p.fail(logger, run, err)
	}

	p.advance(logger, run, models.StageUploading)
	p.sendProgress(uploadingUpdate(subject, filename, len(stored)))
	result, err := p.storage.UploadImage(ctx, stored, filename, token)
	if err != nil {
		return "", p.fail(logger, run, err)
	}
	logger.Debug("upload response", "body", string(result.Response))

	if p.removeAfterUpload {
		if err := p.assets.Remove(filename); err != nil {
			logger.Warn("failed to remove local asset", "file", filename, "error", err)
		}
	}

	run.SetLocation(result.Location)
	p.advance(logger, run, models.StageDone)
	p.sendProgress(doneUpdate(subject, result.Location))
	logger.Info("champion uploaded", "location", result.Location)

	return result.Location, nil
}

// Deny ends the flow pending under state after the provider reported that the user refused consent.
func (p *Pipeline) Deny(ctx context.Context, state, reason string) error {
	subject, err := p.coordinator.Resume(ctx, state)
	if err != nil {
		p.logger.Warn("denied callback without pending flow", "state", state, "reason", reason)
		return &StageError{Stage: models.StageAwaitingAuth, Err: err}
	}

	logger := shared.WithLogger(p.logger, "subject", subject)
	run := models.NewRun(subject)
	run.Advance(models.StageAwaitingAuth)
	p.record(logger, run, true)

	return p.fail(logger, run, fmt.Errorf("%w: %s", shared.ErrAuthDenied, reason))
}

// fail marks run as failed at its current stage and returns the matching [*StageError].
func (p *Pipeline) fail(logger *log.Logger, run *models.Run, err error) error {
	stage := run.Stage()
	run.Fail(err)
	p.record(logger, run, false)
	p.sendProgress(failedUpdate(run.Subject(), err))

	logger.Error("pipeline run failed", "stage", stage, "error", err)
	return &StageError{Stage: stage, Subject: run.Subject(), Err: err}
}

func (p *Pipeline) advance(logger *log.Logger, run *models.Run, stage models.Stage) {
	run.Advance(stage)
	p.record(logger, run, false)
}

// record stores run, ignoring errors so history never disrupts an upload.
func (p *Pipeline) record(logger *log.Logger, run *models.Run, create bool) {
	if p.recorder == nil {
		return
	}

	var err error
	if create {
		err = p.recorder.Create(run)
	} else if run.ID() != "" {
		err = p.recorder.Update(run)
	}
	if err != nil {
		logger.Warn("failed to record run", "stage", run.Stage(), "error", err)
	}
}
