package tasks

import (
	"fmt"

	"github.com/desertthunder/champbox/internal/models"
)

// StageUpdate represents a progress event during a pipeline run.
//
// Used to send real-time updates to the CLI or server log.
type StageUpdate struct {
	Stage   models.Stage // Stage the run just entered
	Subject string       // Champion name
	Message string       // Human-readable message for display
	Err     error        // Set on [models.StageFailed]
}

// StageError reports the stage at which a run stopped.
type StageError struct {
	Stage   models.Stage
	Subject string
	Err     error
}

func (e *StageError) Error() string {
	if e.Subject == "" {
		return fmt.Sprintf("%s: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("%s %q: %v", e.Stage, e.Subject, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

func validatingUpdate(subject string) StageUpdate {
	return StageUpdate{
		Stage:   models.StageValidating,
		Subject: subject,
		Message: fmt.Sprintf("Validating champion %s...", subject),
	}
}

func awaitingAuthUpdate(subject string) StageUpdate {
	return StageUpdate{
		Stage:   models.StageAwaitingAuth,
		Subject: subject,
		Message: "Waiting for Dropbox authorization...",
	}
}

func exchangingUpdate(subject string) StageUpdate {
	return StageUpdate{
		Stage:   models.StageExchanging,
		Subject: subject,
		Message: "Exchanging authorization code...",
	}
}

func downloadingUpdate(subject string) StageUpdate {
	return StageUpdate{
		Stage:   models.StageDownloading,
		Subject: subject,
		Message: fmt.Sprintf("Downloading %s loading-screen art...", subject),
	}
}

func uploadingUpdate(subject, filename string, size int) StageUpdate {
	return StageUpdate{
		Stage:   models.StageUploading,
		Subject: subject,
		Message: fmt.Sprintf("Uploading %s (%d bytes)...", filename, size),
	}
}

func doneUpdate(subject, location string) StageUpdate {
	return StageUpdate{
		Stage:   models.StageDone,
		Subject: subject,
		Message: fmt.Sprintf("✓ Uploaded: %s", location),
	}
}

func failedUpdate(subject string, err error) StageUpdate {
	return StageUpdate{
		Stage:   models.StageFailed,
		Subject: subject,
		Message: fmt.Sprintf("✗ %v", err),
		Err:     err,
	}
}
