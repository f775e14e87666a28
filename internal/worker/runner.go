package worker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"

	"image-batch-service/internal/entity"
	"image-batch-service/internal/webhook"
)

const (
	completedMessage   = "CSV and image processing completed successfully."
	infraFailedMessage = "image processing failed: could not persist job progress"
	panicFailedMessage = "image processing failed unexpectedly"
)

// StatusTracker is the full status port of the job repository the
// runner drives the state machine through.
type StatusTracker interface {
	ProgressTracker
	MarkProcessing(ctx context.Context, jobID uuid.UUID) error
	MarkCompleted(ctx context.Context, jobID uuid.UUID) error
	MarkFailed(ctx context.Context, jobID uuid.UUID, errMessage string) error
}

type Notifier interface {
	Notify(ctx context.Context, url string, p webhook.Payload)
}

// Runner drives one job to a terminal status: PENDING -> PROCESSING,
// the orchestrator across all rows, the terminal write, and the
// best-effort webhook. Exactly one runner handles a given job id at a
// time; isolation across jobs means nothing here may take the process
// down.
type Runner struct {
	tracker  StatusTracker
	orch     *Orchestrator
	notifier Notifier
}

func NewRunner(tracker StatusTracker, orch *Orchestrator, notifier Notifier) *Runner {
	return &Runner{
		tracker:  tracker,
		orch:     orch,
		notifier: notifier,
	}
}

// Run executes one job. The returned error reports the outcome to the
// caller's log; by the time Run returns, the terminal status is already
// persisted and the webhook attempted. Panics are converted to FAILED.
func (r *Runner) Run(ctx context.Context, jobID uuid.UUID, rows []entity.Row, webhookURL string) (err error) {
	start := time.Now()

	defer func() {
		if rec := recover(); rec != nil {
			sentry.CurrentHub().Recover(rec)
			r.fail(ctx, jobID, webhookURL, panicFailedMessage)
			log.Printf("[runner] job_id=%s panic=%v duration_ms=%d", jobID, rec, time.Since(start).Milliseconds())
			err = fmt.Errorf("job runner panic: %v", rec)
		}
	}()

	if err := r.tracker.MarkProcessing(ctx, jobID); err != nil {
		log.Printf("[runner] job_id=%s mark_processing error=%v", jobID, err)
		return err
	}

	out := r.orch.ProcessRows(ctx, jobID, rows)
	if out.Err != nil {
		sentry.CaptureException(out.Err)
		msg := failureMessage(out.Err)
		r.fail(ctx, jobID, webhookURL, msg)
		log.Printf("[runner] job_id=%s status=FAILED duration_ms=%d error=%v",
			jobID, time.Since(start).Milliseconds(), out.Err)
		return out.Err
	}

	if err := r.tracker.MarkCompleted(ctx, jobID); err != nil {
		log.Printf("[runner] job_id=%s mark_completed error=%v", jobID, err)
		return err
	}

	r.notifier.Notify(ctx, webhookURL, webhook.Payload{
		RequestID: jobID.String(),
		Status:    string(entity.StatusCompleted),
		Message:   completedMessage,
	})

	log.Printf("[runner] job_id=%s status=COMPLETED rows_ok=%d rows_with_failures=%d image_failures=%d duration_ms=%d",
		jobID, out.RowsSucceeded, out.RowsWithFailures, len(out.ImageFailures), time.Since(start).Milliseconds())
	return nil
}

func (r *Runner) fail(ctx context.Context, jobID uuid.UUID, webhookURL, msg string) {
	if err := r.tracker.MarkFailed(ctx, jobID, msg); err != nil {
		// The FAILED write did not land: the job is already terminal
		// (another run finished it) or the store is down. Either way no
		// transition happened, so there is nothing to announce.
		log.Printf("[runner] job_id=%s mark_failed error=%v", jobID, err)
		return
	}
	r.notifier.Notify(ctx, webhookURL, webhook.Payload{
		RequestID: jobID.String(),
		Status:    string(entity.StatusFailed),
		Message:   msg,
	})
}

// failureMessage maps a hard run failure to the sanitized summary that
// is persisted and sent to the webhook. Full detail stays in the logs.
func failureMessage(err error) string {
	if errors.Is(err, ErrEmptyInput) {
		return ErrEmptyInput.Error()
	}
	return infraFailedMessage
}
