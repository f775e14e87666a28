package worker

import (
	"context"
	"log"

	"github.com/google/uuid"

	"image-batch-service/internal/entity"
)

// JobLoader loads the job record a claimed queue id points at.
type JobLoader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Job, error)
}

// Processor is the bridge between the queue (which carries bare job
// ids) and the runner (which wants the job's rows and webhook URL).
type Processor struct {
	repo   JobLoader
	runner *Runner
}

func NewProcessor(repo JobLoader, runner *Runner) *Processor {
	return &Processor{repo: repo, runner: runner}
}

func (p *Processor) Process(ctx context.Context, jobID string) error {
	id, err := uuid.Parse(jobID)
	if err != nil {
		log.Printf("[worker] job_id=%s parse error=%v", jobID, err)
		return err
	}

	job, err := p.repo.GetByID(ctx, id)
	if err != nil {
		log.Printf("[worker] job_id=%s load error=%v", id, err)
		return err
	}

	// The reaper may redeliver an id whose terminal write already
	// landed. Terminal statuses are never overwritten, so just drop it.
	if job.Status.Terminal() {
		log.Printf("[worker] job_id=%s status=%s skipping redelivery", id, job.Status)
		return nil
	}

	return p.runner.Run(ctx, id, job.Rows, job.WebhookURL)
}
