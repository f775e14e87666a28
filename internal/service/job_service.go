package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"image-batch-service/internal/entity"
)

// JobRepository is the admission-side port of the job store
// (implementation: postgresql.JobRepository).
type JobRepository interface {
	Create(ctx context.Context, id uuid.UUID, rows []entity.Row, webhookURL string) error
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Job, error)
}

// Scheduler hands an admitted job id to the background workers.
type Scheduler interface {
	Enqueue(ctx context.Context, jobID string) error
}

type JobService struct {
	repo      JobRepository
	scheduler Scheduler
}

func NewJobService(repo JobRepository, scheduler Scheduler) *JobService {
	return &JobService{repo: repo, scheduler: scheduler}
}

// SubmitJob persists a pre-validated row set as a PENDING job and
// enqueues it. An empty row set is still admitted; it fails
// asynchronously inside the run, which is where the client observes it.
func (s *JobService) SubmitJob(ctx context.Context, rows []entity.Row, webhookURL string) (uuid.UUID, error) {
	id := uuid.New()

	if err := s.repo.Create(ctx, id, rows, webhookURL); err != nil {
		return uuid.Nil, fmt.Errorf("create job: %w", err)
	}
	if err := s.scheduler.Enqueue(ctx, id.String()); err != nil {
		return uuid.Nil, fmt.Errorf("enqueue job: %w", err)
	}

	return id, nil
}

func (s *JobService) GetJob(ctx context.Context, id uuid.UUID) (*entity.Job, error) {
	return s.repo.GetByID(ctx, id)
}
