package postgresql

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"image-batch-service/internal/entity"
)

var (
	ErrNotFound = errors.New("not found")

	// ErrTerminalStatus is returned when a write would touch a job that
	// already reached COMPLETED or FAILED. Terminal statuses are final.
	ErrTerminalStatus = errors.New("job already in terminal status")
)

// JobRepository owns the job_request table and the status state machine
// PENDING -> PROCESSING -> {COMPLETED | FAILED}. It is the only writer
// of job status fields.
type JobRepository struct {
	pool *pgxpool.Pool
}

func NewJobRepository(pool *pgxpool.Pool) *JobRepository {
	return &JobRepository{pool: pool}
}

func (r *JobRepository) Create(ctx context.Context, id uuid.UUID, rows []entity.Row, webhookURL string) error {
	input, err := json.Marshal(rows)
	if err != nil {
		return fmt.Errorf("marshal rows: %w", err)
	}

	const q = `
INSERT INTO job_request (request_id, status, input_rows, webhook_url)
VALUES ($1, 'PENDING', $2, NULLIF($3, ''));
`
	if _, err := r.pool.Exec(ctx, q, id, input, webhookURL); err != nil {
		return fmt.Errorf("insert job %s: %w", id, err)
	}
	return nil
}

func (r *JobRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.Job, error) {
	const q = `
SELECT request_id, status, input_rows, COALESCE(webhook_url, ''),
       completion_percentage, error_message, created_at, updated_at
FROM job_request
WHERE request_id = $1;
`

	var (
		job        entity.Job
		statusText string
		inputBytes []byte
		errText    *string
		createdAt  time.Time
		updatedAt  time.Time
	)

	if err := r.pool.QueryRow(ctx, q, id).Scan(
		&job.ID,
		&statusText,
		&inputBytes,
		&job.WebhookURL,
		&job.CompletionPercentage,
		&errText,
		&createdAt,
		&updatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	job.Status = entity.JobStatus(statusText)
	job.ErrorMessage = errText
	job.CreatedAt = createdAt
	job.UpdatedAt = updatedAt

	if len(inputBytes) > 0 {
		if err := json.Unmarshal(inputBytes, &job.Rows); err != nil {
			return nil, fmt.Errorf("unmarshal rows for job %s: %w", id, err)
		}
	}

	return &job, nil
}

// MarkProcessing flips the job into PROCESSING. It is idempotent when
// the job is already PROCESSING (a runner retried after a crash) but
// never reopens a terminal job.
func (r *JobRepository) MarkProcessing(ctx context.Context, id uuid.UUID) error {
	const q = `
UPDATE job_request
SET status = 'PROCESSING', updated_at = now()
WHERE request_id = $1 AND status IN ('PENDING', 'PROCESSING');
`
	tag, err := r.pool.Exec(ctx, q, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return r.classifyMiss(ctx, id)
	}
	return nil
}

// RecordProgress bumps completion_percentage and updated_at without
// touching the status. GREATEST keeps the persisted value monotonic
// even if a late writer shows up with a smaller percentage.
func (r *JobRepository) RecordProgress(ctx context.Context, id uuid.UUID, percentage int) error {
	if percentage < 0 {
		percentage = 0
	}
	if percentage > 100 {
		percentage = 100
	}

	const q = `
UPDATE job_request
SET completion_percentage = GREATEST(completion_percentage, $2), updated_at = now()
WHERE request_id = $1 AND status = 'PROCESSING';
`
	tag, err := r.pool.Exec(ctx, q, id, percentage)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return r.classifyMiss(ctx, id)
	}
	return nil
}

// MarkCompleted writes the COMPLETED terminal status and clears any
// stale error message. A job that is already terminal is left alone.
func (r *JobRepository) MarkCompleted(ctx context.Context, id uuid.UUID) error {
	const q = `
UPDATE job_request
SET status = 'COMPLETED', completion_percentage = 100, error_message = NULL, updated_at = now()
WHERE request_id = $1 AND status NOT IN ('COMPLETED', 'FAILED');
`
	tag, err := r.pool.Exec(ctx, q, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return r.classifyMiss(ctx, id)
	}
	return nil
}

func (r *JobRepository) MarkFailed(ctx context.Context, id uuid.UUID, errMessage string) error {
	if errMessage == "" {
		errMessage = "job failed"
	}

	const q = `
UPDATE job_request
SET status = 'FAILED', error_message = $2, updated_at = now()
WHERE request_id = $1 AND status NOT IN ('COMPLETED', 'FAILED');
`
	tag, err := r.pool.Exec(ctx, q, id, errMessage)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return r.classifyMiss(ctx, id)
	}
	return nil
}

// classifyMiss decides why a guarded update matched no row: the job is
// gone, terminal, or simply not in the state the guard expects (a
// progress write against a PENDING job is a no-op, not an error).
func (r *JobRepository) classifyMiss(ctx context.Context, id uuid.UUID) error {
	const q = `SELECT status FROM job_request WHERE request_id = $1;`

	var statusText string
	if err := r.pool.QueryRow(ctx, q, id).Scan(&statusText); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	if entity.JobStatus(statusText).Terminal() {
		return ErrTerminalStatus
	}
	return nil
}
