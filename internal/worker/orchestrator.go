package worker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"

	"image-batch-service/internal/entity"
	"image-batch-service/internal/imaging"
)

// ErrEmptyInput marks a job whose spreadsheet carried no data rows.
// Unlike per-image failures this fails the whole job.
var ErrEmptyInput = errors.New("the uploaded file contains no data rows")

type Transformer interface {
	Transform(ctx context.Context, sourceURL string) ([]byte, error)
}

type ImageStore interface {
	Store(ctx context.Context, jobID, imageID uuid.UUID, sourceURL string, data []byte) (string, error)
}

// ProgressTracker is the slice of the job repository the orchestrator
// needs: recording completion percentage between rows.
type ProgressTracker interface {
	RecordProgress(ctx context.Context, jobID uuid.UUID, percentage int) error
}

type ImageFailure struct {
	URL    string
	Kind   imaging.ErrorKind
	Reason string
}

// RunOutcome aggregates what happened across all rows of one run.
// Per-image failures are detail, not verdicts: Err is set only for the
// two hard conditions (empty input, unobservable progress) that fail
// the job itself.
type RunOutcome struct {
	RowsSucceeded    int
	RowsWithFailures int
	ArtifactLinks    []string
	ImageFailures    []ImageFailure
	Err              error
}

// Orchestrator walks a job's rows and drives the transformer and the
// image store for every URL. Images are fault-isolated from each other;
// a bad URL costs one artifact, never the job.
type Orchestrator struct {
	transformer Transformer
	store       ImageStore
	tracker     ProgressTracker
}

func NewOrchestrator(transformer Transformer, store ImageStore, tracker ProgressTracker) *Orchestrator {
	return &Orchestrator{
		transformer: transformer,
		store:       store,
		tracker:     tracker,
	}
}

func (o *Orchestrator) ProcessRows(ctx context.Context, jobID uuid.UUID, rows []entity.Row) RunOutcome {
	var out RunOutcome

	if len(rows) == 0 {
		out.Err = ErrEmptyInput
		return out
	}

	total := len(rows)
	for i, row := range rows {
		failed := 0

		for _, raw := range row.ImageURLs {
			u := strings.TrimSpace(raw)
			if u == "" {
				continue
			}

			link, err := o.processImage(ctx, jobID, u)
			if err != nil {
				failed++
				out.ImageFailures = append(out.ImageFailures, classifyFailure(u, err))
				log.Printf("[orchestrator] job_id=%s url=%s error=%v", jobID, u, err)
				continue
			}
			out.ArtifactLinks = append(out.ArtifactLinks, link)
		}

		if failed == 0 {
			out.RowsSucceeded++
		} else {
			out.RowsWithFailures++
		}

		// Progress must stay observable. If the status record cannot be
		// written the run aborts as an infrastructure failure.
		pct := 100 * (i + 1) / total
		if err := o.tracker.RecordProgress(ctx, jobID, pct); err != nil {
			out.Err = fmt.Errorf("record progress: %w", err)
			return out
		}
	}

	return out
}

func (o *Orchestrator) processImage(ctx context.Context, jobID uuid.UUID, sourceURL string) (string, error) {
	data, err := o.transformer.Transform(ctx, sourceURL)
	if err != nil {
		return "", err
	}

	imageID := uuid.New()
	link, err := o.store.Store(ctx, jobID, imageID, sourceURL, data)
	if err != nil {
		return "", err
	}
	return link, nil
}

func classifyFailure(sourceURL string, err error) ImageFailure {
	var ie *imaging.Error
	if errors.As(err, &ie) {
		return ImageFailure{URL: sourceURL, Kind: ie.Kind, Reason: ie.Err.Error()}
	}
	// Anything past the transformer is a storage-layer fault.
	return ImageFailure{URL: sourceURL, Kind: imaging.KindPersist, Reason: err.Error()}
}
