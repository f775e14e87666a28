package storage

import (
	"context"

	"github.com/google/uuid"
)

// ImageStore persists one transformed image under a (job id, image id)
// key and returns a durable link to it. A store failure means the image
// was not processed; callers treat it exactly like a transform failure.
// Implementations must be safe for concurrent use.
type ImageStore interface {
	Store(ctx context.Context, jobID, imageID uuid.UUID, sourceURL string, data []byte) (string, error)
}
