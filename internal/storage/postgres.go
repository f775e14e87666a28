package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ImageInserter is the slice of the image repository this store needs.
type ImageInserter interface {
	Insert(ctx context.Context, id, jobID uuid.UUID, sourceURL string, data []byte) error
}

// PostgresStore keeps image bytes as blobs in the relational store and
// hands out links served by the API's image read path. Link uniqueness
// follows from image id uniqueness.
type PostgresStore struct {
	images  ImageInserter
	baseURL string
}

func NewPostgresStore(images ImageInserter, baseURL string) *PostgresStore {
	return &PostgresStore{
		images:  images,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

func (s *PostgresStore) Store(ctx context.Context, jobID, imageID uuid.UUID, sourceURL string, data []byte) (string, error) {
	if err := s.images.Insert(ctx, imageID, jobID, sourceURL, data); err != nil {
		return "", fmt.Errorf("persist image %s: %w", imageID, err)
	}
	return s.baseURL + "/images/" + imageID.String(), nil
}
