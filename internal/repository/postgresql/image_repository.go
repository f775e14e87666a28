package postgresql

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ImageRepository holds the encoded bytes of processed images. Rows are
// written exactly once per artifact and never updated.
type ImageRepository struct {
	pool *pgxpool.Pool
}

func NewImageRepository(pool *pgxpool.Pool) *ImageRepository {
	return &ImageRepository{pool: pool}
}

func (r *ImageRepository) Insert(ctx context.Context, id, jobID uuid.UUID, sourceURL string, data []byte) error {
	const q = `
INSERT INTO images (id, request_id, source_url, image_data)
VALUES ($1, $2, $3, $4);
`
	if _, err := r.pool.Exec(ctx, q, id, jobID, sourceURL, data); err != nil {
		return fmt.Errorf("insert image %s: %w", id, err)
	}
	return nil
}

// Get returns the stored bytes for one image id. This is the read path
// the public link resolves through.
func (r *ImageRepository) Get(ctx context.Context, id uuid.UUID) ([]byte, error) {
	const q = `SELECT image_data FROM images WHERE id = $1;`

	var data []byte
	if err := r.pool.QueryRow(ctx, q, id).Scan(&data); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return data, nil
}

// CountByJob reports how many artifacts a job produced.
func (r *ImageRepository) CountByJob(ctx context.Context, jobID uuid.UUID) (int64, error) {
	const q = `SELECT count(*) FROM images WHERE request_id = $1;`

	var n int64
	if err := r.pool.QueryRow(ctx, q, jobID).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}
