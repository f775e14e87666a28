package entity

import (
	"time"

	"github.com/google/uuid"
)

type JobStatus string

const (
	StatusPending    JobStatus = "PENDING"
	StatusProcessing JobStatus = "PROCESSING"
	StatusCompleted  JobStatus = "COMPLETED"
	StatusFailed     JobStatus = "FAILED"
)

// Terminal reports whether the status permits no further transition.
func (s JobStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Row is one spreadsheet line: a product plus the source URLs of its
// images. Rows are not persisted as their own entity; they travel inside
// the job record as its input payload.
type Row struct {
	Serial      string   `json:"serial"`
	ProductName string   `json:"product_name"`
	ImageURLs   []string `json:"image_urls"`
}

type Job struct {
	ID                   uuid.UUID `json:"request_id"`
	Status               JobStatus `json:"status"`
	Rows                 []Row     `json:"-"`
	WebhookURL           string    `json:"-"`
	CompletionPercentage int       `json:"completion_percentage"`
	ErrorMessage         *string   `json:"error_message,omitempty"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// ImageArtifact is one processed image. The encoded bytes live in the
// image store; Link is the reference clients resolve. An artifact either
// exists completely or not at all.
type ImageArtifact struct {
	ID        uuid.UUID
	JobID     uuid.UUID
	SourceURL string
	Link      string
	CreatedAt time.Time
}
