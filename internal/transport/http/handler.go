package httptransport

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"image-batch-service/internal/entity"
	"image-batch-service/internal/ingest"
	"image-batch-service/internal/repository/postgresql"
	"image-batch-service/internal/service"
)

const mimeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ImageReader is the read path of the image store the handler serves
// public links from.
type ImageReader interface {
	Get(ctx context.Context, id uuid.UUID) ([]byte, error)
}

type Handler struct {
	jobSvc      *service.JobService
	images      ImageReader
	validate    *validator.Validate
	maxUploadMB int64
}

func NewHandler(jobSvc *service.JobService, images ImageReader, maxUploadMB int64) *Handler {
	if maxUploadMB <= 0 {
		maxUploadMB = 32
	}
	return &Handler{
		jobSvc:      jobSvc,
		images:      images,
		validate:    validator.New(),
		maxUploadMB: maxUploadMB,
	}
}

type uploadParams struct {
	WebhookURL string `validate:"omitempty,url"`
}

type uploadResp struct {
	RequestID string `json:"request_id"`
}

type statusResp struct {
	RequestID            string `json:"request_id"`
	Status               string `json:"status"`
	CreatedAt            string `json:"created_at"`
	UpdatedAt            string `json:"updated_at"`
	CompletionPercentage int    `json:"completion_percentage"`
	ErrorMessage         string `json:"error_message,omitempty"`
}

// Upload godoc
// @Summary Upload a product spreadsheet
// @Description Accepts a CSV or XLSX file with "S. No.", "Product Name" and "Input Image Urls" columns, creates a PENDING job and enqueues it for background image processing.
// @Tags jobs
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "spreadsheet file"
// @Param webhook_url formData string false "URL notified once on the terminal status"
// @Success 202 {object} uploadResp
// @Failure 400 {object} apiError
// @Failure 500 {object} apiError
// @Router /upload [post]
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadMB<<20)

	if err := r.ParseMultipartForm(h.maxUploadMB << 20); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart request: "+err.Error())
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, `missing file: form field key should be "file"`)
		return
	}
	defer file.Close()

	params := uploadParams{WebhookURL: r.FormValue("webhook_url")}
	if err := h.validate.Struct(params); err != nil {
		writeError(w, http.StatusBadRequest, "webhook_url must be a valid URL")
		return
	}

	mime, err := mimetype.DetectReader(file)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to sniff file type")
		return
	}
	if _, err := file.Seek(0, 0); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to rewind upload")
		return
	}

	var rows []entity.Row
	switch {
	case mime.Is(mimeXLSX):
		rows, err = ingest.ParseXLSX(file)
	case mime.Is("text/csv") || mime.Is("text/plain"):
		rows, err = ingest.ParseCSV(file)
	default:
		writeError(w, http.StatusBadRequest, "file must be a CSV or XLSX spreadsheet")
		return
	}
	if err != nil {
		var schemaErr *ingest.SchemaError
		if errors.Is(err, ingest.ErrEmptyFile) || errors.As(err, &schemaErr) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusBadRequest, "failed to parse file: "+err.Error())
		return
	}

	id, err := h.jobSvc.SubmitJob(r.Context(), rows, params.WebhookURL)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to admit job")
		return
	}

	writeJSON(w, http.StatusAccepted, uploadResp{RequestID: id.String()})
}

// GetJobStatus godoc
// @Summary Get job status
// @Tags jobs
// @Produce json
// @Param id path string true "job id (uuid)"
// @Success 200 {object} statusResp
// @Failure 400 {object} apiError
// @Failure 404 {object} apiError
// @Router /jobs/{id}/status [get]
func (h *Handler) GetJobStatus(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request_id format")
		return
	}

	job, err := h.jobSvc.GetJob(r.Context(), id)
	if err != nil {
		if errors.Is(err, postgresql.ErrNotFound) {
			writeError(w, http.StatusNotFound, "job not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to retrieve job status")
		return
	}

	resp := statusResp{
		RequestID:            job.ID.String(),
		Status:               string(job.Status),
		CreatedAt:            job.CreatedAt.Format(time.RFC3339),
		UpdatedAt:            job.UpdatedAt.Format(time.RFC3339),
		CompletionPercentage: job.CompletionPercentage,
	}
	if job.ErrorMessage != nil {
		resp.ErrorMessage = *job.ErrorMessage
	}

	writeJSON(w, http.StatusOK, resp)
}

// GetImage godoc
// @Summary Fetch a processed image
// @Tags images
// @Produce jpeg
// @Param id path string true "image id (uuid)"
// @Success 200 {file} binary
// @Failure 400 {object} apiError
// @Failure 404 {object} apiError
// @Router /images/{id} [get]
func (h *Handler) GetImage(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid image id")
		return
	}

	data, err := h.images.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, postgresql.ErrNotFound) {
			writeError(w, http.StatusNotFound, "image not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to read image")
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
