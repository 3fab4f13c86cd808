// Package httpx provides the HTTP surface of the summarizer: document submission and polling.
package httpx

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/target/mmk-summarizer/internal/domain/model"
)

// DocumentService is the job surface the document handlers depend on.
type DocumentService interface {
	Create(ctx context.Context, req model.CreateJobRequest) (*model.Job, error)
	Get(ctx context.Context, id string) (*model.Job, error)
}

// DocumentHandlers provides HTTP handlers for submitting and polling summarization jobs.
type DocumentHandlers struct {
	Svc    DocumentService
	Logger *slog.Logger
}

// documentResponse is the wire shape of a job. Clients poll data_progress.
type documentResponse struct {
	DocumentUUID string          `json:"document_uuid"`
	Status       model.JobStatus `json:"status"`
	Name         string          `json:"name"`
	URL          string          `json:"URL"`
	Summary      *string         `json:"summary"`
	DataProgress float64         `json:"data_progress"`
}

func newDocumentResponse(job *model.Job) documentResponse {
	return documentResponse{
		DocumentUUID: job.ID,
		Status:       job.Status,
		Name:         job.Name,
		URL:          job.URL,
		Summary:      job.Summary,
		DataProgress: float64(job.Progress),
	}
}

// CreateDocument accepts a (name, URL) pair and schedules its summarization.
func (h *DocumentHandlers) CreateDocument(w http.ResponseWriter, r *http.Request) {
	var req model.CreateJobRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	job, err := h.Svc.Create(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, h.Logger, err)
		return
	}

	WriteJSON(w, http.StatusAccepted, newDocumentResponse(job))
}

// GetDocument returns the current state of a job.
func (h *DocumentHandlers) GetDocument(w http.ResponseWriter, r *http.Request) {
	job, err := h.Svc.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, h.Logger, err)
		return
	}

	WriteJSON(w, http.StatusOK, newDocumentResponse(job))
}
