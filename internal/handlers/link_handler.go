package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/curtail/internal/interfaces"
	"github.com/ternarybob/curtail/internal/models"
	"github.com/ternarybob/curtail/internal/services/shortener"
	"github.com/ternarybob/curtail/internal/services/validation"
)

// LinkHandler handles link submission, job polling and the redirect path.
type LinkHandler struct {
	orchestrator *validation.Orchestrator
	shortener    *shortener.Service
	events       interfaces.EventService
	logger       arbor.ILogger
}

// NewLinkHandler creates a new link handler with dependencies.
func NewLinkHandler(
	orchestrator *validation.Orchestrator,
	shortenerService *shortener.Service,
	events interfaces.EventService,
	logger arbor.ILogger,
) *LinkHandler {
	return &LinkHandler{
		orchestrator: orchestrator,
		shortener:    shortenerService,
		events:       events,
		logger:       logger,
	}
}

type submitRequest struct {
	URL string `json:"url"`
}

type submitResponse struct {
	JobID  string           `json:"jobId"`
	Status models.URLSafety `json:"status"`
}

// jobResponse is the polling view of a validation job. ShortURL is set
// only once the job settled Safe.
type jobResponse struct {
	JobID     string           `json:"jobId"`
	URL       string           `json:"url"`
	Status    models.URLSafety `json:"status"`
	CreatedAt time.Time        `json:"createdAt"`
	UpdatedAt *time.Time       `json:"updatedAt,omitempty"`
	ShortURL  string           `json:"shortUrl,omitempty"`
}

// SubmitLinkHandler handles POST /api/links. Accepted submissions return
// 202 with the job id; the short link materializes only after validation.
func (h *LinkHandler) SubmitLinkHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req submitRequest
	if err := decodeJSONBody(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "request body must be JSON with a url field")
		return
	}

	jobID, err := h.orchestrator.Enqueue(r.Context(), req.URL)
	if err != nil {
		switch {
		case errors.Is(err, interfaces.ErrInvalidInput):
			WriteError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, interfaces.ErrInvalidURL):
			WriteError(w, http.StatusUnprocessableEntity, err.Error())
		case errors.Is(err, interfaces.ErrQueuePublish):
			h.logger.Error().Err(err).Msg("Failed to enqueue validation job")
			WriteError(w, http.StatusServiceUnavailable, "validation queue unavailable")
		default:
			h.logger.Error().Err(err).Msg("Link submission failed")
			WriteError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	WriteJSON(w, http.StatusAccepted, submitResponse{
		JobID:  jobID,
		Status: models.SafetyPending,
	})
}

// GetJobHandler handles GET /api/jobs/{id}. A Safe job also commits and
// reports its short url, so pollers see the link the moment the verdict
// lands even if the terminal event was lost.
func (h *LinkHandler) GetJobHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	jobID := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
	if jobID == "" || strings.Contains(jobID, "/") {
		WriteError(w, http.StatusBadRequest, "job id required")
		return
	}

	job, err := h.orchestrator.Find(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			WriteError(w, http.StatusNotFound, "job not found")
			return
		}
		h.logger.Error().Err(err).Str("job_id", jobID).Msg("Job lookup failed")
		WriteError(w, http.StatusInternalServerError, "internal error")
		return
	}

	resp := jobResponse{
		JobID:     job.ID,
		URL:       job.URL,
		Status:    job.Status,
		CreatedAt: job.CreatedAt,
		UpdatedAt: job.UpdatedAt,
	}

	if job.Status == models.SafetySafe {
		shortURL, err := h.shortener.CommitFromJob(r.Context(), job)
		if err != nil {
			h.logger.Error().Err(err).Str("job_id", jobID).Msg("Short url commit failed")
		} else if shortURL != nil {
			resp.ShortURL = "/" + shortURL.Hash
		}
	}

	WriteJSON(w, http.StatusOK, resp)
}

// RedirectHandler handles GET /{key}: resolves the short link, answers
// with a 302 and emits a click event without waiting on analytics.
func (h *LinkHandler) RedirectHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	key := strings.Trim(r.URL.Path, "/")
	if key == "" || strings.Contains(key, "/") {
		http.NotFound(w, r)
		return
	}

	shortURL, err := h.shortener.Resolve(r.Context(), key)
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) || errors.Is(err, interfaces.ErrInvalidInput) {
			http.NotFound(w, r)
			return
		}
		h.logger.Error().Err(err).Str("key", key).Msg("Short url lookup failed")
		WriteError(w, http.StatusInternalServerError, "internal error")
		return
	}

	// Background context: the event outlives this request.
	browser, platform := parseUserAgent(r.UserAgent())
	h.events.Publish(context.Background(), interfaces.Event{
		Type: interfaces.EventClick,
		Payload: models.ClickEvent{
			ShortURLID: shortURL.Hash,
			IP:         ClientIP(r),
			Referrer:   r.Referer(),
			Browser:    browser,
			Platform:   platform,
			Timestamp:  time.Now().UTC(),
		},
	})

	http.Redirect(w, r, shortURL.URL, http.StatusFound)
}
