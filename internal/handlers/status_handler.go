package handlers

import (
	"net/http"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/curtail/internal/common"
	"github.com/ternarybob/curtail/internal/interfaces"
)

// StatusHandler reports process health: queue depths and the safety-check
// rate limiter snapshot.
type StatusHandler struct {
	workQueue   interfaces.Queue
	resultQueue interfaces.Queue
	limiter     interfaces.RateLimiter
	environment string
	startedAt   time.Time
	logger      arbor.ILogger
}

// NewStatusHandler creates a new status handler with dependencies.
func NewStatusHandler(
	workQueue interfaces.Queue,
	resultQueue interfaces.Queue,
	limiter interfaces.RateLimiter,
	environment string,
	logger arbor.ILogger,
) *StatusHandler {
	return &StatusHandler{
		workQueue:   workQueue,
		resultQueue: resultQueue,
		limiter:     limiter,
		environment: environment,
		startedAt:   time.Now().UTC(),
		logger:      logger,
	}
}

type statusResponse struct {
	Status      string                       `json:"status"`
	Version     string                       `json:"version"`
	Environment string                       `json:"environment"`
	UptimeSec   int64                        `json:"uptimeSeconds"`
	Queues      map[string]int               `json:"queues"`
	RateLimiter interfaces.RateLimiterStatus `json:"rateLimiter"`
}

// GetStatusHandler handles GET /api/status.
func (h *StatusHandler) GetStatusHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	queues := make(map[string]int)
	if depth, err := h.workQueue.Len(r.Context()); err == nil {
		queues["work"] = depth
	} else {
		h.logger.Warn().Err(err).Msg("Work queue depth unavailable")
	}
	if depth, err := h.resultQueue.Len(r.Context()); err == nil {
		queues["results"] = depth
	} else {
		h.logger.Warn().Err(err).Msg("Result queue depth unavailable")
	}

	WriteJSON(w, http.StatusOK, statusResponse{
		Status:      "ok",
		Version:     common.Version,
		Environment: h.environment,
		UptimeSec:   int64(time.Since(h.startedAt).Seconds()),
		Queues:      queues,
		RateLimiter: h.limiter.Status(),
	})
}

// VersionHandler handles GET /api/version.
func (h *StatusHandler) VersionHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{
		"version": common.Version,
		"build":   common.Build,
	})
}

// HealthHandler handles GET /api/health.
func (h *StatusHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}
