package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/curtail/internal/interfaces"
	"github.com/ternarybob/curtail/internal/models"
	"github.com/ternarybob/curtail/internal/services/shortener"
	"github.com/ternarybob/curtail/internal/services/stats"
)

// StatsHandler serves the aggregate click statistics.
type StatsHandler struct {
	stats     *stats.Service
	shortener *shortener.Service
	clicks    interfaces.ClickStorage
	logger    arbor.ILogger
}

// NewStatsHandler creates a new stats handler with dependencies.
func NewStatsHandler(
	statsService *stats.Service,
	shortenerService *shortener.Service,
	clicks interfaces.ClickStorage,
	logger arbor.ILogger,
) *StatsHandler {
	return &StatsHandler{
		stats:     statsService,
		shortener: shortenerService,
		clicks:    clicks,
		logger:    logger,
	}
}

type urlStatsResponse struct {
	Hash         string              `json:"hash"`
	URL          string              `json:"url"`
	Stats        *stats.URLStats     `json:"stats"`
	RecentClicks []*models.ClickInfo `json:"recentClicks"`
}

// GetURLStatsHandler handles GET /api/links/{hash}/stats.
func (h *StatsHandler) GetURLStatsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/api/links/")
	hash, ok := strings.CutSuffix(rest, "/stats")
	if !ok || hash == "" || strings.Contains(hash, "/") {
		WriteError(w, http.StatusNotFound, "not found")
		return
	}

	shortURL, err := h.shortener.Resolve(r.Context(), hash)
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			WriteError(w, http.StatusNotFound, "short url not found")
			return
		}
		h.logger.Error().Err(err).Str("hash", hash).Msg("Short url lookup failed")
		WriteError(w, http.StatusInternalServerError, "internal error")
		return
	}

	urlStats, err := h.stats.URLStats(r.Context(), hash)
	if err != nil {
		h.logger.Error().Err(err).Str("hash", hash).Msg("Stats read failed")
		WriteError(w, http.StatusInternalServerError, "internal error")
		return
	}

	limit := 20
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 && parsed <= 100 {
			limit = parsed
		}
	}
	recent, err := h.clicks.ListByShortURL(r.Context(), hash, limit)
	if err != nil {
		h.logger.Warn().Err(err).Str("hash", hash).Msg("Click history read failed")
		recent = nil
	}
	if recent == nil {
		recent = []*models.ClickInfo{}
	}

	WriteJSON(w, http.StatusOK, urlStatsResponse{
		Hash:         hash,
		URL:          shortURL.URL,
		Stats:        urlStats,
		RecentClicks: recent,
	})
}

// GetSystemStatsHandler handles GET /api/stats.
func (h *StatsHandler) GetSystemStatsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	systemStats, err := h.stats.SystemStats(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("System stats read failed")
		WriteError(w, http.StatusInternalServerError, "internal error")
		return
	}

	WriteJSON(w, http.StatusOK, systemStats)
}
