package server

import (
	"net/http"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// API routes - link submission and job polling
	mux.HandleFunc("/api/links", s.app.LinkHandler.SubmitLinkHandler)        // POST - submit a url
	mux.HandleFunc("/api/links/", s.app.StatsHandler.GetURLStatsHandler)     // GET /{hash}/stats
	mux.HandleFunc("/api/jobs/", s.app.LinkHandler.GetJobHandler)            // GET /{id}
	mux.HandleFunc("/api/stats", s.app.StatsHandler.GetSystemStatsHandler)   // GET - system aggregates
	mux.HandleFunc("/api/status", s.app.StatusHandler.GetStatusHandler)      // GET - queues + rate limiter
	mux.HandleFunc("/api/version", s.app.StatusHandler.VersionHandler)       // GET
	mux.HandleFunc("/api/health", s.app.StatusHandler.HealthHandler)         // GET

	// Redirect route: everything else is a short key
	mux.HandleFunc("/", s.app.LinkHandler.RedirectHandler)

	return mux
}
