package server

import (
	"net/http"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", s.app.StatusHandler.HealthHandler)

	// Crew execution
	mux.HandleFunc("/execute", s.app.JobHandler.ExecuteHandler)            // POST - run and wait for result
	mux.HandleFunc("/execute/async", s.app.JobHandler.ExecuteAsyncHandler) // POST - queue, result via callback

	if s.app.MetricsHandler != nil {
		path := s.app.Config.Metrics.Path
		if path == "" {
			path = "/metrics"
		}
		mux.Handle(path, s.app.MetricsHandler)
	}

	return mux
}
