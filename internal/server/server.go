package server

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/claude/kanufit/internal/tracker"
)

// Server holds dependencies for HTTP handlers.
type Server struct {
	tr     *tracker.Tracker
	log    *slog.Logger
	apiKey string
	whois  WhoIser
	router chi.Router

	windowDays int
	months     int
}

// New creates a new Server with all routes configured.
func New(tr *tracker.Tracker, apiKey string, log *slog.Logger) *Server {
	s := &Server{
		tr:         tr,
		log:        log,
		apiKey:     apiKey,
		router:     chi.NewRouter(),
		windowDays: 30,
		months:     6,
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.router.Use(RequestLogging(s.log))
	s.router.Use(CORS)
	s.router.Use(s.identity)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Get("/me", s.handleMe)

		r.Get("/templates", s.handleListTemplates)
		r.Get("/templates/{id}", s.handleGetTemplate)
		r.Get("/session", s.handleGetSession)
		r.Get("/logs", s.handleListLogs)
		r.Get("/weights", s.handleListWeights)
		r.Get("/history", s.handleListHistory)
		r.Get("/history/{exerciseId}", s.handleGetHistory)
		r.Get("/insights", s.handleInsights)
		r.Get("/dashboard", s.handleDashboard)
		r.Get("/view", s.handleGetView)

		// Mutations (API key required)
		r.Group(func(r chi.Router) {
			r.Use(APIKeyAuth(s.apiKey))
			r.Post("/session", s.handleStartSession)
			r.Put("/session/sets", s.handleRecordSet)
			r.Post("/session/finish", s.handleFinishSession)
			r.Delete("/session", s.handleCancelSession)
			r.Delete("/logs/{id}", s.handleDeleteLog)
			r.Post("/weights", s.handleLogWeight)
			r.Delete("/weights/{id}", s.handleDeleteWeight)
			r.Post("/view", s.handleSetView)
		})
	})
}

// SetInsightsDefaults sets the window and month count used when a request
// omits them.
func (s *Server) SetInsightsDefaults(windowDays, months int) {
	if windowDays > 0 {
		s.windowDays = windowDays
	}
	if months > 0 {
		s.months = months
	}
}

// SetTailscale resolves caller identity through the tailnet instead of the
// local dev identity.
func (s *Server) SetTailscale(w WhoIser) {
	s.whois = w
}

// MountMCP serves an MCP transport at /mcp, behind the API key.
func (s *Server) MountMCP(h http.Handler) {
	s.router.With(APIKeyAuth(s.apiKey)).Handle("/mcp", h)
}
