// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/okian/tiergate/internal/domain/account"
	"github.com/okian/tiergate/internal/domain/feedback"
	"github.com/okian/tiergate/internal/domain/model"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	SubmissionDependencies
	CheckDependencies
}

// SubmissionDependencies covers the submission lifecycle.
type SubmissionDependencies interface {
	Submit(ctx context.Context, req model.SubmissionRequest) (model.Submission, error)
	Get(ctx context.Context, id string) (model.Submission, error)
	History(ctx context.Context, submitterID string) ([]model.Submission, error)
	SetStatus(ctx context.Context, id, status string) error
	Revalidate(ctx context.Context, id string, debug bool, mechanic string) (*feedback.Collection, error)
}

// CheckDependencies covers the synchronous account checks.
type CheckDependencies interface {
	Killproof(defeated []string, tier int) (*feedback.Group, error)
	EvaluateApplication(app account.Application) (*feedback.Collection, error)
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
	submissionsHandler *SubmissionsHandler
	checksHandler      *ChecksHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, readiness ReadinessChecker) *Server {
	return &Server{
		healthHandler:      NewHealthHandler(readiness),
		statsHandler:       NewStatsHandler(statsProvider),
		submissionsHandler: NewSubmissionsHandler(deps),
		checksHandler:      NewChecksHandler(deps),
	}
}

// NewRouter returns a chi router with the common middleware stack. An empty
// origin list allows any origin.
func NewRouter(origins []string) *chi.Mux {
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))
	return r
}

// Register attaches all HTTP routes to r.
func (s *Server) Register(_ context.Context, r chi.Router) {
	r.Get("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	r.Get("/metrics", MetricsMiddleware(s.healthHandler.HandleHealth, "metrics"))
	r.Get("/readyz", MetricsMiddleware(s.healthHandler.HandleReady, "readyz"))
	r.Get("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))

	r.Route("/submissions", func(r chi.Router) {
		r.Post("/", MetricsMiddleware(s.submissionsHandler.HandleCreate, "submissions_create"))
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", MetricsMiddleware(s.submissionsHandler.HandleGet, "submissions_get"))
			r.Put("/status", MetricsMiddleware(s.submissionsHandler.HandleSetStatus, "submissions_status"))
			r.Post("/revalidate", MetricsMiddleware(s.submissionsHandler.HandleRevalidate, "submissions_revalidate"))
		})
	})
	r.Get("/players/{submitterID}/submissions", MetricsMiddleware(s.submissionsHandler.HandleHistory, "players_submissions"))

	r.Post("/killproof", MetricsMiddleware(s.checksHandler.HandleKillproof, "killproof"))
	r.Post("/applications", MetricsMiddleware(s.checksHandler.HandleApplication, "applications"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError derives status and code from the error kind.
func writeError(w http.ResponseWriter, err error) {
	status, code := StatusOf(err)
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(v)
}
