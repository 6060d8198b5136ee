// Package api exposes the engine over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/anuntech/metas/internal/adapters/repository"
	service "github.com/anuntech/metas/internal/app"
	"github.com/anuntech/metas/internal/domain/ladder"
	"github.com/anuntech/metas/internal/domain/level"
	"github.com/anuntech/metas/internal/domain/model"
	"github.com/anuntech/metas/internal/domain/progress"
	"github.com/anuntech/metas/internal/domain/types"
)

// Advancer completes tiers.
type Advancer interface {
	CompleteAggregateTier(ctx context.Context, period model.Period, lvl level.Level) (level.Level, error)
	CompleteUnitTier(ctx context.Context, period model.Period, unit string, lvl level.Level) (service.UnitAdvancement, error)
}

// Reporter reads period progress.
type Reporter interface {
	ResolveActiveLevels(ctx context.Context, period model.Period) (map[string]level.Level, error)
	Progress(ctx context.Context, period model.Period, window model.DateRange) (service.Summary, error)
}

// Ingestor accepts administrative writes.
type Ingestor interface {
	SaveTier(ctx context.Context, tier model.GoalTier) (model.GoalTier, error)
	SaveRecord(ctx context.Context, rec model.PerformanceRecord) (model.PerformanceRecord, error)
}

// Dependencies bundles everything the handlers need; *service.Service satisfies it.
type Dependencies interface {
	Advancer
	Reporter
	Ingestor
}

// Server wires HTTP routes for the engine.
type Server struct {
	healthHandler   *HealthHandler
	levelsHandler   *LevelsHandler
	progressHandler *ProgressHandler
	advanceHandler  *AdvanceHandler
	ingestHandler   *IngestHandler
}

// NewServer creates a server with all handlers.
func NewServer(deps Dependencies) *Server {
	return &Server{
		healthHandler:   NewHealthHandler(),
		levelsHandler:   NewLevelsHandler(deps),
		progressHandler: NewProgressHandler(deps),
		advanceHandler:  NewAdvanceHandler(deps),
		ingestHandler:   NewIngestHandler(deps),
	}
}

// Register attaches all routes to r.
func (s *Server) Register(r chi.Router) {
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer, MetricsMiddleware)

	r.Get("/healthz", s.healthHandler.HandleHealth)
	r.Method(http.MethodGet, "/metrics", s.healthHandler.MetricsHandler())

	r.Route("/v1", func(r chi.Router) {
		r.Route("/periods/{year}/{month}", func(r chi.Router) {
			r.Get("/levels", s.levelsHandler.HandleGetLevels)
			r.Get("/progress", s.progressHandler.HandleGetProgress)
			r.Post("/total/levels/{level}/complete", s.advanceHandler.HandleCompleteTotal)
			r.Post("/units/{unit}/levels/{level}/complete", s.advanceHandler.HandleCompleteUnit)
		})
		r.Put("/tiers", s.ingestHandler.HandlePutTier)
		r.Put("/records", s.ingestHandler.HandlePutRecord)
	})
}

// Routes returns a router with every route registered.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	s.Register(r)
	return r
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

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeFailure maps engine errors onto status codes.
func writeFailure(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrTierNotFound), errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err)
	case errors.Is(err, ladder.ErrInvalidLadder), errors.Is(err, repository.ErrDuplicateTier):
		writeError(w, http.StatusUnprocessableEntity, "invalid_ladder", err)
	case errors.Is(err, level.ErrInvalidLevel),
		errors.Is(err, model.ErrInvalidPeriod),
		errors.Is(err, model.ErrInvalidRange),
		errors.Is(err, model.ErrInvalidTier),
		errors.Is(err, model.ErrInvalidRecord),
		errors.Is(err, types.ErrInvalidInput),
		errors.Is(err, progress.ErrInvalidInput),
		errors.Is(err, ErrBadRequest):
		writeError(w, http.StatusBadRequest, "bad_request", err)
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err)
	}
}
