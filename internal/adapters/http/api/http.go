// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	service "github.com/eito54/grosoq/internal/app"
	"github.com/eito54/grosoq/internal/domain/model"
	"github.com/eito54/grosoq/internal/domain/scoring"
	"github.com/eito54/grosoq/pkg/logger"
)

const defaultMaxUploadBytes int64 = 16 << 20

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	// Analyze runs one screenshot through recognition and aggregation.
	Analyze(ctx context.Context, image []byte, mode model.Mode) (*service.Analysis, error)

	// Ledger operations.
	Scores(ctx context.Context) ([]model.Standing, error)
	SetTeamScore(ctx context.Context, team string, score int) ([]model.Standing, error)
	DeleteTeam(ctx context.Context, team string) ([]model.Standing, error)
	ResetLedger(ctx context.Context) error
	PinTeam(ctx context.Context, team string) ([]model.Standing, error)
	CurrentTeam() string

	// Identity state.
	Mappings(ctx context.Context) (model.PlayerMapping, error)
	ResetMappings(ctx context.Context) error
	SelfPlayer(ctx context.Context) (*model.SelfPlayerRecord, error)
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler   *HealthHandler
	statsHandler    *StatsHandler
	analyzeHandler  *AnalyzeHandler
	scoresHandler   *ScoresHandler
	mappingsHandler *MappingsHandler
	logger          logger.Logger
}

// Option configures the Server.
type Option func(*serverOptions)

type serverOptions struct {
	maxUploadBytes int64
	logger         logger.Logger
}

// WithMaxUploadBytes caps the size of an uploaded screenshot.
func WithMaxUploadBytes(n int64) Option {
	return func(o *serverOptions) {
		if n > 0 {
			o.maxUploadBytes = n
		}
	}
}

// WithLogger sets the logger used by handlers.
func WithLogger(l logger.Logger) Option {
	return func(o *serverOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, opts ...Option) *Server {
	o := serverOptions{maxUploadBytes: defaultMaxUploadBytes, logger: logger.Nop()}
	for _, opt := range opts {
		opt(&o)
	}
	return &Server{
		healthHandler:   NewHealthHandler(),
		statsHandler:    NewStatsHandler(statsProvider),
		analyzeHandler:  NewAnalyzeHandler(deps, o.maxUploadBytes, o.logger),
		scoresHandler:   NewScoresHandler(deps),
		mappingsHandler: NewMappingsHandler(deps),
		logger:          o.logger,
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(ctx context.Context, mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("GET /stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))

	mux.HandleFunc("POST /analyze", MetricsMiddleware(s.analyzeHandler.HandleAnalyze, "analyze"))

	mux.HandleFunc("GET /scores", MetricsMiddleware(s.scoresHandler.HandleList, "scores"))
	mux.HandleFunc("DELETE /scores", MetricsMiddleware(s.scoresHandler.HandleReset, "scores"))
	mux.HandleFunc("PUT /scores/{team}", MetricsMiddleware(s.scoresHandler.HandleSet, "scores_team"))
	mux.HandleFunc("DELETE /scores/{team}", MetricsMiddleware(s.scoresHandler.HandleDelete, "scores_team"))
	mux.HandleFunc("GET /current-team", MetricsMiddleware(s.scoresHandler.HandleCurrentTeam, "current_team"))
	mux.HandleFunc("PUT /current-team", MetricsMiddleware(s.scoresHandler.HandlePin, "current_team"))

	mux.HandleFunc("GET /mappings", MetricsMiddleware(s.mappingsHandler.HandleList, "mappings"))
	mux.HandleFunc("DELETE /mappings", MetricsMiddleware(s.mappingsHandler.HandleReset, "mappings"))
	mux.HandleFunc("GET /self-player", MetricsMiddleware(s.mappingsHandler.HandleSelfPlayer, "self_player"))

	s.logger.Debug(ctx, "routes registered")
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type standingsResponse struct {
	Teams []model.Standing `json:"teams"`
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

func writeStandings(w http.ResponseWriter, standings []model.Standing) {
	if standings == nil {
		standings = []model.Standing{}
	}
	writeJSON(w, http.StatusOK, standingsResponse{Teams: standings})
}

// writeServiceError translates errors returned by the service layer.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, scoring.ErrTeamNotFound):
		writeError(w, http.StatusNotFound, "not_found", err)
	case errors.Is(err, scoring.ErrEmptyTeam), errors.Is(err, scoring.ErrNegativeScore):
		writeError(w, http.StatusBadRequest, "bad_request", err)
	case errors.Is(err, service.ErrBusy):
		writeError(w, http.StatusConflict, service.CodeBusy, err)
	case errors.Is(err, service.ErrNotStarted):
		writeError(w, http.StatusServiceUnavailable, "not_started", err)
	default:
		writeError(w, http.StatusInternalServerError, service.CodeInternal, err)
	}
}
