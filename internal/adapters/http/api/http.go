// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/okian/tierboard/internal/adapters/repository"
	"github.com/okian/tierboard/internal/domain/scoring"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	ScoreDependencies
	HeatMapDependencies
	CheckinDependencies
	MessageDependencies
	HealthDependencies
}

// Server wires HTTP routes for the business API.
type Server struct {
	maxLimit    int
	checkinRate int
	stats       StatsProvider

	healthHandler  *HealthHandler
	statsHandler   *StatsHandler
	scoresHandler  *ScoresHandler
	heatMapHandler *HeatMapHandler
	checkinHandler *CheckinHandler
	messageHandler *MessagesHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, opts ...Option) *Server {
	s := &Server{
		maxLimit:    DefaultMaxLimit,
		checkinRate: DefaultCheckinRatePerMinute,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.healthHandler = NewHealthHandler(deps)
	s.statsHandler = NewStatsHandler(s.stats)
	s.scoresHandler = NewScoresHandler(deps, s.maxLimit)
	s.heatMapHandler = NewHeatMapHandler(deps)
	s.checkinHandler = NewCheckinHandler(deps)
	s.messageHandler = NewMessagesHandler(deps)
	return s
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	limiter := NewRateLimiter(s.checkinRate)

	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.Handle("GET /metrics", s.healthHandler.MetricsHandler())
	mux.HandleFunc("GET /stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("GET /challenges/{id}/scores", MetricsMiddleware(s.scoresHandler.HandleGetScores, "scores"))
	mux.HandleFunc("GET /challenges/{id}/leaderboard", MetricsMiddleware(s.scoresHandler.HandleGetLeaderboard, "leaderboard"))
	mux.HandleFunc("GET /challenges/{id}/summary", MetricsMiddleware(s.scoresHandler.HandleGetSummary, "summary"))
	mux.HandleFunc("GET /weeks/{id}/heatmap", MetricsMiddleware(s.heatMapHandler.HandleGetHeatMap, "heatmap"))
	mux.HandleFunc("POST /checkins", MetricsMiddleware(limiter.Limit(s.checkinHandler.HandlePostCheckin), "checkins"))
	mux.HandleFunc("POST /messages", MetricsMiddleware(limiter.Limit(s.messageHandler.HandlePostMessage), "messages"))
}

type ackResponse struct {
	Status    string `json:"status"`
	Duplicate bool   `json:"duplicate"`
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

// writeServiceError maps domain and store errors onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", Wrap(op, err))
	case errors.Is(err, scoring.ErrInvalidTier), errors.Is(err, ErrBadRequest):
		writeError(w, http.StatusBadRequest, "bad_request", Wrap(op, err))
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
	}
}

// pathID parses a positive integer path parameter.
func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id < 1 {
		return 0, ErrBadRequest
	}
	return id, nil
}
