package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/okian/tierboard/internal/domain/types"
)

// ScoreDependencies defines the read operations over challenge standings.
type ScoreDependencies interface {
	TotalScore(ctx context.Context, challengeID int64) (map[string]float64, error)
	Leaderboard(ctx context.Context, challengeID int64) ([]types.Entry, error)
	Summary(ctx context.Context, challengeID int64) (types.Summary, error)
}

// ScoresHandler handles challenge score requests.
type ScoresHandler struct {
	deps     ScoreDependencies
	maxLimit int
}

// NewScoresHandler creates a new scores handler.
func NewScoresHandler(deps ScoreDependencies, maxLimit int) *ScoresHandler {
	return &ScoresHandler{deps: deps, maxLimit: maxLimit}
}

// HandleGetScores handles GET /challenges/{id}/scores requests.
func (h *ScoresHandler) HandleGetScores(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_scores"
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, err))
		return
	}
	totals, err := h.deps.TotalScore(r.Context(), id)
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, totals)
}

// HandleGetLeaderboard handles GET /challenges/{id}/leaderboard?limit=N
// requests. Without a limit the whole ranking is returned.
func (h *ScoresHandler) HandleGetLeaderboard(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_leaderboard"
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, err))
		return
	}
	n := h.maxLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		n, err = strconv.Atoi(limitStr)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
			return
		}
		if n > h.maxLimit {
			writeError(w, http.StatusBadRequest, "limit_exceeded", NewKind(op, ErrBadRequest))
			return
		}
	}
	entries, err := h.deps.Leaderboard(r.Context(), id)
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	if len(entries) > n {
		entries = entries[:n]
	}
	writeJSON(w, http.StatusOK, entries)
}

// HandleGetSummary handles GET /challenges/{id}/summary requests.
func (h *ScoresHandler) HandleGetSummary(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_summary"
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, err))
		return
	}
	sum, err := h.deps.Summary(r.Context(), id)
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}
