package api

import (
	"context"
	"net/http"

	"github.com/okian/tierboard/internal/domain/aggregate"
)

// HeatMapDependencies builds the single-week grid.
type HeatMapDependencies interface {
	WeekHeatMap(ctx context.Context, weekID int64) (aggregate.HeatMap, error)
}

// HeatMapHandler handles week heat map requests.
type HeatMapHandler struct {
	deps HeatMapDependencies
}

// NewHeatMapHandler creates a new heat map handler.
func NewHeatMapHandler(deps HeatMapDependencies) *HeatMapHandler {
	return &HeatMapHandler{deps: deps}
}

// HandleGetHeatMap handles GET /weeks/{id}/heatmap requests.
func (h *HeatMapHandler) HandleGetHeatMap(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_heatmap"
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, err))
		return
	}
	hm, err := h.deps.WeekHeatMap(r.Context(), id)
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, hm)
}
