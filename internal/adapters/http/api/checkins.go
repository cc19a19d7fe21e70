package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/okian/tierboard/internal/adapters/repository"
	"github.com/okian/tierboard/internal/domain/model"
	"github.com/okian/tierboard/internal/domain/types"
)

// CheckinDependencies records incoming check-ins.
type CheckinDependencies interface {
	RecordCheckin(ctx context.Context, in types.CheckinInput) (model.Checkin, error)
}

// checkinRequest mirrors the OpenAPI schema for POST /checkins.
type checkinRequest struct {
	Name string `json:"name"`
	Tier string `json:"tier"`
	Time string `json:"time"`
	Note string `json:"note"`
}

func (c checkinRequest) input() (types.CheckinInput, error) {
	in := types.CheckinInput{Name: strings.TrimSpace(c.Name), Tier: c.Tier, Note: c.Note}
	if in.Name == "" {
		return in, errors.New("missing name")
	}
	if c.Tier == "" && strings.TrimSpace(c.Note) == "" {
		return in, errors.New("missing tier")
	}
	if c.Time != "" {
		at, err := time.Parse(time.RFC3339, c.Time)
		if err != nil {
			return in, errors.New("invalid time; must be RFC3339")
		}
		in.Time = at
	}
	return in, nil
}

type checkinResponse struct {
	ackResponse
	ID     int64     `json:"id"`
	Name   string    `json:"name"`
	Tier   string    `json:"tier"`
	Day    string    `json:"day"`
	Time   time.Time `json:"time"`
	WeekID int64     `json:"week_id"`
}

// CheckinHandler handles check-in submissions.
type CheckinHandler struct {
	deps CheckinDependencies
}

// NewCheckinHandler creates a new check-in handler.
func NewCheckinHandler(deps CheckinDependencies) *CheckinHandler {
	return &CheckinHandler{deps: deps}
}

// HandlePostCheckin handles POST /checkins requests.
func (h *CheckinHandler) HandlePostCheckin(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_checkin"
	var req checkinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	in, err := req.input()
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	c, err := h.deps.RecordCheckin(r.Context(), in)
	if errors.Is(err, repository.ErrDuplicate) {
		writeJSON(w, http.StatusOK, ackResponse{Status: "duplicate", Duplicate: true})
		return
	}
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	writeJSON(w, http.StatusCreated, checkinResponse{
		ackResponse: ackResponse{Status: "recorded"},
		ID:          c.ID,
		Name:        c.Name,
		Tier:        c.Tier,
		Day:         c.Day.String(),
		Time:        c.Time,
		WeekID:      c.WeekID,
	})
}
