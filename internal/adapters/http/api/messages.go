package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/okian/tierboard/internal/domain/dedupe"
	"github.com/okian/tierboard/internal/domain/model"
)

// MessageDependencies defines the asynchronous ingestion dependencies.
type MessageDependencies interface {
	dedupe.Deduper
	// Enqueue hands a message to the workers. Returns false on backpressure.
	Enqueue(ctx context.Context, m model.Message) bool
}

// messageRequest mirrors the OpenAPI schema for POST /messages.
type messageRequest struct {
	ID         string `json:"id"`
	From       string `json:"from"`
	Body       string `json:"body"`
	ReceivedAt string `json:"received_at"`
}

func (m messageRequest) validate() error {
	switch {
	case strings.TrimSpace(m.ID) == "":
		return errors.New("missing id")
	case strings.TrimSpace(m.From) == "":
		return errors.New("missing from")
	case strings.TrimSpace(m.Body) == "":
		return errors.New("missing body")
	}
	if m.ReceivedAt != "" {
		if _, err := time.Parse(time.RFC3339, m.ReceivedAt); err != nil {
			return errors.New("invalid received_at; must be RFC3339")
		}
	}
	return nil
}

// message stamps the receipt time when the gateway did not.
func (m messageRequest) message(now time.Time) model.Message {
	at := now
	if m.ReceivedAt != "" {
		at, _ = time.Parse(time.RFC3339, m.ReceivedAt)
	}
	return model.Message{ID: m.ID, From: strings.TrimSpace(m.From), Body: m.Body, ReceivedAt: at}
}

// MessagesHandler handles inbound text check-ins.
type MessagesHandler struct {
	deps MessageDependencies
	now  func() time.Time
}

// NewMessagesHandler creates a new messages handler.
func NewMessagesHandler(deps MessageDependencies) *MessagesHandler {
	return &MessagesHandler{deps: deps, now: time.Now}
}

// HandlePostMessage handles POST /messages requests.
func (h *MessagesHandler) HandlePostMessage(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_message"
	var req messageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	key := "message:" + req.ID
	if h.deps.SeenAndRecord(r.Context(), key) {
		writeJSON(w, http.StatusOK, ackResponse{Status: "duplicate", Duplicate: true})
		return
	}

	if ok := h.deps.Enqueue(r.Context(), req.message(h.now())); !ok {
		// Forget the id so the gateway's retry is accepted.
		h.deps.Unrecord(r.Context(), key)
		writeError(w, http.StatusTooManyRequests, "backpressure", NewKind(op, ErrBackpressure))
		return
	}
	writeJSON(w, http.StatusAccepted, ackResponse{Status: "accepted", Duplicate: false})
}
