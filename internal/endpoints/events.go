package endpoints

import (
	"context"
	"net/http"
	"strconv"

	"github.com/thenexusengine/tne_mediation/internal/events"
	"github.com/thenexusengine/tne_mediation/pkg/logger"
)

const (
	defaultRecentEvents = 50
	maxRecentEvents     = 1000
)

// EventReader returns recently recorded events
type EventReader interface {
	Recent(ctx context.Context, n int64) ([]events.Event, error)
}

// EventsHandler serves recorded lifecycle events
type EventsHandler struct {
	reader EventReader
}

// NewEventsHandler creates an events handler. reader may be nil.
func NewEventsHandler(reader EventReader) *EventsHandler {
	return &EventsHandler{reader: reader}
}

// RegisterRoutes registers the handler's routes on mux
func (h *EventsHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /v1/events", h.Recent)
}

// EventsResponse is the response for GET /v1/events
type EventsResponse struct {
	Events []events.Event `json:"events"`
	Count  int            `json:"count"`
}

// Recent returns up to ?n= of the newest events, oldest first
func (h *EventsHandler) Recent(w http.ResponseWriter, r *http.Request) {
	if h.reader == nil {
		sendError(w, http.StatusServiceUnavailable, "events_unavailable", "Event history requires Redis")
		return
	}

	n := int64(defaultRecentEvents)
	if raw := r.URL.Query().Get("n"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed <= 0 {
			sendError(w, http.StatusBadRequest, "invalid_n", "n must be a positive integer")
			return
		}
		n = min(parsed, maxRecentEvents)
	}

	recent, err := h.reader.Recent(r.Context(), n)
	if err != nil {
		logger.Log.Error().Err(err).Msg("Failed to read recent events")
		sendError(w, http.StatusInternalServerError, "redis_error", "Failed to read events")
		return
	}
	if recent == nil {
		recent = []events.Event{}
	}
	sendJSON(w, http.StatusOK, EventsResponse{Events: recent, Count: len(recent)})
}
