package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/pkordes/korjournal/internal/odometer"
)

// PollRequest is the optional body of the Home Assistant endpoints.
// EntityId overrides the configured odometer entity for this call only.
type PollRequest struct {
	EntityId string `json:"entity_id"`
}

// PollResponse reports a successful odometer read.
type PollResponse struct {
	OdometerKm float64   `json:"odometer_km"`
	EntityId   string    `json:"entity_id"`
	PolledAt   time.Time `json:"polled_at"`
}

// PollHomeAssistant handles POST /integrations/home-assistant/poll.
// Unlike the trip endpoints, provider failures are reported (502) rather
// than treated as "no reading".
func (s *Server) PollHomeAssistant(w http.ResponseWriter, r *http.Request) {
	s.pollWith(w, r, s.ha.Poll)
}

// ForceUpdateAndPollHomeAssistant handles
// POST /integrations/home-assistant/force-update-and-poll.
func (s *Server) ForceUpdateAndPollHomeAssistant(w http.ResponseWriter, r *http.Request) {
	s.pollWith(w, r, s.ha.ForceAndPoll)
}

func (s *Server) pollWith(w http.ResponseWriter, r *http.Request, poll func(ctx context.Context, entity string) (odometer.HAReading, error)) {
	var body PollRequest
	if err := decodeOptionalJSON(r, &body); err != nil {
		writeRequestError(w, err)
		return
	}

	reading, err := poll(r.Context(), body.EntityId)
	if err != nil {
		writeError(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, PollResponse{
		OdometerKm: reading.Km,
		EntityId:   reading.Entity,
		PolledAt:   reading.At,
	})
}
