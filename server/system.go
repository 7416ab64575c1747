package server

import (
	"context"
	"net/http"
	"time"

	"github.com/hearthlabs/hearth/runtime"
)

type resetResponse struct {
	CancelledTriggers int `json:"cancelled_triggers"`
	DroppedDispatches int `json:"dropped_dispatches"`
}

type healthResponse struct {
	Status string         `json:"status"`
	Poller runtime.Health `json:"poller"`
	Store  string         `json:"store"`
}

// handleReset cancels every pending trigger and drains the dispatch queue.
// Fired rows stay in the store as audit. Test-harness endpoint.
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	cancelled, err := s.registry.CancelAll(r.Context())
	if err != nil {
		s.respondError(w, err)
		return
	}
	dropped := s.dispatcher.Reset()

	s.logger.Info().
		Int("cancelled", cancelled).
		Int("dropped", dropped).
		Msg("State reset")

	s.respondJSON(w, http.StatusOK, resetResponse{
		CancelledTriggers: cancelled,
		DroppedDispatches: dropped,
	})
}

// handleHealthz probes the store through a cheap read and reports the
// poller's phase. Degraded health is a 503 so load balancers notice.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status, store := "ok", "ok"
	httpStatus := http.StatusOK
	if _, err := s.registry.ListPending(ctx, ""); err != nil {
		s.logger.Warn().Err(err).Msg("Store health probe failed")
		status, store = "degraded", "unavailable"
		httpStatus = http.StatusServiceUnavailable
	}

	s.respondJSON(w, httpStatus, healthResponse{
		Status: status,
		Poller: s.poller.Health(),
		Store:  store,
	})
}
