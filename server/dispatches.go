package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/hearthlabs/hearth/runtime"
)

type manualDispatchRequest struct {
	Owner       string          `json:"owner"`
	Action      json.RawMessage `json:"action"`
	Description string          `json:"description,omitempty"`
}

// handleNextDispatch drains one dispatch, oldest first. An empty queue is a
// 204, not an error; the coordinator polls this endpoint.
func (s *Server) handleNextDispatch(w http.ResponseWriter, r *http.Request) {
	disp := s.dispatcher.Next()
	if disp == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	s.respondJSON(w, http.StatusOK, disp)
}

// handleManualDispatch enqueues an action without a backing trigger, for
// test harnesses and manual intervention.
func (s *Server) handleManualDispatch(w http.ResponseWriter, r *http.Request) {
	var req manualDispatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.badRequest(w, "invalid JSON body: "+err.Error())
		return
	}
	if req.Owner == "" {
		s.badRequest(w, "owner is required")
		return
	}
	if len(req.Action) == 0 || !json.Valid(req.Action) {
		s.badRequest(w, "action must be valid JSON")
		return
	}

	disp := &runtime.Dispatch{
		TriggerID:   "manual-" + uuid.NewString(),
		Owner:       req.Owner,
		Description: req.Description,
		Action:      req.Action,
		FiredAt:     time.Now().UTC(),
	}
	s.dispatcher.Enqueue(r.Context(), disp)

	s.respondJSON(w, http.StatusAccepted, disp)
}
