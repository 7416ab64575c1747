package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hearthlabs/hearth/trigger"
)

type registerTriggerRequest struct {
	Condition   trigger.Condition `json:"condition"`
	Action      json.RawMessage   `json:"action"`
	Owner       string            `json:"owner"`
	Description string            `json:"description,omitempty"`
	TTLSeconds  int               `json:"ttl_seconds,omitempty"`
}

type registerTriggerResponse struct {
	TriggerID string `json:"trigger_id"`
}

type listTriggersResponse struct {
	Triggers []*trigger.Trigger `json:"triggers"`
}

func (s *Server) handleRegisterTrigger(w http.ResponseWriter, r *http.Request) {
	var req registerTriggerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.badRequest(w, "invalid JSON body: "+err.Error())
		return
	}

	trig, err := s.registry.Register(r.Context(), trigger.RegisterRequest{
		Condition:   req.Condition,
		Action:      req.Action,
		Owner:       req.Owner,
		Description: req.Description,
		TTL:         time.Duration(req.TTLSeconds) * time.Second,
	})
	if err != nil {
		s.respondError(w, err)
		return
	}

	s.respondJSON(w, http.StatusCreated, registerTriggerResponse{TriggerID: trig.ID})
}

func (s *Server) handleListTriggers(w http.ResponseWriter, r *http.Request) {
	owner := r.URL.Query().Get("owner")

	triggers, err := s.registry.ListPending(r.Context(), owner)
	if err != nil {
		s.respondError(w, err)
		return
	}
	if triggers == nil {
		triggers = []*trigger.Trigger{}
	}

	s.respondJSON(w, http.StatusOK, listTriggersResponse{Triggers: triggers})
}

func (s *Server) handleCancelTrigger(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	owner := r.URL.Query().Get("owner")
	if owner == "" {
		s.badRequest(w, "owner query parameter is required")
		return
	}

	if err := s.registry.Cancel(r.Context(), id, owner); err != nil {
		s.respondError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
