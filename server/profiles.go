package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hearthlabs/hearth/memory"
)

type profileResponse struct {
	UserID  string         `json:"user_id"`
	Profile memory.Profile `json:"profile"`
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "user")

	profile, err := s.bank.Profile(r.Context(), userID)
	if err != nil {
		s.respondError(w, err)
		return
	}
	if len(profile) == 0 {
		s.respondJSON(w, http.StatusNotFound, errorResponse{Error: "no profile for user " + userID})
		return
	}

	s.respondJSON(w, http.StatusOK, profileResponse{UserID: userID, Profile: profile})
}

// handleRefreshProfile reruns the profiler for one user and returns the new
// profile. A user with no history is a 404; oracle trouble is a 502.
func (s *Server) handleRefreshProfile(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "user")

	profile, err := s.profiler.RefreshProfile(r.Context(), userID)
	if err != nil {
		s.respondError(w, err)
		return
	}

	s.respondJSON(w, http.StatusOK, profileResponse{UserID: userID, Profile: profile})
}
