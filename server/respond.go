package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/hearthlabs/hearth/memory"
	"github.com/hearthlabs/hearth/oracle"
	"github.com/hearthlabs/hearth/profiler"
	"github.com/hearthlabs/hearth/trigger"
)

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error().Err(err).Msg("Failed to encode response")
	}
}

func (s *Server) respondError(w http.ResponseWriter, err error) {
	s.respondJSON(w, statusForError(err), errorResponse{Error: err.Error()})
}

func (s *Server) badRequest(w http.ResponseWriter, msg string) {
	s.respondJSON(w, http.StatusBadRequest, errorResponse{Error: msg})
}

// statusForError maps the typed error taxonomy onto HTTP status codes.
// Anything unclassified is a 500.
func statusForError(err error) int {
	switch {
	case trigger.IsValidationError(err):
		return http.StatusBadRequest
	case trigger.IsUnauthorizedError(err):
		return http.StatusForbidden
	case trigger.IsNotFoundError(err), memory.IsNotFoundError(err), errors.Is(err, profiler.ErrNoData):
		return http.StatusNotFound
	case trigger.IsAlreadyFiredError(err), trigger.IsConflictError(err), memory.IsIndexNotBuiltError(err):
		return http.StatusConflict
	case trigger.IsStoreUnavailableError(err), memory.IsStoreUnavailableError(err):
		return http.StatusServiceUnavailable
	case memory.IsEmbedError(err), oracle.IsOracleError(err):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
