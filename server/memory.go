package server

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hearthlabs/hearth/memory"
)

type appendInteractionRequest struct {
	UserID      string `json:"user_id"`
	Instruction string `json:"instruction"`
	Timestamp   string `json:"timestamp,omitempty"` // RFC3339; server time when absent
}

type appendInteractionResponse struct {
	RequestIndex int    `json:"request_index"`
	Date         string `json:"date"`
}

type buildIndexRequest struct {
	UserID string `json:"user_id"`
}

type buildIndexResponse struct {
	IndexedRecords int `json:"indexed_records"`
}

type searchMemoryRequest struct {
	UserID string `json:"user_id"`
	Query  string `json:"query"`
	TopK   int    `json:"top_k,omitempty"`
}

type searchMemoryResponse struct {
	Results []memory.SearchResult `json:"results"`
}

type containsResponse struct {
	UserID   string `json:"user_id"`
	Contains bool   `json:"contains"`
}

type importMemoryResponse struct {
	UsersRestored int `json:"users_restored"`
}

func (s *Server) handleAppendInteraction(w http.ResponseWriter, r *http.Request) {
	var req appendInteractionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.badRequest(w, "invalid JSON body: "+err.Error())
		return
	}

	var at time.Time
	if req.Timestamp != "" {
		parsed, err := time.Parse(time.RFC3339, req.Timestamp)
		if err != nil {
			s.badRequest(w, "timestamp must be RFC3339: "+err.Error())
			return
		}
		at = parsed
	}

	rec, err := s.bank.Append(r.Context(), req.UserID, req.Instruction, at)
	if err != nil {
		s.respondError(w, err)
		return
	}

	s.respondJSON(w, http.StatusCreated, appendInteractionResponse{
		RequestIndex: rec.RequestIndex,
		Date:         rec.Date,
	})
}

func (s *Server) handleBuildIndex(w http.ResponseWriter, r *http.Request) {
	var req buildIndexRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.badRequest(w, "invalid JSON body: "+err.Error())
		return
	}
	if req.UserID == "" {
		s.badRequest(w, "user_id is required")
		return
	}

	n, err := s.bank.BuildIndex(r.Context(), req.UserID)
	if err != nil {
		s.respondError(w, err)
		return
	}

	s.respondJSON(w, http.StatusOK, buildIndexResponse{IndexedRecords: n})
}

func (s *Server) handleSearchMemory(w http.ResponseWriter, r *http.Request) {
	var req searchMemoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.badRequest(w, "invalid JSON body: "+err.Error())
		return
	}
	if req.UserID == "" {
		s.badRequest(w, "user_id is required")
		return
	}
	if req.Query == "" {
		s.badRequest(w, "query is required")
		return
	}

	results, err := s.bank.Search(r.Context(), req.UserID, req.Query, req.TopK)
	if err != nil {
		s.respondError(w, err)
		return
	}
	if results == nil {
		results = []memory.SearchResult{}
	}

	s.respondJSON(w, http.StatusOK, searchMemoryResponse{Results: results})
}

func (s *Server) handleContains(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "user")
	instruction := r.URL.Query().Get("instruction")
	if instruction == "" {
		s.badRequest(w, "instruction query parameter is required")
		return
	}

	found, err := s.bank.Contains(r.Context(), userID, instruction)
	if err != nil {
		s.respondError(w, err)
		return
	}

	s.respondJSON(w, http.StatusOK, containsResponse{UserID: userID, Contains: found})
}

func (s *Server) handleExportMemory(w http.ResponseWriter, r *http.Request) {
	data, err := s.bank.ExportJSON(r.Context())
	if err != nil {
		s.respondError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		s.logger.Error().Err(err).Msg("Failed to write export")
	}
}

func (s *Server) handleImportMemory(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		s.badRequest(w, "failed to read body: "+err.Error())
		return
	}

	n, err := s.bank.ImportJSON(r.Context(), data)
	if err != nil {
		s.respondError(w, err)
		return
	}

	s.respondJSON(w, http.StatusOK, importMemoryResponse{UsersRestored: n})
}
