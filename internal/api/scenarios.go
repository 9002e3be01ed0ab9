package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/avbridge/avbridge-core/internal/scenario"
)

// handleListScenarios returns all scenarios, optionally filtered by room.
//
// Query parameters:
//   - room_id: filter by room
func (s *Server) handleListScenarios(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if roomID := r.URL.Query().Get("room_id"); roomID != "" {
		if len(roomID) > maxURLParamLen {
			writeBadRequest(w, "room_id exceeds maximum length")
			return
		}
		scenarios, err := s.scenarios.ListByRoom(ctx, roomID)
		if err != nil {
			writeInternalError(w, "failed to list scenarios")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"scenarios": scenarios, "count": len(scenarios)})
		return
	}

	scenarios, err := s.scenarios.List(ctx)
	if err != nil {
		writeInternalError(w, "failed to list scenarios")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"scenarios": scenarios, "count": len(scenarios)})
}

// handleGetScenario returns a single scenario definition.
// The payload includes role mappings, both sequences and any manual
// instructions for the user.
func (s *Server) handleGetScenario(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" || len(id) > maxURLParamLen {
		writeBadRequest(w, "invalid scenario ID")
		return
	}

	def, err := s.scenarios.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, scenario.ErrScenarioNotFound) {
			writeNotFound(w, "scenario not found")
			return
		}
		writeInternalError(w, "failed to get scenario")
		return
	}

	writeJSON(w, http.StatusOK, def)
}

// handleCreateScenario validates and persists a new scenario definition.
func (s *Server) handleCreateScenario(w http.ResponseWriter, r *http.Request) {
	var def scenario.Definition
	if err := json.NewDecoder(r.Body).Decode(&def); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	if err := s.scenarios.Create(r.Context(), &def); err != nil {
		if errors.Is(err, scenario.ErrInvalidDefinition) || errors.Is(err, scenario.ErrInvalidCondition) {
			writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
			return
		}
		if errors.Is(err, scenario.ErrScenarioExists) {
			writeConflict(w, err.Error())
			return
		}
		writeInternalError(w, "failed to create scenario")
		return
	}

	writeJSON(w, http.StatusCreated, def)
}

// handleDeleteScenario removes a scenario definition.
func (s *Server) handleDeleteScenario(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" || len(id) > maxURLParamLen {
		writeBadRequest(w, "invalid scenario ID")
		return
	}

	if err := s.scenarios.Delete(r.Context(), id); err != nil {
		if errors.Is(err, scenario.ErrScenarioNotFound) {
			writeNotFound(w, "scenario not found")
			return
		}
		writeInternalError(w, "failed to delete scenario")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
