package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/avbridge/avbridge-core/internal/scenario"
)

// defaultReportLimit is the number of run reports returned when no limit is given.
const defaultReportLimit = 20

// maxReportLimit caps the run report page size.
const maxReportLimit = 200

// activateRoomRequest is the body for POST /rooms/{id}/activate.
type activateRoomRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// handleListRooms returns the scenario state of every room the executor
// has touched.
func (s *Server) handleListRooms(w http.ResponseWriter, _ *http.Request) {
	states := s.executor.RoomStates()
	writeJSON(w, http.StatusOK, map[string]any{"rooms": states, "count": len(states)})
}

// handleGetRoom returns the scenario state of one room.
// Rooms exist implicitly; an unknown room reports idle.
func (s *Server) handleGetRoom(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" || len(id) > maxURLParamLen {
		writeBadRequest(w, "invalid room ID")
		return
	}

	writeJSON(w, http.StatusOK, s.executor.RoomState(id))
}

// handleActivateRoom starts a scenario in a room.
//
// Sequences run for tens of seconds (inter-step delays), so activation is
// asynchronous: the scenario and room are validated up front, the sequence
// runs in the background, and the response is 202 Accepted. Progress arrives
// via WebSocket events and the retained MQTT report topic.
func (s *Server) handleActivateRoom(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "id")
	if roomID == "" || len(roomID) > maxURLParamLen {
		writeBadRequest(w, "invalid room ID")
		return
	}

	var req activateRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.ScenarioID == "" {
		writeBadRequest(w, "scenario_id is required")
		return
	}

	// Validate before accepting: unknown scenario or wrong room must be a
	// request error, not a silent background failure.
	def, err := s.scenarios.Get(r.Context(), req.ScenarioID)
	if err != nil {
		if errors.Is(err, scenario.ErrScenarioNotFound) {
			writeNotFound(w, "scenario not found")
			return
		}
		writeInternalError(w, "failed to get scenario")
		return
	}
	if def.RoomID != roomID {
		writeConflict(w, "scenario is defined for room "+def.RoomID)
		return
	}

	// Detached from the request context: the caller disconnecting must not
	// cancel a half-run sequence.
	go func() {
		if _, err := s.executor.Activate(context.Background(), roomID, req.ScenarioID); err != nil {
			s.logger.Warn("activation failed",
				"room", roomID,
				"scenario", req.ScenarioID,
				"error", err,
			)
		}
	}()

	writeJSON(w, http.StatusAccepted, map[string]any{
		"room_id":     roomID,
		"scenario_id": req.ScenarioID,
		"status":      "starting",
	})
}

// handleDeactivateRoom runs the active scenario's shutdown sequence.
// Asynchronous, mirroring activation.
func (s *Server) handleDeactivateRoom(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "id")
	if roomID == "" || len(roomID) > maxURLParamLen {
		writeBadRequest(w, "invalid room ID")
		return
	}

	go func() {
		if _, err := s.executor.Deactivate(context.Background(), roomID); err != nil {
			s.logger.Warn("deactivation failed", "room", roomID, "error", err)
		}
	}()

	writeJSON(w, http.StatusAccepted, map[string]any{
		"room_id": roomID,
		"status":  "stopping",
	})
}

// handleRoleCommand routes a command to the device filling a role in the
// room's active scenario.
//
// Unlike activation this is synchronous: a single device command is quick,
// and the caller wants the outcome.
func (s *Server) handleRoleCommand(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "id")
	role := chi.URLParam(r, "role")
	action := chi.URLParam(r, "action")
	if roomID == "" || role == "" || action == "" ||
		len(roomID) > maxURLParamLen || len(role) > maxURLParamLen || len(action) > maxURLParamLen {
		writeBadRequest(w, "invalid room, role or action")
		return
	}

	var params map[string]any
	if r.Body != nil && r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
			writeBadRequest(w, "invalid JSON body")
			return
		}
	}

	result, err := s.executor.InvokeRole(r.Context(), roomID, role, action, params)
	if err != nil {
		switch {
		case errors.Is(err, scenario.ErrNoActiveScenario):
			writeConflict(w, "no active scenario in room")
		case errors.Is(err, scenario.ErrRoleNotFound):
			writeNotFound(w, "role not defined in active scenario")
		default:
			writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"room_id":     roomID,
		"role":        role,
		"action":      action,
		"success":     result.Success,
		"error":       result.Error,
		"duration_ms": result.Duration.Milliseconds(),
	})
}

// handleListRunReports returns recent sequence runs for a room, newest first.
//
// Query parameters:
//   - limit: maximum number of runs (default 20, max 200)
func (s *Server) handleListRunReports(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "id")
	if roomID == "" || len(roomID) > maxURLParamLen {
		writeBadRequest(w, "invalid room ID")
		return
	}

	if s.scenarioRepo == nil {
		writeJSON(w, http.StatusOK, map[string]any{"reports": []scenario.RunReport{}, "count": 0})
		return
	}

	limit := defaultReportLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeBadRequest(w, "limit must be a positive integer")
			return
		}
		if n > maxReportLimit {
			n = maxReportLimit
		}
		limit = n
	}

	reports, err := s.scenarioRepo.ListRunReports(r.Context(), roomID, limit)
	if err != nil {
		writeInternalError(w, "failed to list run reports")
		return
	}
	if reports == nil {
		reports = []scenario.RunReport{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"reports": reports, "count": len(reports)})
}
