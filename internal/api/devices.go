package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/avbridge/avbridge-core/internal/command"
	"github.com/avbridge/avbridge-core/internal/device"
	"github.com/avbridge/avbridge-core/internal/dispatch"
)

// maxURLParamLen limits URL parameter length to prevent DoS via oversized params.
const maxURLParamLen = 100

// handleListDevices returns all devices, optionally filtered by room.
//
// Query parameters:
//   - room_id: filter by room
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if roomID := r.URL.Query().Get("room_id"); roomID != "" {
		if len(roomID) > maxURLParamLen {
			writeBadRequest(w, "room_id exceeds maximum length")
			return
		}
		devices, err := s.devices.GetDevicesByRoom(ctx, roomID)
		if err != nil {
			writeInternalError(w, "failed to list devices")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"devices": devices, "count": len(devices)})
		return
	}

	devices, err := s.devices.ListDevices(ctx)
	if err != nil {
		writeInternalError(w, "failed to list devices")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"devices": devices, "count": len(devices)})
}

// handleGetDevice returns a single device, including its command schemas.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" || len(id) > maxURLParamLen {
		writeBadRequest(w, "invalid device ID")
		return
	}

	dev, err := s.devices.GetDevice(r.Context(), id)
	if err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		writeInternalError(w, "failed to get device")
		return
	}

	writeJSON(w, http.StatusOK, dev)
}

// handleGetDeviceState returns the last-known attributes for a device.
// A device with no recorded state returns an empty attribute map.
func (s *Server) handleGetDeviceState(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" || len(id) > maxURLParamLen {
		writeBadRequest(w, "invalid device ID")
		return
	}

	if _, err := s.devices.GetDevice(r.Context(), id); err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		writeInternalError(w, "failed to get device")
		return
	}

	state := s.dispatcher.Store().Snapshot(id)
	if state == nil {
		state = map[string]any{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"device_id": id, "state": state})
}

// handleGetLastCommand returns the last command attempt recorded for a device.
func (s *Server) handleGetLastCommand(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" || len(id) > maxURLParamLen {
		writeBadRequest(w, "invalid device ID")
		return
	}

	lc, ok := s.dispatcher.Store().LastCommand(id)
	if !ok {
		writeNotFound(w, "no command recorded for device")
		return
	}
	writeJSON(w, http.StatusOK, lc)
}

// handleDeviceCommand executes a command directly against a device.
//
// The request body is the parameter object, validated against the device's
// own command schema before dispatch. Parameter errors are 400s; a driver
// failure is a 200 with success=false, mirroring the dispatcher's
// distinction between caller errors and device outcomes.
func (s *Server) handleDeviceCommand(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	action := chi.URLParam(r, "action")
	if id == "" || len(id) > maxURLParamLen || action == "" || len(action) > maxURLParamLen {
		writeBadRequest(w, "invalid device ID or action")
		return
	}

	var params map[string]any
	if r.Body != nil && r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
			writeBadRequest(w, "invalid JSON body")
			return
		}
	}

	dev, err := s.devices.GetDevice(r.Context(), id)
	if err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		writeInternalError(w, "failed to get device")
		return
	}

	cmdDef, ok := dev.CommandByAction(action)
	if !ok {
		writeNotFound(w, "device has no such command")
		return
	}

	resolved, err := command.Resolve(cmdDef, params)
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
		return
	}

	result, err := s.dispatcher.Execute(r.Context(), id, action, resolved, "api")
	if err != nil {
		if errors.Is(err, dispatch.ErrUnknownDevice) {
			writeNotFound(w, "device not registered for dispatch")
			return
		}
		writeInternalError(w, "command dispatch failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"device_id":   id,
		"action":      action,
		"success":     result.Success,
		"error":       result.Error,
		"state_delta": result.StateDelta,
		"duration_ms": result.Duration.Milliseconds(),
	})
}
