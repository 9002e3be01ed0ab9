package dispatch

import (
	"sync"
	"time"

	"github.com/avbridge/avbridge-core/internal/command"
)

// LastCommand records the most recent command attempt against a device.
type LastCommand struct {
	Action    string                 `json:"action"`
	Params    command.ResolvedParams `json:"params,omitempty"`
	Source    string                 `json:"source"`
	Success   bool                   `json:"success"`
	Timestamp time.Time              `json:"timestamp"`
}

// StateStore is the single owner of last-known device attribute values.
//
// Entries are created on first command execution or first external state
// push and live for the process lifetime. Reads are lock-cheap and return
// copies; all mutation goes through the unexported applyDelta, which only
// the Dispatcher in this package calls. No other component writes state.
type StateStore struct {
	mu           sync.RWMutex
	states       map[string]map[string]any
	lastCommands map[string]LastCommand
}

// NewStateStore creates an empty state store.
func NewStateStore() *StateStore {
	return &StateStore{
		states:       make(map[string]map[string]any),
		lastCommands: make(map[string]LastCommand),
	}
}

// Get returns a single attribute value for a device.
// The second return is false when the device or attribute has never been
// seen — callers must treat that as "absent", not as a zero value.
func (s *StateStore) Get(deviceID, attribute string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	attrs, ok := s.states[deviceID]
	if !ok {
		return nil, false
	}
	v, ok := attrs[attribute]
	return v, ok
}

// Snapshot returns a copy of all known attributes for a device.
// Returns nil if the device has never been seen.
func (s *StateStore) Snapshot(deviceID string) map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	attrs, ok := s.states[deviceID]
	if !ok {
		return nil
	}

	cpy := make(map[string]any, len(attrs))
	for k, v := range attrs {
		cpy[k] = v
	}
	return cpy
}

// LastCommand returns the most recent command attempt for a device.
func (s *StateStore) LastCommand(deviceID string) (LastCommand, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	lc, ok := s.lastCommands[deviceID]
	return lc, ok
}

// DeviceIDs returns the IDs of all devices with recorded state.
func (s *StateStore) DeviceIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.states))
	for id := range s.states {
		ids = append(ids, id)
	}
	return ids
}

// applyDelta merges a state delta into a device's attributes,
// last-write-wins per attribute. Dispatcher-only.
func (s *StateStore) applyDelta(deviceID string, delta map[string]any) {
	if len(delta) == 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	attrs, ok := s.states[deviceID]
	if !ok {
		attrs = make(map[string]any, len(delta))
		s.states[deviceID] = attrs
	}
	for k, v := range delta {
		attrs[k] = v
	}
}

// recordLastCommand stores the outcome of a command attempt. Dispatcher-only.
func (s *StateStore) recordLastCommand(deviceID string, lc LastCommand) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastCommands[deviceID] = lc
}
