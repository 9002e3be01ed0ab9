package scenario

import (
	"context"
	"fmt"
	"sync"
)

// Logger defines the logging interface used by this package.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Registry provides scenario definition management with caching and thread
// safety. It wraps a Repository and adds an in-memory cache for fast
// lookups during activation.
//
// Definitions are immutable at runtime: the executor reads deep copies, and
// the Create/Update/Delete operations exist for provisioning and import,
// not for mid-run edits.
//
// All public methods are thread-safe.
type Registry struct {
	repo    Repository
	cache   map[string]*Definition // Cached definitions by ID
	cacheMu sync.RWMutex           // Protects cache
	logger  Logger
}

// NewRegistry creates a new scenario registry.
func NewRegistry(repo Repository) *Registry {
	return &Registry{
		repo:   repo,
		cache:  make(map[string]*Definition),
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// RefreshCache reloads and validates all definitions from the repository.
// Called on application startup; an invalid stored definition fails the
// refresh rather than surfacing at first activation.
func (r *Registry) RefreshCache(ctx context.Context) error {
	defs, err := r.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("loading scenarios: %w", err)
	}

	cache := make(map[string]*Definition, len(defs))
	for i := range defs {
		def := &defs[i]
		if err := ValidateDefinition(def); err != nil {
			return err
		}
		cache[def.ID] = def.DeepCopy()
	}

	r.cacheMu.Lock()
	r.cache = cache
	r.cacheMu.Unlock()

	r.logger.Info("scenario cache refreshed", "count", len(defs))
	return nil
}

// Get retrieves a scenario definition by ID.
// Returns ErrScenarioNotFound if the scenario does not exist.
// The returned definition is a deep copy; callers can safely hold it.
func (r *Registry) Get(ctx context.Context, id string) (*Definition, error) {
	r.cacheMu.RLock()
	cached, ok := r.cache[id]
	r.cacheMu.RUnlock()

	if ok {
		return cached.DeepCopy(), nil
	}

	def, err := r.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	r.cacheMu.Lock()
	r.cache[id] = def.DeepCopy()
	r.cacheMu.Unlock()

	return def, nil
}

// List retrieves all cached scenario definitions.
// The returned definitions are deep copies; callers can safely modify them.
func (r *Registry) List(ctx context.Context) ([]Definition, error) {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()

	if len(r.cache) > 0 {
		defs := make([]Definition, 0, len(r.cache))
		for _, d := range r.cache {
			defs = append(defs, *d.DeepCopy())
		}
		return defs, nil
	}

	return r.repo.List(ctx)
}

// ListByRoom retrieves all scenario definitions for a room.
// The returned definitions are deep copies; callers can safely modify them.
func (r *Registry) ListByRoom(ctx context.Context, roomID string) ([]Definition, error) {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()

	if len(r.cache) > 0 {
		var defs []Definition
		for _, d := range r.cache {
			if d.RoomID == roomID {
				defs = append(defs, *d.DeepCopy())
			}
		}
		return defs, nil
	}

	return r.repo.ListByRoom(ctx, roomID)
}

// Create validates and persists a new scenario definition.
func (r *Registry) Create(ctx context.Context, def *Definition) error {
	if err := ValidateDefinition(def); err != nil {
		return err
	}

	if err := r.repo.Create(ctx, def); err != nil {
		return err
	}

	r.cacheMu.Lock()
	r.cache[def.ID] = def.DeepCopy()
	r.cacheMu.Unlock()

	r.logger.Info("scenario created", "id", def.ID, "room", def.RoomID)
	return nil
}

// Delete removes a scenario definition.
func (r *Registry) Delete(ctx context.Context, id string) error {
	if err := r.repo.Delete(ctx, id); err != nil {
		return err
	}

	r.cacheMu.Lock()
	delete(r.cache, id)
	r.cacheMu.Unlock()

	r.logger.Info("scenario deleted", "id", id)
	return nil
}

// Count returns the number of cached definitions.
func (r *Registry) Count() int {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()
	return len(r.cache)
}
