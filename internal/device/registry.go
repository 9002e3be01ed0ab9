package device

import (
	"context"
	"fmt"
	"sync"
)

// Logger defines the logging interface used by the Registry.
// This allows different logging implementations to be used.
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

// Registry provides device management with caching and thread safety.
// It wraps a Repository and adds an in-memory cache plus per-device
// controller instances built from the explicit class-to-factory map.
//
// The cache is populated on startup via RefreshCache(), which also validates
// every device's class against the factory map and constructs its
// controller — a bad class fails startup, not the first dispatch.
//
// All public methods are thread-safe.
type Registry struct {
	repo      Repository
	factories map[string]ControllerFactory
	deps      FactoryDeps

	cache       map[string]*Device    // Cached devices by ID
	controllers map[string]Controller // One controller per device
	mu          sync.RWMutex          // Protects cache and controllers

	logger Logger
}

// NewRegistry creates a new device registry.
// The repository is used for persistence; factories supply per-class
// controller constructors (usually BuiltinFactories()).
func NewRegistry(repo Repository, factories map[string]ControllerFactory, deps FactoryDeps) *Registry {
	if deps.Logger == nil {
		deps.Logger = noopLogger{}
	}
	return &Registry{
		repo:        repo,
		factories:   factories,
		deps:        deps,
		cache:       make(map[string]*Device),
		controllers: make(map[string]Controller),
		logger:      deps.Logger,
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// RefreshCache reloads all devices from the repository, validates them, and
// rebuilds their controllers. Called on application startup.
//
// Any invalid device or unknown class fails the whole refresh: a partially
// loaded device set would leave scenarios referencing ghosts.
func (r *Registry) RefreshCache(ctx context.Context) error {
	devices, err := r.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("loading devices: %w", err)
	}

	cache := make(map[string]*Device, len(devices))
	controllers := make(map[string]Controller, len(devices))

	for i := range devices {
		dev := devices[i].DeepCopy()

		if err := ValidateDevice(dev); err != nil {
			return err
		}

		factory, err := resolveFactory(r.factories, dev.Class)
		if err != nil {
			return fmt.Errorf("device %s: %w", dev.ID, err)
		}

		ctrl, err := factory(dev, r.deps)
		if err != nil {
			return fmt.Errorf("building controller for %s: %w", dev.ID, err)
		}

		cache[dev.ID] = dev
		controllers[dev.ID] = ctrl
	}

	r.mu.Lock()
	r.cache = cache
	r.controllers = controllers
	r.mu.Unlock()

	r.logger.Info("device cache refreshed", "count", len(devices))
	return nil
}

// GetDevice retrieves a device by ID.
// Returns ErrDeviceNotFound if the device does not exist.
// The returned device is a deep copy; callers can safely modify it.
func (r *Registry) GetDevice(ctx context.Context, id string) (*Device, error) {
	r.mu.RLock()
	cached, ok := r.cache[id]
	r.mu.RUnlock()

	if ok {
		// Return a deep copy to prevent external mutation of cache
		return cached.DeepCopy(), nil
	}

	// Fall back to repository (might be a new device not yet cached)
	dev, err := r.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return dev, nil
}

// Controller returns the controller for a device.
// Returns ErrDeviceNotFound for unknown devices.
func (r *Registry) Controller(id string) (Controller, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ctrl, ok := r.controllers[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDeviceNotFound, id)
	}
	return ctrl, nil
}

// ListDevices retrieves all cached devices.
// The returned devices are deep copies; callers can safely modify them.
func (r *Registry) ListDevices(ctx context.Context) ([]Device, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.cache) > 0 {
		devices := make([]Device, 0, len(r.cache))
		for _, d := range r.cache {
			devices = append(devices, *d.DeepCopy())
		}
		return devices, nil
	}

	return r.repo.List(ctx)
}

// GetDevicesByRoom retrieves all devices in a specific room.
// The returned devices are deep copies; callers can safely modify them.
func (r *Registry) GetDevicesByRoom(ctx context.Context, roomID string) ([]Device, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.cache) > 0 {
		var devices []Device
		for _, d := range r.cache {
			if d.RoomID == roomID {
				devices = append(devices, *d.DeepCopy())
			}
		}
		return devices, nil
	}

	return r.repo.ListByRoom(ctx, roomID)
}

// CreateDevice validates and persists a new device, then caches it and
// builds its controller.
func (r *Registry) CreateDevice(ctx context.Context, dev *Device) error {
	if err := ValidateDevice(dev); err != nil {
		return err
	}

	factory, err := resolveFactory(r.factories, dev.Class)
	if err != nil {
		return fmt.Errorf("device %s: %w", dev.ID, err)
	}

	cpy := dev.DeepCopy()
	ctrl, err := factory(cpy, r.deps)
	if err != nil {
		return fmt.Errorf("building controller for %s: %w", dev.ID, err)
	}

	if err := r.repo.Create(ctx, dev); err != nil {
		return err
	}

	r.mu.Lock()
	r.cache[dev.ID] = cpy
	r.controllers[dev.ID] = ctrl
	r.mu.Unlock()

	r.logger.Info("device created", "id", dev.ID, "class", dev.Class)
	return nil
}

// DeleteDevice removes a device and its controller.
func (r *Registry) DeleteDevice(ctx context.Context, id string) error {
	if err := r.repo.Delete(ctx, id); err != nil {
		return err
	}

	r.mu.Lock()
	delete(r.cache, id)
	delete(r.controllers, id)
	r.mu.Unlock()

	r.logger.Info("device deleted", "id", id)
	return nil
}

// DeviceCount returns the number of cached devices.
func (r *Registry) DeviceCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.cache)
}
