package device

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/avbridge/avbridge-core/internal/infrastructure/database"
)

// Repository defines persistence operations for devices.
type Repository interface {
	GetByID(ctx context.Context, id string) (*Device, error)
	List(ctx context.Context) ([]Device, error)
	ListByRoom(ctx context.Context, roomID string) ([]Device, error)
	Create(ctx context.Context, dev *Device) error
	Update(ctx context.Context, dev *Device) error
	Delete(ctx context.Context, id string) error
}

// SQLiteRepository implements Repository using SQLite.
//
// Devices are stored as JSON documents with indexed room and class columns;
// the registry cache serves the hot path, so row-level columns beyond the
// filters are unnecessary.
type SQLiteRepository struct {
	db *database.DB
}

// NewSQLiteRepository creates a device repository backed by SQLite.
func NewSQLiteRepository(db *database.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// GetByID retrieves a device by ID.
// Returns ErrDeviceNotFound if no device exists with the given ID.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Device, error) {
	var data string
	err := r.db.QueryRowContext(ctx,
		"SELECT data FROM devices WHERE id = ?", id,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrDeviceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying device %s: %w", id, err)
	}

	return unmarshalDevice(data)
}

// List retrieves all devices ordered by ID.
func (r *SQLiteRepository) List(ctx context.Context) ([]Device, error) {
	return r.queryDevices(ctx, "SELECT data FROM devices ORDER BY id")
}

// ListByRoom retrieves all devices in a room ordered by ID.
func (r *SQLiteRepository) ListByRoom(ctx context.Context, roomID string) ([]Device, error) {
	return r.queryDevices(ctx, "SELECT data FROM devices WHERE room = ? ORDER BY id", roomID)
}

func (r *SQLiteRepository) queryDevices(ctx context.Context, query string, args ...any) ([]Device, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying devices: %w", err)
	}
	defer rows.Close()

	var devices []Device
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scanning device row: %w", err)
		}
		dev, err := unmarshalDevice(data)
		if err != nil {
			return nil, err
		}
		devices = append(devices, *dev)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating devices: %w", err)
	}
	return devices, nil
}

// Create persists a new device.
// Returns ErrDeviceExists if the ID is already taken.
func (r *SQLiteRepository) Create(ctx context.Context, dev *Device) error {
	now := time.Now().UTC()
	dev.CreatedAt = now
	dev.UpdatedAt = now

	data, err := json.Marshal(dev)
	if err != nil {
		return fmt.Errorf("encoding device %s: %w", dev.ID, err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO devices (id, room, class, name, data, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		dev.ID, dev.RoomID, dev.Class, dev.Name, string(data),
		now.Format(time.RFC3339), now.Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", ErrDeviceExists, dev.ID)
		}
		return fmt.Errorf("inserting device %s: %w", dev.ID, err)
	}
	return nil
}

// Update persists changes to an existing device.
// Returns ErrDeviceNotFound if the device does not exist.
func (r *SQLiteRepository) Update(ctx context.Context, dev *Device) error {
	dev.UpdatedAt = time.Now().UTC()

	data, err := json.Marshal(dev)
	if err != nil {
		return fmt.Errorf("encoding device %s: %w", dev.ID, err)
	}

	result, err := r.db.ExecContext(ctx,
		`UPDATE devices SET room = ?, class = ?, name = ?, data = ?, updated_at = ?
		 WHERE id = ?`,
		dev.RoomID, dev.Class, dev.Name, string(data),
		dev.UpdatedAt.Format(time.RFC3339), dev.ID,
	)
	if err != nil {
		return fmt.Errorf("updating device %s: %w", dev.ID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking update result: %w", err)
	}
	if affected == 0 {
		return ErrDeviceNotFound
	}
	return nil
}

// Delete removes a device.
// Returns ErrDeviceNotFound if the device does not exist.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM devices WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting device %s: %w", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking delete result: %w", err)
	}
	if affected == 0 {
		return ErrDeviceNotFound
	}
	return nil
}

func unmarshalDevice(data string) (*Device, error) {
	var dev Device
	if err := json.Unmarshal([]byte(data), &dev); err != nil {
		return nil, fmt.Errorf("decoding device document: %w", err)
	}
	return &dev, nil
}

// isUniqueViolation reports whether err is a SQLite UNIQUE constraint failure.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
