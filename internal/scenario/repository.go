package scenario

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

// Repository defines persistence operations for scenario definitions and
// run reports.
type Repository interface {
	GetByID(ctx context.Context, id string) (*Definition, error)
	List(ctx context.Context) ([]Definition, error)
	ListByRoom(ctx context.Context, roomID string) ([]Definition, error)
	Create(ctx context.Context, def *Definition) error
	Update(ctx context.Context, def *Definition) error
	Delete(ctx context.Context, id string) error

	// SaveRunReport persists one sequence run's step outcomes.
	SaveRunReport(ctx context.Context, report *RunReport) error

	// ListRunReports returns the most recent runs for a room, newest first.
	ListRunReports(ctx context.Context, roomID string, limit int) ([]RunReport, error)
}

// SQLiteRepository implements Repository using SQLite.
// Definitions are stored as JSON documents; the registry cache serves reads.
type SQLiteRepository struct {
	db *database.DB
}

// NewSQLiteRepository creates a scenario repository backed by SQLite.
func NewSQLiteRepository(db *database.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// GetByID retrieves a scenario definition by ID.
// Returns ErrScenarioNotFound if no scenario exists with the given ID.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Definition, error) {
	var data string
	err := r.db.QueryRowContext(ctx,
		"SELECT data FROM scenarios WHERE id = ?", id,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrScenarioNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying scenario %s: %w", id, err)
	}

	return unmarshalDefinition(data)
}

// List retrieves all scenario definitions ordered by ID.
func (r *SQLiteRepository) List(ctx context.Context) ([]Definition, error) {
	return r.queryDefinitions(ctx, "SELECT data FROM scenarios ORDER BY id")
}

// ListByRoom retrieves all scenario definitions for a room ordered by ID.
func (r *SQLiteRepository) ListByRoom(ctx context.Context, roomID string) ([]Definition, error) {
	return r.queryDefinitions(ctx, "SELECT data FROM scenarios WHERE room = ? ORDER BY id", roomID)
}

func (r *SQLiteRepository) queryDefinitions(ctx context.Context, query string, args ...any) ([]Definition, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying scenarios: %w", err)
	}
	defer rows.Close()

	var defs []Definition
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scanning scenario row: %w", err)
		}
		def, err := unmarshalDefinition(data)
		if err != nil {
			return nil, err
		}
		defs = append(defs, *def)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating scenarios: %w", err)
	}
	return defs, nil
}

// Create persists a new scenario definition.
// Returns ErrScenarioExists if the ID is already taken.
func (r *SQLiteRepository) Create(ctx context.Context, def *Definition) error {
	now := time.Now().UTC()
	def.CreatedAt = now
	def.UpdatedAt = now

	data, err := json.Marshal(def)
	if err != nil {
		return fmt.Errorf("encoding scenario %s: %w", def.ID, err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO scenarios (id, room, name, data, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		def.ID, def.RoomID, def.Name, string(data),
		now.Format(time.RFC3339), now.Format(time.RFC3339),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return fmt.Errorf("%w: %s", ErrScenarioExists, def.ID)
		}
		return fmt.Errorf("inserting scenario %s: %w", def.ID, err)
	}
	return nil
}

// Update persists changes to an existing scenario definition.
// Returns ErrScenarioNotFound if the scenario does not exist.
func (r *SQLiteRepository) Update(ctx context.Context, def *Definition) error {
	def.UpdatedAt = time.Now().UTC()

	data, err := json.Marshal(def)
	if err != nil {
		return fmt.Errorf("encoding scenario %s: %w", def.ID, err)
	}

	result, err := r.db.ExecContext(ctx,
		`UPDATE scenarios SET room = ?, name = ?, data = ?, updated_at = ?
		 WHERE id = ?`,
		def.RoomID, def.Name, string(data),
		def.UpdatedAt.Format(time.RFC3339), def.ID,
	)
	if err != nil {
		return fmt.Errorf("updating scenario %s: %w", def.ID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking update result: %w", err)
	}
	if affected == 0 {
		return ErrScenarioNotFound
	}
	return nil
}

// Delete removes a scenario definition.
// Returns ErrScenarioNotFound if the scenario does not exist.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM scenarios WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting scenario %s: %w", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking delete result: %w", err)
	}
	if affected == 0 {
		return ErrScenarioNotFound
	}
	return nil
}

// SaveRunReport persists one row per step in a single transaction.
func (r *SQLiteRepository) SaveRunReport(ctx context.Context, report *RunReport) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck // Rollback is no-op after commit

	for _, step := range report.Steps {
		status := stepStatus(step)
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO step_reports
			 (run_id, scenario_id, room, phase, step_index, device_id, command, status, error, started_at, finished_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			report.RunID, report.ScenarioID, report.RoomID, string(report.Sequence),
			step.StepIndex, step.DeviceID, step.Command, status, step.Error,
			report.StartedAt.Format(time.RFC3339), step.Timestamp.Format(time.RFC3339),
		); err != nil {
			return fmt.Errorf("inserting step report: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing run report: %w", err)
	}
	return nil
}

func stepStatus(step StepReport) string {
	switch {
	case !step.Executed:
		return "skipped"
	case step.Success:
		return "ok"
	default:
		return "failed"
	}
}

// ListRunReports reconstructs recent runs for a room from step rows,
// newest run first.
func (r *SQLiteRepository) ListRunReports(ctx context.Context, roomID string, limit int) ([]RunReport, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT run_id, scenario_id, phase, step_index, device_id, command, status, error, started_at, finished_at
		 FROM step_reports
		 WHERE room = ?
		 AND run_id IN (
		     SELECT run_id FROM step_reports WHERE room = ?
		     GROUP BY run_id ORDER BY MAX(id) DESC LIMIT ?
		 )
		 ORDER BY id ASC`,
		roomID, roomID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying run reports: %w", err)
	}
	defer rows.Close()

	byRun := make(map[string]*RunReport)
	var order []string

	for rows.Next() {
		var (
			runID, scenarioID, phase, deviceID, cmd, status, stepErr string
			stepIndex                                                int
			startedAt, finishedAt                                    string
		)
		if err := rows.Scan(&runID, &scenarioID, &phase, &stepIndex, &deviceID, &cmd, &status, &stepErr, &startedAt, &finishedAt); err != nil {
			return nil, fmt.Errorf("scanning step report row: %w", err)
		}

		report, ok := byRun[runID]
		if !ok {
			started, _ := time.Parse(time.RFC3339, startedAt) //nolint:errcheck // Format is controlled
			report = &RunReport{
				RunID:      runID,
				ScenarioID: scenarioID,
				RoomID:     roomID,
				Sequence:   SequenceKind(phase),
				StartedAt:  started,
			}
			byRun[runID] = report
			order = append(order, runID)
		}

		ts, _ := time.Parse(time.RFC3339, finishedAt) //nolint:errcheck // Format is controlled
		report.Steps = append(report.Steps, StepReport{
			StepIndex:       stepIndex,
			DeviceID:        deviceID,
			Command:         cmd,
			ConditionResult: status != "skipped",
			Executed:        status != "skipped",
			Success:         status == "ok",
			Error:           stepErr,
			Timestamp:       ts,
		})
		if ts.After(report.FinishedAt) {
			report.FinishedAt = ts
		}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating step reports: %w", err)
	}

	// Newest run first.
	reports := make([]RunReport, 0, len(order))
	for i := len(order) - 1; i >= 0; i-- {
		reports = append(reports, *byRun[order[i]])
	}
	return reports, nil
}

func unmarshalDefinition(data string) (*Definition, error) {
	var def Definition
	if err := json.Unmarshal([]byte(data), &def); err != nil {
		return nil, fmt.Errorf("decoding scenario document: %w", err)
	}
	return &def, nil
}
