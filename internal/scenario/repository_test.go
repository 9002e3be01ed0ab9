package scenario

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/avbridge/avbridge-core/migrations"

	"github.com/avbridge/avbridge-core/internal/infrastructure/database"
)

// setupTestDB opens a throwaway SQLite database with the full schema.
func setupTestDB(t *testing.T) *database.DB {
	t.Helper()

	db, err := database.Open(database.Config{
		Path:        filepath.Join(t.TempDir(), "test.db"),
		BusyTimeout: 1,
	})
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("running migrations: %v", err)
	}
	return db
}

func storedScenario(id, roomID string) *Definition {
	return &Definition{
		ID:      id,
		Name:    "Movie Night",
		RoomID:  roomID,
		Roles:   map[string]string{"volume": "amplifier"},
		Devices: []string{"tv", "amplifier"},
		StartupSequence: []Step{
			{DeviceID: "tv", Command: "power_on", DelayAfterMs: 500},
			{DeviceID: "amplifier", Command: "power_on"},
		},
		ShutdownSequence: []Step{
			{DeviceID: "amplifier", Command: "power_off"},
			{DeviceID: "tv", Command: "power_off"},
		},
		ManualInstructions: "Dim the lights by hand.",
	}
}

func TestSQLiteRepository_CreateAndGet(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	def := storedScenario("movie-night", "living-room")
	if err := repo.Create(ctx, def); err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	got, err := repo.GetByID(ctx, "movie-night")
	if err != nil {
		t.Fatalf("GetByID() error: %v", err)
	}
	if got.RoomID != "living-room" || got.Roles["volume"] != "amplifier" {
		t.Errorf("round-tripped definition = %+v", got)
	}
	if len(got.StartupSequence) != 2 || got.StartupSequence[0].DelayAfterMs != 500 {
		t.Errorf("startup sequence = %+v", got.StartupSequence)
	}
	if got.ManualInstructions != "Dim the lights by hand." {
		t.Errorf("manual instructions = %q", got.ManualInstructions)
	}
}

func TestSQLiteRepository_CreateDuplicate(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	if err := repo.Create(ctx, storedScenario("movie-night", "living-room")); err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	err := repo.Create(ctx, storedScenario("movie-night", "living-room"))
	if !errors.Is(err, ErrScenarioExists) {
		t.Errorf("duplicate Create() error = %v, want ErrScenarioExists", err)
	}
}

func TestSQLiteRepository_GetByID_NotFound(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))

	_, err := repo.GetByID(context.Background(), "ghost")
	if !errors.Is(err, ErrScenarioNotFound) {
		t.Errorf("GetByID() error = %v, want ErrScenarioNotFound", err)
	}
}

func TestSQLiteRepository_ListByRoom(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	for _, def := range []*Definition{
		storedScenario("movie-night", "living-room"),
		storedScenario("music", "living-room"),
		storedScenario("sleep", "bedroom"),
	} {
		if err := repo.Create(ctx, def); err != nil {
			t.Fatalf("Create(%s) error: %v", def.ID, err)
		}
	}

	defs, err := repo.ListByRoom(ctx, "living-room")
	if err != nil {
		t.Fatalf("ListByRoom() error: %v", err)
	}
	if len(defs) != 2 {
		t.Errorf("ListByRoom() returned %d definitions, want 2", len(defs))
	}
}

func TestSQLiteRepository_Delete(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	if err := repo.Create(ctx, storedScenario("movie-night", "living-room")); err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if err := repo.Delete(ctx, "movie-night"); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}

	if err := repo.Delete(ctx, "movie-night"); !errors.Is(err, ErrScenarioNotFound) {
		t.Errorf("second Delete() error = %v, want ErrScenarioNotFound", err)
	}
}

func TestSQLiteRepository_RunReports_RoundTrip(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	started := time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)
	report := &RunReport{
		RunID:      "run-1",
		ScenarioID: "movie-night",
		RoomID:     "living-room",
		Sequence:   SequenceStartup,
		StartedAt:  started,
		FinishedAt: started.Add(3 * time.Second),
		Steps: []StepReport{
			{StepIndex: 0, DeviceID: "tv", Command: "power_on", ConditionResult: true, Executed: true, Success: true, Timestamp: started.Add(time.Second)},
			{StepIndex: 1, DeviceID: "amplifier", Command: "power_on", Executed: false, Timestamp: started.Add(2 * time.Second)},
			{StepIndex: 2, DeviceID: "amplifier", Command: "set_input", ConditionResult: true, Executed: true, Success: false, Error: "device unreachable", Timestamp: started.Add(3 * time.Second)},
		},
	}
	if err := repo.SaveRunReport(ctx, report); err != nil {
		t.Fatalf("SaveRunReport() error: %v", err)
	}

	got, err := repo.ListRunReports(ctx, "living-room", 10)
	if err != nil {
		t.Fatalf("ListRunReports() error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("ListRunReports() returned %d runs, want 1", len(got))
	}

	run := got[0]
	if run.RunID != "run-1" || run.Sequence != SequenceStartup || len(run.Steps) != 3 {
		t.Fatalf("reconstructed run = %+v", run)
	}
	if !run.Steps[0].Success || run.Steps[1].Executed || run.Steps[2].Error != "device unreachable" {
		t.Errorf("reconstructed steps = %+v", run.Steps)
	}
}

func TestSQLiteRepository_RunReports_NewestFirstAndLimited(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)
	for i, runID := range []string{"run-1", "run-2", "run-3"} {
		report := &RunReport{
			RunID:      runID,
			ScenarioID: "movie-night",
			RoomID:     "living-room",
			Sequence:   SequenceStartup,
			StartedAt:  base.Add(time.Duration(i) * time.Minute),
			Steps: []StepReport{
				{StepIndex: 0, DeviceID: "tv", Command: "power_on", Executed: true, Success: true, Timestamp: base.Add(time.Duration(i) * time.Minute)},
			},
		}
		if err := repo.SaveRunReport(ctx, report); err != nil {
			t.Fatalf("SaveRunReport(%s) error: %v", runID, err)
		}
	}

	got, err := repo.ListRunReports(ctx, "living-room", 2)
	if err != nil {
		t.Fatalf("ListRunReports() error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("ListRunReports() returned %d runs, want 2", len(got))
	}
	if got[0].RunID != "run-3" || got[1].RunID != "run-2" {
		t.Errorf("run order = [%s, %s], want newest first", got[0].RunID, got[1].RunID)
	}
}

func TestSQLiteRepository_RunReports_EmptyRoom(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))

	got, err := repo.ListRunReports(context.Background(), "empty-room", 10)
	if err != nil {
		t.Fatalf("ListRunReports() error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("ListRunReports() returned %d runs, want 0", len(got))
	}
}
