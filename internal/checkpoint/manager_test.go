package checkpoint

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nvoss/needforge/internal/config"
	"github.com/nvoss/needforge/pkg/models"
)

func checkpointTestConfig() *config.Config {
	return &config.Config{
		Elicitation: config.ElicitationConfig{
			Product:             "Smart Kettle",
			DesignContext:       "Kitchen appliances for elderly users",
			UnitCount:           5,
			EnableCheckpointing: true,
			CheckpointInterval:  1,
		},
	}
}

func successResult(personaID int) models.UnitResult {
	return models.UnitResult{
		PersonaID: personaID,
		Persona:   "persona",
		Product:   "Smart Kettle",
		Success:   true,
		Experience: &models.ExperienceRecord{
			PersonaID: personaID,
			Product:   "Smart Kettle",
			Narrative: "narrative",
		},
		Interview: &models.InterviewRecord{
			PersonaID: personaID,
			Product:   "Smart Kettle",
			Exchanges: []models.QuestionAnswer{{Question: "q", Answer: "a"}},
		},
	}
}

func TestNewManager(t *testing.T) {
	tempDir := t.TempDir()
	cfg := checkpointTestConfig()
	cfg.Elicitation.CheckpointInterval = 10

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	mgr := NewManager(tempDir, cfg, logger)

	if mgr == nil {
		t.Fatal("NewManager returned nil")
		return
	}

	if mgr.sessionDir != tempDir {
		t.Errorf("Expected sessionDir %s, got %s", tempDir, mgr.sessionDir)
	}

	if mgr.interval != 10 {
		t.Errorf("Expected interval 10, got %d", mgr.interval)
	}

	if !mgr.enabled {
		t.Error("Expected enabled to be true")
	}

	cp := mgr.GetCheckpoint()
	if cp.Product != "Smart Kettle" {
		t.Errorf("Expected product snapshot, got %q", cp.Product)
	}
	if cp.CurrentPhase != models.PhasePersonas {
		t.Errorf("Expected phase %s, got %s", models.PhasePersonas, cp.CurrentPhase)
	}

	// Clean up
	if err := mgr.Close(); err != nil {
		t.Errorf("Close() failed: %v", err)
	}
}

func TestSaveAndLoad(t *testing.T) {
	tempDir := t.TempDir()
	cfg := checkpointTestConfig()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	mgr := NewManager(tempDir, cfg, logger)
	defer func() {
		if err := mgr.Close(); err != nil {
			t.Errorf("Close() failed: %v", err)
		}
	}()

	// Mark personas complete
	personas := []models.Persona{
		{ID: 1, Description: "persona one"},
		{ID: 2, Description: "persona two"},
		{ID: 3, Description: "persona three"},
	}
	if err := mgr.MarkPersonasComplete(personas); err != nil {
		t.Fatalf("MarkPersonasComplete failed: %v", err)
	}

	// Wait a bit for async write
	time.Sleep(100 * time.Millisecond)

	// Load checkpoint
	loaded, err := Load(tempDir, logger)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if !loaded.PersonasComplete {
		t.Error("Expected PersonasComplete to be true")
	}

	if len(loaded.Personas) != 3 {
		t.Errorf("Expected 3 personas, got %d", len(loaded.Personas))
	}

	if loaded.CurrentPhase != models.PhaseUnits {
		t.Errorf("Expected phase %s, got %s", models.PhaseUnits, loaded.CurrentPhase)
	}
}

func TestMarkUnitComplete(t *testing.T) {
	tempDir := t.TempDir()
	cfg := checkpointTestConfig()
	cfg.Elicitation.CheckpointInterval = 2

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	mgr := NewManager(tempDir, cfg, logger)
	defer func() {
		if err := mgr.Close(); err != nil {
			t.Errorf("Close() failed: %v", err)
		}
	}()

	stats := &models.RunStats{
		TotalUnits:   5,
		SuccessCount: 1,
	}

	// Mark first unit
	if err := mgr.MarkUnitComplete(successResult(1), stats); err != nil {
		t.Fatalf("MarkUnitComplete(1) failed: %v", err)
	}

	cp := mgr.GetCheckpoint()
	if !cp.CompletedUnitIDs[1] {
		t.Error("Expected unit 1 to be marked complete")
	}
	if cp.UnitResults[1] == nil || cp.UnitResults[1].Interview == nil {
		t.Error("Expected unit 1 result to be stored for resume")
	}

	// Mark second unit as failed - should trigger save
	stats.FailureCount = 1
	failed := models.UnitResult{PersonaID: 2, Success: false, Err: "backend down"}
	if err := mgr.MarkUnitComplete(failed, stats); err != nil {
		t.Fatalf("MarkUnitComplete(2) failed: %v", err)
	}

	time.Sleep(100 * time.Millisecond)

	// Load and verify
	loaded, err := Load(tempDir, logger)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if !loaded.CompletedUnitIDs[1] || !loaded.CompletedUnitIDs[2] {
		t.Error("Expected units 1 and 2 to be saved")
	}
	if loaded.FailedUnitErrors[2] != "backend down" {
		t.Errorf("FailedUnitErrors[2] = %q, want 'backend down'", loaded.FailedUnitErrors[2])
	}
	if _, ok := loaded.UnitResults[2]; ok {
		t.Error("failed unit should not store a result")
	}
	if loaded.Stats.FailureCount != 1 {
		t.Errorf("Expected FailureCount 1, got %d", loaded.Stats.FailureCount)
	}
}

func TestAsyncWriteBuffer(t *testing.T) {
	tempDir := t.TempDir()
	cfg := checkpointTestConfig()
	cfg.Elicitation.UnitCount = 25
	cfg.Elicitation.CheckpointInterval = 5

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	mgr := NewManager(tempDir, cfg, logger)

	stats := &models.RunStats{
		TotalUnits: 25,
	}

	// Mark 25 units quickly - saves trigger at units 5, 10, 15, 20, 25
	for i := 1; i <= 25; i++ {
		stats.SuccessCount = i
		if err := mgr.MarkUnitComplete(successResult(i), stats); err != nil {
			t.Fatalf("MarkUnitComplete(%d) failed: %v", i, err)
		}
	}

	// Close manager to flush all pending writes
	if err := mgr.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}

	// Load and verify final checkpoint has all units
	loaded, err := Load(tempDir, logger)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if len(loaded.CompletedUnitIDs) < 25 {
		t.Errorf("Expected at least 25 completed units, got %d", len(loaded.CompletedUnitIDs))
	}

	for i := 1; i <= 25; i++ {
		if !loaded.CompletedUnitIDs[i] {
			t.Errorf("Expected unit %d to be saved", i)
		}
	}

	if loaded.Stats.SuccessCount != 25 {
		t.Errorf("Expected SuccessCount 25, got %d", loaded.Stats.SuccessCount)
	}
}

func TestCheckpointNotEnabledNoFiles(t *testing.T) {
	tempDir := t.TempDir()
	cfg := checkpointTestConfig()
	cfg.Elicitation.EnableCheckpointing = false

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	mgr := NewManager(tempDir, cfg, logger)
	defer func() {
		if err := mgr.Close(); err != nil {
			t.Errorf("Close() failed: %v", err)
		}
	}()

	// Try to save
	if err := mgr.Save(); err != nil {
		t.Fatalf("Save() should not error when disabled: %v", err)
	}

	// Verify no checkpoint file was created
	checkpointPath := filepath.Join(tempDir, CheckpointFilename)
	if _, err := os.Stat(checkpointPath); !os.IsNotExist(err) {
		t.Error("Checkpoint file should not exist when checkpointing is disabled")
	}
}

func TestMarkPhaseTransitions(t *testing.T) {
	tempDir := t.TempDir()
	cfg := checkpointTestConfig()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	mgr := NewManager(tempDir, cfg, logger)
	defer func() { _ = mgr.Close() }()

	if err := mgr.MarkPersonasComplete([]models.Persona{{ID: 1, Description: "p"}}); err != nil {
		t.Fatalf("MarkPersonasComplete failed: %v", err)
	}
	if err := mgr.MarkNeedsPhase(); err != nil {
		t.Fatalf("MarkNeedsPhase failed: %v", err)
	}
	if cp := mgr.GetCheckpoint(); cp.CurrentPhase != models.PhaseNeeds {
		t.Errorf("phase = %s, want %s", cp.CurrentPhase, models.PhaseNeeds)
	}

	stats := &models.RunStats{SuccessCount: 1}
	if err := mgr.MarkComplete(stats); err != nil {
		t.Fatalf("MarkComplete failed: %v", err)
	}
	if cp := mgr.GetCheckpoint(); cp.CurrentPhase != models.PhaseComplete {
		t.Errorf("phase = %s, want %s", cp.CurrentPhase, models.PhaseComplete)
	}
}
