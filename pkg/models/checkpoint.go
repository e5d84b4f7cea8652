package models

import "time"

// CheckpointPhase represents the current phase of a pipeline run.
type CheckpointPhase string

const (
	PhasePersonas CheckpointPhase = "personas"
	PhaseUnits    CheckpointPhase = "units"
	PhaseNeeds    CheckpointPhase = "needs"
	PhaseComplete CheckpointPhase = "complete"
)

// Checkpoint represents the saved state of an elicitation session.
type Checkpoint struct {
	// Session identification
	SessionID   string    `json:"session_id"`    // UUID for this session
	CreatedAt   time.Time `json:"created_at"`    // When session started
	LastSavedAt time.Time `json:"last_saved_at"` // Last checkpoint time

	// Pipeline phase tracking
	CurrentPhase CheckpointPhase `json:"current_phase"`

	// Request snapshot so a resume can rebuild the run
	Product       string   `json:"product"`
	DesignContext string   `json:"design_context"`
	UnitCount     int      `json:"unit_count"`
	Strategy      Strategy `json:"strategy"`

	// Phase 1: personas (complete = the full diversity-ordered list exists)
	PersonasComplete bool      `json:"personas_complete"`
	Personas         []Persona `json:"personas"`

	// Phase 2: units (track which persona IDs finished, and how). Results
	// of successful units ride along so a resume does not rerun them.
	CompletedUnitIDs map[int]bool        `json:"completed_unit_ids"`
	FailedUnitErrors map[int]string      `json:"failed_unit_errors,omitempty"`
	UnitResults      map[int]*UnitResult `json:"unit_results,omitempty"`

	// Statistics (cumulative)
	Stats RunStats `json:"stats"`

	// Configuration snapshot (for validation)
	ConfigHash string `json:"config_hash"` // SHA256 of config for mismatch detection
}

// UnitCompletion represents a finished unit for incremental checkpointing.
type UnitCompletion struct {
	PersonaID int       `json:"persona_id"`
	Timestamp time.Time `json:"timestamp"`
}
