package models

import "time"

// JobStatus is the lifecycle state of an elicitation job.
type JobStatus string

const (
	StatusQueued              JobStatus = "queued"
	StatusProcessing          JobStatus = "processing"
	StatusCompleted           JobStatus = "completed"
	StatusCompletedWithErrors JobStatus = "completed_with_errors"
	StatusFailed              JobStatus = "failed"
)

// Terminal reports whether no further transition is possible from s.
func (s JobStatus) Terminal() bool {
	switch s {
	case StatusCompleted, StatusCompletedWithErrors, StatusFailed:
		return true
	}
	return false
}

// Progress is a point-in-time view of where a running job is.
type Progress struct {
	Stage      string `json:"stage"`
	StageIndex int    `json:"stage_index"`
	UnitCursor int    `json:"unit_cursor,omitempty"`
	Message    string `json:"message"`
}

// ProgressEvent is delivered to the caller's progress callback. UnitID is 0
// for coarse stage transitions; Percent is only meaningful on those.
type ProgressEvent struct {
	Stage    string          `json:"stage"`
	Message  string          `json:"message"`
	UnitID   int             `json:"unit_id,omitempty"`
	Percent  int             `json:"percent"`
	Snapshot *ResultSnapshot `json:"snapshot,omitempty"`
}

// ResultSnapshot is a copy of the intermediate results accumulated so far,
// safe to read while the run continues.
type ResultSnapshot struct {
	Personas    []Persona          `json:"personas,omitempty"`
	Experiences []ExperienceRecord `json:"experiences,omitempty"`
	Interviews  []InterviewRecord  `json:"interviews,omitempty"`
	Needs       *AggregatedNeeds   `json:"needs,omitempty"`
}

// JobSnapshot is what status polling returns: always internally consistent,
// copied out under the job guard.
type JobSnapshot struct {
	JobID          string          `json:"job_id"`
	Status         JobStatus       `json:"status"`
	Progress       Progress        `json:"progress"`
	PartialResults *ResultSnapshot `json:"partial_results,omitempty"`
	Error          string          `json:"error,omitempty"`
}

// JobSummary is the listing view of a job.
type JobSummary struct {
	JobID     string    `json:"job_id"`
	Status    JobStatus `json:"status"`
	Product   string    `json:"product"`
	CreatedAt time.Time `json:"created_at"`
}

// RunTiming breaks the wall-clock duration of a run into its phases.
type RunTiming struct {
	PersonaGenerationSeconds float64 `json:"agent_generation_seconds"`
	UnitProcessingSeconds    float64 `json:"parallel_processing_seconds"`
	TotalSeconds             float64 `json:"total_seconds"`
}

// RunMetadata describes one completed run.
type RunMetadata struct {
	Product       string         `json:"product"`
	DesignContext string         `json:"design_context"`
	UnitCount     int            `json:"unit_count"`
	Strategy      Strategy       `json:"strategy"`
	StartTime     time.Time      `json:"start_time"`
	EndTime       time.Time      `json:"end_time"`
	Timing        RunTiming      `json:"timing"`
	Status        JobStatus      `json:"status"`
	FailedUnits   []int          `json:"failed_units,omitempty"`
	UnitErrors    map[int]string `json:"unit_errors,omitempty"`
}

// ResultBundle is the complete terminal output of a successful job: every
// intermediate record plus aggregates and the metrics summary.
type ResultBundle struct {
	Metadata    RunMetadata        `json:"metadata"`
	Personas    []Persona          `json:"personas"`
	Experiences []ExperienceRecord `json:"experiences"`
	Interviews  []InterviewRecord  `json:"interviews"`
	Extractions []UnitExtraction   `json:"need_extractions"`
	Aggregated  AggregatedNeeds    `json:"aggregated_needs"`
	Metrics     *MetricsSummary    `json:"metrics,omitempty"`
}
