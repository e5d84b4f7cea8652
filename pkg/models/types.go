package models

import "time"

// Strategy selects how the pipeline executes the per-persona work.
type Strategy string

const (
	// StrategySerial runs every stage one unit at a time and fails fast.
	StrategySerial Strategy = "serial"
	// StrategyParallel runs experience+interview units concurrently with
	// per-unit failure isolation.
	StrategyParallel Strategy = "parallel"
)

// Priority levels assigned to extracted needs.
const (
	PriorityHigh   = "High"
	PriorityMedium = "Medium"
	PriorityLow    = "Low"
)

// Persona is one synthetic user description. IDs are assigned 1..N in
// generation order and never change afterwards.
type Persona struct {
	ID            int    `json:"id"`
	Description   string `json:"description"`
	DesignContext string `json:"design_context"`
}

// ExperienceRecord is the simulated product interaction for one persona.
type ExperienceRecord struct {
	PersonaID int    `json:"persona_id"`
	Product   string `json:"product"`
	Narrative string `json:"narrative"`
}

// QuestionAnswer is a single interview exchange.
type QuestionAnswer struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// InterviewRecord is the ordered transcript of one persona's interview
// about one experience.
type InterviewRecord struct {
	PersonaID int              `json:"persona_id"`
	Product   string           `json:"product"`
	Exchanges []QuestionAnswer `json:"exchanges"`
}

// NeedRecord is one latent need recovered from a single interview exchange.
type NeedRecord struct {
	Category            string `json:"category"`
	Priority            string `json:"priority"`
	Statement           string `json:"need_statement"`
	SupportingEvidence  string `json:"supporting_evidence,omitempty"`
	DesignImplication   string `json:"design_implication,omitempty"`
	OriginatingQuestion string `json:"question,omitempty"`
	OriginatingAnswer   string `json:"answer,omitempty"`
}

// UnitExtraction holds every need recovered from one persona's interview.
type UnitExtraction struct {
	PersonaID  int          `json:"persona_id"`
	Persona    string       `json:"persona"`
	Product    string       `json:"product"`
	TotalNeeds int          `json:"total_needs"`
	Needs      []NeedRecord `json:"needs"`
}

// NeedsSummary carries the per-group counts of an aggregation.
type NeedsSummary struct {
	ByCategory map[string]int `json:"by_category"`
	ByPriority map[string]int `json:"by_priority"`
}

// AggregatedNeeds is the categorized, prioritized view over all units'
// extracted needs. Recomputed from scratch each run, never mutated in place.
type AggregatedNeeds struct {
	TotalNeeds int                     `json:"total_needs"`
	TotalUnits int                     `json:"total_units"`
	Categories map[string][]NeedRecord `json:"categories"`
	Priorities map[string][]NeedRecord `json:"priorities"`
	AllNeeds   []NeedRecord            `json:"all_needs"`
	Summary    NeedsSummary            `json:"summary"`
}

// EmptyAggregatedNeeds is the aggregate produced when no unit yields needs.
func EmptyAggregatedNeeds() AggregatedNeeds {
	return AggregatedNeeds{
		Categories: map[string][]NeedRecord{},
		Priorities: map[string][]NeedRecord{},
		Summary: NeedsSummary{
			ByCategory: map[string]int{},
			ByPriority: map[string]int{},
		},
	}
}

// UnitJob is a unit of work for the parallel executor: one persona's full
// experience and interview.
type UnitJob struct {
	PersonaID int
	Persona   Persona
	Product   string
}

// UnitResult is the outcome of processing one unit. Failed units carry the
// error text and nil records; siblings are unaffected.
type UnitResult struct {
	PersonaID  int               `json:"persona_id"`
	Persona    string            `json:"persona"`
	Product    string            `json:"product"`
	Success    bool              `json:"success"`
	Experience *ExperienceRecord `json:"experience,omitempty"`
	Interview  *InterviewRecord  `json:"interview,omitempty"`
	Err        string            `json:"error,omitempty"`
	Duration   time.Duration     `json:"-"`
}

// RunStats tracks cumulative statistics for a pipeline run.
type RunStats struct {
	StartTime       time.Time
	EndTime         time.Time
	TotalUnits      int
	SuccessCount    int
	FailureCount    int
	TotalNeeds      int
	TotalDuration   time.Duration
	AverageDuration time.Duration
}
