package models

import "time"

// CallOutcome classifies a recorded backend call.
type CallOutcome string

const (
	OutcomeSuccess CallOutcome = "success"
	OutcomeError   CallOutcome = "error"
)

// MetricsRecord captures one backend call. UnitID is 0 for calls made
// outside a unit (persona generation, stage-level work).
type MetricsRecord struct {
	StageID      string      `json:"stage"`
	UnitID       int         `json:"unit_id,omitempty"`
	StartTime    time.Time   `json:"start_time"`
	EndTime      time.Time   `json:"end_time"`
	TokensIn     int         `json:"input_tokens"`
	TokensOut    int         `json:"output_tokens"`
	Model        string      `json:"model"`
	CostEstimate float64     `json:"cost"`
	Outcome      CallOutcome `json:"status"`
	ErrMsg       string      `json:"error,omitempty"`
	RetryCount   int         `json:"retry_count"`
}

// Duration is the wall-clock time of the call.
func (r MetricsRecord) Duration() time.Duration {
	return r.EndTime.Sub(r.StartTime)
}

// TotalTokens is input plus output tokens for the call.
func (r MetricsRecord) TotalTokens() int {
	return r.TokensIn + r.TokensOut
}

// StageMetrics is the rollup of one pipeline stage.
type StageMetrics struct {
	StageID        string    `json:"stage"`
	StartTime      time.Time `json:"start_time"`
	EndTime        time.Time `json:"end_time"`
	Duration       float64   `json:"duration_seconds"`
	ItemsProcessed int       `json:"items_processed"`
	Calls          int       `json:"api_calls"`
	Tokens         int       `json:"tokens"`
	Cost           float64   `json:"cost"`
}

// UnitMetrics is the rollup of one unit's backend usage.
type UnitMetrics struct {
	UnitID   int     `json:"unit_id"`
	Duration float64 `json:"duration_seconds"`
	Tokens   int     `json:"tokens"`
	Cost     float64 `json:"cost"`
	Calls    int     `json:"calls"`
}

// MetricsOverview holds run-wide totals.
type MetricsOverview struct {
	TotalDuration   float64 `json:"total_duration_seconds"`
	TotalCalls      int     `json:"total_api_calls"`
	SuccessfulCalls int     `json:"successful_calls"`
	FailedCalls     int     `json:"failed_calls"`
	TotalTokens     int     `json:"total_tokens"`
	TotalCost       float64 `json:"total_cost"`
	AvgLatency      float64 `json:"avg_latency_seconds"`
	TokensPerSecond float64 `json:"tokens_per_second"`
}

// MetricsExtremes points at the outlier calls and units of a run.
type MetricsExtremes struct {
	SlowestCall       *MetricsRecord `json:"slowest_call,omitempty"`
	FastestCall       *MetricsRecord `json:"fastest_call,omitempty"`
	MostExpensiveUnit *UnitMetrics   `json:"most_expensive_unit,omitempty"`
	FastestUnit       *UnitMetrics   `json:"fastest_unit,omitempty"`
}

// MetricsSummary is the derived view over the append-only call log,
// recomputed fresh on every Summarize.
type MetricsSummary struct {
	Overview MetricsOverview         `json:"overview"`
	Stages   map[string]StageMetrics `json:"stage_breakdown"`
	Units    []UnitMetrics           `json:"unit_performance"`
	Calls    []MetricsRecord         `json:"api_calls"`
	Extremes MetricsExtremes         `json:"extremes"`
}
