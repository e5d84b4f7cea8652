package pipeline

import (
	"sync"

	"github.com/nvoss/needforge/pkg/models"
)

// Coarse stage percents match the stage transitions the original pipeline
// reports: both early stages start at 0, extraction at 80, done at 100.
const (
	percentAgentGeneration    = 0
	percentParallelProcessing = 0
	percentNeedExtraction     = 80
	percentCompleted          = 100
)

// Per-unit progress stage values.
const (
	unitStageExperience = "experience"
	unitStageInterview  = "interview"
	unitStageCompleted  = "completed"
	unitStageFailed     = "failed"
)

// ProgressFunc receives progress events as the pipeline advances. May be nil.
type ProgressFunc func(models.ProgressEvent)

// reporter serializes progress callbacks so concurrent units never deliver
// interleaved events. Units only ever block on the reporter guard, never on
// the callback's downstream work racing another unit.
type reporter struct {
	mu sync.Mutex
	fn ProgressFunc
}

func newReporter(fn ProgressFunc) *reporter {
	return &reporter{fn: fn}
}

func (r *reporter) emit(event models.ProgressEvent) {
	if r.fn == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fn(event)
}

// stage emits a coarse stage transition.
func (r *reporter) stage(stage, message string, percent int) {
	r.emit(models.ProgressEvent{Stage: stage, Message: message, Percent: percent})
}

// unit emits a per-unit event carrying the persona ID.
func (r *reporter) unit(stage, message string, unitID int) {
	r.emit(models.ProgressEvent{Stage: stage, Message: message, UnitID: unitID})
}

// snapshot emits a stage event with a copy of the intermediate results.
func (r *reporter) snapshot(stage, message string, percent int, snap *models.ResultSnapshot) {
	r.emit(models.ProgressEvent{Stage: stage, Message: message, Percent: percent, Snapshot: snap})
}
