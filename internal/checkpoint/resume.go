package checkpoint

import (
	"fmt"
	"sort"

	"github.com/nvoss/needforge/internal/config"
	"github.com/nvoss/needforge/pkg/models"
)

// ValidateCheckpoint verifies checkpoint is compatible with current config
func ValidateCheckpoint(cp *models.Checkpoint, cfg *config.Config) error {
	expectedHash := computeConfigHash(cfg)
	if cp.ConfigHash != expectedHash {
		return fmt.Errorf("checkpoint config mismatch: checkpoint was created with a different product/context/unit count (hash: %s vs %s)", cp.ConfigHash, expectedHash)
	}

	// Additional validation
	if cp.CurrentPhase == models.PhaseComplete {
		return fmt.Errorf("checkpoint is already complete, nothing to resume")
	}

	return nil
}

// GetPendingUnits returns the units that still need processing
func GetPendingUnits(cp *models.Checkpoint, jobs []models.UnitJob) []models.UnitJob {
	if !cp.PersonasComplete {
		return nil // Need to complete the persona phase first
	}

	var pending []models.UnitJob
	for _, job := range jobs {
		if !cp.CompletedUnitIDs[job.PersonaID] {
			pending = append(pending, job)
		}
	}
	return pending
}

// GetCompletedResults returns the saved results of already-finished units,
// ordered by persona ID. Failed units reappear as failed results so a
// resumed run reports the same totals.
func GetCompletedResults(cp *models.Checkpoint) []models.UnitResult {
	var results []models.UnitResult
	for id := range cp.CompletedUnitIDs {
		if res, ok := cp.UnitResults[id]; ok {
			results = append(results, *res)
			continue
		}
		results = append(results, models.UnitResult{
			PersonaID: id,
			Success:   false,
			Err:       cp.FailedUnitErrors[id],
		})
	}
	sort.Slice(results, func(i, j int) bool {
		return results[i].PersonaID < results[j].PersonaID
	})
	return results
}

// GetCompletedCount returns the number of completed units
func GetCompletedCount(cp *models.Checkpoint) int {
	return len(cp.CompletedUnitIDs)
}

// GetTotalCount returns the total number of units
func GetTotalCount(cp *models.Checkpoint) int {
	return cp.UnitCount
}

// GetProgressPercentage returns completion percentage
func GetProgressPercentage(cp *models.Checkpoint) float64 {
	total := GetTotalCount(cp)
	if total == 0 {
		return 0.0
	}
	completed := GetCompletedCount(cp)
	return float64(completed) / float64(total) * 100.0
}
