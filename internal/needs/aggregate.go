package needs

import "github.com/nvoss/needforge/pkg/models"

// priorityLevels are the groups the aggregate view keys on. Needs with a
// priority outside this set stay in AllNeeds and their category group but
// are not forced into a priority bucket.
var priorityLevels = []string{models.PriorityHigh, models.PriorityMedium, models.PriorityLow}

// Aggregate builds the categorized, prioritized view over all units'
// extractions. It is a pure function of its input and recomputes the whole
// aggregate from scratch.
func Aggregate(extractions []models.UnitExtraction) models.AggregatedNeeds {
	var all []models.NeedRecord
	for _, ext := range extractions {
		all = append(all, ext.Needs...)
	}
	return AggregateRecords(all, len(extractions))
}

// AggregateRecords groups an already-flattened record list. totalUnits is
// carried through unchanged since unit boundaries are no longer visible.
func AggregateRecords(records []models.NeedRecord, totalUnits int) models.AggregatedNeeds {
	agg := models.EmptyAggregatedNeeds()
	agg.TotalUnits = totalUnits

	agg.AllNeeds = append(agg.AllNeeds, records...)
	agg.TotalNeeds = len(agg.AllNeeds)
	if agg.TotalNeeds == 0 {
		return agg
	}

	known := make(map[string]bool, len(priorityLevels))
	for _, p := range priorityLevels {
		known[p] = true
	}

	for _, need := range agg.AllNeeds {
		agg.Categories[need.Category] = append(agg.Categories[need.Category], need)
		agg.Summary.ByCategory[need.Category]++
		// ByPriority mirrors the three priority groups exactly; non-standard
		// values stay visible via AllNeeds and the category groups only
		if known[need.Priority] {
			agg.Priorities[need.Priority] = append(agg.Priorities[need.Priority], need)
			agg.Summary.ByPriority[need.Priority]++
		}
	}

	return agg
}
