package needs

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nvoss/needforge/internal/util"
	"github.com/nvoss/needforge/pkg/models"
)

// extractionPayload is the shape the extraction prompt asks for: an object
// with a "needs" array. Some models return the bare array instead.
type extractionPayload struct {
	Needs []models.NeedRecord `json:"needs"`
}

// ParseRecords recovers need records from a raw model response. The payload
// may be fenced in markdown, wrapped in prose, truncated, or syntactically
// sloppy; the recovery chain tries progressively heavier repairs before
// giving up.
func ParseRecords(raw string) ([]models.NeedRecord, error) {
	jsonStr := util.ExtractJSON(raw)
	jsonStr = util.SanitizeJSON(jsonStr)

	records, err := unmarshalRecords(jsonStr)
	if err != nil {
		// Last resort: repair common syntax damage and retry
		repaired := util.RepairJSON(jsonStr)
		records, err = unmarshalRecords(repaired)
		if err != nil {
			return nil, fmt.Errorf("failed to parse extraction response: %w", err)
		}
	}

	for i := range records {
		normalizeRecord(&records[i])
	}
	return records, nil
}

func unmarshalRecords(jsonStr string) ([]models.NeedRecord, error) {
	trimmed := strings.TrimSpace(jsonStr)

	if strings.HasPrefix(trimmed, "[") {
		var records []models.NeedRecord
		if err := json.Unmarshal([]byte(trimmed), &records); err != nil {
			return nil, err
		}
		return records, nil
	}

	var payload extractionPayload
	if err := json.Unmarshal([]byte(trimmed), &payload); err != nil {
		return nil, err
	}
	return payload.Needs, nil
}

// normalizeRecord fills the defaults a sloppy model response may omit.
// Records with no category land in "Unknown"; records with no priority are
// treated as "Medium".
func normalizeRecord(r *models.NeedRecord) {
	if strings.TrimSpace(r.Category) == "" {
		r.Category = "Unknown"
	}
	switch strings.ToLower(strings.TrimSpace(r.Priority)) {
	case "":
		r.Priority = models.PriorityMedium
	case "high":
		r.Priority = models.PriorityHigh
	case "medium":
		r.Priority = models.PriorityMedium
	case "low":
		r.Priority = models.PriorityLow
	}
}
