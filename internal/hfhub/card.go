package hfhub

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/nvoss/needforge/pkg/models"
)

type cardReport struct {
	Metadata models.RunMetadata     `json:"metadata"`
	Needs    models.AggregatedNeeds `json:"aggregated_needs"`
}

// buildDatasetCard renders the README dataset card from the session's
// report. The card carries the study metadata and per-category counts so the
// dataset is browsable without downloading it.
func buildDatasetCard(sessionDir, repoID string) (string, error) {
	data, err := os.ReadFile(filepath.Join(sessionDir, "report.json"))
	if err != nil {
		return "", fmt.Errorf("failed to read report: %w", err)
	}
	var report cardReport
	if err := json.Unmarshal(data, &report); err != nil {
		return "", fmt.Errorf("failed to parse report: %w", err)
	}

	var b strings.Builder
	b.WriteString("---\n")
	b.WriteString("license: mit\n")
	b.WriteString("task_categories:\n- text-generation\n")
	b.WriteString("tags:\n- requirements-elicitation\n- synthetic\n- needfinding\n")
	b.WriteString("configs:\n- config_name: default\n  data_files: needs.jsonl\n")
	b.WriteString("---\n\n")

	fmt.Fprintf(&b, "# Elicited Needs: %s\n\n", report.Metadata.Product)
	b.WriteString("Synthetic requirements-elicitation dataset produced by ")
	b.WriteString("[needforge](https://github.com/nvoss/needforge): generated personas ")
	b.WriteString("recall simulated product experiences in structured interviews, and ")
	b.WriteString("latent needs are extracted from every exchange.\n\n")

	b.WriteString("## Study\n\n")
	fmt.Fprintf(&b, "- **Product**: %s\n", report.Metadata.Product)
	if report.Metadata.DesignContext != "" {
		fmt.Fprintf(&b, "- **Design context**: %s\n", report.Metadata.DesignContext)
	}
	fmt.Fprintf(&b, "- **Units**: %d\n", report.Metadata.UnitCount)
	fmt.Fprintf(&b, "- **Strategy**: %s\n", report.Metadata.Strategy)
	fmt.Fprintf(&b, "- **Status**: %s\n", report.Metadata.Status)
	fmt.Fprintf(&b, "- **Total needs**: %d\n\n", report.Needs.TotalNeeds)

	if len(report.Needs.Summary.ByCategory) > 0 {
		b.WriteString("## Needs by category\n\n")
		b.WriteString("| Category | Count |\n|---|---|\n")
		for _, category := range sortedKeys(report.Needs.Summary.ByCategory) {
			fmt.Fprintf(&b, "| %s | %d |\n", category, report.Needs.Summary.ByCategory[category])
		}
		b.WriteString("\n")
	}
	if len(report.Needs.Summary.ByPriority) > 0 {
		b.WriteString("## Needs by priority\n\n")
		b.WriteString("| Priority | Count |\n|---|---|\n")
		for _, priority := range []string{"High", "Medium", "Low"} {
			if count, ok := report.Needs.Summary.ByPriority[priority]; ok {
				fmt.Fprintf(&b, "| %s | %d |\n", priority, count)
			}
		}
		b.WriteString("\n")
	}

	b.WriteString("## Files\n\n")
	b.WriteString("- `needs.jsonl`: one extracted need per line, with category, priority, statement and the originating interview exchange\n")
	b.WriteString("- `report.json`: run metadata and the aggregated view of all needs\n")
	b.WriteString("- `metrics.json`: per-stage timing, token usage and cost estimates\n")
	fmt.Fprintf(&b, "\nPublished as [%s](https://huggingface.co/datasets/%s).\n", repoID, repoID)

	return b.String(), nil
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
