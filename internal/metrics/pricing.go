package metrics

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// ModelRate holds per-1K-token prices for a model family.
type ModelRate struct {
	Input  float64 `yaml:"input"`
	Output float64 `yaml:"output"`
}

// PriceTable estimates call costs by matching model names against known
// families. Matching is case-insensitive substring matching; more specific
// families are checked before their prefixes.
type PriceTable struct {
	rates []ratedFamily
	deflt ModelRate
}

type ratedFamily struct {
	family string
	rate   ModelRate
}

// DefaultPriceTable returns the built-in price table.
func DefaultPriceTable() *PriceTable {
	return &PriceTable{
		rates: []ratedFamily{
			{"gpt-4-turbo", ModelRate{Input: 0.01, Output: 0.03}},
			{"gpt-4", ModelRate{Input: 0.03, Output: 0.06}},
			{"gpt-3.5-turbo", ModelRate{Input: 0.0005, Output: 0.0015}},
			{"gemini-1.5-pro", ModelRate{Input: 0.00125, Output: 0.00375}},
			{"gemini-pro", ModelRate{Input: 0.00025, Output: 0.0005}},
		},
		deflt: ModelRate{Input: 0.01, Output: 0.03},
	}
}

// LoadPriceTable reads a YAML price file and merges it over the built-in
// table. File entries override matching families and unknown families are
// appended ahead of the defaults.
func LoadPriceTable(path string) (*PriceTable, error) {
	table := DefaultPriceTable()
	if path == "" {
		return table, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read price file: %w", err)
	}

	var overrides map[string]ModelRate
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return nil, fmt.Errorf("failed to parse price file: %w", err)
	}

	for family, rate := range overrides {
		family = strings.ToLower(family)
		if family == "default" {
			table.deflt = rate
			continue
		}
		replaced := false
		for i, rf := range table.rates {
			if rf.family == family {
				table.rates[i].rate = rate
				replaced = true
				break
			}
		}
		if !replaced {
			table.rates = append([]ratedFamily{{family, rate}}, table.rates...)
		}
	}

	return table, nil
}

// Rate returns the price entry for a model name.
func (t *PriceTable) Rate(model string) ModelRate {
	lower := strings.ToLower(model)
	for _, rf := range t.rates {
		if strings.Contains(lower, rf.family) {
			return rf.rate
		}
	}
	return t.deflt
}

// EstimateCost returns the estimated dollar cost of one call.
func (t *PriceTable) EstimateCost(model string, tokensIn, tokensOut int) float64 {
	rate := t.Rate(model)
	return float64(tokensIn)/1000*rate.Input + float64(tokensOut)/1000*rate.Output
}
