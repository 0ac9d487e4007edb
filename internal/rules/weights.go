package rules

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
)

// WeightsFile is the optional override document under the data root.
const WeightsFile = "weights.json"

// WeightTable maps rule name to its integer penalty weight. A weight of zero
// removes a rule's score impact without silencing its reason.
type WeightTable map[Name]int

// DefaultWeights returns the built-in weight table.
func DefaultWeights() WeightTable {
	return WeightTable{
		Blacklist:       60,
		Watchlist:       30,
		HighAmount:      25,
		UnusualHour:     15,
		NewAddress:      40,
		Velocity:        20,
		SensitiveToken:  15,
		SensitiveMethod: 15,
	}
}

// Weight resolves the weight for a rule, falling back to the default table for
// names missing from an override-derived table.
func (w WeightTable) Weight(n Name) int {
	if v, ok := w[n]; ok {
		return v
	}
	return DefaultWeights()[n]
}

// LoadWeights returns the defaults overlaid with the weights.json document
// from dataDir, if present. A malformed document is ignored in full; override
// keys that do not name a known rule, and negative values, are dropped.
func LoadWeights(dataDir string, logger *slog.Logger) WeightTable {
	table := DefaultWeights()

	path := filepath.Join(dataDir, WeightsFile)
	data, err := os.ReadFile(path)
	if err != nil {
		return table
	}

	var overrides map[string]int
	if err := json.Unmarshal(data, &overrides); err != nil {
		logger.Warn("malformed weight override document, keeping defaults",
			slog.String("file", WeightsFile),
			slog.String("error", err.Error()),
		)
		return table
	}

	for k, v := range overrides {
		name := Name(k)
		if _, known := table[name]; !known {
			continue
		}
		if v < 0 {
			continue
		}
		table[name] = v
	}
	return table
}
