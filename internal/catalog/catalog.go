// Package catalog serves the static scenario pool. The catalog is compiled
// into the binary and never mutated, so reads need no synchronization.
package catalog

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"math/rand/v2"

	"github.com/hyunwoo-s/soupgame/internal/models"
)

//go:embed scenarios.json
var scenarioData []byte

// Catalog is an immutable collection of scenarios indexed by uniform random
// selection.
type Catalog struct {
	scenarios []models.Scenario
}

// Load parses the embedded scenario file. It fails only if the embedded data
// is malformed, which is a build defect rather than a runtime condition.
func Load() (*Catalog, error) {
	var scenarios []models.Scenario
	if err := json.Unmarshal(scenarioData, &scenarios); err != nil {
		return nil, fmt.Errorf("parse embedded scenarios: %w", err)
	}
	if len(scenarios) == 0 {
		return nil, fmt.Errorf("embedded scenario catalog is empty")
	}
	for i, s := range scenarios {
		if !s.Complete() {
			return nil, fmt.Errorf("scenario %d (%q) is missing a field", i, s.Title)
		}
	}
	return &Catalog{scenarios: scenarios}, nil
}

// Random draws one scenario uniformly at random.
func (c *Catalog) Random() models.Scenario {
	return c.scenarios[rand.IntN(len(c.scenarios))]
}

// Len reports the catalog size.
func (c *Catalog) Len() int { return len(c.scenarios) }
