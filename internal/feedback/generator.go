// Package feedback projects aggregated results into small typed messages
// for downstream consumers such as an adaptive testing engine.
package feedback

import (
	"fmt"

	"github.com/perimeterwatch/sigcor/internal/signal"
)

// Item is one feedback message derived from a result.
type Item struct {
	Kind     string            `json:"kind"`
	Message  string            `json:"message"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Generator converts results into feedback items. Pure and side-effect free.
type Generator struct{}

// NewGenerator creates a generator.
func NewGenerator() *Generator {
	return &Generator{}
}

// Generate produces the ordered feedback list: always one verdict item, a
// risk item only when the risk score is non-zero, and one action item per
// action on the result.
func (g *Generator) Generate(res *signal.Result) []Item {
	items := []Item{{
		Kind:     "verdict",
		Message:  res.Verdict,
		Metadata: map[string]string{"rationale": res.Rationale},
	}}

	if res.RiskScore != 0 {
		items = append(items, Item{
			Kind:    "risk",
			Message: fmt.Sprintf("risk score %.2f", res.RiskScore),
			Metadata: map[string]string{
				"risk_score": fmt.Sprintf("%.3f", res.RiskScore),
			},
		})
	}

	for _, action := range res.Actions {
		metadata := map[string]string{"action": action.Name}
		for key, value := range action.Metadata {
			metadata[key] = fmt.Sprint(value)
		}
		items = append(items, Item{
			Kind:     "action",
			Message:  action.Description,
			Metadata: metadata,
		})
	}
	return items
}
