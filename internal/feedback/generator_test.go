package feedback

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/perimeterwatch/sigcor/internal/signal"
)

func TestGenerateFullResult(t *testing.T) {
	res := &signal.Result{
		Signal:    signal.NewSignal(signal.NewEvent("waf", nil), "high", 0.8),
		Verdict:   signal.VerdictBlock,
		Rationale: "waf: status=blocked reason=sql_injection",
		RiskScore: 0.8567,
		Actions: []signal.Action{
			signal.NewAction("waf_block", "request blocked", map[string]interface{}{"status": "blocked", "count": 3}),
		},
	}

	items := NewGenerator().Generate(res)
	require.Len(t, items, 3)

	assert.Equal(t, "verdict", items[0].Kind)
	assert.Equal(t, "block", items[0].Message)
	assert.Equal(t, res.Rationale, items[0].Metadata["rationale"])

	assert.Equal(t, "risk", items[1].Kind)
	assert.Equal(t, "risk score 0.86", items[1].Message)
	assert.Equal(t, "0.857", items[1].Metadata["risk_score"])

	assert.Equal(t, "action", items[2].Kind)
	assert.Equal(t, "request blocked", items[2].Message)
	assert.Equal(t, "waf_block", items[2].Metadata["action"])
	assert.Equal(t, "blocked", items[2].Metadata["status"])
	assert.Equal(t, "3", items[2].Metadata["count"])
}

func TestGenerateZeroRiskOmitsRiskItem(t *testing.T) {
	res := &signal.Result{
		Signal:  signal.NewSignal(signal.NewEvent("ids", nil), "info", 0.5),
		Verdict: signal.VerdictMonitor,
	}

	items := NewGenerator().Generate(res)
	require.Len(t, items, 1)
	assert.Equal(t, "verdict", items[0].Kind)
}
