package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVerdictScore(t *testing.T) {
	assert := assert.New(t)

	// compliant always scores 100 regardless of severity
	assert.Equal(100, (&UnifiedVerdict{Compliant: true, Severity: SeverityCritical}).Score())

	// high/medium/low carry 40/25/10 deductions; critical sits below high
	fixtures := []struct {
		severity string
		score    int
	}{
		{SeverityCritical, 45},
		{SeverityHigh, 60},
		{SeverityMedium, 75},
		{SeverityLow, 90},
		{"unknown", 90},
	}
	for _, fix := range fixtures {
		v := &UnifiedVerdict{Compliant: false, Severity: fix.severity}
		assert.Equal(fix.score, v.Score(), "severity %s", fix.severity)
	}

	// score never rises as severity worsens
	assert.Greater((&UnifiedVerdict{Severity: SeverityLow}).Score(),
		(&UnifiedVerdict{Severity: SeverityHigh}).Score())
}
