package pricing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llmtuner/llm-tuner-platform/backend/profiles"
)

func TestEstimate(t *testing.T) {
	p, ok := profiles.ByID("ml.g5.2xlarge")
	require.True(t, ok)

	assert.Equal(t, 1.21, Estimate(p, 1))
	assert.Equal(t, 2.42, Estimate(p, 2))
	assert.Equal(t, 0.61, Estimate(p, 0.5))
}

func TestEstimateZeroAndNegative(t *testing.T) {
	p, ok := profiles.ByID("ml.m5.xlarge")
	require.True(t, ok)

	assert.Equal(t, 0.0, Estimate(p, 0))
	assert.Equal(t, 0.0, Estimate(p, -3))
}

// Whole-hour durations price to exact cents, so the estimate is additive
// over them for every profile in the catalog.
func TestEstimateLinearOverWholeHours(t *testing.T) {
	for _, p := range profiles.Catalog() {
		for h1 := 0.0; h1 <= 5; h1++ {
			for h2 := 0.0; h2 <= 5; h2++ {
				sum := Estimate(p, h1) + Estimate(p, h2)
				assert.InDelta(t, Estimate(p, h1+h2), sum, 1e-9,
					"profile %s, h1=%v h2=%v", p.ID, h1, h2)
			}
		}
	}
}

func TestEstimateRoundsToCents(t *testing.T) {
	p := profiles.ResourceProfile{ID: "test", HourlyRate: 1.0, Class: profiles.ClassCPU}
	assert.Equal(t, 0.33, Estimate(p, 0.333))
}
