// Package pricing computes training cost quotes and final accounting from a
// resource profile's hourly rate.
package pricing

import (
	"math"

	"github.com/llmtuner/llm-tuner-platform/backend/profiles"
)

// Estimate returns the cost in USD of running the given profile for
// elapsedHours, rounded to cents. Negative durations are treated as zero.
func Estimate(profile profiles.ResourceProfile, elapsedHours float64) float64 {
	if elapsedHours <= 0 {
		return 0
	}
	return math.Round(profile.HourlyRate*elapsedHours*100) / 100
}
