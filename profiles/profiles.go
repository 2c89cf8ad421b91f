// Package profiles holds the compute resource profile catalog and the
// fallback-chain ordering used during job admission.
package profiles

import "sort"

// Capability classes.
const (
	ClassCPU = "cpu"
	ClassGPU = "gpu"
)

// ResourceProfile is a named compute configuration offered by the remote
// training backend, with its approximate on-demand hourly rate in USD.
type ResourceProfile struct {
	ID         string  `json:"id"`
	HourlyRate float64 `json:"hourlyRate"`
	Class      string  `json:"class"`
	Rank       int     `json:"rank"`
}

// Rates should be refreshed when the backend's pricing changes.
var catalog = []ResourceProfile{
	{ID: "ml.g5.2xlarge", HourlyRate: 1.21, Class: ClassGPU, Rank: 1},
	{ID: "ml.g5.4xlarge", HourlyRate: 1.83, Class: ClassGPU, Rank: 2},
	{ID: "ml.g5.8xlarge", HourlyRate: 2.42, Class: ClassGPU, Rank: 3},
	{ID: "ml.p3.2xlarge", HourlyRate: 3.06, Class: ClassGPU, Rank: 4},
	{ID: "ml.m5.xlarge", HourlyRate: 0.23, Class: ClassCPU, Rank: 1},
	{ID: "ml.m5.2xlarge", HourlyRate: 0.46, Class: ClassCPU, Rank: 2},
	{ID: "ml.m5.4xlarge", HourlyRate: 0.92, Class: ClassCPU, Rank: 3},
}

// Catalog returns a copy of all known resource profiles.
func Catalog() []ResourceProfile {
	out := make([]ResourceProfile, len(catalog))
	copy(out, catalog)
	return out
}

// ByID looks up a profile by its identifier.
func ByID(id string) (ResourceProfile, bool) {
	for _, p := range catalog {
		if p.ID == id {
			return p, true
		}
	}
	return ResourceProfile{}, false
}

// Chain returns the profiles of one capability class in ascending cost
// order.
func Chain(class string) []ResourceProfile {
	var out []ResourceProfile
	for _, p := range catalog {
		if p.Class == class {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].HourlyRate < out[j].HourlyRate
	})
	return out
}

// FallbackOrder returns the full admission order: the hinted class's chain
// first, in full, then the other class's chain. Without a hint the GPU chain
// leads, matching the backend's default instance class for fine-tuning.
func FallbackOrder(hint string) []ResourceProfile {
	first, second := ClassGPU, ClassCPU
	if hint == ClassCPU {
		first, second = ClassCPU, ClassGPU
	}
	return append(Chain(first), Chain(second)...)
}
