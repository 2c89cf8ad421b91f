package profiles

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChainAscendingCost(t *testing.T) {
	for _, class := range []string{ClassCPU, ClassGPU} {
		chain := Chain(class)
		require.NotEmpty(t, chain)
		for i := 1; i < len(chain); i++ {
			assert.Equal(t, class, chain[i].Class)
			assert.GreaterOrEqual(t, chain[i].HourlyRate, chain[i-1].HourlyRate,
				"chain for %s not in ascending cost order", class)
		}
	}
}

func TestFallbackOrderHintedClassFirst(t *testing.T) {
	order := FallbackOrder(ClassGPU)
	require.Len(t, order, len(Catalog()))

	gpuCount := len(Chain(ClassGPU))
	for i, p := range order {
		if i < gpuCount {
			assert.Equal(t, ClassGPU, p.Class)
		} else {
			assert.Equal(t, ClassCPU, p.Class)
		}
	}

	order = FallbackOrder(ClassCPU)
	cpuCount := len(Chain(ClassCPU))
	for i, p := range order {
		if i < cpuCount {
			assert.Equal(t, ClassCPU, p.Class)
		} else {
			assert.Equal(t, ClassGPU, p.Class)
		}
	}
}

func TestFallbackOrderDefaultsToGPU(t *testing.T) {
	order := FallbackOrder("")
	require.NotEmpty(t, order)
	assert.Equal(t, ClassGPU, order[0].Class)
}

func TestByID(t *testing.T) {
	p, ok := ByID("ml.g5.2xlarge")
	require.True(t, ok)
	assert.Equal(t, 1.21, p.HourlyRate)
	assert.Equal(t, ClassGPU, p.Class)

	_, ok = ByID("ml.unknown")
	assert.False(t, ok)
}
