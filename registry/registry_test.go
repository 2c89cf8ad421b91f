package registry

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTryAcquireRelease(t *testing.T) {
	r := New()

	assert.True(t, r.TryAcquire("alice"))
	assert.False(t, r.TryAcquire("alice"))
	assert.True(t, r.TryAcquire("bob"))

	r.Release("alice")
	assert.True(t, r.TryAcquire("alice"))
}

func TestReleaseIdempotent(t *testing.T) {
	r := New()
	r.Release("nobody")

	assert.True(t, r.TryAcquire("alice"))
	r.Release("alice")
	r.Release("alice")
	assert.True(t, r.TryAcquire("alice"))
}

func TestTryAcquireAtomicUnderContention(t *testing.T) {
	r := New()

	var wins int64
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if r.TryAcquire("alice") {
				atomic.AddInt64(&wins, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), wins)
	assert.True(t, r.Held("alice"))
}
