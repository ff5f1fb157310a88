package metrics

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcessSampler_Sample(t *testing.T) {
	s := NewProcessSampler()

	usage, err := s.Sample(context.Background())
	require.NoError(t, err)
	assert.Greater(t, usage.MemoryMB, 0.0)
	assert.GreaterOrEqual(t, usage.CPUPercent, 0.0)
}

func TestProcessSampler_ConcurrentSamples(t *testing.T) {
	s := NewProcessSampler()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				_, err := s.Sample(context.Background())
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()
}

func TestCollector_ConcurrentSnapshotsWithProcessSampler(t *testing.T) {
	c := NewCollector(nil, nil, WithSampler(NewProcessSampler()))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				snapshot := c.Snapshot()
				assert.Greater(t, snapshot.MemoryUsage, 0.0)
			}
		}()
	}
	wg.Wait()
}
