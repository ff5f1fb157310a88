package metrics

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/shirou/gopsutil/v4/process"
)

// ResourceUsage is a reading of the host process resources
type ResourceUsage struct {
	MemoryMB   float64
	CPUPercent float64
}

// ResourceSampler reads resource usage of the running process
type ResourceSampler interface {
	Sample(ctx context.Context) (ResourceUsage, error)
}

// ResourceSamplerFunc adapts a function to ResourceSampler
type ResourceSamplerFunc func(ctx context.Context) (ResourceUsage, error)

// Sample calls f(ctx)
func (f ResourceSamplerFunc) Sample(ctx context.Context) (ResourceUsage, error) {
	return f(ctx)
}

// ProcessSampler samples the current process through gopsutil.
// CPU is the utilisation since the previous sample. gopsutil keeps that
// previous sample on the Process unguarded, so reads are serialised.
type ProcessSampler struct {
	mu   sync.Mutex
	once sync.Once
	proc *process.Process
	err  error
}

// NewProcessSampler creates a sampler for the current process
func NewProcessSampler() *ProcessSampler {
	return &ProcessSampler{}
}

// Sample reads RSS memory and CPU percentage
func (s *ProcessSampler) Sample(ctx context.Context) (ResourceUsage, error) {
	s.once.Do(func() {
		s.proc, s.err = process.NewProcessWithContext(ctx, int32(os.Getpid()))
	})
	if s.err != nil {
		return ResourceUsage{}, fmt.Errorf("failed to open process: %w", s.err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	memInfo, err := s.proc.MemoryInfoWithContext(ctx)
	if err != nil {
		return ResourceUsage{}, fmt.Errorf("failed to read memory info: %w", err)
	}

	cpuPercent, err := s.proc.PercentWithContext(ctx, 0)
	if err != nil {
		return ResourceUsage{}, fmt.Errorf("failed to read cpu percent: %w", err)
	}

	return ResourceUsage{
		MemoryMB:   float64(memInfo.RSS) / 1024 / 1024,
		CPUPercent: cpuPercent,
	}, nil
}
