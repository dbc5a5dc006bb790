package testutil

import (
	"errors"
	"sync/atomic"
)

// ErrBudgetExceeded is returned when an allocation would push a tracked
// resource past its configured budget.
var ErrBudgetExceeded = errors.New("testutil: resource budget exceeded")

// ResourceLimiter tracks disk and memory usage against fixed budgets, for
// benchmark scenarios that simulate a capacity-constrained flash device
// (a small backing store, or a capped write-buffer) without actually
// shrinking the underlying filesystem.
type ResourceLimiter struct {
	maxDiskBytes   int64
	maxMemoryBytes int64
	diskUsed       atomic.Int64
	memUsed        atomic.Int64
}

func NewResourceLimiter(maxDisk, maxMemory int64) *ResourceLimiter {
	return &ResourceLimiter{
		maxDiskBytes:   maxDisk,
		maxMemoryBytes: maxMemory,
	}
}

func (r *ResourceLimiter) AllocDisk(n int64) error {
	newUsed := r.diskUsed.Add(n)
	if newUsed > r.maxDiskBytes {
		r.diskUsed.Add(-n)
		return ErrBudgetExceeded
	}
	return nil
}

func (r *ResourceLimiter) FreeDisk(n int64) {
	r.diskUsed.Add(-n)
}

func (r *ResourceLimiter) DiskUsed() int64 {
	return r.diskUsed.Load()
}

func (r *ResourceLimiter) AllocMemory(n int64) error {
	newUsed := r.memUsed.Add(n)
	if newUsed > r.maxMemoryBytes {
		r.memUsed.Add(-n)
		return ErrBudgetExceeded
	}
	return nil
}

func (r *ResourceLimiter) FreeMemory(n int64) {
	r.memUsed.Add(-n)
}
