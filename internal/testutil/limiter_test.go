package testutil

import (
	"errors"
	"testing"
)

func TestResourceLimiterEnforcesDiskBudget(t *testing.T) {
	r := NewResourceLimiter(100, 100)

	if err := r.AllocDisk(60); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := r.AllocDisk(60); !errors.Is(err, ErrBudgetExceeded) {
		t.Fatalf("expected ErrBudgetExceeded, got %v", err)
	}
	if got := r.DiskUsed(); got != 60 {
		t.Fatalf("disk used should not count the rejected allocation: got %d", got)
	}

	r.FreeDisk(60)
	if got := r.DiskUsed(); got != 0 {
		t.Fatalf("expected 0 after freeing, got %d", got)
	}
}

func TestResourceLimiterEnforcesMemoryBudget(t *testing.T) {
	r := NewResourceLimiter(100, 50)
	if err := r.AllocMemory(50); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := r.AllocMemory(1); !errors.Is(err, ErrBudgetExceeded) {
		t.Fatalf("expected ErrBudgetExceeded, got %v", err)
	}
}
