package core

import (
	"errors"
	"sync/atomic"
	"testing"
)

func TestWorkStealingPoolRunsEveryTask(t *testing.T) {
	const n = 500
	var completed int64
	tasks := make([]ProofTask, n)
	for i := range tasks {
		tasks[i] = ProofTask{Index: i, Execute: func() error {
			atomic.AddInt64(&completed, 1)
			return nil
		}}
	}
	if err := NewWorkStealingPool(4).RunTasks(tasks); err != nil {
		t.Fatalf("RunTasks: %v", err)
	}
	if completed != n {
		t.Fatalf("completed = %d, want %d", completed, n)
	}
}

func TestWorkStealingPoolPropagatesFirstError(t *testing.T) {
	wantErr := errors.New("boom")
	tasks := []ProofTask{
		{Index: 0, Execute: func() error { return nil }},
		{Index: 1, Execute: func() error { return wantErr }},
		{Index: 2, Execute: func() error { return nil }},
	}
	err := NewWorkStealingPool(2).RunTasks(tasks)
	if !errors.Is(err, wantErr) {
		t.Fatalf("RunTasks err = %v, want %v", err, wantErr)
	}
}

func TestWorkStealingPoolHandlesEmptyTaskList(t *testing.T) {
	if err := NewWorkStealingPool(4).RunTasks(nil); err != nil {
		t.Fatalf("RunTasks(nil) = %v, want nil", err)
	}
}

func TestWorkStealingPoolDefaultsWorkerCount(t *testing.T) {
	pool := NewWorkStealingPool(0)
	if pool.workers <= 0 {
		t.Fatalf("workers = %d, want > 0", pool.workers)
	}
}

func TestWorkStealingPoolSurvivesMoreWorkersThanTasks(t *testing.T) {
	var completed int64
	tasks := []ProofTask{
		{Index: 0, Execute: func() error { atomic.AddInt64(&completed, 1); return nil }},
	}
	if err := NewWorkStealingPool(16).RunTasks(tasks); err != nil {
		t.Fatalf("RunTasks: %v", err)
	}
	if completed != 1 {
		t.Fatalf("completed = %d, want 1", completed)
	}
}
