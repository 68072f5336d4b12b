package pool

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRunPreservesOrder(t *testing.T) {
	p := New(4, nil)
	tasks := make([]Task, 20)
	for i := range tasks {
		i := i
		tasks[i] = func(ctx context.Context) (interface{}, error) {
			time.Sleep(time.Duration(20-i) * time.Microsecond)
			return i * 2, nil
		}
	}
	results := p.Run(context.Background(), tasks)
	if len(results) != len(tasks) {
		t.Fatalf("got %d results, want %d", len(results), len(tasks))
	}
	for i, r := range results {
		if r.Index != i {
			t.Fatalf("result %d has Index %d", i, r.Index)
		}
		if r.Value.(int) != i*2 {
			t.Fatalf("result %d = %v, want %d", i, r.Value, i*2)
		}
	}
}

func TestRunPropagatesTaskError(t *testing.T) {
	p := New(2, nil)
	boom := errors.New("boom")
	results := p.Run(context.Background(), []Task{
		func(ctx context.Context) (interface{}, error) { return nil, nil },
		func(ctx context.Context) (interface{}, error) { return nil, boom },
	})
	if results[1].Err != boom {
		t.Fatalf("expected boom error at index 1, got %v", results[1].Err)
	}
}

func TestRunRecoversPanic(t *testing.T) {
	p := New(2, nil)
	results := p.Run(context.Background(), []Task{
		func(ctx context.Context) (interface{}, error) { panic("task exploded") },
	})
	if results[0].Panic == nil {
		t.Fatal("expected the panic to be captured in the result")
	}
}

func TestRunRespectsContextCancellation(t *testing.T) {
	p := New(1, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	tasks := []Task{
		func(ctx context.Context) (interface{}, error) { return 1, nil },
	}
	results := p.Run(ctx, tasks)
	if results[0].Err == nil {
		t.Fatal("expected a context-cancellation error")
	}
}

func TestRunEmpty(t *testing.T) {
	p := New(2, nil)
	if r := p.Run(context.Background(), nil); r != nil {
		t.Fatalf("expected nil results for no tasks, got %v", r)
	}
}
