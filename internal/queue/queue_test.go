package queue

import (
	"context"
	"sync"
	"testing"
	"time"
)

func echoWorker(ctx context.Context, item *Item) Result {
	select {
	case <-ctx.Done():
		return Result{Err: ctx.Err()}
	default:
	}
	return Result{Text: "echo:" + item.Message, FinishReason: "stop"}
}

func TestSessionQueue_FIFOWithinSamePriority(t *testing.T) {
	m := NewManager(echoWorker, nil)

	var order []string
	var mu sync.Mutex
	var futures []*Future

	for _, msg := range []string{"first", "second", "third"} {
		_, f := m.Enqueue(context.Background(), "alpha", msg, 0, nil)
		futures = append(futures, f)
	}

	for _, f := range futures {
		r, err := f.Wait(context.Background())
		if err != nil {
			t.Fatalf("unexpected wait error: %v", err)
		}
		mu.Lock()
		order = append(order, r.Text)
		mu.Unlock()
	}

	want := []string{"echo:first", "echo:second", "echo:third"}
	for i, w := range want {
		if order[i] != w {
			t.Fatalf("order[%d] = %q, want %q (full: %v)", i, order[i], w, order)
		}
	}
}

func TestSessionQueue_HigherPriorityPopsFirst(t *testing.T) {
	block := make(chan struct{})
	blocker := func(ctx context.Context, item *Item) Result {
		if item.Message == "blocker" {
			<-block
		}
		return Result{Text: item.Message}
	}

	m := NewManager(blocker, nil)
	_, fBlocker := m.Enqueue(context.Background(), "beta", "blocker", 0, nil)
	time.Sleep(20 * time.Millisecond) // ensure blocker is active before enqueuing the rest

	_, fLow := m.Enqueue(context.Background(), "beta", "low", 0, nil)
	_, fHigh := m.Enqueue(context.Background(), "beta", "high", 5, nil)

	close(block)
	if _, err := fBlocker.Wait(context.Background()); err != nil {
		t.Fatalf("blocker wait: %v", err)
	}

	highResult, err := fHigh.Wait(context.Background())
	if err != nil {
		t.Fatalf("high wait: %v", err)
	}
	if highResult.Text != "high" {
		t.Fatalf("expected high-priority item to run next, got %q", highResult.Text)
	}
	if _, err := fLow.Wait(context.Background()); err != nil {
		t.Fatalf("low wait: %v", err)
	}
}

func TestSessionQueue_CancelActivePropagates(t *testing.T) {
	started := make(chan struct{})
	worker := func(ctx context.Context, item *Item) Result {
		close(started)
		<-ctx.Done()
		return Result{Err: ctx.Err()}
	}

	m := NewManager(worker, nil)
	_, f := m.Enqueue(context.Background(), "gamma", "long-running", 0, nil)
	<-started

	if !m.CancelActive("gamma") {
		t.Fatal("expected CancelActive to find an active item")
	}

	r, err := f.Wait(context.Background())
	if err != nil {
		t.Fatalf("unexpected wait error: %v", err)
	}
	if r.Err == nil {
		t.Fatal("expected cancelled result to carry an error")
	}
}

func TestSessionQueue_CancelQueuedRejectsBacklog(t *testing.T) {
	block := make(chan struct{})
	worker := func(ctx context.Context, item *Item) Result {
		if item.Message == "blocker" {
			<-block
		}
		return Result{Text: item.Message}
	}

	m := NewManager(worker, nil)
	_, fBlocker := m.Enqueue(context.Background(), "delta", "blocker", 0, nil)
	time.Sleep(20 * time.Millisecond)

	_, fQueued1 := m.Enqueue(context.Background(), "delta", "q1", 0, nil)
	_, fQueued2 := m.Enqueue(context.Background(), "delta", "q2", 0, nil)

	n := m.CancelQueued("delta")
	if n != 2 {
		t.Fatalf("expected 2 cancelled, got %d", n)
	}

	for _, f := range []*Future{fQueued1, fQueued2} {
		r, err := f.Wait(context.Background())
		if err != nil {
			t.Fatalf("unexpected wait error: %v", err)
		}
		if r.Err == nil {
			t.Fatal("expected queued item to resolve with a cancellation error")
		}
	}

	close(block)
	if _, err := fBlocker.Wait(context.Background()); err != nil {
		t.Fatalf("blocker wait: %v", err)
	}
}

func TestSessionQueue_Stats(t *testing.T) {
	block := make(chan struct{})
	worker := func(ctx context.Context, item *Item) Result {
		<-block
		return Result{Text: item.Message}
	}

	m := NewManager(worker, nil)
	_, f := m.Enqueue(context.Background(), "epsilon", "a", 0, nil)
	time.Sleep(20 * time.Millisecond)
	m.Enqueue(context.Background(), "epsilon", "b", 0, nil)

	stats, ok := m.Stats("epsilon")
	if !ok {
		t.Fatal("expected stats for known session")
	}
	if !stats.IsProcessing {
		t.Fatal("expected IsProcessing true while an item is active")
	}
	if stats.QueueDepth != 1 {
		t.Fatalf("expected queue depth 1, got %d", stats.QueueDepth)
	}

	close(block)
	f.Wait(context.Background())
}

func TestManager_CleanupRemovesIdleQueues(t *testing.T) {
	m := NewManager(echoWorker, nil)
	_, f := m.Enqueue(context.Background(), "zeta", "hi", 0, nil)
	if _, err := f.Wait(context.Background()); err != nil {
		t.Fatalf("unexpected wait error: %v", err)
	}

	time.Sleep(10 * time.Millisecond)
	removed := m.cleanup(5 * time.Millisecond)
	if removed != 1 {
		t.Fatalf("expected 1 queue reaped, got %d", removed)
	}
	if _, ok := m.Stats("zeta"); ok {
		t.Fatal("expected zeta's queue to be gone after reaping")
	}
}
