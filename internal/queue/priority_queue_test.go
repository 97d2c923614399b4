package queue

import (
	"testing"
	"time"

	"github.com/tanmiacare/go-notification-engine/internal/domain"
)

func job(id string, p domain.Priority) *DeliveryJob {
	return &DeliveryJob{ID: id, Priority: p}
}

func TestPriorityOrdering(t *testing.T) {
	pq := NewPriorityQueue()
	pq.Push(job("low", domain.PriorityLow))
	pq.Push(job("urgent", domain.PriorityUrgent))
	pq.Push(job("medium", domain.PriorityMedium))
	pq.Push(job("high", domain.PriorityHigh))

	want := []string{"urgent", "high", "medium", "low"}
	for _, id := range want {
		got := pq.TryPop()
		if got == nil || got.ID != id {
			t.Fatalf("TryPop() = %v, want %s", got, id)
		}
	}
	if pq.TryPop() != nil {
		t.Error("queue should be empty")
	}
}

func TestFIFOWithinPriority(t *testing.T) {
	pq := NewPriorityQueue()
	pq.Push(job("first", domain.PriorityMedium))
	pq.Push(job("second", domain.PriorityMedium))
	pq.Push(job("third", domain.PriorityMedium))

	for _, id := range []string{"first", "second", "third"} {
		got := pq.TryPop()
		if got == nil || got.ID != id {
			t.Fatalf("TryPop() = %v, want %s", got, id)
		}
	}
}

func TestPopBlocksUntilPush(t *testing.T) {
	pq := NewPriorityQueue()
	done := make(chan *DeliveryJob, 1)

	go func() {
		done <- pq.Pop()
	}()

	time.Sleep(20 * time.Millisecond)
	pq.Push(job("late", domain.PriorityLow))

	select {
	case got := <-done:
		if got == nil || got.ID != "late" {
			t.Fatalf("Pop() = %v, want late", got)
		}
	case <-time.After(time.Second):
		t.Fatal("Pop() did not return after Push")
	}
}

func TestCloseWakesBlockedPop(t *testing.T) {
	pq := NewPriorityQueue()
	done := make(chan *DeliveryJob, 1)

	go func() {
		done <- pq.Pop()
	}()

	time.Sleep(20 * time.Millisecond)
	pq.Close()

	select {
	case got := <-done:
		if got != nil {
			t.Fatalf("Pop() after Close = %v, want nil", got)
		}
	case <-time.After(time.Second):
		t.Fatal("Pop() did not return after Close")
	}

	// Pushes after close are dropped
	pq.Push(job("dropped", domain.PriorityUrgent))
	if pq.Len() != 0 {
		t.Error("Push after Close should be dropped")
	}
}
