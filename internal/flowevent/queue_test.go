package flowevent

import (
	"testing"
	"time"

	"github.com/telehealth/core/internal/model"
)

func TestQueue_BasicOperations(t *testing.T) {
	q := NewQueue(10)

	q.Enqueue(model.FlowEvent{Step: model.StepReceived, Topic: "t/1"})

	stats := q.Stats()
	if stats.Depth != 1 {
		t.Fatalf("expected depth 1, got %d", stats.Depth)
	}

	event, ok := q.Dequeue()
	if !ok {
		t.Fatal("expected dequeue to succeed")
	}
	if event.Topic != "t/1" {
		t.Fatalf("expected topic t/1, got %s", event.Topic)
	}

	if q.Stats().Depth != 0 {
		t.Fatalf("expected depth 0 after dequeue")
	}
}

func TestQueue_DropsOldestOnOverflow(t *testing.T) {
	q := NewQueue(3)

	for i := 0; i < 3; i++ {
		q.Enqueue(model.FlowEvent{Topic: string(rune('a' + i))})
	}
	q.Enqueue(model.FlowEvent{Topic: "d"})

	stats := q.Stats()
	if stats.Depth != 3 {
		t.Fatalf("expected depth capped at 3, got %d", stats.Depth)
	}
	if stats.Dropped != 1 {
		t.Fatalf("expected 1 dropped record, got %d", stats.Dropped)
	}

	first, ok := q.Dequeue()
	if !ok || first.Topic != "b" {
		t.Fatalf("expected oldest surviving record b, got %q ok=%v", first.Topic, ok)
	}
}

func TestQueue_DrainAll(t *testing.T) {
	q := NewQueue(10)
	q.Enqueue(model.FlowEvent{Topic: "a"})
	q.Enqueue(model.FlowEvent{Topic: "b"})

	drained := q.DrainAll()
	if len(drained) != 2 {
		t.Fatalf("expected 2 drained records, got %d", len(drained))
	}
	if q.Stats().Depth != 0 {
		t.Fatal("expected queue empty after DrainAll")
	}
}

func TestQueue_CloseWakesDequeue(t *testing.T) {
	q := NewQueue(10)

	done := make(chan bool, 1)
	go func() {
		_, ok := q.Dequeue()
		done <- ok
	}()

	time.Sleep(10 * time.Millisecond)
	q.Close()

	select {
	case ok := <-done:
		if ok {
			t.Fatal("expected Dequeue to return ok=false after Close on empty queue")
		}
	case <-time.After(time.Second):
		t.Fatal("Dequeue did not wake up after Close")
	}
}

func TestQueue_CloseDrainsQueuedBeforeEmpty(t *testing.T) {
	q := NewQueue(10)
	q.Enqueue(model.FlowEvent{Topic: "a"})
	q.Close()

	event, ok := q.Dequeue()
	if !ok || event.Topic != "a" {
		t.Fatalf("expected closed queue to still yield queued record a, got %q ok=%v", event.Topic, ok)
	}

	_, ok = q.Dequeue()
	if ok {
		t.Fatal("expected second Dequeue on closed empty queue to return ok=false")
	}
}

func TestQueue_EnqueueAfterCloseIsNoop(t *testing.T) {
	q := NewQueue(10)
	q.Close()
	q.Enqueue(model.FlowEvent{Topic: "a"})

	if q.Stats().Depth != 0 {
		t.Fatal("expected enqueue after close to be dropped")
	}
}
