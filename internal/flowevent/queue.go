// Package flowevent implements the per-stage data-flow event emitter
//: a bounded, drop-oldest in-memory queue feeding an
// asynchronous poster that ships FlowEvents to the Event-Log Store's
// ingestion endpoint.
package flowevent

import (
	"sync"
	"sync/atomic"

	"github.com/telehealth/core/internal/model"
)

// Queue is a thread-safe bounded queue of FlowEvents with a drop-oldest
// overflow policy. Drops are counted and exposed via Stats rather than
// surfaced to callers; emission is best effort by contract.
type Queue struct {
	capacity int
	records  []model.FlowEvent
	mu       sync.Mutex
	notEmpty *sync.Cond

	totalEnqueued atomic.Int64
	totalDequeued atomic.Int64
	dropped       atomic.Int64

	closed atomic.Bool
}

// NewQueue creates a bounded queue with the given capacity (default
// 1024, configured via config.EmitterConfig.QueueCapacity).
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = 1024
	}
	q := &Queue{
		capacity: capacity,
		records:  make([]model.FlowEvent, 0, capacity),
	}
	q.notEmpty = sync.NewCond(&q.mu)
	return q
}

// Enqueue adds a FlowEvent. If the queue is at capacity, the oldest queued
// event is dropped to make room — this call never blocks and never fails
// the caller's pipeline.
func (q *Queue) Enqueue(event model.FlowEvent) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed.Load() {
		return
	}

	if len(q.records) >= q.capacity {
		q.records = q.records[1:]
		q.dropped.Add(1)
	}

	q.records = append(q.records, event)
	q.totalEnqueued.Add(1)
	q.notEmpty.Signal()
}

// Dequeue blocks until an event is available or the queue is closed.
func (q *Queue) Dequeue() (model.FlowEvent, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.records) == 0 && !q.closed.Load() {
		q.notEmpty.Wait()
	}
	if len(q.records) == 0 {
		return model.FlowEvent{}, false
	}

	event := q.records[0]
	q.records = q.records[1:]
	q.totalDequeued.Add(1)
	return event, true
}

// DrainAll removes and returns every currently queued event without
// blocking.
func (q *Queue) DrainAll() []model.FlowEvent {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]model.FlowEvent, len(q.records))
	copy(out, q.records)
	q.records = q.records[:0]
	q.totalDequeued.Add(int64(len(out)))
	return out
}

// Close wakes blocked consumers; subsequent Enqueue calls are no-ops.
func (q *Queue) Close() {
	q.closed.Store(true)
	q.mu.Lock()
	q.notEmpty.Broadcast()
	q.mu.Unlock()
}

// Stats reports queue depth and drop counters, exposed via /metrics.
type Stats struct {
	Depth         int
	Capacity      int
	TotalEnqueued int64
	TotalDequeued int64
	Dropped       int64
}

func (q *Queue) Stats() Stats {
	q.mu.Lock()
	depth := len(q.records)
	q.mu.Unlock()

	return Stats{
		Depth:         depth,
		Capacity:      q.capacity,
		TotalEnqueued: q.totalEnqueued.Load(),
		TotalDequeued: q.totalDequeued.Load(),
		Dropped:       q.dropped.Load(),
	}
}
