// Package notify hands alert events from the sampler to their consumers.
// The sampler must never block on a slow consumer, so the queue drops the
// oldest pending event when full.
package notify

import (
	"sync"
	"sync/atomic"

	"gitlab.com/tinyland/lab/host-pulse/alert"
)

// DefaultQueueSize is the buffered capacity used when none is configured.
const DefaultQueueSize = 64

// Sink receives alert events. Notify must not block.
type Sink interface {
	Notify(ev alert.Event)
}

// Func adapts a function to a Sink.
type Func func(ev alert.Event)

// Notify calls f(ev).
func (f Func) Notify(ev alert.Event) { f(ev) }

// Multi fans an event out to every sink in order.
type Multi []Sink

// Notify forwards ev to each non-nil sink.
func (m Multi) Notify(ev alert.Event) {
	for _, s := range m {
		if s != nil {
			s.Notify(ev)
		}
	}
}

// Queue is a bounded, non-blocking event queue.
type Queue struct {
	mu      sync.Mutex // serialises the drop-and-retry path
	ch      chan alert.Event
	dropped atomic.Uint64
}

// NewQueue creates a queue holding up to size events. Size below 1 uses
// DefaultQueueSize.
func NewQueue(size int) *Queue {
	if size < 1 {
		size = DefaultQueueSize
	}
	return &Queue{ch: make(chan alert.Event, size)}
}

// Notify enqueues ev, discarding the oldest queued event if the queue is
// full.
func (q *Queue) Notify(ev alert.Event) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for {
		select {
		case q.ch <- ev:
			return
		default:
		}
		select {
		case <-q.ch:
			q.dropped.Add(1)
		default:
		}
	}
}

// C returns the receive side of the queue.
func (q *Queue) C() <-chan alert.Event {
	return q.ch
}

// Len returns the number of queued events.
func (q *Queue) Len() int {
	return len(q.ch)
}

// Dropped returns how many events were discarded because the queue was full.
func (q *Queue) Dropped() uint64 {
	return q.dropped.Load()
}

// Drain removes and returns every queued event without blocking.
func (q *Queue) Drain() []alert.Event {
	var out []alert.Event
	for {
		select {
		case ev := <-q.ch:
			out = append(out, ev)
		default:
			return out
		}
	}
}
