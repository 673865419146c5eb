// Package pipeline connects the real-time capture callback to the decode loop
// through a bounded queue, preserving strict sample order.
package pipeline

import (
	"sync"
	"sync/atomic"
)

// Queue is a bounded FIFO of sample batches. Push never blocks: when the
// queue is full the oldest batch is dropped and counted. Dropping from the
// old end keeps the remaining batches contiguous-in-order; reordering would
// corrupt pulse timing, which is the entire signal.
//
// Push runs on the audio callback thread and therefore does no I/O, not even
// logging; drops are surfaced by the consumer. Safe for concurrent use by one
// producer and one consumer.
type Queue struct {
	ch      chan []int16
	dropped atomic.Uint64

	mu sync.Mutex
}

// NewQueue creates a queue holding at most depth batches.
func NewQueue(depth int) *Queue {
	if depth < 1 {
		depth = 1
	}
	return &Queue{ch: make(chan []int16, depth)}
}

// Push enqueues a batch, evicting the oldest batches if the consumer has
// fallen behind. The caller must not reuse the slice afterwards.
func (q *Queue) Push(batch []int16) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for {
		select {
		case q.ch <- batch:
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

// C returns the receive side of the queue for the consumer.
func (q *Queue) C() <-chan []int16 { return q.ch }

// Dropped returns the total number of batches evicted so far.
func (q *Queue) Dropped() uint64 { return q.dropped.Load() }

// Len returns the number of batches currently buffered.
func (q *Queue) Len() int { return len(q.ch) }
