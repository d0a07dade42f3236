// Package ringbuffer provides a lock-free single-producer single-consumer
// ring buffer, used as the hand-off between the decoder goroutine and the
// audio device callback.
package ringbuffer

import (
	"fmt"
	"sync/atomic"
)

// RingBuffer is a fixed-capacity SPSC queue. Exactly one goroutine may call
// Write/Flush (the producer) and exactly one may call Read (the consumer);
// all other methods are safe from anywhere.
//
// head and tail are monotonically increasing positions, reduced modulo the
// storage size on access. Only the consumer advances head, only the producer
// advances tail, so both sides can operate without locks.
type RingBuffer[T any] struct {
	storage []T

	head      atomic.Uint64
	tail      atomic.Uint64
	flushUpTo atomic.Uint64
	consumed  atomic.Uint64

	spaceCh chan struct{}
}

func New[T any](size uint) *RingBuffer[T] {
	if size == 0 {
		panic(fmt.Errorf("ring buffer size must be positive"))
	}
	return &RingBuffer[T]{
		storage: make([]T, size),
		spaceCh: make(chan struct{}, 1),
	}
}

// Write copies as many items from p as currently fit and returns how many
// were copied. It never blocks; a zero return means the buffer is full.
func (r *RingBuffer[T]) Write(p []T) int {
	size := uint64(len(r.storage))
	head := r.head.Load()
	tail := r.tail.Load()

	n := uint64(len(p))
	if free := size - (tail - head); n > free {
		n = free
	}
	if n == 0 {
		return 0
	}

	idx := tail % size
	first := n
	if first > size-idx {
		first = size - idx
	}
	copy(r.storage[idx:], p[:first])
	copy(r.storage, p[first:n])
	r.tail.Add(n)
	return int(n)
}

// Read copies up to len(p) items into p and returns how many were copied.
// It never blocks; a zero return means the buffer is empty (underrun).
func (r *RingBuffer[T]) Read(p []T) int {
	size := uint64(len(r.storage))
	head := r.head.Load()
	if f := r.flushUpTo.Load(); f > head {
		head = f
		r.head.Store(head)
		r.notifySpace()
	}
	tail := r.tail.Load()

	n := uint64(len(p))
	if avail := tail - head; n > avail {
		n = avail
	}
	if n == 0 {
		return 0
	}

	idx := head % size
	first := n
	if first > size-idx {
		first = size - idx
	}
	copy(p[:first], r.storage[idx:idx+first])
	copy(p[first:n], r.storage[:n-first])
	r.head.Store(head + n)
	r.consumed.Add(n)
	r.notifySpace()
	return int(n)
}

// Flush marks everything written so far as discarded. Only the producer may
// call it. The consumer skips the discarded items on its next Read without
// counting them as consumed; until then the space they occupy is not
// reusable, so a Write right after a Flush may still report a full buffer.
func (r *RingBuffer[T]) Flush() {
	r.flushUpTo.Store(r.tail.Load())
}

// Consumed reports the total number of items handed out via Read since the
// buffer was created. Discarded items are not included.
func (r *RingBuffer[T]) Consumed() uint64 {
	return r.consumed.Load()
}

// Space returns a channel that receives a value whenever the consumer frees
// up room. A spurious wakeup is possible, so the producer should re-try
// Write and wait again if it still reports zero.
func (r *RingBuffer[T]) Space() <-chan struct{} {
	return r.spaceCh
}

func (r *RingBuffer[T]) notifySpace() {
	select {
	case r.spaceCh <- struct{}{}:
	default:
	}
}

// Len reports how many items are currently readable. It is inherently
// approximate while the other side is active.
func (r *RingBuffer[T]) Len() int {
	head := r.head.Load()
	if f := r.flushUpTo.Load(); f > head {
		head = f
	}
	return int(r.tail.Load() - head)
}

func (r *RingBuffer[T]) Cap() int {
	return len(r.storage)
}
