package match

import (
	"context"
	"runtime"
	"sync/atomic"
)

// EventHandler consumes the events of a RingBuffer on the consumer goroutine.
type EventHandler[T any] interface {
	OnEvent(event T)
}

// RingBuffer is a multi-producer single-consumer ring.
// Producers claim a sequence with CAS, write the slot and mark it published;
// the single consumer hands slots to the handler strictly in sequence order.
type RingBuffer[T any] struct {
	// Cache line padding to avoid false sharing
	_                [56]byte
	producerSequence atomic.Int64
	_                [56]byte
	consumerSequence atomic.Int64
	_                [56]byte

	buffer     []T
	bufferMask int64
	capacity   int64

	// published[i] holds the sequence last written into slot i
	published []int64

	handler    EventHandler[T]
	isShutdown atomic.Bool
	inflight   atomic.Int64 // Producers between the shutdown check and publication
	stopped    chan struct{}
}

// NewRingBuffer creates a ring. capacity must be a power of 2.
func NewRingBuffer[T any](capacity int64, handler EventHandler[T]) *RingBuffer[T] {
	if capacity <= 0 || (capacity&(capacity-1)) != 0 {
		panic("ring buffer capacity must be a power of 2")
	}

	rb := &RingBuffer[T]{
		buffer:     make([]T, capacity),
		published:  make([]int64, capacity),
		capacity:   capacity,
		bufferMask: capacity - 1,
		handler:    handler,
		stopped:    make(chan struct{}),
	}

	rb.producerSequence.Store(-1)
	rb.consumerSequence.Store(-1)

	for i := range rb.published {
		atomic.StoreInt64(&rb.published[i], -1)
	}

	return rb
}

// Publish claims the next slot and publishes event into it. It is safe for concurrent producers.
// It spins while the ring is full and returns ErrShutdown once Shutdown has been called.
func (rb *RingBuffer[T]) Publish(event T) error {
	// registered before the shutdown check so that the final drain waits for this event
	rb.inflight.Add(1)
	defer rb.inflight.Add(-1)

	var nextSeq int64
	for {
		if rb.isShutdown.Load() {
			return ErrShutdown
		}

		current := rb.producerSequence.Load()
		nextSeq = current + 1

		// the producer may not lap the consumer
		if nextSeq-rb.capacity > rb.consumerSequence.Load() {
			runtime.Gosched()
			continue
		}

		if rb.producerSequence.CompareAndSwap(current, nextSeq) {
			break
		}
		runtime.Gosched()
	}

	index := nextSeq & rb.bufferMask
	rb.buffer[index] = event
	atomic.StoreInt64(&rb.published[index], nextSeq)

	return nil
}

// Start runs the consumer on a new goroutine.
func (rb *RingBuffer[T]) Start() {
	go rb.run()
}

// Shutdown stops accepting events and waits until every claimed event was handled.
func (rb *RingBuffer[T]) Shutdown(ctx context.Context) error {
	rb.isShutdown.Store(true)

	select {
	case <-rb.stopped:
		return nil
	case <-ctx.Done():
		return ErrTimeout
	}
}

func (rb *RingBuffer[T]) run() {
	defer close(rb.stopped)

	next := rb.consumerSequence.Load() + 1

	for {
		// read the flag before the bound so that nothing claimed before shutdown is skipped
		shutdown := rb.isShutdown.Load()
		available := rb.producerSequence.Load()

		processed := next <= available
		next = rb.consume(next, available)

		if shutdown {
			// producers that passed the shutdown check may still claim a slot
			for rb.inflight.Load() > 0 {
				next = rb.consume(next, rb.producerSequence.Load())
				runtime.Gosched()
			}
			rb.consume(next, rb.producerSequence.Load())
			return
		}

		if !processed {
			runtime.Gosched()
		}
	}
}

// consume handles the events in [next, available] and returns the next sequence to read.
func (rb *RingBuffer[T]) consume(next, available int64) int64 {
	for next <= available {
		index := next & rb.bufferMask

		// the slot is claimed but its producer may still be writing
		for atomic.LoadInt64(&rb.published[index]) != next {
			runtime.Gosched()
		}

		event := rb.buffer[index]
		var zero T
		rb.buffer[index] = zero

		rb.handler.OnEvent(event)

		rb.consumerSequence.Store(next)
		next++
	}
	return next
}

// ConsumerSequence returns the last handled sequence.
func (rb *RingBuffer[T]) ConsumerSequence() int64 {
	return rb.consumerSequence.Load()
}

// ProducerSequence returns the last claimed sequence.
func (rb *RingBuffer[T]) ProducerSequence() int64 {
	return rb.producerSequence.Load()
}

// PendingEvents returns the number of claimed events not yet handled.
func (rb *RingBuffer[T]) PendingEvents() int64 {
	return rb.producerSequence.Load() - rb.consumerSequence.Load()
}
