package match

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestEvent is a simple event type for testing.
type TestEvent struct {
	ID    int64
	Value int64
}

// simpleHandler is a test helper that wraps a function.
type simpleHandler[T any] struct {
	fn func(T)
}

func (h *simpleHandler[T]) OnEvent(e T) {
	h.fn(e)
}

func TestRingBuffer_BasicOperations(t *testing.T) {
	var processed []int64
	var mu sync.Mutex

	handler := &simpleHandler[TestEvent]{
		fn: func(e TestEvent) {
			mu.Lock()
			processed = append(processed, e.ID)
			mu.Unlock()
		},
	}

	rb := NewRingBuffer[TestEvent](16, handler)
	rb.Start()

	for i := int64(1); i <= 10; i++ {
		require.NoError(t, rb.Publish(TestEvent{ID: i}))
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, rb.Shutdown(ctx))

	// Verify all events were processed in order
	require.Len(t, processed, 10)
	for i := int64(1); i <= 10; i++ {
		assert.Equal(t, i, processed[i-1])
	}
}

func TestRingBuffer_WrapAround(t *testing.T) {
	var sum atomic.Int64
	handler := &simpleHandler[TestEvent]{fn: func(e TestEvent) { sum.Add(e.Value) }}

	rb := NewRingBuffer[TestEvent](4, handler)
	rb.Start()

	for i := int64(1); i <= 100; i++ {
		require.NoError(t, rb.Publish(TestEvent{ID: i, Value: i}))
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, rb.Shutdown(ctx))

	assert.Equal(t, int64(5050), sum.Load())
}

func TestRingBuffer_PublishAfterShutdown(t *testing.T) {
	handler := &simpleHandler[TestEvent]{fn: func(e TestEvent) {}}
	rb := NewRingBuffer[TestEvent](16, handler)
	rb.Start()

	require.NoError(t, rb.Shutdown(context.Background()))

	err := rb.Publish(TestEvent{ID: 1})
	assert.ErrorIs(t, err, ErrShutdown)
}

func TestRingBuffer_PendingEvents(t *testing.T) {
	// Create a handler that blocks until signaled
	blockCh := make(chan struct{})
	handler := &simpleHandler[TestEvent]{
		fn: func(e TestEvent) {
			<-blockCh
		},
	}

	rb := NewRingBuffer[TestEvent](16, handler)
	rb.Start()

	for i := 0; i < 5; i++ {
		require.NoError(t, rb.Publish(TestEvent{ID: int64(i)}))
	}

	// the consumer holds the first event, the rest are pending
	assert.GreaterOrEqual(t, rb.PendingEvents(), int64(4))

	close(blockCh)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, rb.Shutdown(ctx))

	assert.Equal(t, int64(0), rb.PendingEvents())
}

func TestRingBuffer_SequenceMonitoring(t *testing.T) {
	handler := &simpleHandler[TestEvent]{fn: func(e TestEvent) {}}
	rb := NewRingBuffer[TestEvent](16, handler)

	// Initial sequences should be -1
	assert.Equal(t, int64(-1), rb.ProducerSequence())
	assert.Equal(t, int64(-1), rb.ConsumerSequence())

	rb.Start()

	for i := 0; i < 3; i++ {
		require.NoError(t, rb.Publish(TestEvent{ID: int64(i)}))
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, rb.Shutdown(ctx))

	// After processing, both sequences should be at 2 (0-indexed)
	assert.Equal(t, int64(2), rb.ProducerSequence())
	assert.Equal(t, int64(2), rb.ConsumerSequence())
}

func TestRingBuffer_ShutdownTimeout(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	handler := &simpleHandler[TestEvent]{
		fn: func(e TestEvent) {
			<-release
		},
	}

	rb := NewRingBuffer[TestEvent](16, handler)
	rb.Start()

	require.NoError(t, rb.Publish(TestEvent{ID: 1}))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := rb.Shutdown(ctx)
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestRingBuffer_ConcurrentPublish(t *testing.T) {
	const numPublishers = 10
	const eventsPerPublisher = 100

	var count atomic.Int64
	lastByPublisher := make(map[int64]int64)

	// the consumer is single-threaded, no lock needed for the map
	handler := &simpleHandler[TestEvent]{
		fn: func(e TestEvent) {
			count.Add(1)
			publisher := e.ID / eventsPerPublisher
			if last, ok := lastByPublisher[publisher]; ok && last >= e.ID {
				panic("events of one publisher reordered")
			}
			lastByPublisher[publisher] = e.ID
		},
	}

	rb := NewRingBuffer[TestEvent](64, handler)
	rb.Start()

	var wg sync.WaitGroup
	wg.Add(numPublishers)

	for i := 0; i < numPublishers; i++ {
		go func(id int) {
			defer wg.Done()
			for j := 0; j < eventsPerPublisher; j++ {
				_ = rb.Publish(TestEvent{ID: int64(id*eventsPerPublisher + j)})
			}
		}(i)
	}

	wg.Wait()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, rb.Shutdown(ctx))

	assert.Equal(t, int64(numPublishers*eventsPerPublisher), count.Load())
}

func TestRingBuffer_ShutdownWhilePublishing(t *testing.T) {
	for round := 0; round < 20; round++ {
		var handled atomic.Int64
		handler := &simpleHandler[TestEvent]{fn: func(e TestEvent) { handled.Add(1) }}

		rb := NewRingBuffer[TestEvent](8, handler)
		rb.Start()

		var (
			wg       sync.WaitGroup
			accepted atomic.Int64
		)
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for rb.Publish(TestEvent{ID: 1}) == nil {
					accepted.Add(1)
				}
			}()
		}

		time.Sleep(time.Millisecond)

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		require.NoError(t, rb.Shutdown(ctx))
		cancel()
		wg.Wait()

		// every event a producer got accepted was handled before Shutdown returned
		assert.Equal(t, accepted.Load(), handled.Load(), "round %d", round)
		assert.Equal(t, int64(0), rb.PendingEvents())
	}
}

func TestRingBuffer_PowerOf2Validation(t *testing.T) {
	handler := &simpleHandler[TestEvent]{fn: func(e TestEvent) {}}

	assert.Panics(t, func() {
		NewRingBuffer[TestEvent](15, handler)
	})

	assert.Panics(t, func() {
		NewRingBuffer[TestEvent](0, handler)
	})

	assert.Panics(t, func() {
		NewRingBuffer[TestEvent](-1, handler)
	})

	assert.NotPanics(t, func() {
		NewRingBuffer[TestEvent](16, handler)
	})
}

func BenchmarkRingBuffer(b *testing.B) {
	handler := &simpleHandler[TestEvent]{fn: func(e TestEvent) {}}
	rb := NewRingBuffer[TestEvent](1024*64, handler)
	rb.Start()

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		var i int64
		for pb.Next() {
			i++
			_ = rb.Publish(TestEvent{ID: i})
		}
	})
	b.StopTimer()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = rb.Shutdown(ctx)
}
