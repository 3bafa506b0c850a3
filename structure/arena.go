package structure

import "errors"

// Arena is a slot allocator addressed by int32 handles.
// It is the single owner of the records it stores; callers keep handles, never pointers.
//
// Design:
// - Slots live in fixed-size chunks that are never reallocated, so growing does not move
//   existing records and a pointer returned by Get stays valid until the slot is freed
// - Freed slots are recycled through an intrusive free list (LIFO)
// - Capacity grows one chunk at a time, optionally bounded by MaxCapacity

const (
	NullIndex        int32 = -1
	DefaultChunkSize int32 = 1024
)

var (
	ErrMaxCapacityReached = errors.New("arena: max capacity reached")
)

// ArenaOptions configures the arena behavior.
type ArenaOptions struct {
	// ChunkSize is the number of slots added on every growth.
	// If 0 (default), DefaultChunkSize is used.
	ChunkSize int32

	// MaxCapacity sets the maximum number of slots allowed.
	// If 0 (default), there is no limit and the arena will grow indefinitely.
	MaxCapacity int32

	// OnGrow is called when the arena expands after construction.
	// Can be used for logging or metrics.
	OnGrow func(oldCap, newCap int32)
}

type slot[T any] struct {
	value    T
	nextFree int32
	inUse    bool
}

// Arena stores records of type T in chunked slots.
type Arena[T any] struct {
	chunks      [][]slot[T]
	chunkSize   int32
	freeHead    int32              // Head of free list
	count       int32              // Number of slots in use
	capacity    int32              // Number of allocated slots
	maxCapacity int32              // Max capacity (0 = unlimited)
	onGrow      func(int32, int32) // Callback on grow
}

// NewArena creates a new arena with at least the given pre-allocated capacity.
func NewArena[T any](capacity int32) *Arena[T] {
	return NewArenaWithOptions[T](capacity, ArenaOptions{})
}

// NewArenaWithOptions creates a new arena with custom options.
func NewArenaWithOptions[T any](capacity int32, opts ArenaOptions) *Arena[T] {
	chunkSize := opts.ChunkSize
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	a := &Arena[T]{
		chunkSize:   chunkSize,
		freeHead:    NullIndex,
		maxCapacity: opts.MaxCapacity,
	}

	for a.capacity < capacity {
		if err := a.grow(); err != nil {
			break
		}
	}

	// pre-allocation is not reported as growth
	a.onGrow = opts.OnGrow
	return a
}

// grow appends one chunk and pushes its slots onto the free list.
// Returns error if max capacity would be exceeded.
func (a *Arena[T]) grow() error {
	oldCap := a.capacity
	size := a.chunkSize

	if a.maxCapacity > 0 && oldCap+size > a.maxCapacity {
		if oldCap >= a.maxCapacity {
			return ErrMaxCapacityReached
		}
		// the last chunk may be short, it is never followed by another one
		size = a.maxCapacity - oldCap
	}
	newCap := oldCap + size

	if a.onGrow != nil {
		a.onGrow(oldCap, newCap)
	}

	chunk := make([]slot[T], size)
	a.chunks = append(a.chunks, chunk)

	// push in reverse so that lower indexes are handed out first
	for i := newCap - 1; i >= oldCap; i-- {
		chunk[i-oldCap].nextFree = a.freeHead
		a.freeHead = i
	}

	a.capacity = newCap
	return nil
}

func (a *Arena[T]) slot(idx int32) *slot[T] {
	if idx < 0 || idx >= a.capacity {
		return nil
	}
	return &a.chunks[idx/a.chunkSize][idx%a.chunkSize]
}

// Alloc reserves a zeroed slot, growing if necessary.
func (a *Arena[T]) Alloc() (int32, error) {
	if a.freeHead == NullIndex {
		if err := a.grow(); err != nil {
			return NullIndex, err
		}
	}

	idx := a.freeHead
	s := a.slot(idx)
	a.freeHead = s.nextFree

	var zero T
	s.value = zero
	s.nextFree = NullIndex
	s.inUse = true

	a.count++
	return idx, nil
}

// Free returns a slot to the free list.
// Returns false if the handle is out of range or the slot is not in use.
func (a *Arena[T]) Free(idx int32) bool {
	s := a.slot(idx)
	if s == nil || !s.inUse {
		return false
	}

	var zero T
	s.value = zero
	s.inUse = false
	s.nextFree = a.freeHead
	a.freeHead = idx

	a.count--
	return true
}

// Get returns the record stored at idx, or nil if the slot is not in use.
func (a *Arena[T]) Get(idx int32) *T {
	s := a.slot(idx)
	if s == nil || !s.inUse {
		return nil
	}
	return &s.value
}

// Reset frees every slot while keeping the allocated capacity.
func (a *Arena[T]) Reset() {
	var zero T
	a.freeHead = NullIndex
	for i := a.capacity - 1; i >= 0; i-- {
		s := a.slot(i)
		s.value = zero
		s.inUse = false
		s.nextFree = a.freeHead
		a.freeHead = i
	}
	a.count = 0
}

// Full reports whether the next Alloc would fail with ErrMaxCapacityReached.
func (a *Arena[T]) Full() bool {
	return a.freeHead == NullIndex && a.maxCapacity > 0 && a.capacity >= a.maxCapacity
}

// Len returns the number of slots in use.
func (a *Arena[T]) Len() int32 {
	return a.count
}

// Cap returns the current capacity of the arena.
func (a *Arena[T]) Cap() int32 {
	return a.capacity
}
