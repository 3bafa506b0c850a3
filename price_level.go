package match

import (
	"github.com/0x5487/orderbook-core/structure"
)

// orderNode is the arena record of a resting order.
// prev/next link it into the FIFO of its price level.
type orderNode struct {
	Order
	prev int32
	next int32
}

type orderArena = structure.Arena[orderNode]

// PriceLevel is the FIFO of orders resting at one price.
// Members are arena handles; the level never owns order records.
type PriceLevel struct {
	price     int64
	head      int32
	tail      int32
	totalSize int64 // Sum of members' remaining quantity
	count     int64
}

func newPriceLevel(price int64) *PriceLevel {
	return &PriceLevel{
		price: price,
		head:  structure.NullIndex,
		tail:  structure.NullIndex,
	}
}

// Price returns the level price in ticks.
func (l *PriceLevel) Price() int64 {
	return l.price
}

// TotalSize returns the aggregate remaining quantity of the level.
func (l *PriceLevel) TotalSize() int64 {
	return l.totalSize
}

// Count returns the number of orders in the level.
func (l *PriceLevel) Count() int64 {
	return l.count
}

func (l *PriceLevel) isEmpty() bool {
	return l.head == structure.NullIndex
}

// pushBack appends the order at the tail (lowest time priority).
func (l *PriceLevel) pushBack(arena *orderArena, h int32) {
	node := arena.Get(h)
	node.prev = l.tail
	node.next = structure.NullIndex

	if l.tail != structure.NullIndex {
		arena.Get(l.tail).next = h
	}
	l.tail = h
	if l.head == structure.NullIndex {
		l.head = h
	}

	l.totalSize += node.Remaining
	l.count++
}

// unlink removes any member in O(1).
func (l *PriceLevel) unlink(arena *orderArena, h int32) {
	node := arena.Get(h)

	if node.prev != structure.NullIndex {
		arena.Get(node.prev).next = node.next
	} else {
		l.head = node.next
	}

	if node.next != structure.NullIndex {
		arena.Get(node.next).prev = node.prev
	} else {
		l.tail = node.prev
	}

	node.prev = structure.NullIndex
	node.next = structure.NullIndex

	l.totalSize -= node.Remaining
	l.count--
}

// reduce lowers the remaining quantity of a member, keeping its position.
func (l *PriceLevel) reduce(node *orderNode, qty int64) {
	node.Remaining -= qty
	l.totalSize -= qty
}

// walk visits the members from head to tail until fn returns false.
func (l *PriceLevel) walk(arena *orderArena, fn func(h int32, node *orderNode) bool) {
	for h := l.head; h != structure.NullIndex; {
		node := arena.Get(h)
		next := node.next
		if !fn(h, node) {
			return
		}
		h = next
	}
}

// verify recomputes the aggregates from the members.
func (l *PriceLevel) verify(arena *orderArena, op string) error {
	var (
		total int64
		count int64
		err   error
	)
	var lastSeq uint64

	l.walk(arena, func(_ int32, node *orderNode) bool {
		switch {
		case node.Remaining <= 0:
			err = violation(op, "order %d rests with remaining %d", node.ID, node.Remaining)
		case node.Price != l.price:
			err = violation(op, "order %d at price %d linked into level %d", node.ID, node.Price, l.price)
		case node.Seq <= lastSeq:
			err = violation(op, "order %d breaks time priority at level %d", node.ID, l.price)
		}
		lastSeq = node.Seq
		total += node.Remaining
		count++
		return err == nil
	})
	if err != nil {
		return err
	}

	if total != l.totalSize || count != l.count {
		return violation(op, "level %d aggregates %d/%d, members sum to %d/%d", l.price, l.totalSize, l.count, total, count)
	}
	if count == 0 {
		return violation(op, "empty level %d left in book", l.price)
	}
	return nil
}
