package match

import (
	"github.com/huandu/skiplist"
)

// BookSide holds the price levels of one side, best price first.
// Bids are ordered by price descending and asks ascending.
type BookSide struct {
	side        Side
	arena       *orderArena
	totalOrders int64
	depthList   *skiplist.SkipList
	priceList   map[int64]*skiplist.Element
	orders      map[uint64]int32
}

func newBookSide(side Side, arena *orderArena) *BookSide {
	s := &BookSide{
		side:      side,
		arena:     arena,
		priceList: make(map[int64]*skiplist.Element),
		orders:    make(map[uint64]int32),
	}

	s.depthList = skiplist.New(skiplist.GreaterThanFunc(func(lhs, rhs any) int {
		p1, _ := lhs.(int64)
		p2, _ := rhs.(int64)

		if s.better(p1, p2) {
			return -1
		} else if s.better(p2, p1) {
			return 1
		}

		return 0
	}))

	return s
}

// better reports whether price a has priority over price b on this side.
func (s *BookSide) better(a, b int64) bool {
	if s.side == Buy {
		return a > b
	}
	return a < b
}

// crosses reports whether an incoming limit on the opposite side can trade against a resting price.
// Equal prices cross.
func (s *BookSide) crosses(limit, resting int64) bool {
	return !s.better(limit, resting)
}

// crossingQuantity sums the resting quantity an incoming limit could take, stopping once it reaches want.
func (s *BookSide) crossingQuantity(limit, want int64) int64 {
	var total int64
	s.Levels(func(lvl *PriceLevel) bool {
		if !s.crosses(limit, lvl.price) {
			return false
		}
		total += lvl.totalSize
		return total < want
	})
	return total
}

// Side returns the side of the book.
func (s *BookSide) Side() Side {
	return s.side
}

// Best returns the best level, or nil when the side is empty.
func (s *BookSide) Best() *PriceLevel {
	el := s.depthList.Front()
	if el == nil {
		return nil
	}

	lvl, _ := el.Value.(*PriceLevel)
	return lvl
}

// Level returns the level at price, or nil.
func (s *BookSide) Level(price int64) *PriceLevel {
	el, ok := s.priceList[price]
	if !ok {
		return nil
	}

	lvl, _ := el.Value.(*PriceLevel)
	return lvl
}

// Levels visits the levels best to worst until fn returns false.
func (s *BookSide) Levels(fn func(lvl *PriceLevel) bool) {
	for el := s.depthList.Front(); el != nil; el = el.Next() {
		lvl, _ := el.Value.(*PriceLevel)
		if !fn(lvl) {
			return
		}
	}
}

// DepthCount returns the number of price levels.
func (s *BookSide) DepthCount() int64 {
	return int64(s.depthList.Len())
}

// OrderCount returns the number of resting orders.
func (s *BookSide) OrderCount() int64 {
	return s.totalOrders
}

// handle returns the arena handle of a resting order.
func (s *BookSide) handle(id uint64) (int32, bool) {
	h, ok := s.orders[id]
	return h, ok
}

// insert appends the order at the tail of its level, creating the level if absent.
func (s *BookSide) insert(h int32) {
	node := s.arena.Get(h)

	lvl := s.Level(node.Price)
	if lvl == nil {
		lvl = newPriceLevel(node.Price)
		el := s.depthList.Set(node.Price, lvl)
		s.priceList[node.Price] = el
	}

	lvl.pushBack(s.arena, h)
	s.orders[node.ID] = h
	s.totalOrders++
}

// remove unlinks the order, drops its level when empty and frees the arena slot.
// The final state of the order is returned.
func (s *BookSide) remove(h int32) Order {
	node := s.arena.Get(h)
	order := node.Order

	lvl := s.Level(order.Price)
	if lvl != nil {
		lvl.unlink(s.arena, h)
		if lvl.isEmpty() {
			s.removeLevel(order.Price)
		}
	}

	delete(s.orders, order.ID)
	s.totalOrders--
	s.arena.Free(h)

	return order
}

// removeLevel drops a level from the side.
func (s *BookSide) removeLevel(price int64) {
	el, ok := s.priceList[price]
	if !ok {
		return
	}
	s.depthList.RemoveElement(el)
	delete(s.priceList, price)
}

// orderAt returns the order record behind a handle.
func (s *BookSide) orderAt(h int32) *orderNode {
	return s.arena.Get(h)
}

// verify checks every level and the id index of the side.
func (s *BookSide) verify(op string) error {
	var (
		err   error
		count int64
		prev  *PriceLevel
	)

	s.Levels(func(lvl *PriceLevel) bool {
		if prev != nil && !s.better(prev.price, lvl.price) {
			err = violation(op, "%s levels out of order: %d before %d", s.side, prev.price, lvl.price)
			return false
		}
		if err = lvl.verify(s.arena, op); err != nil {
			return false
		}
		lvl.walk(s.arena, func(h int32, node *orderNode) bool {
			if idx, ok := s.orders[node.ID]; !ok || idx != h || node.Side != s.side {
				err = violation(op, "order %d missing from %s index", node.ID, s.side)
				return false
			}
			return true
		})
		count += lvl.count
		prev = lvl
		return err == nil
	})
	if err != nil {
		return err
	}

	if count != s.totalOrders || int64(len(s.orders)) != count {
		return violation(op, "%s holds %d orders, index %d, counter %d", s.side, count, len(s.orders), s.totalOrders)
	}
	return nil
}
