package match

import (
	"fmt"

	"github.com/0x5487/orderbook-core/protocol"
	"github.com/0x5487/orderbook-core/structure"
	"github.com/rs/xid"
)

// LevelView is a read-only copy of one price level.
type LevelView struct {
	Price    int64   `json:"price"`
	Quantity int64   `json:"quantity"` // Aggregate remaining quantity
	Count    int64   `json:"count"`
	Orders   []Order `json:"orders,omitempty"` // FIFO order, only in detailed snapshots
}

// Snapshot is an immutable projection of both sides, best price first.
type Snapshot struct {
	Timestamp    uint64      `json:"timestamp"` // Logical clock of the engine
	LastTradeSeq uint64      `json:"last_trade_seq"`
	Bids         []LevelView `json:"bids"`
	Asks         []LevelView `json:"asks"`
}

// Snapshot returns price and aggregate quantity per level. The cost is proportional to the number of levels.
func (e *MatchingEngine) Snapshot() *Snapshot {
	return e.snapshot(false)
}

// DetailedSnapshot additionally lists every resting order of each level in time priority.
func (e *MatchingEngine) DetailedSnapshot() *Snapshot {
	return e.snapshot(true)
}

func (e *MatchingEngine) snapshot(detailed bool) *Snapshot {
	return &Snapshot{
		Timestamp:    e.clock.Load(),
		LastTradeSeq: e.tradeSeq.Load(),
		Bids:         sideView(e.bids, detailed, 0),
		Asks:         sideView(e.asks, detailed, 0),
	}
}

// sideView copies up to limit levels (0 means all).
func sideView(s *BookSide, detailed bool, limit int) []LevelView {
	n := int(s.DepthCount())
	if limit > 0 && limit < n {
		n = limit
	}
	views := make([]LevelView, 0, n)

	s.Levels(func(lvl *PriceLevel) bool {
		if len(views) == n {
			return false
		}

		view := LevelView{
			Price:    lvl.price,
			Quantity: lvl.totalSize,
			Count:    lvl.count,
		}
		if detailed {
			view.Orders = make([]Order, 0, lvl.count)
			lvl.walk(s.arena, func(_ int32, node *orderNode) bool {
				view.Orders = append(view.Orders, node.Order)
				return true
			})
		}

		views = append(views, view)
		return true
	})

	return views
}

// BookState contains the full state of the book, used for checkpoints and recovery.
type BookState struct {
	SchemaVersion int     `json:"schema_version"`
	ID            string  `json:"id"`
	MarketID      string  `json:"market_id"`
	EngineVersion string  `json:"engine_version"`
	TickSize      string  `json:"tick_size"`
	LastOrderID   uint64  `json:"last_order_id"`
	LastSeq       uint64  `json:"last_seq"`       // Last arrival sequence
	LastTradeSeq  uint64  `json:"last_trade_seq"` // Last trade sequence
	Clock         uint64  `json:"clock"`          // Logical request clock
	CreatedAt     int64   `json:"created_at"`     // Unix nano
	Bids          []Order `json:"bids"`           // Ordered list of bids (best price first)
	Asks          []Order `json:"asks"`           // Ordered list of asks (best price first)
}

// ExportState captures every resting order in priority order together with the counters.
func (e *MatchingEngine) ExportState() *BookState {
	return &BookState{
		SchemaVersion: StateSchemaVersion,
		ID:            xid.New().String(),
		MarketID:      e.marketID,
		EngineVersion: EngineVersion,
		TickSize:      e.tickSize.String(),
		LastOrderID:   e.orderID.Load(),
		LastSeq:       e.arrivalSeq.Load(),
		LastTradeSeq:  e.tradeSeq.Load(),
		Clock:         e.clock.Load(),
		CreatedAt:     e.now().UnixNano(),
		Bids:          sideOrders(e.bids),
		Asks:          sideOrders(e.asks),
	}
}

func sideOrders(s *BookSide) []Order {
	orders := make([]Order, 0, s.OrderCount())
	s.Levels(func(lvl *PriceLevel) bool {
		lvl.walk(s.arena, func(_ int32, node *orderNode) bool {
			orders = append(orders, node.Order)
			return true
		})
		return true
	})
	return orders
}

// Restore replaces the book with a previously exported state.
// The state is validated in full before anything is replaced; on error the book is unchanged.
// A successful restore leaves the book running, also when it was halted.
func (e *MatchingEngine) Restore(state *BookState) error {
	if state == nil {
		return &ValidationError{Field: "state", Reason: "is nil"}
	}
	if state.SchemaVersion != StateSchemaVersion {
		return &ValidationError{Field: "schema_version", Reason: fmt.Sprintf("unsupported version %d", state.SchemaVersion)}
	}
	if state.MarketID != "" && e.marketID != "" && state.MarketID != e.marketID {
		return &ValidationError{Field: "market_id", Reason: fmt.Sprintf("state of %s cannot be restored into %s", state.MarketID, e.marketID)}
	}
	if state.TickSize != "" && state.TickSize != e.tickSize.String() {
		return &ValidationError{Field: "tick_size", Reason: fmt.Sprintf("state uses %s, engine uses %s", state.TickSize, e.tickSize.String())}
	}

	total := len(state.Bids) + len(state.Asks)
	capacity := e.arenaCapacity
	if int32(total) > capacity {
		capacity = int32(total)
	}

	arena := e.newArena(capacity)
	bids := newBookSide(Buy, arena)
	asks := newBookSide(Sell, arena)
	seen := make(map[uint64]struct{}, total)

	load := func(side *BookSide, orders []Order) error {
		for i := range orders {
			o := orders[i]
			if err := validateRestingOrder(state, side, o); err != nil {
				return err
			}
			if _, dup := seen[o.ID]; dup {
				return &ValidationError{Field: "order", Reason: fmt.Sprintf("duplicate order id %d", o.ID)}
			}
			if lvl := side.Level(o.Price); lvl != nil && side.orderAt(lvl.tail).Seq >= o.Seq {
				return &ValidationError{Field: "order", Reason: fmt.Sprintf("order %d breaks time priority at price %d", o.ID, o.Price)}
			}

			h, err := arena.Alloc()
			if err != nil {
				return fmt.Errorf("%w: %w", ErrBookFull, err)
			}
			node := arena.Get(h)
			node.Order = o
			node.prev = structure.NullIndex
			node.next = structure.NullIndex
			side.insert(h)
			seen[o.ID] = struct{}{}
		}
		return nil
	}

	if err := load(bids, state.Bids); err != nil {
		return err
	}
	if err := load(asks, state.Asks); err != nil {
		return err
	}

	if bid, ask := bids.Best(), asks.Best(); bid != nil && ask != nil && bid.price >= ask.price {
		return &ValidationError{Field: "state", Reason: fmt.Sprintf("book crossed: best bid %d >= best ask %d", bid.price, ask.price)}
	}

	e.arena = arena
	e.bids = bids
	e.asks = asks
	e.orderID.Store(state.LastOrderID)
	e.arrivalSeq.Store(state.LastSeq)
	e.tradeSeq.Store(state.LastTradeSeq)
	e.clock.Store(state.Clock)
	e.state = protocol.OrderBookStateRunning

	e.metrics.setState(e.state)
	e.metrics.observeBook(e)

	logger.Info("order book restored",
		"market_id", e.marketID,
		"state_id", state.ID,
		"bids", len(state.Bids),
		"asks", len(state.Asks),
		"last_trade_seq", state.LastTradeSeq,
	)

	return nil
}

func validateRestingOrder(state *BookState, side *BookSide, o Order) error {
	reason := ""
	switch {
	case o.Side != side.side:
		reason = fmt.Sprintf("order %d listed on the %s side", o.ID, side.side)
	case o.ID == 0 || o.ID > state.LastOrderID:
		reason = fmt.Sprintf("order id %d outside issued range", o.ID)
	case o.Seq == 0 || o.Seq > state.LastSeq:
		reason = fmt.Sprintf("order %d has arrival sequence %d outside issued range", o.ID, o.Seq)
	case o.Price <= 0:
		reason = fmt.Sprintf("order %d has non-positive price", o.ID)
	case o.Remaining <= 0 || o.Remaining > o.Quantity:
		reason = fmt.Sprintf("order %d has remaining %d of %d", o.ID, o.Remaining, o.Quantity)
	case o.Remaining == o.Quantity && o.Status != StatusNew:
		reason = fmt.Sprintf("order %d is untouched but %s", o.ID, o.Status)
	case o.Remaining < o.Quantity && o.Status != StatusPartiallyFilled:
		reason = fmt.Sprintf("order %d is partially filled but %s", o.ID, o.Status)
	}

	if reason != "" {
		return &ValidationError{Field: "order", Reason: reason}
	}
	return nil
}
