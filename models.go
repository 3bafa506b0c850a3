package match

import (
	"time"

	"github.com/0x5487/orderbook-core/protocol"
)

type Side = protocol.Side

const (
	Buy  Side = protocol.SideBuy
	Sell Side = protocol.SideSell
)

type OrderStatus = protocol.OrderStatus

const (
	StatusNew             OrderStatus = protocol.OrderStatusNew
	StatusPartiallyFilled OrderStatus = protocol.OrderStatusPartiallyFilled
	StatusFilled          OrderStatus = protocol.OrderStatusFilled
	StatusCancelled       OrderStatus = protocol.OrderStatusCancelled
)

// Order represents the state of an order in the order book.
// This is the serializable state used for book state export.
type Order struct {
	ID        uint64      `json:"id"`
	Side      Side        `json:"side"`
	Price     int64       `json:"price"`     // Limit price in ticks
	Quantity  int64       `json:"quantity"`  // Original quantity
	Remaining int64       `json:"remaining"` // Unfilled quantity
	Seq       uint64      `json:"seq"`       // Arrival sequence, the time priority tie-breaker
	Status    OrderStatus `json:"status"`
	CreatedAt int64       `json:"created_at"` // Unix nano, admission time
}

// Filled returns the executed quantity.
func (o *Order) Filled() int64 {
	return o.Quantity - o.Remaining
}

// canTransition reports whether an order may move from one status to another.
// FILLED and CANCELLED are terminal.
func canTransition(from, to OrderStatus) bool {
	switch from {
	case StatusNew:
		return to == StatusPartiallyFilled || to == StatusFilled || to == StatusCancelled
	case StatusPartiallyFilled:
		return to == StatusPartiallyFilled || to == StatusFilled || to == StatusCancelled
	default:
		return false
	}
}

// transition moves the order to a new status or reports an invariant violation.
func (o *Order) transition(op string, to OrderStatus) error {
	if !canTransition(o.Status, to) {
		return violation(op, "order %d cannot move from %s to %s", o.ID, o.Status, to)
	}
	o.Status = to
	return nil
}

// Trade is produced for every match between an incoming (taker) and a resting (maker) order.
// Price is always the maker's price.
type Trade struct {
	Sequence     uint64    `json:"seq"`
	TakerOrderID uint64    `json:"taker_order_id"`
	MakerOrderID uint64    `json:"maker_order_id"`
	TakerSide    Side      `json:"taker_side"`
	Price        int64     `json:"price"`
	Quantity     int64     `json:"quantity"`
	Timestamp    uint64    `json:"timestamp"` // Logical request clock of the engine
	CreatedAt    time.Time `json:"created_at"`
}

// SubmitResult is returned by MatchingEngine.Submit.
type SubmitResult struct {
	OrderID   uint64
	Status    OrderStatus
	Remaining int64
	Trades    []Trade
}

// Resting reports whether the submitted order is now resting in the book.
func (r *SubmitResult) Resting() bool {
	return r.Remaining > 0
}

// TradedQuantity is the sum of the quantity of all trades.
func (r *SubmitResult) TradedQuantity() int64 {
	var total int64
	for i := range r.Trades {
		total += r.Trades[i].Quantity
	}
	return total
}

// Event converts the trade to its wire form.
func (t Trade) Event(marketID string, tick TickSize) *protocol.TradeEvent {
	return &protocol.TradeEvent{
		MarketID:     marketID,
		Sequence:     t.Sequence,
		TakerOrderID: t.TakerOrderID,
		MakerOrderID: t.MakerOrderID,
		TakerSide:    t.TakerSide,
		Price:        tick.Format(t.Price),
		Quantity:     t.Quantity,
		Timestamp:    t.Timestamp,
		CreatedAt:    t.CreatedAt.UnixNano(),
	}
}
