package match

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/0x5487/orderbook-core/protocol"
	"github.com/0x5487/orderbook-core/structure"
)

// Option configures a MatchingEngine.
type Option func(*MatchingEngine)

// WithMarketID sets the market identifier carried in logs, states and published trades.
func WithMarketID(marketID string) Option {
	return func(e *MatchingEngine) {
		e.marketID = marketID
	}
}

// WithTickSize sets the tick size used to convert decimal prices.
func WithTickSize(tick TickSize) Option {
	return func(e *MatchingEngine) {
		e.tickSize = tick
	}
}

// WithArenaCapacity sets the number of pre-allocated order slots.
func WithArenaCapacity(capacity int32) Option {
	return func(e *MatchingEngine) {
		if capacity > 0 {
			e.arenaCapacity = capacity
		}
	}
}

// WithMaxOrders bounds the number of resting orders.
// A submit that would have to rest while the book is full fails with ErrBookFull; one that fills completely is accepted.
func WithMaxOrders(maxOrders int32) Option {
	return func(e *MatchingEngine) {
		e.maxOrders = maxOrders
	}
}

// WithClock sets the wall clock used for CreatedAt fields.
func WithClock(now func() time.Time) Option {
	return func(e *MatchingEngine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithMetrics enables prometheus metrics.
func WithMetrics(m *Metrics) Option {
	return func(e *MatchingEngine) {
		e.metrics = m
	}
}

// WithSinkErrorHandler is called for every trade the sink failed to accept.
func WithSinkErrorHandler(fn func(Trade, error)) Option {
	return func(e *MatchingEngine) {
		e.onSinkError = fn
	}
}

// MatchingEngine is the single-instrument limit order book.
//
// The engine is not safe for concurrent use: each request runs to completion before the next one.
// Concurrent producers go through a Gateway.
type MatchingEngine struct {
	marketID      string
	state         protocol.OrderBookState
	tickSize      TickSize
	arenaCapacity int32
	maxOrders     int32
	arena         *orderArena
	bids          *BookSide
	asks          *BookSide
	orderID       atomic.Uint64 // Last issued order id
	arrivalSeq    atomic.Uint64 // Last issued arrival sequence
	tradeSeq      atomic.Uint64 // Last issued trade sequence
	clock         atomic.Uint64 // Logical clock, ticks once per mutating request
	sink          TradeSink
	onSinkError   func(Trade, error)
	metrics       *Metrics
	now           func() time.Time
}

// NewMatchingEngine creates an empty book delivering trades to sink.
func NewMatchingEngine(sink TradeSink, opts ...Option) *MatchingEngine {
	if sink == nil {
		sink = NewDiscardTradeSink()
	}

	e := &MatchingEngine{
		state:         protocol.OrderBookStateRunning,
		tickSize:      MustTickSize(DefaultTickSize),
		arenaCapacity: DefaultArenaCapacity,
		sink:          sink,
		now:           time.Now,
	}

	for _, opt := range opts {
		opt(e)
	}

	e.arena = e.newArena(e.arenaCapacity)
	e.bids = newBookSide(Buy, e.arena)
	e.asks = newBookSide(Sell, e.arena)

	return e
}

func (e *MatchingEngine) newArena(capacity int32) *orderArena {
	if e.maxOrders > 0 && capacity > e.maxOrders {
		capacity = e.maxOrders
	}

	return structure.NewArenaWithOptions[orderNode](capacity, structure.ArenaOptions{
		MaxCapacity: e.maxOrders,
		OnGrow: func(oldCap, newCap int32) {
			logger.Debug("order arena grew", "market_id", e.marketID, "old_cap", oldCap, "new_cap", newCap)
		},
	})
}

// sides returns the own and contra side for an incoming order.
func (e *MatchingEngine) sides(side Side) (own *BookSide, contra *BookSide) {
	if side == Buy {
		return e.bids, e.asks
	}
	return e.asks, e.bids
}

func validateOrder(side Side, price, quantity int64) error {
	if !side.IsValid() {
		return &ValidationError{Field: "side", Reason: "must be buy or sell"}
	}
	if price <= 0 {
		return &ValidationError{Field: "price", Reason: "must be positive"}
	}
	if quantity <= 0 {
		return &ValidationError{Field: "quantity", Reason: "must be positive"}
	}
	return nil
}

// Submit admits a limit order, matches it against the contra side and rests any remainder.
// Invalid input is rejected with a *ValidationError before the book is touched.
func (e *MatchingEngine) Submit(side Side, price, quantity int64) (*SubmitResult, error) {
	switch e.state {
	case protocol.OrderBookStateHalted:
		return nil, ErrHalted
	case protocol.OrderBookStateSuspended:
		return nil, ErrSuspended
	}

	if err := validateOrder(side, price, quantity); err != nil {
		e.metrics.orderRejected(side, "invalid")
		return nil, err
	}

	own, contra := e.sides(side)

	// a full book still accepts orders that leave nothing to rest
	if e.arena.Full() && contra.crossingQuantity(price, quantity) < quantity {
		e.metrics.orderRejected(side, "book_full")
		return nil, fmt.Errorf("%w: %w", ErrBookFull, structure.ErrMaxCapacityReached)
	}

	ts := e.clock.Add(1)
	now := e.now()

	taker := Order{
		ID:        e.orderID.Add(1),
		Side:      side,
		Price:     price,
		Quantity:  quantity,
		Remaining: quantity,
		Seq:       e.arrivalSeq.Add(1),
		Status:    StatusNew,
		CreatedAt: now.UnixNano(),
	}
	e.metrics.orderSubmitted(side)

	trades, err := e.match(&taker, contra, ts, now)
	if err != nil {
		return nil, e.halt(err)
	}

	if taker.Remaining > 0 {
		h, err := e.arena.Alloc()
		if err != nil {
			return nil, e.halt(violation("submit", "no slot for order %d after capacity check: %v", taker.ID, err))
		}
		node := e.arena.Get(h)
		node.Order = taker
		node.prev = structure.NullIndex
		node.next = structure.NullIndex
		own.insert(h)
		logger.Debug("order rested", "market_id", e.marketID, "order_id", taker.ID, "side", side.String(), "price", price, "remaining", taker.Remaining)
	}

	result := &SubmitResult{
		OrderID:   taker.ID,
		Status:    taker.Status,
		Remaining: taker.Remaining,
		Trades:    trades,
	}

	if err := e.checkBook("submit", own.Level(price), contra.Best()); err != nil {
		return nil, e.halt(err)
	}

	e.metrics.tradesExecuted(trades)
	e.metrics.observeBook(e)
	e.publish(trades)

	return result, nil
}

// Cancel removes a resting order.
// Unknown, filled and already cancelled orders yield a *NotFoundError and leave the book unchanged.
func (e *MatchingEngine) Cancel(orderID uint64) error {
	if e.state == protocol.OrderBookStateHalted {
		return ErrHalted
	}

	side, h, ok := e.lookup(orderID)
	if !ok {
		e.metrics.cancelled(false)
		return &NotFoundError{OrderID: orderID, Reason: e.notFoundReason(orderID)}
	}

	node := side.orderAt(h)
	if err := node.transition("cancel", StatusCancelled); err != nil {
		return e.halt(err)
	}

	e.clock.Add(1)
	order := side.remove(h)

	if err := e.checkBook("cancel", side.Level(order.Price)); err != nil {
		return e.halt(err)
	}

	logger.Debug("order cancelled", "market_id", e.marketID, "order_id", order.ID, "side", order.Side.String(), "price", order.Price, "remaining", order.Remaining)
	e.metrics.cancelled(true)
	e.metrics.observeBook(e)

	return nil
}

func (e *MatchingEngine) lookup(orderID uint64) (*BookSide, int32, bool) {
	if h, ok := e.bids.handle(orderID); ok {
		return e.bids, h, true
	}
	if h, ok := e.asks.handle(orderID); ok {
		return e.asks, h, true
	}
	return nil, structure.NullIndex, false
}

func (e *MatchingEngine) notFoundReason(orderID uint64) string {
	if orderID == 0 || orderID > e.orderID.Load() {
		return "unknown order id"
	}
	return "not resting (filled or cancelled)"
}

// checkBook verifies the touched levels and that the book is not crossed.
func (e *MatchingEngine) checkBook(op string, touched ...*PriceLevel) error {
	for _, lvl := range touched {
		if lvl == nil {
			continue
		}
		if err := lvl.verify(e.arena, op); err != nil {
			return err
		}
	}

	bid, ask := e.bids.Best(), e.asks.Best()
	if bid != nil && ask != nil && bid.price >= ask.price {
		return violation(op, "book crossed: best bid %d >= best ask %d", bid.price, ask.price)
	}
	return nil
}

// CheckInvariants verifies the whole book. It walks every resting order.
func (e *MatchingEngine) CheckInvariants() error {
	if err := e.bids.verify("check"); err != nil {
		return err
	}
	if err := e.asks.verify("check"); err != nil {
		return err
	}
	if int64(e.arena.Len()) != e.bids.OrderCount()+e.asks.OrderCount() {
		return violation("check", "arena holds %d records for %d resting orders", e.arena.Len(), e.bids.OrderCount()+e.asks.OrderCount())
	}
	return e.checkBook("check")
}

// halt stops all further mutations after an invariant violation.
func (e *MatchingEngine) halt(err error) error {
	e.state = protocol.OrderBookStateHalted
	e.metrics.setState(e.state)
	logger.Error("order book halted", "market_id", e.marketID, "error", err)
	return err
}

// publish delivers trades in sequence order. Sink failures never undo the match.
func (e *MatchingEngine) publish(trades []Trade) {
	for i := range trades {
		if err := e.sink.PublishTrade(trades[i]); err != nil {
			logger.Warn("failed to publish trade", "market_id", e.marketID, "trade_seq", trades[i].Sequence, "error", err)
			e.metrics.sinkFailed()
			if e.onSinkError != nil {
				e.onSinkError(trades[i], err)
			}
		}
	}
}

// Suspend stops accepting new orders. Cancels are still processed.
func (e *MatchingEngine) Suspend(reason string) error {
	if e.state == protocol.OrderBookStateHalted {
		return ErrHalted
	}
	e.state = protocol.OrderBookStateSuspended
	e.metrics.setState(e.state)
	logger.Info("order book suspended", "market_id", e.marketID, "reason", reason)
	return nil
}

// Resume reopens a suspended book.
func (e *MatchingEngine) Resume() error {
	if e.state == protocol.OrderBookStateHalted {
		return ErrHalted
	}
	e.state = protocol.OrderBookStateRunning
	e.metrics.setState(e.state)
	logger.Info("order book resumed", "market_id", e.marketID)
	return nil
}

// State returns the lifecycle state of the book.
func (e *MatchingEngine) State() protocol.OrderBookState {
	return e.state
}

// MarketID returns the configured market identifier.
func (e *MatchingEngine) MarketID() string {
	return e.marketID
}

// TickSize returns the tick size used for decimal conversion.
func (e *MatchingEngine) TickSize() TickSize {
	return e.tickSize
}

// Order returns a copy of a resting order.
func (e *MatchingEngine) Order(orderID uint64) (Order, bool) {
	side, h, ok := e.lookup(orderID)
	if !ok {
		return Order{}, false
	}
	return side.orderAt(h).Order, true
}

// Bids returns the bid side. It must not be mutated by callers.
func (e *MatchingEngine) Bids() *BookSide {
	return e.bids
}

// Asks returns the ask side. It must not be mutated by callers.
func (e *MatchingEngine) Asks() *BookSide {
	return e.asks
}

// BestBid returns the highest bid price.
func (e *MatchingEngine) BestBid() (int64, bool) {
	lvl := e.bids.Best()
	if lvl == nil {
		return 0, false
	}
	return lvl.price, true
}

// BestAsk returns the lowest ask price.
func (e *MatchingEngine) BestAsk() (int64, bool) {
	lvl := e.asks.Best()
	if lvl == nil {
		return 0, false
	}
	return lvl.price, true
}

// LastTradeSeq returns the sequence of the last trade produced.
func (e *MatchingEngine) LastTradeSeq() uint64 {
	return e.tradeSeq.Load()
}

// Stats returns usage statistics for the order book.
func (e *MatchingEngine) Stats() *protocol.GetStatsResponse {
	return &protocol.GetStatsResponse{
		State:         e.state,
		AskDepthCount: e.asks.DepthCount(),
		AskOrderCount: e.asks.OrderCount(),
		BidDepthCount: e.bids.DepthCount(),
		BidOrderCount: e.bids.OrderCount(),
		LastTradeSeq:  e.tradeSeq.Load(),
	}
}
