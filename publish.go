package match

import (
	"errors"
	"sync"

	"github.com/gammazero/deque"
)

// TradeSink receives trades synchronously, in ascending sequence order, after the request that
// produced them has committed.
//
// A returned error is logged and counted by the engine; it never rolls back the match.
// Durability of a trade beyond the call is the sink's responsibility.
type TradeSink interface {
	PublishTrade(trade Trade) error
}

// TradeSinkFunc adapts a function to a TradeSink.
type TradeSinkFunc func(trade Trade) error

// PublishTrade calls f(trade).
func (f TradeSinkFunc) PublishTrade(trade Trade) error {
	return f(trade)
}

// MultiTradeSink fans every trade out to all sinks, joining their errors.
type MultiTradeSink []TradeSink

// NewMultiTradeSink creates a fan-out sink.
func NewMultiTradeSink(sinks ...TradeSink) MultiTradeSink {
	return MultiTradeSink(sinks)
}

// PublishTrade delivers the trade to every sink even if one of them fails.
func (m MultiTradeSink) PublishTrade(trade Trade) error {
	var errs []error
	for _, sink := range m {
		if err := sink.PublishTrade(trade); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// MemoryTradeSink keeps the most recent trades in memory, useful for testing.
// It is safe to read from other goroutines.
type MemoryTradeSink struct {
	mu     sync.RWMutex
	limit  int
	total  uint64
	trades deque.Deque[Trade]
}

// NewMemoryTradeSink creates a sink keeping at most limit trades (DefaultRecentTrades if limit <= 0).
func NewMemoryTradeSink(limit int) *MemoryTradeSink {
	if limit <= 0 {
		limit = DefaultRecentTrades
	}
	return &MemoryTradeSink{
		limit: limit,
	}
}

// PublishTrade appends the trade, evicting the oldest one when the window is full.
func (m *MemoryTradeSink) PublishTrade(trade Trade) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.trades.Len() == m.limit {
		m.trades.PopFront()
	}
	m.trades.PushBack(trade)
	m.total++
	return nil
}

// Count returns the number of trades currently kept.
func (m *MemoryTradeSink) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.trades.Len()
}

// Total returns the number of trades ever received.
func (m *MemoryTradeSink) Total() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.total
}

// Get returns the kept trade at the specified index, oldest first.
func (m *MemoryTradeSink) Get(index int) Trade {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.trades.At(index)
}

// Last returns the most recent trade.
func (m *MemoryTradeSink) Last() (Trade, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.trades.Len() == 0 {
		return Trade{}, false
	}
	return m.trades.Back(), true
}

// Trades returns a copy of the kept trades, oldest first.
func (m *MemoryTradeSink) Trades() []Trade {
	m.mu.RLock()
	defer m.mu.RUnlock()

	trades := make([]Trade, m.trades.Len())
	for i := range trades {
		trades[i] = m.trades.At(i)
	}
	return trades
}

// DiscardTradeSink discards all trades, useful for benchmarking.
type DiscardTradeSink struct {
}

// NewDiscardTradeSink creates a new DiscardTradeSink.
func NewDiscardTradeSink() *DiscardTradeSink {
	return &DiscardTradeSink{}
}

// PublishTrade does nothing.
func (p *DiscardTradeSink) PublishTrade(trade Trade) error {
	return nil
}
