package match

import (
	"errors"
	"testing"
	"time"

	"github.com/0x5487/orderbook-core/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

func createTestEngine(t *testing.T, opts ...Option) (*MatchingEngine, *MemoryTradeSink) {
	t.Helper()
	sink := NewMemoryTradeSink(0)
	opts = append([]Option{WithMarketID("BTC-USDT")}, opts...)
	return NewMatchingEngine(sink, opts...), sink
}

func mustSubmit(t *testing.T, engine *MatchingEngine, side Side, price string, qty int64) *SubmitResult {
	t.Helper()
	ticks, err := engine.TickSize().ParsePrice(price)
	require.NoError(t, err)
	res, err := engine.Submit(side, ticks, qty)
	require.NoError(t, err)
	require.NoError(t, engine.CheckInvariants())
	return res
}

func levels(views []LevelView) [][2]int64 {
	out := make([][2]int64, 0, len(views))
	for _, v := range views {
		out = append(out, [2]int64{v.Price, v.Quantity})
	}
	return out
}

// EngineScenarioTestSuite walks the reference session end to end.
type EngineScenarioTestSuite struct {
	suite.Suite
	engine *MatchingEngine
	sink   *MemoryTradeSink
}

func TestEngineScenarioTestSuite(t *testing.T) {
	suite.Run(t, new(EngineScenarioTestSuite))
}

func (s *EngineScenarioTestSuite) SetupTest() {
	s.engine, s.sink = createTestEngine(s.T())
}

func (s *EngineScenarioTestSuite) submit(side Side, price string, qty int64) *SubmitResult {
	return mustSubmit(s.T(), s.engine, side, price, qty)
}

func (s *EngineScenarioTestSuite) TestReferenceSession() {
	// 1. two asks rest on an empty book
	ask1 := s.submit(Sell, "100.50", 100)
	s.Equal(StatusNew, ask1.Status)
	s.Empty(ask1.Trades)
	ask2 := s.submit(Sell, "101.00", 50)
	s.Empty(ask2.Trades)

	// 2. non-crossing bid rests
	bid1 := s.submit(Buy, "99.00", 100)
	s.Empty(bid1.Trades)
	snap := s.engine.Snapshot()
	s.Equal([][2]int64{{10050, 100}, {10100, 50}}, levels(snap.Asks))
	s.Equal([][2]int64{{9900, 100}}, levels(snap.Bids))

	// 3. crossing bid takes the best ask and rests the remainder at its limit
	bid2 := s.submit(Buy, "100.50", 120)
	s.Require().Len(bid2.Trades, 1)
	trade := bid2.Trades[0]
	s.Equal(int64(10050), trade.Price)
	s.Equal(int64(100), trade.Quantity)
	s.Equal(bid2.OrderID, trade.TakerOrderID)
	s.Equal(ask1.OrderID, trade.MakerOrderID)
	s.Equal(Buy, trade.TakerSide)
	s.Equal(StatusPartiallyFilled, bid2.Status)
	s.Equal(int64(20), bid2.Remaining)

	// 4. final book
	snap = s.engine.Snapshot()
	s.Equal([][2]int64{{10100, 50}}, levels(snap.Asks))
	s.Equal([][2]int64{{10050, 20}, {9900, 100}}, levels(snap.Bids))

	// 5. cancel of an id never issued
	err := s.engine.Cancel(9999)
	var notFound *NotFoundError
	s.Require().ErrorAs(err, &notFound)
	s.Equal("unknown order id", notFound.Reason)
	s.Equal(snap, s.engine.Snapshot())

	// 6. cancel the 99.00 bid, then again
	s.Require().NoError(s.engine.Cancel(bid1.OrderID))
	snap = s.engine.Snapshot()
	s.Equal([][2]int64{{10050, 20}}, levels(snap.Bids))

	err = s.engine.Cancel(bid1.OrderID)
	s.Require().ErrorAs(err, &notFound)
	s.ErrorIs(err, ErrNotFound)
	s.Equal(snap, s.engine.Snapshot())

	// the sink saw the single trade
	s.Equal(1, s.sink.Count())
	s.Equal(trade, s.sink.Get(0))
}

func (s *EngineScenarioTestSuite) TestFilledMakerCannotBeCancelled() {
	ask := s.submit(Sell, "10.00", 5)
	s.submit(Buy, "10.00", 5)

	err := s.engine.Cancel(ask.OrderID)
	var notFound *NotFoundError
	s.Require().ErrorAs(err, &notFound)
	s.Equal("not resting (filled or cancelled)", notFound.Reason)

	_, ok := s.engine.Order(ask.OrderID)
	s.False(ok)
}

func TestEngine_Validation(t *testing.T) {
	engine, sink := createTestEngine(t)
	mustSubmit(t, engine, Sell, "100.00", 10)
	mustSubmit(t, engine, Buy, "99.00", 10)
	before := engine.DetailedSnapshot()

	tests := []struct {
		name     string
		side     Side
		price    int64
		quantity int64
		field    string
	}{
		{name: "zero price", side: Buy, price: 0, quantity: 1, field: "price"},
		{name: "negative price", side: Sell, price: -100, quantity: 1, field: "price"},
		{name: "zero quantity", side: Buy, price: 10000, quantity: 0, field: "quantity"},
		{name: "negative quantity", side: Sell, price: 9900, quantity: -5, field: "quantity"},
		{name: "unknown side", side: Side(9), price: 10000, quantity: 1, field: "side"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := engine.Submit(tt.side, tt.price, tt.quantity)
			assert.Nil(t, res)

			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
			assert.ErrorIs(t, err, ErrInvalidParam)

			// rejection is all-or-nothing
			assert.Equal(t, before, engine.DetailedSnapshot())
		})
	}

	assert.Equal(t, 0, sink.Count())

	// rejected requests consume no id
	res := mustSubmit(t, engine, Buy, "98.00", 1)
	assert.Equal(t, uint64(3), res.OrderID)
}

func TestEngine_OrderLookup(t *testing.T) {
	engine, _ := createTestEngine(t, WithClock(func() time.Time { return time.Unix(0, 77) }))

	res := mustSubmit(t, engine, Buy, "50.00", 10)
	order, ok := engine.Order(res.OrderID)
	require.True(t, ok)
	assert.Equal(t, Order{
		ID:        res.OrderID,
		Side:      Buy,
		Price:     5000,
		Quantity:  10,
		Remaining: 10,
		Seq:       1,
		Status:    StatusNew,
		CreatedAt: 77,
	}, order)

	mustSubmit(t, engine, Sell, "50.00", 4)
	order, ok = engine.Order(res.OrderID)
	require.True(t, ok)
	assert.Equal(t, int64(6), order.Remaining)
	assert.Equal(t, int64(4), order.Filled())
	assert.Equal(t, StatusPartiallyFilled, order.Status)

	_, ok = engine.Order(12345)
	assert.False(t, ok)
}

func TestEngine_QueryHelpers(t *testing.T) {
	engine, _ := createTestEngine(t)

	_, ok := engine.BestBid()
	assert.False(t, ok)
	_, ok = engine.BestAsk()
	assert.False(t, ok)

	mustSubmit(t, engine, Buy, "9.00", 1)
	mustSubmit(t, engine, Buy, "9.50", 2)
	mustSubmit(t, engine, Sell, "11.00", 3)
	mustSubmit(t, engine, Sell, "10.50", 4)
	mustSubmit(t, engine, Sell, "10.50", 5)

	bid, ok := engine.BestBid()
	require.True(t, ok)
	assert.Equal(t, int64(950), bid)
	ask, ok := engine.BestAsk()
	require.True(t, ok)
	assert.Equal(t, int64(1050), ask)

	stats := engine.Stats()
	assert.Equal(t, &protocol.GetStatsResponse{
		State:         protocol.OrderBookStateRunning,
		AskDepthCount: 2,
		AskOrderCount: 3,
		BidDepthCount: 2,
		BidOrderCount: 2,
		LastTradeSeq:  0,
	}, stats)

	assert.Equal(t, int64(9), engine.Asks().Level(1050).TotalSize())
	assert.Equal(t, int64(2), engine.Asks().Level(1050).Count())
	assert.Nil(t, engine.Bids().Level(1050))
}

func TestEngine_SuspendResume(t *testing.T) {
	engine, _ := createTestEngine(t)
	res := mustSubmit(t, engine, Buy, "10.00", 1)

	require.NoError(t, engine.Suspend("maintenance"))
	assert.Equal(t, protocol.OrderBookStateSuspended, engine.State())

	_, err := engine.Submit(Buy, 1000, 1)
	assert.ErrorIs(t, err, ErrSuspended)

	// cancels are still accepted
	require.NoError(t, engine.Cancel(res.OrderID))

	require.NoError(t, engine.Resume())
	assert.Equal(t, protocol.OrderBookStateRunning, engine.State())
	mustSubmit(t, engine, Buy, "10.00", 1)
}

func TestEngine_HaltOnInvariantViolation(t *testing.T) {
	engine, sink := createTestEngine(t)
	mustSubmit(t, engine, Sell, "10.00", 5)
	maker := mustSubmit(t, engine, Sell, "10.00", 5)

	// corrupt the aggregate of the level behind the engine's back
	engine.Asks().Level(1000).totalSize += 3

	_, err := engine.Submit(Buy, 1000, 2)
	var iv *InvariantViolation
	require.ErrorAs(t, err, &iv)
	assert.ErrorIs(t, err, ErrInvariant)
	assert.Equal(t, "submit", iv.Op)
	assert.Equal(t, protocol.OrderBookStateHalted, engine.State())

	// trades of the failed request were not delivered
	assert.Equal(t, 0, sink.Count())

	_, err = engine.Submit(Buy, 900, 1)
	assert.ErrorIs(t, err, ErrHalted)
	assert.ErrorIs(t, engine.Cancel(maker.OrderID), ErrHalted)
	assert.ErrorIs(t, engine.Suspend(""), ErrHalted)
	assert.ErrorIs(t, engine.Resume(), ErrHalted)
}

func TestEngine_IllegalTransition(t *testing.T) {
	assert.True(t, canTransition(StatusNew, StatusPartiallyFilled))
	assert.True(t, canTransition(StatusNew, StatusFilled))
	assert.True(t, canTransition(StatusNew, StatusCancelled))
	assert.True(t, canTransition(StatusPartiallyFilled, StatusPartiallyFilled))
	assert.True(t, canTransition(StatusPartiallyFilled, StatusFilled))
	assert.True(t, canTransition(StatusPartiallyFilled, StatusCancelled))

	assert.False(t, canTransition(StatusNew, StatusNew))
	assert.False(t, canTransition(StatusPartiallyFilled, StatusNew))
	for _, terminal := range []OrderStatus{StatusFilled, StatusCancelled} {
		for _, to := range []OrderStatus{StatusNew, StatusPartiallyFilled, StatusFilled, StatusCancelled} {
			assert.False(t, canTransition(terminal, to), "%s -> %s", terminal, to)
		}
	}

	order := &Order{ID: 1, Status: StatusFilled}
	err := order.transition("cancel", StatusCancelled)
	assert.ErrorIs(t, err, ErrInvariant)
	assert.Equal(t, StatusFilled, order.Status)
}

func TestEngine_TradeSink(t *testing.T) {
	t.Run("delivered in sequence order", func(t *testing.T) {
		var seqs []uint64
		engine := NewMatchingEngine(TradeSinkFunc(func(trade Trade) error {
			seqs = append(seqs, trade.Sequence)
			return nil
		}))

		for i := int64(0); i < 5; i++ {
			_, err := engine.Submit(Sell, 100+i, 2)
			require.NoError(t, err)
		}
		res, err := engine.Submit(Buy, 104, 9)
		require.NoError(t, err)
		require.Len(t, res.Trades, 5)

		assert.Equal(t, []uint64{1, 2, 3, 4, 5}, seqs)
		assert.Equal(t, uint64(5), engine.LastTradeSeq())
		for i, trade := range res.Trades {
			assert.Equal(t, 100+int64(i), trade.Price)
		}
	})

	t.Run("failure does not undo the match", func(t *testing.T) {
		sinkErr := errors.New("downstream unavailable")
		var failed []uint64

		engine := NewMatchingEngine(
			TradeSinkFunc(func(trade Trade) error { return sinkErr }),
			WithSinkErrorHandler(func(trade Trade, err error) {
				assert.ErrorIs(t, err, sinkErr)
				failed = append(failed, trade.Sequence)
			}),
		)

		maker, err := engine.Submit(Sell, 100, 3)
		require.NoError(t, err)
		res, err := engine.Submit(Buy, 100, 3)
		require.NoError(t, err)
		require.Len(t, res.Trades, 1)
		assert.Equal(t, StatusFilled, res.Status)

		assert.Equal(t, []uint64{1}, failed)
		_, ok := engine.Order(maker.OrderID)
		assert.False(t, ok)
		assert.Equal(t, protocol.OrderBookStateRunning, engine.State())
	})

	t.Run("logical timestamp is shared by a request", func(t *testing.T) {
		engine, sink := createTestEngine(t)
		mustSubmit(t, engine, Sell, "1.00", 1)
		mustSubmit(t, engine, Sell, "1.01", 1)
		res := mustSubmit(t, engine, Buy, "1.01", 2)

		require.Len(t, res.Trades, 2)
		assert.Equal(t, res.Trades[0].Timestamp, res.Trades[1].Timestamp)
		assert.Equal(t, uint64(3), res.Trades[0].Timestamp)
		assert.Equal(t, 2, sink.Count())
	})
}

func TestEngine_MaxOrders(t *testing.T) {
	engine, sink := createTestEngine(t, WithMaxOrders(2), WithArenaCapacity(1))

	mustSubmit(t, engine, Buy, "1.00", 1)
	mustSubmit(t, engine, Buy, "1.01", 1)
	before := engine.DetailedSnapshot()

	_, err := engine.Submit(Buy, 102, 1)
	assert.ErrorIs(t, err, ErrBookFull)
	assert.Equal(t, before, engine.DetailedSnapshot())

	// the crossing bids cannot absorb the whole sell, so nothing trades
	_, err = engine.Submit(Sell, 100, 3)
	assert.ErrorIs(t, err, ErrBookFull)
	assert.Equal(t, before, engine.DetailedSnapshot())
	assert.Equal(t, 0, sink.Count())

	// an order that fills completely never needs a slot
	res := mustSubmit(t, engine, Sell, "1.01", 1)
	assert.Equal(t, StatusFilled, res.Status)
	assert.Equal(t, uint64(3), res.OrderID)
	require.Len(t, res.Trades, 1)

	// the freed slot takes a resting order again
	res = mustSubmit(t, engine, Sell, "1.05", 2)
	assert.Equal(t, StatusNew, res.Status)
	assert.Equal(t, int64(1), engine.Stats().AskOrderCount)

	// full again: a sell the remaining bid absorbs is still accepted
	_, err = engine.Submit(Sell, 100, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(0), engine.Stats().BidOrderCount)
	require.NoError(t, engine.CheckInvariants())
}

func TestEngine_FullBookDrainsWithoutCancels(t *testing.T) {
	engine, _ := createTestEngine(t, WithMaxOrders(1))
	mustSubmit(t, engine, Sell, "1.00", 5)

	res := mustSubmit(t, engine, Buy, "1.00", 5)
	assert.Equal(t, StatusFilled, res.Status)
	assert.Empty(t, engine.Snapshot().Asks)

	res = mustSubmit(t, engine, Buy, "0.99", 1)
	assert.True(t, res.Resting())
}
