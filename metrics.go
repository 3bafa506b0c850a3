package match

import (
	"github.com/0x5487/orderbook-core/protocol"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the prometheus instruments updated by the engine.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	ordersSubmitted *prometheus.CounterVec
	ordersRejected  *prometheus.CounterVec
	cancels         *prometheus.CounterVec
	trades          prometheus.Counter
	tradedQuantity  prometheus.Counter
	sinkErrors      prometheus.Counter
	levels          *prometheus.GaugeVec
	restingOrders   *prometheus.GaugeVec
	state           prometheus.Gauge
}

// NewMetrics creates the instruments and registers them with reg.
func NewMetrics(reg prometheus.Registerer, namespace string) *Metrics {
	m := &Metrics{
		ordersSubmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "orderbook",
			Name:      "orders_submitted_total",
			Help:      "Orders admitted to the book",
		}, []string{"side"}),
		ordersRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "orderbook",
			Name:      "orders_rejected_total",
			Help:      "Orders rejected before admission",
		}, []string{"side", "reason"}),
		cancels: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "orderbook",
			Name:      "cancels_total",
			Help:      "Cancel requests by result",
		}, []string{"result"}),
		trades: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "orderbook",
			Name:      "trades_total",
			Help:      "Trades produced",
		}),
		tradedQuantity: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "orderbook",
			Name:      "traded_quantity_total",
			Help:      "Quantity traded",
		}),
		sinkErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "orderbook",
			Name:      "trade_sink_errors_total",
			Help:      "Trades the sink failed to accept",
		}),
		levels: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "orderbook",
			Name:      "price_levels",
			Help:      "Price levels per side",
		}, []string{"side"}),
		restingOrders: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "orderbook",
			Name:      "resting_orders",
			Help:      "Resting orders per side",
		}, []string{"side"}),
		state: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "orderbook",
			Name:      "state",
			Help:      "Lifecycle state (0 running, 1 suspended, 2 halted)",
		}),
	}

	reg.MustRegister(
		m.ordersSubmitted,
		m.ordersRejected,
		m.cancels,
		m.trades,
		m.tradedQuantity,
		m.sinkErrors,
		m.levels,
		m.restingOrders,
		m.state,
	)

	return m
}

func (m *Metrics) orderSubmitted(side Side) {
	if m == nil {
		return
	}
	m.ordersSubmitted.WithLabelValues(side.String()).Inc()
}

func (m *Metrics) orderRejected(side Side, reason string) {
	if m == nil {
		return
	}
	m.ordersRejected.WithLabelValues(side.String(), reason).Inc()
}

func (m *Metrics) cancelled(ok bool) {
	if m == nil {
		return
	}
	result := "not_found"
	if ok {
		result = "ok"
	}
	m.cancels.WithLabelValues(result).Inc()
}

func (m *Metrics) tradesExecuted(trades []Trade) {
	if m == nil || len(trades) == 0 {
		return
	}
	var qty int64
	for i := range trades {
		qty += trades[i].Quantity
	}
	m.trades.Add(float64(len(trades)))
	m.tradedQuantity.Add(float64(qty))
}

func (m *Metrics) sinkFailed() {
	if m == nil {
		return
	}
	m.sinkErrors.Inc()
}

func (m *Metrics) setState(state protocol.OrderBookState) {
	if m == nil {
		return
	}
	m.state.Set(float64(state))
}

func (m *Metrics) observeBook(e *MatchingEngine) {
	if m == nil {
		return
	}
	m.levels.WithLabelValues(Buy.String()).Set(float64(e.bids.DepthCount()))
	m.levels.WithLabelValues(Sell.String()).Set(float64(e.asks.DepthCount()))
	m.restingOrders.WithLabelValues(Buy.String()).Set(float64(e.bids.OrderCount()))
	m.restingOrders.WithLabelValues(Sell.String()).Set(float64(e.asks.OrderCount()))
}
