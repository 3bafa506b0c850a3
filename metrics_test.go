package match

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg, "test")

	failing := TradeSinkFunc(func(Trade) error { return errors.New("unavailable") })
	engine := NewMatchingEngine(failing, WithMetrics(metrics))

	_, err := engine.Submit(Sell, 100, 5)
	require.NoError(t, err)
	_, err = engine.Submit(Sell, 101, 5)
	require.NoError(t, err)
	_, err = engine.Submit(Buy, 101, 7)
	require.NoError(t, err)
	_, err = engine.Submit(Buy, 0, 1)
	require.Error(t, err)

	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.ordersSubmitted.WithLabelValues("sell")))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.ordersSubmitted.WithLabelValues("buy")))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.ordersRejected.WithLabelValues("buy", "invalid")))
	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.trades))
	assert.Equal(t, float64(7), testutil.ToFloat64(metrics.tradedQuantity))
	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.sinkErrors))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.levels.WithLabelValues("sell")))
	assert.Equal(t, float64(0), testutil.ToFloat64(metrics.levels.WithLabelValues("buy")))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.restingOrders.WithLabelValues("sell")))

	require.NoError(t, engine.Cancel(2))
	assert.Error(t, engine.Cancel(2))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.cancels.WithLabelValues("ok")))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.cancels.WithLabelValues("not_found")))
	assert.Equal(t, float64(0), testutil.ToFloat64(metrics.restingOrders.WithLabelValues("sell")))

	require.NoError(t, engine.Suspend("test"))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.state))

	count, err := testutil.GatherAndCount(reg)
	require.NoError(t, err)
	assert.Positive(t, count)
}

func TestMetrics_Nil(t *testing.T) {
	var metrics *Metrics
	assert.NotPanics(t, func() {
		metrics.orderSubmitted(Buy)
		metrics.orderRejected(Sell, "invalid")
		metrics.cancelled(true)
		metrics.tradesExecuted([]Trade{{Quantity: 1}})
		metrics.sinkFailed()
		metrics.setState(0)
		metrics.observeBook(nil)
	})
}
