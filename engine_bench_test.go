package match

import (
	"context"
	"math/rand"
	"testing"

	"github.com/0x5487/orderbook-core/protocol"
)

func BenchmarkSubmit(b *testing.B) {
	engine := NewMatchingEngine(NewDiscardTradeSink(), WithArenaCapacity(1<<16))

	// Use fixed seed for repeatability
	rng := rand.New(rand.NewSource(42))
	midPrice := int64(10000)

	// 80/20 distribution around the mid price so that most orders rest and some cross
	prices := make([]int64, 4096)
	sides := make([]Side, len(prices))
	for i := range prices {
		sides[i] = Buy
		offset := int64(rng.Intn(500))
		if rng.Intn(2) == 0 {
			sides[i] = Sell
		}
		if rng.Intn(5) != 0 {
			// passive
			if sides[i] == Buy {
				prices[i] = midPrice - 1 - offset
			} else {
				prices[i] = midPrice + 1 + offset
			}
		} else {
			// aggressive
			if sides[i] == Buy {
				prices[i] = midPrice + offset
			} else {
				prices[i] = midPrice - offset
			}
		}
	}

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		idx := i % len(prices)
		if _, err := engine.Submit(sides[idx], prices[idx], 1); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkSubmitCancel(b *testing.B) {
	engine := NewMatchingEngine(NewDiscardTradeSink())

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		res, err := engine.Submit(Buy, 9000+int64(i%100), 1)
		if err != nil {
			b.Fatal(err)
		}
		if err := engine.Cancel(res.OrderID); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkSweep(b *testing.B) {
	engine := NewMatchingEngine(NewDiscardTradeSink())

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		b.StopTimer()
		for p := int64(0); p < 10; p++ {
			_, _ = engine.Submit(Sell, 10000+p, 10)
		}
		b.StartTimer()

		if _, err := engine.Submit(Buy, 10009, 100); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkGatewaySubmit(b *testing.B) {
	engine := NewMatchingEngine(NewDiscardTradeSink())
	gw := NewGateway(engine, GatewayOptions{BufferSize: 1 << 14})
	gw.Start()
	defer func() { _ = gw.Shutdown(context.Background()) }()

	ctx := context.Background()
	buy := &protocol.SubmitOrderCommand{Side: protocol.SideBuy, Price: "99.00", Quantity: 1}
	sell := &protocol.SubmitOrderCommand{Side: protocol.SideSell, Price: "99.00", Quantity: 1}

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			cmd := buy
			if i%2 == 1 {
				cmd = sell
			}
			i++
			if _, err := gw.Submit(ctx, cmd); err != nil {
				b.Error(err)
				return
			}
		}
	})
}
