package match

import (
	"sync"

	"github.com/igrmk/treemap/v2"
	"github.com/shopspring/decimal"
)

// VolumeLevel is the traded quantity at one price.
type VolumeLevel struct {
	Price  int64 `json:"price"`
	Volume int64 `json:"volume"`
}

// VolumeProfile is a trade sink maintaining traded volume per price.
// It is a read-only projection for market-data consumers and safe for concurrent readers.
type VolumeProfile struct {
	mu          sync.RWMutex
	tick        TickSize
	volume      *treemap.TreeMap[int64, int64]
	totalVolume int64
	notional    decimal.Decimal
	tradeCount  uint64
	lastSeq     uint64 // Last applied trade sequence for deduplication on replay
	lastPrice   int64
	high        int64
	low         int64
}

// NewVolumeProfile creates an empty profile. tick is used for VWAP.
func NewVolumeProfile(tick TickSize) *VolumeProfile {
	return &VolumeProfile{
		tick:   tick,
		volume: treemap.New[int64, int64](),
	}
}

// PublishTrade applies a trade. Trades at or below the last applied sequence are ignored.
func (v *VolumeProfile) PublishTrade(trade Trade) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if trade.Sequence != 0 && trade.Sequence <= v.lastSeq {
		return nil
	}
	v.lastSeq = trade.Sequence

	vol, _ := v.volume.Get(trade.Price)
	v.volume.Set(trade.Price, vol+trade.Quantity)

	v.totalVolume += trade.Quantity
	v.notional = v.notional.Add(v.tick.Decimal(trade.Price).Mul(decimal.NewFromInt(trade.Quantity)))
	v.tradeCount++

	if v.tradeCount == 1 || trade.Price > v.high {
		v.high = trade.Price
	}
	if v.tradeCount == 1 || trade.Price < v.low {
		v.low = trade.Price
	}
	v.lastPrice = trade.Price

	return nil
}

// VolumeAt returns the volume traded at price.
func (v *VolumeProfile) VolumeAt(price int64) int64 {
	v.mu.RLock()
	defer v.mu.RUnlock()

	vol, _ := v.volume.Get(price)
	return vol
}

// Levels returns the traded volume per price in ascending price order.
func (v *VolumeProfile) Levels() []VolumeLevel {
	v.mu.RLock()
	defer v.mu.RUnlock()

	levels := make([]VolumeLevel, 0, v.volume.Len())
	for it := v.volume.Iterator(); it.Valid(); it.Next() {
		levels = append(levels, VolumeLevel{Price: it.Key(), Volume: it.Value()})
	}
	return levels
}

// PointOfControl returns the price with the highest traded volume. Ties go to the lower price.
func (v *VolumeProfile) PointOfControl() (int64, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	var (
		best  int64
		found bool
		top   int64
	)
	for it := v.volume.Iterator(); it.Valid(); it.Next() {
		if !found || it.Value() > top {
			best, top, found = it.Key(), it.Value(), true
		}
	}
	return best, found
}

// TotalVolume returns the quantity traded over all prices.
func (v *VolumeProfile) TotalVolume() int64 {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.totalVolume
}

// TradeCount returns the number of trades applied.
func (v *VolumeProfile) TradeCount() uint64 {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.tradeCount
}

// VWAP returns the volume weighted average price, or zero without trades.
func (v *VolumeProfile) VWAP() decimal.Decimal {
	v.mu.RLock()
	defer v.mu.RUnlock()

	if v.totalVolume == 0 {
		return decimal.Zero
	}
	return v.notional.Div(decimal.NewFromInt(v.totalVolume))
}

// LastPrice returns the price of the most recent trade.
func (v *VolumeProfile) LastPrice() (int64, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.lastPrice, v.tradeCount > 0
}

// Range returns the lowest and highest traded prices.
func (v *VolumeProfile) Range() (low int64, high int64, ok bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.low, v.high, v.tradeCount > 0
}

// Reset clears the profile.
func (v *VolumeProfile) Reset() {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.volume = treemap.New[int64, int64]()
	v.totalVolume = 0
	v.notional = decimal.Zero
	v.tradeCount = 0
	v.lastSeq = 0
	v.lastPrice = 0
	v.high = 0
	v.low = 0
}
