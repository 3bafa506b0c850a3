package match

import (
	"time"
)

// match executes the taker against the contra side under price-time priority.
//
// Both directions share this routine; the contra side supplies the ordering (better) and the
// crossing rule. The best level is read again after every level removal, so no iterator
// outlives a mutation of the side.
func (e *MatchingEngine) match(taker *Order, contra *BookSide, ts uint64, now time.Time) ([]Trade, error) {
	var trades []Trade

	for taker.Remaining > 0 {
		lvl := contra.Best()
		if lvl == nil || !contra.crosses(taker.Price, lvl.price) {
			break
		}
		if lvl.isEmpty() {
			return trades, violation("match", "empty level %d left in %s book", lvl.price, contra.side)
		}

		// FIFO within the level
		for taker.Remaining > 0 && !lvl.isEmpty() {
			h := lvl.head
			maker := contra.orderAt(h)

			qty := min(taker.Remaining, maker.Remaining)
			if qty <= 0 {
				return trades, violation("match", "maker %d rests with remaining %d", maker.ID, maker.Remaining)
			}

			taker.Remaining -= qty
			lvl.reduce(maker, qty)

			trades = append(trades, Trade{
				Sequence:     e.tradeSeq.Add(1),
				TakerOrderID: taker.ID,
				MakerOrderID: maker.ID,
				TakerSide:    taker.Side,
				Price:        maker.Price,
				Quantity:     qty,
				Timestamp:    ts,
				CreatedAt:    now,
			})

			if maker.Remaining > 0 {
				if err := maker.transition("match", StatusPartiallyFilled); err != nil {
					return trades, err
				}
				continue
			}

			if err := maker.transition("match", StatusFilled); err != nil {
				return trades, err
			}
			contra.remove(h)
		}
	}

	if len(trades) == 0 {
		return trades, nil
	}

	status := StatusPartiallyFilled
	if taker.Remaining == 0 {
		status = StatusFilled
	}
	if err := taker.transition("match", status); err != nil {
		return trades, err
	}

	return trades, nil
}
