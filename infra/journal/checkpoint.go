package journal

import (
	match "github.com/0x5487/orderbook-core"
)

// Checkpointer is a trade sink saving the book state every n trades.
// export runs on the engine goroutine after the request committed, so it observes a consistent book.
//
// Requests that produce no trade (orders that rest, cancels) never trigger a checkpoint, so a state
// saved by PublishTrade alone misses them. Call Checkpoint after such requests, or before shutdown,
// to make Recover see them.
type Checkpointer struct {
	journal *Journal
	every   uint64
	count   uint64
	export  func() *match.BookState
}

// NewCheckpointer saves export() to j after every n trades. n == 0 disables checkpoints.
func NewCheckpointer(j *Journal, n uint64, export func() *match.BookState) *Checkpointer {
	return &Checkpointer{
		journal: j,
		every:   n,
		export:  export,
	}
}

// PublishTrade counts the trade and checkpoints when due.
func (c *Checkpointer) PublishTrade(trade match.Trade) error {
	if c.every == 0 {
		return nil
	}

	c.count++
	if c.count%c.every != 0 {
		return nil
	}

	return c.save()
}

// Checkpoint saves the current state regardless of the trade count and restarts the interval.
// Like export, it must run on the goroutine that owns the engine.
func (c *Checkpointer) Checkpoint() error {
	c.count = 0
	return c.save()
}

func (c *Checkpointer) save() error {
	state := c.export()
	if err := c.journal.SaveState(state); err != nil {
		return err
	}

	match.Logger().Info("book state checkpointed", "state_id", state.ID, "last_trade_seq", state.LastTradeSeq)
	return nil
}
