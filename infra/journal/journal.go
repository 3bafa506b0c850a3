package journal

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	match "github.com/0x5487/orderbook-core"
	"github.com/cockroachdb/pebble"
)

var ErrNoState = errors.New("journal: no saved state")

const (
	tradePrefix = "trade/"
	stateKey    = "state/latest"
)

// Journal is a durable trade log and book state checkpoint store on pebble.
// It implements match.TradeSink; a trade is durable once PublishTrade returns nil.
type Journal struct {
	mu      sync.Mutex
	db      *pebble.DB
	lastSeq uint64
}

// Open opens or creates a journal in dir.
func Open(dir string) (*Journal, error) {
	db, err := pebble.Open(dir, &pebble.Options{
		DisableWAL: false,
	})
	if err != nil {
		return nil, err
	}

	j := &Journal{db: db}
	if err := j.loadLastSeq(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return j, nil
}

func (j *Journal) loadLastSeq() error {
	iter, err := j.db.NewIter(tradeBounds(0))
	if err != nil {
		return err
	}
	defer iter.Close()

	if iter.Last() {
		seq, err := parseTradeKey(iter.Key())
		if err != nil {
			return err
		}
		j.lastSeq = seq
	}
	return iter.Error()
}

// Close closes the underlying database.
func (j *Journal) Close() error {
	return j.db.Close()
}

// PublishTrade appends a trade. Trades at or below the last stored sequence are skipped,
// so replaying a stream into the journal is idempotent.
func (j *Journal) PublishTrade(trade match.Trade) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if trade.Sequence <= j.lastSeq {
		return nil
	}

	value, err := json.Marshal(trade)
	if err != nil {
		return err
	}
	if err := j.db.Set(tradeKey(trade.Sequence), value, pebble.Sync); err != nil {
		return err
	}

	j.lastSeq = trade.Sequence
	return nil
}

// LastTradeSeq returns the highest stored trade sequence.
func (j *Journal) LastTradeSeq() uint64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.lastSeq
}

// Trades calls fn for every stored trade with sequence >= fromSeq, in sequence order.
func (j *Journal) Trades(fromSeq uint64, fn func(trade match.Trade) error) error {
	iter, err := j.db.NewIter(tradeBounds(fromSeq))
	if err != nil {
		return err
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		var trade match.Trade
		if err := json.Unmarshal(iter.Value(), &trade); err != nil {
			return fmt.Errorf("journal: decode %s: %w", iter.Key(), err)
		}
		if err := fn(trade); err != nil {
			return err
		}
	}
	return iter.Error()
}

// SaveState stores state as the latest checkpoint.
func (j *Journal) SaveState(state *match.BookState) error {
	value, err := json.Marshal(state)
	if err != nil {
		return err
	}
	return j.db.Set([]byte(stateKey), value, pebble.Sync)
}

// LoadState returns the latest checkpoint or ErrNoState.
func (j *Journal) LoadState() (*match.BookState, error) {
	value, closer, err := j.db.Get([]byte(stateKey))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, ErrNoState
	}
	if err != nil {
		return nil, err
	}
	defer closer.Close()

	state := &match.BookState{}
	if err := json.Unmarshal(value, state); err != nil {
		return nil, err
	}
	return state, nil
}

// Recover restores engine from the latest checkpoint.
// It returns ErrNoState when nothing was saved yet.
func (j *Journal) Recover(engine *match.MatchingEngine) (*match.BookState, error) {
	state, err := j.LoadState()
	if err != nil {
		return nil, err
	}
	if err := engine.Restore(state); err != nil {
		return nil, err
	}
	return state, nil
}

func tradeKey(seq uint64) []byte {
	return []byte(fmt.Sprintf("%s%020d", tradePrefix, seq))
}

func tradeBounds(fromSeq uint64) *pebble.IterOptions {
	return &pebble.IterOptions{
		LowerBound: tradeKey(fromSeq),
		UpperBound: []byte(tradePrefix + "~"),
	}
}

func parseTradeKey(b []byte) (uint64, error) {
	var seq uint64
	_, err := fmt.Sscanf(string(b[len(tradePrefix):]), "%d", &seq)
	return seq, err
}
