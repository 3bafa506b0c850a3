package kafka

import (
	"context"
	"strconv"
	"time"

	match "github.com/0x5487/orderbook-core"
	"github.com/0x5487/orderbook-core/protocol"
	"github.com/cenkalti/backoff"
	"github.com/segmentio/kafka-go"
)

// messageWriter is the part of *kafka.Writer used by the publisher.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Options configures a TradePublisher.
type Options struct {
	Brokers      []string
	Topic        string
	MarketID     string
	TickSize     match.TickSize
	MaxRetries   uint64
	WriteTimeout time.Duration

	// RetryInterval is the first backoff interval (backoff default if 0).
	RetryInterval time.Duration
	Serializer    protocol.Serializer
}

// TradePublisher publishes trades to kafka. It implements match.TradeSink.
//
// Every message is keyed by the market id so that all trades of a market land on one partition
// and keep their sequence order. Writes are synchronous.
type TradePublisher struct {
	writer        messageWriter
	marketID      string
	tick          match.TickSize
	maxRetries    uint64
	writeTimeout  time.Duration
	retryInterval time.Duration
	serializer    protocol.Serializer
}

// NewTradePublisher creates a publisher writing to opts.Brokers.
func NewTradePublisher(opts Options) *TradePublisher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(opts.Brokers...),
		Topic:        opts.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Async:        false,
		BatchTimeout: 10 * time.Millisecond,
	}
	return newTradePublisher(writer, opts)
}

func newTradePublisher(writer messageWriter, opts Options) *TradePublisher {
	serializer := opts.Serializer
	if serializer == nil {
		serializer = &protocol.DefaultJSONSerializer{}
	}

	timeout := opts.WriteTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	return &TradePublisher{
		writer:        writer,
		marketID:      opts.MarketID,
		tick:          opts.TickSize,
		maxRetries:    opts.MaxRetries,
		writeTimeout:  timeout,
		retryInterval: opts.RetryInterval,
		serializer:    serializer,
	}
}

// PublishTrade encodes the trade and writes it, retrying with exponential backoff.
func (p *TradePublisher) PublishTrade(trade match.Trade) error {
	value, err := p.serializer.Marshal(trade.Event(p.marketID, p.tick))
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Key:   []byte(p.marketID),
		Value: value,
		Headers: []kafka.Header{
			{Key: "trade_seq", Value: []byte(strconv.FormatUint(trade.Sequence, 10))},
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.writeTimeout)
	defer cancel()

	exp := backoff.NewExponentialBackOff()
	if p.retryInterval > 0 {
		exp.InitialInterval = p.retryInterval
	}
	boff := backoff.WithContext(backoff.WithMaxRetries(exp, p.maxRetries), ctx)

	return backoff.Retry(func() error {
		err := p.writer.WriteMessages(ctx, msg)
		if err != nil {
			match.Logger().Warn("kafka write failed", "market_id", p.marketID, "trade_seq", trade.Sequence, "error", err)
		}
		return err
	}, boff)
}

// Close flushes and closes the writer.
func (p *TradePublisher) Close() error {
	return p.writer.Close()
}
