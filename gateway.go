package match

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/0x5487/orderbook-core/protocol"
)

// DefaultGatewayBufferSize is the ring size used when GatewayOptions.BufferSize is 0.
const DefaultGatewayBufferSize int64 = 1024

// GatewayOptions configures a Gateway.
type GatewayOptions struct {
	// BufferSize is the ring capacity, a power of 2.
	BufferSize int64

	// Serializer decodes Command payloads. Defaults to JSON.
	Serializer protocol.Serializer
}

type request struct {
	cmdType protocol.CommandType
	seqID   uint64
	payload any
	resp    chan response
}

type response struct {
	data any
	err  error
}

// Gateway serializes requests of many goroutines into the single goroutine that owns the engine.
type Gateway struct {
	engine       *MatchingEngine
	ring         *RingBuffer[*request]
	serializer   protocol.Serializer
	isShutdown   atomic.Bool
	lastCmdSeqID atomic.Uint64
}

// NewGateway wraps engine. The engine must not be used directly once the gateway is started.
func NewGateway(engine *MatchingEngine, opts GatewayOptions) *Gateway {
	size := opts.BufferSize
	if size == 0 {
		size = DefaultGatewayBufferSize
	}

	serializer := opts.Serializer
	if serializer == nil {
		serializer = &protocol.DefaultJSONSerializer{}
	}

	g := &Gateway{
		engine:     engine,
		serializer: serializer,
	}
	g.ring = NewRingBuffer[*request](size, g)
	return g
}

// Start starts the consumer goroutine.
func (g *Gateway) Start() {
	g.ring.Start()
}

// OnEvent runs on the consumer goroutine, one request at a time.
func (g *Gateway) OnEvent(req *request) {
	data, err := g.handle(req)

	if req.seqID > 0 {
		g.lastCmdSeqID.Store(req.seqID)
	}

	select {
	case req.resp <- response{data: data, err: err}:
	default:
	}
}

func (g *Gateway) handle(req *request) (any, error) {
	e := g.engine

	switch req.cmdType {
	case protocol.CmdSubmitOrder:
		order, _ := req.payload.(*submitRequest)
		res, err := e.Submit(order.side, order.price, order.quantity)
		if err != nil {
			return nil, err
		}
		return g.orderResult(res), nil
	case protocol.CmdCancelOrder:
		cmd, _ := req.payload.(*protocol.CancelOrderCommand)
		return nil, e.Cancel(cmd.OrderID)
	case protocol.CmdGetDepth:
		limit, _ := req.payload.(uint32)
		return e.Depth(limit)
	case protocol.CmdGetStats:
		return e.Stats(), nil
	case protocol.CmdSuspendMarket:
		cmd, _ := req.payload.(*protocol.SuspendMarketCommand)
		logger.Info("suspend market requested", "market_id", e.marketID, "user_id", cmd.UserID, "seq_id", req.seqID)
		return nil, e.Suspend(cmd.Reason)
	case protocol.CmdResumeMarket:
		cmd, _ := req.payload.(*protocol.ResumeMarketCommand)
		logger.Info("resume market requested", "market_id", e.marketID, "user_id", cmd.UserID, "seq_id", req.seqID)
		return nil, e.Resume()
	case cmdSnapshot:
		return e.Snapshot(), nil
	case cmdExportState:
		return e.ExportState(), nil
	}

	return nil, &ValidationError{Field: "type", Reason: fmt.Sprintf("unsupported command %d", req.cmdType)}
}

// internal read commands, outside the protocol range
const (
	cmdSnapshot    protocol.CommandType = 250
	cmdExportState protocol.CommandType = 251
)

type submitRequest struct {
	side     Side
	price    int64
	quantity int64
}

func (g *Gateway) orderResult(res *SubmitResult) *protocol.OrderResult {
	out := &protocol.OrderResult{
		OrderID:   res.OrderID,
		Status:    res.Status,
		Remaining: res.Remaining,
	}
	if len(res.Trades) > 0 {
		out.Trades = make([]*protocol.TradeEvent, 0, len(res.Trades))
		for _, t := range res.Trades {
			out.Trades = append(out.Trades, t.Event(g.engine.marketID, g.engine.tickSize))
		}
	}
	return out
}

func (g *Gateway) send(ctx context.Context, req *request) (any, error) {
	if g.isShutdown.Load() {
		return nil, ErrShutdown
	}

	req.resp = make(chan response, 1)
	if err := g.ring.Publish(req); err != nil {
		return nil, err
	}

	select {
	case res := <-req.resp:
		return res.data, res.err
	case <-ctx.Done():
		return nil, ErrTimeout
	}
}

// Submit converts the decimal price through the engine's tick size and submits the order.
func (g *Gateway) Submit(ctx context.Context, cmd *protocol.SubmitOrderCommand) (*protocol.OrderResult, error) {
	return g.submit(ctx, 0, cmd)
}

func (g *Gateway) submit(ctx context.Context, seqID uint64, cmd *protocol.SubmitOrderCommand) (*protocol.OrderResult, error) {
	if cmd == nil {
		return nil, &ValidationError{Field: "payload", Reason: "is nil"}
	}

	price, err := g.engine.tickSize.ParsePrice(cmd.Price)
	if err != nil {
		return nil, err
	}

	data, err := g.send(ctx, &request{
		cmdType: protocol.CmdSubmitOrder,
		seqID:   seqID,
		payload: &submitRequest{side: cmd.Side, price: price, quantity: cmd.Quantity},
	})
	if err != nil {
		return nil, err
	}

	result, _ := data.(*protocol.OrderResult)
	return result, nil
}

// Cancel cancels a resting order.
func (g *Gateway) Cancel(ctx context.Context, cmd *protocol.CancelOrderCommand) error {
	return g.cancel(ctx, 0, cmd)
}

func (g *Gateway) cancel(ctx context.Context, seqID uint64, cmd *protocol.CancelOrderCommand) error {
	if cmd == nil {
		return &ValidationError{Field: "payload", Reason: "is nil"}
	}

	_, err := g.send(ctx, &request{cmdType: protocol.CmdCancelOrder, seqID: seqID, payload: cmd})
	return err
}

// Snapshot returns a snapshot taken between two requests.
func (g *Gateway) Snapshot(ctx context.Context) (*Snapshot, error) {
	data, err := g.send(ctx, &request{cmdType: cmdSnapshot})
	if err != nil {
		return nil, err
	}
	snap, _ := data.(*Snapshot)
	return snap, nil
}

// ExportState exports the book state between two requests.
func (g *Gateway) ExportState(ctx context.Context) (*BookState, error) {
	data, err := g.send(ctx, &request{cmdType: cmdExportState})
	if err != nil {
		return nil, err
	}
	state, _ := data.(*BookState)
	return state, nil
}

// Depth returns the order book depth up to limit levels per side.
func (g *Gateway) Depth(ctx context.Context, limit uint32) (*protocol.GetDepthResponse, error) {
	return g.depth(ctx, 0, limit)
}

func (g *Gateway) depth(ctx context.Context, seqID uint64, limit uint32) (*protocol.GetDepthResponse, error) {
	if limit == 0 {
		return nil, ErrInvalidParam
	}

	data, err := g.send(ctx, &request{cmdType: protocol.CmdGetDepth, seqID: seqID, payload: limit})
	if err != nil {
		return nil, err
	}
	depth, _ := data.(*protocol.GetDepthResponse)
	return depth, nil
}

// Stats returns usage statistics for the order book.
func (g *Gateway) Stats(ctx context.Context) (*protocol.GetStatsResponse, error) {
	return g.stats(ctx, 0)
}

func (g *Gateway) stats(ctx context.Context, seqID uint64) (*protocol.GetStatsResponse, error) {
	data, err := g.send(ctx, &request{cmdType: protocol.CmdGetStats, seqID: seqID})
	if err != nil {
		return nil, err
	}
	stats, _ := data.(*protocol.GetStatsResponse)
	return stats, nil
}

// Suspend stops admission of new orders.
func (g *Gateway) Suspend(ctx context.Context, cmd *protocol.SuspendMarketCommand) error {
	return g.suspend(ctx, 0, cmd)
}

func (g *Gateway) suspend(ctx context.Context, seqID uint64, cmd *protocol.SuspendMarketCommand) error {
	if cmd == nil {
		return &ValidationError{Field: "payload", Reason: "is nil"}
	}

	_, err := g.send(ctx, &request{cmdType: protocol.CmdSuspendMarket, seqID: seqID, payload: cmd})
	return err
}

// Resume reopens the market.
func (g *Gateway) Resume(ctx context.Context, cmd *protocol.ResumeMarketCommand) error {
	return g.resume(ctx, 0, cmd)
}

func (g *Gateway) resume(ctx context.Context, seqID uint64, cmd *protocol.ResumeMarketCommand) error {
	if cmd == nil {
		return &ValidationError{Field: "payload", Reason: "is nil"}
	}

	_, err := g.send(ctx, &request{cmdType: protocol.CmdResumeMarket, seqID: seqID, payload: cmd})
	return err
}

// Execute decodes a command envelope and runs it.
// The result is *protocol.OrderResult for submits, *protocol.GetDepthResponse for depth,
// *protocol.GetStatsResponse for stats and nil otherwise.
func (g *Gateway) Execute(ctx context.Context, cmd *protocol.Command) (any, error) {
	if cmd == nil {
		return nil, &ValidationError{Field: "command", Reason: "is nil"}
	}
	if cmd.MarketID != "" && cmd.MarketID != g.engine.marketID {
		return nil, fmt.Errorf("market %s: %w", cmd.MarketID, ErrNotFound)
	}

	switch cmd.Type {
	case protocol.CmdSubmitOrder:
		payload := &protocol.SubmitOrderCommand{}
		if err := g.decode(cmd, payload); err != nil {
			return nil, err
		}
		result, err := g.submit(ctx, cmd.SeqID, payload)
		if err != nil {
			return nil, err
		}
		return result, nil
	case protocol.CmdCancelOrder:
		payload := &protocol.CancelOrderCommand{}
		if err := g.decode(cmd, payload); err != nil {
			return nil, err
		}
		return nil, g.cancel(ctx, cmd.SeqID, payload)
	case protocol.CmdGetDepth:
		payload := &protocol.GetDepthRequest{}
		if err := g.decode(cmd, payload); err != nil {
			return nil, err
		}
		depth, err := g.depth(ctx, cmd.SeqID, payload.Limit)
		if err != nil {
			return nil, err
		}
		return depth, nil
	case protocol.CmdGetStats:
		stats, err := g.stats(ctx, cmd.SeqID)
		if err != nil {
			return nil, err
		}
		return stats, nil
	case protocol.CmdSuspendMarket:
		payload := &protocol.SuspendMarketCommand{}
		if err := g.decode(cmd, payload); err != nil {
			return nil, err
		}
		return nil, g.suspend(ctx, cmd.SeqID, payload)
	case protocol.CmdResumeMarket:
		payload := &protocol.ResumeMarketCommand{}
		// the resume payload is optional
		if len(cmd.Payload) > 0 {
			if err := g.decode(cmd, payload); err != nil {
				return nil, err
			}
		}
		return nil, g.resume(ctx, cmd.SeqID, payload)
	}

	return nil, &ValidationError{Field: "type", Reason: fmt.Sprintf("unsupported command %s", cmd.Type)}
}

func (g *Gateway) decode(cmd *protocol.Command, v any) error {
	if err := g.serializer.Unmarshal(cmd.Payload, v); err != nil {
		logger.Warn("failed to decode command payload", "type", cmd.Type.String(), "seq_id", cmd.SeqID, "error", err)
		return &ValidationError{Field: "payload", Reason: err.Error()}
	}
	return nil
}

// LastCmdSeqID returns the sequence ID of the last processed command envelope.
func (g *Gateway) LastCmdSeqID() uint64 {
	return g.lastCmdSeqID.Load()
}

// Shutdown stops accepting requests and waits until the queued ones are processed.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.isShutdown.Store(true)
	return g.ring.Shutdown(ctx)
}
