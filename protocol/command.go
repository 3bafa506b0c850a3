package protocol

// CommandType defines the type of the command (using uint8 for memory alignment and performance)
type CommandType uint8

// Command Type Numbering Strategy:
// - 0-50:  OrderBook Management Commands (internal, low-frequency admin operations)
// - 51+:   Trading Commands (external, high-frequency hot path)
const (
	// OrderBook Management Commands (0-50, internal use)
	CmdUnknown       CommandType = 0
	CmdSuspendMarket CommandType = 2
	CmdResumeMarket  CommandType = 3

	// Trading Commands (51+, external use)
	CmdSubmitOrder CommandType = 51
	CmdCancelOrder CommandType = 52
	CmdGetDepth    CommandType = 60
	CmdGetStats    CommandType = 61
)

// String returns a readable name, used in logs.
func (t CommandType) String() string {
	switch t {
	case CmdSuspendMarket:
		return "suspend_market"
	case CmdResumeMarket:
		return "resume_market"
	case CmdSubmitOrder:
		return "submit_order"
	case CmdCancelOrder:
		return "cancel_order"
	case CmdGetDepth:
		return "get_depth"
	case CmdGetStats:
		return "get_stats"
	default:
		return "unknown"
	}
}

// OrderBookState represents the lifecycle state of an order book.
type OrderBookState uint8

const (
	// OrderBookStateRunning indicates the order book is active and accepting all trading operations.
	OrderBookStateRunning OrderBookState = 0
	// OrderBookStateSuspended indicates the order book is temporarily paused; only cancel operations are allowed.
	OrderBookStateSuspended OrderBookState = 1
	// OrderBookStateHalted indicates the order book detected a corrupted state; no operations are allowed.
	OrderBookStateHalted OrderBookState = 2
)

func (s OrderBookState) String() string {
	switch s {
	case OrderBookStateRunning:
		return "running"
	case OrderBookStateSuspended:
		return "suspended"
	case OrderBookStateHalted:
		return "halted"
	default:
		return "unknown"
	}
}

// Command is the standard carrier for commands entering the Matching Engine.
// It is designed to be efficient for serialization and compatible with Event Sourcing.
type Command struct {
	// Version is the protocol version for backward compatibility.
	Version uint8 `json:"version"`

	// MarketID is the target market for this command (Routing Header).
	MarketID string `json:"market_id"`

	// SeqID is used for global ordering and deduplication.
	SeqID uint64 `json:"seq_id"`

	// Type identifies the payload type for fast routing.
	Type CommandType `json:"type"`

	// Payload contains the serialized business data (e.g., JSON bytes of SubmitOrderCommand).
	// We use lazy deserialization to optimize routing performance.
	Payload []byte `json:"payload"`

	// Metadata stores non-business context (e.g., Tracing ID, Source IP).
	Metadata map[string]string `json:"metadata,omitempty"`
}

// SubmitOrderCommand is the payload for submitting a new limit order.
type SubmitOrderCommand struct {
	Side     Side   `json:"side"`
	Price    string `json:"price"` // Using string to prevent precision loss in JSON
	Quantity int64  `json:"quantity"`
}

// CancelOrderCommand is the payload for cancelling a resting order.
type CancelOrderCommand struct {
	OrderID uint64 `json:"order_id"`
}

// GetDepthRequest is the payload for querying order book depth.
type GetDepthRequest struct {
	Limit uint32 `json:"limit"`
}

// SuspendMarketCommand is the payload for suspending a market.
type SuspendMarketCommand struct {
	UserID string `json:"user_id"` // Operator ID for audit trail
	Reason string `json:"reason"`  // Reason for suspension (for audit)
}

// ResumeMarketCommand is the payload for resuming a suspended market.
type ResumeMarketCommand struct {
	UserID string `json:"user_id"` // Operator ID for audit trail
}
