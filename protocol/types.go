package protocol

// Side represents the order side (Buy/Sell).
type Side int8

const (
	SideBuy  Side = 1
	SideSell Side = 2
)

// String returns the lower case name of the side.
func (s Side) String() string {
	switch s {
	case SideBuy:
		return "buy"
	case SideSell:
		return "sell"
	default:
		return "unknown"
	}
}

// Opposite returns the contra side. An unknown side stays unknown.
func (s Side) Opposite() Side {
	switch s {
	case SideBuy:
		return SideSell
	case SideSell:
		return SideBuy
	default:
		return s
	}
}

// IsValid reports whether s is Buy or Sell.
func (s Side) IsValid() bool {
	return s == SideBuy || s == SideSell
}

// OrderStatus represents the lifecycle status of an order.
type OrderStatus string

const (
	OrderStatusNew             OrderStatus = "new"
	OrderStatusPartiallyFilled OrderStatus = "partially_filled"
	OrderStatusFilled          OrderStatus = "filled"
	OrderStatusCancelled       OrderStatus = "cancelled"
)

// IsTerminal reports whether no further transition may leave the status.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusFilled || s == OrderStatusCancelled
}

// DepthItem is one aggregated price level.
type DepthItem struct {
	Price string `json:"price"`
	Size  string `json:"size"`
	Count int64  `json:"count"`
}

// GetDepthResponse represents the state of the order book depth.
type GetDepthResponse struct {
	UpdateID uint64       `json:"update_id"`
	Asks     []*DepthItem `json:"asks"`
	Bids     []*DepthItem `json:"bids"`
}

// GetStatsResponse contains statistics about the order book sides.
type GetStatsResponse struct {
	State         OrderBookState `json:"state"`
	AskDepthCount int64          `json:"ask_depth_count"`
	AskOrderCount int64          `json:"ask_order_count"`
	BidDepthCount int64          `json:"bid_depth_count"`
	BidOrderCount int64          `json:"bid_order_count"`
	LastTradeSeq  uint64         `json:"last_trade_seq"`
}

// TradeEvent is the wire form of a trade, published to downstream consumers.
type TradeEvent struct {
	MarketID     string `json:"market_id"`
	Sequence     uint64 `json:"seq"`
	TakerOrderID uint64 `json:"taker_order_id"`
	MakerOrderID uint64 `json:"maker_order_id"`
	TakerSide    Side   `json:"taker_side"`
	Price        string `json:"price"` // Using string to prevent precision loss in JSON
	Quantity     int64  `json:"quantity"`
	Timestamp    uint64 `json:"timestamp"` // Logical timestamp (engine request clock)
	CreatedAt    int64  `json:"created_at"`
}

// OrderResult is returned to the caller after a submit command is processed.
type OrderResult struct {
	OrderID   uint64        `json:"order_id"`
	Status    OrderStatus   `json:"status"`
	Remaining int64         `json:"remaining"`
	Trades    []*TradeEvent `json:"trades,omitempty"`
}
