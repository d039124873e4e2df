package schema

// Side describes trade direction.
type Side uint16

const (
	SideUnknown Side = iota
	SideBuy
	SideSell
)

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

// Update flags carried on MarketUpdate.Flags.
const (
	UpdateFlagValid uint16 = 1 << 0
)

// MarketUpdate is the payload for EventMarketUpdate, produced by the
// market data decoder.
type MarketUpdate struct {
	SymbolID uint32
	Side     Side
	Flags    uint16
	Price    Price
	Qty      Quantity
}

// Valid reports whether the decoder marked this update usable.
func (u MarketUpdate) Valid() bool {
	return u.Flags&UpdateFlagValid != 0
}

// TradeIntent is the strategy output for one decision cycle. It is
// never persisted.
type TradeIntent struct {
	Side  Side
	Qty   Quantity
	Valid bool
}

// OrderIntent is the payload for EventOrderIntent, handed to the
// order protocol encoder.
type OrderIntent struct {
	ClientOrderID uint64
	SymbolID      uint32
	Side          Side
	Flags         uint16
	Price         Price
	Qty           Quantity
}

// OrderStatus mirrors the execution report order status field.
type OrderStatus uint16

const (
	OrderStatusUnknown OrderStatus = iota
	OrderStatusNew
	OrderStatusPartFilled
	OrderStatusFilled
	OrderStatusRejected
	OrderStatusCanceled
)

// ExecType mirrors the execution report exec type field.
type ExecType uint16

const (
	ExecTypeUnknown ExecType = iota
	ExecTypeNew
	ExecTypeTrade
	ExecTypeRejected
	ExecTypeCanceled
)

// ExecReport is the payload for EventExecReport, produced by the
// inbound execution report decoder.
type ExecReport struct {
	ClientOrderID uint64
	OrderID       uint64
	SymbolID      uint32
	ExecType      ExecType
	Status        OrderStatus
	CumQty        Quantity
	LastQty       Quantity
	LastPrice     Price
}

// FillEvent is the payload for EventFill: exactly one per unit of
// incremental fill, emitted by the fill matcher after dedup.
type FillEvent struct {
	ClientOrderID uint64
	SymbolID      uint32
	Side          Side
	Flags         uint16
	Price         Price
	Qty           Quantity
	Fee           Fee
}

// RiskCode is a coarse reason code for risk rejections.
type RiskCode uint16

const (
	RiskCodeNone RiskCode = iota
	RiskCodePositionLimit
	RiskCodeLossLimit
	RiskCodeSizeLimit
)

func (c RiskCode) String() string {
	switch c {
	case RiskCodeNone:
		return "none"
	case RiskCodePositionLimit:
		return "position_limit"
	case RiskCodeLossLimit:
		return "loss_limit"
	case RiskCodeSizeLimit:
		return "size_limit"
	default:
		return "unknown"
	}
}

// RiskDecision is the payload for EventRiskDecision. Violations counts
// every violated check in this decision; Code carries only the last
// violated check in evaluation order.
type RiskDecision struct {
	Approved      bool
	Code          RiskCode
	Violations    uint32
	ProposedQty   Quantity
	ProposedPrice Price
	CurrentPos    Quantity
}
