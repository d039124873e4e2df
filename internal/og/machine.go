package og

import (
	"main/internal/book"
	"main/internal/schema"
)

// State is the lifecycle stage of the single in-flight order.
type State uint16

const (
	StateIdle State = iota
	StateRiskCheck
	StatePrepareOrder
	StateSendOrder
	StateAwaitingFill
	StateFilled
	StateRejected
	StateTimedOut
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRiskCheck:
		return "risk_check"
	case StatePrepareOrder:
		return "prepare_order"
	case StateSendOrder:
		return "send_order"
	case StateAwaitingFill:
		return "awaiting_fill"
	case StateFilled:
		return "filled"
	case StateRejected:
		return "rejected"
	case StateTimedOut:
		return "timed_out"
	default:
		return "unknown"
	}
}

// Config controls the lifecycle machine.
type Config struct {
	SymbolID uint32
	// FillTimeoutTicks bounds the AwaitingFill wait. 0 disables the
	// timeout and a missing fill stalls the machine forever.
	FillTimeoutTicks int
}

// Inputs are the per-tick inputs to the machine.
type Inputs struct {
	Intent        schema.TradeIntent
	Decision      schema.RiskDecision
	DecisionReady bool
	Top           book.TopOfBook
	// FillCompleted signals that the matcher confirmed the in-flight
	// order fully filled this tick.
	FillCompleted bool
}

// Effects are the per-tick outputs of the machine.
type Effects struct {
	// SubmitRisk is set on the tick the machine enters RiskCheck; the
	// caller captures the pending intent into the risk pipeline.
	SubmitRisk bool
	// Send holds the outbound order. It is valid for exactly this tick.
	Send *schema.OrderIntent
	// Ended is the terminal state reached this tick, or StateIdle.
	Ended State
	// EndedOrderID is the client order id of the ended lifecycle, when
	// the order got as far as being assigned one.
	EndedOrderID uint64
}

// Counters are the monotonic lifecycle counters.
type Counters struct {
	Sent     uint64
	Filled   uint64
	Rejected uint64
	TimedOut uint64
	// IntentsDropped counts valid intents that arrived while an order
	// was already in flight. The machine is strictly single-order.
	IntentsDropped uint64
}

// Machine drives one order at a time through
// Idle -> RiskCheck -> PrepareOrder -> SendOrder -> AwaitingFill and
// into Filled, Rejected or TimedOut, each of which spends one tick
// before returning to Idle. No order is pipelined behind another: a
// new intent is only accepted in Idle.
type Machine struct {
	cfg      Config
	state    State
	pending  schema.TradeIntent
	order    schema.OrderIntent
	nextID   uint64
	waitTick int
	counters Counters
}

// NewMachine creates an idle machine. Client order ids start at 1.
func NewMachine(cfg Config) *Machine {
	return &Machine{cfg: cfg, nextID: 1}
}

// Tick advances the machine one state step.
func (m *Machine) Tick(in Inputs) Effects {
	var eff Effects

	if in.Intent.Valid && m.state != StateIdle {
		m.counters.IntentsDropped++
	}

	switch m.state {
	case StateIdle:
		if in.Intent.Valid {
			m.pending = in.Intent
			m.order = schema.OrderIntent{}
			m.state = StateRiskCheck
			eff.SubmitRisk = true
		}

	case StateRiskCheck:
		if !in.DecisionReady {
			break
		}
		if in.Decision.Approved {
			m.state = StatePrepareOrder
		} else {
			m.counters.Rejected++
			m.state = StateRejected
		}

	case StatePrepareOrder:
		// Limit price is captured at this exact tick: buys price at the
		// best ask, sells at the best bid.
		price := in.Top.AskPrice
		if m.pending.Side == schema.SideSell {
			price = in.Top.BidPrice
		}
		m.order = schema.OrderIntent{
			ClientOrderID: m.nextID,
			SymbolID:      m.cfg.SymbolID,
			Side:          m.pending.Side,
			Price:         price,
			Qty:           m.pending.Qty,
		}
		m.nextID++
		m.state = StateSendOrder

	case StateSendOrder:
		order := m.order
		eff.Send = &order
		m.counters.Sent++
		m.waitTick = 0
		m.state = StateAwaitingFill

	case StateAwaitingFill:
		if in.FillCompleted {
			m.counters.Filled++
			m.state = StateFilled
			break
		}
		m.waitTick++
		if m.cfg.FillTimeoutTicks > 0 && m.waitTick >= m.cfg.FillTimeoutTicks {
			m.counters.TimedOut++
			m.state = StateTimedOut
		}

	case StateFilled, StateRejected, StateTimedOut:
		eff.Ended = m.state
		eff.EndedOrderID = m.order.ClientOrderID
		m.state = StateIdle
	}

	return eff
}

// State returns the current lifecycle state.
func (m *Machine) State() State {
	return m.state
}

// InFlight returns the client order id awaiting a fill, or 0.
func (m *Machine) InFlight() uint64 {
	if m.state == StateAwaitingFill {
		return m.order.ClientOrderID
	}
	return 0
}

// Counters returns the monotonic lifecycle counters.
func (m *Machine) Counters() Counters {
	return m.counters
}
