package strategy

import (
	"main/internal/book"
	"main/internal/schema"
)

// State tracks the engine position cycle.
type State uint16

const (
	StateFlat State = iota
	StateLongOpen
)

func (s State) String() string {
	switch s {
	case StateFlat:
		return "flat"
	case StateLongOpen:
		return "long_open"
	default:
		return "unknown"
	}
}

// Config defines the fixed strategy parameters.
type Config struct {
	ClipSize        schema.Quantity
	SpreadThreshold schema.Price
	ProfitTarget    schema.Price
}

// Engine is a two-state spread capture signal generator. Inputs seen
// by Tick are staged for one tick before they are acted on: the engine
// computes the spread one tick before the decision tick. The staging is
// intentional, it keeps the decision latency fixed.
type Engine struct {
	cfg        Config
	state      State
	entryPrice schema.Price

	stagedTop book.TopOfBook
	stagedPos schema.Quantity
}

// NewEngine creates an engine in the flat state.
func NewEngine(cfg Config) *Engine {
	return &Engine{cfg: cfg}
}

// Tick stages the current inputs and decides on the inputs staged one
// tick earlier. At most one intent is emitted per tick.
func (e *Engine) Tick(top book.TopOfBook, position schema.Quantity) schema.TradeIntent {
	prevTop, prevPos := e.stagedTop, e.stagedPos
	e.stagedTop, e.stagedPos = top, position

	switch e.state {
	case StateFlat:
		if prevTop.Valid && prevTop.Spread() < e.cfg.SpreadThreshold && prevPos == 0 {
			e.state = StateLongOpen
			e.entryPrice = prevTop.AskPrice
			return schema.TradeIntent{Side: schema.SideBuy, Qty: e.cfg.ClipSize, Valid: true}
		}
	case StateLongOpen:
		if prevTop.Valid && prevTop.BidPrice >= e.entryPrice+e.cfg.ProfitTarget {
			e.state = StateFlat
			return schema.TradeIntent{Side: schema.SideSell, Qty: e.cfg.ClipSize, Valid: true}
		}
	}
	return schema.TradeIntent{}
}

// State returns the current engine state.
func (e *Engine) State() State {
	return e.state
}

// EntryPrice returns the ask captured when the long was opened.
func (e *Engine) EntryPrice() schema.Price {
	return e.entryPrice
}

// Reset returns the engine to flat and clears staged inputs.
func (e *Engine) Reset() {
	cfg := e.cfg
	*e = Engine{cfg: cfg}
}
