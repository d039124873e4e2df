package risk

import "main/internal/schema"

// Config defines the static risk limits.
type Config struct {
	MaxPosition  schema.Quantity
	MaxLossLimit schema.Notional
}

// Request captures the inputs of one proposed order. Position and PnL
// are the caller's committed snapshot from the previous tick.
type Request struct {
	Side          schema.Side
	Qty           schema.Quantity
	Price         schema.Price
	Position      schema.Quantity
	RealizedPnL   schema.Notional
	UnrealizedPnL schema.Notional
}

type captured struct {
	req   Request
	valid bool
}

type precomputed struct {
	req          Request
	posIfBuy     schema.Quantity
	posIfSell    schema.Quantity
	totalPnL     schema.Notional
	maxOrderSize schema.Quantity
	valid        bool
}

// Evaluator is a three-stage pipeline: capture, precompute, evaluate.
// A request captured on tick T produces its decision on tick T+2. Each
// stage reads only the previous tick's registers, so a decision is
// never derived from half-advanced state.
//
// The three checks run independently: every violated check increments
// the violation counter, but the reported code is overwritten by each
// later check in the fixed evaluation order (position, loss, size).
// Replicated as-is for compatibility with the existing reason codes.
type Evaluator struct {
	cfg        Config
	stage1     captured
	stage2     precomputed
	violations uint64
}

// NewEvaluator creates an evaluator with static limits.
func NewEvaluator(cfg Config) *Evaluator {
	return &Evaluator{cfg: cfg}
}

// Capture latches a request into the first pipeline stage. At most one
// request is carried per tick; a second Capture before the next
// Advance replaces the pending one.
func (e *Evaluator) Capture(req Request) {
	e.stage1 = captured{req: req, valid: true}
}

// Advance moves the pipeline forward one tick and returns the decision
// produced by the evaluate stage, if one settled this tick.
func (e *Evaluator) Advance() (schema.RiskDecision, bool) {
	var (
		decision schema.RiskDecision
		ready    bool
	)
	if e.stage2.valid {
		decision = e.evaluate(e.stage2)
		ready = true
	}

	e.stage2 = precompute(e.cfg, e.stage1)
	e.stage1 = captured{}
	return decision, ready
}

func precompute(cfg Config, c captured) precomputed {
	if !c.valid {
		return precomputed{}
	}
	return precomputed{
		req:          c.req,
		posIfBuy:     c.req.Position + c.req.Qty,
		posIfSell:    c.req.Position - c.req.Qty,
		totalPnL:     c.req.RealizedPnL + c.req.UnrealizedPnL,
		maxOrderSize: cfg.MaxPosition / 2,
		valid:        true,
	}
}

func (e *Evaluator) evaluate(p precomputed) schema.RiskDecision {
	decision := schema.RiskDecision{
		Approved:      true,
		Code:          schema.RiskCodeNone,
		ProposedQty:   p.req.Qty,
		ProposedPrice: p.req.Price,
		CurrentPos:    p.req.Position,
	}

	switch p.req.Side {
	case schema.SideBuy:
		if p.posIfBuy > e.cfg.MaxPosition {
			e.violate(&decision, schema.RiskCodePositionLimit)
		}
	case schema.SideSell:
		// A sell may neither open a short nor leave a long above the
		// limit. The asymmetry is part of the published policy.
		if p.posIfSell < 0 || p.posIfSell > e.cfg.MaxPosition {
			e.violate(&decision, schema.RiskCodePositionLimit)
		}
	}

	if p.totalPnL < -e.cfg.MaxLossLimit {
		e.violate(&decision, schema.RiskCodeLossLimit)
	}

	if p.req.Qty > p.maxOrderSize {
		e.violate(&decision, schema.RiskCodeSizeLimit)
	}

	return decision
}

func (e *Evaluator) violate(d *schema.RiskDecision, code schema.RiskCode) {
	d.Approved = false
	d.Code = code
	d.Violations++
	e.violations++
}

// Violations returns the cumulative count of individual violated
// checks across all decisions.
func (e *Evaluator) Violations() uint64 {
	return e.violations
}

// Reset flushes the pipeline registers. Limits and the cumulative
// violation counter survive.
func (e *Evaluator) Reset() {
	e.stage1 = captured{}
	e.stage2 = precomputed{}
}
