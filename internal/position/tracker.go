package position

import "main/internal/schema"

// Config defines the fixed accounting parameters.
type Config struct {
	// FeePerFill is charged once per processed fill, in notional scale.
	FeePerFill schema.Fee
}

// Snapshot is the committed position state. Readers inside a tick see
// the previous tick's snapshot, never a partially updated record.
type Snapshot struct {
	Position      schema.Quantity
	AvgEntryPrice schema.Price
	RealizedPnL   schema.Notional
	UnrealizedPnL schema.Notional
	TradeCount    uint64
	TotalFees     schema.Fee
}

// Tracker derives position, average entry price and PnL from matched
// fill events. The average entry price is approximate on purpose: it
// is set when opening from flat, held unchanged while the position
// grows, reset on a sign flip and zeroed when the position closes
// exactly to flat. No quantity-weighted re-averaging happens on adds.
type Tracker struct {
	cfg  Config
	snap Snapshot
	mark schema.Price
}

// NewTracker creates a flat tracker.
func NewTracker(cfg Config) *Tracker {
	return &Tracker{cfg: cfg}
}

// ApplyFill folds one deduplicated fill into the position state.
func (t *Tracker) ApplyFill(fill schema.FillEvent) {
	qty := fill.Qty
	if qty <= 0 {
		return
	}
	delta := qty
	if fill.Side == schema.SideSell {
		delta = -qty
	}

	old := t.snap.Position
	next := old + delta
	increasing := old == 0 || (old > 0) == (delta > 0)

	if increasing {
		if old == 0 {
			t.snap.AvgEntryPrice = fill.Price
		}
		// Average held unchanged while adding to an open position.
	} else {
		var pnl schema.Notional
		if fill.Side == schema.SideSell {
			// Sell reducing a long.
			pnl = schema.Notional(fill.Price-t.snap.AvgEntryPrice) * schema.Notional(qty)
		} else {
			// Buy reducing a short.
			pnl = schema.Notional(t.snap.AvgEntryPrice-fill.Price) * schema.Notional(qty)
		}
		t.snap.RealizedPnL += pnl - schema.Notional(t.cfg.FeePerFill)

		switch {
		case next == 0:
			t.snap.AvgEntryPrice = 0
		case (next > 0) != (old > 0):
			// Position flipped sign; the remainder opened at this fill.
			t.snap.AvgEntryPrice = fill.Price
		}
	}

	t.snap.Position = next
	t.snap.TradeCount++
	t.snap.TotalFees += t.cfg.FeePerFill
	t.recomputeUnrealized()
}

// Mark sets the latest market price and recomputes unrealized PnL
// against the current position and entry price.
func (t *Tracker) Mark(price schema.Price) {
	t.mark = price
	t.recomputeUnrealized()
}

func (t *Tracker) recomputeUnrealized() {
	if t.mark == 0 {
		// No market price seen yet.
		t.snap.UnrealizedPnL = 0
		return
	}
	pos := t.snap.Position
	switch {
	case pos > 0:
		t.snap.UnrealizedPnL = schema.Notional(t.mark-t.snap.AvgEntryPrice) * schema.Notional(pos)
	case pos < 0:
		t.snap.UnrealizedPnL = schema.Notional(t.snap.AvgEntryPrice-t.mark) * schema.Notional(-pos)
	default:
		t.snap.UnrealizedPnL = 0
	}
}

// Snapshot returns the committed position state by value.
func (t *Tracker) Snapshot() Snapshot {
	return t.snap
}

// Restore replaces the committed state, used by recovery.
func (t *Tracker) Restore(snap Snapshot) {
	t.snap = snap
}

// Reset returns the tracker to flat with zeroed counters.
func (t *Tracker) Reset() {
	cfg := t.cfg
	*t = Tracker{cfg: cfg}
}
