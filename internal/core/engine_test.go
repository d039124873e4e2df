package core

import (
	"testing"

	"main/internal/book"
	"main/internal/bus"
	"main/internal/codec"
	"main/internal/fills"
	"main/internal/obs"
	"main/internal/og"
	"main/internal/risk"
	"main/internal/schema"
	"main/internal/strategy"
)

func testConfig() Config {
	return Config{
		SymbolID: 1,
		Source:   7,
		Strategy: strategy.Config{
			ClipSize:        100,
			SpreadThreshold: 10,
			ProfitTarget:    50,
		},
		Risk: risk.Config{
			MaxPosition:  1000,
			MaxLossLimit: 1_000_000,
		},
		Lifecycle: og.Config{
			SymbolID:         1,
			FillTimeoutTicks: 8,
		},
		FeePerFill: 200,
	}
}

type rig struct {
	engine  *Engine
	ingest  *Ingest
	reports *bus.Queue
	egress  *bus.Queue
	metrics *obs.Metrics

	// reports to inject at the start of the next tick
	pending []schema.ExecReport
}

func newRig(t *testing.T, cfg Config) *rig {
	t.Helper()

	top := bus.NewLatch[book.TopOfBook]()
	reports := bus.NewQueue(64)
	egress := bus.NewQueue(64)
	metrics := obs.NewMetrics()

	engine, err := NewEngine(cfg, Deps{
		Top:     top,
		Reports: reports,
		Egress:  egress,
		Metrics: metrics,
	})
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	return &rig{
		engine:  engine,
		ingest:  NewIngest(cfg.Source, top, metrics, nil),
		reports: reports,
		egress:  egress,
		metrics: metrics,
	}
}

func (r *rig) quote(t *testing.T, bid, ask schema.Price) {
	t.Helper()

	updates := []schema.MarketUpdate{
		{SymbolID: 1, Side: schema.SideBuy, Flags: schema.UpdateFlagValid, Price: bid, Qty: 500},
		{SymbolID: 1, Side: schema.SideSell, Flags: schema.UpdateFlagValid, Price: ask, Qty: 500},
	}
	for _, u := range updates {
		if err := r.ingest.Apply(u, nil); err != nil {
			t.Fatalf("ingest apply: %v", err)
		}
	}
}

// step runs one decision tick: first deliver reports scheduled on the
// previous tick, then tick the engine, then turn any outbound order
// into a full fill for the next tick.
func (r *rig) step(t *testing.T) {
	t.Helper()

	for _, report := range r.pending {
		ev := bus.Event{Payload: codec.EncodeExecReport(nil, report)}
		if err := r.reports.TryPublish(ev); err != nil {
			t.Fatalf("publish report: %v", err)
		}
	}
	r.pending = r.pending[:0]

	if err := r.engine.Tick(); err != nil {
		t.Fatalf("tick: %v", err)
	}

	for {
		ev, ok := r.egress.TryConsume()
		if !ok {
			break
		}

		order, ok := codec.DecodeOrderIntent(ev.Payload)
		if !ok {
			t.Fatalf("undecodable outbound order")
		}

		r.pending = append(r.pending, schema.ExecReport{
			ClientOrderID: order.ClientOrderID,
			OrderID:       order.ClientOrderID + 9000,
			SymbolID:      order.SymbolID,
			ExecType:      schema.ExecTypeTrade,
			Status:        schema.OrderStatusFilled,
			CumQty:        order.Qty,
			LastQty:       order.Qty,
			LastPrice:     order.Price,
		})
	}
}

// runRoundTrip drives the rig through an entry and a profitable exit
// and returns it for inspection.
func runRoundTrip(t *testing.T) *rig {
	t.Helper()

	r := newRig(t, testConfig())

	for tick := 0; tick < 40; tick++ {
		if r.engine.Position().Position > 0 {
			// Bid through the profit target, spread too wide to re-enter.
			r.quote(t, 15100, 15120)
		} else if r.engine.Position().TradeCount >= 2 {
			r.quote(t, 15100, 15120)
		} else {
			r.quote(t, 15045, 15050)
		}
		r.step(t)
	}

	return r
}

func TestEngineRoundTrip(t *testing.T) {
	r := runRoundTrip(t)

	snap := r.engine.Position()
	if snap.Position != 0 {
		t.Fatalf("position = %d, want flat", snap.Position)
	}

	if snap.TradeCount != 2 {
		t.Fatalf("trade count = %d, want 2", snap.TradeCount)
	}

	wantRealized := schema.Notional(15100-15050)*100 - 200
	if snap.RealizedPnL != wantRealized {
		t.Fatalf("realized = %d, want %d", snap.RealizedPnL, wantRealized)
	}

	if snap.TotalFees != 400 {
		t.Fatalf("total fees = %d, want 400", snap.TotalFees)
	}

	lc := r.engine.LifecycleCounters()
	if lc.Sent != 2 || lc.Filled != 2 || lc.Rejected != 0 || lc.TimedOut != 0 {
		t.Fatalf("lifecycle counters = %+v", lc)
	}

	if r.engine.LifecycleState() != og.StateIdle {
		t.Fatalf("lifecycle state = %v, want idle", r.engine.LifecycleState())
	}

	fc := r.engine.FillCounters()
	if fc.Matched != 2 || fc.Unmatched != 0 || fc.Duplicates != 0 {
		t.Fatalf("fill counters = %+v", fc)
	}
}

func TestEngineMetricsMirrorPipeline(t *testing.T) {
	r := runRoundTrip(t)

	m := r.metrics.Snapshot()
	if m.OrdersSent != 2 || m.OrdersFilled != 2 {
		t.Fatalf("orders sent/filled = %d/%d, want 2/2", m.OrdersSent, m.OrdersFilled)
	}

	if m.FillsMatched != 2 {
		t.Fatalf("fills matched = %d, want 2", m.FillsMatched)
	}

	if m.Messages == 0 || m.BookUpdates == 0 {
		t.Fatalf("ingest metrics empty: %+v", m)
	}
}

func TestEngineOversizedIntentRejected(t *testing.T) {
	cfg := testConfig()
	// Clip above MaxPosition/2 trips the size check.
	cfg.Risk.MaxPosition = 150

	r := newRig(t, cfg)
	for tick := 0; tick < 20; tick++ {
		r.quote(t, 15045, 15050)
		r.step(t)
	}

	lc := r.engine.LifecycleCounters()
	if lc.Sent != 0 {
		t.Fatalf("sent = %d, want 0", lc.Sent)
	}

	if lc.Rejected == 0 {
		t.Fatalf("expected rejected orders")
	}

	if got := r.engine.Position().Position; got != 0 {
		t.Fatalf("position = %d, want 0", got)
	}
}

func TestEngineDuplicateReportIgnored(t *testing.T) {
	r := newRig(t, testConfig())

	var order schema.ExecReport
	for tick := 0; tick < 20; tick++ {
		r.quote(t, 15045, 15050)

		if len(r.pending) == 1 {
			order = r.pending[0]
			break
		}
		r.step(t)
	}

	if order.ClientOrderID == 0 {
		t.Fatalf("no order went out")
	}

	partial := order
	partial.ExecType = schema.ExecTypeTrade
	partial.Status = schema.OrderStatusPartFilled
	partial.CumQty = 40
	partial.LastQty = 40

	remainder := order
	remainder.LastQty = order.CumQty - partial.CumQty

	// Partial fill, a retransmission of it, then the remainder.
	r.pending = []schema.ExecReport{partial, partial, remainder}

	r.quote(t, 15045, 15050)
	r.step(t)

	fc := r.engine.FillCounters()
	if fc.Matched != 2 || fc.Duplicates != 1 || fc.Unmatched != 0 {
		t.Fatalf("fill counters = %+v, want 2 matched 1 duplicate", fc)
	}

	if got := r.engine.Position().Position; got != 100 {
		t.Fatalf("position = %d, want 100", got)
	}

	// The terminal state spends one tick before returning to idle.
	r.quote(t, 15045, 15050)
	r.step(t)

	if r.engine.LifecycleState() != og.StateIdle {
		t.Fatalf("lifecycle state = %v, want idle", r.engine.LifecycleState())
	}

	// A retransmission arriving after the order completed is still a
	// duplicate, and the position does not move.
	r.pending = []schema.ExecReport{remainder}
	r.quote(t, 15045, 15050)
	r.step(t)

	fc = r.engine.FillCounters()
	if fc.Duplicates != 2 || fc.Unmatched != 0 {
		t.Fatalf("fill counters = %+v, want 2 duplicates", fc)
	}

	if got := r.engine.Position().Position; got != 100 {
		t.Fatalf("position = %d, want 100", got)
	}
}

func TestEngineUndecodableReportCounted(t *testing.T) {
	r := newRig(t, testConfig())

	if err := r.reports.TryPublish(bus.Event{Payload: []byte{1, 2, 3}}); err != nil {
		t.Fatalf("publish garbage: %v", err)
	}

	r.quote(t, 15045, 15050)
	r.step(t)

	m := r.metrics.Snapshot()
	if m.DecodeErrors != 1 {
		t.Fatalf("decode errors = %d, want 1", m.DecodeErrors)
	}

	if m.FillsUnmatched != 0 {
		t.Fatalf("fills unmatched = %d, want 0", m.FillsUnmatched)
	}
}

func TestEngineFullTableSuppressesSend(t *testing.T) {
	cfg := testConfig()
	cfg.Lifecycle.FillTimeoutTicks = 3

	r := newRig(t, cfg)

	// Exhaust the order table before the strategy fires.
	for i := uint64(1); i <= fills.TableSize; i++ {
		intent := schema.OrderIntent{
			ClientOrderID: 9000 + i,
			SymbolID:      1,
			Side:          schema.SideBuy,
			Price:         15050,
			Qty:           10,
		}
		if err := r.engine.matcher.Track(intent); err != nil {
			t.Fatalf("track %d: %v", i, err)
		}
	}

	for tick := 0; tick < 20; tick++ {
		r.quote(t, 15045, 15050)
		r.step(t)

		if len(r.pending) != 0 {
			t.Fatalf("order dispatched with a full table")
		}
	}

	m := r.metrics.Snapshot()
	if m.TableFull == 0 {
		t.Fatalf("expected table-full drops, metrics = %+v", m)
	}

	if m.OrdersSent != 0 {
		t.Fatalf("orders sent = %d, want 0", m.OrdersSent)
	}

	if got := r.engine.Position().Position; got != 0 {
		t.Fatalf("position = %d, want 0", got)
	}

	// The timeout walks the machine back to idle after each attempt.
	if r.engine.LifecycleCounters().TimedOut == 0 {
		t.Fatalf("expected timed out attempts")
	}

	if out := r.engine.Outstanding(); out != fills.TableSize {
		t.Fatalf("outstanding slots = %d, want %d", out, fills.TableSize)
	}
}

func TestEngineDeterministicReplay(t *testing.T) {
	first := runRoundTrip(t)
	second := runRoundTrip(t)

	if first.engine.Position() != second.engine.Position() {
		t.Fatalf("snapshots diverge:\n%+v\n%+v",
			first.engine.Position(), second.engine.Position())
	}

	if first.engine.LifecycleCounters() != second.engine.LifecycleCounters() {
		t.Fatalf("lifecycle counters diverge")
	}

	if first.engine.Ticks() != second.engine.Ticks() {
		t.Fatalf("tick counts diverge")
	}
}

func TestEngineTimeoutReleasesSlot(t *testing.T) {
	cfg := testConfig()
	cfg.Lifecycle.FillTimeoutTicks = 3

	r := newRig(t, cfg)
	for tick := 0; tick < 30; tick++ {
		r.quote(t, 15045, 15050)

		// Never answer outbound orders.
		r.pending = r.pending[:0]
		r.step(t)
	}

	lc := r.engine.LifecycleCounters()
	if lc.TimedOut == 0 {
		t.Fatalf("expected timed out orders, counters = %+v", lc)
	}

	if got := r.engine.FillCounters().Matched; got != 0 {
		t.Fatalf("matched = %d, want 0", got)
	}

	if out := r.engine.Outstanding(); out != 0 {
		t.Fatalf("outstanding slots = %d, want 0", out)
	}
}
