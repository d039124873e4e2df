package core

import (
	"context"
	"time"

	"github.com/yanun0323/errors"

	"main/internal/book"
	"main/internal/bus"
	"main/internal/codec"
	"main/internal/fills"
	"main/internal/obs"
	"main/internal/og"
	"main/internal/position"
	"main/internal/risk"
	"main/internal/schema"
	"main/internal/strategy"
)

// RecordFunc persists one event. Nil disables recording.
type RecordFunc func(header schema.EventHeader, payload []byte) error

// Config carries the tunables of one decision context.
type Config struct {
	SymbolID uint32
	Source   uint16

	Strategy  strategy.Config
	Risk      risk.Config
	Lifecycle og.Config

	// FeePerFill is charged on every fill applied to the position.
	FeePerFill schema.Fee
}

// Deps wires the engine to its surroundings. Top and Reports are
// required, the rest is optional.
type Deps struct {
	Top     *bus.Latch[book.TopOfBook]
	Reports *bus.Queue
	Egress  *bus.Queue
	Metrics *obs.Metrics
	Trace   *obs.TraceGenerator
	Record  RecordFunc
}

// Engine is the decision context. All methods must be called from a
// single goroutine.
type Engine struct {
	cfg Config

	strat   *strategy.Engine
	risk    *risk.Evaluator
	machine *og.Machine
	matcher *fills.Matcher
	tracker *position.Tracker

	top     *bus.Latch[book.TopOfBook]
	reports *bus.Queue
	egress  *bus.Queue
	metrics *obs.Metrics
	trace   *obs.TraceGenerator
	record  RecordFunc

	seq     uint64
	ticks   uint64
	sentAt  time.Time
	scratch []byte
}

func NewEngine(cfg Config, deps Deps) (*Engine, error) {
	if deps.Top == nil {
		return nil, errors.New("core: top-of-book latch is required")
	}

	if deps.Reports == nil {
		return nil, errors.New("core: reports queue is required")
	}

	if cfg.Lifecycle.SymbolID == 0 {
		cfg.Lifecycle.SymbolID = cfg.SymbolID
	}

	return &Engine{
		cfg:     cfg,
		strat:   strategy.NewEngine(cfg.Strategy),
		risk:    risk.NewEvaluator(cfg.Risk),
		machine: og.NewMachine(cfg.Lifecycle),
		matcher: fills.NewMatcher(),
		tracker: position.NewTracker(position.Config{FeePerFill: cfg.FeePerFill}),
		top:     deps.Top,
		reports: deps.Reports,
		egress:  deps.Egress,
		metrics: deps.Metrics,
		trace:   deps.Trace,
		record:  deps.Record,
		scratch: make([]byte, 0, 64),
	}, nil
}

// Tick advances the decision context by one tick.
//
// Ordering inside a tick is fixed: settle cross-context inputs first,
// reconcile inbound execution reports against the previous position,
// then let the strategy, the risk pipeline and the order lifecycle
// compute from that committed snapshot. Updates applied here become
// visible to those components at the next tick.
func (e *Engine) Tick() error {
	start := time.Now()

	top, _ := e.top.Sync()
	snap := e.tracker.Snapshot()

	completed, err := e.reconcileReports()
	if err != nil {
		return err
	}

	if top.Valid {
		e.tracker.Mark(top.Mid())
	}

	intent := e.strat.Tick(top, snap.Position)
	if intent.Valid && e.machine.State() != og.StateIdle {
		e.metrics.IncIntentDropped()
	}

	decision, ready := e.risk.Advance()
	if ready {
		e.metrics.ObserveRiskDecision(decision)
	}

	eff := e.machine.Tick(og.Inputs{
		Intent:        intent,
		Decision:      decision,
		DecisionReady: ready,
		Top:           top,
		FillCompleted: completed,
	})

	if eff.SubmitRisk {
		e.risk.Capture(risk.Request{
			Side:          intent.Side,
			Qty:           intent.Qty,
			Price:         top.Mid(),
			Position:      snap.Position,
			RealizedPnL:   snap.RealizedPnL,
			UnrealizedPnL: snap.UnrealizedPnL,
		})
	}

	if eff.Send != nil {
		if err := e.sendOrder(*eff.Send); err != nil {
			return err
		}
	}

	switch eff.Ended {
	case og.StateFilled:
		e.metrics.IncOrderFilled()
		if !e.sentAt.IsZero() {
			e.metrics.ObserveRoundTrip(time.Since(e.sentAt))
			e.sentAt = time.Time{}
		}
	case og.StateRejected:
		e.metrics.IncOrderRejected()
	case og.StateTimedOut:
		e.metrics.IncOrderTimedOut()
		e.matcher.Release(eff.EndedOrderID)
	}

	e.ticks++
	e.metrics.ObserveTick(time.Since(start))

	return nil
}

// reconcileReports drains the inbound report queue and applies every
// resulting fill to the position. It reports whether the in-flight
// order completed this tick.
func (e *Engine) reconcileReports() (bool, error) {
	completed := false

	for {
		ev, ok := e.reports.TryConsume()
		if !ok {
			return completed, nil
		}

		report, ok := codec.DecodeExecReport(ev.Payload)
		if !ok {
			// A mangled payload says nothing about order matching;
			// it gets its own counter.
			e.metrics.IncDecodeError()
			continue
		}

		res := e.matcher.Apply(report)
		switch {
		case res.Fill != nil:
			e.metrics.IncFillMatched()

			fill := *res.Fill
			fill.Fee = e.cfg.FeePerFill
			e.tracker.ApplyFill(fill)

			if err := e.recordEvent(schema.EventFill, codec.EncodeFill(e.scratch, fill)); err != nil {
				return completed, err
			}
		case res.ClientOrderID != 0:
			e.metrics.IncFillDuplicate()
		default:
			e.metrics.IncFillUnmatched()
		}

		if res.Completed && res.ClientOrderID == e.machine.InFlight() {
			completed = true
		}
	}
}

func (e *Engine) sendOrder(order schema.OrderIntent) error {
	if err := e.matcher.Track(order); err != nil {
		// No slot means no way to reconcile the fills; dropping the
		// order beats dispatching one we cannot track. The lifecycle
		// timeout returns the machine to idle.
		e.metrics.IncTableFull()
		return nil
	}

	e.metrics.IncOrderSent()
	e.sentAt = time.Now()

	payload := codec.EncodeOrderIntent(nil, order)
	if e.egress != nil {
		header := e.nextHeader(schema.EventOrderIntent)
		if err := e.egress.TryPublish(bus.Event{Header: header, Payload: payload}); err != nil {
			e.metrics.IncQueueDrop()
		}
	}

	return e.recordEvent(schema.EventOrderIntent, payload)
}

func (e *Engine) recordEvent(t schema.EventType, payload []byte) error {
	if e.record == nil {
		return nil
	}

	header := e.nextHeader(t)
	if err := e.record(header, payload); err != nil {
		return errors.Wrap(err, "record event")
	}

	return nil
}

func (e *Engine) nextHeader(t schema.EventType) schema.EventHeader {
	e.seq++

	now := time.Now().UnixNano()
	header := schema.NewHeader(t, e.cfg.Source, e.seq, now, now)
	if e.trace != nil {
		header.TraceID = e.trace.Next()
	}

	return header
}

// Run ticks the engine at a fixed interval until ctx is canceled.
func (e *Engine) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := e.Tick(); err != nil {
				return err
			}
		}
	}
}

// Position returns the committed position snapshot.
func (e *Engine) Position() position.Snapshot { return e.tracker.Snapshot() }

// RestorePosition seeds the tracker, used after recovery.
func (e *Engine) RestorePosition(snap position.Snapshot) { e.tracker.Restore(snap) }

// SeedSequence moves the event sequence past already persisted events.
func (e *Engine) SeedSequence(lastSeq uint64) { e.seq = lastSeq }

// LifecycleState exposes the order lifecycle state for reporting.
func (e *Engine) LifecycleState() og.State { return e.machine.State() }

// LifecycleCounters exposes the order lifecycle counters.
func (e *Engine) LifecycleCounters() og.Counters { return e.machine.Counters() }

// FillCounters exposes the fill matcher counters.
func (e *Engine) FillCounters() fills.Counters { return e.matcher.Counters() }

// Outstanding returns the number of occupied fill table slots.
func (e *Engine) Outstanding() int { return e.matcher.Outstanding() }

// Ticks returns the number of completed decision ticks.
func (e *Engine) Ticks() uint64 { return e.ticks }

// Sequence returns the last event sequence number issued.
func (e *Engine) Sequence() uint64 { return e.seq }
