package obs

import (
	"sync/atomic"
	"time"

	"main/internal/schema"
)

const maxRiskCode = int(schema.RiskCodeSizeLimit)

// Metrics collects the pipeline's monotonic counters and latency
// stats. All counters are process lifetime; none of the conditions
// they record is fatal.
type Metrics struct {
	messages         uint64
	bookUpdates      uint64
	bookImprovements uint64
	riskViolations   uint64
	riskCodeCounts   [maxRiskCode + 1]uint64
	ordersSent       uint64
	ordersFilled     uint64
	ordersRejected   uint64
	ordersTimedOut   uint64
	intentsDropped   uint64
	fillsMatched     uint64
	fillsUnmatched   uint64
	fillsDuplicate   uint64
	decodeErrors     uint64
	tableFull        uint64
	queueDrops       uint64

	tickLatency      LatencyStats
	roundTripLatency LatencyStats
}

// LatencyStats aggregates duration samples in nanoseconds.
type LatencyStats struct {
	count uint64
	sum   uint64
	min   uint64
	max   uint64
}

// LatencySnapshot is a point-in-time view of latency stats.
type LatencySnapshot struct {
	Count uint64
	Min   time.Duration
	Max   time.Duration
	Avg   time.Duration
}

// Snapshot captures the current metrics values.
type Snapshot struct {
	Messages         uint64
	BookUpdates      uint64
	BookImprovements uint64
	RiskViolations   uint64
	RiskCodeCounts   map[schema.RiskCode]uint64
	OrdersSent       uint64
	OrdersFilled     uint64
	OrdersRejected   uint64
	OrdersTimedOut   uint64
	IntentsDropped   uint64
	FillsMatched     uint64
	FillsUnmatched   uint64
	FillsDuplicate   uint64
	DecodeErrors     uint64
	TableFull        uint64
	QueueDrops       uint64
	TickLatency      LatencySnapshot
	RoundTripLatency LatencySnapshot
}

// NewMetrics allocates a metrics container.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// IncMessage counts one processed market data message.
func (m *Metrics) IncMessage() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.messages, 1)
}

// IncBookUpdate counts one applied book update; improved marks an
// update that changed the ranking.
func (m *Metrics) IncBookUpdate(improved bool) {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.bookUpdates, 1)
	if improved {
		atomic.AddUint64(&m.bookImprovements, 1)
	}
}

// ObserveRiskDecision folds one settled decision into the counters.
func (m *Metrics) ObserveRiskDecision(d schema.RiskDecision) {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.riskViolations, uint64(d.Violations))
	idx := int(d.Code)
	if idx >= 0 && idx < len(m.riskCodeCounts) {
		atomic.AddUint64(&m.riskCodeCounts[idx], 1)
	}
}

// IncOrderSent counts one outbound order.
func (m *Metrics) IncOrderSent() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.ordersSent, 1)
}

// IncOrderFilled counts one completed order lifecycle.
func (m *Metrics) IncOrderFilled() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.ordersFilled, 1)
}

// IncOrderRejected counts one risk-rejected lifecycle.
func (m *Metrics) IncOrderRejected() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.ordersRejected, 1)
}

// IncOrderTimedOut counts one lifecycle ended by the fill timeout.
func (m *Metrics) IncOrderTimedOut() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.ordersTimedOut, 1)
}

// IncIntentDropped counts an intent suppressed by the single-order
// in-flight rule.
func (m *Metrics) IncIntentDropped() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.intentsDropped, 1)
}

// IncFillMatched counts one matched execution report.
func (m *Metrics) IncFillMatched() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.fillsMatched, 1)
}

// IncFillUnmatched counts one dropped unmatched report.
func (m *Metrics) IncFillUnmatched() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.fillsUnmatched, 1)
}

// IncFillDuplicate counts one deduplicated report.
func (m *Metrics) IncFillDuplicate() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.fillsDuplicate, 1)
}

// IncDecodeError counts one inbound payload that failed to decode.
func (m *Metrics) IncDecodeError() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.decodeErrors, 1)
}

// IncTableFull counts one order that could not be tracked.
func (m *Metrics) IncTableFull() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.tableFull, 1)
}

// IncQueueDrop records a cross-context queue drop.
func (m *Metrics) IncQueueDrop() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.queueDrops, 1)
}

// ObserveTick measures one decision-context tick.
func (m *Metrics) ObserveTick(d time.Duration) {
	if m == nil {
		return
	}
	m.tickLatency.Observe(d)
}

// ObserveRoundTrip measures send-to-completion order latency.
func (m *Metrics) ObserveRoundTrip(d time.Duration) {
	if m == nil {
		return
	}
	m.roundTripLatency.Observe(d)
}

// Snapshot returns a copy of the current metrics values.
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	codes := make(map[schema.RiskCode]uint64)
	for i := range m.riskCodeCounts {
		if v := atomic.LoadUint64(&m.riskCodeCounts[i]); v > 0 {
			codes[schema.RiskCode(i)] = v
		}
	}
	return Snapshot{
		Messages:         atomic.LoadUint64(&m.messages),
		BookUpdates:      atomic.LoadUint64(&m.bookUpdates),
		BookImprovements: atomic.LoadUint64(&m.bookImprovements),
		RiskViolations:   atomic.LoadUint64(&m.riskViolations),
		RiskCodeCounts:   codes,
		OrdersSent:       atomic.LoadUint64(&m.ordersSent),
		OrdersFilled:     atomic.LoadUint64(&m.ordersFilled),
		OrdersRejected:   atomic.LoadUint64(&m.ordersRejected),
		OrdersTimedOut:   atomic.LoadUint64(&m.ordersTimedOut),
		IntentsDropped:   atomic.LoadUint64(&m.intentsDropped),
		FillsMatched:     atomic.LoadUint64(&m.fillsMatched),
		FillsUnmatched:   atomic.LoadUint64(&m.fillsUnmatched),
		FillsDuplicate:   atomic.LoadUint64(&m.fillsDuplicate),
		DecodeErrors:     atomic.LoadUint64(&m.decodeErrors),
		TableFull:        atomic.LoadUint64(&m.tableFull),
		QueueDrops:       atomic.LoadUint64(&m.queueDrops),
		TickLatency:      m.tickLatency.Snapshot(),
		RoundTripLatency: m.roundTripLatency.Snapshot(),
	}
}

// Observe records a duration sample.
func (l *LatencyStats) Observe(d time.Duration) {
	if d < 0 {
		return
	}
	nanos := uint64(d)
	atomic.AddUint64(&l.count, 1)
	atomic.AddUint64(&l.sum, nanos)

	for {
		min := atomic.LoadUint64(&l.min)
		if min != 0 && nanos >= min {
			break
		}
		if atomic.CompareAndSwapUint64(&l.min, min, nanos) {
			break
		}
	}

	for {
		max := atomic.LoadUint64(&l.max)
		if nanos <= max {
			break
		}
		if atomic.CompareAndSwapUint64(&l.max, max, nanos) {
			break
		}
	}
}

// Snapshot returns the aggregated latency stats.
func (l *LatencyStats) Snapshot() LatencySnapshot {
	count := atomic.LoadUint64(&l.count)
	if count == 0 {
		return LatencySnapshot{}
	}
	sum := atomic.LoadUint64(&l.sum)
	min := atomic.LoadUint64(&l.min)
	max := atomic.LoadUint64(&l.max)
	return LatencySnapshot{
		Count: count,
		Min:   time.Duration(min),
		Max:   time.Duration(max),
		Avg:   time.Duration(sum / count),
	}
}
