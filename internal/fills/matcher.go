package fills

import (
	"errors"

	"main/internal/schema"
)

// TableSize is the fixed capacity of the outstanding order table.
const TableSize = 16

var ErrTableFull = errors.New("outstanding order table full")

type slot struct {
	clientOrderID uint64
	side          schema.Side
	originalQty   schema.Quantity
	filledQty     schema.Quantity
	price         schema.Price
	active        bool
}

// Result is the outcome of applying one execution report.
type Result struct {
	// Fill is the deduplicated incremental fill, nil for unmatched or
	// duplicate reports.
	Fill *schema.FillEvent
	// Completed is set when the report finished the order and freed
	// its slot.
	Completed     bool
	ClientOrderID uint64
}

// Counters are the monotonic matcher counters.
type Counters struct {
	Matched    uint64
	Unmatched  uint64
	Duplicates uint64
}

// Matcher reconciles execution reports against outstanding orders by
// client order id. The table is a small fixed array scanned linearly;
// at this bound a hash map buys nothing. Dedup is quantity based: a
// report only produces a fill event when its cumulative quantity
// exceeds what the table has already seen for that order, so replayed
// or repeated reports are counted and dropped. Completion retires the
// slot rather than erasing it: the order's identity and filled
// quantity stay visible to Apply, so a report replayed after the
// completing one still counts as a duplicate until the slot is
// reused.
type Matcher struct {
	slots    [TableSize]slot
	counters Counters
}

// NewMatcher creates an empty matcher.
func NewMatcher() *Matcher {
	return &Matcher{}
}

// Track allocates a slot for a sent order. It fails with ErrTableFull
// when all slots are occupied.
func (m *Matcher) Track(order schema.OrderIntent) error {
	for i := range m.slots {
		if m.slots[i].active {
			continue
		}
		m.slots[i] = slot{
			clientOrderID: order.ClientOrderID,
			side:          order.Side,
			originalQty:   order.Qty,
			price:         order.Price,
			active:        true,
		}
		return nil
	}
	return ErrTableFull
}

// Apply reconciles one execution report.
func (m *Matcher) Apply(report schema.ExecReport) Result {
	s := m.lookup(report.ClientOrderID)
	if s == nil {
		m.counters.Unmatched++
		return Result{}
	}

	if report.CumQty <= s.filledQty {
		m.counters.Duplicates++
		return Result{ClientOrderID: s.clientOrderID}
	}

	if !s.active {
		// A retired order cannot fill further; the report claims
		// quantity the order never reached.
		m.counters.Unmatched++
		return Result{}
	}

	fill := &schema.FillEvent{
		ClientOrderID: s.clientOrderID,
		SymbolID:      report.SymbolID,
		Side:          s.side,
		Price:         report.LastPrice,
		Qty:           report.LastQty,
	}
	s.filledQty = report.CumQty
	m.counters.Matched++

	result := Result{Fill: fill, ClientOrderID: s.clientOrderID}
	if report.CumQty >= s.originalQty || report.Status == schema.OrderStatusFilled {
		s.active = false
		result.Completed = true
	}
	return result
}

// Release retires the slot of an order that ended without completing,
// e.g. on a lifecycle timeout. Like completion it keeps the dedup
// identity until the slot is reused.
func (m *Matcher) Release(clientOrderID uint64) bool {
	if s := m.lookup(clientOrderID); s != nil && s.active {
		s.active = false
		return true
	}
	return false
}

func (m *Matcher) lookup(clientOrderID uint64) *slot {
	if clientOrderID == 0 {
		return nil
	}
	for i := range m.slots {
		if m.slots[i].clientOrderID == clientOrderID {
			return &m.slots[i]
		}
	}
	return nil
}

// Outstanding returns the number of active slots.
func (m *Matcher) Outstanding() int {
	n := 0
	for i := range m.slots {
		if m.slots[i].active {
			n++
		}
	}
	return n
}

// Counters returns the monotonic matcher counters.
func (m *Matcher) Counters() Counters {
	return m.counters
}
