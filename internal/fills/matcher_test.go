package fills

import (
	"testing"

	"main/internal/schema"
)

func order(id uint64, qty schema.Quantity) schema.OrderIntent {
	return schema.OrderIntent{ClientOrderID: id, SymbolID: 1, Side: schema.SideBuy, Price: 15050, Qty: qty}
}

func report(id uint64, cum, last schema.Quantity, price schema.Price, status schema.OrderStatus) schema.ExecReport {
	return schema.ExecReport{
		ClientOrderID: id,
		OrderID:       id * 1000,
		SymbolID:      1,
		ExecType:      schema.ExecTypeTrade,
		Status:        status,
		CumQty:        cum,
		LastQty:       last,
		LastPrice:     price,
	}
}

func TestFullFillFreesSlotOnce(t *testing.T) {
	m := NewMatcher()
	if err := m.Track(order(1, 100)); err != nil {
		t.Fatalf("track: %v", err)
	}

	res := m.Apply(report(1, 100, 100, 15050, schema.OrderStatusFilled))
	if res.Fill == nil || res.Fill.Qty != 100 || res.Fill.Price != 15050 {
		t.Fatalf("result = %+v, want fill of 100 @ 15050", res)
	}
	if !res.Completed {
		t.Fatal("full fill must signal completion")
	}
	if m.Outstanding() != 0 {
		t.Fatalf("outstanding = %d, want 0", m.Outstanding())
	}

	// The same report again: the slot is retired but its identity
	// remains, so the repeat is a duplicate, not an unmatched report.
	res = m.Apply(report(1, 100, 100, 15050, schema.OrderStatusFilled))
	if res.Fill != nil || res.Completed {
		t.Fatalf("result = %+v, want drop", res)
	}
	c := m.Counters()
	if c.Matched != 1 || c.Duplicates != 1 || c.Unmatched != 0 {
		t.Fatalf("counters = %+v, want 1 matched 1 duplicate", c)
	}

	// Once the slot is reused the old identity is gone.
	if err := m.Track(order(2, 50)); err != nil {
		t.Fatalf("track: %v", err)
	}
	res = m.Apply(report(1, 100, 100, 15050, schema.OrderStatusFilled))
	if res.Fill != nil {
		t.Fatalf("result = %+v, want drop", res)
	}
	if c := m.Counters(); c.Unmatched != 1 {
		t.Fatalf("unmatched = %d, want 1", c.Unmatched)
	}
}

func TestRetiredOrderCannotFillFurther(t *testing.T) {
	m := NewMatcher()
	if err := m.Track(order(1, 100)); err != nil {
		t.Fatalf("track: %v", err)
	}
	if res := m.Apply(report(1, 100, 100, 15050, schema.OrderStatusFilled)); !res.Completed {
		t.Fatalf("completion expected, got %+v", res)
	}

	// Progress beyond a completed order is bogus, not a fill.
	res := m.Apply(report(1, 120, 20, 15050, schema.OrderStatusFilled))
	if res.Fill != nil || res.Completed {
		t.Fatalf("result = %+v, want drop", res)
	}
	if c := m.Counters(); c.Matched != 1 || c.Unmatched != 1 {
		t.Fatalf("counters = %+v", c)
	}
}

func TestDuplicateReportDedup(t *testing.T) {
	m := NewMatcher()
	if err := m.Track(order(1, 100)); err != nil {
		t.Fatalf("track: %v", err)
	}

	res := m.Apply(report(1, 40, 40, 15050, schema.OrderStatusPartFilled))
	if res.Fill == nil || res.Fill.Qty != 40 || res.Completed {
		t.Fatalf("result = %+v, want partial fill of 40", res)
	}

	// Replayed partial: cumulative qty did not advance.
	res = m.Apply(report(1, 40, 40, 15050, schema.OrderStatusPartFilled))
	if res.Fill != nil {
		t.Fatalf("duplicate produced a fill: %+v", res)
	}
	if c := m.Counters(); c.Duplicates != 1 {
		t.Fatalf("duplicates = %d, want 1", c.Duplicates)
	}

	// A lower cumulative qty is also a duplicate, not a correction.
	res = m.Apply(report(1, 30, 30, 15050, schema.OrderStatusPartFilled))
	if res.Fill != nil {
		t.Fatalf("stale report produced a fill: %+v", res)
	}

	// Progress resumes cleanly.
	res = m.Apply(report(1, 100, 60, 15051, schema.OrderStatusFilled))
	if res.Fill == nil || res.Fill.Qty != 60 || res.Fill.Price != 15051 || !res.Completed {
		t.Fatalf("result = %+v, want completing fill of 60 @ 15051", res)
	}
	c := m.Counters()
	if c.Matched != 2 || c.Duplicates != 2 {
		t.Fatalf("counters = %+v", c)
	}
}

func TestUnmatchedReportCountedAndDropped(t *testing.T) {
	m := NewMatcher()
	res := m.Apply(report(999, 10, 10, 15050, schema.OrderStatusFilled))
	if res.Fill != nil || res.Completed {
		t.Fatalf("result = %+v, want drop", res)
	}
	if c := m.Counters(); c.Unmatched != 1 {
		t.Fatalf("unmatched = %d, want 1", c.Unmatched)
	}
}

func TestTableCapacity(t *testing.T) {
	m := NewMatcher()
	for i := uint64(1); i <= TableSize; i++ {
		if err := m.Track(order(i, 10)); err != nil {
			t.Fatalf("track %d: %v", i, err)
		}
	}
	if err := m.Track(order(TableSize+1, 10)); err != ErrTableFull {
		t.Fatalf("err = %v, want ErrTableFull", err)
	}

	// Completing one order frees a slot for reuse.
	if res := m.Apply(report(3, 10, 10, 15050, schema.OrderStatusFilled)); !res.Completed {
		t.Fatalf("completion expected, got %+v", res)
	}
	if err := m.Track(order(TableSize+1, 10)); err != nil {
		t.Fatalf("track after free: %v", err)
	}
}

func TestReleaseFreesWithoutFill(t *testing.T) {
	m := NewMatcher()
	if err := m.Track(order(1, 10)); err != nil {
		t.Fatalf("track: %v", err)
	}
	if !m.Release(1) {
		t.Fatal("release should find the slot")
	}
	if m.Release(1) {
		t.Fatal("second release should find nothing")
	}
	if m.Outstanding() != 0 {
		t.Fatalf("outstanding = %d, want 0", m.Outstanding())
	}
}

func TestReleasedSlotKeepsDedupIdentity(t *testing.T) {
	m := NewMatcher()
	if err := m.Track(order(1, 100)); err != nil {
		t.Fatalf("track: %v", err)
	}
	if res := m.Apply(report(1, 40, 40, 15050, schema.OrderStatusPartFilled)); res.Fill == nil {
		t.Fatalf("partial fill expected, got %+v", res)
	}
	if !m.Release(1) {
		t.Fatal("release should find the slot")
	}

	// A replay of the pre-timeout partial is still a duplicate.
	if res := m.Apply(report(1, 40, 40, 15050, schema.OrderStatusPartFilled)); res.Fill != nil {
		t.Fatalf("result = %+v, want drop", res)
	}
	// A late fill after release produces nothing.
	if res := m.Apply(report(1, 100, 60, 15050, schema.OrderStatusFilled)); res.Fill != nil || res.Completed {
		t.Fatalf("result = %+v, want drop", res)
	}

	c := m.Counters()
	if c.Matched != 1 || c.Duplicates != 1 || c.Unmatched != 1 {
		t.Fatalf("counters = %+v", c)
	}
}

func TestFillSideComesFromTrackedOrder(t *testing.T) {
	m := NewMatcher()
	sell := schema.OrderIntent{ClientOrderID: 2, SymbolID: 1, Side: schema.SideSell, Price: 15045, Qty: 50}
	if err := m.Track(sell); err != nil {
		t.Fatalf("track: %v", err)
	}
	res := m.Apply(report(2, 50, 50, 15045, schema.OrderStatusFilled))
	if res.Fill == nil || res.Fill.Side != schema.SideSell {
		t.Fatalf("result = %+v, want sell fill", res)
	}
}
