package position

import (
	"testing"

	"main/internal/schema"
)

// Prices use scale 2, fees and PnL price*qty units.
const fee schema.Fee = 200

func buy(qty schema.Quantity, price schema.Price) schema.FillEvent {
	return schema.FillEvent{ClientOrderID: 1, SymbolID: 1, Side: schema.SideBuy, Price: price, Qty: qty}
}

func sell(qty schema.Quantity, price schema.Price) schema.FillEvent {
	return schema.FillEvent{ClientOrderID: 1, SymbolID: 1, Side: schema.SideSell, Price: price, Qty: qty}
}

func TestOpenFromFlat(t *testing.T) {
	tr := NewTracker(Config{FeePerFill: fee})
	tr.ApplyFill(buy(100, 15050))

	s := tr.Snapshot()
	if s.Position != 100 || s.AvgEntryPrice != 15050 {
		t.Fatalf("snapshot = %+v, want position 100 @ 15050", s)
	}
	if s.RealizedPnL != 0 {
		t.Fatalf("realized = %d, want 0: opening fills realize nothing", s.RealizedPnL)
	}
	if s.TradeCount != 1 || s.TotalFees != fee {
		t.Fatalf("trades = %d fees = %d, want 1 and %d", s.TradeCount, s.TotalFees, fee)
	}
}

func TestRoundTripRealizesPnL(t *testing.T) {
	tr := NewTracker(Config{FeePerFill: fee})
	tr.ApplyFill(buy(100, 15050))
	tr.ApplyFill(sell(100, 15100))

	s := tr.Snapshot()
	if s.Position != 0 {
		t.Fatalf("position = %d, want 0", s.Position)
	}
	// (151.00 - 150.50) * 100 - fee
	want := schema.Notional(15100-15050)*100 - schema.Notional(fee)
	if s.RealizedPnL != want {
		t.Fatalf("realized = %d, want %d", s.RealizedPnL, want)
	}
	if s.AvgEntryPrice != 0 {
		t.Fatalf("avg entry = %d, want reset to 0 on flat", s.AvgEntryPrice)
	}
	if s.UnrealizedPnL != 0 {
		t.Fatalf("unrealized = %d, want 0 when flat", s.UnrealizedPnL)
	}
	if s.TradeCount != 2 || s.TotalFees != 2*fee {
		t.Fatalf("trades = %d fees = %d", s.TradeCount, s.TotalFees)
	}
}

func TestAddsDoNotReaverage(t *testing.T) {
	tr := NewTracker(Config{FeePerFill: fee})
	tr.ApplyFill(buy(100, 15050))
	tr.ApplyFill(buy(100, 15150))

	s := tr.Snapshot()
	if s.Position != 200 {
		t.Fatalf("position = %d, want 200", s.Position)
	}
	if s.AvgEntryPrice != 15050 {
		t.Fatalf("avg entry = %d, want 15050 held unchanged on add", s.AvgEntryPrice)
	}
	if s.RealizedPnL != 0 {
		t.Fatalf("realized = %d, want 0", s.RealizedPnL)
	}
}

func TestUnrealizedMarkToMarket(t *testing.T) {
	tr := NewTracker(Config{FeePerFill: fee})
	tr.ApplyFill(buy(100, 15050))

	tr.Mark(15080)
	if got := tr.Snapshot().UnrealizedPnL; got != schema.Notional(15080-15050)*100 {
		t.Fatalf("unrealized = %d, want %d", got, schema.Notional(15080-15050)*100)
	}
	tr.Mark(15020)
	if got := tr.Snapshot().UnrealizedPnL; got != schema.Notional(15020-15050)*100 {
		t.Fatalf("unrealized = %d, want %d", got, schema.Notional(15020-15050)*100)
	}
}

func TestFlipResetsEntryToFillPrice(t *testing.T) {
	tr := NewTracker(Config{})
	tr.ApplyFill(buy(100, 15050))
	tr.ApplyFill(sell(150, 15100))

	s := tr.Snapshot()
	if s.Position != -50 {
		t.Fatalf("position = %d, want -50", s.Position)
	}
	if s.AvgEntryPrice != 15100 {
		t.Fatalf("avg entry = %d, want 15100 after flip", s.AvgEntryPrice)
	}
}

func TestShortSideAccounting(t *testing.T) {
	tr := NewTracker(Config{})
	tr.ApplyFill(sell(100, 15100))
	tr.ApplyFill(buy(100, 15050))

	s := tr.Snapshot()
	if s.Position != 0 {
		t.Fatalf("position = %d, want 0", s.Position)
	}
	// (entry - cover) * qty for a buy reducing a short.
	if want := schema.Notional(15100-15050) * 100; s.RealizedPnL != want {
		t.Fatalf("realized = %d, want %d", s.RealizedPnL, want)
	}
}

func TestDeterministicReplay(t *testing.T) {
	run := func() Snapshot {
		tr := NewTracker(Config{FeePerFill: fee})
		tr.ApplyFill(buy(100, 15050))
		tr.Mark(15060)
		tr.ApplyFill(buy(50, 15070))
		tr.ApplyFill(sell(150, 15120))
		tr.Mark(15110)
		return tr.Snapshot()
	}
	a, b := run(), run()
	if a != b {
		t.Fatalf("replay mismatch: %+v vs %+v", a, b)
	}
}
