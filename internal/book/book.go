package book

import "main/internal/schema"

// Depth is the fixed number of ranked levels kept per side.
const Depth = 10

// PriceLevel is one ranked (price, quantity) entry owned by a side.
type PriceLevel struct {
	Price schema.Price
	Qty   schema.Quantity
}

// TopOfBook is an immutable snapshot of the best bid/ask pair.
type TopOfBook struct {
	BidPrice schema.Price
	BidQty   schema.Quantity
	AskPrice schema.Price
	AskQty   schema.Quantity
	Valid    bool
}

// Spread returns ask minus bid.
func (t TopOfBook) Spread() schema.Price {
	return t.AskPrice - t.BidPrice
}

// Mid returns the midpoint price. Only meaningful when Valid.
func (t TopOfBook) Mid() schema.Price {
	return (t.BidPrice + t.AskPrice) / 2
}

// Book keeps the top Depth bid/ask levels of a single instrument.
// Bids are descending by price, asks ascending; index 0 is the best
// available price on each side. Only a strictly better price changes
// the ranking: it shifts the side down by one and lands at index 0.
// Depth beyond an improvement of the current best is not modeled.
type Book struct {
	bids    [Depth]PriceLevel
	asks    [Depth]PriceLevel
	updates uint64
}

// New creates an empty book.
func New() *Book {
	return &Book{}
}

// Apply processes one market update and reports whether the ranking
// changed. Updates that do not improve the current best are valid
// messages (they count toward Updates) but leave the levels untouched.
func (b *Book) Apply(u schema.MarketUpdate) bool {
	if !u.Valid() {
		return false
	}
	b.updates++

	switch u.Side {
	case schema.SideBuy:
		if b.bids[0].Qty != 0 && u.Price <= b.bids[0].Price {
			return false
		}
		shiftDown(&b.bids, PriceLevel{Price: u.Price, Qty: u.Qty})
		return true
	case schema.SideSell:
		if b.asks[0].Qty != 0 && u.Price >= b.asks[0].Price {
			return false
		}
		shiftDown(&b.asks, PriceLevel{Price: u.Price, Qty: u.Qty})
		return true
	default:
		return false
	}
}

func shiftDown(levels *[Depth]PriceLevel, best PriceLevel) {
	copy(levels[1:], levels[:Depth-1])
	levels[0] = best
}

// Top returns the current top-of-book snapshot. Valid holds iff both
// sides have a non-zero best quantity.
func (b *Book) Top() TopOfBook {
	top := TopOfBook{
		BidPrice: b.bids[0].Price,
		BidQty:   b.bids[0].Qty,
		AskPrice: b.asks[0].Price,
		AskQty:   b.asks[0].Qty,
	}
	top.Valid = top.BidQty != 0 && top.AskQty != 0
	return top
}

// Bids returns a copy of the bid levels, best first.
func (b *Book) Bids() [Depth]PriceLevel {
	return b.bids
}

// Asks returns a copy of the ask levels, best first.
func (b *Book) Asks() [Depth]PriceLevel {
	return b.asks
}

// Updates returns the count of valid updates applied.
func (b *Book) Updates() uint64 {
	return b.updates
}

// Reset clears all levels and counters.
func (b *Book) Reset() {
	*b = Book{}
}
