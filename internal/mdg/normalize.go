package mdg

import (
	"github.com/yanun0323/errors"

	"main/internal/schema"
)

// NormalizerConfig binds a feed symbol to its internal identity and
// scales.
type NormalizerConfig struct {
	Symbol     string
	SymbolID   uint32
	PriceScale int
	QtyScale   int
}

// Normalizer converts raw feed ticks into market updates.
type Normalizer struct {
	cfg NormalizerConfig
}

func NewNormalizer(cfg NormalizerConfig) *Normalizer {
	return &Normalizer{cfg: cfg}
}

// Normalize converts one raw tick into its bid and ask updates. Ticks
// for other symbols and unparsable prices are rejected; the caller
// drops those without touching the book.
func (n *Normalizer) Normalize(tick RawTick) ([2]schema.MarketUpdate, error) {
	var out [2]schema.MarketUpdate

	if tick.Symbol != n.cfg.Symbol {
		return out, errors.Errorf("unknown symbol %q", tick.Symbol)
	}

	bid, err := n.level(schema.SideBuy, tick.Bid, tick.BidSize)
	if err != nil {
		return out, errors.Wrap(err, "bid")
	}

	ask, err := n.level(schema.SideSell, tick.Ask, tick.AskSize)
	if err != nil {
		return out, errors.Wrap(err, "ask")
	}

	out[0], out[1] = bid, ask

	return out, nil
}

func (n *Normalizer) level(side schema.Side, price, size string) (schema.MarketUpdate, error) {
	p, err := schema.ParseScaled(price, n.cfg.PriceScale)
	if err != nil {
		return schema.MarketUpdate{}, errors.Wrap(err, "parse price")
	}

	q, err := schema.ParseScaled(size, n.cfg.QtyScale)
	if err != nil {
		return schema.MarketUpdate{}, errors.Wrap(err, "parse size")
	}

	if p <= 0 || q < 0 {
		return schema.MarketUpdate{}, errors.New("non-positive price")
	}

	return schema.MarketUpdate{
		SymbolID: n.cfg.SymbolID,
		Side:     side,
		Flags:    schema.UpdateFlagValid,
		Price:    schema.Price(p),
		Qty:      schema.Quantity(q),
	}, nil
}
