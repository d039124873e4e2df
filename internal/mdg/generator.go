package mdg

import (
	"math/rand"
	"time"

	"main/internal/schema"
)

// RawTick is one quote as a feed would deliver it: decimal strings,
// not yet validated.
type RawTick struct {
	Symbol  string
	Bid     string
	BidSize string
	Ask     string
	AskSize string
	TsEvent int64
}

// GeneratorConfig tunes the synthetic quote stream. All price fields
// are scaled integers in the instrument's price scale.
type GeneratorConfig struct {
	Symbol     string
	PriceScale int
	QtyScale   int

	BasePrice int64
	Spread    int64
	Step      int64
	BaseSize  int64
	Seed      int64
}

// Generator produces a random-walk quote stream. Identical seeds
// produce identical streams.
type Generator struct {
	cfg GeneratorConfig
	rng *rand.Rand
	mid int64
	buf []byte
}

func NewGenerator(cfg GeneratorConfig) *Generator {
	if cfg.BaseSize <= 0 {
		cfg.BaseSize = 1
	}
	if cfg.Spread < 0 {
		cfg.Spread = 0
	}
	if cfg.Step <= 0 {
		cfg.Step = 1
	}

	return &Generator{
		cfg: cfg,
		rng: rand.New(rand.NewSource(cfg.Seed)),
		mid: cfg.BasePrice,
	}
}

// Next returns the next tick of the walk.
func (g *Generator) Next(now time.Time) RawTick {
	g.mid += g.rng.Int63n(2*g.cfg.Step+1) - g.cfg.Step
	if g.mid <= g.cfg.Spread {
		g.mid = g.cfg.Spread + 1
	}

	size := g.cfg.BaseSize + g.rng.Int63n(g.cfg.BaseSize)
	half := g.cfg.Spread / 2

	return RawTick{
		Symbol:  g.cfg.Symbol,
		Bid:     g.format(g.mid-half, g.cfg.PriceScale),
		BidSize: g.format(size, g.cfg.QtyScale),
		Ask:     g.format(g.mid-half+g.cfg.Spread, g.cfg.PriceScale),
		AskSize: g.format(size, g.cfg.QtyScale),
		TsEvent: now.UnixNano(),
	}
}

func (g *Generator) format(v int64, scale int) string {
	g.buf = schema.Price(v).AppendString(scale, g.buf[:0])
	return string(g.buf)
}
