// Paper runs the full decision pipeline against a synthetic feed in a
// single goroutine: every loop iteration is one market tick, one
// decision tick and one venue response. Identical seeds produce
// identical sessions, which makes it the tool for comparing strategy
// or risk parameter changes.
package main

import (
	"flag"
	"os"
	"time"

	"github.com/yanun0323/logs"

	"main/internal/book"
	"main/internal/bus"
	"main/internal/chaos"
	"main/internal/codec"
	"main/internal/core"
	"main/internal/mdg"
	"main/internal/obs"
	"main/internal/ops"
	"main/internal/schema"
)

func main() {
	if err := run(); err != nil {
		logs.Errorf("paper: %v", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "config.json", "Path to JSON config")
	ticks := flag.Int("ticks", 100_000, "Number of simulated ticks")
	seed := flag.Int64("seed", 1, "Synthetic feed seed")
	chaosDrop := flag.Float64("chaos-drop", 0, "Venue report drop rate [0,1]")
	chaosDup := flag.Float64("chaos-dup", 0, "Venue report duplicate rate [0,1]")
	chaosReorder := flag.Int("chaos-reorder", 0, "Venue report reorder window (<=1 disables)")
	flag.Parse()

	loaded, err := ops.Load(*configPath)
	if err != nil {
		return err
	}

	var injector *chaos.Injector
	if *chaosDrop > 0 || *chaosDup > 0 || *chaosReorder > 1 {
		injector, err = chaos.NewInjector(chaos.Config{
			Seed:          *seed,
			DropRate:      *chaosDrop,
			DuplicateRate: *chaosDup,
			ReorderWindow: *chaosReorder,
		})
		if err != nil {
			return err
		}
	}

	inst := loaded.Instrument
	gen := mdg.NewGenerator(mdg.GeneratorConfig{
		Symbol:     inst.Name,
		PriceScale: inst.PriceScale,
		QtyScale:   inst.QuantityScale,
		BasePrice:  loaded.Feed.BasePrice,
		Spread:     loaded.Feed.Spread,
		Step:       loaded.Feed.Step,
		BaseSize:   loaded.Feed.BaseSize,
		Seed:       *seed,
	})
	norm := mdg.NewNormalizer(mdg.NormalizerConfig{
		Symbol:     inst.Name,
		SymbolID:   inst.SymbolID,
		PriceScale: inst.PriceScale,
		QtyScale:   inst.QuantityScale,
	})

	top := bus.NewLatch[book.TopOfBook]()
	reports := bus.NewQueue(loaded.Queues.Reports)
	egress := bus.NewQueue(loaded.Queues.Egress)
	metrics := obs.NewMetrics()

	engine, err := core.NewEngine(loaded.Core, core.Deps{
		Top:     top,
		Reports: reports,
		Egress:  egress,
		Metrics: metrics,
	})
	if err != nil {
		return err
	}

	ingest := core.NewIngest(loaded.Core.Source, top, metrics, nil)

	started := time.Now()
	var orderSeq uint64
	var pending []schema.ExecReport

	for i := 0; i < *ticks; i++ {
		updates, err := norm.Normalize(gen.Next(started))
		if err != nil {
			return err
		}
		for _, u := range updates {
			if err := ingest.Apply(u, nil); err != nil {
				return err
			}
		}

		for _, report := range pending {
			if err := reports.TryPublish(bus.Event{Payload: codec.EncodeExecReport(nil, report)}); err != nil {
				return err
			}
		}
		pending = pending[:0]

		if err := engine.Tick(); err != nil {
			return err
		}

		for {
			ev, ok := egress.TryConsume()
			if !ok {
				break
			}

			order, ok := codec.DecodeOrderIntent(ev.Payload)
			if !ok {
				continue
			}

			orderSeq++
			report := schema.ExecReport{
				ClientOrderID: order.ClientOrderID,
				OrderID:       orderSeq,
				SymbolID:      order.SymbolID,
				ExecType:      schema.ExecTypeTrade,
				Status:        schema.OrderStatusFilled,
				CumQty:        order.Qty,
				LastQty:       order.Qty,
				LastPrice:     order.Price,
			}
			if injector != nil {
				pending = append(pending, injector.Process(report)...)
			} else {
				pending = append(pending, report)
			}
		}
	}

	elapsed := time.Since(started)
	snap := engine.Position()
	lc := engine.LifecycleCounters()
	m := metrics.Snapshot()

	logs.Infof("simulated %d ticks in %s (%.0f ticks/s)", *ticks, elapsed, float64(*ticks)/elapsed.Seconds())
	logs.Infof("orders: sent=%d filled=%d rejected=%d timed_out=%d", lc.Sent, lc.Filled, lc.Rejected, lc.TimedOut)
	fc := engine.FillCounters()
	logs.Infof("fills: matched=%d unmatched=%d duplicates=%d", fc.Matched, fc.Unmatched, fc.Duplicates)
	logs.Infof("risk violations: %d %v", m.RiskViolations, m.RiskCodeCounts)
	logs.Infof("position: qty=%s avg_entry=%s realized=%s fees=%s trades=%d",
		string(snap.Position.AppendString(inst.QuantityScale, nil)),
		string(snap.AvgEntryPrice.AppendString(inst.PriceScale, nil)),
		string(snap.RealizedPnL.AppendString(inst.NotionalScale, nil)),
		string(snap.TotalFees.AppendString(inst.FeeScale, nil)),
		snap.TradeCount)

	return nil
}
