package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	pyroscope "github.com/grafana/pyroscope-go"
	"github.com/yanun0323/logs"
	"github.com/yanun0323/pkg/sys"

	"main/internal/book"
	"main/internal/bus"
	"main/internal/codec"
	"main/internal/core"
	"main/internal/journal"
	"main/internal/mdg"
	"main/internal/obs"
	"main/internal/ops"
	"main/internal/position"
	"main/internal/recorder"
	"main/internal/schema"
	"main/internal/state"

	"main/pkg/conn"
)

func main() {
	if err := run(); err != nil {
		logs.Errorf("trader: %v", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "config.json", "Path to JSON config")
	tickInterval := flag.Duration("tick-interval", time.Millisecond, "Decision tick interval")
	duration := flag.Duration("duration", 0, "Session length (0=until interrupt)")
	seed := flag.Int64("seed", 1, "Synthetic feed seed")
	recoverEnabled := flag.Bool("recover", false, "Recover position from snapshot + event log")
	snapshotPath := flag.String("snapshot-path", "", "Position snapshot path (default: <recorder-dir>/position.json)")

	replayDir := flag.String("replay-dir", "", "Event log directory for replay mode")
	replayPrefix := flag.String("replay-prefix", "", "Event log file prefix (default: events)")
	replaySpeed := flag.Float64("replay-speed", 0, "Playback speed (1=real-time, 0=no pacing)")
	replayNoChecksum := flag.Bool("replay-no-checksum", false, "Disable checksum validation")
	replayVerify := flag.Bool("replay-verify-snapshot", true, "Verify replayed position against snapshot")
	flag.Parse()

	loaded, err := ops.Load(*configPath)
	if err != nil {
		return err
	}

	if *replayDir != "" {
		return runReplay(context.Background(), recorder.PlaybackConfig{
			Dir:             *replayDir,
			FilePrefix:      *replayPrefix,
			Speed:           *replaySpeed,
			DisableChecksum: *replayNoChecksum,
		}, loaded.Core.FeePerFill, resolveSnapshotPath(*replayDir, *snapshotPath), *replayVerify)
	}

	return runSession(loaded, sessionOptions{
		tickInterval: *tickInterval,
		duration:     *duration,
		seed:         *seed,
		recover:      *recoverEnabled,
		snapshotPath: resolveSnapshotPath(loaded.Recorder.Dir, *snapshotPath),
	})
}

type sessionOptions struct {
	tickInterval time.Duration
	duration     time.Duration
	seed         int64
	recover      bool
	snapshotPath string
}

func runSession(loaded ops.Loaded, opts sessionOptions) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if opts.duration > 0 {
		ctx, cancel = context.WithTimeout(ctx, opts.duration)
		defer cancel()
	}

	if addr := loaded.Profiling.ServerAddress; addr != "" {
		profiler, err := pyroscope.Start(pyroscope.Config{
			ApplicationName: "trader",
			ServerAddress:   addr,
			Tags:            map[string]string{"symbol": loaded.Instrument.Name},
			Logger:          emptyLogger{},
			ProfileTypes: []pyroscope.ProfileType{
				pyroscope.ProfileCPU,
				pyroscope.ProfileAllocObjects,
				pyroscope.ProfileAllocSpace,
				pyroscope.ProfileInuseObjects,
				pyroscope.ProfileInuseSpace,
			},
		})
		if err != nil {
			return fmt.Errorf("start profiler: %w", err)
		}
		defer func() { _ = profiler.Stop() }()
	}

	writer, err := recorder.NewWriter(loaded.Recorder)
	if err != nil {
		return err
	}

	var jnl *journal.Journal
	if dsn := loaded.Journal.DSN; dsn != "" {
		jnl, err = journal.Open(conn.Option{ConnString: dsn}, loaded.Instrument.Name)
		if err != nil {
			return err
		}
		defer func() { _ = jnl.Close() }()
	}

	top := bus.NewLatch[book.TopOfBook]()
	reports := bus.NewQueue(loaded.Queues.Reports)
	egress := bus.NewQueue(loaded.Queues.Egress)
	recordQueue := bus.NewQueue(loaded.Queues.Reports)
	metrics := obs.NewMetrics()

	engine, err := core.NewEngine(loaded.Core, core.Deps{
		Top:     top,
		Reports: reports,
		Egress:  egress,
		Metrics: metrics,
		Trace:   obs.NewTraceGenerator(uint64(time.Now().UnixNano())),
		Record:  recordThrough(recordQueue, metrics),
	})
	if err != nil {
		return err
	}

	if opts.recover {
		recovered, err := state.RecoverPosition(ctx, state.RecoverConfig{
			LogDir:       loaded.Recorder.Dir,
			SnapshotPath: opts.snapshotPath,
			FilePrefix:   loaded.Recorder.FilePrefix,
			Fee:          loaded.Core.FeePerFill,
		})
		if err != nil {
			return err
		}

		engine.RestorePosition(recovered.Tracker.Snapshot())
		engine.SeedSequence(recovered.LastSeq)
		logs.Infof("recovered position=%d last_seq=%d", recovered.Tracker.Snapshot().Position, recovered.LastSeq)
	}

	startedAt := time.Now().UTC()
	errCh := make(chan error, 3)
	var wg sync.WaitGroup

	// Record consumer: a single goroutine owns the writer and the
	// journal so neither sits on the tick path.
	wg.Add(1)
	go func() {
		defer wg.Done()
		recordQueue.Run(ctx, func(e bus.Event) {
			if err := writer.Append(e.Header, e.Payload); err != nil {
				pushErr(errCh, err)
				return
			}
			if jnl != nil && e.Header.Type == schema.EventFill {
				if fill, ok := codec.DecodeFill(e.Payload); ok {
					if err := jnl.RecordFill(e.Header.Seq, fill); err != nil {
						logs.Errorf("journal fill: %v", err)
					}
				}
			}
		})
	}()

	// Ingest context: synthetic feed into the book.
	wg.Add(1)
	go func() {
		defer wg.Done()
		runFeed(ctx, loaded, opts, top, metrics)
	}()

	// Simulated venue: answers outbound orders with full fills.
	wg.Add(1)
	go func() {
		defer wg.Done()
		runVenue(ctx, opts.tickInterval, egress, reports)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := engine.Run(ctx, opts.tickInterval); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			pushErr(errCh, err)
		}
		cancel()
	}()

	logs.Infof("session started symbol=%s tick=%s", loaded.Instrument.Name, opts.tickInterval)

	select {
	case <-sys.Shutdown():
		logs.Info("shutdown signal received")
	case <-ctx.Done():
	case err := <-errCh:
		cancel()
		wg.Wait()
		_ = writer.Close()
		return err
	}

	cancel()
	recordQueue.Close()
	wg.Wait()

	if err := writer.Close(); err != nil {
		return err
	}

	snap := engine.Position()
	if err := state.WriteSnapshot(opts.snapshotPath, state.FromPosition(snap, engine.Sequence())); err != nil {
		return err
	}

	if jnl != nil {
		if err := jnl.CloseSession(startedAt, snap); err != nil {
			logs.Errorf("journal session: %v", err)
		}
	}

	logSummary(loaded, engine, metrics, snap)

	return nil
}

// runFeed drives the ingest context from the synthetic generator.
func runFeed(ctx context.Context, loaded ops.Loaded, opts sessionOptions, top *bus.Latch[book.TopOfBook], metrics *obs.Metrics) {
	inst := loaded.Instrument
	gen := mdg.NewGenerator(mdg.GeneratorConfig{
		Symbol:     inst.Name,
		PriceScale: inst.PriceScale,
		QtyScale:   inst.QuantityScale,
		BasePrice:  loaded.Feed.BasePrice,
		Spread:     loaded.Feed.Spread,
		Step:       loaded.Feed.Step,
		BaseSize:   loaded.Feed.BaseSize,
		Seed:       opts.seed,
	})
	norm := mdg.NewNormalizer(mdg.NormalizerConfig{
		Symbol:     inst.Name,
		SymbolID:   inst.SymbolID,
		PriceScale: inst.PriceScale,
		QtyScale:   inst.QuantityScale,
	})
	ingest := core.NewIngest(loaded.Core.Source, top, metrics, nil)

	ticker := time.NewTicker(opts.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			updates, err := norm.Normalize(gen.Next(now))
			if err != nil {
				logs.Errorf("normalize tick: %v", err)
				continue
			}
			for _, u := range updates {
				if err := ingest.Apply(u, nil); err != nil {
					logs.Errorf("apply update: %v", err)
				}
			}
		}
	}
}

// runVenue fills every outbound order at its limit price one tick
// after it goes out.
func runVenue(ctx context.Context, interval time.Duration, egress, reports *bus.Queue) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var orderSeq uint64

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for {
				ev, ok := egress.TryConsume()
				if !ok {
					break
				}

				order, ok := codec.DecodeOrderIntent(ev.Payload)
				if !ok {
					logs.Errorf("undecodable outbound order")
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
				if err := reports.TryPublish(bus.Event{Payload: codec.EncodeExecReport(nil, report)}); err != nil {
					logs.Errorf("publish report: %v", err)
				}
			}
		}
	}
}

// recordThrough copies payloads onto the record queue; the engine
// reuses its encode buffers between ticks.
func recordThrough(q *bus.Queue, metrics *obs.Metrics) core.RecordFunc {
	return func(header schema.EventHeader, payload []byte) error {
		copied := make([]byte, len(payload))
		copy(copied, payload)

		if err := q.TryPublish(bus.Event{Header: header, Payload: copied}); err != nil {
			if errors.Is(err, bus.ErrQueueFull) {
				metrics.IncQueueDrop()
				return nil
			}
			return err
		}

		return nil
	}
}

func runReplay(ctx context.Context, cfg recorder.PlaybackConfig, fee schema.Fee, snapshotPath string, verify bool) error {
	pb, err := recorder.NewPlayback(cfg)
	if err != nil {
		return err
	}

	tracker := position.NewTracker(position.Config{FeePerFill: fee})
	var lastSeq uint64
	counts := make(map[schema.EventType]int)

	err = pb.Run(ctx, func(header schema.EventHeader, payload []byte) error {
		counts[header.Type]++
		lastSeq = header.Seq

		if header.Type != schema.EventFill {
			return nil
		}

		fill, ok := codec.DecodeFill(payload)
		if !ok {
			return errors.New("decode fill failed")
		}

		tracker.ApplyFill(fill)
		return nil
	})
	if err != nil {
		return err
	}

	if verify {
		expected, err := state.ReadSnapshot(snapshotPath)
		if err != nil {
			return err
		}
		if err := state.CompareSnapshots(expected, state.FromTracker(tracker, lastSeq)); err != nil {
			return err
		}
		logs.Info("snapshot verified")
	}

	logs.Infof("replay completed: counts=%v position=%d realized=%d",
		counts, tracker.Snapshot().Position, tracker.Snapshot().RealizedPnL)

	return nil
}

func logSummary(loaded ops.Loaded, engine *core.Engine, metrics *obs.Metrics, snap position.Snapshot) {
	m := metrics.Snapshot()
	lc := engine.LifecycleCounters()

	logs.Infof("session summary: ticks=%d messages=%d book_updates=%d", engine.Ticks(), m.Messages, m.BookUpdates)
	logs.Infof("orders: sent=%d filled=%d rejected=%d timed_out=%d dropped=%d", lc.Sent, lc.Filled, lc.Rejected, lc.TimedOut, lc.IntentsDropped)
	logs.Infof("risk: violations=%d codes=%v", m.RiskViolations, m.RiskCodeCounts)
	logs.Infof("position: qty=%s realized=%s fees=%s trades=%d",
		string(snap.Position.AppendString(loaded.Instrument.QuantityScale, nil)),
		string(snap.RealizedPnL.AppendString(loaded.Instrument.NotionalScale, nil)),
		string(snap.TotalFees.AppendString(loaded.Instrument.FeeScale, nil)),
		snap.TradeCount)
	logs.Infof("latency: tick=%+v round_trip=%+v", m.TickLatency, m.RoundTripLatency)
}

func resolveSnapshotPath(dir, path string) string {
	if path != "" {
		return path
	}
	return filepath.Join(dir, "position.json")
}

func pushErr(ch chan error, err error) {
	select {
	case ch <- err:
	default:
	}
}

type emptyLogger struct{}

func (emptyLogger) Infof(_ string, _ ...interface{})  {}
func (emptyLogger) Debugf(_ string, _ ...interface{}) {}
func (emptyLogger) Errorf(_ string, _ ...interface{}) {}
