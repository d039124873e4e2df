package ops

import (
	"encoding/json"
	"os"

	"github.com/yanun0323/decimal"
	"github.com/yanun0323/errors"

	"main/internal/core"
	"main/internal/og"
	"main/internal/recorder"
	"main/internal/risk"
	"main/internal/schema"
	"main/internal/strategy"
)

// FileConfig mirrors the JSON config layout. Price, quantity and
// notional fields are decimal strings converted to scaled integers
// using the instrument scales.
type FileConfig struct {
	Instrument InstrumentConfig `json:"instrument"`
	Strategy   StrategyConfig   `json:"strategy"`
	Risk       RiskConfig       `json:"risk"`
	Execution  ExecutionConfig  `json:"execution"`
	Feed       FeedConfig       `json:"feed"`
	Queues     QueueConfig      `json:"queues"`
	Recorder   RecorderConfig   `json:"recorder"`
	Journal    JournalConfig    `json:"journal"`
	Profiling  ProfilingConfig  `json:"profiling"`
}

// InstrumentConfig names the traded instrument and its scales.
type InstrumentConfig struct {
	Name          string `json:"name"`
	SymbolID      uint32 `json:"symbolId"`
	PriceScale    int    `json:"priceScale"`
	QuantityScale int    `json:"quantityScale"`
	NotionalScale int    `json:"notionalScale"`
	FeeScale      int    `json:"feeScale"`
}

// StrategyConfig holds the strategy tunables as decimal strings.
type StrategyConfig struct {
	ClipSize        decimal.Decimal `json:"clipSize"`
	SpreadThreshold decimal.Decimal `json:"spreadThreshold"`
	ProfitTarget    decimal.Decimal `json:"profitTarget"`
}

// RiskConfig holds the risk limits as decimal strings.
type RiskConfig struct {
	MaxPosition  decimal.Decimal `json:"maxPosition"`
	MaxLossLimit decimal.Decimal `json:"maxLossLimit"`
}

// ExecutionConfig holds order lifecycle tunables.
type ExecutionConfig struct {
	FeePerFill decimal.Decimal `json:"feePerFill"`
	// FillTimeoutTicks bounds the AwaitingFill wait, 0 disables it.
	FillTimeoutTicks int `json:"fillTimeoutTicks"`
}

// FeedConfig tunes the synthetic quote stream used by the paper
// venue.
type FeedConfig struct {
	BasePrice decimal.Decimal `json:"basePrice"`
	Spread    decimal.Decimal `json:"spread"`
	Step      decimal.Decimal `json:"step"`
	BaseSize  decimal.Decimal `json:"baseSize"`
}

// Feed is the resolved synthetic feed configuration in scaled
// integers.
type Feed struct {
	BasePrice int64
	Spread    int64
	Step      int64
	BaseSize  int64
}

// QueueConfig sizes the cross-context queues.
type QueueConfig struct {
	Reports int `json:"reports"`
	Egress  int `json:"egress"`
}

// RecorderConfig locates the event log.
type RecorderConfig struct {
	Dir          string `json:"dir"`
	FilePrefix   string `json:"filePrefix"`
	MaxFileBytes int64  `json:"maxFileBytes"`
	SyncOnRotate bool   `json:"syncOnRotate"`
}

// JournalConfig holds the optional trade journal database DSN. An
// empty DSN disables journaling.
type JournalConfig struct {
	DSN string `json:"dsn"`
}

// ProfilingConfig holds the optional continuous profiler target. An
// empty address disables profiling.
type ProfilingConfig struct {
	ServerAddress string `json:"serverAddress"`
}

// Loaded is the resolved configuration ready for use.
type Loaded struct {
	Instrument InstrumentConfig
	Core       core.Config
	Feed       Feed
	Queues     QueueConfig
	Recorder   recorder.Config
	Journal    JournalConfig
	Profiling  ProfilingConfig
}

const (
	defaultQueueCapacity = 1024
	defaultSource        = 1
)

// Load reads a JSON config file and resolves it against the
// instrument scales.
func Load(path string) (Loaded, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Loaded{}, errors.Wrap(err, "read config")
	}

	var cfg FileConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Loaded{}, errors.Wrap(err, "parse config")
	}

	return Resolve(cfg)
}

// Resolve converts a parsed file config into runtime configuration.
func Resolve(cfg FileConfig) (Loaded, error) {
	if err := validateInstrument(cfg.Instrument); err != nil {
		return Loaded{}, err
	}

	strat, err := resolveStrategy(cfg.Strategy, cfg.Instrument)
	if err != nil {
		return Loaded{}, err
	}

	riskCfg, err := resolveRisk(cfg.Risk, cfg.Instrument)
	if err != nil {
		return Loaded{}, err
	}

	fee, err := scaledField("execution.feePerFill", cfg.Execution.FeePerFill, cfg.Instrument.FeeScale)
	if err != nil {
		return Loaded{}, err
	}

	if cfg.Execution.FillTimeoutTicks < 0 {
		return Loaded{}, errors.New("execution.fillTimeoutTicks must be >= 0")
	}

	feed, err := resolveFeed(cfg.Feed, cfg.Instrument)
	if err != nil {
		return Loaded{}, err
	}

	queues := cfg.Queues
	if queues.Reports <= 0 {
		queues.Reports = defaultQueueCapacity
	}
	if queues.Egress <= 0 {
		queues.Egress = defaultQueueCapacity
	}

	rec := recorder.DefaultConfig(cfg.Recorder.Dir)
	if cfg.Recorder.FilePrefix != "" {
		rec.FilePrefix = cfg.Recorder.FilePrefix
	}
	if cfg.Recorder.MaxFileBytes > 0 {
		rec.MaxFileBytes = cfg.Recorder.MaxFileBytes
	}
	rec.SyncOnRotate = cfg.Recorder.SyncOnRotate

	return Loaded{
		Instrument: cfg.Instrument,
		Core: core.Config{
			SymbolID: cfg.Instrument.SymbolID,
			Source:   defaultSource,
			Strategy: strat,
			Risk:     riskCfg,
			Lifecycle: og.Config{
				SymbolID:         cfg.Instrument.SymbolID,
				FillTimeoutTicks: cfg.Execution.FillTimeoutTicks,
			},
			FeePerFill: schema.Fee(fee),
		},
		Feed:      feed,
		Queues:    queues,
		Recorder:  rec,
		Journal:   cfg.Journal,
		Profiling: cfg.Profiling,
	}, nil
}

func validateInstrument(cfg InstrumentConfig) error {
	if cfg.Name == "" {
		return errors.New("instrument.name is empty")
	}

	if cfg.SymbolID == 0 {
		return errors.New("instrument.symbolId is empty")
	}

	if cfg.PriceScale < 0 || cfg.QuantityScale < 0 || cfg.NotionalScale < 0 || cfg.FeeScale < 0 {
		return errors.New("instrument scales must be >= 0")
	}

	return nil
}

func resolveStrategy(cfg StrategyConfig, inst InstrumentConfig) (strategy.Config, error) {
	clip, err := scaledField("strategy.clipSize", cfg.ClipSize, inst.QuantityScale)
	if err != nil {
		return strategy.Config{}, err
	}
	if clip <= 0 {
		return strategy.Config{}, errors.New("strategy.clipSize must be > 0")
	}

	spread, err := scaledField("strategy.spreadThreshold", cfg.SpreadThreshold, inst.PriceScale)
	if err != nil {
		return strategy.Config{}, err
	}
	if spread <= 0 {
		return strategy.Config{}, errors.New("strategy.spreadThreshold must be > 0")
	}

	target, err := scaledField("strategy.profitTarget", cfg.ProfitTarget, inst.PriceScale)
	if err != nil {
		return strategy.Config{}, err
	}
	if target <= 0 {
		return strategy.Config{}, errors.New("strategy.profitTarget must be > 0")
	}

	return strategy.Config{
		ClipSize:        schema.Quantity(clip),
		SpreadThreshold: schema.Price(spread),
		ProfitTarget:    schema.Price(target),
	}, nil
}

func resolveRisk(cfg RiskConfig, inst InstrumentConfig) (risk.Config, error) {
	maxPos, err := scaledField("risk.maxPosition", cfg.MaxPosition, inst.QuantityScale)
	if err != nil {
		return risk.Config{}, err
	}
	if maxPos <= 0 {
		return risk.Config{}, errors.New("risk.maxPosition must be > 0")
	}

	maxLoss, err := scaledField("risk.maxLossLimit", cfg.MaxLossLimit, inst.NotionalScale)
	if err != nil {
		return risk.Config{}, err
	}
	if maxLoss <= 0 {
		return risk.Config{}, errors.New("risk.maxLossLimit must be > 0")
	}

	return risk.Config{
		MaxPosition:  schema.Quantity(maxPos),
		MaxLossLimit: schema.Notional(maxLoss),
	}, nil
}

func resolveFeed(cfg FeedConfig, inst InstrumentConfig) (Feed, error) {
	base, err := scaledField("feed.basePrice", cfg.BasePrice, inst.PriceScale)
	if err != nil {
		return Feed{}, err
	}
	if base <= 0 {
		return Feed{}, errors.New("feed.basePrice must be > 0")
	}

	spread, err := scaledField("feed.spread", cfg.Spread, inst.PriceScale)
	if err != nil {
		return Feed{}, err
	}

	step, err := scaledField("feed.step", cfg.Step, inst.PriceScale)
	if err != nil {
		return Feed{}, err
	}

	size, err := scaledField("feed.baseSize", cfg.BaseSize, inst.QuantityScale)
	if err != nil {
		return Feed{}, err
	}

	return Feed{BasePrice: base, Spread: spread, Step: step, BaseSize: size}, nil
}

func scaledField(name string, d decimal.Decimal, scale int) (int64, error) {
	v, err := schema.ParseScaled(d.String(), scale)
	if err != nil {
		return 0, errors.Wrapf(err, "config field %s", name)
	}

	return v, nil
}
