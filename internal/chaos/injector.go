// Package chaos degrades the simulated venue's report stream. Dropped
// reports force lifecycle timeouts, duplicated reports hit the fill
// matcher's dedup, reordering stresses cumulative-quantity tracking.
package chaos

import (
	"math/rand"
	"time"

	"github.com/yanun0323/errors"

	"main/internal/schema"
)

// Config controls fault injection. Rates are probabilities in [0, 1].
type Config struct {
	Seed          int64
	DropRate      float64
	DuplicateRate float64
	ReorderWindow int
}

// Validate ensures the config is within supported ranges.
func (c Config) Validate() error {
	if c.DropRate < 0 || c.DropRate > 1 {
		return errors.New("dropRate must be between 0 and 1")
	}

	if c.DuplicateRate < 0 || c.DuplicateRate > 1 {
		return errors.New("duplicateRate must be between 0 and 1")
	}

	if c.ReorderWindow < 0 {
		return errors.New("reorderWindow must be >= 0")
	}

	return nil
}

// Injector applies faults to execution reports. Identical seeds
// produce identical fault sequences.
type Injector struct {
	cfg     Config
	rng     *rand.Rand
	pending []schema.ExecReport
}

func NewInjector(cfg Config) (*Injector, error) {
	if cfg.ReorderWindow <= 0 {
		cfg.ReorderWindow = 1
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UTC().UnixNano()
	}

	return &Injector{
		cfg: cfg,
		rng: rand.New(rand.NewSource(cfg.Seed)),
	}, nil
}

// Process applies faults to one report and returns what the venue
// actually delivers, possibly nothing.
func (i *Injector) Process(report schema.ExecReport) []schema.ExecReport {
	if i == nil {
		return []schema.ExecReport{report}
	}

	if i.cfg.DropRate > 0 && i.rng.Float64() < i.cfg.DropRate {
		return nil
	}

	if i.cfg.ReorderWindow <= 1 {
		return i.duplicate(report)
	}

	i.pending = append(i.pending, report)
	if len(i.pending) < i.cfg.ReorderWindow {
		return nil
	}

	return i.duplicate(i.takeRandom())
}

// Flush drains the reorder buffer.
func (i *Injector) Flush() []schema.ExecReport {
	if i == nil || len(i.pending) == 0 {
		return nil
	}

	out := make([]schema.ExecReport, 0, len(i.pending))
	for len(i.pending) > 0 {
		out = append(out, i.duplicate(i.takeRandom())...)
	}

	return out
}

func (i *Injector) takeRandom() schema.ExecReport {
	idx := i.rng.Intn(len(i.pending))
	report := i.pending[idx]
	i.pending = append(i.pending[:idx], i.pending[idx+1:]...)

	return report
}

func (i *Injector) duplicate(report schema.ExecReport) []schema.ExecReport {
	out := []schema.ExecReport{report}
	if i.cfg.DuplicateRate > 0 && i.rng.Float64() < i.cfg.DuplicateRate {
		out = append(out, report)
	}

	return out
}
