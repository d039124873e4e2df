package recorder

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"time"

	"main/internal/schema"
)

// PlaybackConfig controls event log replay.
type PlaybackConfig struct {
	Dir        string
	FilePrefix string
	// Speed paces replay relative to recorded timestamps: 1 is real
	// time, 0 disables pacing.
	Speed           float64
	UseRecvTime     bool
	DisableChecksum bool
	MaxPayloadSize  int
}

// Playback replays recorded events across the segments of a directory.
type Playback struct {
	cfg   PlaybackConfig
	files []string
}

// NewPlayback lists the matching segments in order.
func NewPlayback(cfg PlaybackConfig) (*Playback, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("playback dir is empty")
	}
	if cfg.FilePrefix == "" {
		cfg.FilePrefix = defaultFilePrefix
	}
	pattern := filepath.Join(cfg.Dir, cfg.FilePrefix+"-*.log")
	files, err := filepath.Glob(pattern)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no segments match %s", pattern)
	}
	sort.Strings(files)
	return &Playback{cfg: cfg, files: files}, nil
}

// Run replays every record through fn, pacing by recorded timestamps
// when Speed > 0. A non-nil error from fn stops the replay.
func (p *Playback) Run(ctx context.Context, fn func(header schema.EventHeader, payload []byte) error) error {
	var lastTs int64
	for _, path := range p.files {
		if err := p.runFile(ctx, path, &lastTs, fn); err != nil {
			return err
		}
	}
	return nil
}

func (p *Playback) runFile(ctx context.Context, path string, lastTs *int64, fn func(schema.EventHeader, []byte) error) error {
	r, err := OpenReader(path, p.cfg.DisableChecksum, p.cfg.MaxPayloadSize)
	if err != nil {
		return err
	}
	defer r.Close()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		header, payload, err := r.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}

		if p.cfg.Speed > 0 {
			ts := header.TsEvent
			if p.cfg.UseRecvTime {
				ts = header.TsRecv
			}
			if *lastTs > 0 && ts > *lastTs {
				delay := time.Duration(float64(ts-*lastTs) / p.cfg.Speed)
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(delay):
				}
			}
			if ts > 0 {
				*lastTs = ts
			}
		}

		if err := fn(header, payload); err != nil {
			return err
		}
	}
}
