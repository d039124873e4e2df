package state

import (
	"context"
	"fmt"

	"main/internal/codec"
	"main/internal/position"
	"main/internal/recorder"
	"main/internal/schema"
)

// RecoverConfig controls snapshot plus event-log recovery.
type RecoverConfig struct {
	LogDir          string
	SnapshotPath    string
	FilePrefix      string
	DisableChecksum bool
	MaxPayloadSize  int
	Fee             schema.Fee
}

// RecoverResult contains recovered state and metadata.
type RecoverResult struct {
	Tracker *position.Tracker
	LastSeq uint64
}

// RecoverPosition loads a snapshot and replays the event log tail to
// rebuild the position state. Only fill events move the position; the
// log stores them post-dedup, so replay is exactly-once by
// construction.
func RecoverPosition(ctx context.Context, cfg RecoverConfig) (RecoverResult, error) {
	if cfg.LogDir == "" {
		return RecoverResult{}, fmt.Errorf("log dir is empty")
	}
	tracker := position.NewTracker(position.Config{FeePerFill: cfg.Fee})
	var lastSeq uint64

	if cfg.SnapshotPath != "" {
		snapshot, err := ReadSnapshot(cfg.SnapshotPath)
		if err != nil {
			return RecoverResult{}, err
		}
		snapshot.Apply(tracker)
		lastSeq = snapshot.LastSeq
	}

	pb, err := recorder.NewPlayback(recorder.PlaybackConfig{
		Dir:             cfg.LogDir,
		FilePrefix:      cfg.FilePrefix,
		DisableChecksum: cfg.DisableChecksum,
		MaxPayloadSize:  cfg.MaxPayloadSize,
	})
	if err != nil {
		return RecoverResult{}, err
	}

	err = pb.Run(ctx, func(header schema.EventHeader, payload []byte) error {
		if lastSeq > 0 && header.Seq <= lastSeq {
			return nil
		}
		if header.Seq > lastSeq {
			lastSeq = header.Seq
		}
		if header.Type != schema.EventFill {
			return nil
		}
		fill, ok := codec.DecodeFill(payload)
		if !ok {
			return fmt.Errorf("decode fill failed at seq %d", header.Seq)
		}
		tracker.ApplyFill(fill)
		return nil
	})
	if err != nil {
		return RecoverResult{}, err
	}

	return RecoverResult{Tracker: tracker, LastSeq: lastSeq}, nil
}
