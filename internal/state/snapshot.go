package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"main/internal/position"
	"main/internal/schema"
)

// Snapshot captures the committed position state at a point in time,
// together with the event log cursor it corresponds to.
type Snapshot struct {
	Timestamp     int64           `json:"timestamp"`
	LastSeq       uint64          `json:"lastSeq"`
	Position      schema.Quantity `json:"position"`
	AvgEntryPrice schema.Price    `json:"avgEntryPrice"`
	RealizedPnL   schema.Notional `json:"realizedPnl"`
	UnrealizedPnL schema.Notional `json:"unrealizedPnl"`
	TradeCount    uint64          `json:"tradeCount"`
	TotalFees     schema.Fee      `json:"totalFees"`
}

// FromTracker builds a snapshot from a tracker's committed state.
func FromTracker(t *position.Tracker, lastSeq uint64) Snapshot {
	return FromPosition(t.Snapshot(), lastSeq)
}

// FromPosition builds a snapshot from an already committed position.
func FromPosition(s position.Snapshot, lastSeq uint64) Snapshot {
	return Snapshot{
		Timestamp:     time.Now().UTC().UnixNano(),
		LastSeq:       lastSeq,
		Position:      s.Position,
		AvgEntryPrice: s.AvgEntryPrice,
		RealizedPnL:   s.RealizedPnL,
		UnrealizedPnL: s.UnrealizedPnL,
		TradeCount:    s.TradeCount,
		TotalFees:     s.TotalFees,
	}
}

// Apply restores a tracker from a snapshot.
func (s Snapshot) Apply(t *position.Tracker) {
	t.Restore(position.Snapshot{
		Position:      s.Position,
		AvgEntryPrice: s.AvgEntryPrice,
		RealizedPnL:   s.RealizedPnL,
		UnrealizedPnL: s.UnrealizedPnL,
		TradeCount:    s.TradeCount,
		TotalFees:     s.TotalFees,
	})
}

// WriteSnapshot writes a snapshot to disk as JSON.
func WriteSnapshot(path string, snapshot Snapshot) error {
	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0o644)
}

// ReadSnapshot loads a snapshot from disk.
func ReadSnapshot(path string) (Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Snapshot{}, err
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

// CompareSnapshots checks that two snapshots carry the same position
// state. Timestamps and cursors are not compared.
func CompareSnapshots(expected, actual Snapshot) error {
	if expected.Position != actual.Position {
		return fmt.Errorf("position mismatch: expected=%d actual=%d", expected.Position, actual.Position)
	}
	if expected.AvgEntryPrice != actual.AvgEntryPrice {
		return fmt.Errorf("avg entry mismatch: expected=%d actual=%d", expected.AvgEntryPrice, actual.AvgEntryPrice)
	}
	if expected.RealizedPnL != actual.RealizedPnL {
		return fmt.Errorf("realized pnl mismatch: expected=%d actual=%d", expected.RealizedPnL, actual.RealizedPnL)
	}
	if expected.TradeCount != actual.TradeCount {
		return fmt.Errorf("trade count mismatch: expected=%d actual=%d", expected.TradeCount, actual.TradeCount)
	}
	if expected.TotalFees != actual.TotalFees {
		return fmt.Errorf("total fees mismatch: expected=%d actual=%d", expected.TotalFees, actual.TotalFees)
	}
	return nil
}
