// Package journal persists trade history to PostgreSQL. It sits
// outside the tick path: the decision context hands fills over after
// they are committed, a slow database never stalls a tick.
package journal

import (
	"time"

	"github.com/yanun0323/errors"

	"main/internal/position"
	"main/internal/schema"

	"main/pkg/conn"
)

// FillRow is one executed fill.
type FillRow struct {
	ID            uint64 `gorm:"primaryKey;autoIncrement"`
	Seq           uint64 `gorm:"uniqueIndex"`
	ClientOrderID uint64 `gorm:"index"`
	Symbol        string `gorm:"index"`
	Side          string
	Price         int64
	Qty           int64
	Fee           int64
	CreatedAt     time.Time
}

func (FillRow) TableName() string { return "fills" }

// SessionRow summarizes one trading session.
type SessionRow struct {
	ID          uint64 `gorm:"primaryKey;autoIncrement"`
	Symbol      string `gorm:"index"`
	StartedAt   time.Time
	EndedAt     time.Time
	Position    int64
	RealizedPnL int64
	TradeCount  uint64
	TotalFees   int64
}

func (SessionRow) TableName() string { return "sessions" }

// Journal writes fills and session summaries for one instrument.
type Journal struct {
	client *conn.Client
	symbol string
}

// Open connects and migrates the journal tables.
func Open(opt conn.Option, symbol string) (*Journal, error) {
	client, err := conn.New(opt)
	if err != nil {
		return nil, errors.Wrap(err, "connect journal")
	}

	if err := client.DB().AutoMigrate(&FillRow{}, &SessionRow{}); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "migrate journal")
	}

	return &Journal{client: client, symbol: symbol}, nil
}

// RecordFill inserts one fill. Seq is the event log sequence, the
// unique index makes replayed inserts fail instead of duplicating.
func (j *Journal) RecordFill(seq uint64, fill schema.FillEvent) error {
	row := newFillRow(j.symbol, seq, fill)
	if err := j.client.DB().Create(&row).Error; err != nil {
		return errors.Wrap(err, "insert fill")
	}

	return nil
}

// CloseSession writes the session summary row.
func (j *Journal) CloseSession(startedAt time.Time, snap position.Snapshot) error {
	row := SessionRow{
		Symbol:      j.symbol,
		StartedAt:   startedAt,
		EndedAt:     time.Now().UTC(),
		Position:    int64(snap.Position),
		RealizedPnL: int64(snap.RealizedPnL),
		TradeCount:  snap.TradeCount,
		TotalFees:   int64(snap.TotalFees),
	}

	if err := j.client.DB().Create(&row).Error; err != nil {
		return errors.Wrap(err, "insert session")
	}

	return nil
}

// Close releases the connection pool.
func (j *Journal) Close() error {
	if j == nil {
		return nil
	}
	return j.client.Close()
}

func newFillRow(symbol string, seq uint64, fill schema.FillEvent) FillRow {
	return FillRow{
		Seq:           seq,
		ClientOrderID: fill.ClientOrderID,
		Symbol:        symbol,
		Side:          fill.Side.String(),
		Price:         int64(fill.Price),
		Qty:           int64(fill.Qty),
		Fee:           int64(fill.Fee),
		CreatedAt:     time.Now().UTC(),
	}
}
