package core

import (
	"time"

	"main/internal/book"
	"main/internal/bus"
	"main/internal/obs"
	"main/internal/schema"
)

// Ingest is the fast context: it applies market updates to the book
// and publishes top-of-book snapshots to the decision context. All
// methods must be called from a single goroutine.
type Ingest struct {
	book    *book.Book
	top     *bus.Latch[book.TopOfBook]
	metrics *obs.Metrics
	record  RecordFunc
	source  uint16
	seq     uint64
}

func NewIngest(source uint16, top *bus.Latch[book.TopOfBook], metrics *obs.Metrics, record RecordFunc) *Ingest {
	return &Ingest{
		book:    book.New(),
		top:     top,
		metrics: metrics,
		record:  record,
		source:  source,
	}
}

// Apply processes one market update tick. Invalid updates are counted
// and dropped without touching the book.
func (i *Ingest) Apply(u schema.MarketUpdate, payload []byte) error {
	i.metrics.IncMessage()

	if !u.Valid() {
		return nil
	}

	improved := i.book.Apply(u)
	i.metrics.IncBookUpdate(improved)

	i.top.Publish(i.book.Top())

	if i.record == nil || payload == nil {
		return nil
	}

	i.seq++
	now := time.Now().UnixNano()

	return i.record(schema.NewHeader(schema.EventMarketUpdate, i.source, i.seq, now, now), payload)
}

// Book exposes the order book for reporting.
func (i *Ingest) Book() *book.Book { return i.book }
