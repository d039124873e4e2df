package bus

import "sync/atomic"

type versioned[T any] struct {
	seq   uint64
	value T
}

// Latch is a single-writer, single-reader handoff for the latest value
// of a state snapshot. The writer publishes whole values from its own
// context; the reader pulls them through two sequential staging
// registers on its own tick, so the value it acts on has been settled
// on its side for a full tick and can never be observed mid-write.
// The staging costs two receiver ticks of latency.
//
// A Latch is last-value-wins: intermediate publishes between two
// receiver ticks are dropped. Use a Queue where every event matters.
type Latch[T any] struct {
	cell atomic.Pointer[versioned[T]]

	// Writer-side publish counter.
	pub uint64

	// Receiver-side staging registers. Owned by the reader.
	stage1 versioned[T]
	stage2 versioned[T]
}

// NewLatch creates an empty latch.
func NewLatch[T any]() *Latch[T] {
	return &Latch[T]{}
}

// Publish makes a new value available to the reader. Writer context
// only; at most one logical value per sender tick is retained.
func (l *Latch[T]) Publish(value T) {
	l.pub++
	l.cell.Store(&versioned[T]{seq: l.pub, value: value})
}

// Sync advances the reader-side staging by one tick and returns the
// settled value. ok is false until a published value has crossed both
// stages. Reader context only.
func (l *Latch[T]) Sync() (T, bool) {
	l.stage2 = l.stage1
	if cur := l.cell.Load(); cur != nil {
		l.stage1 = *cur
	}
	if l.stage2.seq == 0 {
		var zero T
		return zero, false
	}
	return l.stage2.value, true
}

// Version returns the sequence number of the settled value, 0 when
// nothing has settled yet. Reader context only.
func (l *Latch[T]) Version() uint64 {
	return l.stage2.seq
}
