package recorder

import (
	"context"
	"os"
	"testing"

	"main/internal/codec"
	"main/internal/schema"
)

func flipByte(t *testing.T, path string, offset int) {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	data[offset] ^= 0xFF
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(DefaultConfig(dir))
	if err != nil {
		t.Fatalf("new writer: %v", err)
	}

	fills := []schema.FillEvent{
		{ClientOrderID: 1, SymbolID: 1, Side: schema.SideBuy, Price: 15050, Qty: 100},
		{ClientOrderID: 2, SymbolID: 1, Side: schema.SideSell, Price: 15100, Qty: 100},
	}
	for i, f := range fills {
		header := schema.NewHeader(schema.EventFill, 1, uint64(i+1), int64(1000+i), int64(1000+i))
		if err := w.Append(header, codec.EncodeFill(nil, f)); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	pb, err := NewPlayback(PlaybackConfig{Dir: dir})
	if err != nil {
		t.Fatalf("new playback: %v", err)
	}
	var got []schema.FillEvent
	err = pb.Run(context.Background(), func(header schema.EventHeader, payload []byte) error {
		if header.Type != schema.EventFill {
			t.Fatalf("type = %v, want fill", header.Type)
		}
		fill, ok := codec.DecodeFill(payload)
		if !ok {
			t.Fatal("decode fill failed")
		}
		got = append(got, fill)
		return nil
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(got) != len(fills) {
		t.Fatalf("replayed %d records, want %d", len(got), len(fills))
	}
	for i := range fills {
		if got[i] != fills[i] {
			t.Fatalf("record %d = %+v, want %+v", i, got[i], fills[i])
		}
	}
}

func TestRotationKeepsAllRecords(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig(dir)
	cfg.MaxFileBytes = 256 // force several segments
	w, err := NewWriter(cfg)
	if err != nil {
		t.Fatalf("new writer: %v", err)
	}
	const n = 50
	for i := 0; i < n; i++ {
		header := schema.NewHeader(schema.EventMarketUpdate, 1, uint64(i+1), int64(i), int64(i))
		u := schema.MarketUpdate{SymbolID: 1, Side: schema.SideBuy, Flags: schema.UpdateFlagValid, Price: schema.Price(1000 + i), Qty: 1}
		if err := w.Append(header, codec.EncodeMarketUpdate(nil, u)); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	pb, err := NewPlayback(PlaybackConfig{Dir: dir})
	if err != nil {
		t.Fatalf("new playback: %v", err)
	}
	if len(pb.files) < 2 {
		t.Fatalf("segments = %d, want rotation to produce several", len(pb.files))
	}
	count := 0
	lastSeq := uint64(0)
	err = pb.Run(context.Background(), func(header schema.EventHeader, _ []byte) error {
		if header.Seq <= lastSeq {
			t.Fatalf("seq %d out of order after %d", header.Seq, lastSeq)
		}
		lastSeq = header.Seq
		count++
		return nil
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if count != n {
		t.Fatalf("replayed %d records, want %d", count, n)
	}
}

func TestCorruptionDetected(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(DefaultConfig(dir))
	if err != nil {
		t.Fatalf("new writer: %v", err)
	}
	header := schema.NewHeader(schema.EventFill, 1, 1, 1, 1)
	if err := w.Append(header, codec.EncodeFill(nil, schema.FillEvent{ClientOrderID: 1, Qty: 1})); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	pb, err := NewPlayback(PlaybackConfig{Dir: dir})
	if err != nil {
		t.Fatalf("new playback: %v", err)
	}
	flipByte(t, pb.files[0], recordHeaderSize+3)

	err = pb.Run(context.Background(), func(schema.EventHeader, []byte) error { return nil })
	if err == nil {
		t.Fatal("corrupted record replayed without error")
	}
}
