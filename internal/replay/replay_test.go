package replay

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"main/internal/journal"
	"main/internal/model"
)

type fakeClock struct {
	sleeps []time.Duration
}

func (c *fakeClock) Sleep(_ context.Context, d time.Duration) error {
	c.sleeps = append(c.sleeps, d)
	return nil
}

func writeLog(t *testing.T, lines [][]byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "events.jsonl")
	var buf []byte
	for _, line := range lines {
		buf = append(buf, line...)
		buf = append(buf, '\n')
	}
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}
	return path
}

func encodedTrade(t *testing.T, seq uint64, recvTs int64) []byte {
	t.Helper()
	e := model.NewAggTrade("BTCUSDT", recvTs, model.AggTrade{
		TradeID:  int64(seq),
		Price:    decimal.RequireFromString("50000"),
		Quantity: decimal.RequireFromString("1"),
	}, nil)
	e.Seq = seq
	line, err := model.Encode(nil, e)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	return line
}

func openReader(t *testing.T, path string) *journal.Reader {
	t.Helper()
	r, err := journal.OpenReader(path)
	if err != nil {
		t.Fatalf("open reader: %v", err)
	}
	t.Cleanup(func() { r.Close() })
	return r
}

func TestRunRealTimePacesByRecvDeltas(t *testing.T) {
	base := int64(1_700_000_000_000_000_000)
	path := writeLog(t, [][]byte{
		encodedTrade(t, 1, base),
		encodedTrade(t, 2, base+100_000_000),  // +100ms
		encodedTrade(t, 3, base+400_000_000),  // +300ms
		encodedTrade(t, 4, base+60_400_000_000), // +60s, clamped
	})

	clock := &fakeClock{}
	engine := NewEngine(RealTime(1, 2*time.Second)).WithClock(clock)

	var got []model.Event
	stats, err := engine.Run(context.Background(), openReader(t, path), func(e model.Event) error {
		got = append(got, e)
		return nil
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if stats.Played != 4 || stats.Skipped != 0 {
		t.Fatalf("stats = %+v", stats)
	}

	want := []time.Duration{100 * time.Millisecond, 300 * time.Millisecond, 2 * time.Second}
	if len(clock.sleeps) != len(want) {
		t.Fatalf("sleeps = %v, want %v", clock.sleeps, want)
	}
	for i := range want {
		if clock.sleeps[i] != want[i] {
			t.Fatalf("sleep %d = %v, want %v", i, clock.sleeps[i], want[i])
		}
	}
	for i, e := range got {
		if e.RecvTs == 0 {
			t.Fatalf("event %d lost its recorded receive timestamp", i)
		}
	}
}

func TestRunRealTimeSpeedDividesSleeps(t *testing.T) {
	base := int64(1_700_000_000_000_000_000)
	path := writeLog(t, [][]byte{
		encodedTrade(t, 1, base),
		encodedTrade(t, 2, base+1_000_000_000),
	})

	clock := &fakeClock{}
	engine := NewEngine(RealTime(10, time.Minute)).WithClock(clock)
	if _, err := engine.Run(context.Background(), openReader(t, path), func(model.Event) error { return nil }); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(clock.sleeps) != 1 || clock.sleeps[0] != 100*time.Millisecond {
		t.Fatalf("sleeps = %v, want [100ms]", clock.sleeps)
	}
}

func TestRunRealTimeZeroMaxGapKeepsRecordedGaps(t *testing.T) {
	base := int64(1_700_000_000_000_000_000)
	path := writeLog(t, [][]byte{
		encodedTrade(t, 1, base),
		encodedTrade(t, 2, base+60_000_000_000), // +60s, replayed whole
	})

	clock := &fakeClock{}
	engine := NewEngine(RealTime(1, 0)).WithClock(clock)
	if _, err := engine.Run(context.Background(), openReader(t, path), func(model.Event) error { return nil }); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(clock.sleeps) != 1 || clock.sleeps[0] != time.Minute {
		t.Fatalf("sleeps = %v, want [1m0s]", clock.sleeps)
	}
}

func TestRunFixedIntervalSleepsBetweenEvents(t *testing.T) {
	path := writeLog(t, [][]byte{
		encodedTrade(t, 1, 100),
		encodedTrade(t, 2, 200),
		encodedTrade(t, 3, 300),
	})

	clock := &fakeClock{}
	engine := NewEngine(FixedInterval(50 * time.Millisecond)).WithClock(clock)
	stats, err := engine.Run(context.Background(), openReader(t, path), func(model.Event) error { return nil })
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if stats.Played != 3 {
		t.Fatalf("played = %d, want 3", stats.Played)
	}
	if len(clock.sleeps) != 2 {
		t.Fatalf("sleeps = %v, want 2 entries", clock.sleeps)
	}
}

func TestRunSkipsCorruptRecords(t *testing.T) {
	path := writeLog(t, [][]byte{
		encodedTrade(t, 1, 100),
		[]byte("{torn record"),
		encodedTrade(t, 2, 200),
	})

	engine := NewEngine(FixedInterval(0))
	var seqs []uint64
	stats, err := engine.Run(context.Background(), openReader(t, path), func(e model.Event) error {
		seqs = append(seqs, e.Seq)
		return nil
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if stats.Played != 2 || stats.Skipped != 1 {
		t.Fatalf("stats = %+v", stats)
	}
	if len(seqs) != 2 || seqs[0] != 1 || seqs[1] != 2 {
		t.Fatalf("seqs = %v", seqs)
	}
}

func TestRunStopsOnAdmitError(t *testing.T) {
	path := writeLog(t, [][]byte{
		encodedTrade(t, 1, 100),
		encodedTrade(t, 2, 200),
	})

	engine := NewEngine(FixedInterval(0))
	wantErr := os.ErrClosed
	stats, err := engine.Run(context.Background(), openReader(t, path), func(model.Event) error {
		return wantErr
	})
	if err != wantErr {
		t.Fatalf("run err = %v, want %v", err, wantErr)
	}
	if stats.Played != 0 {
		t.Fatalf("played = %d, want 0", stats.Played)
	}
}

func TestRunCanceledContext(t *testing.T) {
	path := writeLog(t, [][]byte{encodedTrade(t, 1, 100)})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	engine := NewEngine(FixedInterval(0))
	if _, err := engine.Run(ctx, openReader(t, path), func(model.Event) error { return nil }); err != context.Canceled {
		t.Fatalf("run err = %v, want context.Canceled", err)
	}
}
