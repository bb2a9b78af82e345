package journal

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"

	"main/internal/model"
)

func encodeEvent(t *testing.T, seq uint64, symbol string, price string) []byte {
	t.Helper()
	e := model.NewMarkPrice(symbol, int64(seq)*1000, model.MarkPrice{
		Price: decimal.RequireFromString(price),
	}, []byte(`{"p":"`+price+`"}`))
	e.Seq = seq
	line, err := model.Encode(nil, e)
	if err != nil {
		t.Fatalf("encode event: %v", err)
	}
	return line
}

func TestWriterAppendAndReadBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	w, err := NewWriter(DefaultConfig(path))
	if err != nil {
		t.Fatalf("new writer: %v", err)
	}
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("start writer: %v", err)
	}

	for i := uint64(1); i <= 5; i++ {
		if err := w.TryAppend(encodeEvent(t, i, "BTCUSDT", "100.5")); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}

	r, err := OpenReader(path)
	if err != nil {
		t.Fatalf("open reader: %v", err)
	}
	defer r.Close()

	var seqs []uint64
	for {
		event, _, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		seqs = append(seqs, event.Seq)
	}
	if len(seqs) != 5 {
		t.Fatalf("expected 5 events, got %d", len(seqs))
	}
	for i, seq := range seqs {
		if seq != uint64(i+1) {
			t.Fatalf("sequence mismatch at %d: got %d", i, seq)
		}
	}
}

func TestWriterRejectsBeforeStartAndAfterClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	w, err := NewWriter(DefaultConfig(path))
	if err != nil {
		t.Fatalf("new writer: %v", err)
	}
	if err := w.TryAppend([]byte(`{}`)); !errors.Is(err, ErrNotStarted) {
		t.Fatalf("expected ErrNotStarted, got %v", err)
	}
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := w.TryAppend([]byte(`{}`)); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestReaderResynchronizesAfterCorruptRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	good1 := encodeEvent(t, 1, "BTCUSDT", "1.0")
	good2 := encodeEvent(t, 2, "BTCUSDT", "2.0")
	content := append(append([]byte{}, good1...), '\n')
	content = append(content, []byte("this is not an event\n")...)
	content = append(content, good2...)
	content = append(content, '\n')
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	r, err := OpenReader(path)
	if err != nil {
		t.Fatalf("open reader: %v", err)
	}
	defer r.Close()

	event, _, err := r.Next()
	if err != nil || event.Seq != 1 {
		t.Fatalf("first record: seq=%d err=%v", event.Seq, err)
	}

	_, offset, err := r.Next()
	var corrupt *CorruptRecord
	if !errors.As(err, &corrupt) {
		t.Fatalf("expected CorruptRecord, got %v", err)
	}
	if corrupt.Offset != int64(len(good1)+1) || offset != corrupt.Offset {
		t.Fatalf("corrupt offset mismatch: got %d want %d", corrupt.Offset, len(good1)+1)
	}

	event, _, err = r.Next()
	if err != nil || event.Seq != 2 {
		t.Fatalf("record after resync: seq=%d err=%v", event.Seq, err)
	}
	if _, _, err := r.Next(); err != io.EOF {
		t.Fatalf("expected EOF, got %v", err)
	}
}

func TestReaderTreatsTruncatedFinalLineAsAbsent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	good := encodeEvent(t, 1, "BTCUSDT", "1.0")
	content := append(append([]byte{}, good...), '\n')
	content = append(content, good[:len(good)/2]...)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	r, err := OpenReader(path)
	if err != nil {
		t.Fatalf("open reader: %v", err)
	}
	defer r.Close()

	if event, _, err := r.Next(); err != nil || event.Seq != 1 {
		t.Fatalf("first record: seq=%d err=%v", event.Seq, err)
	}
	if _, _, err := r.Next(); err != io.EOF {
		t.Fatalf("truncated line should be absent, got %v", err)
	}
}

func TestReaderReset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	content := append(append([]byte{}, encodeEvent(t, 1, "BTCUSDT", "1.0")...), '\n')
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	r, err := OpenReader(path)
	if err != nil {
		t.Fatalf("open reader: %v", err)
	}
	defer r.Close()

	if _, _, err := r.Next(); err != nil {
		t.Fatalf("first pass: %v", err)
	}
	if err := r.Reset(); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if event, _, err := r.Next(); err != nil || event.Seq != 1 {
		t.Fatalf("second pass: seq=%d err=%v", event.Seq, err)
	}
}

func TestOpenReaderMissingPath(t *testing.T) {
	if _, err := OpenReader(filepath.Join(t.TempDir(), "missing.jsonl")); err == nil {
		t.Fatal("expected error for missing path")
	}
}
