package market

import (
	"testing"

	"github.com/shopspring/decimal"

	"main/internal/model"
)

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	return decimal.RequireFromString(s)
}

func closedKline(t *testing.T, symbol, close, volume string, closeTs int64) model.Event {
	t.Helper()
	return model.NewKline(symbol, closeTs, model.Kline{
		Interval: "1m",
		Open:     dec(t, close),
		High:     dec(t, close),
		Low:      dec(t, close),
		Close:    dec(t, close),
		Volume:   dec(t, volume),
		CloseTs:  closeTs,
		Closed:   true,
	}, nil)
}

func TestApplyTradesAndMarkPrice(t *testing.T) {
	book := NewBook(8)

	book.Apply(model.NewAggTrade("BTCUSDT", 1, model.AggTrade{
		Price: dec(t, "50000"), Quantity: dec(t, "1"), TradeTs: 1000,
	}, nil))
	book.Apply(model.NewMarkPrice("BTCUSDT", 2, model.MarkPrice{Price: dec(t, "50003")}, nil))
	book.Apply(model.NewSpotTrade("BTCUSDT", 3, model.SpotTrade{
		Price: dec(t, "50010"), Quantity: dec(t, "2"), TradeTs: 2000,
	}, nil))

	snap, ok := book.Snapshot("BTCUSDT")
	if !ok {
		t.Fatal("symbol missing")
	}
	if !snap.LastPrice.Equal(dec(t, "50010")) || snap.LastTradeTs != 2000 {
		t.Fatalf("last price = %s at %d", snap.LastPrice, snap.LastTradeTs)
	}
	if !snap.MarkPrice.Equal(dec(t, "50003")) {
		t.Fatalf("mark price = %s", snap.MarkPrice)
	}
	if snap.HasKline {
		t.Fatal("no closed kline applied, yet snapshot has one")
	}
}

func TestApplyKeepsOnlyClosedKlines(t *testing.T) {
	book := NewBook(8)

	open := closedKline(t, "BTCUSDT", "50000", "1", 1000)
	open.Kline.Closed = false
	book.Apply(open)
	if snap, _ := book.Snapshot("BTCUSDT"); snap.HasKline || len(snap.Closes) != 0 {
		t.Fatal("unclosed kline entered the window")
	}

	book.Apply(closedKline(t, "BTCUSDT", "50005", "2", 2000))
	snap, _ := book.Snapshot("BTCUSDT")
	if !snap.HasKline || !snap.LastKline.Close.Equal(dec(t, "50005")) {
		t.Fatalf("last kline = %+v", snap.LastKline)
	}
}

func TestWindowIsBoundedAndSumsVolume(t *testing.T) {
	book := NewBook(3)

	closes := []string{"1", "2", "3", "4", "5"}
	for i, c := range closes {
		book.Apply(closedKline(t, "BTCUSDT", c, "10", int64(i)))
	}

	snap, _ := book.Snapshot("BTCUSDT")
	if len(snap.Closes) != 3 {
		t.Fatalf("window = %v, want 3 entries", snap.Closes)
	}
	for i, want := range []string{"3", "4", "5"} {
		if !snap.Closes[i].Equal(dec(t, want)) {
			t.Fatalf("window = %v", snap.Closes)
		}
	}
	if !snap.VolumeSum.Equal(dec(t, "30")) {
		t.Fatalf("volume sum = %s, want 30", snap.VolumeSum)
	}
}

func TestApplyIsolatesSymbols(t *testing.T) {
	book := NewBook(8)

	book.Apply(model.NewAggTrade("BTCUSDT", 1, model.AggTrade{Price: dec(t, "50000")}, nil))
	book.Apply(model.NewAggTrade("ETHUSDT", 2, model.AggTrade{Price: dec(t, "3000")}, nil))

	btc, _ := book.Snapshot("BTCUSDT")
	eth, _ := book.Snapshot("ETHUSDT")
	if !btc.LastPrice.Equal(dec(t, "50000")) || !eth.LastPrice.Equal(dec(t, "3000")) {
		t.Fatalf("btc=%s eth=%s", btc.LastPrice, eth.LastPrice)
	}
	if _, ok := book.Snapshot("SOLUSDT"); ok {
		t.Fatal("snapshot for unseen symbol")
	}
	if got := len(book.Symbols()); got != 2 {
		t.Fatalf("symbols = %d, want 2", got)
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	book := NewBook(8)
	book.Apply(closedKline(t, "BTCUSDT", "100", "1", 1000))

	snap, _ := book.Snapshot("BTCUSDT")
	snap.Closes[0] = dec(t, "999")

	again, _ := book.Snapshot("BTCUSDT")
	if !again.Closes[0].Equal(dec(t, "100")) {
		t.Fatal("snapshot mutation leaked into the book")
	}
}
