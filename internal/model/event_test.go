package model

import (
	"bytes"
	"testing"

	"github.com/shopspring/decimal"
)

func TestEventEncodeDecodeRoundTrip(t *testing.T) {
	raw := []byte(`{"e":"kline","s":"BTCUSDT","k":{"o":"100.1"}}`)
	orig := NewKline("BTCUSDT", 1700000000123456789, Kline{
		Interval:   "1m",
		Open:       decimal.RequireFromString("100.1"),
		High:       decimal.RequireFromString("101.5"),
		Low:        decimal.RequireFromString("99.8"),
		Close:      decimal.RequireFromString("100.9"),
		Volume:     decimal.RequireFromString("12.345"),
		TradeCount: 42,
		StartTs:    1700000000000,
		CloseTs:    1700000059999,
		Closed:     true,
	}, raw)
	orig.Seq = 7

	encoded, err := Encode(nil, orig)
	if err != nil {
		t.Fatalf("encode event: %v", err)
	}
	if bytes.IndexByte(encoded, '\n') >= 0 {
		t.Fatalf("encoded event contains a newline: %s", encoded)
	}

	decoded, err := Decode(encoded)
	if err != nil {
		t.Fatalf("decode event: %v", err)
	}
	if decoded.Seq != orig.Seq || decoded.RecvTs != orig.RecvTs || decoded.Symbol != orig.Symbol || decoded.Kind != orig.Kind {
		t.Fatalf("decoded header mismatch: got %+v want %+v", decoded, orig)
	}
	if decoded.Kline == nil {
		t.Fatal("decoded kline variant is nil")
	}
	if !decoded.Kline.Close.Equal(orig.Kline.Close) || !decoded.Kline.Volume.Equal(orig.Kline.Volume) {
		t.Fatalf("decoded kline mismatch: got %+v want %+v", decoded.Kline, orig.Kline)
	}
	if decoded.Kline.TradeCount != orig.Kline.TradeCount || decoded.Kline.Closed != orig.Kline.Closed {
		t.Fatalf("decoded kline meta mismatch: got %+v want %+v", decoded.Kline, orig.Kline)
	}
	if !bytes.Equal(decoded.Raw, orig.Raw) {
		t.Fatalf("raw payload mismatch: got %s want %s", decoded.Raw, orig.Raw)
	}
}

func TestEventTradeVariants(t *testing.T) {
	agg := NewAggTrade("ETHUSDT", 1, AggTrade{
		TradeID:  991,
		Price:    decimal.RequireFromString("2000.25"),
		Quantity: decimal.RequireFromString("0.5"),
		TradeTs:  1700000000001,
		Maker:    true,
	}, []byte(`{}`))

	encoded, err := Encode(nil, agg)
	if err != nil {
		t.Fatalf("encode agg trade: %v", err)
	}
	decoded, err := Decode(encoded)
	if err != nil {
		t.Fatalf("decode agg trade: %v", err)
	}
	if decoded.AggTrade == nil || decoded.AggTrade.TradeID != 991 || !decoded.AggTrade.Maker {
		t.Fatalf("agg trade mismatch: %+v", decoded.AggTrade)
	}

	price, ok := decoded.Price()
	if !ok || !price.Equal(agg.AggTrade.Price) {
		t.Fatalf("price mismatch: got %s ok=%v", price, ok)
	}
}

func TestDecodeRejectsInvalidEvents(t *testing.T) {
	cases := []struct {
		name string
		data string
	}{
		{"not json", `not json at all`},
		{"empty symbol", `{"q":1,"r":1,"s":"","k":"M","mp":{"p":"1"}}`},
		{"unknown kind", `{"q":1,"r":1,"s":"BTCUSDT","k":"Z"}`},
		{"kind without variant", `{"q":1,"r":1,"s":"BTCUSDT","k":"K"}`},
	}
	for _, tc := range cases {
		if _, err := Decode([]byte(tc.data)); err == nil {
			t.Fatalf("%s: expected decode error", tc.name)
		}
	}
}

func TestEncodeRejectsInvalidEvent(t *testing.T) {
	if _, err := Encode(nil, Event{Symbol: "BTCUSDT", Kind: KindKline}); err == nil {
		t.Fatal("expected encode error for kind without variant")
	}
}
