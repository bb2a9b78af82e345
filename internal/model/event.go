package model

import (
	"github.com/shopspring/decimal"
)

// Kind tags the variant carried by an Event.
type Kind string

const (
	KindUnknown   Kind = ""
	KindKline     Kind = "K"
	KindAggTrade  Kind = "T"
	KindMarkPrice Kind = "M"
	KindSpotTrade Kind = "S"
)

// IsAvailable reports whether the kind is one of the known variants.
func (k Kind) IsAvailable() bool {
	switch k {
	case KindKline, KindAggTrade, KindMarkPrice, KindSpotTrade:
		return true
	default:
		return false
	}
}

// Event is the canonical representation of one market data occurrence.
// Seq is assigned at admission; RecvTs is the local observation time in
// unix nanoseconds. Exactly one variant pointer is set, selected by Kind.
// Raw keeps the original wire message verbatim.
type Event struct {
	Seq    uint64 `json:"q"`
	RecvTs int64  `json:"r"`
	Symbol string `json:"s"`
	Kind   Kind   `json:"k"`

	Kline     *Kline     `json:"kl,omitempty"`
	AggTrade  *AggTrade  `json:"at,omitempty"`
	MarkPrice *MarkPrice `json:"mp,omitempty"`
	SpotTrade *SpotTrade `json:"st,omitempty"`

	Raw []byte `json:"w,omitempty"`
}

// Kline is one futures candlestick update.
type Kline struct {
	Interval   string          `json:"i"`
	Open       decimal.Decimal `json:"o"`
	High       decimal.Decimal `json:"h"`
	Low        decimal.Decimal `json:"l"`
	Close      decimal.Decimal `json:"c"`
	Volume     decimal.Decimal `json:"v"`
	TradeCount uint64          `json:"n"`
	StartTs    int64           `json:"t"`
	CloseTs    int64           `json:"T"`
	Closed     bool            `json:"x"`
}

// AggTrade is one futures aggregate trade.
type AggTrade struct {
	TradeID  int64           `json:"t"`
	Price    decimal.Decimal `json:"p"`
	Quantity decimal.Decimal `json:"qt"`
	TradeTs  int64           `json:"T"`
	Maker    bool            `json:"m"`
}

// MarkPrice is one futures mark price tick.
type MarkPrice struct {
	Price decimal.Decimal `json:"p"`
}

// SpotTrade is one spot market trade.
type SpotTrade struct {
	TradeID  int64           `json:"t"`
	Price    decimal.Decimal `json:"p"`
	Quantity decimal.Decimal `json:"qt"`
	TradeTs  int64           `json:"T"`
	Maker    bool            `json:"m"`
}

// NewKline builds a canonical kline event. Seq stays zero until admission.
func NewKline(symbol string, recvTs int64, k Kline, raw []byte) Event {
	return Event{RecvTs: recvTs, Symbol: symbol, Kind: KindKline, Kline: &k, Raw: raw}
}

// NewAggTrade builds a canonical aggregate trade event.
func NewAggTrade(symbol string, recvTs int64, t AggTrade, raw []byte) Event {
	return Event{RecvTs: recvTs, Symbol: symbol, Kind: KindAggTrade, AggTrade: &t, Raw: raw}
}

// NewMarkPrice builds a canonical mark price event.
func NewMarkPrice(symbol string, recvTs int64, m MarkPrice, raw []byte) Event {
	return Event{RecvTs: recvTs, Symbol: symbol, Kind: KindMarkPrice, MarkPrice: &m, Raw: raw}
}

// NewSpotTrade builds a canonical spot trade event.
func NewSpotTrade(symbol string, recvTs int64, t SpotTrade, raw []byte) Event {
	return Event{RecvTs: recvTs, Symbol: symbol, Kind: KindSpotTrade, SpotTrade: &t, Raw: raw}
}

// Price returns the most representative price of the event variant.
func (e Event) Price() (decimal.Decimal, bool) {
	switch e.Kind {
	case KindKline:
		if e.Kline != nil {
			return e.Kline.Close, true
		}
	case KindAggTrade:
		if e.AggTrade != nil {
			return e.AggTrade.Price, true
		}
	case KindMarkPrice:
		if e.MarkPrice != nil {
			return e.MarkPrice.Price, true
		}
	case KindSpotTrade:
		if e.SpotTrade != nil {
			return e.SpotTrade.Price, true
		}
	}
	return decimal.Zero, false
}
