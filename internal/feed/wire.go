package feed

import (
	stdjson "encoding/json"

	"github.com/bytedance/sonic"
	"github.com/shopspring/decimal"
	"github.com/yanun0323/errors"

	"main/internal/model"
)

var json = sonic.ConfigFastest

// combinedFrame is the envelope of a combined-stream message.
type combinedFrame struct {
	Stream string             `json:"stream"`
	Data   stdjson.RawMessage `json:"data"`
}

type klineFrame struct {
	EventType string `json:"e"`
	Symbol    string `json:"s"`
	Kline     struct {
		StartTs    int64  `json:"t"`
		CloseTs    int64  `json:"T"`
		Interval   string `json:"i"`
		Open       string `json:"o"`
		Close      string `json:"c"`
		High       string `json:"h"`
		Low        string `json:"l"`
		Volume     string `json:"v"`
		TradeCount uint64 `json:"n"`
		Closed     bool   `json:"x"`
	} `json:"k"`
}

type aggTradeFrame struct {
	EventType string `json:"e"`
	Symbol    string `json:"s"`
	TradeID   int64  `json:"a"`
	Price     string `json:"p"`
	Quantity  string `json:"q"`
	TradeTs   int64  `json:"T"`
	Maker     bool   `json:"m"`
}

type markPriceFrame struct {
	EventType string `json:"e"`
	Symbol    string `json:"s"`
	Price     string `json:"p"`
}

type spotTradeFrame struct {
	EventType string `json:"e"`
	Symbol    string `json:"s"`
	TradeID   int64  `json:"t"`
	Price     string `json:"p"`
	Quantity  string `json:"q"`
	TradeTs   int64  `json:"T"`
	Maker     bool   `json:"m"`
}

// parseFunc turns one raw combined-stream message into at most one event.
// ok is false when the message is well formed but carries nothing to
// publish, e.g. an unexpected event type on the stream.
type parseFunc func(raw []byte, recvTs int64) (e model.Event, ok bool, err error)

func unwrapData(raw []byte) (stdjson.RawMessage, error) {
	var frame combinedFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return nil, errors.Wrap(err, "decode stream envelope")
	}
	if len(frame.Data) == 0 {
		return nil, errors.New("stream envelope without data")
	}
	return frame.Data, nil
}

func parseKline(raw []byte, recvTs int64) (model.Event, bool, error) {
	data, err := unwrapData(raw)
	if err != nil {
		return model.Event{}, false, err
	}
	var f klineFrame
	if err := json.Unmarshal(data, &f); err != nil {
		return model.Event{}, false, errors.Wrap(err, "decode kline")
	}
	if f.EventType != "kline" {
		return model.Event{}, false, nil
	}
	k := model.Kline{
		Interval:   f.Kline.Interval,
		TradeCount: f.Kline.TradeCount,
		StartTs:    f.Kline.StartTs,
		CloseTs:    f.Kline.CloseTs,
		Closed:     f.Kline.Closed,
	}
	fields := []struct {
		dst *decimal.Decimal
		src string
	}{
		{&k.Open, f.Kline.Open},
		{&k.High, f.Kline.High},
		{&k.Low, f.Kline.Low},
		{&k.Close, f.Kline.Close},
		{&k.Volume, f.Kline.Volume},
	}
	for _, fd := range fields {
		d, err := decimal.NewFromString(fd.src)
		if err != nil {
			return model.Event{}, false, errors.Wrap(err, "parse kline price")
		}
		*fd.dst = d
	}
	return model.NewKline(f.Symbol, recvTs, k, raw), true, nil
}

func parseAggTrade(raw []byte, recvTs int64) (model.Event, bool, error) {
	data, err := unwrapData(raw)
	if err != nil {
		return model.Event{}, false, err
	}
	var f aggTradeFrame
	if err := json.Unmarshal(data, &f); err != nil {
		return model.Event{}, false, errors.Wrap(err, "decode aggTrade")
	}
	if f.EventType != "aggTrade" {
		return model.Event{}, false, nil
	}
	price, err := decimal.NewFromString(f.Price)
	if err != nil {
		return model.Event{}, false, errors.Wrap(err, "parse aggTrade price")
	}
	qty, err := decimal.NewFromString(f.Quantity)
	if err != nil {
		return model.Event{}, false, errors.Wrap(err, "parse aggTrade quantity")
	}
	return model.NewAggTrade(f.Symbol, recvTs, model.AggTrade{
		TradeID:  f.TradeID,
		Price:    price,
		Quantity: qty,
		TradeTs:  f.TradeTs,
		Maker:    f.Maker,
	}, raw), true, nil
}

func parseMarkPrice(raw []byte, recvTs int64) (model.Event, bool, error) {
	data, err := unwrapData(raw)
	if err != nil {
		return model.Event{}, false, err
	}
	var f markPriceFrame
	if err := json.Unmarshal(data, &f); err != nil {
		return model.Event{}, false, errors.Wrap(err, "decode markPrice")
	}
	if f.EventType != "markPriceUpdate" {
		return model.Event{}, false, nil
	}
	price, err := decimal.NewFromString(f.Price)
	if err != nil {
		return model.Event{}, false, errors.Wrap(err, "parse mark price")
	}
	return model.NewMarkPrice(f.Symbol, recvTs, model.MarkPrice{Price: price}, raw), true, nil
}

func parseSpotTrade(raw []byte, recvTs int64) (model.Event, bool, error) {
	data, err := unwrapData(raw)
	if err != nil {
		return model.Event{}, false, err
	}
	var f spotTradeFrame
	if err := json.Unmarshal(data, &f); err != nil {
		return model.Event{}, false, errors.Wrap(err, "decode trade")
	}
	if f.EventType != "trade" {
		return model.Event{}, false, nil
	}
	price, err := decimal.NewFromString(f.Price)
	if err != nil {
		return model.Event{}, false, errors.Wrap(err, "parse trade price")
	}
	qty, err := decimal.NewFromString(f.Quantity)
	if err != nil {
		return model.Event{}, false, errors.Wrap(err, "parse trade quantity")
	}
	return model.NewSpotTrade(f.Symbol, recvTs, model.SpotTrade{
		TradeID:  f.TradeID,
		Price:    price,
		Quantity: qty,
		TradeTs:  f.TradeTs,
		Maker:    f.Maker,
	}, raw), true, nil
}
