package model

import (
	"github.com/bytedance/sonic"
	"github.com/yanun0323/errors"
)

var json = sonic.ConfigStd

var (
	ErrEmptySymbol    = errors.New("event symbol is empty")
	ErrUnknownKind    = errors.New("event kind is unknown")
	ErrMissingVariant = errors.New("event variant does not match kind")
)

// Encode appends the single-line serialization of the event to dst.
// The output never contains a newline; raw payloads are base64 encoded.
func Encode(dst []byte, e Event) ([]byte, error) {
	if err := e.validate(); err != nil {
		return dst, err
	}
	data, err := json.Marshal(e)
	if err != nil {
		return dst, errors.Wrap(err, "marshal event")
	}
	return append(dst, data...), nil
}

// Decode parses one serialized event. Every semantic field, the raw
// payload included, round-trips byte identical through Encode/Decode.
func Decode(data []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return Event{}, errors.Wrap(err, "unmarshal event")
	}
	if err := e.validate(); err != nil {
		return Event{}, err
	}
	return e, nil
}

func (e Event) validate() error {
	if e.Symbol == "" {
		return ErrEmptySymbol
	}
	switch e.Kind {
	case KindKline:
		if e.Kline == nil {
			return ErrMissingVariant
		}
	case KindAggTrade:
		if e.AggTrade == nil {
			return ErrMissingVariant
		}
	case KindMarkPrice:
		if e.MarkPrice == nil {
			return ErrMissingVariant
		}
	case KindSpotTrade:
		if e.SpotTrade == nil {
			return ErrMissingVariant
		}
	default:
		return ErrUnknownKind
	}
	return nil
}
