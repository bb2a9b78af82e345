package market

import (
	"sync"

	"github.com/shopspring/decimal"

	"main/internal/model"
)

const defaultWindowSize = 32

// Snapshot is a point-in-time copy of one symbol's state.
type Snapshot struct {
	Symbol string
	// LastPrice is the price of the most recent trade, futures or spot.
	LastPrice decimal.Decimal
	// LastTradeTs is the exchange timestamp of that trade, ms.
	LastTradeTs int64
	// MarkPrice is the most recent futures mark price.
	MarkPrice decimal.Decimal
	// LastKline is the most recent closed candle.
	LastKline model.Kline
	HasKline  bool
	// Closes are the close prices of the windowed candles, oldest first.
	Closes []decimal.Decimal
	// VolumeSum is the total base volume across the windowed candles.
	VolumeSum decimal.Decimal
	// LastSeq is the sequence of the last event applied to this symbol.
	LastSeq uint64
}

type symbolState struct {
	lastPrice   decimal.Decimal
	lastTradeTs int64
	markPrice   decimal.Decimal
	lastKline   model.Kline
	hasKline    bool
	window      []model.Kline
	lastSeq     uint64
}

// Book folds the event stream into per-symbol market state. Apply touches
// only the event's symbol, so one instrument's data never bleeds into
// another's snapshot.
type Book struct {
	mu         sync.RWMutex
	windowSize int
	states     map[string]*symbolState
}

// NewBook creates an empty book keeping windowSize closed candles per
// symbol.
func NewBook(windowSize int) *Book {
	if windowSize <= 0 {
		windowSize = defaultWindowSize
	}
	return &Book{
		windowSize: windowSize,
		states:     make(map[string]*symbolState),
	}
}

// Apply folds one event into the book.
func (b *Book) Apply(e model.Event) {
	if e.Symbol == "" {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	s := b.states[e.Symbol]
	if s == nil {
		s = &symbolState{}
		b.states[e.Symbol] = s
	}
	s.lastSeq = e.Seq

	switch e.Kind {
	case model.KindAggTrade:
		if e.AggTrade != nil {
			s.lastPrice = e.AggTrade.Price
			s.lastTradeTs = e.AggTrade.TradeTs
		}
	case model.KindSpotTrade:
		if e.SpotTrade != nil {
			s.lastPrice = e.SpotTrade.Price
			s.lastTradeTs = e.SpotTrade.TradeTs
		}
	case model.KindMarkPrice:
		if e.MarkPrice != nil {
			s.markPrice = e.MarkPrice.Price
		}
	case model.KindKline:
		if e.Kline != nil && e.Kline.Closed {
			s.lastKline = *e.Kline
			s.hasKline = true
			s.window = append(s.window, *e.Kline)
			if len(s.window) > b.windowSize {
				s.window = s.window[len(s.window)-b.windowSize:]
			}
		}
	}
}

// Snapshot copies out one symbol's state. ok is false for a symbol the
// book has never seen.
func (b *Book) Snapshot(symbol string) (Snapshot, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	s := b.states[symbol]
	if s == nil {
		return Snapshot{}, false
	}

	snap := Snapshot{
		Symbol:      symbol,
		LastPrice:   s.lastPrice,
		LastTradeTs: s.lastTradeTs,
		MarkPrice:   s.markPrice,
		LastKline:   s.lastKline,
		HasKline:    s.hasKline,
		VolumeSum:   decimal.Zero,
		LastSeq:     s.lastSeq,
	}
	snap.Closes = make([]decimal.Decimal, 0, len(s.window))
	for _, k := range s.window {
		snap.Closes = append(snap.Closes, k.Close)
		snap.VolumeSum = snap.VolumeSum.Add(k.Volume)
	}
	return snap, true
}

// Symbols lists every symbol the book has seen.
func (b *Book) Symbols() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]string, 0, len(b.states))
	for sym := range b.states {
		out = append(out, sym)
	}
	return out
}
