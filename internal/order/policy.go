package order

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/yanun0323/logs"

	"main/internal/market"
)

// Policy decides whether the current market state warrants an order.
type Policy interface {
	// Decide returns the order to place, or ok=false when nothing should
	// be sent for this snapshot.
	Decide(snap market.Snapshot) (*Request, bool)
	// OnAccepted tells the policy an order it proposed was accepted.
	OnAccepted(req Request)
}

// DipConfig parameterizes the default dip-buying policy.
type DipConfig struct {
	// DropPct triggers a buy when price falls this percentage below the
	// windowed high.
	DropPct decimal.Decimal
	// TakeProfitPct exits a position when price rises this percentage
	// above the entry.
	TakeProfitPct decimal.Decimal
	// QuoteAmount is the quote currency spent per buy.
	QuoteAmount decimal.Decimal
	// Cooldown spaces out orders per symbol.
	Cooldown time.Duration
}

func (c DipConfig) withDefaults() DipConfig {
	if !c.DropPct.IsPositive() {
		c.DropPct = decimal.NewFromInt(1)
	}
	if !c.TakeProfitPct.IsPositive() {
		c.TakeProfitPct = decimal.NewFromFloat(0.5)
	}
	if !c.QuoteAmount.IsPositive() {
		c.QuoteAmount = decimal.NewFromInt(300)
	}
	if c.Cooldown <= 0 {
		c.Cooldown = time.Minute
	}
	return c
}

type position struct {
	entry decimal.Decimal
	qty   decimal.Decimal
}

// DipPolicy buys a configured drop from the recent high and sells the
// position back at a profit target. One open position per symbol.
type DipPolicy struct {
	cfg DipConfig
	now func() time.Time

	mu        sync.Mutex
	lastOrder map[string]time.Time
	positions map[string]position
}

// NewDipPolicy creates the policy with defaults applied.
func NewDipPolicy(cfg DipConfig) *DipPolicy {
	return &DipPolicy{
		cfg:       cfg.withDefaults(),
		now:       time.Now,
		lastOrder: make(map[string]time.Time),
		positions: make(map[string]position),
	}
}

// WithNow swaps the time source.
func (p *DipPolicy) WithNow(now func() time.Time) *DipPolicy {
	if now != nil {
		p.now = now
	}
	return p
}

// Decide implements Policy.
func (p *DipPolicy) Decide(snap market.Snapshot) (*Request, bool) {
	price := snap.LastPrice
	if !price.IsPositive() && len(snap.Closes) > 0 {
		price = snap.Closes[len(snap.Closes)-1]
	}
	if !price.IsPositive() {
		return nil, false
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if last, ok := p.lastOrder[snap.Symbol]; ok && p.now().Sub(last) < p.cfg.Cooldown {
		return nil, false
	}

	hundred := decimal.NewFromInt(100)
	if pos, ok := p.positions[snap.Symbol]; ok {
		target := pos.entry.Mul(hundred.Add(p.cfg.TakeProfitPct)).Div(hundred)
		if price.GreaterThanOrEqual(target) {
			req := NewRequest(snap.Symbol, SideSell, TypeLimit, pos.qty, price)
			p.lastOrder[snap.Symbol] = p.now()
			return &req, true
		}
		return nil, false
	}

	high := windowHigh(snap.Closes)
	if !high.IsPositive() {
		return nil, false
	}
	trigger := high.Mul(hundred.Sub(p.cfg.DropPct)).Div(hundred)
	if price.GreaterThan(trigger) {
		return nil, false
	}

	qty := p.cfg.QuoteAmount.Div(price)
	req := NewRequest(snap.Symbol, SideBuy, TypeLimit, qty, price)
	p.lastOrder[snap.Symbol] = p.now()
	return &req, true
}

// OnAccepted implements Policy, flipping the per-symbol position.
func (p *DipPolicy) OnAccepted(req Request) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch req.Side {
	case SideBuy:
		p.positions[req.Symbol] = position{entry: req.Price, qty: req.Quantity}
		logs.Infof("opened %s position: %s @ %s", req.Symbol, req.Quantity, req.Price)
	case SideSell:
		delete(p.positions, req.Symbol)
		logs.Infof("closed %s position: %s @ %s", req.Symbol, req.Quantity, req.Price)
	}
}

func windowHigh(closes []decimal.Decimal) decimal.Decimal {
	var high decimal.Decimal
	for _, c := range closes {
		if c.GreaterThan(high) {
			high = c
		}
	}
	return high
}
