package order

import (
	"errors"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrKillSwitch       = errors.New("risk: kill switch engaged")
	ErrMaxQty           = errors.New("risk: quantity limit exceeded")
	ErrMaxNotional      = errors.New("risk: notional limit exceeded")
	ErrRateLimited      = errors.New("risk: order rate limit exceeded")
	ErrPriceBand        = errors.New("risk: price outside deviation band")
	ErrNoReferencePrice = errors.New("risk: no reference price")
)

// Limits defines static per-order risk limits.
type Limits struct {
	KillSwitch bool
	// MaxOrderQty caps a single order's base quantity. Zero disables.
	MaxOrderQty decimal.Decimal
	// MaxOrderNotional caps price*quantity. Zero disables.
	MaxOrderNotional decimal.Decimal
	// OrderRateLimit caps orders per OrderRateWindow. Zero disables.
	OrderRateLimit  int
	OrderRateWindow time.Duration
	// MaxPriceDeviationBps rejects limit prices this far from the
	// reference price. Zero disables.
	MaxPriceDeviationBps int64
}

// Guard evaluates orders against the limits before they leave the
// process.
type Guard struct {
	limits Limits

	mu              sync.Mutex
	rateWindowStart time.Time
	rateCount       int
}

// NewGuard creates a guard with static limits.
func NewGuard(limits Limits) *Guard {
	return &Guard{limits: limits}
}

// Evaluate returns nil when the order may be sent. refPrice is the
// current market price used for the deviation band; pass zero when
// unknown.
func (g *Guard) Evaluate(req Request, refPrice decimal.Decimal) error {
	if g.limits.KillSwitch {
		return ErrKillSwitch
	}

	if g.limits.OrderRateLimit > 0 && g.limits.OrderRateWindow > 0 {
		g.mu.Lock()
		now := time.Now()
		if g.rateWindowStart.IsZero() || now.Sub(g.rateWindowStart) >= g.limits.OrderRateWindow {
			g.rateWindowStart = now
			g.rateCount = 0
		}
		g.rateCount++
		over := g.rateCount > g.limits.OrderRateLimit
		g.mu.Unlock()
		if over {
			return ErrRateLimited
		}
	}

	if g.limits.MaxOrderQty.IsPositive() && req.Quantity.GreaterThan(g.limits.MaxOrderQty) {
		return ErrMaxQty
	}

	if g.limits.MaxOrderNotional.IsPositive() {
		price := req.Price
		if req.Type == TypeMarket {
			price = refPrice
		}
		if !price.IsPositive() {
			return ErrNoReferencePrice
		}
		if price.Mul(req.Quantity).GreaterThan(g.limits.MaxOrderNotional) {
			return ErrMaxNotional
		}
	}

	if g.limits.MaxPriceDeviationBps > 0 && req.Type == TypeLimit && refPrice.IsPositive() {
		band := refPrice.Mul(decimal.NewFromInt(g.limits.MaxPriceDeviationBps)).
			Div(decimal.NewFromInt(10000))
		if req.Price.Sub(refPrice).Abs().GreaterThan(band) {
			return ErrPriceBand
		}
	}

	return nil
}
