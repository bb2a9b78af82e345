package ops

import (
	"fmt"

	"github.com/shopspring/decimal"

	"main/internal/order"
)

func parseDecimal(field, s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid config: %s %q: %w", field, s, err)
	}
	return d, nil
}

// PolicyConfig builds the dip policy parameters.
func (c *Config) PolicyConfig() (order.DipConfig, error) {
	drop, err := parseDecimal("drop_pct", c.Order.DropPct)
	if err != nil {
		return order.DipConfig{}, err
	}
	take, err := parseDecimal("take_profit_pct", c.Order.TakeProfitPct)
	if err != nil {
		return order.DipConfig{}, err
	}
	quote, err := parseDecimal("quote_amount", c.Order.QuoteAmount)
	if err != nil {
		return order.DipConfig{}, err
	}
	return order.DipConfig{
		DropPct:       drop,
		TakeProfitPct: take,
		QuoteAmount:   quote,
		Cooldown:      c.Order.Cooldown,
	}, nil
}

// RiskLimits builds the order guard limits.
func (c *Config) RiskLimits() (order.Limits, error) {
	maxQty, err := parseDecimal("max_order_qty", c.Order.MaxOrderQty)
	if err != nil {
		return order.Limits{}, err
	}
	maxNotional, err := parseDecimal("max_order_notional", c.Order.MaxOrderNotional)
	if err != nil {
		return order.Limits{}, err
	}
	return order.Limits{
		MaxOrderQty:          maxQty,
		MaxOrderNotional:     maxNotional,
		OrderRateLimit:       c.Order.OrderRateLimit,
		OrderRateWindow:      c.Order.OrderRateWindow,
		MaxPriceDeviationBps: c.Order.MaxPriceDeviationBps,
	}, nil
}
