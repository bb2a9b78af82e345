package order

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Side is the order direction.
type Side uint8

const (
	SideBuy Side = iota + 1
	SideSell
)

func (s Side) String() string {
	switch s {
	case SideBuy:
		return "BUY"
	case SideSell:
		return "SELL"
	default:
		return "UNKNOWN"
	}
}

// Type is the order type.
type Type uint8

const (
	TypeLimit Type = iota + 1
	TypeMarket
)

func (t Type) String() string {
	switch t {
	case TypeLimit:
		return "LIMIT"
	case TypeMarket:
		return "MARKET"
	default:
		return "UNKNOWN"
	}
}

// Request is one order to place. ClientID makes retries idempotent: the
// exchange deduplicates on it, so resending the same request after a
// timeout can never double-fill.
type Request struct {
	Symbol   string
	Side     Side
	Type     Type
	Quantity decimal.Decimal
	// Price applies to limit orders only.
	Price decimal.Decimal
	// ClientID is the caller-chosen idempotency key.
	ClientID string
	// Timestamp is the request creation time in ms.
	Timestamp int64
}

// NewRequest fills in a fresh ClientID and timestamp.
func NewRequest(symbol string, side Side, typ Type, qty, price decimal.Decimal) Request {
	return Request{
		Symbol:    symbol,
		Side:      side,
		Type:      typ,
		Quantity:  qty,
		Price:     price,
		ClientID:  uuid.NewString(),
		Timestamp: time.Now().UnixMilli(),
	}
}

// Validate reports the first problem with the request.
func (r Request) Validate() error {
	if r.Symbol == "" {
		return fmt.Errorf("invalid order: empty symbol")
	}
	if r.Side != SideBuy && r.Side != SideSell {
		return fmt.Errorf("invalid order: bad side %d", r.Side)
	}
	if r.Type != TypeLimit && r.Type != TypeMarket {
		return fmt.Errorf("invalid order: bad type %d", r.Type)
	}
	if !r.Quantity.IsPositive() {
		return fmt.Errorf("invalid order: quantity %s not positive", r.Quantity)
	}
	if r.Type == TypeLimit && !r.Price.IsPositive() {
		return fmt.Errorf("invalid order: limit price %s not positive", r.Price)
	}
	if r.ClientID == "" {
		return fmt.Errorf("invalid order: empty client id")
	}
	if r.Timestamp <= 0 {
		return fmt.Errorf("invalid order: timestamp %d", r.Timestamp)
	}
	return nil
}

// QueryString renders the canonical signing payload: every parameter as
// key=value, sorted by key, joined with "&". The same bytes are signed
// and sent, so the exchange verifies exactly what was built here.
func (r Request) QueryString() string {
	pairs := []string{
		"symbol=" + r.Symbol,
		"side=" + r.Side.String(),
		"type=" + r.Type.String(),
		"quantity=" + r.Quantity.String(),
		"clientOrderId=" + r.ClientID,
		"timestamp=" + strconv.FormatInt(r.Timestamp, 10),
	}
	if r.Type == TypeLimit {
		pairs = append(pairs, "price="+r.Price.String())
	}
	sort.Strings(pairs)
	return strings.Join(pairs, "&")
}
