package order

import (
	"errors"
	"sync"
	"time"
)

var (
	ErrDuplicateOrder    = errors.New("order already exists")
	ErrUnknownOrder      = errors.New("order not found")
	ErrInvalidTransition = errors.New("invalid order state transition")
)

// Status tracks the lifecycle of a placed order.
type Status uint8

const (
	StatusUnknown Status = iota
	StatusPending
	StatusAccepted
	StatusRejected
	StatusTimedOut
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "PENDING"
	case StatusAccepted:
		return "ACCEPTED"
	case StatusRejected:
		return "REJECTED"
	case StatusTimedOut:
		return "TIMED_OUT"
	default:
		return "UNKNOWN"
	}
}

// Order is the tracker's view of one placed order.
type Order struct {
	Request
	Status     Status
	ExchangeID int64
	PlacedAt   time.Time
	UpdatedAt  time.Time
}

// Tracker records every order the session has placed, keyed by ClientID.
type Tracker struct {
	mu     sync.Mutex
	orders map[string]*Order
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{orders: make(map[string]*Order)}
}

// Track registers a new order in Pending state.
func (t *Tracker) Track(req Request) (*Order, error) {
	if req.ClientID == "" {
		return nil, ErrUnknownOrder
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.orders[req.ClientID]; ok {
		return nil, ErrDuplicateOrder
	}
	now := time.Now()
	o := &Order{
		Request:   req,
		Status:    StatusPending,
		PlacedAt:  now,
		UpdatedAt: now,
	}
	t.orders[req.ClientID] = o
	return o, nil
}

// MarkAccepted moves a pending order to Accepted with its exchange id.
func (t *Tracker) MarkAccepted(clientID string, exchangeID int64) (*Order, error) {
	return t.transition(clientID, StatusAccepted, exchangeID)
}

// MarkRejected moves a pending order to Rejected.
func (t *Tracker) MarkRejected(clientID string) (*Order, error) {
	return t.transition(clientID, StatusRejected, 0)
}

// MarkTimedOut moves a pending order to TimedOut. Whether it exists on
// the exchange is unresolved; the state says so.
func (t *Tracker) MarkTimedOut(clientID string) (*Order, error) {
	return t.transition(clientID, StatusTimedOut, 0)
}

func (t *Tracker) transition(clientID string, next Status, exchangeID int64) (*Order, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	o, ok := t.orders[clientID]
	if !ok {
		return nil, ErrUnknownOrder
	}
	if o.Status != StatusPending {
		return o, ErrInvalidTransition
	}
	o.Status = next
	if exchangeID != 0 {
		o.ExchangeID = exchangeID
	}
	o.UpdatedAt = time.Now()
	return o, nil
}

// Order returns the tracked order for a client id.
func (t *Tracker) Order(clientID string) (Order, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	o, ok := t.orders[clientID]
	if !ok {
		return Order{}, false
	}
	return *o, true
}

// Count returns the number of tracked orders.
func (t *Tracker) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.orders)
}
