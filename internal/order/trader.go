package order

import (
	"context"
	"errors"

	"github.com/yanun0323/logs"

	"main/internal/bus"
	"main/internal/market"
)

// AuditSink records order outcomes outside the event log. Implementations
// must tolerate being called for every placed order.
type AuditSink interface {
	RecordOrder(ctx context.Context, o Order) error
}

// Trader folds the event stream into market state and turns policy
// decisions into signed orders. Without a submitter it runs in paper
// mode: orders are tracked and accepted locally, nothing leaves the
// process.
type Trader struct {
	book      *market.Book
	policy    Policy
	guard     *Guard
	submitter *Submitter
	tracker   *Tracker
	audit     AuditSink
}

// NewTrader wires a trader. submitter and audit may be nil.
func NewTrader(book *market.Book, policy Policy, guard *Guard, submitter *Submitter, audit AuditSink) *Trader {
	if guard == nil {
		guard = NewGuard(Limits{})
	}
	return &Trader{
		book:      book,
		policy:    policy,
		guard:     guard,
		submitter: submitter,
		tracker:   NewTracker(),
		audit:     audit,
	}
}

// Tracker exposes the order lifecycle state.
func (t *Trader) Tracker() *Tracker {
	return t.tracker
}

// EventSource is the hub side of a trader subscription. *bus.Hub
// satisfies it.
type EventSource interface {
	Subscribe(queueSize int) *bus.Subscription
}

// Resubscribe runs traders built by build against source subscriptions
// until the context ends or the source shuts down. A trader evicted for
// falling behind is replaced with a fresh one rebuilding its state from
// the live stream; the producer keeps running either way.
func Resubscribe(ctx context.Context, source EventSource, queueSize int, build func() *Trader) error {
	for {
		sub := source.Subscribe(queueSize)
		if err := build().Run(ctx, sub.Events()); err != nil {
			return err
		}
		if !errors.Is(sub.Err(), bus.ErrSubscriberOverload) {
			return nil
		}
		logs.Errorf("trader evicted for falling behind, resubscribing")
	}
}

// Run consumes deliveries until the channel closes or the context ends.
// A closed channel is a clean stop: the hub shut down or evicted us.
func (t *Trader) Run(ctx context.Context, deliveries <-chan bus.Delivery) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				logs.Info("trader subscription closed")
				return nil
			}
			t.handle(ctx, d)
		}
	}
}

func (t *Trader) handle(ctx context.Context, d bus.Delivery) {
	t.book.Apply(d.Event)

	snap, ok := t.book.Snapshot(d.Event.Symbol)
	if !ok {
		return
	}
	req, ok := t.policy.Decide(snap)
	if !ok {
		return
	}
	if err := t.guard.Evaluate(*req, snap.LastPrice); err != nil {
		logs.Errorf("order %s blocked: %v", req.ClientID, err)
		return
	}
	t.place(ctx, *req)
}

func (t *Trader) place(ctx context.Context, req Request) {
	if _, err := t.tracker.Track(req); err != nil {
		logs.Errorf("track order %s: %v", req.ClientID, err)
		return
	}

	if t.submitter == nil {
		t.tracker.MarkAccepted(req.ClientID, 0)
		t.policy.OnAccepted(req)
		logs.Infof("paper %s %s %s @ %s (%s)", req.Side, req.Quantity, req.Symbol, req.Price, req.ClientID)
		t.record(ctx, req.ClientID)
		return
	}

	resp, err := t.submitter.Place(ctx, req)
	switch {
	case err == nil:
		t.tracker.MarkAccepted(req.ClientID, resp.OrderID)
		t.policy.OnAccepted(req)
		logs.Infof("placed %s %s %s @ %s (%s -> %d %s)",
			req.Side, req.Quantity, req.Symbol, req.Price, req.ClientID, resp.OrderID, resp.Status)
	case errors.Is(err, ErrOrderRejected):
		t.tracker.MarkRejected(req.ClientID)
		logs.Errorf("order %s rejected: %v", req.ClientID, err)
	default:
		// Timeout or cancellation: the exchange may still hold this
		// order, keep it visible as timed out.
		t.tracker.MarkTimedOut(req.ClientID)
		logs.Errorf("order %s unresolved: %v", req.ClientID, err)
	}
	t.record(ctx, req.ClientID)
}

func (t *Trader) record(ctx context.Context, clientID string) {
	if t.audit == nil {
		return
	}
	o, ok := t.tracker.Order(clientID)
	if !ok {
		return
	}
	if err := t.audit.RecordOrder(ctx, o); err != nil {
		logs.Errorf("audit order %s: %v", clientID, err)
	}
}
