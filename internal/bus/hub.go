package bus

import (
	"sync"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"main/internal/model"
	"main/internal/obs"
)

var (
	ErrHubClosed = errors.New("bus hub closed")

	// ErrSubscriberOverload marks a subscription the hub dropped because
	// its queue was full at delivery time.
	ErrSubscriberOverload = errors.New("subscriber overloaded")
)

// Appender is the durable log the hub writes through. Admission treats any
// append failure as fatal.
type Appender interface {
	TryAppend(line []byte) error
}

// Delivery carries one admitted event together with its serialized form.
// The same bytes go to the journal and to every subscriber, so consumers
// on the wire see exactly what the log recorded.
type Delivery struct {
	Event model.Event
	Line  []byte
}

// Subscription is one subscriber's bounded queue. It holds no reference
// into the hub beyond its own queue.
type Subscription struct {
	id uint64
	ch chan Delivery

	mu      sync.Mutex
	closed  bool
	evicted bool
	lastSeq uint64
}

// Events returns the delivery channel. It is closed on Unsubscribe, on
// hub shutdown, and on slow-consumer eviction.
func (s *Subscription) Events() <-chan Delivery {
	return s.ch
}

// Evicted reports whether the hub dropped this subscriber for falling
// behind.
func (s *Subscription) Evicted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.evicted
}

// Err explains why the channel closed: ErrSubscriberOverload after an
// eviction, nil for a normal unsubscribe or hub shutdown.
func (s *Subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.evicted {
		return ErrSubscriberOverload
	}
	return nil
}

// Ack records the last sequence the consumer has processed. Best effort,
// never persisted.
func (s *Subscription) Ack(seq uint64) {
	s.mu.Lock()
	if seq > s.lastSeq {
		s.lastSeq = seq
	}
	s.mu.Unlock()
}

// LastAck returns the last acknowledged sequence.
func (s *Subscription) LastAck() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeq
}

func (s *Subscription) closeLocked(evicted bool) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.evicted = evicted
	s.mu.Unlock()
	close(s.ch)
}

// Hub is the single serialization point for event admission. Sequence
// assignment, journal append, and fan-out happen under one lock so that
// the log and every subscriber observe the identical order, and an event
// is never delivered without first being handed to the journal.
type Hub struct {
	mu      sync.Mutex
	seq     uint64
	journal Appender
	subs    map[uint64]*Subscription
	nextID  uint64
	closed  bool
	metrics *obs.Metrics
	encBuf  []byte
}

// NewHub creates a hub. journal may be nil for sessions that publish
// without recording (a replay against an already recorded log).
func NewHub(journal Appender, metrics *obs.Metrics) *Hub {
	return &Hub{
		journal: journal,
		subs:    make(map[uint64]*Subscription),
		metrics: metrics,
	}
}

// Admit assigns the next sequence to the event, appends it to the journal,
// and delivers it to every current subscriber in order. A subscriber whose
// queue is full is evicted; publication to the others never blocks.
func (h *Hub) Admit(e model.Event) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return ErrHubClosed
	}

	e.Seq = h.seq + 1
	line, err := model.Encode(h.encBuf[:0], e)
	if err != nil {
		// The sequence is only consumed by admissible events.
		return err
	}
	h.seq = e.Seq

	// The hub's encode buffer is reused; journal and subscribers get a
	// stable copy.
	out := make([]byte, len(line))
	copy(out, line)
	h.encBuf = line[:0]

	if h.journal != nil {
		// A failed append means durability is gone. Admission stops and
		// every subscriber is disconnected so nothing downstream acts on
		// an event the log never saw.
		if err := h.journal.TryAppend(out); err != nil {
			h.closeSubscribersLocked()
			h.closed = true
			return errors.Wrap(err, "journal append")
		}
	}

	delivery := Delivery{Event: e, Line: out}
	for id, sub := range h.subs {
		select {
		case sub.ch <- delivery:
		default:
			delete(h.subs, id)
			sub.closeLocked(true)
			h.metrics.IncEviction()
			logs.Errorf("evicted slow subscriber %d at seq %d", id, e.Seq)
		}
	}

	h.metrics.ObserveEvent(e)
	if h.journal != nil {
		// Replay sessions carry recorded receive timestamps, which
		// would poison the latency stats.
		h.metrics.ObserveAdmitDelay(e.RecvTs)
	}
	return nil
}

// Subscribe registers a new subscriber. Delivery starts with the next
// admitted event; there is no historical backfill.
func (h *Hub) Subscribe(queueSize int) *Subscription {
	if queueSize <= 0 {
		queueSize = 1
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	sub := &Subscription{
		id: h.nextID,
		ch: make(chan Delivery, queueSize),
	}
	if h.closed {
		sub.closeLocked(false)
		return sub
	}
	h.subs[sub.id] = sub
	return sub
}

// Unsubscribe removes a subscriber and closes its channel.
func (h *Hub) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	h.mu.Lock()
	delete(h.subs, sub.id)
	h.mu.Unlock()
	sub.closeLocked(false)
}

// Seq returns the last assigned sequence number.
func (h *Hub) Seq() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.seq
}

// Subscribers returns the current subscriber count.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close disconnects every subscriber and stops admission.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	h.closeSubscribersLocked()
}

func (h *Hub) closeSubscribersLocked() {
	for id, sub := range h.subs {
		delete(h.subs, id)
		sub.closeLocked(false)
	}
}
