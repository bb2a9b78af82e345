package obs

import (
	"sync/atomic"
	"time"

	"main/internal/model"
)

// Metrics collects lightweight counters and latency stats for the
// admission path. Everything is atomic; no collectors, no exporters.
type Metrics struct {
	klines     uint64
	aggTrades  uint64
	markPrices uint64
	spotTrades uint64

	malformed  uint64
	evictions  uint64
	reconnects uint64

	admitLatency LatencyStats
}

// LatencyStats aggregates duration samples in nanoseconds.
type LatencyStats struct {
	count uint64
	sum   uint64
	max   uint64
}

// LatencySnapshot is a point-in-time view of latency stats.
type LatencySnapshot struct {
	Count uint64
	Max   time.Duration
	Avg   time.Duration
}

// Snapshot captures the current metrics values.
type Snapshot struct {
	EventCounts  map[model.Kind]uint64
	Malformed    uint64
	Evictions    uint64
	Reconnects   uint64
	AdmitLatency LatencySnapshot
}

// NewMetrics allocates a metrics container.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// ObserveEvent counts an admitted event.
func (m *Metrics) ObserveEvent(e model.Event) {
	if m == nil {
		return
	}
	switch e.Kind {
	case model.KindKline:
		atomic.AddUint64(&m.klines, 1)
	case model.KindAggTrade:
		atomic.AddUint64(&m.aggTrades, 1)
	case model.KindMarkPrice:
		atomic.AddUint64(&m.markPrices, 1)
	case model.KindSpotTrade:
		atomic.AddUint64(&m.spotTrades, 1)
	}
}

// ObserveAdmitDelay samples receive-to-admission latency against a
// receive timestamp in unix nanoseconds. Callers replaying historical
// timestamps must not sample.
func (m *Metrics) ObserveAdmitDelay(recvTs int64) {
	if m == nil || recvTs <= 0 {
		return
	}
	delta := time.Now().UTC().UnixNano() - recvTs
	if delta >= 0 {
		m.admitLatency.Observe(time.Duration(delta))
	}
}

// IncMalformed records a wire message that failed to parse.
func (m *Metrics) IncMalformed() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.malformed, 1)
}

// IncEviction records a slow-consumer eviction.
func (m *Metrics) IncEviction() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.evictions, 1)
}

// IncReconnect records an upstream reconnect attempt.
func (m *Metrics) IncReconnect() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.reconnects, 1)
}

// Snapshot returns a copy of the current metrics values.
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	return Snapshot{
		EventCounts: map[model.Kind]uint64{
			model.KindKline:     atomic.LoadUint64(&m.klines),
			model.KindAggTrade:  atomic.LoadUint64(&m.aggTrades),
			model.KindMarkPrice: atomic.LoadUint64(&m.markPrices),
			model.KindSpotTrade: atomic.LoadUint64(&m.spotTrades),
		},
		Malformed:    atomic.LoadUint64(&m.malformed),
		Evictions:    atomic.LoadUint64(&m.evictions),
		Reconnects:   atomic.LoadUint64(&m.reconnects),
		AdmitLatency: m.admitLatency.Snapshot(),
	}
}

// Observe adds one duration sample.
func (s *LatencyStats) Observe(d time.Duration) {
	if d < 0 {
		return
	}
	v := uint64(d)
	atomic.AddUint64(&s.count, 1)
	atomic.AddUint64(&s.sum, v)
	for {
		max := atomic.LoadUint64(&s.max)
		if v <= max || atomic.CompareAndSwapUint64(&s.max, max, v) {
			break
		}
	}
}

// Snapshot returns a copy of the latency stats.
func (s *LatencyStats) Snapshot() LatencySnapshot {
	count := atomic.LoadUint64(&s.count)
	if count == 0 {
		return LatencySnapshot{}
	}
	sum := atomic.LoadUint64(&s.sum)
	return LatencySnapshot{
		Count: count,
		Max:   time.Duration(atomic.LoadUint64(&s.max)),
		Avg:   time.Duration(sum / count),
	}
}
