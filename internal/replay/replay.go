package replay

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"time"

	"github.com/yanun0323/logs"

	"main/internal/journal"
	"main/internal/model"
)

// Clock allows deterministic replay control.
type Clock interface {
	Sleep(ctx context.Context, d time.Duration) error
}

type realClock struct{}

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

type pacingMode uint8

const (
	paceRealTime pacingMode = iota
	paceFixedInterval
)

// Pacing controls the delay between replayed events.
type Pacing struct {
	mode     pacingMode
	speed    float64
	maxGap   time.Duration
	interval time.Duration
}

// RealTime paces replay by the recorded receive-timestamp deltas divided
// by speed. maxGap > 0 caps any single sleep at maxGap, so an overnight
// hole in the log does not stall the session; maxGap <= 0 replays every
// gap at its recorded length. speed <= 0 means 1x.
func RealTime(speed float64, maxGap time.Duration) Pacing {
	if speed <= 0 {
		speed = 1
	}
	return Pacing{mode: paceRealTime, speed: speed, maxGap: maxGap}
}

// FixedInterval paces replay with a constant delay between events.
// d <= 0 replays as fast as the consumer admits.
func FixedInterval(d time.Duration) Pacing {
	return Pacing{mode: paceFixedInterval, interval: d}
}

// Stats summarizes one finished replay.
type Stats struct {
	Played  uint64
	Skipped uint64
}

// Engine replays a recorded event log through an admit function. The
// admitter owns sequencing, so replayed events get fresh sequence numbers
// while their recorded receive timestamps are preserved.
type Engine struct {
	pacing Pacing
	clock  Clock
}

// NewEngine creates a replay engine with the given pacing.
func NewEngine(pacing Pacing) *Engine {
	return &Engine{pacing: pacing, clock: realClock{}}
}

// WithClock swaps the clock implementation.
func (e *Engine) WithClock(clock Clock) *Engine {
	if clock != nil {
		e.clock = clock
	}
	return e
}

// Run replays every readable record until the log ends. Corrupt records
// are logged and skipped. An admit error stops the replay.
func (e *Engine) Run(ctx context.Context, r *journal.Reader, admit func(model.Event) error) (Stats, error) {
	if admit == nil {
		return Stats{}, stderrors.New("replay admit is nil")
	}

	var stats Stats
	var prevTS int64
	for {
		select {
		case <-ctx.Done():
			return stats, ctx.Err()
		default:
		}

		ev, _, err := r.Next()
		if err != nil {
			if err == io.EOF {
				return stats, nil
			}
			var corrupt *journal.CorruptRecord
			if stderrors.As(err, &corrupt) {
				stats.Skipped++
				logs.Errorf("skipping corrupt record at offset %d: %v", corrupt.Offset, corrupt.Err)
				continue
			}
			return stats, fmt.Errorf("read %s: %w", r.Path(), err)
		}

		if err := e.pace(ctx, ev.RecvTs, &prevTS); err != nil {
			return stats, err
		}
		if err := admit(ev); err != nil {
			return stats, err
		}
		stats.Played++
	}
}

func (e *Engine) pace(ctx context.Context, recvTs int64, prevTS *int64) error {
	switch e.pacing.mode {
	case paceFixedInterval:
		if e.pacing.interval <= 0 {
			return nil
		}
		if *prevTS == 0 {
			*prevTS = 1
			return nil
		}
		return e.clock.Sleep(ctx, e.pacing.interval)
	case paceRealTime:
		if recvTs <= 0 {
			return nil
		}
		if *prevTS > 0 {
			delta := recvTs - *prevTS
			if delta > 0 {
				sleep := time.Duration(float64(delta) / e.pacing.speed)
				if e.pacing.maxGap > 0 && sleep > e.pacing.maxGap {
					sleep = e.pacing.maxGap
				}
				if err := e.clock.Sleep(ctx, sleep); err != nil {
					return err
				}
			}
		}
		*prevTS = recvTs
		return nil
	default:
		return nil
	}
}
