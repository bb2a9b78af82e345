package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"time"

	"github.com/yanun0323/logs"
	"github.com/yanun0323/pkg/sys"

	"main/internal/bus"
	"main/internal/journal"
	"main/internal/market"
	"main/internal/obs"
	"main/internal/ops"
	"main/internal/order"
	"main/internal/replay"
	"main/internal/server"
)

// traderQueueSize buffers the paper trader's hub subscription.
const traderQueueSize = 1024

// replayd replays a journal file through the same hub and websocket
// endpoint streamd serves live. Orders always stay in paper mode here.
func main() {
	configPath := flag.String("config", "config.yaml", "path to YAML config")
	journalPath := flag.String("journal", "", "journal file to replay, overrides the config")
	speed := flag.Float64("speed", 0, "realtime speed multiplier, overrides the config")
	interval := flag.Duration("interval", 0, "fixed delay between events, overrides the config to fixed mode")
	flag.Parse()

	cfg, err := ops.Load(*configPath)
	if err != nil {
		log.Fatalf("load config failed: %v", err)
	}
	if *journalPath != "" {
		cfg.JournalPath = *journalPath
	}
	if *speed > 0 {
		cfg.Replay.Mode = "realtime"
		cfg.Replay.Speed = *speed
	}
	if *interval > 0 {
		cfg.Replay.Mode = "fixed"
		cfg.Replay.Interval = *interval
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-sys.Shutdown():
			logs.Info("shutdown signal received")
			cancel()
		case <-ctx.Done():
		}
	}()

	if err := run(ctx, cfg); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("replayd failed: %v", err)
	}
}

func run(ctx context.Context, cfg *ops.Config) error {
	reader, err := journal.OpenReader(cfg.JournalPath)
	if err != nil {
		return err
	}
	defer reader.Close()

	metrics := obs.NewMetrics()
	hub := bus.NewHub(nil, metrics)
	defer hub.Close()

	srv, err := server.New(cfg.ServerConfig(), hub)
	if err != nil {
		return err
	}
	go func() {
		if err := srv.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logs.Errorf("stream server stopped: %v", err)
		}
	}()

	if cfg.Order.Enabled {
		build, err := paperTraderBuilder(cfg)
		if err != nil {
			return err
		}
		go func() {
			if err := order.Resubscribe(ctx, hub, traderQueueSize, build); err != nil && !errors.Is(err, context.Canceled) {
				logs.Errorf("trader stopped: %v", err)
			}
		}()
	}

	engine := replay.NewEngine(pacing(cfg.Replay))
	start := time.Now()
	stats, err := engine.Run(ctx, reader, hub.Admit)
	if err != nil {
		return err
	}

	logs.Infof("replay done, played=%d skipped=%d elapsed=%s journal=%s",
		stats.Played, stats.Skipped, time.Since(start).Round(time.Millisecond), cfg.JournalPath)
	return nil
}

func pacing(cfg ops.ReplayConfig) replay.Pacing {
	if cfg.Mode == "fixed" {
		return replay.FixedInterval(cfg.Interval)
	}
	return replay.RealTime(cfg.Speed, cfg.MaxGap)
}

func paperTraderBuilder(cfg *ops.Config) (func() *order.Trader, error) {
	policyCfg, err := cfg.PolicyConfig()
	if err != nil {
		return nil, err
	}
	limits, err := cfg.RiskLimits()
	if err != nil {
		return nil, err
	}
	guard := order.NewGuard(limits)
	return func() *order.Trader {
		return order.NewTrader(market.NewBook(0), order.NewDipPolicy(policyCfg), guard, nil, nil)
	}, nil
}
