package main

import (
	"context"
	"errors"
	"flag"
	"log"

	"github.com/grafana/pyroscope-go"
	"github.com/yanun0323/logs"
	"github.com/yanun0323/pkg/sys"

	"main/internal/audit"
	"main/internal/bus"
	"main/internal/feed"
	"main/internal/journal"
	"main/internal/market"
	"main/internal/obs"
	"main/internal/ops"
	"main/internal/order"
	"main/internal/server"
)

// traderQueueSize buffers the trader's hub subscription so a slow
// order round trip does not get the trader evicted.
const traderQueueSize = 1024

// streamd ingests live Binance streams, journals every admitted event,
// and broadcasts them to websocket subscribers. With order.enabled it
// also runs the dip trader against the live stream.
func main() {
	configPath := flag.String("config", "config.yaml", "path to YAML config")
	flag.Parse()

	cfg, err := ops.Load(*configPath)
	if err != nil {
		log.Fatalf("load config failed: %v", err)
	}

	if cfg.Pyroscope.Addr != "" {
		profiler, err := pyroscope.Start(pyroscope.Config{
			ApplicationName: "streamd",
			ServerAddress:   cfg.Pyroscope.Addr,
			Logger:          emptyLogger{},
			ProfileTypes: []pyroscope.ProfileType{
				pyroscope.ProfileCPU,
				pyroscope.ProfileAllocObjects,
				pyroscope.ProfileAllocSpace,
				pyroscope.ProfileInuseObjects,
				pyroscope.ProfileInuseSpace,
			},
		})
		if err != nil {
			log.Fatalf("start pyroscope failed: %v", err)
		}
		defer func() { _ = profiler.Stop() }()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx, cancel, cfg); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("streamd failed: %v", err)
	}
}

func run(ctx context.Context, cancel context.CancelFunc, cfg *ops.Config) error {
	metrics := obs.NewMetrics()

	writer, err := journal.NewWriter(cfg.JournalConfig())
	if err != nil {
		return err
	}
	if err := writer.Start(ctx); err != nil {
		return err
	}
	defer writer.Close()

	hub := bus.NewHub(writer, metrics)
	defer hub.Close()

	adapters, err := feed.NewAdapters(cfg.FeedConfig(), hub, metrics)
	if err != nil {
		return err
	}

	srv, err := server.New(cfg.ServerConfig(), hub)
	if err != nil {
		return err
	}

	errCh := make(chan error, len(adapters)+1)
	for _, a := range adapters {
		go func(a *feed.Adapter) {
			errCh <- a.Run(ctx)
		}(a)
	}
	go func() {
		errCh <- srv.Run(ctx)
	}()

	if cfg.Order.Enabled {
		build, sink, err := traderBuilder(cfg)
		if err != nil {
			return err
		}
		if sink != nil {
			defer sink.Close()
		}
		// Trader failures never stop ingestion; an evicted trader
		// resubscribes with a fresh book.
		go func() {
			if err := order.Resubscribe(ctx, hub, traderQueueSize, build); err != nil && !errors.Is(err, context.Canceled) {
				logs.Errorf("trader stopped: %v", err)
			}
		}()
	}

	logs.Infof("streamd up, symbols=%v listen=%s journal=%s",
		cfg.Symbols, cfg.Server.ListenAddr, cfg.JournalPath)

	select {
	case <-sys.Shutdown():
		logs.Info("shutdown signal received")
		cancel()
		return nil
	case err := <-errCh:
		cancel()
		return err
	}
}

// traderBuilder resolves the trading config once and returns a factory:
// each resubscribe gets a fresh book and policy, while the guard (rate
// window, kill switch), submitter, and audit sink are shared across
// trader generations.
func traderBuilder(cfg *ops.Config) (func() *order.Trader, *audit.Sink, error) {
	policyCfg, err := cfg.PolicyConfig()
	if err != nil {
		return nil, nil, err
	}
	limits, err := cfg.RiskLimits()
	if err != nil {
		return nil, nil, err
	}

	var submitter *order.Submitter
	if !cfg.Order.Paper {
		signer, err := order.LoadSigner(cfg.Order.KeyPath)
		if err != nil {
			return nil, nil, err
		}
		submitter, err = order.NewSubmitter(cfg.SubmitConfig(), signer, nil)
		if err != nil {
			return nil, nil, err
		}
	}

	sink, err := audit.Open(cfg.AuditConfig())
	if err != nil {
		return nil, nil, err
	}

	var auditSink order.AuditSink
	if sink != nil {
		auditSink = sink
	}

	guard := order.NewGuard(limits)
	build := func() *order.Trader {
		return order.NewTrader(market.NewBook(0), order.NewDipPolicy(policyCfg), guard, submitter, auditSink)
	}
	return build, sink, nil
}

type emptyLogger struct{}

func (emptyLogger) Infof(_ string, _ ...interface{})  {}
func (emptyLogger) Debugf(_ string, _ ...interface{}) {}
func (emptyLogger) Errorf(_ string, _ ...interface{}) {}
