package feed

import (
	"context"
	"time"

	"github.com/gorilla/websocket"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"main/internal/model"
	"main/internal/obs"
)

// Admitter receives parsed events. Any error it returns stops the adapter,
// sequencing and durability live behind it.
type Admitter interface {
	Admit(e model.Event) error
}

const writeControlWait = 5 * time.Second

// fatalError marks an error that must stop the adapter instead of
// triggering a reconnect.
type fatalError struct{ err error }

func (e fatalError) Error() string { return e.err.Error() }
func (e fatalError) Unwrap() error { return e.err }

// Adapter maintains one websocket connection to a combined stream and
// feeds parsed events into the admitter. Reconnects are its own business;
// sequence numbers are untouched by connection churn.
type Adapter struct {
	name    string
	url     string
	parse   parseFunc
	admit   Admitter
	metrics *obs.Metrics

	readTimeout time.Duration
	dialer      *websocket.Dialer
	reconnect   func(attempt int) time.Duration
}

func newAdapter(name, url string, parse parseFunc, admit Admitter, metrics *obs.Metrics, cfg Config) *Adapter {
	return &Adapter{
		name:        name,
		url:         url,
		parse:       parse,
		admit:       admit,
		metrics:     metrics,
		readTimeout: cfg.ReadTimeout,
		dialer: &websocket.Dialer{
			HandshakeTimeout: cfg.HandshakeTimeout,
		},
		reconnect: cfg.Backoff.Next,
	}
}

// NewAdapters builds the full adapter set for the configured symbols:
// futures kline, futures aggTrade, futures mark price, and spot trade.
func NewAdapters(cfg Config, admit Admitter, metrics *obs.Metrics) ([]*Adapter, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	symbols := filterQuote(cfg.Symbols, cfg.QuoteAsset)
	return []*Adapter{
		newAdapter("futures-kline", combinedURL(cfg.FuturesURL, symbols, "@kline_1m"), parseKline, admit, metrics, cfg),
		newAdapter("futures-aggtrade", combinedURL(cfg.FuturesURL, symbols, "@aggTrade"), parseAggTrade, admit, metrics, cfg),
		newAdapter("futures-markprice", combinedURL(cfg.FuturesURL, symbols, "@markPrice@1s"), parseMarkPrice, admit, metrics, cfg),
		newAdapter("spot-trade", combinedURL(cfg.SpotURL, symbols, "@trade"), parseSpotTrade, admit, metrics, cfg),
	}, nil
}

// Name identifies the adapter in logs.
func (a *Adapter) Name() string { return a.name }

// Run connects and streams until the context is canceled or admission
// fails. Connection errors reconnect with backoff; subscribing is implicit
// in the combined-stream URL, so a fresh dial resubscribes everything.
func (a *Adapter) Run(ctx context.Context) error {
	attempt := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		conn, _, err := a.dialer.DialContext(ctx, a.url, nil)
		if err != nil {
			attempt++
			a.metrics.IncReconnect()
			logs.Errorf("%s: dial: %v (attempt %d)", a.name, err, attempt)
			if !a.sleep(ctx, attempt) {
				return ctx.Err()
			}
			continue
		}
		attempt = 0
		logs.Infof("%s: connected", a.name)

		err = a.stream(ctx, conn)
		conn.Close()
		if err := ctx.Err(); err != nil {
			return err
		}
		if fatal, ok := err.(fatalError); ok {
			return fatal.err
		}

		attempt++
		a.metrics.IncReconnect()
		logs.Errorf("%s: stream: %v, reconnecting", a.name, err)
		if !a.sleep(ctx, attempt) {
			return ctx.Err()
		}
	}
}

func (a *Adapter) sleep(ctx context.Context, attempt int) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(a.reconnect(attempt)):
		return true
	}
}

func (a *Adapter) stream(ctx context.Context, conn *websocket.Conn) error {
	// ReadMessage has no context; closing the conn is how cancellation
	// reaches it.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	deadline := func() {
		conn.SetReadDeadline(time.Now().Add(a.readTimeout))
	}
	deadline()
	conn.SetPingHandler(func(appData string) error {
		deadline()
		return conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(writeControlWait))
	})
	conn.SetPongHandler(func(string) error {
		deadline()
		return nil
	})

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return errors.Wrap(err, "read")
		}
		deadline()

		recvTs := time.Now().UnixNano()
		e, ok, err := a.parse(msg, recvTs)
		if err != nil {
			a.metrics.IncMalformed()
			logs.Errorf("%s: malformed message: %v", a.name, err)
			continue
		}
		if !ok {
			continue
		}
		if err := a.admit.Admit(e); err != nil {
			return fatalError{err}
		}
	}
}
