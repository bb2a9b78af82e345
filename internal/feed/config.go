package feed

import (
	"fmt"
	"strings"
	"time"

	"github.com/yanun0323/logs"

	"main/pkg/backoff"
)

const (
	defaultFuturesURL = "wss://fstream.binance.com/stream"
	defaultSpotURL    = "wss://stream.binance.com:9443/stream"
)

// Config drives every stream adapter of one ingest session.
type Config struct {
	// FuturesURL is the futures combined-stream endpoint.
	FuturesURL string
	// SpotURL is the spot combined-stream endpoint.
	SpotURL string
	// Symbols are the instruments to subscribe, e.g. BTCUSDT.
	Symbols []string
	// QuoteAsset filters Symbols to those quoted in this asset.
	QuoteAsset string
	// ReadTimeout bounds the silence tolerated on a connection before it
	// is treated as dead.
	ReadTimeout time.Duration
	// HandshakeTimeout bounds the websocket dial.
	HandshakeTimeout time.Duration
	// Backoff paces reconnect attempts.
	Backoff backoff.Backoff
}

func (c Config) withDefaults() Config {
	if c.FuturesURL == "" {
		c.FuturesURL = defaultFuturesURL
	}
	if c.SpotURL == "" {
		c.SpotURL = defaultSpotURL
	}
	if c.QuoteAsset == "" {
		c.QuoteAsset = "USDT"
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 60 * time.Second
	}
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = 10 * time.Second
	}
	if c.Backoff == (backoff.Backoff{}) {
		c.Backoff = backoff.Default()
	}
	return c
}

// Validate reports the first configuration problem found.
func (c Config) Validate() error {
	if len(c.Symbols) == 0 {
		return fmt.Errorf("invalid feed config: no symbols")
	}
	if len(filterQuote(c.Symbols, c.QuoteAsset)) == 0 {
		return fmt.Errorf("invalid feed config: no symbols quoted in %s", c.QuoteAsset)
	}
	return nil
}

// filterQuote keeps only symbols quoted in the given asset. Dropped
// symbols are logged once so a misconfigured list is visible at startup.
func filterQuote(symbols []string, quote string) []string {
	quote = strings.ToUpper(quote)
	kept := make([]string, 0, len(symbols))
	for _, s := range symbols {
		sym := strings.ToUpper(strings.TrimSpace(s))
		if sym == "" {
			continue
		}
		if !strings.HasSuffix(sym, quote) {
			logs.Infof("dropping symbol %s: not quoted in %s", sym, quote)
			continue
		}
		kept = append(kept, sym)
	}
	return kept
}

// combinedURL builds a combined-stream URL for the given symbols and
// stream suffix, e.g. suffix "@kline_1m".
func combinedURL(base string, symbols []string, suffix string) string {
	streams := make([]string, 0, len(symbols))
	for _, s := range symbols {
		streams = append(streams, strings.ToLower(s)+suffix)
	}
	return base + "?streams=" + strings.Join(streams, "/")
}
