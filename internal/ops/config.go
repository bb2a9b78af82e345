package ops

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"main/internal/audit"
	"main/internal/feed"
	"main/internal/journal"
	"main/internal/order"
	"main/internal/server"
	"main/pkg/backoff"
)

// Config is the root configuration of one process.
type Config struct {
	// JournalPath is the append-only event log file.
	JournalPath string       `yaml:"journal_path"`
	Symbols     []string     `yaml:"symbols"`
	QuoteAsset  string       `yaml:"quote_asset"`
	Server      ServerConfig `yaml:"server"`
	Feed        FeedConfig   `yaml:"feed"`
	Replay      ReplayConfig `yaml:"replay"`
	Order       OrderConfig  `yaml:"order"`
	Audit       AuditConfig  `yaml:"audit"`
	Pyroscope   Pyroscope    `yaml:"pyroscope"`
}

// ServerConfig holds the broadcast endpoint settings.
type ServerConfig struct {
	ListenAddr   string        `yaml:"listen_addr"`
	QueueSize    int           `yaml:"queue_size"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// FeedConfig holds the live stream settings.
type FeedConfig struct {
	FuturesURL       string        `yaml:"futures_url"`
	SpotURL          string        `yaml:"spot_url"`
	ReadTimeout      time.Duration `yaml:"read_timeout"`
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`
	ReconnectMin     time.Duration `yaml:"reconnect_min"`
	ReconnectMax     time.Duration `yaml:"reconnect_max"`
}

// ReplayConfig holds replay pacing settings.
type ReplayConfig struct {
	// Mode is "realtime" or "fixed".
	Mode string `yaml:"mode"`
	// Speed multiplies realtime playback.
	Speed float64 `yaml:"speed"`
	// MaxGap caps any single realtime sleep when set; zero replays
	// recorded gaps at full length.
	MaxGap time.Duration `yaml:"max_gap"`
	// Interval is the fixed delay between events in fixed mode.
	Interval time.Duration `yaml:"interval"`
}

// OrderConfig holds trading settings.
type OrderConfig struct {
	// Enabled turns the trader on.
	Enabled bool `yaml:"enabled"`
	// Paper keeps orders in-process instead of sending them.
	Paper    bool          `yaml:"paper"`
	Endpoint string        `yaml:"endpoint"`
	// KeyPath is the Ed25519 PKCS#8 PEM private key file.
	KeyPath    string        `yaml:"key_path"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`

	// Policy parameters, percentages as decimal strings.
	DropPct       string        `yaml:"drop_pct"`
	TakeProfitPct string        `yaml:"take_profit_pct"`
	QuoteAmount   string        `yaml:"quote_amount"`
	Cooldown      time.Duration `yaml:"cooldown"`

	// Risk limits.
	MaxOrderQty          string        `yaml:"max_order_qty"`
	MaxOrderNotional     string        `yaml:"max_order_notional"`
	OrderRateLimit       int           `yaml:"order_rate_limit"`
	OrderRateWindow      time.Duration `yaml:"order_rate_window"`
	MaxPriceDeviationBps int64         `yaml:"max_price_deviation_bps"`
}

// AuditConfig holds the optional order audit database.
type AuditConfig struct {
	DSN string `yaml:"dsn"`
}

// Pyroscope holds the optional profiler target.
type Pyroscope struct {
	Addr string `yaml:"addr"`
}

// Load reads a YAML config file, expands ${VAR} environment variables,
// applies defaults, and validates.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config yaml: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.JournalPath == "" {
		c.JournalPath = "data/events.jsonl"
	}
	if c.QuoteAsset == "" {
		c.QuoteAsset = "USDT"
	}
	if c.Server.ListenAddr == "" {
		c.Server.ListenAddr = "127.0.0.1:8787"
	}
	if c.Replay.Mode == "" {
		c.Replay.Mode = "realtime"
	}
}

// Validate reports the first configuration problem found.
func (c *Config) Validate() error {
	if len(c.Symbols) == 0 {
		return fmt.Errorf("invalid config: no symbols")
	}
	switch c.Replay.Mode {
	case "realtime", "fixed":
	default:
		return fmt.Errorf("invalid config: replay mode %q", c.Replay.Mode)
	}
	if c.Order.Enabled && !c.Order.Paper {
		if c.Order.Endpoint == "" {
			return fmt.Errorf("invalid config: order endpoint required for live trading")
		}
		if c.Order.KeyPath == "" {
			return fmt.Errorf("invalid config: order key path required for live trading")
		}
	}
	return nil
}

// JournalConfig builds the journal writer configuration.
func (c *Config) JournalConfig() journal.Config {
	return journal.DefaultConfig(c.JournalPath)
}

// FeedConfig builds the stream adapter configuration.
func (c *Config) FeedConfig() feed.Config {
	b := backoff.Default()
	if c.Feed.ReconnectMin > 0 {
		b.Min = c.Feed.ReconnectMin
	}
	if c.Feed.ReconnectMax > 0 {
		b.Max = c.Feed.ReconnectMax
	}
	return feed.Config{
		FuturesURL:       c.Feed.FuturesURL,
		SpotURL:          c.Feed.SpotURL,
		Symbols:          c.Symbols,
		QuoteAsset:       c.QuoteAsset,
		ReadTimeout:      c.Feed.ReadTimeout,
		HandshakeTimeout: c.Feed.HandshakeTimeout,
		Backoff:          b,
	}
}

// ServerConfig builds the broadcast server configuration.
func (c *Config) ServerConfig() server.Config {
	return server.Config{
		ListenAddr:   c.Server.ListenAddr,
		QueueSize:    c.Server.QueueSize,
		WriteTimeout: c.Server.WriteTimeout,
	}
}

// SubmitConfig builds the order submitter configuration.
func (c *Config) SubmitConfig() order.SubmitConfig {
	return order.SubmitConfig{
		Endpoint:   c.Order.Endpoint,
		Timeout:    c.Order.Timeout,
		MaxRetries: c.Order.MaxRetries,
	}
}

// AuditConfig builds the audit sink configuration.
func (c *Config) AuditConfig() audit.Config {
	return audit.Config{DSN: c.Audit.DSN}
}
