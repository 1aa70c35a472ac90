// Package config loads the workstation configuration from YAML or JSON and
// applies TRADEDESK_* environment overrides, read from a .env file when one
// is present.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/rustyeddy/tradedesk/indicators"
	"github.com/rustyeddy/tradedesk/market"
	"github.com/rustyeddy/tradedesk/order"
	"github.com/rustyeddy/tradedesk/pkg/logger"
	"github.com/rustyeddy/tradedesk/store"
)

// Config is the complete workstation configuration.
type Config struct {
	Feed      FeedConfig         `json:"feed" yaml:"feed"`
	Store     store.Config       `json:"store" yaml:"store"`
	Ledger    LedgerConfig       `json:"ledger" yaml:"ledger"`
	Account   AccountConfig      `json:"account" yaml:"account"`
	Lots      map[string]float64 `json:"lots,omitempty" yaml:"lots,omitempty"`
	Watchlist WatchlistConfig    `json:"watchlist" yaml:"watchlist"`
	Chart     ChartConfig        `json:"chart" yaml:"chart"`
	Intervals IntervalConfig     `json:"intervals" yaml:"intervals"`
	Log       logger.Config      `json:"log" yaml:"log"`
}

// FeedConfig points at the market data service. Replay replaces the service
// with a recorded CSV of ticks.
type FeedConfig struct {
	URL       string `json:"url,omitempty" yaml:"url,omitempty"`
	Token     string `json:"token,omitempty" yaml:"token,omitempty"`
	StreamURL string `json:"stream_url,omitempty" yaml:"stream_url,omitempty"`
	Replay    string `json:"replay,omitempty" yaml:"replay,omitempty"`
	Timeout   string `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

type LedgerConfig struct {
	Path string `json:"path" yaml:"path"`
}

type AccountConfig struct {
	ClientID    string  `json:"client_id" yaml:"client_id"`
	Balance     float64 `json:"balance" yaml:"balance"`
	DemoBalance float64 `json:"demo_balance" yaml:"demo_balance"`
}

type WatchlistConfig struct {
	Cap int `json:"cap" yaml:"cap"`
}

type ChartConfig struct {
	Category        string   `json:"category" yaml:"category"`
	Symbol          string   `json:"symbol" yaml:"symbol"`
	Timeframe       string   `json:"timeframe" yaml:"timeframe"`
	CandlesOnScreen int      `json:"candles_on_screen" yaml:"candles_on_screen"`
	HistoryLimit    int      `json:"history_limit" yaml:"history_limit"`
	BufferCap       int      `json:"buffer_cap" yaml:"buffer_cap"`
	Overlays        []string `json:"overlays,omitempty" yaml:"overlays,omitempty"`
	Width           float64  `json:"width" yaml:"width"`
	Height          float64  `json:"height" yaml:"height"`
}

// IntervalConfig holds loop periods as duration strings such as "10s".
type IntervalConfig struct {
	Quotes    string `json:"quotes" yaml:"quotes"`
	Watchlist string `json:"watchlist" yaml:"watchlist"`
	History   string `json:"history" yaml:"history"`
	Trades    string `json:"trades" yaml:"trades"`
	Resync    string `json:"resync_debounce" yaml:"resync_debounce"`
}

// Intervals is IntervalConfig parsed.
type Intervals struct {
	Quotes, Watchlist, History, Trades, Resync time.Duration
}

func (ic IntervalConfig) Parse() (Intervals, error) {
	var out Intervals
	for _, f := range []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"quotes", ic.Quotes, &out.Quotes},
		{"watchlist", ic.Watchlist, &out.Watchlist},
		{"history", ic.History, &out.History},
		{"trades", ic.Trades, &out.Trades},
		{"resync_debounce", ic.Resync, &out.Resync},
	} {
		d, err := time.ParseDuration(f.raw)
		if err != nil {
			return Intervals{}, fmt.Errorf("intervals.%s: %w", f.name, err)
		}
		if d <= 0 {
			return Intervals{}, fmt.Errorf("intervals.%s must be positive", f.name)
		}
		*f.dst = d
	}
	return out, nil
}

// FeedTimeout returns the request timeout, defaulting to 12s.
func (c *Config) FeedTimeout() time.Duration {
	if d, err := time.ParseDuration(c.Feed.Timeout); err == nil && d > 0 {
		return d
	}
	return 12 * time.Second
}

// LotSizes converts the lots table.
func (c *Config) LotSizes() order.LotSizes {
	out := order.LotSizes{}
	for k, v := range c.Lots {
		if cat, err := market.ParseCategory(k); err == nil {
			out[cat] = v
		}
	}
	return out
}

func (c *Config) Category() market.Category {
	cat, err := market.ParseCategory(c.Chart.Category)
	if err != nil {
		return market.Forex
	}
	return cat
}

func (c *Config) Timeframe() market.Timeframe {
	tf, err := market.ParseTimeframe(c.Chart.Timeframe)
	if err != nil {
		return market.M5
	}
	return tf
}

// LoadFromFile loads a YAML or JSON file and validates it.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		cfg = Default()
		if jerr := json.Unmarshal(data, cfg); jerr != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Load reads path, or starts from Default when path is empty, then applies
// environment overrides and validates the result.
func Load(path string, envFiles ...string) (*Config, error) {
	cfg := Default()
	if path != "" {
		var err error
		if cfg, err = LoadFromFile(path); err != nil {
			return nil, err
		}
	}

	// a missing .env is fine
	_ = godotenv.Load(envFiles...)
	cfg.ApplyEnv(os.Getenv)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// ApplyEnv overrides fields from TRADEDESK_* variables.
func (c *Config) ApplyEnv(getenv func(string) string) {
	set := func(key string, dst *string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	set("TRADEDESK_FEED_URL", &c.Feed.URL)
	set("TRADEDESK_FEED_TOKEN", &c.Feed.Token)
	set("TRADEDESK_STREAM_URL", &c.Feed.StreamURL)
	set("TRADEDESK_REPLAY", &c.Feed.Replay)
	set("TRADEDESK_LOG_LEVEL", &c.Log.Level)
	set("TRADEDESK_CLIENT_ID", &c.Account.ClientID)
	if v := strings.TrimSpace(getenv("TRADEDESK_REDIS_ADDR")); v != "" {
		c.Store.Driver = "redis"
		c.Store.Addr = v
	}
	if v, err := strconv.ParseFloat(getenv("TRADEDESK_BALANCE"), 64); err == nil {
		c.Account.Balance = v
	}
}

// SaveToFile writes YAML for .yaml/.yml paths and JSON otherwise.
func (c *Config) SaveToFile(path string) error {
	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(c)
	default:
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// Validate checks if the configuration is usable.
func (c *Config) Validate() error {
	if c.Feed.URL == "" && c.Feed.Replay == "" {
		return fmt.Errorf("feed.url or feed.replay is required")
	}
	if c.Feed.Timeout != "" {
		if _, err := time.ParseDuration(c.Feed.Timeout); err != nil {
			return fmt.Errorf("feed.timeout: %w", err)
		}
	}
	switch c.Store.Driver {
	case "", "memory":
	case "sqlite":
		if c.Store.Path == "" {
			return fmt.Errorf("store.path required for sqlite store")
		}
	case "redis":
		if c.Store.Addr == "" {
			return fmt.Errorf("store.addr required for redis store")
		}
	default:
		return fmt.Errorf("store.driver must be 'memory', 'sqlite' or 'redis'")
	}
	if c.Account.Balance < 0 || c.Account.DemoBalance < 0 {
		return fmt.Errorf("account balances must not be negative")
	}
	for k, v := range c.Lots {
		if _, err := market.ParseCategory(k); err != nil {
			return fmt.Errorf("lots: %w", err)
		}
		if v <= 0 {
			return fmt.Errorf("lots.%s must be positive", k)
		}
	}
	if c.Watchlist.Cap <= 0 {
		return fmt.Errorf("watchlist.cap must be positive")
	}
	if _, err := market.ParseCategory(c.Chart.Category); err != nil {
		return fmt.Errorf("chart.category: %w", err)
	}
	if _, err := market.ParseTimeframe(c.Chart.Timeframe); err != nil {
		return fmt.Errorf("chart.timeframe: %w", err)
	}
	if c.Chart.HistoryLimit <= 0 || c.Chart.BufferCap < c.Chart.HistoryLimit {
		return fmt.Errorf("chart.buffer_cap must be at least chart.history_limit, both positive")
	}
	if c.Chart.Width <= 0 || c.Chart.Height <= 0 {
		return fmt.Errorf("chart width and height must be positive")
	}
	for _, o := range c.Chart.Overlays {
		if _, err := indicators.Parse(o); err != nil {
			return fmt.Errorf("chart.overlays: %w", err)
		}
	}
	if _, err := c.Intervals.Parse(); err != nil {
		return err
	}
	if _, err := logger.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	return nil
}

// Default returns a configuration with sensible defaults.
func Default() *Config {
	return &Config{
		Feed: FeedConfig{
			URL:     "http://localhost:8080",
			Timeout: "12s",
		},
		Store: store.Config{
			Driver: "sqlite",
			Path:   "./tradedesk.db",
		},
		Ledger: LedgerConfig{
			Path: "./ledger.db",
		},
		Account: AccountConfig{
			ClientID:    "local",
			Balance:     10000,
			DemoBalance: 100000,
		},
		Lots: map[string]float64{
			"forex":       1,
			"indices":     1,
			"commodities": 1,
			"crypto":      1,
			"stocks":      1,
		},
		Watchlist: WatchlistConfig{Cap: 20},
		Chart: ChartConfig{
			Category:        "forex",
			Symbol:          "EURUSD",
			Timeframe:       "M5",
			CandlesOnScreen: 80,
			HistoryLimit:    300,
			BufferCap:       500,
			Overlays:        []string{"ema:20", "sma:50"},
			Width:           1200,
			Height:          600,
		},
		Intervals: IntervalConfig{
			Quotes:    "10s",
			Watchlist: "10s",
			History:   "10s",
			Trades:    "15s",
			Resync:    "1.5s",
		},
		Log: logger.Config{Level: "info"},
	}
}
