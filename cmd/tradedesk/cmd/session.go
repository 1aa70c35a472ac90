package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/rustyeddy/tradedesk/config"
	"github.com/rustyeddy/tradedesk/feed"
	"github.com/rustyeddy/tradedesk/feed/replay"
	"github.com/rustyeddy/tradedesk/feed/stream"
	"github.com/rustyeddy/tradedesk/ledger"
	"github.com/rustyeddy/tradedesk/order"
	"github.com/rustyeddy/tradedesk/pkg/logger"
	"github.com/rustyeddy/tradedesk/prefs"
	"github.com/rustyeddy/tradedesk/store"
	"github.com/rustyeddy/tradedesk/workstation"
)

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile, envFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// session owns everything a command opens from the config.
type session struct {
	cfg    *config.Config
	log    *zap.Logger
	kv     store.KV
	prefs  *prefs.Store
	ledger *ledger.SQLite
	feed   workstation.Feed
	replay *replay.Feed
	ticks  workstation.TickSource
}

func openSession(ctx context.Context, cfg *config.Config) (*session, error) {
	log, err := logger.New(cfg.Log)
	if err != nil {
		return nil, err
	}
	s := &session{cfg: cfg, log: log}

	if s.kv, err = store.Open(ctx, cfg.Store); err != nil {
		s.Close()
		return nil, fmt.Errorf("open store: %w", err)
	}
	s.prefs = prefs.New(s.kv)

	if cfg.Ledger.Path != "" {
		if s.ledger, err = ledger.NewSQLite(cfg.Ledger.Path); err != nil {
			s.Close()
			return nil, fmt.Errorf("open ledger: %w", err)
		}
	}

	switch {
	case cfg.Feed.Replay != "":
		if s.replay, err = replay.Load(cfg.Feed.Replay); err != nil {
			s.Close()
			return nil, fmt.Errorf("load replay: %w", err)
		}
		s.feed, s.ticks = s.replay, s.replay
	default:
		s.feed = feed.NewClient(cfg.Feed.URL, cfg.Feed.Token,
			feed.WithTimeout(cfg.FeedTimeout()),
			feed.WithLogger(log),
		)
		if cfg.Feed.StreamURL != "" {
			s.ticks = stream.New(cfg.Feed.StreamURL,
				stream.WithToken(cfg.Feed.Token),
				stream.WithLogger(log),
			)
		}
	}
	return s, nil
}

func settingsFrom(cfg *config.Config) (workstation.Settings, error) {
	iv, err := cfg.Intervals.Parse()
	if err != nil {
		return workstation.Settings{}, err
	}
	s := workstation.DefaultSettings()
	s.Category = cfg.Category()
	s.Symbol = cfg.Chart.Symbol
	s.Timeframe = cfg.Timeframe()
	s.CandlesOnScreen = cfg.Chart.CandlesOnScreen
	s.HistoryLimit = cfg.Chart.HistoryLimit
	s.BufferCap = cfg.Chart.BufferCap
	s.WatchlistCap = cfg.Watchlist.Cap
	s.Overlays = cfg.Chart.Overlays
	s.Width, s.Height = cfg.Chart.Width, cfg.Chart.Height
	s.Lots = cfg.LotSizes()
	s.Account = order.Account{Real: cfg.Account.Balance, Demo: cfg.Account.DemoBalance}
	s.ClientID = cfg.Account.ClientID
	s.Intervals.Quotes = iv.Quotes
	s.Intervals.Watchlist = iv.Watchlist
	s.Intervals.History = iv.History
	s.Intervals.Trades = iv.Trades
	s.Intervals.Resync = iv.Resync
	return s, nil
}

// workstation builds the session's workstation. Replayed sessions run on the
// replay clock so ticks and quotes land in the recorded buckets.
func (s *session) workstation(set workstation.Settings, opts ...workstation.Option) (*workstation.Workstation, error) {
	base := []workstation.Option{
		workstation.WithPrefs(s.prefs),
		workstation.WithLogger(s.log),
	}
	if s.ledger != nil {
		base = append(base, workstation.WithTrades(s.ledger))
	}
	if s.replay != nil {
		base = append(base, workstation.WithClock(s.replayNow))
	}
	return workstation.New(s.feed, set, append(base, opts...)...)
}

func (s *session) replayNow() time.Time {
	if t := s.replay.Now(); !t.IsZero() {
		return t
	}
	return time.Now()
}

func (s *session) Close() error {
	var errs []error
	if s.ledger != nil {
		errs = append(errs, s.ledger.Close())
	}
	if s.kv != nil {
		errs = append(errs, s.kv.Close())
	}
	if s.log != nil {
		_ = s.log.Sync()
	}
	return errors.Join(errs...)
}

// writeFileAtomic replaces path so readers never see a partial file.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tradedesk-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
