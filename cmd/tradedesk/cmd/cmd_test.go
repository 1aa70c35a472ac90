package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/tradedesk/config"
	"github.com/rustyeddy/tradedesk/market"
)

func TestSettingsFrom(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.Lots["commodities"] = 100

	s, err := settingsFrom(cfg)
	require.NoError(t, err)
	assert.Equal(t, market.Forex, s.Category)
	assert.Equal(t, "EURUSD", s.Symbol)
	assert.Equal(t, market.M5, s.Timeframe)
	assert.Equal(t, 10*time.Second, s.Intervals.Quotes)
	assert.Equal(t, 15*time.Second, s.Intervals.Trades)
	assert.Equal(t, 1500*time.Millisecond, s.Intervals.Resync)
	assert.Equal(t, time.Second, s.Intervals.Countdown)
	assert.InDelta(t, 10000, s.Account.Real, 1e-9)
	assert.InDelta(t, 100, s.Lots.For(market.Commodities), 1e-9)

	cfg.Intervals.Quotes = "soon"
	_, err = settingsFrom(cfg)
	assert.Error(t, err)
}

func TestWriteFileAtomic(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "chart.svg")
	require.NoError(t, writeFileAtomic(path, []byte("one")))
	require.NoError(t, writeFileAtomic(path, []byte("two")))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "two", string(data))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestRenderReplay(t *testing.T) {
	dir := t.TempDir()

	var b strings.Builder
	b.WriteString("time,symbol,bid,ask,category\n")
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	for i := range 60 {
		p := 1.08 + float64(i%7)*0.0005
		fmt.Fprintf(&b, "%s,EURUSD,%.5f,%.5f,forex\n", start.Add(time.Duration(i)*time.Minute).Format(time.RFC3339), p-0.0001, p+0.0001)
	}
	ticks := filepath.Join(dir, "ticks.csv")
	require.NoError(t, os.WriteFile(ticks, []byte(b.String()), 0o644))

	cfg := config.Default()
	cfg.Feed.URL = ""
	cfg.Feed.Replay = ticks
	cfg.Store.Path = filepath.Join(dir, "prefs.db")
	cfg.Ledger.Path = filepath.Join(dir, "ledger.db")
	cfg.Chart.Timeframe = "1m"
	cfgPath := filepath.Join(dir, "tradedesk.yaml")
	require.NoError(t, cfg.SaveToFile(cfgPath))

	out := filepath.Join(dir, "chart.svg")
	rootCmd.SetArgs([]string{"render", "-c", cfgPath, "--env", filepath.Join(dir, "missing.env"), "-o", out})
	require.NoError(t, rootCmd.Execute())

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(data), "<svg")
	assert.Contains(t, string(data), `<g id="candles">`)
	assert.Contains(t, string(data), "EURUSD M1")
}
