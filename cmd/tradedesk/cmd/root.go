package cmd

import (
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	envFile string
)

var rootCmd = &cobra.Command{
	Use:   "tradedesk",
	Short: "Live trading workstation: watchlist, candle chart and order ticket",
	Long: `Tradedesk is the engine of a brokerage trading workstation written in Go.

It provides:
  - Category watchlists with curated base lists and pinned extras
  - Polled quotes with tick direction, plus an optional websocket tick stream
  - Live candle aggregation reconciled with the history service
  - A chart renderer with moving averages and drawing tools (SVG output)
  - An order ticket computing margin, affordable volume and live PnL

Configuration is read from a YAML or JSON file and TRADEDESK_* environment
variables, optionally from a .env file.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (YAML or JSON), defaults are used when empty")
	rootCmd.PersistentFlags().StringVar(&envFile, "env", ".env", "dotenv file with TRADEDESK_* overrides")
}
