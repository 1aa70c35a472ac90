package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/tradedesk/chart"
	"github.com/rustyeddy/tradedesk/market"
	"github.com/rustyeddy/tradedesk/workstation"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a headless workstation session",
	Long: `Start every polling loop of a workstation session: watchlist, quotes,
history resync and open trades, plus the tick stream when one is configured.

The session runs until interrupted or until --duration elapses. With --out the
chart is rendered to an SVG file whenever it changes.

Examples:
  tradedesk run -c tradedesk.yaml
  tradedesk run -c tradedesk.yaml --symbol GBPUSD --timeframe 1m --out chart.svg
  TRADEDESK_REPLAY=ticks.csv tradedesk run --duration 2m`,
	RunE: runRun,
}

var (
	runDuration  time.Duration
	runOut       string
	runSymbol    string
	runTimeframe string
	runFPS       int
)

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().DurationVarP(&runDuration, "duration", "d", 0, "stop after this long (0 runs until interrupted)")
	runCmd.Flags().StringVarP(&runOut, "out", "o", "", "SVG file rewritten on every redraw")
	runCmd.Flags().StringVar(&runSymbol, "symbol", "", "instrument to chart, overrides config and saved view")
	runCmd.Flags().StringVar(&runTimeframe, "timeframe", "", "chart timeframe such as 5m or H1")
	runCmd.Flags().IntVar(&runFPS, "fps", 2, "maximum redraws per second when writing --out")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if runDuration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, runDuration)
		defer cancel()
	}

	s, err := openSession(ctx, cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	set, err := settingsFrom(cfg)
	if err != nil {
		return err
	}
	set.FPS = runFPS

	var opts []workstation.Option
	if s.ticks != nil {
		opts = append(opts, workstation.WithTicks(s.ticks))
	}
	if runOut != "" {
		svg := chart.NewSVGCanvas(set.Width, set.Height)
		opts = append(opts, workstation.WithCanvas(svg, func(chart.Canvas) {
			if err := writeFileAtomic(runOut, []byte(svg.String())); err != nil {
				s.log.Sugar().Warnf("write %s: %v", runOut, err)
			}
		}))
	}

	ws, err := s.workstation(set, opts...)
	if err != nil {
		return err
	}
	if err := ws.Start(ctx); err != nil {
		return err
	}
	if err := applySelection(ws, runSymbol, runTimeframe); err != nil {
		_ = ws.Stop(context.Background())
		return err
	}

	fmt.Printf("Running workstation (%s %s). Press Ctrl-C to stop.\n", ws.Selection().Symbol, ws.Selection().Timeframe)
	<-ctx.Done()

	if err := ws.Stop(context.Background()); err != nil {
		return err
	}
	printWatchlist(ws)
	printPositions(ws)
	if runOut != "" {
		fmt.Printf("\nChart saved to: %s\n", runOut)
	}
	return nil
}

func applySelection(ws *workstation.Workstation, sym, tf string) error {
	if tf != "" {
		parsed, err := market.ParseTimeframe(tf)
		if err != nil {
			return err
		}
		ws.SetTimeframe(parsed)
	}
	if sym != "" {
		return ws.Select(sym)
	}
	return nil
}

func printWatchlist(ws *workstation.Workstation) {
	fmt.Printf("\nWatchlist (%s):\n", ws.Category())
	for _, e := range ws.Watchlist() {
		mark := " "
		if e.Pinned {
			mark = "*"
		}
		price, dir, ok := ws.Quote(e.Symbol)
		if !ok {
			fmt.Printf(" %s %-10s %12s\n", mark, e.Symbol, "-")
			continue
		}
		fmt.Printf(" %s %-10s %12s %s\n", mark, e.Symbol, chart.FormatPrice(price), dir)
	}
}
