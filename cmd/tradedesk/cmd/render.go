package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/tradedesk/chart"
)

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Render one chart snapshot to SVG",
	Long: `Fetch the watchlist, candle history and quotes once and render the chart
with its overlays to an SVG file. A replay feed is played to the end first.

Example:
  tradedesk render -c tradedesk.yaml --symbol XAUUSD --timeframe H1 --out gold.svg`,
	RunE: runRender,
}

var (
	renderOut       string
	renderSymbol    string
	renderTimeframe string
	renderZoom      int
)

func init() {
	rootCmd.AddCommand(renderCmd)

	renderCmd.Flags().StringVarP(&renderOut, "out", "o", "chart.svg", "output SVG file ('-' for stdout)")
	renderCmd.Flags().StringVar(&renderSymbol, "symbol", "", "instrument to chart")
	renderCmd.Flags().StringVar(&renderTimeframe, "timeframe", "", "chart timeframe such as 5m or H1")
	renderCmd.Flags().IntVar(&renderZoom, "zoom", 0, "zoom steps, positive zooms in and negative zooms out")
}

func runRender(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	s, err := openSession(ctx, cfg)
	if err != nil {
		return err
	}
	defer s.Close()
	if s.replay != nil {
		s.replay.SeekEnd()
	}

	set, err := settingsFrom(cfg)
	if err != nil {
		return err
	}
	ws, err := s.workstation(set)
	if err != nil {
		return err
	}
	ws.Restore(ctx)
	if err := applySelection(ws, renderSymbol, renderTimeframe); err != nil {
		return err
	}
	if err := ws.Prime(ctx); err != nil {
		// a partial prime still renders what it got
		s.log.Sugar().Warnf("prime: %v", err)
	}
	for range max(renderZoom, 0) {
		ws.ZoomIn()
	}
	for range max(-renderZoom, 0) {
		ws.ZoomOut()
	}

	svg := chart.NewSVGCanvas(set.Width, set.Height)
	if _, ok := ws.Render(svg); !ok {
		fmt.Fprintf(os.Stderr, "no candles for %s %s\n", ws.Selection().Symbol, ws.Selection().Timeframe)
	}

	if renderOut == "-" {
		_, err := svg.WriteTo(os.Stdout)
		return err
	}
	if err := writeFileAtomic(renderOut, []byte(svg.String())); err != nil {
		return fmt.Errorf("write chart: %w", err)
	}
	fmt.Printf("✓ Rendered %s %s (%d candles) to %s\n",
		ws.Selection().Symbol, ws.Selection().Timeframe, len(ws.Candles()), renderOut)
	return nil
}
