package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/tradedesk/chart"
	"github.com/rustyeddy/tradedesk/ledger"
	"github.com/rustyeddy/tradedesk/order"
	"github.com/rustyeddy/tradedesk/quotes"
	"github.com/rustyeddy/tradedesk/symbol"
	"github.com/rustyeddy/tradedesk/workstation"
)

var positionsCmd = &cobra.Command{
	Use:   "positions",
	Short: "List trades with their live profit",
	Long: `List the account's trades from the ledger. Open trades are valued at the
live quote, closed ones at their close price.

Example:
  tradedesk positions -c tradedesk.yaml`,
	RunE: runPositions,
}

var closeCmd = &cobra.Command{
	Use:   "close TRADE_ID",
	Short: "Close an open trade at the live quote",
	Args:  cobra.ExactArgs(1),
	RunE:  runClose,
}

func init() {
	rootCmd.AddCommand(positionsCmd)
	rootCmd.AddCommand(closeCmd)
}

// priced opens a session and quotes the symbols of the account's trades.
func priced(cmd *cobra.Command) (*session, []ledger.Trade, *quotes.Cache, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, nil, err
	}
	s, err := openSession(cmd.Context(), cfg)
	if err != nil {
		return nil, nil, nil, err
	}
	if s.ledger == nil {
		s.Close()
		return nil, nil, nil, fmt.Errorf("ledger.path is not configured")
	}
	if s.replay != nil {
		s.replay.SeekEnd()
	}

	trades, err := s.ledger.ListByClient(cmd.Context(), cfg.Account.ClientID)
	if err != nil {
		s.Close()
		return nil, nil, nil, fmt.Errorf("list trades: %w", err)
	}

	cache := quotes.NewCache(s.feed, quotes.WithLogger(s.log))
	set := symbol.NewSet()
	var keys []symbol.Key
	for _, t := range trades {
		if k := symbol.Normalize(t.Symbol); !t.Closed() && !set.Has(k) {
			set.Add(k)
			keys = append(keys, k)
		}
	}
	if err := cache.Refresh(cmd.Context(), keys); err != nil {
		s.log.Sugar().Warnf("refresh quotes: %v", err)
	}
	return s, trades, cache, nil
}

func runPositions(cmd *cobra.Command, args []string) error {
	s, trades, cache, err := priced(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	ps := order.Value(trades, cache)
	if len(ps) == 0 {
		fmt.Println("No trades.")
		return nil
	}
	printTable(ps)
	return nil
}

func runClose(cmd *cobra.Command, args []string) error {
	s, trades, cache, err := priced(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	for _, t := range trades {
		if t.ID != args[0] {
			continue
		}
		if t.Closed() {
			return fmt.Errorf("trade %s: %w", t.ID, ledger.ErrAlreadyClosed)
		}
		price, ok := cache.Lookup(t.Symbol)
		if !ok {
			return fmt.Errorf("no live quote for %s", t.Symbol)
		}
		closed, err := s.ledger.CloseTrade(cmd.Context(), t.ID, price, time.Now())
		if err != nil {
			return err
		}
		pnl, _ := order.LivePnL(closed, cache)
		fmt.Printf("✓ Closed %s %s %s at %s, P/L $%.2f\n",
			closed.ID, closed.Side, closed.Symbol, chart.FormatPrice(closed.ClosePrice), pnl)
		return nil
	}
	return fmt.Errorf("trade %s: %w", args[0], ledger.ErrNotFound)
}

func printPositions(ws *workstation.Workstation) {
	ps := ws.Positions()
	if len(ps) == 0 {
		return
	}
	fmt.Println()
	printTable(ps)
}

func printTable(ps []order.Position) {
	fmt.Printf("%-26s %-4s %-10s %8s %12s %10s %s\n", "TRADE", "SIDE", "SYMBOL", "VOLUME", "ENTRY", "P/L", "STATUS")
	for _, p := range ps {
		pnl := "-"
		if p.Known {
			pnl = fmt.Sprintf("%.2f", p.PnL)
		}
		fmt.Printf("%-26s %-4s %-10s %8.2f %12s %10s %s\n",
			p.ID, p.Side, p.Symbol, p.Volume, chart.FormatPrice(p.EntryPrice), pnl, p.Status)
	}
	fmt.Printf("Total P/L: $%.2f\n", order.Total(ps))
}
