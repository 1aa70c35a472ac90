package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/tradedesk/chart"
	"github.com/rustyeddy/tradedesk/market"
	"github.com/rustyeddy/tradedesk/order"
)

var marginCmd = &cobra.Command{
	Use:   "margin",
	Short: "Calculate margin, affordable volume and profit for an order",
	Long: `Work out what the order ticket would show for an order: the margin
required, the largest volume the balance affords and, with --exit, the
profit or loss at that price.

Examples:
  tradedesk margin --price 1.085 --volume 0.5
  tradedesk margin --category commodities --price 2380 --volume 2 --side sell --exit 2350`,
	RunE: runMargin,
}

var (
	marginCategory string
	marginSide     string
	marginPrice    float64
	marginVolume   float64
	marginExit     float64
	marginBalance  float64
	marginDemo     bool
)

func init() {
	rootCmd.AddCommand(marginCmd)

	marginCmd.Flags().StringVar(&marginCategory, "category", "", "market category (defaults to chart.category)")
	marginCmd.Flags().StringVar(&marginSide, "side", "buy", "buy or sell")
	marginCmd.Flags().Float64Var(&marginPrice, "price", 0, "entry price (required)")
	marginCmd.Flags().Float64Var(&marginVolume, "volume", order.VolumeStep, "order volume")
	marginCmd.Flags().Float64Var(&marginExit, "exit", 0, "exit price for the profit estimate")
	marginCmd.Flags().Float64Var(&marginBalance, "balance", 0, "balance to check against (defaults to the account balance)")
	marginCmd.Flags().BoolVar(&marginDemo, "demo", false, "check against the demo balance")
	marginCmd.MarkFlagRequired("price")
}

func runMargin(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	cat := cfg.Category()
	if marginCategory != "" {
		if cat, err = market.ParseCategory(marginCategory); err != nil {
			return err
		}
	}
	side, err := market.ParseSide(marginSide)
	if err != nil {
		return err
	}
	if !market.Valid(marginPrice) {
		return fmt.Errorf("price must be a positive number")
	}

	balance := marginBalance
	if balance <= 0 {
		balance = cfg.Account.Balance
		if marginDemo {
			balance = cfg.Account.DemoBalance
		}
	}
	lot := cfg.LotSizes().For(cat)
	maxVol, hasMax := order.MaxVolume(balance, lot, marginPrice)
	volume, insufficient := order.ClampVolume(marginVolume, maxVol, hasMax)

	fmt.Printf("Order: %s %.2f %s @ %s\n", side, volume, cat, chart.FormatPrice(marginPrice))
	if volume != marginVolume {
		fmt.Printf("  Volume adjusted from %.2f\n", marginVolume)
	}
	fmt.Printf("  Lot size: %g\n", lot)
	fmt.Printf("  Margin: $%.2f of $%.2f\n", order.Margin(volume, lot, marginPrice), balance)
	if hasMax {
		fmt.Printf("  Max volume: %.2f\n", maxVol)
	}
	if insufficient {
		fmt.Println("  ✗ Insufficient balance, volume capped at the maximum")
	}
	if market.Valid(marginExit) {
		pnl := order.PnL(side, marginPrice, volume, lot, marginExit)
		fmt.Printf("  P/L at %s: $%.2f\n", chart.FormatPrice(marginExit), pnl)
	}
	return nil
}
