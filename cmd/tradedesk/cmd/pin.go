package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/tradedesk/market"
	"github.com/rustyeddy/tradedesk/prefs"
	"github.com/rustyeddy/tradedesk/store"
	"github.com/rustyeddy/tradedesk/watchlist"
)

var pinCmd = &cobra.Command{
	Use:   "pin SYMBOL",
	Short: "Pin an instrument to a category watchlist",
	Long: `Add an instrument to the pinned extras of a category. Instruments that are
part of the curated base list cannot be pinned.

Examples:
  tradedesk pin EURCHF
  tradedesk pin NVDA --category stocks
  tradedesk pin --list --category crypto`,
	Args: cobra.MaximumNArgs(1),
	RunE: runPin,
}

var unpinCmd = &cobra.Command{
	Use:   "unpin SYMBOL",
	Short: "Remove a pinned instrument from a category watchlist",
	Args:  cobra.ExactArgs(1),
	RunE:  runUnpin,
}

var (
	pinCategory string
	pinList     bool
)

func init() {
	rootCmd.AddCommand(pinCmd)
	rootCmd.AddCommand(unpinCmd)

	for _, c := range []*cobra.Command{pinCmd, unpinCmd} {
		c.Flags().StringVar(&pinCategory, "category", "", "market category (defaults to chart.category)")
	}
	pinCmd.Flags().BoolVar(&pinList, "list", false, "list the pinned extras instead")
}

// withCurator opens the prefs store and runs fn against a curator over it.
func withCurator(cmd *cobra.Command, fn func(c *watchlist.Curator, cat market.Category) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	cat := cfg.Category()
	if pinCategory != "" {
		if cat, err = market.ParseCategory(pinCategory); err != nil {
			return err
		}
	}

	kv, err := store.Open(cmd.Context(), cfg.Store)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer kv.Close()

	c := watchlist.NewCurator(prefs.New(kv), watchlist.WithCap(cfg.Watchlist.Cap))
	return fn(c, cat)
}

func runPin(cmd *cobra.Command, args []string) error {
	return withCurator(cmd, func(c *watchlist.Curator, cat market.Category) error {
		if pinList {
			extras, err := c.Extras(cmd.Context(), cat)
			if err != nil {
				return err
			}
			fmt.Printf("Pinned in %s (%d/%d):\n", cat, len(extras), c.Cap())
			for _, k := range extras {
				fmt.Printf("  %s\n", k)
			}
			return nil
		}
		if len(args) != 1 {
			return fmt.Errorf("pin needs a symbol")
		}
		if err := c.Pin(cmd.Context(), cat, args[0]); err != nil {
			return fmt.Errorf("pin %s: %w", args[0], err)
		}
		fmt.Printf("✓ Pinned %s to %s\n", args[0], cat)
		return nil
	})
}

func runUnpin(cmd *cobra.Command, args []string) error {
	return withCurator(cmd, func(c *watchlist.Curator, cat market.Category) error {
		if err := c.Unpin(cmd.Context(), cat, args[0]); err != nil {
			return fmt.Errorf("unpin %s: %w", args[0], err)
		}
		fmt.Printf("✓ Unpinned %s from %s\n", args[0], cat)
		return nil
	})
}
