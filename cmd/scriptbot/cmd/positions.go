package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/scriptbot/binance"
	"github.com/rustyeddy/scriptbot/broker"
	"github.com/rustyeddy/scriptbot/market"
	"github.com/rustyeddy/scriptbot/risk"
)

var positionsCmd = &cobra.Command{
	Use:   "positions",
	Short: "List open positions and working orders",
	RunE:  runPositions,
}

func init() {
	rootCmd.AddCommand(positionsCmd)
}

func runPositions(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := buildApp(ctx, nil)
	if err != nil {
		return err
	}
	defer a.close()

	positions, err := a.client.OpenPositions(ctx)
	if err != nil {
		return err
	}
	capital, err := a.client.AvailableCapital(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Available balance: %.2f USDT\n\n", capital)
	if len(positions) == 0 {
		fmt.Println("No open positions.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SYMBOL\tSIDE\tQTY\tENTRY\tNOTIONAL\tLEV\tPNL\tLIQ")
	for _, p := range positions {
		liq := p.LiquidationPrice
		if liq == 0 {
			liq = estimateLiquidation(ctx, a.client, a.rules, p)
		}
		fmt.Fprintf(w, "%s\t%s\t%g\t%.4f\t%.2f\t%gx\t%+.2f\t%.4f\n",
			p.Symbol, p.Side, p.Quantity, p.EntryPrice, p.Notional,
			p.Leverage, p.UnrealizedPnL, liq)
	}
	w.Flush()

	orders, err := a.client.OpenOrders(ctx, "")
	if err != nil {
		return err
	}
	printOrders(orders)
	return nil
}

// estimateLiquidation computes the bracket-based liquidation price when the
// exchange reports none (cross-margin positions often come back with 0).
// The entry price stands in when the mark price is unavailable.
func estimateLiquidation(ctx context.Context, marks broker.AccountSource, rules broker.ConstraintsSource, p market.Position) float64 {
	mark, err := marks.MarkPrice(ctx, p.Symbol)
	if err != nil || mark == 0 {
		mark = p.EntryPrice
	}
	tiers, err := rules.LeverageTiers(ctx, p.Symbol)
	if err != nil || p.Leverage == 0 {
		return 0
	}
	return risk.LiquidationPrice(p.Side, mark, p.Leverage, p.Notional, tiers)
}

func printOrders(orders []binance.OpenOrder) {
	if len(orders) == 0 {
		return
	}
	fmt.Println()
	ow := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(ow, "ORDER\tSYMBOL\tTYPE\tSIDE\tSTOP\tQTY")
	for _, o := range orders {
		fmt.Fprintf(ow, "%d\t%s\t%s\t%s\t%.4f\t%g\n",
			o.OrderID, o.Symbol, o.Type, o.Side, o.StopPrice, o.Quantity)
	}
	ow.Flush()
}
