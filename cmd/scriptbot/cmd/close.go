package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/scriptbot/broker"
	"github.com/rustyeddy/scriptbot/market"
)

var closeCmd = &cobra.Command{
	Use:   "close <symbol>",
	Short: "Market-close open positions on a symbol",
	Long: `Close every open position on the given symbol with market orders and
cancel its working stop and take-profit orders.

Example:
  scriptbot close BTCUSDT`,
	Args: cobra.ExactArgs(1),
	RunE: runClose,
}

func init() {
	rootCmd.AddCommand(closeCmd)
}

func runClose(cmd *cobra.Command, args []string) error {
	symbol := args[0]
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

	closed := 0
	for _, p := range positions {
		if p.Symbol != symbol || !p.Open() {
			continue
		}
		side := broker.Sell
		if p.Side == market.Short {
			side = broker.Buy
		}
		if err := a.client.ClosePosition(ctx, symbol, side, string(p.Side), p.Quantity); err != nil {
			return err
		}
		fmt.Printf("closed %s %s %g\n", p.Symbol, p.Side, p.Quantity)
		closed++
	}
	if closed == 0 {
		fmt.Printf("no open positions on %s\n", symbol)
		return nil
	}

	if err := a.client.CancelOpenOrders(ctx, symbol); err != nil {
		return fmt.Errorf("positions closed but cancel failed: %w", err)
	}
	fmt.Printf("cancelled working orders on %s\n", symbol)
	return nil
}
