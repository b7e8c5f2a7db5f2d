package cmd

import (
	"context"
	"fmt"
	"math"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/scriptbot/indicators"
	"github.com/rustyeddy/scriptbot/market"
)

var indicatorsCmd = &cobra.Command{
	Use:   "indicators <symbol>",
	Short: "Print current indicator values for a symbol",
	Long: `Compute the standard indicator set over cached market data and print
the latest values.

Example:
  scriptbot indicators BTCUSDT --interval 4h`,
	Args: cobra.ExactArgs(1),
	RunE: runIndicators,
}

var indicatorsInterval string

func init() {
	rootCmd.AddCommand(indicatorsCmd)
	indicatorsCmd.Flags().StringVarP(&indicatorsInterval, "interval", "i", "", "kline interval (default: config)")
}

func runIndicators(cmd *cobra.Command, args []string) error {
	symbol := args[0]
	ctx := context.Background()
	a, err := buildApp(ctx, nil)
	if err != nil {
		return err
	}
	defer a.close()

	interval := a.defaultInterval()
	if indicatorsInterval != "" {
		interval, err = market.ParseInterval(indicatorsInterval)
		if err != nil {
			return err
		}
	}

	data, err := a.feed.Candles(ctx, symbol, interval)
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return fmt.Errorf("no data for %s %s", symbol, interval)
	}

	rsi := indicators.RSI(data, indicators.DefaultRSIPeriod)
	macd, signal := indicators.MACD(data)
	atr := indicators.ATR(data, indicators.DefaultATRPeriod)
	obv := indicators.OBV(data)
	sma := indicators.SMA(data, 20)
	avgVol := indicators.AverageVolume(data)

	last := data[len(data)-1]
	fmt.Printf("%s %s (%d candles, last close %.4f)\n\n", symbol, interval, len(data), last.Close)
	printValue("RSI(14)", lastOf(rsi))
	printValue("MACD", lastOf(macd))
	printValue("Signal", lastOf(signal))
	printValue("ATR(14)", lastOf(atr))
	printValue("OBV", lastOf(obv))
	printValue("SMA(20)", lastOf(sma))
	printValue("AvgVolume(14)", avgVol)
	return nil
}

func lastOf(xs []float64) float64 {
	if len(xs) == 0 {
		return math.NaN()
	}
	return xs[len(xs)-1]
}

func printValue(name string, v float64) {
	if math.IsNaN(v) {
		fmt.Printf("  %-14s n/a\n", name)
		return
	}
	fmt.Printf("  %-14s %.4f\n", name, v)
}
