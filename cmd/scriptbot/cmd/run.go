package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rustyeddy/scriptbot/binance"
	"github.com/rustyeddy/scriptbot/indicators"
	"github.com/rustyeddy/scriptbot/script"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute a strategy script",
	Long: `Execute a strategy script once or in a loop.

The script's header parameters (timeframe, coin) select the market; the
config file supplies defaults when the header sets none.

Loop modes:
  (none)   run the script once against current data and exit
  live     re-run continuously against the in-progress candle
  closed   re-run continuously, acting only on closed candles

Example:
  scriptbot run --script examples/ema-cross.sbs --loop closed`,
	RunE: runRun,
}

var (
	runScriptPath string
	runLoopMode   string
	runPoll       time.Duration
)

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runScriptPath, "script", "s", "", "path to strategy script (required)")
	runCmd.Flags().StringVar(&runLoopMode, "loop", "", "loop mode: live or closed (default: run once)")
	runCmd.Flags().DurationVar(&runPoll, "poll", 15*time.Second, "re-run interval in loop mode")
	runCmd.MarkFlagRequired("script")
}

func runRun(cmd *cobra.Command, args []string) error {
	src, err := os.ReadFile(runScriptPath)
	if err != nil {
		return fmt.Errorf("read script: %w", err)
	}

	var mode script.LoopMode
	switch runLoopMode {
	case "":
		mode = script.LoopOff
	case "live":
		mode = script.LoopLive
	case "closed":
		mode = script.LoopClosed
	default:
		return fmt.Errorf("unknown loop mode %q (want live or closed)", runLoopMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Resolve the market ahead of wiring so the stream subscribes to the
	// right kline channel.
	pre, err := loadConfigDefaults()
	if err != nil {
		return err
	}
	symbol, interval, err := script.Params(string(src), pre.symbol, pre.interval)
	if err != nil {
		return err
	}

	a, err := buildApp(ctx, []binance.StreamKey{{Symbol: symbol, Interval: interval}})
	if err != nil {
		return err
	}
	defer a.close()

	if a.stream != nil {
		go func() {
			if err := a.stream.Run(ctx); err != nil && ctx.Err() == nil {
				a.log.Error("stream stopped", zap.Error(err))
			}
		}()
	}

	executor := script.NewExecutor(a.log, a.feed, a.client, a.rules, a.placer,
		a.cfg.Defaults.Symbol, a.defaultInterval(),
		script.WithPool(indicators.NewPool(indicators.DefaultPoolSize)))

	if mode == script.LoopOff {
		out, err := executor.Execute(ctx, string(src), mode)
		if err != nil {
			return err
		}
		report(out)
		return nil
	}

	a.log.Info("entering script loop",
		zap.String("script", runScriptPath),
		zap.String("mode", string(mode)),
		zap.Duration("poll", runPoll))

	ticker := time.NewTicker(runPoll)
	defer ticker.Stop()
	for {
		out, err := executor.Execute(ctx, string(src), mode)
		if err != nil {
			// Script faults end the loop; transient data errors do not.
			if script.IsScriptFault(err) {
				return err
			}
			a.log.Error("run failed", zap.Error(err))
		} else if !out.Skipped {
			report(out)
		}

		select {
		case <-ctx.Done():
			a.log.Info("loop stopped")
			return nil
		case <-ticker.C:
		}
	}
}

func report(out *script.Outcome) {
	fmt.Printf("%s %s: condition_true=%v action=%s", out.Symbol, out.Interval, out.ConditionTrue, out.Action)
	if out.Placed {
		fmt.Print(" (order placed)")
	}
	fmt.Println()
}
