package script

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/rustyeddy/scriptbot/action"
	"github.com/rustyeddy/scriptbot/broker"
	"github.com/rustyeddy/scriptbot/indicators"
	"github.com/rustyeddy/scriptbot/market"
	"github.com/rustyeddy/scriptbot/trade"
)

// LoopMode says how the executor is being driven. Freshness gating only
// applies to looped runs that are not explicitly live.
type LoopMode string

const (
	LoopOff    LoopMode = ""
	LoopLive   LoopMode = "live"
	LoopClosed LoopMode = "closed"
)

// OrderPlacer consumes a fired trade intent. Satisfied by *trade.Placer.
type OrderPlacer interface {
	Place(ctx context.Context, req trade.Request)
}

// Outcome summarizes one script run for callers that report on it.
type Outcome struct {
	Symbol        string
	Interval      market.Interval
	Skipped       bool
	SkipReason    string
	ConditionTrue bool
	Action        string
	Placed        bool
}

// Executor runs one strategy script end to end: header extraction, market
// data assembly, body evaluation in the restricted environment, action
// selection and the handoff to order placement.
type Executor struct {
	log         *zap.Logger
	data        broker.MarketDataSource
	account     broker.AccountSource
	constraints broker.ConstraintsSource
	placer      OrderPlacer
	pool        *indicators.Pool

	defaultSymbol   string
	defaultInterval market.Interval
	now             func() time.Time
}

// ExecOption configures an Executor.
type ExecOption func(*Executor)

// WithClock overrides the wall clock, for tests.
func WithClock(now func() time.Time) ExecOption {
	return func(ex *Executor) { ex.now = now }
}

// WithPool overrides the shared indicator worker pool.
func WithPool(pool *indicators.Pool) ExecOption {
	return func(ex *Executor) { ex.pool = pool }
}

// NewExecutor wires an executor to its collaborators. defaultSymbol and
// defaultInterval apply when the script header does not set its own.
func NewExecutor(log *zap.Logger, data broker.MarketDataSource, account broker.AccountSource,
	constraints broker.ConstraintsSource, placer OrderPlacer,
	defaultSymbol string, defaultInterval market.Interval, opts ...ExecOption) *Executor {

	ex := &Executor{
		log:             log,
		data:            data,
		account:         account,
		constraints:     constraints,
		placer:          placer,
		pool:            indicators.NewPool(indicators.DefaultPoolSize),
		defaultSymbol:   defaultSymbol,
		defaultInterval: defaultInterval,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(ex)
	}
	return ex
}

// Execute runs a script once. Validation and runtime faults come back as
// errors; a freshness skip is a successful outcome with Skipped set.
func (ex *Executor) Execute(ctx context.Context, src string, mode LoopMode) (*Outcome, error) {
	if err := ValidateScript(src); err != nil {
		return nil, err
	}

	h, err := extractHeader(src, ex.defaultSymbol, ex.defaultInterval)
	if err != nil {
		return nil, err
	}
	if err := ValidateSymbol(h.Symbol); err != nil {
		return nil, err
	}
	out := &Outcome{Symbol: h.Symbol, Interval: h.Interval}

	candles, err := ex.data.Candles(ctx, h.Symbol, h.Interval)
	if err != nil {
		return nil, fmt.Errorf("fetch candles for %s %s: %w", h.Symbol, h.Interval, err)
	}
	if len(candles) == 0 {
		return nil, fmt.Errorf("no chart data available for %s %s", h.Symbol, h.Interval)
	}

	data := candles
	live, hasLive := ex.data.LiveCandle(h.Symbol, h.Interval)
	if hasLive {
		data = append(append([]market.Candle(nil), candles...), live)
	}

	// In a loop that is not live, only act on a just-closed candle. The
	// live mode and one-shot runs evaluate against the in-progress candle.
	last := data[len(data)-1]
	closed := !ex.now().Before(last.CloseTime(h.Interval))
	if !closed && mode != LoopOff && mode != LoopLive {
		ex.log.Debug("latest candle still open, skipping run",
			zap.String("symbol", h.Symbol),
			zap.String("interval", string(h.Interval)))
		out.Skipped = true
		out.SkipReason = "latest candle still open"
		return out, nil
	}

	var liveCandle Value
	if hasLive {
		liveCandle = CandleObject(live)
	}
	env, err := ex.buildEnv(ctx, h.Symbol, candles, data, liveCandle)
	if err != nil {
		return nil, err
	}

	prog, err := Parse(h.Body)
	if err != nil {
		return nil, err
	}
	locals, err := Run(prog, env)
	if err != nil {
		return nil, err
	}

	cond, ok := locals["condition_true"]
	if !ok {
		return nil, runtimef(0, "script must assign condition_true")
	}
	condTrue, ok := cond.(bool)
	if !ok {
		return nil, runtimef(0, "condition_true must be a boolean, got %s", kindName(cond))
	}
	out.ConditionTrue = condTrue

	actionTrue, err := localAction(locals, "action_if_true")
	if err != nil {
		return nil, err
	}
	actionFalse, err := localAction(locals, "action_if_false")
	if err != nil {
		return nil, err
	}
	// Both branches validate even though only one fires, so a broken
	// action on the idle branch surfaces before it ever matters.
	if err := action.Validate(actionTrue); err != nil {
		return nil, err
	}
	if err := action.Validate(actionFalse); err != nil {
		return nil, err
	}

	chosen := actionFalse
	if condTrue {
		chosen = actionTrue
	}
	out.Action = chosen

	act, err := action.Parse(chosen)
	if err != nil {
		return nil, err
	}
	if act == nil {
		ex.log.Info("no action taken",
			zap.String("symbol", h.Symbol),
			zap.Bool("condition_true", condTrue))
		return out, nil
	}

	tiers, err := ex.constraints.LeverageTiers(ctx, h.Symbol)
	if err != nil {
		return nil, fmt.Errorf("fetch leverage tiers for %s: %w", h.Symbol, err)
	}
	if len(tiers) == 0 {
		return nil, fmt.Errorf("no leverage tiers for %s", h.Symbol)
	}
	if act.Leverage > tiers[0].MaxLeverage {
		return nil, fmt.Errorf("%w: requested leverage %gx exceeds maximum %gx for %s",
			ErrValidation, act.Leverage, tiers[0].MaxLeverage, h.Symbol)
	}

	capital, err := ex.account.AvailableCapital(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch available capital: %w", err)
	}
	if capital <= 0 {
		return nil, fmt.Errorf("available capital is zero, cannot size trade")
	}

	riskAmount := capital * act.RiskPercent / 100
	positionSize := riskAmount * act.Leverage

	ex.log.Info("action fired",
		zap.String("symbol", h.Symbol),
		zap.String("action", chosen),
		zap.Float64("risk_amount", riskAmount),
		zap.Float64("position_size", positionSize))

	ex.placer.Place(ctx, trade.Request{
		Symbol:       h.Symbol,
		Interval:     h.Interval,
		Direction:    act.Direction,
		PositionSize: positionSize,
		Leverage:     act.Leverage,
		RiskPercent:  act.RiskPercent,
		StopLoss:     act.StopLoss,
		TakeProfit:   act.TakeProfit,
		RiskReward:   act.RiskReward,
	})
	out.Placed = true
	return out, nil
}

// buildEnv assembles the allow-listed environment: closed candles as
// chart_data, closed-plus-live as data, last-bar scalars, the live candle
// (nil when the stream has none) and account state. Average volume is
// precomputed on the pool alongside the rest of the setup.
func (ex *Executor) buildEnv(ctx context.Context, symbol string, chart, data []market.Candle, liveCandle Value) (*Env, error) {
	env := NewEnv()
	registerBuiltins(env, ex.pool)

	var avgVolume float64
	wait := ex.pool.Go(func() { avgVolume = indicators.AverageVolume(data) })

	capital, err := ex.account.AvailableCapital(ctx)
	if err != nil {
		ex.log.Error("failed to fetch available capital", zap.Error(err))
		capital = 0
	}
	positions, err := ex.account.OpenPositions(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch open positions: %w", err)
	}
	open := List{}
	for _, p := range positions {
		if p.Open() {
			open = append(open, PositionObject(p))
		}
	}

	previousClose := math.NaN()
	if len(data) > 1 {
		previousClose = data[len(data)-2].Close
	}

	wait()

	last := data[len(data)-1]

	env.SetVar("symbol", symbol)
	env.SetVar("data", data)
	env.SetVar("chart_data", chart)
	env.SetVar("open", last.Open)
	env.SetVar("high", last.High)
	env.SetVar("low", last.Low)
	env.SetVar("volume", last.Volume)
	env.SetVar("lastclose", last.Close)
	env.SetVar("previousclose", previousClose)
	env.SetVar("averagevolume", avgVolume)
	env.SetVar("live_candle", liveCandle)
	env.SetVar("available_balance", capital)
	env.SetVar("open_positions", open)
	return env, nil
}

func localAction(locals map[string]Value, name string) (string, error) {
	v, ok := locals[name]
	if !ok {
		return action.DoNothing, nil
	}
	s, ok := v.(string)
	if !ok {
		return "", runtimef(0, "%s must be a string, got %s", name, kindName(v))
	}
	return s, nil
}
