// Package trade turns a parsed order intent into real exchange orders: it
// sizes the position against the risk budget, then walks the guarded
// margin/leverage/entry/stop/take-profit submission sequence.
package trade

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/rustyeddy/scriptbot/action"
	"github.com/rustyeddy/scriptbot/broker"
	"github.com/rustyeddy/scriptbot/market"
	"github.com/rustyeddy/scriptbot/risk"
	"github.com/rustyeddy/scriptbot/store"
)

// ErrLocked reports a placement attempted while another one is in flight.
// Concurrent attempts are dropped, never queued.
var ErrLocked = errors.New("trade lock active")

// DefaultTakerFee is the exchange taker fee rate used for round-trip fee
// projection when deriving a take-profit from a risk/reward ratio.
const DefaultTakerFee = 0.0004

// Request is one placement attempt, built from a fired script action.
type Request struct {
	Symbol   string
	Interval market.Interval

	Direction    action.Direction
	PositionSize float64
	Leverage     float64
	RiskPercent  float64

	StopLoss   *action.Target
	TakeProfit *action.Target
	RiskReward *float64
}

// Placer orchestrates order placement. A process-wide single-flight gate
// serializes attempts: while one placement is in flight every other attempt
// is rejected immediately.
//
// There is no compensation on partial failure. If the entry order succeeds
// and a later stop/take-profit submission fails, the position stays open and
// unprotected; the failure is only surfaced through the log.
type Placer struct {
	log         *zap.Logger
	data        broker.MarketDataSource
	account     broker.AccountSource
	constraints broker.ConstraintsSource
	sink        broker.OrderSink
	orders      store.OrderLog

	takerFee float64
	isolated bool

	inFlight atomic.Bool
}

// Option configures a Placer.
type Option func(*Placer)

// WithTakerFee overrides the taker fee rate used in RR fee projection.
func WithTakerFee(rate float64) Option {
	return func(p *Placer) { p.takerFee = rate }
}

// WithCrossMargin disables the isolated-margin call before entry.
func WithCrossMargin() Option {
	return func(p *Placer) { p.isolated = false }
}

// WithOrderLog records every placed order in the given log.
func WithOrderLog(ol store.OrderLog) Option {
	return func(p *Placer) { p.orders = ol }
}

// NewPlacer wires a Placer to its collaborators.
func NewPlacer(log *zap.Logger, data broker.MarketDataSource, account broker.AccountSource,
	constraints broker.ConstraintsSource, sink broker.OrderSink, opts ...Option) *Placer {

	p := &Placer{
		log:         log,
		data:        data,
		account:     account,
		constraints: constraints,
		sink:        sink,
		takerFee:    DefaultTakerFee,
		isolated:    true,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Place runs one placement attempt. Errors are logged and swallowed: the
// placer is driven by unattended looped invocations, so a failed placement
// must not take down the loop. The lock is released on every exit path.
func (p *Placer) Place(ctx context.Context, req Request) {
	if !p.inFlight.CompareAndSwap(false, true) {
		p.log.Warn("trade lock active, skipping duplicate trade",
			zap.String("symbol", req.Symbol))
		return
	}
	defer p.inFlight.Store(false)

	if err := p.place(ctx, req); err != nil {
		p.log.Error("order failed",
			zap.String("symbol", req.Symbol),
			zap.String("direction", string(req.Direction)),
			zap.Error(err))
	}
}

func (p *Placer) place(ctx context.Context, req Request) error {
	live, ok := p.data.LiveCandle(req.Symbol, req.Interval)
	if !ok {
		return errors.New("no live candle available")
	}
	price := live.Close

	capital, err := p.account.AvailableCapital(ctx)
	if err != nil {
		return fmt.Errorf("available capital unknown, cannot calculate risk amount: %w", err)
	}
	riskAmount := capital * req.RiskPercent / 100

	constraints, err := p.constraints.Constraints(ctx, req.Symbol)
	if err != nil {
		return fmt.Errorf("symbol constraints: %w", err)
	}
	tiers, err := p.constraints.LeverageTiers(ctx, req.Symbol)
	if err != nil {
		return fmt.Errorf("leverage tiers: %w", err)
	}

	sized, err := risk.Size(risk.SizeInputs{
		Symbol:       req.Symbol,
		PositionSize: req.PositionSize,
		Price:        price,
		RiskAmount:   riskAmount,
		Leverage:     req.Leverage,
		Constraints:  constraints,
		Tiers:        tiers,
	})
	if err != nil {
		return err
	}

	// Re-check against fresh constraints; the sizing pass may have used a
	// stale cache.
	fresh, err := p.constraints.Constraints(ctx, req.Symbol)
	if err != nil {
		return fmt.Errorf("refresh symbol constraints: %w", err)
	}
	effectiveMinQty := math.Max(fresh.MinQty, fresh.MinNotional/price)
	if sized.Quantity < effectiveMinQty {
		return fmt.Errorf("quantity %.*f below effective minimum %.*f",
			fresh.QuantityPrecision, sized.Quantity, fresh.QuantityPrecision, effectiveMinQty)
	}

	if req.PositionSize > 0 &&
		(math.Abs(sized.AdjustedPositionSize-req.PositionSize)/req.PositionSize > 0.1 || sized.UsedMargin > riskAmount) {
		p.log.Info("adjusted position size",
			zap.Float64("notional", sized.AdjustedPositionSize),
			zap.Float64("margin", sized.UsedMargin),
			zap.Float64("leverage", sized.Leverage))
	}

	side, posSide := broker.Buy, market.Long
	if req.Direction == action.DirShort {
		side, posSide = broker.Sell, market.Short
	}

	positions, err := p.account.OpenPositions(ctx)
	if err != nil {
		return fmt.Errorf("open positions: %w", err)
	}
	for _, pos := range positions {
		if pos.Symbol == req.Symbol && pos.Side == posSide && pos.Open() {
			return fmt.Errorf("already have an open %s position for %s", posSide, req.Symbol)
		}
	}

	if p.isolated {
		if err := p.sink.SetMarginType(ctx, req.Symbol, true); err != nil {
			return fmt.Errorf("set margin type: %w", err)
		}
	}
	if err := p.sink.SetLeverage(ctx, req.Symbol, int(sized.Leverage)); err != nil {
		return fmt.Errorf("set leverage: %w", err)
	}

	fill, err := p.sink.SubmitMarketOrder(ctx, broker.MarketOrderRequest{
		Symbol:       req.Symbol,
		Side:         side,
		PositionSide: posSide,
		Quantity:     sized.Quantity,
	})
	if err != nil {
		return fmt.Errorf("entry order: %w", err)
	}

	closeSide := broker.Sell
	if side == broker.Sell {
		closeSide = broker.Buy
	}

	var stopPrice float64
	if req.StopLoss != nil {
		stopPrice = roundPrice(exitPrice(price, *req.StopLoss, req.Direction, exitStop), fresh.PricePrecision)
		err := p.sink.SubmitStopOrder(ctx, broker.StopOrderRequest{
			Symbol:       req.Symbol,
			Side:         closeSide,
			PositionSide: posSide,
			StopPrice:    stopPrice,
		})
		if err != nil {
			return fmt.Errorf("stop order: %w", err)
		}
	}

	var takePrice float64
	switch {
	case req.RiskReward != nil:
		// Target a net profit of usedMargin*rr; gross it up by the projected
		// round-trip taker fees before converting to a price distance.
		netProfit := sized.UsedMargin * *req.RiskReward
		fees := sized.AdjustedPositionSize * p.takerFee * 2
		distance := (netProfit + fees) / sized.AdjustedPositionSize
		takePrice = price * (1 + distance)
		if req.Direction == action.DirShort {
			takePrice = price * (1 - distance)
		}
		takePrice = roundPrice(takePrice, fresh.PricePrecision)
		err := p.sink.SubmitTakeProfitOrder(ctx, broker.StopOrderRequest{
			Symbol:       req.Symbol,
			Side:         closeSide,
			PositionSide: posSide,
			StopPrice:    takePrice,
		})
		if err != nil {
			return fmt.Errorf("take-profit order: %w", err)
		}

	case req.TakeProfit != nil:
		takePrice = roundPrice(exitPrice(price, *req.TakeProfit, req.Direction, exitTake), fresh.PricePrecision)
		err := p.sink.SubmitTakeProfitOrder(ctx, broker.StopOrderRequest{
			Symbol:       req.Symbol,
			Side:         closeSide,
			PositionSide: posSide,
			StopPrice:    takePrice,
		})
		if err != nil {
			return fmt.Errorf("take-profit order: %w", err)
		}
	}

	// Refresh the capital snapshot so the next invocation sizes against
	// post-entry balance. Failure here is not a placement failure.
	if _, err := p.account.AvailableCapital(ctx); err != nil {
		p.log.Debug("capital refresh failed", zap.Error(err))
	}

	if p.orders != nil {
		rec := store.OrderRecord{
			OrderID:    fill.OrderID,
			Symbol:     req.Symbol,
			Side:       string(posSide),
			Quantity:   sized.Quantity,
			Notional:   sized.AdjustedPositionSize,
			Margin:     sized.UsedMargin,
			Leverage:   sized.Leverage,
			StopLoss:   stopPrice,
			TakeProfit: takePrice,
		}
		if err := p.orders.RecordOrder(rec); err != nil {
			p.log.Warn("order log write failed", zap.Error(err))
		}
	}

	fields := []zap.Field{
		zap.String("symbol", req.Symbol),
		zap.String("side", string(posSide)),
		zap.Float64("quantity", sized.Quantity),
		zap.Float64("notional", sized.AdjustedPositionSize),
		zap.Float64("margin", sized.UsedMargin),
		zap.Float64("leverage", sized.Leverage),
	}
	if req.StopLoss != nil {
		fields = append(fields, zap.Float64("stop", stopPrice))
	}
	if takePrice != 0 {
		fields = append(fields, zap.Float64("take", takePrice))
	}
	if req.RiskReward != nil {
		fields = append(fields, zap.Float64("rr", *req.RiskReward))
	}
	p.log.Info("position opened", fields...)
	return nil
}

type exitKind int

const (
	exitStop exitKind = iota
	exitTake
)

// exitPrice resolves a sl/tp target to an absolute price. Percent stops move
// against the position (long subtracts, short adds); percent takes move with
// it.
func exitPrice(entry float64, t action.Target, dir action.Direction, kind exitKind) float64 {
	if !t.Percent {
		return t.Value
	}
	frac := t.Value / 100
	long := dir == action.DirLong
	if kind == exitStop {
		if long {
			return entry * (1 - frac)
		}
		return entry * (1 + frac)
	}
	if long {
		return entry * (1 + frac)
	}
	return entry * (1 - frac)
}

func roundPrice(v float64, precision int) float64 {
	p := math.Pow(10, float64(precision))
	return math.Round(v*p) / p
}
