// Package broker defines the collaborator interfaces the trading core
// consumes. Implementations live elsewhere (the binance package for the real
// exchange, test fakes in consuming packages).
package broker

import (
	"context"

	"github.com/rustyeddy/scriptbot/market"
)

// MarketDataSource serves historical candles and the in-progress live candle
// for a symbol/interval.
type MarketDataSource interface {
	// Candles returns the cached OHLCV sequence, ordered by open time
	// ascending, refreshed from the exchange as needed.
	Candles(ctx context.Context, symbol string, interval market.Interval) ([]market.Candle, error)

	// LiveCandle returns the current in-progress candle, if one has been
	// received from the stream.
	LiveCandle(symbol string, interval market.Interval) (market.Candle, bool)
}

// AccountSource exposes account capital, open positions and mark prices.
type AccountSource interface {
	// AvailableCapital returns the free balance in the account's quote
	// currency. An error means the capital is unknown, which callers must
	// treat as "cannot size a trade".
	AvailableCapital(ctx context.Context) (float64, error)

	OpenPositions(ctx context.Context) ([]market.Position, error)

	MarkPrice(ctx context.Context, symbol string) (float64, error)
}

// ConstraintsSource serves exchange quantization rules and leverage tiers.
type ConstraintsSource interface {
	Constraints(ctx context.Context, symbol string) (market.SymbolConstraints, error)

	// LeverageTiers returns the symbol's brackets ordered ascending by
	// notional ceiling. Implementations must fail loudly on an empty result.
	LeverageTiers(ctx context.Context, symbol string) ([]market.LeverageTier, error)
}

// OrderSide is the exchange order side.
type OrderSide string

const (
	Buy  OrderSide = "BUY"
	Sell OrderSide = "SELL"
)

// MarketOrderRequest is a market entry (or close) order.
type MarketOrderRequest struct {
	Symbol       string
	Side         OrderSide
	PositionSide market.PositionSide
	Quantity     float64
}

// StopOrderRequest is a reduce-only stop or take-profit order closing the
// full position when the stop price trades.
type StopOrderRequest struct {
	Symbol       string
	Side         OrderSide
	PositionSide market.PositionSide
	StopPrice    float64
}

// OrderFill acknowledges a filled market order.
type OrderFill struct {
	OrderID  string
	Symbol   string
	Quantity float64
	Price    float64
}

// OrderSink issues real-money order calls against the exchange. Every method
// is fallible with a transport-level error the core surfaces unchanged.
type OrderSink interface {
	// SetMarginType switches the symbol's margin mode. Implementations treat
	// the exchange's "no need to change" response as success.
	SetMarginType(ctx context.Context, symbol string, isolated bool) error

	SetLeverage(ctx context.Context, symbol string, leverage int) error

	SubmitMarketOrder(ctx context.Context, req MarketOrderRequest) (OrderFill, error)

	SubmitStopOrder(ctx context.Context, req StopOrderRequest) error

	SubmitTakeProfitOrder(ctx context.Context, req StopOrderRequest) error

	CancelOpenOrders(ctx context.Context, symbol string) error
}
