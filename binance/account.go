package binance

import (
	"context"
	"fmt"
	"math"
	"net/url"

	"github.com/rustyeddy/scriptbot/market"
)

// quoteAsset is the margin currency all balances are reported in.
const quoteAsset = "USDT"

// AvailableCapital returns the free USDT balance in the futures wallet.
func (c *Client) AvailableCapital(ctx context.Context) (float64, error) {
	var out []struct {
		Asset            string `json:"asset"`
		AvailableBalance string `json:"availableBalance"`
	}
	if err := c.signedGet(ctx, "/fapi/v2/balance", nil, &out); err != nil {
		return 0, fmt.Errorf("balance: %w", err)
	}
	for _, b := range out {
		if b.Asset != quoteAsset {
			continue
		}
		v, err := parseFloat(b.AvailableBalance)
		if err != nil {
			return 0, fmt.Errorf("balance: %w", err)
		}
		return v, nil
	}
	return 0, fmt.Errorf("balance: no %s entry in response", quoteAsset)
}

// OpenPositions returns every position with a non-zero amount.
func (c *Client) OpenPositions(ctx context.Context) ([]market.Position, error) {
	var out []struct {
		Symbol           string `json:"symbol"`
		PositionAmt      string `json:"positionAmt"`
		EntryPrice       string `json:"entryPrice"`
		UnrealizedProfit string `json:"unRealizedProfit"`
		LiquidationPrice string `json:"liquidationPrice"`
		Leverage         string `json:"leverage"`
		MarginType       string `json:"marginType"`
		IsolatedMargin   string `json:"isolatedMargin"`
		Notional         string `json:"notional"`
		PositionSide     string `json:"positionSide"`
		MarkPrice        string `json:"markPrice"`
	}
	if err := c.signedGet(ctx, "/fapi/v2/positionRisk", nil, &out); err != nil {
		return nil, fmt.Errorf("position risk: %w", err)
	}

	var positions []market.Position
	for _, p := range out {
		amt, err := parseFloat(p.PositionAmt)
		if err != nil {
			return nil, fmt.Errorf("position risk %s: %w", p.Symbol, err)
		}
		if amt == 0 {
			continue
		}
		side := market.Long
		if amt < 0 || p.PositionSide == "SHORT" {
			side = market.Short
		}
		amt = math.Abs(amt)
		entry, _ := parseFloat(p.EntryPrice)
		pnl, _ := parseFloat(p.UnrealizedProfit)
		liq, _ := parseFloat(p.LiquidationPrice)
		lev, _ := parseFloat(p.Leverage)
		iso, _ := parseFloat(p.IsolatedMargin)
		notional, _ := parseFloat(p.Notional)
		if notional < 0 {
			notional = -notional
		}
		positions = append(positions, market.Position{
			Symbol:           p.Symbol,
			Side:             side,
			Quantity:         amt,
			EntryPrice:       entry,
			Notional:         notional,
			UnrealizedPnL:    pnl,
			LiquidationPrice: liq,
			Leverage:         lev,
			MarginType:       p.MarginType,
			IsolatedMargin:   iso,
		})
	}
	return positions, nil
}

// OpenOrders lists working orders, optionally filtered by symbol.
func (c *Client) OpenOrders(ctx context.Context, symbol string) ([]OpenOrder, error) {
	params := url.Values{}
	if symbol != "" {
		params.Set("symbol", symbol)
	}
	var out []struct {
		OrderID   int64  `json:"orderId"`
		Symbol    string `json:"symbol"`
		Type      string `json:"type"`
		Side      string `json:"side"`
		StopPrice string `json:"stopPrice"`
		OrigQty   string `json:"origQty"`
	}
	if err := c.signedGet(ctx, "/fapi/v1/openOrders", params, &out); err != nil {
		return nil, fmt.Errorf("open orders: %w", err)
	}
	orders := make([]OpenOrder, 0, len(out))
	for _, o := range out {
		stop, _ := parseFloat(o.StopPrice)
		qty, _ := parseFloat(o.OrigQty)
		orders = append(orders, OpenOrder{
			OrderID:   o.OrderID,
			Symbol:    o.Symbol,
			Type:      o.Type,
			Side:      o.Side,
			StopPrice: stop,
			Quantity:  qty,
		})
	}
	return orders, nil
}

// OpenOrder is a working order on the exchange.
type OpenOrder struct {
	OrderID   int64
	Symbol    string
	Type      string
	Side      string
	StopPrice float64
	Quantity  float64
}
