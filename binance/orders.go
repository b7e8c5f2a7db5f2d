package binance

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"

	"github.com/rustyeddy/scriptbot/broker"
)

// codeNoNeedToChange is returned when the margin type is already what was
// requested. It is not a failure.
const codeNoNeedToChange = -4046

// SetMarginType switches a symbol between isolated and cross margin.
func (c *Client) SetMarginType(ctx context.Context, symbol string, isolated bool) error {
	marginType := "CROSSED"
	if isolated {
		marginType = "ISOLATED"
	}
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("marginType", marginType)

	err := c.signedPost(ctx, "/fapi/v1/marginType", params, nil)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Code == codeNoNeedToChange {
		return nil
	}
	if err != nil {
		return fmt.Errorf("set margin type %s %s: %w", symbol, marginType, err)
	}
	return nil
}

// SetLeverage sets the symbol's leverage for subsequent orders.
func (c *Client) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("leverage", strconv.Itoa(leverage))
	if err := c.signedPost(ctx, "/fapi/v1/leverage", params, nil); err != nil {
		return fmt.Errorf("set leverage %s %dx: %w", symbol, leverage, err)
	}
	return nil
}

type orderResponse struct {
	OrderID     int64  `json:"orderId"`
	Symbol      string `json:"symbol"`
	AvgPrice    string `json:"avgPrice"`
	ExecutedQty string `json:"executedQty"`
}

// SubmitMarketOrder places a market entry order and returns the fill.
func (c *Client) SubmitMarketOrder(ctx context.Context, req broker.MarketOrderRequest) (broker.OrderFill, error) {
	params := url.Values{}
	params.Set("symbol", req.Symbol)
	params.Set("side", string(req.Side))
	params.Set("positionSide", string(req.PositionSide))
	params.Set("type", "MARKET")
	params.Set("quantity", strconv.FormatFloat(req.Quantity, 'f', -1, 64))
	params.Set("newOrderRespType", "RESULT")

	var out orderResponse
	if err := c.signedPost(ctx, "/fapi/v1/order", params, &out); err != nil {
		return broker.OrderFill{}, fmt.Errorf("market order %s %s: %w", req.Symbol, req.Side, err)
	}
	price, _ := parseFloat(out.AvgPrice)
	qty, _ := parseFloat(out.ExecutedQty)
	if qty == 0 {
		qty = req.Quantity
	}
	return broker.OrderFill{
		OrderID:  strconv.FormatInt(out.OrderID, 10),
		Symbol:   out.Symbol,
		Quantity: qty,
		Price:    price,
	}, nil
}

// SubmitStopOrder places a close-position stop-market order.
func (c *Client) SubmitStopOrder(ctx context.Context, req broker.StopOrderRequest) error {
	return c.submitTrigger(ctx, "STOP_MARKET", req)
}

// SubmitTakeProfitOrder places a close-position take-profit-market order.
func (c *Client) SubmitTakeProfitOrder(ctx context.Context, req broker.StopOrderRequest) error {
	return c.submitTrigger(ctx, "TAKE_PROFIT_MARKET", req)
}

func (c *Client) submitTrigger(ctx context.Context, orderType string, req broker.StopOrderRequest) error {
	params := url.Values{}
	params.Set("symbol", req.Symbol)
	params.Set("side", string(req.Side))
	params.Set("positionSide", string(req.PositionSide))
	params.Set("type", orderType)
	params.Set("stopPrice", strconv.FormatFloat(req.StopPrice, 'f', -1, 64))
	params.Set("closePosition", "true")
	params.Set("workingType", "MARK_PRICE")

	if err := c.signedPost(ctx, "/fapi/v1/order", params, nil); err != nil {
		return fmt.Errorf("%s %s: %w", orderType, req.Symbol, err)
	}
	return nil
}

// CancelOpenOrders cancels every working order on a symbol.
func (c *Client) CancelOpenOrders(ctx context.Context, symbol string) error {
	params := url.Values{}
	params.Set("symbol", symbol)
	if err := c.signedDelete(ctx, "/fapi/v1/allOpenOrders", params, nil); err != nil {
		return fmt.Errorf("cancel open orders %s: %w", symbol, err)
	}
	return nil
}

// ClosePosition market-closes an open position by submitting the opposite
// side for the full quantity.
func (c *Client) ClosePosition(ctx context.Context, symbol string, side broker.OrderSide, positionSide string, quantity float64) error {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("side", string(side))
	params.Set("positionSide", positionSide)
	params.Set("type", "MARKET")
	params.Set("quantity", strconv.FormatFloat(quantity, 'f', -1, 64))
	params.Set("reduceOnly", "true")

	if err := c.signedPost(ctx, "/fapi/v1/order", params, nil); err != nil {
		return fmt.Errorf("close position %s: %w", symbol, err)
	}
	return nil
}
