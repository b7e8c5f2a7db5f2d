package binance

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/rustyeddy/scriptbot/market"
)

// MaxKlineLimit is the largest page the klines endpoint serves per request.
const MaxKlineLimit = 1500

// Klines fetches historical candles, oldest first. startTime of zero means
// "from the earliest the exchange will serve within limit".
func (c *Client) Klines(ctx context.Context, symbol string, interval market.Interval, startTime time.Time, limit int) ([]market.Candle, error) {
	if limit <= 0 || limit > MaxKlineLimit {
		limit = MaxKlineLimit
	}
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("interval", string(interval))
	params.Set("limit", strconv.Itoa(limit))
	if !startTime.IsZero() {
		params.Set("startTime", strconv.FormatInt(startTime.UnixMilli(), 10))
	}

	var raw [][]any
	if err := c.public(ctx, "/fapi/v1/klines", params, &raw); err != nil {
		return nil, fmt.Errorf("klines %s %s: %w", symbol, interval, err)
	}

	candles := make([]market.Candle, 0, len(raw))
	for _, row := range raw {
		candle, err := candleFromRow(row)
		if err != nil {
			return nil, fmt.Errorf("klines %s %s: %w", symbol, interval, err)
		}
		candles = append(candles, candle)
	}
	// The last row is the in-progress candle unless its close time has
	// already passed.
	now := time.Now().Add(c.timeOffset)
	for i := range candles {
		candles[i].Closed = !now.Before(candles[i].CloseTime(interval))
	}
	return candles, nil
}

// candleFromRow decodes one kline row: openTime, open, high, low, close,
// volume, closeTime, ... (trailing fields ignored).
func candleFromRow(row []any) (market.Candle, error) {
	if len(row) < 6 {
		return market.Candle{}, fmt.Errorf("kline row has %d fields", len(row))
	}
	openMs, ok := row[0].(float64)
	if !ok {
		return market.Candle{}, fmt.Errorf("kline open time %v is not numeric", row[0])
	}
	vals := make([]float64, 5)
	for i := 1; i <= 5; i++ {
		s, ok := row[i].(string)
		if !ok {
			return market.Candle{}, fmt.Errorf("kline field %d is %T, want string", i, row[i])
		}
		v, err := parseFloat(s)
		if err != nil {
			return market.Candle{}, fmt.Errorf("kline field %d: %w", i, err)
		}
		vals[i-1] = v
	}
	return market.Candle{
		OpenTime: time.UnixMilli(int64(openMs)).UTC(),
		Open:     vals[0],
		High:     vals[1],
		Low:      vals[2],
		Close:    vals[3],
		Volume:   vals[4],
	}, nil
}

// MarkPrice returns the current mark price for a symbol.
func (c *Client) MarkPrice(ctx context.Context, symbol string) (float64, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	var out struct {
		MarkPrice string `json:"markPrice"`
	}
	if err := c.public(ctx, "/fapi/v1/premiumIndex", params, &out); err != nil {
		return 0, fmt.Errorf("mark price %s: %w", symbol, err)
	}
	p, err := parseFloat(out.MarkPrice)
	if err != nil {
		return 0, fmt.Errorf("mark price %s: %w", symbol, err)
	}
	return p, nil
}

type exchangeInfoResponse struct {
	Symbols []struct {
		Symbol            string `json:"symbol"`
		PricePrecision    int    `json:"pricePrecision"`
		QuantityPrecision int    `json:"quantityPrecision"`
		Filters           []struct {
			FilterType  string `json:"filterType"`
			MinQty      string `json:"minQty"`
			StepSize    string `json:"stepSize"`
			Notional    string `json:"notional"`
			MinNotional string `json:"minNotional"`
		} `json:"filters"`
	} `json:"symbols"`
}

// ExchangeConstraints fetches quantization rules for every trading symbol.
func (c *Client) ExchangeConstraints(ctx context.Context) (map[string]market.SymbolConstraints, error) {
	var info exchangeInfoResponse
	if err := c.public(ctx, "/fapi/v1/exchangeInfo", nil, &info); err != nil {
		return nil, fmt.Errorf("exchange info: %w", err)
	}

	out := make(map[string]market.SymbolConstraints, len(info.Symbols))
	for _, sym := range info.Symbols {
		sc := market.SymbolConstraints{
			PricePrecision:    sym.PricePrecision,
			QuantityPrecision: sym.QuantityPrecision,
		}
		for _, f := range sym.Filters {
			switch f.FilterType {
			case "LOT_SIZE":
				if v, err := parseFloat(f.MinQty); err == nil {
					sc.MinQty = v
				}
				if v, err := parseFloat(f.StepSize); err == nil {
					sc.StepSize = v
				}
			case "MIN_NOTIONAL":
				notional := f.Notional
				if notional == "" {
					notional = f.MinNotional
				}
				if v, err := parseFloat(notional); err == nil {
					sc.MinNotional = v
				}
			}
		}
		out[sym.Symbol] = sc
	}
	return out, nil
}

// SymbolConstraints fetches constraints for a single symbol.
func (c *Client) SymbolConstraints(ctx context.Context, symbol string) (market.SymbolConstraints, error) {
	all, err := c.ExchangeConstraints(ctx)
	if err != nil {
		return market.SymbolConstraints{}, err
	}
	sc, ok := all[symbol]
	if !ok {
		return market.SymbolConstraints{}, fmt.Errorf("symbol %s not listed on exchange", symbol)
	}
	return sc, nil
}

// LeverageBrackets fetches the notional tiers for a symbol, ascending.
func (c *Client) LeverageBrackets(ctx context.Context, symbol string) ([]market.LeverageTier, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	var out []struct {
		Symbol   string `json:"symbol"`
		Brackets []struct {
			Bracket          int     `json:"bracket"`
			InitialLeverage  float64 `json:"initialLeverage"`
			NotionalCap      float64 `json:"notionalCap"`
			NotionalFloor    float64 `json:"notionalFloor"`
			MaintMarginRatio float64 `json:"maintMarginRatio"`
			Cum              float64 `json:"cum"`
		} `json:"brackets"`
	}
	if err := c.signedGet(ctx, "/fapi/v1/leverageBracket", params, &out); err != nil {
		return nil, fmt.Errorf("leverage brackets %s: %w", symbol, err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("leverage brackets %s: empty response", symbol)
	}

	tiers := make([]market.LeverageTier, 0, len(out[0].Brackets))
	for _, b := range out[0].Brackets {
		tiers = append(tiers, market.LeverageTier{
			NotionalFloor: b.NotionalFloor,
			MaxNotional:   b.NotionalCap,
			MaintAmount:   b.Cum,
			MMR:           b.MaintMarginRatio,
			MaxLeverage:   b.InitialLeverage,
		})
	}
	if len(tiers) == 0 {
		return nil, fmt.Errorf("leverage brackets %s: no tiers", symbol)
	}
	return tiers, nil
}
