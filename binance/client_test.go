package binance

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rustyeddy/scriptbot/broker"
	"github.com/rustyeddy/scriptbot/market"
)

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(zap.NewNop(), "key", "secret", WithBaseURL(srv.URL))
}

func TestClient_SignedRequestCarriesSignature(t *testing.T) {
	t.Parallel()

	var got *http.Request
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		got = r.Clone(context.Background())
		w.Write([]byte(`[]`))
	})

	_, err := c.OpenPositions(context.Background())
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "key", got.Header.Get("X-MBX-APIKEY"))
	q := got.URL.Query()
	assert.NotEmpty(t, q.Get("timestamp"))
	assert.NotEmpty(t, q.Get("signature"))
	assert.Equal(t, "5000", q.Get("recvWindow"))
}

func TestClient_APIError(t *testing.T) {
	t.Parallel()

	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"code":-2019,"msg":"Margin is insufficient."}`))
	})

	err := c.SetLeverage(context.Background(), "BTCUSDT", 10)
	require.Error(t, err)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, -2019, apiErr.Code)
}

func TestSetMarginType_AlreadySetIsNotAnError(t *testing.T) {
	t.Parallel()

	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"code":-4046,"msg":"No need to change margin type."}`))
	})

	err := c.SetMarginType(context.Background(), "BTCUSDT", true)
	assert.NoError(t, err)
}

func TestKlines_ParsesRows(t *testing.T) {
	t.Parallel()

	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "BTCUSDT", r.URL.Query().Get("symbol"))
		assert.Equal(t, "1h", r.URL.Query().Get("interval"))
		w.Write([]byte(`[
			[1700000000000,"100.5","101","99.5","100.75","12.5",1700003599999,"0",0,"0","0","0"],
			[1700003600000,"100.75","102","100","101.25","8.1",1700007199999,"0",0,"0","0","0"]
		]`))
	})

	candles, err := c.Klines(context.Background(), "BTCUSDT", market.Interval1h, time.Time{}, 0)
	require.NoError(t, err)
	require.Len(t, candles, 2)
	assert.Equal(t, time.UnixMilli(1700000000000).UTC(), candles[0].OpenTime)
	assert.Equal(t, 100.5, candles[0].Open)
	assert.Equal(t, 101.25, candles[1].Close)
	assert.True(t, candles[0].Closed)
	assert.True(t, candles[1].Closed)
}

func TestSubmitMarketOrder_ReturnsFill(t *testing.T) {
	t.Parallel()

	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		q := r.URL.Query()
		assert.Equal(t, "MARKET", q.Get("type"))
		assert.Equal(t, "0.04", q.Get("quantity"))
		w.Write([]byte(`{"orderId":42,"symbol":"BTCUSDT","avgPrice":"50001.2","executedQty":"0.04"}`))
	})

	fill, err := c.SubmitMarketOrder(context.Background(), broker.MarketOrderRequest{
		Symbol:       "BTCUSDT",
		Side:         broker.Buy,
		PositionSide: market.Long,
		Quantity:     0.04,
	})
	require.NoError(t, err)
	assert.Equal(t, "42", fill.OrderID)
	assert.Equal(t, 0.04, fill.Quantity)
	assert.Equal(t, 50001.2, fill.Price)
}

func TestLeverageBrackets(t *testing.T) {
	t.Parallel()

	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"symbol":"BTCUSDT","brackets":[
			{"bracket":1,"initialLeverage":125,"notionalCap":50000,"notionalFloor":0,"maintMarginRatio":0.004,"cum":0},
			{"bracket":2,"initialLeverage":100,"notionalCap":250000,"notionalFloor":50000,"maintMarginRatio":0.005,"cum":50}
		]}]`))
	})

	tiers, err := c.LeverageBrackets(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	require.Len(t, tiers, 2)
	assert.Equal(t, 125.0, tiers[0].MaxLeverage)
	assert.Equal(t, 50.0, tiers[1].MaintAmount)
	assert.Equal(t, 0.005, tiers[1].MMR)
}

func TestStream_HandleKlineEvent(t *testing.T) {
	t.Parallel()

	s := NewStream(zap.NewNop(), []StreamKey{{Symbol: "BTCUSDT", Interval: market.Interval1h}})
	var closedKey StreamKey
	var closedCandle market.Candle
	s.OnClose = func(key StreamKey, candle market.Candle) {
		closedKey = key
		closedCandle = candle
	}

	s.handle([]byte(`{"data":{"e":"kline","s":"BTCUSDT","k":{
		"t":1700000000000,"i":"1h","o":"100","h":"102","l":"99","c":"101","v":"5.5","x":false}}}`))

	live, ok := s.Latest("BTCUSDT", market.Interval1h)
	require.True(t, ok)
	assert.Equal(t, 101.0, live.Close)
	assert.False(t, live.Closed)
	assert.Zero(t, closedKey.Symbol)

	s.handle([]byte(`{"data":{"e":"kline","s":"BTCUSDT","k":{
		"t":1700000000000,"i":"1h","o":"100","h":"102","l":"99","c":"101.5","v":"9","x":true}}}`))

	assert.Equal(t, "BTCUSDT", closedKey.Symbol)
	assert.Equal(t, 101.5, closedCandle.Close)
	assert.True(t, closedCandle.Closed)
}

func TestStream_URL(t *testing.T) {
	t.Parallel()

	s := NewStream(zap.NewNop(), []StreamKey{
		{Symbol: "BTCUSDT", Interval: market.Interval1h},
		{Symbol: "ETHUSDT", Interval: market.Interval15m},
	})
	assert.Equal(t, DefaultStreamURL+"?streams=btcusdt@kline_1h/ethusdt@kline_15m", s.streamURL())
}
