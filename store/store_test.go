package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/scriptbot/market"
)

func openTest(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func candleSeq(base time.Time, closes ...float64) []market.Candle {
	out := make([]market.Candle, len(closes))
	for i, c := range closes {
		out[i] = market.Candle{
			OpenTime: base.Add(time.Duration(i) * time.Hour),
			Open:     c, High: c + 1, Low: c - 1, Close: c, Volume: 10,
		}
	}
	return out
}

func TestKlines_UpsertAndRead(t *testing.T) {
	t.Parallel()

	s := openTest(t)
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.UpsertKlines("BTCUSDT", market.Interval1h, candleSeq(base, 100, 101, 102)))

	got, err := s.Klines("BTCUSDT", market.Interval1h, 10)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, base, got[0].OpenTime)
	assert.Equal(t, 102.0, got[2].Close)
	assert.True(t, got[0].Closed)

	// Re-upserting the same open time replaces the row.
	updated := candleSeq(base.Add(2*time.Hour), 999)
	require.NoError(t, s.UpsertKlines("BTCUSDT", market.Interval1h, updated))
	got, err = s.Klines("BTCUSDT", market.Interval1h, 10)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, 999.0, got[2].Close)
}

func TestKlines_LimitServesNewest(t *testing.T) {
	t.Parallel()

	s := openTest(t)
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.UpsertKlines("BTCUSDT", market.Interval1h, candleSeq(base, 1, 2, 3, 4, 5)))

	got, err := s.Klines("BTCUSDT", market.Interval1h, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	// Newest two, still in ascending order.
	assert.Equal(t, 4.0, got[0].Close)
	assert.Equal(t, 5.0, got[1].Close)
}

func TestKlines_SeparateSymbolsAndIntervals(t *testing.T) {
	t.Parallel()

	s := openTest(t)
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.UpsertKlines("BTCUSDT", market.Interval1h, candleSeq(base, 1)))
	require.NoError(t, s.UpsertKlines("BTCUSDT", market.Interval4h, candleSeq(base, 2)))
	require.NoError(t, s.UpsertKlines("ETHUSDT", market.Interval1h, candleSeq(base, 3)))

	got, err := s.Klines("BTCUSDT", market.Interval4h, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 2.0, got[0].Close)
}

func TestLastOpenTime(t *testing.T) {
	t.Parallel()

	s := openTest(t)
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	last, err := s.LastOpenTime("BTCUSDT", market.Interval1h)
	require.NoError(t, err)
	assert.True(t, last.IsZero())

	require.NoError(t, s.UpsertKlines("BTCUSDT", market.Interval1h, candleSeq(base, 1, 2)))
	last, err = s.LastOpenTime("BTCUSDT", market.Interval1h)
	require.NoError(t, err)
	assert.Equal(t, base.Add(time.Hour), last)
}

func TestTrimKlines(t *testing.T) {
	t.Parallel()

	s := openTest(t)
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.UpsertKlines("BTCUSDT", market.Interval1h, candleSeq(base, 1, 2, 3, 4, 5)))
	require.NoError(t, s.TrimKlines("BTCUSDT", market.Interval1h, 3))

	got, err := s.Klines("BTCUSDT", market.Interval1h, 10)
	require.NoError(t, err)
	require.Len(t, got, 3)
	// The oldest candles are the ones dropped.
	assert.Equal(t, 3.0, got[0].Close)
}

func TestConstraints_SaveAndLoad(t *testing.T) {
	t.Parallel()

	s := openTest(t)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	in := map[string]market.SymbolConstraints{
		"BTCUSDT": {MinQty: 0.001, StepSize: 0.001, QuantityPrecision: 3, MinNotional: 5, PricePrecision: 2},
		"ETHUSDT": {MinQty: 0.01, StepSize: 0.01, QuantityPrecision: 2, MinNotional: 5, PricePrecision: 2},
	}
	require.NoError(t, s.SaveConstraints(in, now))

	sc, ok, err := s.Constraints("BTCUSDT")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, in["BTCUSDT"], sc)

	_, ok, err = s.Constraints("DOGEUSDT")
	require.NoError(t, err)
	assert.False(t, ok)

	updated, err := s.ConstraintsUpdatedAt()
	require.NoError(t, err)
	assert.Equal(t, now.Unix(), updated.Unix())
}

func TestLeverageTiers_ReplaceOnSave(t *testing.T) {
	t.Parallel()

	s := openTest(t)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	first := []market.LeverageTier{
		{NotionalFloor: 0, MaxNotional: 50000, MaintAmount: 0, MMR: 0.004, MaxLeverage: 125},
		{NotionalFloor: 50000, MaxNotional: 250000, MaintAmount: 50, MMR: 0.005, MaxLeverage: 100},
	}
	require.NoError(t, s.SaveLeverageTiers("BTCUSDT", first, now))

	second := []market.LeverageTier{
		{NotionalFloor: 0, MaxNotional: 40000, MaintAmount: 0, MMR: 0.005, MaxLeverage: 100},
	}
	require.NoError(t, s.SaveLeverageTiers("BTCUSDT", second, now.Add(time.Hour)))

	tiers, err := s.LeverageTiers("BTCUSDT")
	require.NoError(t, err)
	require.Len(t, tiers, 1)
	assert.Equal(t, 100.0, tiers[0].MaxLeverage)

	updated, err := s.TiersUpdatedAt("BTCUSDT")
	require.NoError(t, err)
	assert.Equal(t, now.Add(time.Hour).Unix(), updated.Unix())
}

func TestOrders_RecordAndList(t *testing.T) {
	t.Parallel()

	s := openTest(t)
	require.NoError(t, s.RecordOrder(OrderRecord{
		OrderID: "42", Symbol: "BTCUSDT", Side: "LONG",
		Quantity: 0.04, Notional: 2000, Margin: 200, Leverage: 10,
		StopLoss: 49000, TakeProfit: 60040,
		PlacedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}))
	require.NoError(t, s.RecordOrder(OrderRecord{
		Symbol: "ETHUSDT", Side: "SHORT", Quantity: 1, Notional: 3000,
		Margin: 300, Leverage: 10,
		PlacedAt: time.Date(2025, 6, 1, 13, 0, 0, 0, time.UTC),
	}))

	orders, err := s.Orders(10)
	require.NoError(t, err)
	require.Len(t, orders, 2)
	// Newest first.
	assert.Equal(t, "ETHUSDT", orders[0].Symbol)
	assert.Equal(t, "42", orders[1].OrderID)
	// A missing id is generated.
	assert.NotEmpty(t, orders[0].OrderID)
}
