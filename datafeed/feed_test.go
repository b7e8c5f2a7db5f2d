package datafeed

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rustyeddy/scriptbot/binance"
	"github.com/rustyeddy/scriptbot/market"
	"github.com/rustyeddy/scriptbot/store"
)

type fakeFetcher struct {
	candles []market.Candle
	calls   int
	from    time.Time
}

func (f *fakeFetcher) Klines(_ context.Context, _ string, _ market.Interval, startTime time.Time, _ int) ([]market.Candle, error) {
	f.calls++
	f.from = startTime
	var out []market.Candle
	for _, c := range f.candles {
		if !startTime.IsZero() && c.OpenTime.Before(startTime) {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

type fakeLive struct {
	candle market.Candle
	ok     bool
}

func (f *fakeLive) Latest(string, market.Interval) (market.Candle, bool) {
	return f.candle, f.ok
}

func openStore(t *testing.T) *store.Store {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "feed.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func hourly(base time.Time, closed bool, closes ...float64) []market.Candle {
	out := make([]market.Candle, len(closes))
	for i, c := range closes {
		out[i] = market.Candle{
			OpenTime: base.Add(time.Duration(i) * time.Hour),
			Open:     c, High: c + 1, Low: c - 1, Close: c,
			Volume: 10, Closed: closed,
		}
	}
	return out
}

func TestFeed_BackfillsEmptyCache(t *testing.T) {
	t.Parallel()

	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	fetcher := &fakeFetcher{candles: hourly(base, true, 100, 101, 102)}
	db := openStore(t)
	feed := NewFeed(zap.NewNop(), fetcher, nil, db,
		WithFeedClock(func() time.Time { return base.Add(5 * time.Hour) }))

	candles, err := feed.Candles(context.Background(), "BTCUSDT", market.Interval1h)
	require.NoError(t, err)
	require.Len(t, candles, 3)
	assert.Equal(t, 102.0, candles[2].Close)
	assert.Equal(t, 1, fetcher.calls)
}

func TestFeed_SkipsBackfillWhenFresh(t *testing.T) {
	t.Parallel()

	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	db := openStore(t)
	require.NoError(t, db.UpsertKlines("BTCUSDT", market.Interval1h, hourly(base, true, 100, 101)))

	fetcher := &fakeFetcher{}
	// The candle after the last cached one has not closed yet.
	feed := NewFeed(zap.NewNop(), fetcher, nil, db,
		WithFeedClock(func() time.Time { return base.Add(2*time.Hour + 30*time.Minute) }))

	candles, err := feed.Candles(context.Background(), "BTCUSDT", market.Interval1h)
	require.NoError(t, err)
	assert.Len(t, candles, 2)
	assert.Zero(t, fetcher.calls)
}

func TestFeed_BackfillStartsAfterLastCached(t *testing.T) {
	t.Parallel()

	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	db := openStore(t)
	require.NoError(t, db.UpsertKlines("BTCUSDT", market.Interval1h, hourly(base, true, 100)))

	fetcher := &fakeFetcher{candles: hourly(base, true, 100, 101, 102)}
	feed := NewFeed(zap.NewNop(), fetcher, nil, db,
		WithFeedClock(func() time.Time { return base.Add(5 * time.Hour) }))

	candles, err := feed.Candles(context.Background(), "BTCUSDT", market.Interval1h)
	require.NoError(t, err)
	assert.Len(t, candles, 3)
	assert.Equal(t, base.Add(time.Hour), fetcher.from)
}

func TestFeed_DropsUnclosedCandles(t *testing.T) {
	t.Parallel()

	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	candles := hourly(base, true, 100, 101)
	open := hourly(base.Add(2*time.Hour), false, 102)
	fetcher := &fakeFetcher{candles: append(candles, open...)}
	db := openStore(t)
	feed := NewFeed(zap.NewNop(), fetcher, nil, db,
		WithFeedClock(func() time.Time { return base.Add(2*time.Hour + 30*time.Minute) }))

	got, err := feed.Candles(context.Background(), "BTCUSDT", market.Interval1h)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 101.0, got[1].Close)
}

func TestFeed_LiveCandle(t *testing.T) {
	t.Parallel()

	live := &fakeLive{candle: market.Candle{Close: 103}, ok: true}
	feed := NewFeed(zap.NewNop(), &fakeFetcher{}, live, openStore(t))

	c, ok := feed.LiveCandle("BTCUSDT", market.Interval1h)
	require.True(t, ok)
	assert.Equal(t, 103.0, c.Close)

	noStream := NewFeed(zap.NewNop(), &fakeFetcher{}, nil, openStore(t))
	_, ok = noStream.LiveCandle("BTCUSDT", market.Interval1h)
	assert.False(t, ok)
}

func TestFeed_HandleClosedPersists(t *testing.T) {
	t.Parallel()

	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	db := openStore(t)
	feed := NewFeed(zap.NewNop(), &fakeFetcher{}, nil, db)

	candle := hourly(base, true, 100)[0]
	feed.HandleClosed(binance.StreamKey{Symbol: "BTCUSDT", Interval: market.Interval1h}, candle)

	got, err := db.Klines("BTCUSDT", market.Interval1h, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 100.0, got[0].Close)
}

type fakeConstraintsFetcher struct {
	constraints map[string]market.SymbolConstraints
	tiers       []market.LeverageTier
	infoCalls   int
	tierCalls   int
}

func (f *fakeConstraintsFetcher) ExchangeConstraints(context.Context) (map[string]market.SymbolConstraints, error) {
	f.infoCalls++
	return f.constraints, nil
}

func (f *fakeConstraintsFetcher) LeverageBrackets(context.Context, string) ([]market.LeverageTier, error) {
	f.tierCalls++
	return f.tiers, nil
}

func TestConstraints_RefreshesOncePerTTL(t *testing.T) {
	t.Parallel()

	fetcher := &fakeConstraintsFetcher{
		constraints: map[string]market.SymbolConstraints{
			"BTCUSDT": {MinQty: 0.001, StepSize: 0.001, QuantityPrecision: 3, MinNotional: 5, PricePrecision: 2},
		},
		tiers: []market.LeverageTier{{MaxNotional: 50000, MMR: 0.004, MaxLeverage: 125}},
	}
	db := openStore(t)
	c := NewConstraints(zap.NewNop(), fetcher, db)

	ctx := context.Background()
	sc, err := c.Constraints(ctx, "BTCUSDT")
	require.NoError(t, err)
	assert.Equal(t, 0.001, sc.MinQty)
	assert.Equal(t, 1, fetcher.infoCalls)

	// Second call within the TTL is served from the cache.
	_, err = c.Constraints(ctx, "BTCUSDT")
	require.NoError(t, err)
	assert.Equal(t, 1, fetcher.infoCalls)

	tiers, err := c.LeverageTiers(ctx, "BTCUSDT")
	require.NoError(t, err)
	require.Len(t, tiers, 1)
	assert.Equal(t, 125.0, tiers[0].MaxLeverage)
	assert.Equal(t, 1, fetcher.tierCalls)

	_, err = c.LeverageTiers(ctx, "BTCUSDT")
	require.NoError(t, err)
	assert.Equal(t, 1, fetcher.tierCalls)
}

func TestConstraints_UnknownSymbol(t *testing.T) {
	t.Parallel()

	fetcher := &fakeConstraintsFetcher{
		constraints: map[string]market.SymbolConstraints{"BTCUSDT": {MinQty: 0.001}},
	}
	c := NewConstraints(zap.NewNop(), fetcher, openStore(t))

	_, err := c.Constraints(context.Background(), "DOGEUSDT")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DOGEUSDT")
}
