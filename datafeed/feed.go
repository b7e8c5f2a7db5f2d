// Package datafeed serves candles to the trading core. Closed candles come
// from the SQLite cache, backfilled from the REST API; the in-progress
// candle comes from the websocket stream.
package datafeed

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/rustyeddy/scriptbot/binance"
	"github.com/rustyeddy/scriptbot/market"
	"github.com/rustyeddy/scriptbot/store"
)

// DefaultDataLimit caps how many candles are cached and served per
// symbol/interval.
const DefaultDataLimit = 5000

// KlineFetcher backfills closed candles. Satisfied by *binance.Client.
type KlineFetcher interface {
	Klines(ctx context.Context, symbol string, interval market.Interval, startTime time.Time, limit int) ([]market.Candle, error)
}

// LiveSource serves the latest streamed candle. Satisfied by *binance.Stream.
type LiveSource interface {
	Latest(symbol string, interval market.Interval) (market.Candle, bool)
}

// Feed implements broker.MarketDataSource over the cache, the REST API and
// the stream.
type Feed struct {
	log     *zap.Logger
	fetcher KlineFetcher
	live    LiveSource
	db      *store.Store

	dataLimit int
	now       func() time.Time
}

// FeedOption configures a Feed.
type FeedOption func(*Feed)

// WithDataLimit overrides the cache depth.
func WithDataLimit(n int) FeedOption {
	return func(f *Feed) {
		if n > 0 {
			f.dataLimit = n
		}
	}
}

// WithFeedClock overrides the wall clock, for tests.
func WithFeedClock(now func() time.Time) FeedOption {
	return func(f *Feed) { f.now = now }
}

// NewFeed wires a feed. live may be nil when no stream is running; then
// LiveCandle always reports no candle.
func NewFeed(log *zap.Logger, fetcher KlineFetcher, live LiveSource, db *store.Store, opts ...FeedOption) *Feed {
	f := &Feed{
		log:       log,
		fetcher:   fetcher,
		live:      live,
		db:        db,
		dataLimit: DefaultDataLimit,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Candles returns up to dataLimit closed candles, refreshing the cache from
// the exchange when it is behind.
func (f *Feed) Candles(ctx context.Context, symbol string, interval market.Interval) ([]market.Candle, error) {
	lastOpen, err := f.db.LastOpenTime(symbol, interval)
	if err != nil {
		return nil, fmt.Errorf("cache last open time: %w", err)
	}

	if f.stale(lastOpen, interval) {
		if err := f.backfill(ctx, symbol, interval, lastOpen); err != nil {
			return nil, err
		}
	}
	return f.db.Klines(symbol, interval, f.dataLimit)
}

// stale reports whether the cache is missing at least one closed candle.
func (f *Feed) stale(lastOpen time.Time, interval market.Interval) bool {
	if lastOpen.IsZero() {
		return true
	}
	// Cached candle N is final once candle N+1 has also closed.
	nextClose := lastOpen.Add(2 * interval.Duration())
	return !f.now().Before(nextClose)
}

func (f *Feed) backfill(ctx context.Context, symbol string, interval market.Interval, lastOpen time.Time) error {
	var from time.Time
	if !lastOpen.IsZero() {
		from = lastOpen.Add(interval.Duration())
	}

	for {
		batch, err := f.fetcher.Klines(ctx, symbol, interval, from, binance.MaxKlineLimit)
		if err != nil {
			return fmt.Errorf("backfill %s %s: %w", symbol, interval, err)
		}

		closed := batch[:0:0]
		for _, c := range batch {
			if c.Closed {
				closed = append(closed, c)
			}
		}
		if len(closed) > 0 {
			if err := f.db.UpsertKlines(symbol, interval, closed); err != nil {
				return fmt.Errorf("backfill %s %s: %w", symbol, interval, err)
			}
		}
		f.log.Debug("backfilled candles",
			zap.String("symbol", symbol),
			zap.String("interval", string(interval)),
			zap.Int("count", len(closed)))

		// A short page means the exchange has nothing newer.
		if len(batch) < binance.MaxKlineLimit || len(closed) == 0 {
			break
		}
		from = closed[len(closed)-1].OpenTime.Add(interval.Duration())
	}
	return f.db.TrimKlines(symbol, interval, f.dataLimit)
}

// LiveCandle returns the streamed in-progress candle.
func (f *Feed) LiveCandle(symbol string, interval market.Interval) (market.Candle, bool) {
	if f.live == nil {
		return market.Candle{}, false
	}
	return f.live.Latest(symbol, interval)
}

// HandleClosed persists a candle the stream marked final. Wire it to
// binance.Stream.OnClose.
func (f *Feed) HandleClosed(key binance.StreamKey, candle market.Candle) {
	if err := f.db.UpsertKlines(key.Symbol, key.Interval, []market.Candle{candle}); err != nil {
		f.log.Error("persist closed candle",
			zap.String("symbol", key.Symbol),
			zap.Error(err))
		return
	}
	if err := f.db.TrimKlines(key.Symbol, key.Interval, f.dataLimit); err != nil {
		f.log.Warn("trim kline cache", zap.Error(err))
	}
}
