package datafeed

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/rustyeddy/scriptbot/market"
	"github.com/rustyeddy/scriptbot/store"
)

// DefaultConstraintsTTL is how long cached exchange rules stay valid.
// Filters and brackets change rarely, so a daily refresh is enough.
const DefaultConstraintsTTL = 24 * time.Hour

// ConstraintsFetcher pulls exchange rules. Satisfied by *binance.Client.
type ConstraintsFetcher interface {
	ExchangeConstraints(ctx context.Context) (map[string]market.SymbolConstraints, error)
	LeverageBrackets(ctx context.Context, symbol string) ([]market.LeverageTier, error)
}

// Constraints implements broker.ConstraintsSource with a SQLite-backed
// daily-refresh cache in front of the exchange.
type Constraints struct {
	log     *zap.Logger
	fetcher ConstraintsFetcher
	db      *store.Store
	ttl     time.Duration
	now     func() time.Time
}

// NewConstraints wires the cache.
func NewConstraints(log *zap.Logger, fetcher ConstraintsFetcher, db *store.Store) *Constraints {
	return &Constraints{
		log:     log,
		fetcher: fetcher,
		db:      db,
		ttl:     DefaultConstraintsTTL,
		now:     time.Now,
	}
}

// Constraints returns quantization rules for a symbol, refreshing the whole
// table at most once per TTL.
func (c *Constraints) Constraints(ctx context.Context, symbol string) (market.SymbolConstraints, error) {
	updated, err := c.db.ConstraintsUpdatedAt()
	if err != nil {
		return market.SymbolConstraints{}, fmt.Errorf("constraints cache age: %w", err)
	}
	if c.now().Sub(updated) > c.ttl {
		all, err := c.fetcher.ExchangeConstraints(ctx)
		if err != nil {
			// A stale cache entry beats failing the run outright.
			c.log.Warn("constraints refresh failed, using cache", zap.Error(err))
		} else if err := c.db.SaveConstraints(all, c.now()); err != nil {
			return market.SymbolConstraints{}, fmt.Errorf("save constraints: %w", err)
		}
	}

	sc, ok, err := c.db.Constraints(symbol)
	if err != nil {
		return market.SymbolConstraints{}, fmt.Errorf("constraints for %s: %w", symbol, err)
	}
	if !ok {
		return market.SymbolConstraints{}, fmt.Errorf("no constraints cached for %s", symbol)
	}
	return sc, nil
}

// LeverageTiers returns the symbol's brackets, refreshing per symbol at
// most once per TTL. An empty result is an error.
func (c *Constraints) LeverageTiers(ctx context.Context, symbol string) ([]market.LeverageTier, error) {
	updated, err := c.db.TiersUpdatedAt(symbol)
	if err != nil {
		return nil, fmt.Errorf("tiers cache age for %s: %w", symbol, err)
	}
	if c.now().Sub(updated) > c.ttl {
		tiers, err := c.fetcher.LeverageBrackets(ctx, symbol)
		if err != nil {
			c.log.Warn("leverage bracket refresh failed, using cache",
				zap.String("symbol", symbol), zap.Error(err))
		} else if err := c.db.SaveLeverageTiers(symbol, tiers, c.now()); err != nil {
			return nil, fmt.Errorf("save tiers for %s: %w", symbol, err)
		}
	}

	tiers, err := c.db.LeverageTiers(symbol)
	if err != nil {
		return nil, fmt.Errorf("tiers for %s: %w", symbol, err)
	}
	if len(tiers) == 0 {
		return nil, fmt.Errorf("no leverage tiers cached for %s", symbol)
	}
	return tiers, nil
}
