package cmd

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rustyeddy/scriptbot/market"
)

type stubMarks struct {
	mark float64
	err  error
}

func (s *stubMarks) AvailableCapital(context.Context) (float64, error) { return 0, nil }

func (s *stubMarks) OpenPositions(context.Context) ([]market.Position, error) { return nil, nil }

func (s *stubMarks) MarkPrice(context.Context, string) (float64, error) { return s.mark, s.err }

type stubRules struct {
	tiers []market.LeverageTier
	err   error
}

func (s *stubRules) Constraints(context.Context, string) (market.SymbolConstraints, error) {
	return market.SymbolConstraints{}, nil
}

func (s *stubRules) LeverageTiers(context.Context, string) ([]market.LeverageTier, error) {
	return s.tiers, s.err
}

func TestEstimateLiquidation(t *testing.T) {
	t.Parallel()

	tiers := []market.LeverageTier{{MaxNotional: 1e9, MMR: 0.004, MaxLeverage: 125}}
	pos := market.Position{
		Symbol:     "BTCUSDT",
		Side:       market.Long,
		EntryPrice: 49000,
		Notional:   5000,
		Leverage:   10,
	}

	// 50000 * (1 - 1/10 + 0.004)
	got := estimateLiquidation(context.Background(), &stubMarks{mark: 50000}, &stubRules{tiers: tiers}, pos)
	assert.InDelta(t, 45200.0, got, 1e-6)

	// Entry price stands in when the mark price fetch fails.
	got = estimateLiquidation(context.Background(), &stubMarks{err: errors.New("down")}, &stubRules{tiers: tiers}, pos)
	assert.InDelta(t, 49000*(1-0.1+0.004), got, 1e-6)

	// No tiers means no estimate.
	got = estimateLiquidation(context.Background(), &stubMarks{mark: 50000}, &stubRules{err: errors.New("down")}, pos)
	assert.Zero(t, got)
}
