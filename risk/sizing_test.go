package risk

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/scriptbot/market"
)

var btcConstraints = market.SymbolConstraints{
	MinQty:            0.001,
	StepSize:          0.001,
	QuantityPrecision: 3,
	MinNotional:       5,
	PricePrecision:    2,
}

func singleTier(maxLev float64) []market.LeverageTier {
	return []market.LeverageTier{
		{NotionalFloor: 0, MaxNotional: 1e9, MaintAmount: 0, MMR: 0.004, MaxLeverage: maxLev},
	}
}

func TestSize_Success(t *testing.T) {
	t.Parallel()

	res, err := Size(SizeInputs{
		Symbol:       "BTCUSDT",
		PositionSize: 200,
		Price:        50000,
		RiskAmount:   20,
		Leverage:     10,
		Constraints:  btcConstraints,
		Tiers:        singleTier(50),
	})
	require.NoError(t, err)

	assert.InDelta(t, 0.004, res.Quantity, 1e-12)
	assert.InDelta(t, 200.0, res.AdjustedPositionSize, 1e-9)
	assert.InDelta(t, 20.0, res.UsedMargin, 1e-9)
	assert.InDelta(t, 10.0, res.Leverage, 1e-12)
}

func TestSize_QuantityIsStepMultiple(t *testing.T) {
	t.Parallel()

	res, err := Size(SizeInputs{
		Symbol:       "BTCUSDT",
		PositionSize: 173.42,
		Price:        43211.55,
		RiskAmount:   50,
		Leverage:     5,
		Constraints:  btcConstraints,
		Tiers:        singleTier(50),
	})
	require.NoError(t, err)

	steps := res.Quantity / btcConstraints.StepSize
	assert.InDelta(t, math.Round(steps), steps, 1e-9, "quantity %v is not a step multiple", res.Quantity)
	assert.LessOrEqual(t, res.UsedMargin, 50.0+1e-9)
}

func TestSize_RejectInvalidPrice(t *testing.T) {
	t.Parallel()

	// Price is checked before tiers, so a zero price wins even with no tiers.
	_, err := Size(SizeInputs{Symbol: "BTCUSDT", Price: 0})
	var rej *Rejection
	require.ErrorAs(t, err, &rej)
	assert.Equal(t, ReasonInvalidPrice, rej.Reason)
}

func TestSize_RejectNoTiers(t *testing.T) {
	t.Parallel()

	_, err := Size(SizeInputs{Symbol: "BTCUSDT", Price: 50000, RiskAmount: 20, Leverage: 10, Constraints: btcConstraints})
	var rej *Rejection
	require.ErrorAs(t, err, &rej)
	assert.Equal(t, ReasonNoTiers, rej.Reason)
}

func TestSize_RejectBudgetBelowExchangeMinimum(t *testing.T) {
	t.Parallel()

	// minMargin = 0.001 * 50000 / 10 = 5 > 0.02.
	_, err := Size(SizeInputs{
		Symbol:       "BTCUSDT",
		PositionSize: 0.2,
		Price:        50000,
		RiskAmount:   0.02,
		Leverage:     10,
		Constraints:  btcConstraints,
		Tiers:        singleTier(50),
	})
	var rej *Rejection
	require.ErrorAs(t, err, &rej)
	assert.Equal(t, ReasonBelowExchangeMin, rej.Reason)
}

func TestSize_BracketClampShrinksPosition(t *testing.T) {
	t.Parallel()

	// 200 notional lands in the second bracket, which only allows 5x; the
	// position must shrink to the budget at 5x.
	tiers := []market.LeverageTier{
		{MaxNotional: 100, MMR: 0.004, MaxLeverage: 50},
		{NotionalFloor: 100, MaxNotional: 1e9, MaintAmount: 0.35, MMR: 0.005, MaxLeverage: 5},
	}

	res, err := Size(SizeInputs{
		Symbol:       "BTCUSDT",
		PositionSize: 200,
		Price:        50000,
		RiskAmount:   20,
		Leverage:     10,
		Constraints:  btcConstraints,
		Tiers:        tiers,
	})
	require.NoError(t, err)

	assert.InDelta(t, 0.002, res.Quantity, 1e-12)
	assert.InDelta(t, 100.0, res.AdjustedPositionSize, 1e-9)
	assert.InDelta(t, 20.0, res.UsedMargin, 1e-9)
	assert.InDelta(t, 5.0, res.Leverage, 1e-12)
}

func TestSize_RejectAfterBracketClamp(t *testing.T) {
	t.Parallel()

	// effectiveMinQty = 5/4000 = 0.00125, which is not a step multiple. The
	// shrink pass floors the affordable quantity to 0.001, below the minimum.
	_, err := Size(SizeInputs{
		Symbol:       "BTCUSDT",
		PositionSize: 1000,
		Price:        4000,
		RiskAmount:   3,
		Leverage:     2,
		Constraints:  btcConstraints,
		Tiers:        singleTier(50),
	})
	var rej *Rejection
	require.ErrorAs(t, err, &rej)
	assert.Equal(t, ReasonBracketClamped, rej.Reason)
}

func TestSize_RejectWhenRoundingOvershootsBudget(t *testing.T) {
	t.Parallel()

	// The shrink pass floors to 2.5 units, but the quantity precision is
	// whole units; rounding up to 3 pushes the margin back over the budget.
	constraints := market.SymbolConstraints{
		MinQty:            0.25,
		StepSize:          0.25,
		QuantityPrecision: 0,
		MinNotional:       1,
		PricePrecision:    2,
	}

	_, err := Size(SizeInputs{
		Symbol:       "XRPUSDT",
		PositionSize: 1000,
		Price:        10,
		RiskAmount:   12.6,
		Leverage:     2,
		Constraints:  constraints,
		Tiers:        singleTier(50),
	})
	var rej *Rejection
	require.ErrorAs(t, err, &rej)
	assert.Equal(t, ReasonLeverageTooLow, rej.Reason)
}

func TestSize_BumpsToEffectiveMinimum(t *testing.T) {
	t.Parallel()

	// Requested notional below the exchange minimum rounds up to minQty.
	res, err := Size(SizeInputs{
		Symbol:       "BTCUSDT",
		PositionSize: 10,
		Price:        50000,
		RiskAmount:   30,
		Leverage:     10,
		Constraints:  btcConstraints,
		Tiers:        singleTier(50),
	})
	require.NoError(t, err)
	assert.InDelta(t, 0.001, res.Quantity, 1e-12)
	assert.InDelta(t, 50.0, res.AdjustedPositionSize, 1e-9)
}
