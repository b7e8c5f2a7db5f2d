package risk

import (
	"fmt"
	"math"

	"github.com/rustyeddy/scriptbot/market"
)

// Reason classifies why sizing could not produce an order.
type Reason string

const (
	ReasonInvalidPrice      Reason = "invalid_price"
	ReasonNoTiers           Reason = "no_tiers"
	ReasonBelowExchangeMin  Reason = "below_exchange_minimum"
	ReasonBracketClamped    Reason = "bracket_clamped_budget"
	ReasonLeverageTooLow    Reason = "leverage_insufficient"
)

// Rejection is a typed sizing failure. It is an error so callers can
// propagate it verbatim, and carries a Reason for programmatic handling.
type Rejection struct {
	Reason Reason
	Msg    string
}

func (r *Rejection) Error() string {
	return fmt.Sprintf("position size 0 (%s): %s", r.Reason, r.Msg)
}

func rejectf(reason Reason, format string, args ...any) *Rejection {
	return &Rejection{Reason: reason, Msg: fmt.Sprintf(format, args...)}
}

// SizeInputs are the inputs to Size. PositionSize is the requested notional
// (risk amount times requested leverage); RiskAmount is the margin budget.
type SizeInputs struct {
	Symbol       string
	PositionSize float64
	Price        float64
	RiskAmount   float64
	Leverage     float64
	Constraints  market.SymbolConstraints
	Tiers        []market.LeverageTier
}

// SizeResult is a sized order: Quantity is an exact multiple of the symbol's
// step size rounded to its quantity precision, and UsedMargin never exceeds
// the risk amount.
type SizeResult struct {
	Quantity             float64
	AdjustedPositionSize float64
	UsedMargin           float64
	Leverage             float64
}

// Size runs the fixed two-pass refine-and-clamp sizing procedure.
//
// The order of the checks is deliberate and load-bearing: each edge case must
// surface its own rejection reason, so this is not collapsed into a single
// pass or re-optimized globally.
func Size(in SizeInputs) (SizeResult, error) {
	if in.Price <= 0 {
		return SizeResult{}, rejectf(ReasonInvalidPrice, "invalid price %v", in.Price)
	}
	if len(in.Tiers) == 0 {
		return SizeResult{}, rejectf(ReasonNoTiers, "no leverage tiers for %s", in.Symbol)
	}
	c := in.Constraints

	// The exchange minimum is the larger of the minimum quantity and the
	// quantity implied by the minimum notional at the current price.
	effectiveMinQty := math.Max(c.MinQty, c.MinNotional/in.Price)
	minMargin := effectiveMinQty * in.Price / in.Leverage
	if minMargin > in.RiskAmount {
		return SizeResult{}, rejectf(ReasonBelowExchangeMin,
			"insufficient margin (%.2f) to meet minimum quantity (%.*f %s requiring %.2f at %gx leverage)",
			in.RiskAmount, c.QuantityPrecision, effectiveMinQty, in.Symbol, minMargin, in.Leverage)
	}

	globalMaxLeverage := in.Tiers[0].MaxLeverage

	quantity := floorToStep(in.PositionSize/in.Price, c.StepSize)
	if quantity < effectiveMinQty {
		quantity = ceilToStep(effectiveMinQty, c.StepSize)
	}
	quantity = roundTo(quantity, c.QuantityPrecision)
	adjusted := quantity * in.Price

	leverage := 1.0
	if in.RiskAmount > 0 {
		leverage = math.Max(1, math.Ceil(adjusted/in.RiskAmount))
	}
	leverage = math.Min(leverage, math.Min(in.Leverage, globalMaxLeverage))
	usedMargin := adjusted / leverage

	// Clamp to the bracket the adjusted notional actually lands in.
	bracketMax := bracketMaxLeverage(adjusted, in.Tiers)
	if leverage > bracketMax {
		leverage = bracketMax
		usedMargin = adjusted / leverage
	}

	if usedMargin > in.RiskAmount {
		// Second pass: shrink the position to what the budget affords at the
		// clamped leverage.
		maxPositionSize := in.RiskAmount * leverage
		quantity = floorToStep(maxPositionSize/in.Price, c.StepSize)
		if quantity < effectiveMinQty {
			return SizeResult{}, rejectf(ReasonBracketClamped,
				"required margin exceeds risk amount after adjusting for bracket max leverage (%gx)", bracketMax)
		}
		quantity = roundTo(quantity, c.QuantityPrecision)
		adjusted = quantity * in.Price
		usedMargin = adjusted / leverage
	}

	if usedMargin > in.RiskAmount {
		return SizeResult{}, rejectf(ReasonLeverageTooLow,
			"required margin (%.2f) exceeds risk amount (%.2f) for quantity %.*f %s at %gx leverage",
			usedMargin, in.RiskAmount, c.QuantityPrecision, quantity, in.Symbol, leverage)
	}

	return SizeResult{
		Quantity:             quantity,
		AdjustedPositionSize: adjusted,
		UsedMargin:           usedMargin,
		Leverage:             leverage,
	}, nil
}

// bracketMaxLeverage finds the max leverage of the first tier whose ceiling
// covers the notional. A notional beyond every ceiling lands in the last
// tier, whose ceiling is unbounded.
func bracketMaxLeverage(notional float64, tiers []market.LeverageTier) float64 {
	for _, tier := range tiers {
		if notional <= tier.MaxNotional {
			return tier.MaxLeverage
		}
	}
	return tiers[len(tiers)-1].MaxLeverage
}

func floorToStep(v, step float64) float64 {
	if step <= 0 {
		return v
	}
	return math.Floor(v/step) * step
}

func ceilToStep(v, step float64) float64 {
	if step <= 0 {
		return v
	}
	return math.Ceil(v/step) * step
}

func roundTo(v float64, precision int) float64 {
	p := math.Pow(10, float64(precision))
	return math.Round(v*p) / p
}
