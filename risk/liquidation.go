// Package risk converts a risk budget and requested leverage into an
// exchange-valid quantity/leverage/margin tuple, and provides the tiered
// maintenance-margin and liquidation-price math behind it.
package risk

import "github.com/rustyeddy/scriptbot/market"

// MaintenanceMargin computes the maintenance margin for a notional under the
// exchange's tiered bracket schedule. Tiers must be ordered ascending by
// notional ceiling; the last tier's ceiling is treated as unbounded.
func MaintenanceMargin(notional float64, tiers []market.LeverageTier) float64 {
	var (
		mm      float64
		prevMax float64
	)
	for _, tier := range tiers {
		if notional <= tier.MaxNotional {
			return tier.MaintAmount + (notional-prevMax)*tier.MMR
		}
		mm = tier.MaintAmount + (tier.MaxNotional-prevMax)*tier.MMR
		prevMax = tier.MaxNotional
	}
	return mm
}

// LiquidationPrice estimates the liquidation price for a position of the
// given notional opened at markPrice with the given leverage.
func LiquidationPrice(side market.PositionSide, markPrice, leverage, notional float64, tiers []market.LeverageTier) float64 {
	var mmr float64
	if notional > 0 {
		mmr = MaintenanceMargin(notional, tiers) / notional
	}
	if side == market.Long {
		return markPrice * (1 - 1/leverage + mmr)
	}
	return markPrice * (1 + 1/leverage - mmr)
}
