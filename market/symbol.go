package market

// SymbolConstraints are the exchange-imposed quantization rules for a symbol.
// Every submitted quantity must be a multiple of StepSize and at least MinQty,
// and the order notional (quantity * price) must be at least MinNotional.
type SymbolConstraints struct {
	MinQty            float64
	StepSize          float64
	QuantityPrecision int
	MinNotional       float64
	PricePrecision    int
}

// LeverageTier is one exchange leverage bracket: a notional range with its
// maintenance-margin parameters and the maximum leverage allowed inside it.
// Tiers are ordered ascending by notional ceiling; the last tier's ceiling is
// treated as unbounded.
type LeverageTier struct {
	NotionalFloor float64
	MaxNotional   float64
	MaintAmount   float64
	MMR           float64
	MaxLeverage   float64
}

// PositionSide is the hedge-mode side of a position. LONG and SHORT are
// tracked as independent positions on the same symbol.
type PositionSide string

const (
	Long  PositionSide = "LONG"
	Short PositionSide = "SHORT"
)

// Opposite returns the other hedge-mode side.
func (s PositionSide) Opposite() PositionSide {
	if s == Long {
		return Short
	}
	return Long
}

// Position is an open futures position as reported by the exchange.
// Quantity and Notional are absolute; the direction lives in Side.
type Position struct {
	Symbol           string
	Side             PositionSide
	Quantity         float64
	EntryPrice       float64
	Notional         float64
	UnrealizedPnL    float64
	LiquidationPrice float64
	Leverage         float64
	MarginType       string
	IsolatedMargin   float64
}

// Open reports whether the position has any size.
func (p Position) Open() bool {
	return p.Quantity != 0
}
