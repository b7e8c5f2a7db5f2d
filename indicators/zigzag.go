package indicators

import (
	"math"
	"sort"

	"github.com/rustyeddy/scriptbot/market"
)

// Swing point types.
const (
	SwingPeak = "peak"
	SwingLow  = "low"
)

// SwingPoint is a zigzag pivot: an index into the candle series, the close
// at that index, whether it is a peak or a low, and (after classification) a
// HH/HL/LH/LL label.
type SwingPoint struct {
	Index int
	Value float64
	Type  string
	Label string
}

// DynamicThreshold derives a zigzag reversal threshold from the mean absolute
// percent change of the series, scaled by factor. Falls back to 0.5% when
// the series is too short.
func DynamicThreshold(closes []float64, factor float64) float64 {
	if len(closes) < 2 {
		return 0.005
	}
	sum := 0.0
	for i := 1; i < len(closes); i++ {
		sum += math.Abs((closes[i]-closes[i-1])/closes[i-1]) * 100
	}
	avg := sum / float64(len(closes)-1)
	return avg * factor / 100
}

// ZigZag finds alternating swing highs and lows in the close series. A move
// against the current direction larger than the threshold (fraction, not
// percent) confirms the previous extreme and flips direction. A threshold of
// 0 means "derive dynamically with the given factor".
func ZigZag(data []market.Candle, threshold, factor float64) []SwingPoint {
	closes := market.Closes(data)
	if threshold == 0 {
		threshold = DynamicThreshold(closes, factor)
	}
	if len(closes) < 2 {
		return nil
	}

	var points []SwingPoint
	lastIndex := 0
	lastValue := closes[0]
	direction := -1.0
	initialType := SwingPeak
	if closes[1] > closes[0] {
		direction = 1
		initialType = SwingLow
	}
	points = append(points, SwingPoint{Index: 0, Value: lastValue, Type: initialType})

	for i := 1; i < len(closes); i++ {
		change := (closes[i] - lastValue) / lastValue
		switch {
		case direction*change < -threshold:
			extType := SwingLow
			if direction == 1 {
				extType = SwingPeak
			}
			points = append(points, SwingPoint{Index: lastIndex, Value: lastValue, Type: extType})
			direction = -direction
			lastIndex = i
			lastValue = closes[i]
		case direction*(closes[i]-lastValue) > 0:
			lastIndex = i
			lastValue = closes[i]
		}
	}

	if lastIndex > points[len(points)-1].Index {
		lastType := SwingLow
		if direction == 1 {
			lastType = SwingPeak
		}
		points = append(points, SwingPoint{Index: lastIndex, Value: lastValue, Type: lastType})
	}
	return points
}

// ClassifySwingPoints labels each pivot relative to the previous pivot of
// the same type: HH/LH for peaks, HL/LL for lows; the first of each type is
// H or L. The result is sorted by index.
func ClassifySwingPoints(points []SwingPoint, data []market.Candle) []SwingPoint {
	var peaks, lows []SwingPoint
	for _, p := range points {
		if p.Type == SwingPeak {
			peaks = append(peaks, p)
		} else {
			lows = append(lows, p)
		}
	}

	classified := make([]SwingPoint, 0, len(points))
	for i, p := range peaks {
		p.Label = "H"
		if i > 0 {
			if data[p.Index].Close > data[peaks[i-1].Index].Close {
				p.Label = "HH"
			} else {
				p.Label = "LH"
			}
		}
		classified = append(classified, p)
	}
	for i, p := range lows {
		p.Label = "L"
		if i > 0 {
			if data[p.Index].Close > data[lows[i-1].Index].Close {
				p.Label = "HL"
			} else {
				p.Label = "LL"
			}
		}
		classified = append(classified, p)
	}

	sort.SliceStable(classified, func(i, j int) bool {
		return classified[i].Index < classified[j].Index
	})
	return classified
}

// Extremum is the result of a windowed min/max search over an RSI series.
// Value is NaN when the anchor position itself has no RSI yet.
type Extremum struct {
	Value float64
	Index int
}

// FindExtremumInWindow scans [index-left, index+right] of the RSI series for
// its minimum (isMin) or maximum. NaN positions are skipped.
func FindExtremumInWindow(rsi []float64, index, left, right int, isMin bool) Extremum {
	start := index - left
	if start < 0 {
		start = 0
	}
	end := index + right
	if end > len(rsi)-1 {
		end = len(rsi) - 1
	}

	ext := Extremum{Value: rsi[index], Index: index}
	if math.IsNaN(ext.Value) {
		return Extremum{Value: math.NaN(), Index: index}
	}
	for i := start; i <= end; i++ {
		if math.IsNaN(rsi[i]) {
			continue
		}
		if (isMin && rsi[i] < ext.Value) || (!isMin && rsi[i] > ext.Value) {
			ext.Value = rsi[i]
			ext.Index = i
		}
	}
	return ext
}

// Divergence types.
const (
	DivBullish       = "bullish"
	DivHiddenBullish = "hidden_bullish"
	DivBearish       = "bearish"
	DivHiddenBearish = "hidden_bearish"
)

// Divergence is a price/RSI divergence between two consecutive swing points
// of the same type.
type Divergence struct {
	Type       string
	StartIndex int
	EndIndex   int
	StartPrice float64
	EndPrice   float64
	StartRSI   float64
	EndRSI     float64
}

// DetectDivergences compares consecutive swing lows and peaks against the
// RSI extremes in a small window around each pivot.
func DetectDivergences(rsi []float64, points []SwingPoint, data []market.Candle, left, right int) []Divergence {
	var divs []Divergence
	var peaks, lows []SwingPoint
	for _, p := range points {
		if p.Type == SwingPeak {
			peaks = append(peaks, p)
		} else {
			lows = append(lows, p)
		}
	}

	for i := 1; i < len(lows); i++ {
		prevPrice := data[lows[i-1].Index].Close
		currPrice := data[lows[i].Index].Close
		prev := FindExtremumInWindow(rsi, lows[i-1].Index, left, right, true)
		curr := FindExtremumInWindow(rsi, lows[i].Index, left, right, true)
		if math.IsNaN(prev.Value) || math.IsNaN(curr.Value) {
			continue
		}
		if currPrice < prevPrice && curr.Value > prev.Value {
			divs = append(divs, divergence(DivBullish, prev, curr, prevPrice, currPrice))
		}
		if currPrice > prevPrice && curr.Value < prev.Value {
			divs = append(divs, divergence(DivHiddenBullish, prev, curr, prevPrice, currPrice))
		}
	}

	for i := 1; i < len(peaks); i++ {
		prevPrice := data[peaks[i-1].Index].Close
		currPrice := data[peaks[i].Index].Close
		prev := FindExtremumInWindow(rsi, peaks[i-1].Index, left, right, false)
		curr := FindExtremumInWindow(rsi, peaks[i].Index, left, right, false)
		if math.IsNaN(prev.Value) || math.IsNaN(curr.Value) {
			continue
		}
		if currPrice > prevPrice && curr.Value < prev.Value {
			divs = append(divs, divergence(DivBearish, prev, curr, prevPrice, currPrice))
		}
		if currPrice < prevPrice && curr.Value > prev.Value {
			divs = append(divs, divergence(DivHiddenBearish, prev, curr, prevPrice, currPrice))
		}
	}
	return divs
}

func divergence(kind string, prev, curr Extremum, prevPrice, currPrice float64) Divergence {
	return Divergence{
		Type:       kind,
		StartIndex: prev.Index,
		EndIndex:   curr.Index,
		StartPrice: prevPrice,
		EndPrice:   currPrice,
		StartRSI:   prev.Value,
		EndRSI:     curr.Value,
	}
}
