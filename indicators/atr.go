package indicators

import (
	"math"

	"github.com/rustyeddy/scriptbot/market"
)

// ATR computes the average true range with Wilder smoothing. The leading
// position is NaN (true range needs a previous close) and the series starts
// at the first full window, so its length is len(data)-period+1. With fewer
// than period true ranges the last position carries the plain mean of what
// exists.
func ATR(data []market.Candle, period int) []float64 {
	if len(data) < 2 {
		out := make([]float64, len(data))
		for i := range out {
			out[i] = math.NaN()
		}
		return out
	}

	tr := make([]float64, 0, len(data)-1)
	for i := 1; i < len(data); i++ {
		highLow := data[i].High - data[i].Low
		highPrev := math.Abs(data[i].High - data[i-1].Close)
		lowPrev := math.Abs(data[i].Low - data[i-1].Close)
		tr = append(tr, math.Max(highLow, math.Max(highPrev, lowPrev)))
	}

	if len(tr) < period {
		out := make([]float64, len(data))
		for i := 0; i < len(data)-1; i++ {
			out[i] = math.NaN()
		}
		out[len(data)-1] = mean(tr)
		return out
	}

	atr := make([]float64, 0, len(tr)-period+1)
	atr = append(atr, mean(tr[:period]))
	for _, t := range tr[period:] {
		prev := atr[len(atr)-1]
		atr = append(atr, (prev*float64(period-1)+t)/float64(period))
	}

	out := make([]float64, 0, len(atr)+1)
	out = append(out, math.NaN())
	return append(out, atr...)
}

func mean(vs []float64) float64 {
	if len(vs) == 0 {
		return math.NaN()
	}
	sum := 0.0
	for _, v := range vs {
		sum += v
	}
	return sum / float64(len(vs))
}
