package indicators

import (
	"math"

	"github.com/rustyeddy/scriptbot/market"
)

// Stochastic computes the %K and %D oscillator lines. %K positions before a
// full window are NaN; %D is the running mean over the non-NaN %K values, so
// it is shorter than %K by the warmup length.
func Stochastic(data []market.Candle, kPeriod, dPeriod int) (k, d []float64) {
	k = make([]float64, len(data))
	for i := range data {
		if i < kPeriod-1 {
			k[i] = math.NaN()
			continue
		}
		lowest := data[i-kPeriod+1].Low
		highest := data[i-kPeriod+1].High
		for j := i - kPeriod + 2; j <= i; j++ {
			lowest = math.Min(lowest, data[j].Low)
			highest = math.Max(highest, data[j].High)
		}
		if highest == lowest {
			k[i] = 50.0
			continue
		}
		k[i] = 100 * (data[i].Close - lowest) / (highest - lowest)
	}

	var valid []float64
	for _, v := range k {
		if !math.IsNaN(v) {
			valid = append(valid, v)
		}
	}
	d = make([]float64, len(valid))
	for i := range valid {
		start := i - dPeriod + 1
		if start < 0 {
			start = 0
		}
		sum := 0.0
		for j := start; j <= i; j++ {
			sum += valid[j]
		}
		d[i] = sum / float64(i-start+1)
	}
	return k, d
}
