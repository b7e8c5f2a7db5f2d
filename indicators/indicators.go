// Package indicators provides the technical-analysis functions exposed to
// strategy scripts. All functions are pure: they take a candle slice and
// numeric parameters and return value series or structured points.
//
// Warmup positions are NaN rather than absent, so every returned series is
// index-aligned with its input.
package indicators

import (
	"math"

	"github.com/rustyeddy/scriptbot/market"
)

// Default periods for indicators whose script-side parameters are optional.
const (
	DefaultRSIPeriod       = 14
	DefaultAvgVolumePeriod = 14
	DefaultATRPeriod       = 14
	MACDFast               = 12
	MACDSlow               = 26
	MACDSignal             = 9
)

// SMA returns the running mean of closes. Positions before a full window
// average whatever is available, matching the charting convention of a
// leading partial window.
func SMA(data []market.Candle, period int) []float64 {
	out := make([]float64, len(data))
	for i := range data {
		start := i - period + 1
		if start < 0 {
			start = 0
		}
		sum := 0.0
		for j := start; j <= i; j++ {
			sum += data[j].Close
		}
		out[i] = sum / float64(i-start+1)
	}
	return out
}

// EMAFrom computes an exponential moving average over an arbitrary series,
// seeded with the first element.
func EMAFrom(src []float64, length int) []float64 {
	k := 2 / (float64(length) + 1)
	out := make([]float64, len(src))
	for i, v := range src {
		if i == 0 {
			out[i] = v
			continue
		}
		out[i] = v*k + out[i-1]*(1-k)
	}
	return out
}

// EMA computes the exponential moving average of closes.
func EMA(data []market.Candle, length int) []float64 {
	return EMAFrom(market.Closes(data), length)
}

// DEMA computes the double exponential moving average of a series.
func DEMA(src []float64, length int) []float64 {
	ma1 := EMAFrom(src, length)
	ma2 := EMAFrom(ma1, length)
	out := make([]float64, len(src))
	for i := range src {
		out[i] = 2*ma1[i] - ma2[i]
	}
	return out
}

// RSI computes Wilder's relative strength index. The first period positions
// are NaN.
func RSI(data []market.Candle, period int) []float64 {
	n := len(data)
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	if n < period+1 {
		return out
	}

	var gainSum, lossSum float64
	for i := 1; i <= period; i++ {
		delta := data[i].Close - data[i-1].Close
		if delta > 0 {
			gainSum += delta
		} else {
			lossSum += -delta
		}
	}
	avgGain := gainSum / float64(period)
	avgLoss := lossSum / float64(period)
	out[period] = rsiValue(avgGain, avgLoss)

	for i := period + 1; i < n; i++ {
		delta := data[i].Close - data[i-1].Close
		var gain, loss float64
		if delta > 0 {
			gain = delta
		}
		if delta < 0 {
			loss = -delta
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
		out[i] = rsiValue(avgGain, avgLoss)
	}
	return out
}

func rsiValue(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100
	}
	return 100 - 100/(1+avgGain/avgLoss)
}

// MACD returns the MACD line (fast EMA minus slow EMA of closes) and its
// signal line.
func MACD(data []market.Candle) (macd, signal []float64) {
	closes := market.Closes(data)
	fast := EMAFrom(closes, MACDFast)
	slow := EMAFrom(closes, MACDSlow)
	macd = make([]float64, len(closes))
	for i := range closes {
		macd[i] = fast[i] - slow[i]
	}
	signal = EMAFrom(macd, MACDSignal)
	return macd, signal
}

// AverageVolume returns the mean volume over the trailing default window, or
// NaN when there is not enough data.
func AverageVolume(data []market.Candle) float64 {
	if len(data) < DefaultAvgVolumePeriod {
		return math.NaN()
	}
	sum := 0.0
	for _, c := range data[len(data)-DefaultAvgVolumePeriod:] {
		sum += c.Volume
	}
	return sum / float64(DefaultAvgVolumePeriod)
}

// OBV computes on-balance volume, starting at zero.
func OBV(data []market.Candle) []float64 {
	if len(data) == 0 {
		return nil
	}
	out := make([]float64, len(data))
	for i := 1; i < len(data); i++ {
		switch {
		case data[i].Close > data[i-1].Close:
			out[i] = out[i-1] + data[i].Volume
		case data[i].Close < data[i-1].Close:
			out[i] = out[i-1] - data[i].Volume
		default:
			out[i] = out[i-1]
		}
	}
	return out
}
