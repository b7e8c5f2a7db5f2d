package market

import "time"

// Candle represents one OHLCV bar for a symbol/interval.
//
// OpenTime is the bar's open; the bar covers [OpenTime, OpenTime+interval).
// Closed reports whether the exchange has finalized the bar. A live candle
// streamed over websocket has Closed == false until the interval rolls over.
type Candle struct {
	OpenTime time.Time
	Open     float64
	High     float64
	Low      float64
	Close    float64
	Volume   float64
	Closed   bool
}

// CloseTime returns the instant the bar closes for the given interval.
func (c Candle) CloseTime(iv Interval) time.Time {
	return c.OpenTime.Add(iv.Duration())
}

// Closes extracts the close series from a candle slice.
func Closes(candles []Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}
