package script

import (
	"fmt"
	"math"

	"github.com/rustyeddy/scriptbot/indicators"
)

// registerBuiltins installs the allow-listed function set: a handful of
// numeric helpers plus the indicator library. Heavy indicator calls run
// through the pool so a burst of scripts cannot monopolize the CPU.
func registerBuiltins(env *Env, pool *indicators.Pool) {
	env.SetFunc(Func{Name: "abs", MinArgs: 1, MaxArgs: 1, Call: func(args []Value) (Value, error) {
		n, err := asNumber(args[0], 0, "abs argument")
		if err != nil {
			return nil, err
		}
		return math.Abs(n), nil
	}})
	env.SetFunc(Func{Name: "min", MinArgs: 2, MaxArgs: 2, Call: numericPair("min", math.Min)})
	env.SetFunc(Func{Name: "max", MinArgs: 2, MaxArgs: 2, Call: numericPair("max", math.Max)})
	env.SetFunc(Func{Name: "len", MinArgs: 1, MaxArgs: 1, Call: builtinLen})
	env.SetFunc(Func{Name: "isnan", MinArgs: 1, MaxArgs: 1, Call: func(args []Value) (Value, error) {
		n, err := asNumber(args[0], 0, "isnan argument")
		if err != nil {
			return nil, err
		}
		return math.IsNaN(n), nil
	}})

	reg := func(name string, min, max int, call func(args []Value) (Value, error)) {
		env.SetFunc(Func{Name: name, MinArgs: min, MaxArgs: max, Call: func(args []Value) (v Value, err error) {
			pool.Do(func() { v, err = call(args) })
			return v, err
		}})
	}

	reg("calculate_sma", 2, 2, func(args []Value) (Value, error) {
		data, err := asCandles(args[0], 0, "calculate_sma data")
		if err != nil {
			return nil, err
		}
		period, err := asInt(args[1], 0, "calculate_sma period")
		if err != nil {
			return nil, err
		}
		return Series(indicators.SMA(data, period)), nil
	})
	reg("calculate_ema", 2, 2, func(args []Value) (Value, error) {
		data, err := asCandles(args[0], 0, "calculate_ema data")
		if err != nil {
			return nil, err
		}
		length, err := asInt(args[1], 0, "calculate_ema length")
		if err != nil {
			return nil, err
		}
		return Series(indicators.EMA(data, length)), nil
	})
	reg("calculate_ema_internal", 2, 2, func(args []Value) (Value, error) {
		src, err := asSeries(args[0], 0, "calculate_ema_internal source")
		if err != nil {
			return nil, err
		}
		length, err := asInt(args[1], 0, "calculate_ema_internal length")
		if err != nil {
			return nil, err
		}
		return Series(indicators.EMAFrom(src, length)), nil
	})
	reg("calculate_dema", 2, 2, func(args []Value) (Value, error) {
		src, err := asSeries(args[0], 0, "calculate_dema source")
		if err != nil {
			return nil, err
		}
		length, err := asInt(args[1], 0, "calculate_dema length")
		if err != nil {
			return nil, err
		}
		return Series(indicators.DEMA(src, length)), nil
	})
	reg("calculate_rsi", 1, 2, func(args []Value) (Value, error) {
		data, err := asCandles(args[0], 0, "calculate_rsi data")
		if err != nil {
			return nil, err
		}
		period := indicators.DefaultRSIPeriod
		if len(args) == 2 {
			if period, err = asInt(args[1], 0, "calculate_rsi period"); err != nil {
				return nil, err
			}
		}
		return Series(indicators.RSI(data, period)), nil
	})
	reg("calculate_macd", 1, 1, func(args []Value) (Value, error) {
		data, err := asCandles(args[0], 0, "calculate_macd data")
		if err != nil {
			return nil, err
		}
		macd, signal := indicators.MACD(data)
		return List{Series(macd), Series(signal)}, nil
	})
	reg("calculate_atr", 1, 2, func(args []Value) (Value, error) {
		data, err := asCandles(args[0], 0, "calculate_atr data")
		if err != nil {
			return nil, err
		}
		period := indicators.DefaultATRPeriod
		if len(args) == 2 {
			if period, err = asInt(args[1], 0, "calculate_atr period"); err != nil {
				return nil, err
			}
		}
		return Series(indicators.ATR(data, period)), nil
	})
	reg("calculate_obv", 1, 1, func(args []Value) (Value, error) {
		data, err := asCandles(args[0], 0, "calculate_obv data")
		if err != nil {
			return nil, err
		}
		return Series(indicators.OBV(data)), nil
	})
	reg("calculate_average_volume", 1, 1, func(args []Value) (Value, error) {
		data, err := asCandles(args[0], 0, "calculate_average_volume data")
		if err != nil {
			return nil, err
		}
		return indicators.AverageVolume(data), nil
	})
	reg("calculate_stochastic", 1, 3, func(args []Value) (Value, error) {
		data, err := asCandles(args[0], 0, "calculate_stochastic data")
		if err != nil {
			return nil, err
		}
		kPeriod, dPeriod := 14, 3
		if len(args) >= 2 {
			if kPeriod, err = asInt(args[1], 0, "calculate_stochastic k period"); err != nil {
				return nil, err
			}
		}
		if len(args) == 3 {
			if dPeriod, err = asInt(args[2], 0, "calculate_stochastic d period"); err != nil {
				return nil, err
			}
		}
		k, d := indicators.Stochastic(data, kPeriod, dPeriod)
		return List{Series(k), Series(d)}, nil
	})
	reg("calculate_zigzag", 1, 3, func(args []Value) (Value, error) {
		data, err := asCandles(args[0], 0, "calculate_zigzag data")
		if err != nil {
			return nil, err
		}
		threshold, factor := 0.0, 2.2
		if len(args) >= 2 {
			if threshold, err = asNumber(args[1], 0, "calculate_zigzag threshold"); err != nil {
				return nil, err
			}
		}
		if len(args) == 3 {
			if factor, err = asNumber(args[2], 0, "calculate_zigzag factor"); err != nil {
				return nil, err
			}
		}
		points := indicators.ZigZag(data, threshold, factor)
		return swingPointsValue(indicators.ClassifySwingPoints(points, data)), nil
	})
	reg("find_extremum_in_window", 5, 5, func(args []Value) (Value, error) {
		rsi, err := asSeries(args[0], 0, "find_extremum_in_window rsi")
		if err != nil {
			return nil, err
		}
		index, err := asInt(args[1], 0, "find_extremum_in_window index")
		if err != nil {
			return nil, err
		}
		left, err := asInt(args[2], 0, "find_extremum_in_window left")
		if err != nil {
			return nil, err
		}
		right, err := asInt(args[3], 0, "find_extremum_in_window right")
		if err != nil {
			return nil, err
		}
		isMin, err := asBool(args[4], 0, "find_extremum_in_window is_min")
		if err != nil {
			return nil, err
		}
		ext := indicators.FindExtremumInWindow(rsi, index, left, right, isMin)
		return Object{"value": ext.Value, "index": float64(ext.Index)}, nil
	})
	reg("detect_divergences", 3, 5, func(args []Value) (Value, error) {
		rsi, err := asSeries(args[0], 0, "detect_divergences rsi")
		if err != nil {
			return nil, err
		}
		points, err := swingPointsFromValue(args[1])
		if err != nil {
			return nil, err
		}
		data, err := asCandles(args[2], 0, "detect_divergences data")
		if err != nil {
			return nil, err
		}
		left, right := 3, 3
		if len(args) >= 4 {
			if left, err = asInt(args[3], 0, "detect_divergences left"); err != nil {
				return nil, err
			}
		}
		if len(args) == 5 {
			if right, err = asInt(args[4], 0, "detect_divergences right"); err != nil {
				return nil, err
			}
		}
		divs := indicators.DetectDivergences(rsi, points, data, left, right)
		out := make(List, len(divs))
		for i, d := range divs {
			out[i] = Object{
				"type":        d.Type,
				"start_index": float64(d.StartIndex),
				"end_index":   float64(d.EndIndex),
				"start_price": d.StartPrice,
				"end_price":   d.EndPrice,
				"start_rsi":   d.StartRSI,
				"end_rsi":     d.EndRSI,
			}
		}
		return out, nil
	})
}

func numericPair(name string, fn func(a, b float64) float64) func(args []Value) (Value, error) {
	return func(args []Value) (Value, error) {
		a, err := asNumber(args[0], 0, name+" first argument")
		if err != nil {
			return nil, err
		}
		b, err := asNumber(args[1], 0, name+" second argument")
		if err != nil {
			return nil, err
		}
		return fn(a, b), nil
	}
}

func builtinLen(args []Value) (Value, error) {
	switch v := args[0].(type) {
	case Series:
		return float64(len(v)), nil
	case List:
		return float64(len(v)), nil
	case Object:
		return float64(len(v)), nil
	case string:
		return float64(len(v)), nil
	default:
		if c, err := asCandles(v, 0, "len argument"); err == nil {
			return float64(len(c)), nil
		}
		return nil, fmt.Errorf("len argument must be a sequence, got %s", kindName(args[0]))
	}
}

func swingPointsValue(points []indicators.SwingPoint) List {
	out := make(List, len(points))
	for i, p := range points {
		out[i] = Object{
			"index": float64(p.Index),
			"value": p.Value,
			"type":  p.Type,
			"label": p.Label,
		}
	}
	return out
}

func swingPointsFromValue(v Value) ([]indicators.SwingPoint, error) {
	list, ok := v.(List)
	if !ok {
		return nil, fmt.Errorf("swing points must be a list, got %s", kindName(v))
	}
	points := make([]indicators.SwingPoint, len(list))
	for i, el := range list {
		obj, ok := el.(Object)
		if !ok {
			return nil, fmt.Errorf("swing point %d must be an object, got %s", i, kindName(el))
		}
		idx, _ := obj["index"].(float64)
		value, _ := obj["value"].(float64)
		typ, _ := obj["type"].(string)
		label, _ := obj["label"].(string)
		points[i] = indicators.SwingPoint{Index: int(idx), Value: value, Type: typ, Label: label}
	}
	return points, nil
}
