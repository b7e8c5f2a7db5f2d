package script

import (
	"fmt"
	"math"

	"github.com/rustyeddy/scriptbot/market"
)

// Value is any value a script expression can produce: float64, bool,
// string, Series, []market.Candle, Object or List.
type Value = any

// Series is a numeric sequence, typically an indicator output. Gaps are
// represented as NaN.
type Series []float64

// Object is a string-keyed record, used for candles, positions and swing
// points exposed to scripts.
type Object map[string]Value

// List is an ordered heterogeneous sequence.
type List []Value

// Func is an allow-listed callable.
type Func struct {
	Name    string
	MinArgs int
	MaxArgs int
	Call    func(args []Value) (Value, error)
}

// Env is the complete set of names a script may reference. Anything not
// registered here is unreachable from script code.
type Env struct {
	vars  map[string]Value
	funcs map[string]Func
}

func NewEnv() *Env {
	return &Env{vars: map[string]Value{}, funcs: map[string]Func{}}
}

func (e *Env) SetVar(name string, v Value) { e.vars[name] = v }

func (e *Env) SetFunc(f Func) { e.funcs[f.Name] = f }

func (e *Env) Var(name string) (Value, bool) {
	v, ok := e.vars[name]
	return v, ok
}

func (e *Env) Func(name string) (Func, bool) {
	f, ok := e.funcs[name]
	return f, ok
}

// CandleObject exposes a candle to scripts.
func CandleObject(c market.Candle) Object {
	return Object{
		"time":   float64(c.OpenTime.UnixMilli()),
		"open":   c.Open,
		"high":   c.High,
		"low":    c.Low,
		"close":  c.Close,
		"volume": c.Volume,
		"closed": c.Closed,
	}
}

// PositionObject exposes an open position to scripts.
func PositionObject(p market.Position) Object {
	return Object{
		"symbol":         p.Symbol,
		"side":           string(p.Side),
		"quantity":       p.Quantity,
		"entry_price":    p.EntryPrice,
		"notional":       p.Notional,
		"leverage":       p.Leverage,
		"unrealized_pnl": p.UnrealizedPnL,
	}
}

func kindName(v Value) string {
	switch v.(type) {
	case float64:
		return "number"
	case bool:
		return "bool"
	case string:
		return "string"
	case Series:
		return "series"
	case []market.Candle:
		return "candles"
	case Object:
		return "object"
	case List:
		return "list"
	case nil:
		return "nil"
	default:
		return fmt.Sprintf("%T", v)
	}
}

func asNumber(v Value, line int, what string) (float64, error) {
	n, ok := v.(float64)
	if !ok {
		return 0, runtimef(line, "%s must be a number, got %s", what, kindName(v))
	}
	return n, nil
}

func asBool(v Value, line int, what string) (bool, error) {
	b, ok := v.(bool)
	if !ok {
		return false, runtimef(line, "%s must be a boolean, got %s", what, kindName(v))
	}
	return b, nil
}

func asInt(v Value, line int, what string) (int, error) {
	n, err := asNumber(v, line, what)
	if err != nil {
		return 0, err
	}
	if n != math.Trunc(n) {
		return 0, runtimef(line, "%s must be a whole number, got %v", what, n)
	}
	return int(n), nil
}

func asCandles(v Value, line int, what string) ([]market.Candle, error) {
	c, ok := v.([]market.Candle)
	if !ok {
		return nil, runtimef(line, "%s must be candle data, got %s", what, kindName(v))
	}
	return c, nil
}

func asSeries(v Value, line int, what string) (Series, error) {
	switch s := v.(type) {
	case Series:
		return s, nil
	case List:
		out := make(Series, len(s))
		for i, el := range s {
			n, ok := el.(float64)
			if !ok {
				return nil, runtimef(line, "%s must be numeric, element %d is %s", what, i, kindName(el))
			}
			out[i] = n
		}
		return out, nil
	default:
		return nil, runtimef(line, "%s must be a series, got %s", what, kindName(v))
	}
}
