package script

import (
	"github.com/rustyeddy/scriptbot/market"
)

// Run evaluates a parsed program against env and returns the locals the
// script assigned. Locals shadow environment variables of the same name.
func Run(prog *Program, env *Env) (map[string]Value, error) {
	ev := &evaluator{env: env, locals: map[string]Value{}}
	for _, stmt := range prog.Stmts {
		v, err := ev.eval(stmt.Expr)
		if err != nil {
			return nil, err
		}
		ev.locals[stmt.Name] = v
	}
	return ev.locals, nil
}

type evaluator struct {
	env    *Env
	locals map[string]Value
}

func (ev *evaluator) eval(e Expr) (Value, error) {
	switch e := e.(type) {
	case *NumberLit:
		return e.Value, nil
	case *StringLit:
		return e.Value, nil
	case *BoolLit:
		return e.Value, nil
	case *Ident:
		if v, ok := ev.locals[e.Name]; ok {
			return v, nil
		}
		if v, ok := ev.env.Var(e.Name); ok {
			return v, nil
		}
		return nil, runtimef(e.Line, "undefined name %q", e.Name)
	case *Unary:
		return ev.unary(e)
	case *Binary:
		return ev.binary(e)
	case *Call:
		return ev.call(e)
	case *Index:
		return ev.index(e)
	default:
		return nil, runtimef(0, "unhandled expression %T", e)
	}
}

func (ev *evaluator) unary(e *Unary) (Value, error) {
	x, err := ev.eval(e.X)
	if err != nil {
		return nil, err
	}
	switch e.Op {
	case "not":
		b, err := asBool(x, e.Line, "operand of \"not\"")
		if err != nil {
			return nil, err
		}
		return !b, nil
	case "-":
		n, err := asNumber(x, e.Line, "operand of unary minus")
		if err != nil {
			return nil, err
		}
		return -n, nil
	}
	return nil, runtimef(e.Line, "unknown unary operator %q", e.Op)
}

func (ev *evaluator) binary(e *Binary) (Value, error) {
	x, err := ev.eval(e.X)
	if err != nil {
		return nil, err
	}

	// Boolean operators short-circuit like their counterparts in most
	// languages, so the right side only evaluates when it matters.
	switch e.Op {
	case "and", "or":
		xb, err := asBool(x, e.Line, "operand of \""+e.Op+"\"")
		if err != nil {
			return nil, err
		}
		if e.Op == "and" && !xb || e.Op == "or" && xb {
			return xb, nil
		}
		y, err := ev.eval(e.Y)
		if err != nil {
			return nil, err
		}
		return asBool(y, e.Line, "operand of \""+e.Op+"\"")
	}

	y, err := ev.eval(e.Y)
	if err != nil {
		return nil, err
	}

	switch e.Op {
	case "==", "!=":
		eq, err := valuesEqual(x, y, e.Line)
		if err != nil {
			return nil, err
		}
		if e.Op == "!=" {
			return !eq, nil
		}
		return eq, nil
	case "<", ">", "<=", ">=":
		xn, err := asNumber(x, e.Line, "left operand of \""+e.Op+"\"")
		if err != nil {
			return nil, err
		}
		yn, err := asNumber(y, e.Line, "right operand of \""+e.Op+"\"")
		if err != nil {
			return nil, err
		}
		switch e.Op {
		case "<":
			return xn < yn, nil
		case ">":
			return xn > yn, nil
		case "<=":
			return xn <= yn, nil
		default:
			return xn >= yn, nil
		}
	case "+", "-", "*", "/":
		xn, err := asNumber(x, e.Line, "left operand of \""+e.Op+"\"")
		if err != nil {
			return nil, err
		}
		yn, err := asNumber(y, e.Line, "right operand of \""+e.Op+"\"")
		if err != nil {
			return nil, err
		}
		switch e.Op {
		case "+":
			return xn + yn, nil
		case "-":
			return xn - yn, nil
		case "*":
			return xn * yn, nil
		default:
			if yn == 0 {
				return nil, runtimef(e.Line, "division by zero")
			}
			return xn / yn, nil
		}
	}
	return nil, runtimef(e.Line, "unknown operator %q", e.Op)
}

func valuesEqual(x, y Value, line int) (bool, error) {
	switch xv := x.(type) {
	case float64:
		yv, ok := y.(float64)
		if !ok {
			return false, nil
		}
		return xv == yv, nil
	case string:
		yv, ok := y.(string)
		return ok && xv == yv, nil
	case bool:
		yv, ok := y.(bool)
		return ok && xv == yv, nil
	case nil:
		return y == nil, nil
	default:
		return false, runtimef(line, "cannot compare %s values", kindName(x))
	}
}

func (ev *evaluator) call(e *Call) (Value, error) {
	fn, ok := ev.env.Func(e.Name)
	if !ok {
		return nil, runtimef(e.Line, "unknown function %q", e.Name)
	}
	if len(e.Args) < fn.MinArgs || len(e.Args) > fn.MaxArgs {
		if fn.MinArgs == fn.MaxArgs {
			return nil, runtimef(e.Line, "%s expects %d arguments, got %d", e.Name, fn.MinArgs, len(e.Args))
		}
		return nil, runtimef(e.Line, "%s expects %d to %d arguments, got %d", e.Name, fn.MinArgs, fn.MaxArgs, len(e.Args))
	}
	args := make([]Value, len(e.Args))
	for i, arg := range e.Args {
		v, err := ev.eval(arg)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	v, err := fn.Call(args)
	if err != nil {
		if _, ok := err.(*RuntimeError); ok {
			return nil, err
		}
		return nil, runtimef(e.Line, "%s: %v", e.Name, err)
	}
	return v, nil
}

func (ev *evaluator) index(e *Index) (Value, error) {
	x, err := ev.eval(e.X)
	if err != nil {
		return nil, err
	}
	idx, err := ev.eval(e.Idx)
	if err != nil {
		return nil, err
	}

	if obj, ok := x.(Object); ok {
		key, kok := idx.(string)
		if !kok {
			return nil, runtimef(e.Line, "object key must be a string, got %s", kindName(idx))
		}
		v, found := obj[key]
		if !found {
			return nil, runtimef(e.Line, "object has no key %q", key)
		}
		return v, nil
	}

	i, err := asInt(idx, e.Line, "index")
	if err != nil {
		return nil, err
	}
	switch xv := x.(type) {
	case Series:
		i, err = wrapIndex(i, len(xv), e.Line)
		if err != nil {
			return nil, err
		}
		return xv[i], nil
	case List:
		i, err = wrapIndex(i, len(xv), e.Line)
		if err != nil {
			return nil, err
		}
		return xv[i], nil
	case []market.Candle:
		i, err = wrapIndex(i, len(xv), e.Line)
		if err != nil {
			return nil, err
		}
		return CandleObject(xv[i]), nil
	case string:
		i, err = wrapIndex(i, len(xv), e.Line)
		if err != nil {
			return nil, err
		}
		return string(xv[i]), nil
	default:
		return nil, runtimef(e.Line, "cannot index %s", kindName(x))
	}
}

// wrapIndex resolves negative indices relative to the end of the sequence.
func wrapIndex(i, n, line int) (int, error) {
	if i < 0 {
		i += n
	}
	if i < 0 || i >= n {
		return 0, runtimef(line, "index %d out of range for length %d", i, n)
	}
	return i, nil
}
