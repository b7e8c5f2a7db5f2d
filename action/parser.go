package action

import (
	"fmt"
	"strconv"
	"strings"
)

// parser is a hand-written recursive-descent parser over the action string.
// The grammar is small enough that a scanner with single-byte lookahead keeps
// error messages precise without a separate lexer.
type parser struct {
	input string
	pos   int
}

func (p *parser) action() (*Action, error) {
	act := &Action{}

	switch {
	case p.literal(string(DirLong)):
		act.Direction = DirLong
	case p.literal(string(DirShort)):
		act.Direction = DirShort
	default:
		return nil, p.errf("expected %q or %q", DirLong, DirShort)
	}

	if !p.literal("(") {
		return nil, p.errf("expected '('")
	}

	risk, err := p.number()
	if err != nil {
		return nil, err
	}
	act.RiskPercent = risk
	if !p.literal("%risk@") {
		return nil, p.errf("expected '%%risk@'")
	}

	lev, err := p.number()
	if err != nil {
		return nil, err
	}
	act.Leverage = lev
	if !p.literal("x") {
		return nil, p.errf("expected 'x' after leverage")
	}

	// Optional clauses appear in fixed order: sl, tp, rr.
	if p.literal(",sl=") {
		t, err := p.target()
		if err != nil {
			return nil, err
		}
		act.StopLoss = t
	}
	if p.literal(",tp=") {
		t, err := p.target()
		if err != nil {
			return nil, err
		}
		act.TakeProfit = t
	}
	if p.literal(",rr=") {
		rr, err := p.number()
		if err != nil {
			return nil, err
		}
		act.RiskReward = &rr
	}

	if !p.literal(")") {
		return nil, p.errf("expected ')'")
	}
	if p.pos != len(p.input) {
		return nil, p.errf("trailing input %q", p.input[p.pos:])
	}
	return act, nil
}

// literal consumes s if it is next in the input.
func (p *parser) literal(s string) bool {
	if strings.HasPrefix(p.input[p.pos:], s) {
		p.pos += len(s)
		return true
	}
	return false
}

// number consumes a decimal number like "2", "0.5" or "10.".
func (p *parser) number() (float64, error) {
	start := p.pos
	for p.pos < len(p.input) {
		ch := p.input[p.pos]
		if (ch >= '0' && ch <= '9') || ch == '.' {
			p.pos++
			continue
		}
		break
	}
	if p.pos == start {
		return 0, p.errf("expected number")
	}
	v, err := strconv.ParseFloat(strings.TrimSuffix(p.input[start:p.pos], "."), 64)
	if err != nil {
		return 0, p.errf("bad number %q", p.input[start:p.pos])
	}
	return v, nil
}

// target consumes a sl/tp value: a number with an optional trailing '%'.
func (p *parser) target() (*Target, error) {
	v, err := p.number()
	if err != nil {
		return nil, err
	}
	t := &Target{Value: v}
	if p.literal("%") {
		t.Percent = true
	}
	return t, nil
}

func (p *parser) errf(format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	return fmt.Errorf("%w: %s at offset %d in %q", ErrFormat, msg, p.pos, p.input)
}
