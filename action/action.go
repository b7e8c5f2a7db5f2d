// Package action parses the textual order-intent grammar emitted by strategy
// scripts:
//
//	donothing
//	(long|short)(<risk>%risk@<lev>x[,sl=<val>][,tp=<val>][,rr=<num>])
//
// <risk>, <lev> and <num> are decimal numbers; <val> for sl/tp is either an
// absolute price or a decimal followed by '%' (percent distance from entry).
package action

import (
	"errors"
	"fmt"
)

// DoNothing is the literal for "no order intent".
const DoNothing = "donothing"

var (
	// ErrFormat reports text that does not match the action grammar.
	ErrFormat = errors.New("invalid action format")

	// ErrValidation reports a well-formed action with out-of-range or
	// conflicting values.
	ErrValidation = errors.New("invalid action")
)

// Direction is the side of the intended position.
type Direction string

const (
	DirLong  Direction = "long"
	DirShort Direction = "short"
)

// Target is a stop-loss or take-profit target: either an absolute price or a
// percent distance from entry.
type Target struct {
	Value   float64
	Percent bool
}

// Action is a parsed, validated order intent.
// TakeProfit and RiskReward are mutually exclusive.
type Action struct {
	Direction   Direction
	RiskPercent float64
	Leverage    float64
	StopLoss    *Target
	TakeProfit  *Target
	RiskReward  *float64
}

// Parse parses an action string. The DoNothing literal yields (nil, nil);
// any other well-formed action yields a validated *Action.
func Parse(s string) (*Action, error) {
	if s == DoNothing {
		return nil, nil
	}

	p := &parser{input: s}
	act, err := p.action()
	if err != nil {
		return nil, err
	}
	if err := act.validate(); err != nil {
		return nil, err
	}
	return act, nil
}

// Validate reports whether s is DoNothing or a well-formed, in-range action.
func Validate(s string) error {
	_, err := Parse(s)
	return err
}

func (a *Action) validate() error {
	if a.RiskPercent <= 0 || a.RiskPercent > 100 {
		return fmt.Errorf("%w: risk percent %v out of range (0, 100]", ErrValidation, a.RiskPercent)
	}
	if a.Leverage < 1 {
		return fmt.Errorf("%w: leverage %v must be at least 1", ErrValidation, a.Leverage)
	}
	if a.TakeProfit != nil && a.RiskReward != nil {
		return fmt.Errorf("%w: cannot specify both tp and rr", ErrValidation)
	}
	return nil
}
