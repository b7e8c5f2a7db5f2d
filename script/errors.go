// Package script parses and executes strategy scripts: a small restricted
// expression/statement language evaluated against an allow-listed
// environment of market data and indicator functions.
package script

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation covers malformed symbols, headers and script syntax.
	ErrValidation = errors.New("validation error")

	// ErrRuntime covers faults while evaluating user code, including a
	// missing or mistyped condition_true.
	ErrRuntime = errors.New("script runtime error")
)

// IsScriptFault reports whether err is the script author's fault (a
// validation or runtime error) rather than a transient data or exchange
// failure.
func IsScriptFault(err error) bool {
	return errors.Is(err, ErrValidation) || errors.Is(err, ErrRuntime)
}

// SyntaxError is a script that does not parse. It is a validation error.
type SyntaxError struct {
	Line int
	Msg  string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("syntax error on line %d: %s", e.Line, e.Msg)
}

func (e *SyntaxError) Unwrap() error { return ErrValidation }

// RuntimeError is a fault raised while evaluating the script body.
type RuntimeError struct {
	Line int
	Msg  string
}

func (e *RuntimeError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("runtime error on line %d: %s", e.Line, e.Msg)
	}
	return "runtime error: " + e.Msg
}

func (e *RuntimeError) Unwrap() error { return ErrRuntime }

func syntaxf(line int, format string, args ...any) error {
	return &SyntaxError{Line: line, Msg: fmt.Sprintf(format, args...)}
}

func runtimef(line int, format string, args ...any) error {
	return &RuntimeError{Line: line, Msg: fmt.Sprintf(format, args...)}
}
