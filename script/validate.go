package script

import (
	"fmt"
	"regexp"

	"github.com/rustyeddy/scriptbot/action"
)

var symbolRE = regexp.MustCompile(`^[A-Z0-9]+$`)

// ValidateSymbol accepts uppercase alphanumeric exchange symbols only.
func ValidateSymbol(symbol string) error {
	if !symbolRE.MatchString(symbol) {
		return fmt.Errorf("%w: symbol %q must contain only uppercase letters and digits", ErrValidation, symbol)
	}
	return nil
}

// ValidateAction checks an action string for well-formedness without
// executing it.
func ValidateAction(s string) error {
	return action.Validate(s)
}

// ValidateScript reports whether the script parses. Header parameter
// lines are ordinary assignments, so the whole text is checked at once.
func ValidateScript(src string) error {
	_, err := Parse(src)
	return err
}
