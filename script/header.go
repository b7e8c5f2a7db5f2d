package script

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/rustyeddy/scriptbot/market"
)

var (
	timeframeLineRE = regexp.MustCompile(`^\s*timeframe\s*=\s*"([^"]*)"\s*$`)
	coinLineRE      = regexp.MustCompile(`^\s*coin\s*=\s*"([^"]*)"\s*$`)
)

// Params reports the symbol and interval a script will run against, without
// executing it. Callers use it to set up data subscriptions ahead of time.
func Params(src, defaultSymbol string, defaultInterval market.Interval) (string, market.Interval, error) {
	h, err := extractHeader(src, defaultSymbol, defaultInterval)
	if err != nil {
		return "", "", err
	}
	return h.Symbol, h.Interval, nil
}

// header is the result of parameter extraction: the resolved symbol and
// interval plus the remaining script body.
type header struct {
	Symbol   string
	Interval market.Interval
	Body     string
}

// extractHeader consumes leading timeframe/coin parameter lines and
// returns the script body. Parameter parsing is one-way: the first line
// that is not a parameter line ends the header, and later parameter-shaped
// lines are left in the body as ordinary assignments. Leading and trailing
// whitespace around the script does not count against the header.
func extractHeader(src, defaultSymbol string, defaultInterval market.Interval) (header, error) {
	h := header{Symbol: defaultSymbol, Interval: defaultInterval}
	lines := strings.Split(strings.TrimSpace(src), "\n")
	var body []string
	inHeader := true
	for _, line := range lines {
		if inHeader {
			if m := timeframeLineRE.FindStringSubmatch(line); m != nil {
				iv, err := market.ParseInterval(m[1])
				if err != nil {
					return header{}, fmt.Errorf("%w: invalid timeframe %q", ErrValidation, m[1])
				}
				h.Interval = iv
				continue
			}
			if m := coinLineRE.FindStringSubmatch(line); m != nil {
				if err := ValidateSymbol(m[1]); err != nil {
					return header{}, err
				}
				h.Symbol = m[1]
				continue
			}
			inHeader = false
		}
		body = append(body, line)
	}
	h.Body = strings.Join(body, "\n")
	return h, nil
}
