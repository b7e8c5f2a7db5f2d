package script

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/scriptbot/market"
)

func TestExtractHeader_Params(t *testing.T) {
	t.Parallel()

	h, err := extractHeader("timeframe = \"4h\"\ncoin = \"ETHUSDT\"\ncondition_true = false\n",
		"BTCUSDT", market.Interval1h)
	require.NoError(t, err)
	assert.Equal(t, "ETHUSDT", h.Symbol)
	assert.Equal(t, market.Interval4h, h.Interval)
	assert.Contains(t, h.Body, "condition_true = false")
	assert.NotContains(t, h.Body, "timeframe")
}

func TestExtractHeader_Defaults(t *testing.T) {
	t.Parallel()

	h, err := extractHeader("condition_true = false", "BTCUSDT", market.Interval1h)
	require.NoError(t, err)
	assert.Equal(t, "BTCUSDT", h.Symbol)
	assert.Equal(t, market.Interval1h, h.Interval)
}

// Parameter parsing ends at the first non-parameter line and never resumes.
// A coin line after real code stays in the body as a plain assignment.
func TestExtractHeader_OneWayFlip(t *testing.T) {
	t.Parallel()

	src := "timeframe = \"4h\"\nx = 1\ncoin = \"ETHUSDT\"\n"
	h, err := extractHeader(src, "BTCUSDT", market.Interval1h)
	require.NoError(t, err)
	assert.Equal(t, market.Interval4h, h.Interval)
	assert.Equal(t, "BTCUSDT", h.Symbol)
	assert.Contains(t, h.Body, "coin = \"ETHUSDT\"")
}

// Whitespace around the script is insignificant: parameter lines after a
// leading blank line still count as the header. Only an interior
// non-parameter line ends it.
func TestExtractHeader_LeadingBlankLines(t *testing.T) {
	t.Parallel()

	src := "\n\ncoin = \"ETHUSDT\"\ncondition_true = false\n"
	h, err := extractHeader(src, "BTCUSDT", market.Interval1h)
	require.NoError(t, err)
	assert.Equal(t, "ETHUSDT", h.Symbol)
	assert.Contains(t, h.Body, "condition_true = false")
}

// A blank line between code statements stays in the body; the flip happens
// at the first interior non-parameter line.
func TestExtractHeader_InteriorBlankLine(t *testing.T) {
	t.Parallel()

	src := "coin = \"ETHUSDT\"\n\ncoin = \"SOLUSDT\"\n"
	h, err := extractHeader(src, "BTCUSDT", market.Interval1h)
	require.NoError(t, err)
	assert.Equal(t, "ETHUSDT", h.Symbol)
	assert.Contains(t, h.Body, "coin = \"SOLUSDT\"")
}

func TestExtractHeader_InvalidValues(t *testing.T) {
	t.Parallel()

	_, err := extractHeader("timeframe = \"7m\"\n", "BTCUSDT", market.Interval1h)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = extractHeader("coin = \"eth-usd\"\n", "BTCUSDT", market.Interval1h)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrValidation)
}
