package council

import (
	"testing"

	"council/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTradeDecision(t *testing.T) {
	text := "After weighing the council:\n```json\n{\"instrument\": \"spy\", \"direction\": \"buy\", \"conviction\": \"0.72\", \"horizon\": \"1w\", \"rationale\": \"momentum\"}\n```"
	d, err := ParseTradeDecision(text)
	require.NoError(t, err)
	assert.Equal(t, types.TradeDecision{
		Instrument: "SPY",
		Direction:  types.DirectionLong,
		Conviction: 0.72,
		Horizon:    "1w",
		Rationale:  "momentum",
	}, d)
}

func TestParseTradeDecisionClampsConviction(t *testing.T) {
	d, err := ParseTradeDecision(`{"instrument":"QQQ","direction":"bearish","conviction":3}`)
	require.NoError(t, err)
	assert.Equal(t, types.DirectionShort, d.Direction)
	assert.Equal(t, 1.0, d.Conviction)

	d, err = ParseTradeDecision(`{"instrument":"QQQ","direction":"hold","conviction":-0.5}`)
	require.NoError(t, err)
	assert.Equal(t, types.DirectionFlat, d.Direction)
	assert.Zero(t, d.Conviction)
}

func TestParseTradeDecisionErrors(t *testing.T) {
	_, err := ParseTradeDecision("no json here")
	assert.ErrorIs(t, err, ErrNoDecision)

	_, err = ParseTradeDecision(`{"direction":"LONG"}`)
	assert.Error(t, err)

	_, err = ParseTradeDecision(`{"instrument":"SPY","direction":"sideways"}`)
	assert.Error(t, err)

	_, err = ParseTradeDecision(`{"instrument":"SPY","direction":"LONG","conviction":true}`)
	assert.Error(t, err)

	_, err = ParseTradeDecision(`{"instrument":"the S&P index","direction":"LONG"}`)
	assert.Error(t, err)
}
