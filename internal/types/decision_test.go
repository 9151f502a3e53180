package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseDirection(t *testing.T) {
	cases := map[string]Direction{
		"LONG": DirectionLong, " buy ": DirectionLong, "Bullish": DirectionLong,
		"short": DirectionShort, "SELL": DirectionShort, "bearish": DirectionShort,
		"flat": DirectionFlat, "hold": DirectionFlat, "Neutral": DirectionFlat, "none": DirectionFlat,
	}
	for in, want := range cases {
		got, err := ParseDirection(in)
		assert.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseDirection("sideways")
	assert.Error(t, err)
}

func TestDirectionSide(t *testing.T) {
	assert.Equal(t, "buy", DirectionLong.Side())
	assert.Equal(t, "sell", DirectionShort.Side())
	assert.Empty(t, DirectionFlat.Side())
}
