package trading

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestSizeOrder(t *testing.T) {
	cases := []struct {
		name       string
		base, step string
		conviction float64
		scale      bool
		want       string
	}{
		{"unscaled", "10", "1", 0.3, false, "10"},
		{"scaled floors to step", "10", "1", 0.75, true, "7"},
		{"fractional step", "10", "0.5", 0.33, true, "3"},
		{"minimum one step", "10", "1", 0.01, true, "1"},
		{"zero conviction still one step", "10", "2", 0, true, "2"},
		{"conviction clamped", "10", "1", 4, true, "10"},
		{"unscaled off-step base", "10.7", "0.25", 1, false, "10.5"},
		{"no base", "0", "1", 1, true, "0"},
		{"no step", "10", "0", 1, true, "0"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := SizeOrder(d(tc.base), d(tc.step), tc.conviction, tc.scale)
			assert.True(t, got.Equal(d(tc.want)), "got %s want %s", got, tc.want)
		})
	}
}
