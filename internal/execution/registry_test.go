package execution

import (
	"testing"

	"council/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryFromConfig(t *testing.T) {
	reg, err := RegistryFromConfig([]config.AccountConfig{
		{Name: "ALPHA", BaseQuantity: "10", QuantityStep: "0.5", KeyID: "k", SecretKey: "s", BaseURL: "https://paper-api.example"},
		{Name: "CONTROL", Baseline: true},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"ALPHA", "CONTROL"}, reg.Names())

	a, ok := reg.Lookup(" alpha ")
	require.True(t, ok)
	assert.Equal(t, "10", a.BaseQuantity.String())
	assert.Equal(t, "0.5", a.QuantityStep.String())
	assert.Equal(t, "market", a.OrderType)
	assert.Equal(t, "ALPHA", a.Credentials.Account)

	c, ok := reg.Lookup("control")
	require.True(t, ok)
	assert.True(t, c.Baseline)
	assert.Equal(t, "1", c.QuantityStep.String())

	_, ok = reg.Lookup("nobody")
	assert.False(t, ok)
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	_, err := NewRegistry([]Account{{Name: "a"}, {Name: "A "}})
	assert.Error(t, err)
	_, err = RegistryFromConfig([]config.AccountConfig{{Name: "x", BaseQuantity: "ten"}})
	assert.Error(t, err)
}
