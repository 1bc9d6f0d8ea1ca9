package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGateway(t *testing.T) {
	g := Gateway{Symbol: "BTC_LightningNetwork", TokenType: TokenTypePayment}

	assert.Equal(t, "btcpay_BTC_LightningNetwork", g.ID())
	assert.Equal(t, []string{"BTC_LightningNetwork"}, g.PaymentMethods())

	// The unrestricted default gateway accepts any payment method.
	assert.Nil(t, Gateway{}.PaymentMethods())
}

func TestNormalizeMethodSymbol(t *testing.T) {
	assert.Equal(t, "BTC_LightningNetwork", NormalizeMethodSymbol("BTC-LightningNetwork"))
	assert.Equal(t, "BTC", NormalizeMethodSymbol("BTC"))
}

func TestGatewayRegistry(t *testing.T) {
	registry := NewGatewayRegistry([]Gateway{
		{Symbol: "BTC", DisplayName: "Bitcoin"},
		{Symbol: "BTC-LightningNetwork", DisplayName: "Lightning"},
	})

	g, ok := registry.Lookup("btcpay_BTC")
	assert.True(t, ok)
	assert.Equal(t, "Bitcoin", g.DisplayName)

	// Symbols are normalized at registration.
	g, ok = registry.Lookup("btcpay_BTC_LightningNetwork")
	assert.True(t, ok)
	assert.Equal(t, "Lightning", g.DisplayName)

	_, ok = registry.Lookup("btcpay_LTC")
	assert.False(t, ok)

	assert.Len(t, registry.All(), 2)
}

func TestOrderRef_BelongsToGateway(t *testing.T) {
	assert.True(t, OrderRef{PaymentMethod: "btcpay_default"}.BelongsToGateway())
	assert.False(t, OrderRef{PaymentMethod: "stripe"}.BelongsToGateway())
	assert.False(t, OrderRef{PaymentMethod: ""}.BelongsToGateway())
}
