package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestNormalizeCurrency(t *testing.T) {
	t.Run("SAT converts to BTC", func(t *testing.T) {
		currency, amount := NormalizeCurrency("SAT", decimal.NewFromInt(100000000))
		assert.Equal(t, "BTC", currency)
		assert.True(t, amount.Equal(decimal.NewFromInt(1)))
	})

	t.Run("fractional sats round to 8 places", func(t *testing.T) {
		currency, amount := NormalizeCurrency("SAT", decimal.NewFromInt(12345))
		assert.Equal(t, "BTC", currency)
		assert.Equal(t, "0.00012345", amount.String())
	})

	t.Run("other currencies pass through", func(t *testing.T) {
		currency, amount := NormalizeCurrency("EUR", decimal.NewFromFloat(19.99))
		assert.Equal(t, "EUR", currency)
		assert.Equal(t, "19.99", amount.String())
	})
}

func TestInvoice_IsTerminallyUnusable(t *testing.T) {
	assert.True(t, (&Invoice{Status: InvoiceStatusExpired}).IsTerminallyUnusable())
	assert.True(t, (&Invoice{Status: InvoiceStatusInvalid}).IsTerminallyUnusable())
	assert.False(t, (&Invoice{Status: InvoiceStatusNew}).IsTerminallyUnusable())
	assert.False(t, (&Invoice{Status: InvoiceStatusSettled}).IsTerminallyUnusable())
}

func TestTransactionSpeed_Valid(t *testing.T) {
	assert.True(t, SpeedHigh.Valid())
	assert.True(t, SpeedLow.Valid())
	assert.False(t, SpeedDefault.Valid())
	assert.False(t, TransactionSpeed("turbo").Valid())
}

func TestPaymentRecord_HasPayments(t *testing.T) {
	assert.False(t, (&PaymentRecord{}).HasPayments())
	assert.True(t, (&PaymentRecord{Paid: decimal.NewFromFloat(0.001)}).HasPayments())
}
