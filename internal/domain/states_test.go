package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultOrderStateMapping(t *testing.T) {
	mapping := DefaultOrderStateMapping()

	assert.True(t, mapping.Complete())
	assert.Equal(t, OrderStatusPending, mapping[StateNew])
	assert.Equal(t, OrderStatusOnHold, mapping[StateProcessing])
	assert.Equal(t, StatusIgnore, mapping[StateSettled])
	assert.Equal(t, OrderStatusProcessing, mapping[StateSettledPaidOver])
	assert.Equal(t, OrderStatusFailed, mapping[StateInvalid])
	assert.Equal(t, OrderStatusCancelled, mapping[StateExpired])
	assert.Equal(t, OrderStatusFailed, mapping[StateExpiredPaidPartial])
	assert.Equal(t, OrderStatusProcessing, mapping[StateExpiredPaidLate])
}

func TestNormalizeOrderStateMapping(t *testing.T) {
	t.Run("nil falls back to defaults", func(t *testing.T) {
		assert.Equal(t, DefaultOrderStateMapping(), NormalizeOrderStateMapping(nil))
	})

	t.Run("incomplete mapping is replaced as a whole", func(t *testing.T) {
		partial := OrderStateMapping{
			StateNew:     OrderStatusPending,
			StateExpired: OrderStatusFailed,
		}
		normalized := NormalizeOrderStateMapping(partial)
		assert.Equal(t, DefaultOrderStateMapping(), normalized)
		// The partial override must not leak through.
		assert.Equal(t, OrderStatusCancelled, normalized[StateExpired])
	})

	t.Run("empty value counts as incomplete", func(t *testing.T) {
		m := DefaultOrderStateMapping()
		m[StateInvalid] = ""
		assert.Equal(t, DefaultOrderStateMapping(), NormalizeOrderStateMapping(m))
	})

	t.Run("complete mapping passes through unchanged", func(t *testing.T) {
		custom := DefaultOrderStateMapping()
		custom[StateExpired] = OrderStatusFailed
		normalized := NormalizeOrderStateMapping(custom)
		assert.Equal(t, OrderStatusFailed, normalized[StateExpired])
	})
}

func TestStatusFor(t *testing.T) {
	mapping := OrderStateMapping{StateNew: OrderStatusOnHold}

	assert.Equal(t, OrderStatusOnHold, mapping.StatusFor(StateNew))
	// Absent keys fall back to the default table.
	assert.Equal(t, OrderStatusCancelled, mapping.StatusFor(StateExpired))
}
