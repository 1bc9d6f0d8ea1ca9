package reconcile

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/commercekit/btcpay-reconciler/internal/domain"
	"github.com/commercekit/btcpay-reconciler/internal/testutil/mocks"
)

const testStoreID = "store-1"

func newMapper(processor *mocks.MockProcessorClient) *StateMapper {
	return NewStateMapper(processor, testStoreID, zap.NewNop())
}

func TestStateMapper_UnrecognizedEvent(t *testing.T) {
	mapper := newMapper(new(mocks.MockProcessorClient))

	event := domain.WebhookEvent{Type: "InvoiceCreated", InvoiceID: "inv-1"}
	transition, err := mapper.NextStatus(context.Background(), domain.OrderStatusPending,
		event, domain.DefaultOrderStateMapping(), false)

	require.NoError(t, err)
	assert.False(t, transition.Apply)
	assert.False(t, transition.PaymentComplete)
	assert.Contains(t, transition.Note, "ignored")
}

func TestStateMapper_ProtectedOrders(t *testing.T) {
	mapper := newMapper(new(mocks.MockProcessorClient))
	mapping := domain.DefaultOrderStateMapping()

	event := domain.WebhookEvent{Type: domain.EventInvoiceExpired, InvoiceID: "inv-1"}

	for _, current := range []domain.OrderStatus{domain.OrderStatusProcessing, domain.OrderStatusCompleted} {
		transition, err := mapper.NextStatus(context.Background(), current, event, mapping, true)
		require.NoError(t, err)
		assert.False(t, transition.Apply, "status %s must not regress when protected", current)
		assert.Contains(t, transition.Note, "check manually")
	}

	// Unprotected orders in the same statuses do transition.
	transition, err := mapper.NextStatus(context.Background(), domain.OrderStatusProcessing, event, mapping, false)
	require.NoError(t, err)
	assert.True(t, transition.Apply)
	assert.Equal(t, domain.OrderStatusCancelled, transition.NewStatus)
}

func TestStateMapper_ReceivedPayment(t *testing.T) {
	mapper := newMapper(new(mocks.MockProcessorClient))
	mapping := domain.DefaultOrderStateMapping()

	t.Run("normal payment waits for settlement", func(t *testing.T) {
		event := domain.WebhookEvent{Type: domain.EventInvoiceReceivedPayment, InvoiceID: "inv-1"}
		transition, err := mapper.NextStatus(context.Background(), domain.OrderStatusPending, event, mapping, false)
		require.NoError(t, err)
		assert.False(t, transition.Apply)
		assert.Contains(t, transition.Note, "Waiting for settlement")
	})

	t.Run("payment after expiration moves to expired-paid-partial", func(t *testing.T) {
		event := domain.WebhookEvent{Type: domain.EventInvoiceReceivedPayment, InvoiceID: "inv-1", AfterExpiration: true}
		transition, err := mapper.NextStatus(context.Background(), domain.OrderStatusCancelled, event, mapping, false)
		require.NoError(t, err)
		assert.True(t, transition.Apply)
		assert.Equal(t, domain.OrderStatusFailed, transition.NewStatus)
	})
}

func TestStateMapper_Processing(t *testing.T) {
	mapper := newMapper(new(mocks.MockProcessorClient))
	mapping := domain.DefaultOrderStateMapping()

	event := domain.WebhookEvent{Type: domain.EventInvoiceProcessing, InvoiceID: "inv-1"}
	transition, err := mapper.NextStatus(context.Background(), domain.OrderStatusPending, event, mapping, false)
	require.NoError(t, err)
	assert.True(t, transition.Apply)
	assert.Equal(t, domain.OrderStatusOnHold, transition.NewStatus)

	event.OverPaid = true
	transition, err = mapper.NextStatus(context.Background(), domain.OrderStatusPending, event, mapping, false)
	require.NoError(t, err)
	assert.Contains(t, transition.Note, "overpayment")
}

func TestStateMapper_Invalid(t *testing.T) {
	mapper := newMapper(new(mocks.MockProcessorClient))
	mapping := domain.DefaultOrderStateMapping()

	event := domain.WebhookEvent{Type: domain.EventInvoiceInvalid, InvoiceID: "inv-1"}
	transition, err := mapper.NextStatus(context.Background(), domain.OrderStatusPending, event, mapping, false)
	require.NoError(t, err)
	assert.True(t, transition.Apply)
	assert.Equal(t, domain.OrderStatusFailed, transition.NewStatus)
	assert.Equal(t, "Invoice became invalid.", transition.Note)

	event.ManuallyMarked = true
	transition, err = mapper.NextStatus(context.Background(), domain.OrderStatusPending, event, mapping, false)
	require.NoError(t, err)
	assert.Equal(t, "Invoice manually marked invalid.", transition.Note)
}

func TestStateMapper_Expired(t *testing.T) {
	mapper := newMapper(new(mocks.MockProcessorClient))
	mapping := domain.DefaultOrderStateMapping()

	event := domain.WebhookEvent{Type: domain.EventInvoiceExpired, InvoiceID: "inv-1"}
	transition, err := mapper.NextStatus(context.Background(), domain.OrderStatusPending, event, mapping, false)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusCancelled, transition.NewStatus)

	event.PartiallyPaid = true
	transition, err = mapper.NextStatus(context.Background(), domain.OrderStatusPending, event, mapping, false)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusFailed, transition.NewStatus)
	assert.Contains(t, transition.Note, "paid partially")
}

func TestStateMapper_Settled(t *testing.T) {
	mapper := newMapper(new(mocks.MockProcessorClient))
	mapping := domain.DefaultOrderStateMapping()

	t.Run("default mapping ignores status but completes payment", func(t *testing.T) {
		event := domain.WebhookEvent{Type: domain.EventInvoiceSettled, InvoiceID: "inv-1"}
		transition, err := mapper.NextStatus(context.Background(), domain.OrderStatusPending, event, mapping, false)
		require.NoError(t, err)
		assert.False(t, transition.Apply, "Settled maps to the ignore sentinel by default")
		assert.True(t, transition.PaymentComplete)
		assert.Equal(t, "Invoice payment settled.", transition.Note)
	})

	t.Run("overpaid settles to processing", func(t *testing.T) {
		event := domain.WebhookEvent{Type: domain.EventInvoiceSettled, InvoiceID: "inv-1", OverPaid: true}
		transition, err := mapper.NextStatus(context.Background(), domain.OrderStatusPending, event, mapping, false)
		require.NoError(t, err)
		assert.True(t, transition.Apply)
		assert.Equal(t, domain.OrderStatusProcessing, transition.NewStatus)
		assert.True(t, transition.PaymentComplete)
	})

	t.Run("explicit mapping overrides the ignore default", func(t *testing.T) {
		custom := domain.DefaultOrderStateMapping()
		custom[domain.StateSettled] = domain.OrderStatusCompleted

		event := domain.WebhookEvent{Type: domain.EventInvoiceSettled, InvoiceID: "inv-1"}
		transition, err := mapper.NextStatus(context.Background(), domain.OrderStatusPending, event, custom, false)
		require.NoError(t, err)
		assert.True(t, transition.Apply)
		assert.Equal(t, domain.OrderStatusCompleted, transition.NewStatus)
	})
}

func TestStateMapper_PaymentSettled(t *testing.T) {
	mapping := domain.DefaultOrderStateMapping()

	t.Run("order not expired just records a note", func(t *testing.T) {
		processor := new(mocks.MockProcessorClient)
		mapper := newMapper(processor)

		event := domain.WebhookEvent{Type: domain.EventInvoicePaymentSettled, InvoiceID: "inv-1"}
		transition, err := mapper.NextStatus(context.Background(), domain.OrderStatusPending, event, mapping, false)
		require.NoError(t, err)
		assert.False(t, transition.Apply)
		processor.AssertNotCalled(t, "InvoiceFullyPaid")
	})

	t.Run("settled after expiration and fully paid", func(t *testing.T) {
		processor := new(mocks.MockProcessorClient)
		processor.On("InvoiceFullyPaid", context.Background(), testStoreID, "inv-1").Return(true, nil)
		mapper := newMapper(processor)

		// afterExpiration deliberately false: the flag is not trusted, the
		// current status decides whether settlement is re-checked.
		event := domain.WebhookEvent{Type: domain.EventInvoicePaymentSettled, InvoiceID: "inv-1"}
		transition, err := mapper.NextStatus(context.Background(), domain.OrderStatusCancelled, event, mapping, false)
		require.NoError(t, err)
		assert.True(t, transition.Apply)
		assert.Equal(t, domain.OrderStatusProcessing, transition.NewStatus)
		assert.Contains(t, transition.Note, "fully settled after invoice was already expired")
	})

	t.Run("settled after expiration but not fully paid", func(t *testing.T) {
		processor := new(mocks.MockProcessorClient)
		processor.On("InvoiceFullyPaid", context.Background(), testStoreID, "inv-1").Return(false, nil)
		mapper := newMapper(processor)

		event := domain.WebhookEvent{Type: domain.EventInvoicePaymentSettled, InvoiceID: "inv-1"}
		transition, err := mapper.NextStatus(context.Background(), domain.OrderStatusFailed, event, mapping, false)
		require.NoError(t, err)
		assert.True(t, transition.Apply)
		assert.Equal(t, domain.OrderStatusFailed, transition.NewStatus)
	})

	t.Run("processor unavailable surfaces an error", func(t *testing.T) {
		processor := new(mocks.MockProcessorClient)
		processor.On("InvoiceFullyPaid", context.Background(), testStoreID, "inv-1").
			Return(false, errors.New("dial tcp: timeout"))
		mapper := newMapper(processor)

		event := domain.WebhookEvent{Type: domain.EventInvoicePaymentSettled, InvoiceID: "inv-1"}
		_, err := mapper.NextStatus(context.Background(), domain.OrderStatusCancelled, event, mapping, false)
		require.Error(t, err)
		assert.True(t, domain.IsDomainError(err, domain.ErrorCodeProcessorUnavailable))
	})
}
