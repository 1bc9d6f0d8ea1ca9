package reconcile

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/commercekit/btcpay-reconciler/internal/domain"
)

// Transition is the outcome of mapping one event onto an order
type Transition struct {
	// Apply indicates the order status should change to NewStatus. When
	// false the event only leaves a note (and possibly side effects).
	Apply     bool
	NewStatus domain.OrderStatus

	// Note is always attached to the order
	Note string

	// PaymentComplete requests the payment-completion side effect. It is
	// independent of the status mapping and runs before the status is
	// applied so downstream consumers observe a completed-payment order
	// already in its settled state.
	PaymentComplete bool
}

// SkipTransition builds a no-status-change transition with a note
func SkipTransition(note string) Transition {
	return Transition{Apply: false, Note: note}
}

// SettlementChecker answers whether an invoice is fully paid, consulted when
// webhook ordering cannot be trusted
type SettlementChecker interface {
	InvoiceFullyPaid(ctx context.Context, storeID, invoiceID string) (bool, error)
}

// StateMapper computes order status transitions from webhook events. It is
// stateless; idempotence falls out of only ever looking at the current
// status and the event, never a sequence counter.
type StateMapper struct {
	settlement SettlementChecker
	storeID    string
	logger     *zap.Logger
}

// NewStateMapper creates a state mapper
func NewStateMapper(settlement SettlementChecker, storeID string, logger *zap.Logger) *StateMapper {
	return &StateMapper{settlement: settlement, storeID: storeID, logger: logger}
}

// NextStatus computes the transition for an event given the current order
// status, the configured state mapping and the protect flag.
func (m *StateMapper) NextStatus(
	ctx context.Context,
	current domain.OrderStatus,
	event domain.WebhookEvent,
	mapping domain.OrderStateMapping,
	protect bool,
) (Transition, error) {
	if !event.Recognized() {
		return SkipTransition(fmt.Sprintf("Webhook event received but ignored: %s.", event.Type)), nil
	}

	// Protected orders are never regressed by late or duplicate webhooks.
	if protect && (current == domain.OrderStatusProcessing || current == domain.OrderStatusCompleted) {
		note := fmt.Sprintf(
			"Webhook (%s) received but the order is already processing or completed, skipping status update. Please check manually if everything is alright.",
			event.Type,
		)
		return SkipTransition(note), nil
	}

	var t Transition
	switch event.Type {
	case domain.EventInvoiceReceivedPayment:
		if event.AfterExpiration {
			t = m.apply(mapping, domain.StateExpiredPaidPartial,
				"Invoice (partial) payment incoming (unconfirmed) after invoice was already expired.")
		} else {
			t = SkipTransition("Invoice (partial) payment incoming (unconfirmed). Waiting for settlement.")
		}

	case domain.EventInvoicePaymentSettled:
		var err error
		if t, err = m.mapPaymentSettled(ctx, current, event, mapping); err != nil {
			return Transition{}, err
		}

	case domain.EventInvoiceProcessing:
		if event.OverPaid {
			t = m.apply(mapping, domain.StateProcessing,
				"Invoice payment received fully with overpayment, waiting for settlement.")
		} else {
			t = m.apply(mapping, domain.StateProcessing,
				"Invoice payment received fully, waiting for settlement.")
		}

	case domain.EventInvoiceInvalid:
		if event.ManuallyMarked {
			t = m.apply(mapping, domain.StateInvalid, "Invoice manually marked invalid.")
		} else {
			t = m.apply(mapping, domain.StateInvalid, "Invoice became invalid.")
		}

	case domain.EventInvoiceExpired:
		if event.PartiallyPaid {
			t = m.apply(mapping, domain.StateExpiredPaidPartial, "Invoice expired but was paid partially, please check.")
		} else {
			t = m.apply(mapping, domain.StateExpired, "Invoice expired.")
		}

	case domain.EventInvoiceSettled:
		if event.OverPaid {
			t = m.apply(mapping, domain.StateSettledPaidOver, "Invoice payment settled but was overpaid.")
		} else {
			t = m.apply(mapping, domain.StateSettled, "Invoice payment settled.")
		}
		t.PaymentComplete = true
	}

	return t, nil
}

// mapPaymentSettled handles InvoicePaymentSettled. The afterExpiration flag
// on this event cannot be trusted on processor versions before 1.7.0, so
// instead of the flag we check whether the order sits in a mapped expired
// status and, if so, ask the processor for the authoritative fully-paid
// answer.
func (m *StateMapper) mapPaymentSettled(
	ctx context.Context,
	current domain.OrderStatus,
	event domain.WebhookEvent,
	mapping domain.OrderStateMapping,
) (Transition, error) {
	expired := mapping.StatusFor(domain.StateExpired)
	expiredPartial := mapping.StatusFor(domain.StateExpiredPaidPartial)

	if current != expired && current != expiredPartial {
		return SkipTransition("Invoice (partial) payment settled."), nil
	}

	fullyPaid, err := m.settlement.InvoiceFullyPaid(ctx, m.storeID, event.InvoiceID)
	if err != nil {
		return Transition{}, domain.WrapError(domain.ErrorCodeProcessorUnavailable,
			"checking invoice settlement after expiration", err)
	}

	if fullyPaid {
		m.logger.Debug("Invoice fully paid after expiration", zap.String("invoice_id", event.InvoiceID))
		return m.apply(mapping, domain.StateExpiredPaidLate,
			"Invoice fully settled after invoice was already expired. Needs manual checking."), nil
	}

	m.logger.Debug("Invoice not fully paid after expiration", zap.String("invoice_id", event.InvoiceID))
	return m.apply(mapping, domain.StateExpiredPaidPartial,
		"(Partial) payment settled but invoice not settled yet (could be more transactions incoming). Needs manual checking."), nil
}

// apply builds a transition to the mapped status for a logical state. The
// ignore sentinel collapses to a note-only transition.
func (m *StateMapper) apply(mapping domain.OrderStateMapping, state domain.BTCPayState, note string) Transition {
	status := mapping.StatusFor(state)
	if status == domain.StatusIgnore {
		return SkipTransition(note)
	}
	return Transition{Apply: true, NewStatus: status, Note: note}
}
