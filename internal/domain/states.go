package domain

// BTCPayState is a logical processor state used as the key of the
// order-state mapping table. It is a superset of the invoice status: the
// expired and settled statuses fan out by payment completeness.
type BTCPayState string

const (
	StateNew                BTCPayState = "New"
	StateProcessing         BTCPayState = "Processing"
	StateSettled            BTCPayState = "Settled"
	StateSettledPaidOver    BTCPayState = "SettledPaidOver"
	StateInvalid            BTCPayState = "Invalid"
	StateExpired            BTCPayState = "Expired"
	StateExpiredPaidPartial BTCPayState = "ExpiredPaidPartial"
	StateExpiredPaidLate    BTCPayState = "ExpiredPaidLate"
)

// StatusIgnore is the sentinel mapping value meaning "do not change the
// order status for this state"
const StatusIgnore OrderStatus = "BTCPAY_IGNORE"

// AllStates lists every mapping key; a mapping missing any of these is
// rejected as a whole and replaced by the defaults, never partially applied.
var AllStates = []BTCPayState{
	StateNew,
	StateProcessing,
	StateSettled,
	StateSettledPaidOver,
	StateInvalid,
	StateExpired,
	StateExpiredPaidPartial,
	StateExpiredPaidLate,
}

// OrderStateMapping maps logical processor states to local order statuses
type OrderStateMapping map[BTCPayState]OrderStatus

// DefaultOrderStateMapping returns the hard-coded fallback table.
// Settled deliberately maps to the ignore sentinel: exactly-paid settled
// invoices are handled by the payment-complete side effect so the order
// store can distinguish virtual/downloadable orders, while overpayment
// forces a transition for manual review.
func DefaultOrderStateMapping() OrderStateMapping {
	return OrderStateMapping{
		StateNew:                OrderStatusPending,
		StateProcessing:         OrderStatusOnHold,
		StateSettled:            StatusIgnore,
		StateSettledPaidOver:    OrderStatusProcessing,
		StateInvalid:            OrderStatusFailed,
		StateExpired:            OrderStatusCancelled,
		StateExpiredPaidPartial: OrderStatusFailed,
		StateExpiredPaidLate:    OrderStatusProcessing,
	}
}

// Complete reports whether every mapping key is present with a non-empty value
func (m OrderStateMapping) Complete() bool {
	for _, state := range AllStates {
		if status, ok := m[state]; !ok || status == "" {
			return false
		}
	}
	return true
}

// StatusFor returns the mapped order status for a logical state, falling
// back to the default table for safety if the key is somehow absent
func (m OrderStateMapping) StatusFor(state BTCPayState) OrderStatus {
	if status, ok := m[state]; ok && status != "" {
		return status
	}
	return DefaultOrderStateMapping()[state]
}

// NormalizeOrderStateMapping accepts a complete mapping unchanged and
// replaces an incomplete or nil one with the defaults
func NormalizeOrderStateMapping(m OrderStateMapping) OrderStateMapping {
	if m == nil || !m.Complete() {
		return DefaultOrderStateMapping()
	}
	return m
}
