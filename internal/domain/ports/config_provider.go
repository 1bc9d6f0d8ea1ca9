package ports

import (
	"context"

	"github.com/commercekit/btcpay-reconciler/internal/domain"
)

// Feature flag names understood by the ConfigProvider
const (
	// FlagProtectOrderStatus prevents webhook-driven regressions of orders
	// already processing or completed
	FlagProtectOrderStatus = "protect_order_status"
	// FlagSendCustomerData attaches buyer billing data to created invoices
	FlagSendCustomerData = "send_customer_data"
	// FlagRefundNoteVisible makes refund notes visible to the customer
	FlagRefundNoteVisible = "refund_note_visible"
	// FlagSeparateGateways enables per-payment-method gateway variants,
	// which makes invoice reuse sensitive to the payment-method set
	FlagSeparateGateways = "separate_gateways"
)

// ConfigProvider supplies runtime configuration to the reconciliation engine
// and invoice lifecycle manager. Implementations may read from a database,
// an options table or static config; values are fetched per call so changes
// take effect without restarts.
type ConfigProvider interface {
	// OrderStateMapping returns the configured mapping table. Callers
	// normalize it; an incomplete table falls back to the defaults.
	OrderStateMapping(ctx context.Context) domain.OrderStateMapping

	Flag(ctx context.Context, name string) bool

	TransactionSpeed(ctx context.Context) domain.TransactionSpeed
}
