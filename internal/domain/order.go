package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// OrderStatus represents the local order state as known to the order store
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusOnHold     OrderStatus = "on-hold"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusCompleted  OrderStatus = "completed"
	OrderStatusCancelled  OrderStatus = "cancelled"
	OrderStatusFailed     OrderStatus = "failed"
)

// GatewayIDPrefix identifies orders processed by this gateway family.
// Orders whose payment method does not carry this prefix are ignored by the
// reconciliation engine so unrelated gateways sharing the event stream are
// not touched.
const GatewayIDPrefix = "btcpay_"

// Order metadata keys. MetaInvoiceID is the back-reference from an order to
// its processor invoice; at most one non-expired, non-invalid invoice is
// linked at a time.
const (
	MetaInvoiceID    = "BTCPay_id"
	MetaRedirectLink = "BTCPay_redirect"
	MetaRefund       = "BTCPay_refund"
)

// OrderRef is a lightweight handle to an order in the external order store
type OrderRef struct {
	ID            string
	PaymentMethod string
	Status        OrderStatus
}

// BelongsToGateway reports whether the referenced order was processed by a
// gateway of this family
func (r OrderRef) BelongsToGateway() bool {
	return strings.Contains(r.PaymentMethod, GatewayIDPrefix)
}

// BillingInfo holds customer billing data shared with the processor when the
// send-customer-data flag is enabled
type BillingInfo struct {
	Email    string
	Name     string
	Address1 string
	Address2 string
	City     string
	State    string
	Zip      string
	Country  string
}

// Order is the full order view needed by the invoice lifecycle manager
type Order struct {
	ID            string
	Number        string
	Status        OrderStatus
	PaymentMethod string
	Currency      string
	Total         decimal.Decimal
	TaxIncluded   decimal.Decimal
	ItemQuantity  int
	EditURL       string
	Billing       *BillingInfo
}
