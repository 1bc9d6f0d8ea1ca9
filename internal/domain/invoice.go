package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// InvoiceStatus represents the processor-side invoice lifecycle
type InvoiceStatus string

const (
	InvoiceStatusNew        InvoiceStatus = "New"
	InvoiceStatusProcessing InvoiceStatus = "Processing"
	InvoiceStatusSettled    InvoiceStatus = "Settled"
	InvoiceStatusExpired    InvoiceStatus = "Expired"
	InvoiceStatusInvalid    InvoiceStatus = "Invalid"
)

// Invoice is a processor-side record of a requested payment. It is referenced
// by orders through MetaInvoiceID but owned by the processor.
type Invoice struct {
	ID             string
	Status         InvoiceStatus
	Currency       string
	Amount         decimal.Decimal
	CheckoutLink   string
	PaymentMethods []string
}

// IsTerminallyUnusable reports whether the invoice can no longer accept
// payment and a replacement must be created
func (i *Invoice) IsTerminallyUnusable() bool {
	return i.Status == InvoiceStatusExpired || i.Status == InvoiceStatusInvalid
}

// PaymentTransaction is a single on-chain or off-chain payment made against
// an invoice payment method
type PaymentTransaction struct {
	TransactionID string
	ReceivedAt    time.Time
	Destination   string
	Value         decimal.Decimal
	Status        string
	NetworkFee    decimal.Decimal
}

// PaymentRecord aggregates all payments made through one payment method of an
// invoice. Transactions are append-only and keyed by index in order metadata.
type PaymentRecord struct {
	PaymentMethod string
	Amount        decimal.Decimal
	Due           decimal.Decimal
	Paid          decimal.Decimal
	TotalPaid     decimal.Decimal
	NetworkFee    decimal.Decimal
	Rate          decimal.Decimal
	Transactions  []PaymentTransaction
}

// HasPayments reports whether any amount was paid through this method
func (p *PaymentRecord) HasPayments() bool {
	return p.Paid.IsPositive()
}

// PullPayment is the processor-side refund confirmation
type PullPayment struct {
	ID       string
	ViewLink string
	Amount   decimal.Decimal
	Currency string
}

// TransactionSpeed is the confirmation policy requested for new invoices
type TransactionSpeed string

const (
	SpeedDefault   TransactionSpeed = "default"   // use processor store setting
	SpeedHigh      TransactionSpeed = "HighSpeed" // 0 confirmations
	SpeedMedium    TransactionSpeed = "MediumSpeed"
	SpeedLowMedium TransactionSpeed = "LowMediumSpeed"
	SpeedLow       TransactionSpeed = "LowSpeed" // 6 confirmations
)

// Valid reports whether the speed is one of the processor-recognized tiers
func (s TransactionSpeed) Valid() bool {
	switch s {
	case SpeedHigh, SpeedMedium, SpeedLowMedium, SpeedLow:
		return true
	}
	return false
}

// SatsPerBTC converts sats-mode amounts: 1 BTC = 10^8 sats
var SatsPerBTC = decimal.New(1, 8)

// NormalizeCurrency converts a SAT-denominated amount to BTC since the
// processor does not understand SAT as a currency
func NormalizeCurrency(currency string, amount decimal.Decimal) (string, decimal.Decimal) {
	if currency == "SAT" {
		return "BTC", amount.DivRound(SatsPerBTC, 8)
	}
	return currency, amount
}
