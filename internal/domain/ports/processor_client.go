package ports

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/commercekit/btcpay-reconciler/internal/domain"
)

// CreateInvoiceRequest carries everything needed to create an invoice on the
// processor
type CreateInvoiceRequest struct {
	Currency       string
	Amount         decimal.Decimal
	OrderNumber    string
	Metadata       map[string]interface{}
	RedirectURL    string
	PaymentMethods []string
	// Speed is omitted from the request when SpeedDefault so the processor
	// store configuration applies
	Speed domain.TransactionSpeed
}

// CreatePullPaymentRequest carries the payout parameters for a refund
type CreatePullPaymentRequest struct {
	Name           string
	Amount         decimal.Decimal
	Currency       string
	PaymentMethods []string
}

// ProcessorClient is the outbound capability to the BTCPay Server Greenfield
// API. Implementations do not retry; callers surface failures so the
// processor-side redelivery mechanism can retry webhooks end to end.
type ProcessorClient interface {
	GetInvoice(ctx context.Context, storeID, invoiceID string) (*domain.Invoice, error)
	GetInvoicePaymentMethods(ctx context.Context, storeID, invoiceID string) ([]domain.PaymentRecord, error)
	CreateInvoice(ctx context.Context, storeID string, req CreateInvoiceRequest) (*domain.Invoice, error)
	MarkInvoiceInvalid(ctx context.Context, storeID, invoiceID string) error

	// InvoiceFullyPaid reports whether the invoice is settled, the
	// authoritative answer when webhook ordering cannot be trusted
	InvoiceFullyPaid(ctx context.Context, storeID, invoiceID string) (bool, error)

	CreatePullPayment(ctx context.Context, storeID string, req CreatePullPaymentRequest) (*domain.PullPayment, error)

	GetServerInfo(ctx context.Context) (*domain.ServerInfo, error)
	GetCurrentAPIKey(ctx context.Context) (*domain.APIKey, error)

	GetStorePaymentMethods(ctx context.Context, storeID string) ([]string, error)

	GetWebhook(ctx context.Context, storeID, webhookID string) (*domain.WebhookRegistration, error)
	CreateWebhook(ctx context.Context, storeID, url string, events []domain.WebhookEventType) (*domain.WebhookRegistration, error)
	UpdateWebhook(ctx context.Context, storeID string, reg domain.WebhookRegistration) (*domain.WebhookRegistration, error)
}
