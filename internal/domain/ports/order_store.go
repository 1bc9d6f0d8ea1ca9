package ports

import (
	"context"

	"github.com/commercekit/btcpay-reconciler/internal/domain"
)

// OrderStore is the external order persistence consumed by the
// reconciliation engine and invoice lifecycle manager. The store owns order
// lifecycle and update semantics; concurrent webhook deliveries for the same
// order are serialized by the store (e.g. row locking), not by this service.
type OrderStore interface {
	// FindByInvoiceID returns every order whose linked invoice ID matches.
	// Zero and multiple matches are valid results the caller must handle.
	FindByInvoiceID(ctx context.Context, invoiceID string) ([]domain.OrderRef, error)

	// GetOrder loads the full order view
	GetOrder(ctx context.Context, orderID string) (*domain.Order, error)

	GetStatus(ctx context.Context, orderID string) (domain.OrderStatus, error)
	SetStatus(ctx context.Context, orderID string, status domain.OrderStatus) error

	// AppendNote attaches an operator note; customerVisible notes are also
	// shown to the buyer
	AppendNote(ctx context.Context, orderID, note string, customerVisible bool) error

	GetMeta(ctx context.Context, orderID, key string) (string, error)
	SetMeta(ctx context.Context, orderID, key, value string) error

	// MarkPaymentComplete records that the order's payment is final. The
	// store decides the resulting status (e.g. completed for virtual goods,
	// processing for shipped goods); this is independent of SetStatus.
	MarkPaymentComplete(ctx context.Context, orderID string) error

	// Commit flushes pending writes for the order
	Commit(ctx context.Context, orderID string) error
}
