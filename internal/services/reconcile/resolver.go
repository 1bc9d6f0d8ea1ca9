package reconcile

import (
	"context"

	"go.uber.org/zap"

	"github.com/commercekit/btcpay-reconciler/internal/domain"
	"github.com/commercekit/btcpay-reconciler/internal/domain/ports"
)

// Resolver maps a processor invoice ID to exactly one local order
type Resolver struct {
	orders ports.OrderStore
	logger *zap.Logger
}

// NewResolver creates a new invoice-to-order resolver
func NewResolver(orders ports.OrderStore, logger *zap.Logger) *Resolver {
	return &Resolver{orders: orders, logger: logger}
}

// Resolve looks up the order linked to an invoice ID.
//
// Zero matches yields ORDER_NOT_FOUND (a permanently non-actionable
// condition the caller acknowledges with 200 to stop processor redelivery).
// Multiple matches yields ORDER_AMBIGUOUS and is never auto-resolved since
// picking the wrong order silently corrupts accounting. A single match owned
// by a foreign gateway yields ORDER_FOREIGN_GATEWAY, which callers treat as
// a no-op success.
func (r *Resolver) Resolve(ctx context.Context, invoiceID string) (domain.OrderRef, error) {
	refs, err := r.orders.FindByInvoiceID(ctx, invoiceID)
	if err != nil {
		return domain.OrderRef{}, domain.WrapError(domain.ErrorCodeStoreError, "looking up orders by invoice id", err)
	}

	switch len(refs) {
	case 0:
		r.logger.Info("No order found for invoice",
			zap.String("invoice_id", invoiceID),
		)
		return domain.OrderRef{}, domain.ErrOrderNotFound.WithDetail("invoice_id", invoiceID)

	case 1:
		// fall through

	default:
		ids := make([]string, len(refs))
		for i, ref := range refs {
			ids[i] = ref.ID
		}
		r.logger.Error("Multiple orders linked to one invoice, operator intervention required",
			zap.String("invoice_id", invoiceID),
			zap.Strings("order_ids", ids),
		)
		return domain.OrderRef{}, domain.ErrOrderAmbiguous.WithDetail("invoice_id", invoiceID).WithDetail("order_count", len(refs))
	}

	ref := refs[0]
	if !ref.BelongsToGateway() {
		r.logger.Debug("Order payment method belongs to another gateway, skipping",
			zap.String("invoice_id", invoiceID),
			zap.String("order_id", ref.ID),
			zap.String("payment_method", ref.PaymentMethod),
		)
		return ref, domain.ErrOrderForeignGateway.WithDetail("order_id", ref.ID)
	}

	return ref, nil
}
