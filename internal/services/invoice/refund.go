package invoice

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/commercekit/btcpay-reconciler/internal/domain"
	"github.com/commercekit/btcpay-reconciler/internal/domain/ports"
	"github.com/commercekit/btcpay-reconciler/pkg/observability"
)

// refundNameLimit is the processor-side length limit for payout names
const refundNameLimit = 50

// lnurlMethods cannot receive payouts and are stripped from the allowed
// payment methods of a refund
var lnurlMethods = map[string]bool{
	"BTC_LNURLPAY": true,
	"BTC_LNURL":    true,
}

// Refund issues a refund for an order as a pull payment on the processor.
// Preconditions are checked up front: the processor version must support
// payouts and the API key must carry the pull-payment permission. Failures
// here surface to the operator and are never retried automatically.
func (m *Manager) Refund(
	ctx context.Context,
	order *domain.Order,
	amount decimal.Decimal,
	reason string,
	gateway domain.Gateway,
) (*domain.PullPayment, error) {
	if !amount.IsPositive() {
		return nil, domain.NewDomainError(domain.ErrorCodeValidationFailed, "refund amount must be positive")
	}

	info, err := m.processor.GetServerInfo(ctx)
	if err != nil {
		return nil, domain.WrapError(domain.ErrorCodeProcessorUnavailable, "fetching server info", err)
	}
	if !info.SupportsRefunds() {
		return nil, domain.NewDomainError(domain.ErrorCodeProcessorUnsupported,
			fmt.Sprintf("refunds require processor version %s or newer, server runs %s", domain.MinRefundServerVersion, info.Version))
	}

	apiKey, err := m.processor.GetCurrentAPIKey(ctx)
	if err != nil {
		return nil, domain.WrapError(domain.ErrorCodeProcessorUnavailable, "fetching current API key", err)
	}
	if !apiKey.HasPermission(domain.PermissionCreatePullPayments) {
		return nil, domain.ErrInsufficientPermission
	}

	invoiceID, err := m.orders.GetMeta(ctx, order.ID, domain.MetaInvoiceID)
	if err != nil {
		return nil, domain.WrapError(domain.ErrorCodeStoreError, "reading invoice id", err)
	}
	if invoiceID == "" {
		return nil, domain.NewDomainError(domain.ErrorCodeValidationFailed, "order has no linked invoice, cannot refund")
	}

	originalCurrency := order.Currency
	currency, refundAmount := domain.NormalizeCurrency(order.Currency, amount)

	name := truncate(fmt.Sprintf("Refund of order %s; %s", order.Number, reason), refundNameLimit)

	req := ports.CreatePullPaymentRequest{
		Name:           name,
		Amount:         refundAmount,
		Currency:       currency,
		PaymentMethods: stripLNURL(gateway.PaymentMethods()),
	}

	payout, err := m.processor.CreatePullPayment(ctx, m.storeID, req)
	if err != nil {
		return nil, domain.WrapError(domain.ErrorCodeProcessorUnavailable, "creating pull payment", err)
	}

	note := fmt.Sprintf("Created refund.\nPullPayment ID: %s\nLink: %s\nAmount: %s %s\nReason: %s",
		payout.ID, payout.ViewLink, amount.String(), originalCurrency, reason)

	customerVisible := m.cfg.Flag(ctx, ports.FlagRefundNoteVisible)
	if err := m.orders.AppendNote(ctx, order.ID, note, customerVisible); err != nil {
		m.logger.Warn("Failed to append refund note", zap.Error(err), zap.String("order_id", order.ID))
	}

	// Keyed by payout ID so partial refunds each keep their own record.
	refundKey := domain.MetaRefund + "_" + payout.ID
	if err := m.orders.SetMeta(ctx, order.ID, refundKey, note); err != nil {
		m.logger.Warn("Failed to store refund metadata", zap.Error(err), zap.String("order_id", order.ID))
	}
	if err := m.orders.Commit(ctx, order.ID); err != nil {
		return nil, domain.WrapError(domain.ErrorCodeStoreError, "committing order", err)
	}

	m.logger.Info("Created refund pull payment",
		zap.String("order_id", order.ID),
		zap.String("pull_payment_id", payout.ID),
		zap.String("amount", refundAmount.String()),
		zap.String("currency", currency),
	)
	observability.RecordPullPaymentCreated()

	return payout, nil
}

// stripLNURL removes LNURL-style payment methods, which cannot receive payouts
func stripLNURL(methods []string) []string {
	out := make([]string, 0, len(methods))
	for _, method := range methods {
		if lnurlMethods[domain.NormalizeMethodSymbol(method)] {
			continue
		}
		out = append(out, method)
	}
	return out
}

// truncate shortens s to at most limit runes
func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
