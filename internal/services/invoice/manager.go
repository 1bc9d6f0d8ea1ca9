package invoice

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/commercekit/btcpay-reconciler/internal/domain"
	"github.com/commercekit/btcpay-reconciler/internal/domain/ports"
	"github.com/commercekit/btcpay-reconciler/pkg/observability"
)

// Manager decides whether to reuse an existing processor invoice or create a
// new one when an order reaches checkout, and issues refunds as payouts.
type Manager struct {
	processor ports.ProcessorClient
	orders    ports.OrderStore
	cfg       ports.ConfigProvider
	storeID   string
	version   string
	logger    *zap.Logger
}

// NewManager creates an invoice lifecycle manager. version is recorded in
// invoice metadata for downstream reconciliation and debugging.
func NewManager(
	processor ports.ProcessorClient,
	orders ports.OrderStore,
	cfg ports.ConfigProvider,
	storeID, version string,
	logger *zap.Logger,
) *Manager {
	return &Manager{
		processor: processor,
		orders:    orders,
		cfg:       cfg,
		storeID:   storeID,
		version:   version,
		logger:    logger,
	}
}

// CreateOrReuseInvoice returns a valid invoice for the order. An existing
// linked invoice is reused as long as it is still payable and its payment
// methods match the requested gateway, which keeps page reloads and
// back-navigation from creating duplicate invoices. A payment-method
// mismatch invalidates the old invoice on the processor and creates a
// replacement, with an order note explaining why.
func (m *Manager) CreateOrReuseInvoice(
	ctx context.Context,
	order *domain.Order,
	gateway domain.Gateway,
	redirectURL string,
) (*domain.Invoice, error) {
	if existing := m.reusableInvoice(ctx, order, gateway); existing != nil {
		m.logger.Debug("Reusing existing invoice for order",
			zap.String("order_id", order.ID),
			zap.String("invoice_id", existing.ID),
		)
		observability.RecordInvoiceReused()
		return existing, nil
	}

	return m.createInvoice(ctx, order, gateway, redirectURL)
}

// reusableInvoice returns the linked invoice when it can serve this checkout
// attempt, nil when a new invoice is needed
func (m *Manager) reusableInvoice(ctx context.Context, order *domain.Order, gateway domain.Gateway) *domain.Invoice {
	invoiceID, err := m.orders.GetMeta(ctx, order.ID, domain.MetaInvoiceID)
	if err != nil || invoiceID == "" {
		return nil
	}

	existing, err := m.processor.GetInvoice(ctx, m.storeID, invoiceID)
	if err != nil {
		m.logger.Warn("Failed to fetch existing invoice, creating a new one",
			zap.Error(err),
			zap.String("invoice_id", invoiceID),
		)
		return nil
	}

	if existing.IsTerminallyUnusable() {
		return nil
	}

	// Payment-method matching only matters with per-method gateways; the
	// default gateway accepts any invoice that is still payable.
	if !m.cfg.Flag(ctx, ports.FlagSeparateGateways) {
		return existing
	}

	if methodSetsEqual(existing.PaymentMethods, gateway.PaymentMethods()) {
		return existing
	}

	m.logger.Info("Existing invoice payment methods differ from requested gateway, invalidating",
		zap.String("order_id", order.ID),
		zap.String("invoice_id", invoiceID),
	)
	if err := m.orders.AppendNote(ctx, order.ID,
		"Invoice set to invalid because the customer went back to checkout and changed the payment gateway.", false); err != nil {
		m.logger.Warn("Failed to append invoice conflict note", zap.Error(err), zap.String("order_id", order.ID))
	}
	if err := m.processor.MarkInvoiceInvalid(ctx, m.storeID, invoiceID); err != nil {
		m.logger.Warn("Failed to mark conflicting invoice invalid",
			zap.Error(err),
			zap.String("invoice_id", invoiceID),
		)
	}

	return nil
}

// createInvoice creates a new invoice on the processor and links it to the
// order, establishing the one-valid-invoice-per-order back-reference
func (m *Manager) createInvoice(
	ctx context.Context,
	order *domain.Order,
	gateway domain.Gateway,
	redirectURL string,
) (*domain.Invoice, error) {
	currency, amount := m.invoiceAmount(order, gateway)

	req := ports.CreateInvoiceRequest{
		Currency:       currency,
		Amount:         amount,
		OrderNumber:    order.Number,
		Metadata:       m.invoiceMetadata(ctx, order),
		RedirectURL:    redirectURL,
		PaymentMethods: gateway.PaymentMethods(),
		Speed:          m.transactionSpeed(ctx),
	}

	created, err := m.processor.CreateInvoice(ctx, m.storeID, req)
	if err != nil {
		// Invoice creation failures abort order placement; they are never
		// downgraded to a log line.
		return nil, domain.WrapError(domain.ErrorCodeProcessorUnavailable, "creating invoice", err)
	}

	if err := m.orders.SetMeta(ctx, order.ID, domain.MetaInvoiceID, created.ID); err != nil {
		return nil, domain.WrapError(domain.ErrorCodeStoreError, "linking invoice to order", err)
	}
	if err := m.orders.SetMeta(ctx, order.ID, domain.MetaRedirectLink, created.CheckoutLink); err != nil {
		return nil, domain.WrapError(domain.ErrorCodeStoreError, "storing invoice checkout link", err)
	}
	if err := m.orders.Commit(ctx, order.ID); err != nil {
		return nil, domain.WrapError(domain.ErrorCodeStoreError, "committing order", err)
	}

	m.logger.Info("Created invoice for order",
		zap.String("order_id", order.ID),
		zap.String("invoice_id", created.ID),
		zap.String("currency", currency),
		zap.String("amount", amount.String()),
	)
	observability.RecordInvoiceCreated()

	return created, nil
}

// invoiceAmount computes the invoice currency and amount. Promotion token
// gateways count one unit per line-item quantity instead of a fiat amount;
// sats-mode totals are converted to BTC.
func (m *Manager) invoiceAmount(order *domain.Order, gateway domain.Gateway) (string, decimal.Decimal) {
	if gateway.TokenType == domain.TokenTypePromotion {
		return gateway.PrimaryPaymentMethod, decimal.NewFromInt(int64(order.ItemQuantity))
	}
	return domain.NormalizeCurrency(order.Currency, order.Total)
}

// invoiceMetadata assembles invoice metadata: buyer data only when the
// customer-data flag allows it, POS data always
func (m *Manager) invoiceMetadata(ctx context.Context, order *domain.Order) map[string]interface{} {
	metadata := make(map[string]interface{})

	if m.cfg.Flag(ctx, ports.FlagSendCustomerData) && order.Billing != nil {
		metadata["buyerEmail"] = order.Billing.Email
		metadata["buyerName"] = order.Billing.Name
		metadata["buyerAddress1"] = order.Billing.Address1
		metadata["buyerAddress2"] = order.Billing.Address2
		metadata["buyerCity"] = order.Billing.City
		metadata["buyerState"] = order.Billing.State
		metadata["buyerZip"] = order.Billing.Zip
		metadata["buyerCountry"] = order.Billing.Country
	}

	metadata["taxIncluded"] = order.TaxIncluded.String()
	metadata["posData"] = map[string]interface{}{
		"orderId":        order.ID,
		"orderNumber":    order.Number,
		"orderUrl":       order.EditURL,
		"serviceVersion": m.version,
	}

	return metadata
}

// transactionSpeed returns the configured confirmation policy, falling back
// to the processor store default for unknown values
func (m *Manager) transactionSpeed(ctx context.Context) domain.TransactionSpeed {
	speed := m.cfg.TransactionSpeed(ctx)
	if !speed.Valid() {
		if speed != domain.SpeedDefault {
			m.logger.Debug("Unknown transaction speed configured, using processor store default",
				zap.String("speed", string(speed)),
			)
		}
		return domain.SpeedDefault
	}
	return speed
}

// methodSetsEqual compares payment-method sets ignoring order and the
// processor's "-" vs "_" spelling
func methodSetsEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}

	na := make([]string, len(a))
	nb := make([]string, len(b))
	for i, v := range a {
		na[i] = domain.NormalizeMethodSymbol(v)
	}
	for i, v := range b {
		nb[i] = domain.NormalizeMethodSymbol(v)
	}
	sort.Strings(na)
	sort.Strings(nb)

	for i := range na {
		if na[i] != nb[i] {
			return false
		}
	}
	return true
}
