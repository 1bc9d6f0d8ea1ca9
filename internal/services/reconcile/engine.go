package reconcile

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/commercekit/btcpay-reconciler/internal/domain"
	"github.com/commercekit/btcpay-reconciler/internal/domain/ports"
	"github.com/commercekit/btcpay-reconciler/pkg/observability"
)

// Outcome is the result of handling one webhook delivery, translated to the
// HTTP response the processor's redelivery queue understands
type Outcome struct {
	Status  int
	Message string

	EventType domain.WebhookEventType
	OrderID   string
	Applied   bool
	Err       error
}

// Engine orchestrates signature verification, event parsing, order
// resolution, state mapping and persistence for inbound webhook deliveries.
// Handling is synchronous within the request; there is no queue. Every
// failure path either rejects the request permanently or returns 5xx so the
// processor redelivers later, which makes the whole handler safely
// retryable.
type Engine struct {
	secrets   ports.SecretSource
	resolver  *Resolver
	mapper    *StateMapper
	orders    ports.OrderStore
	processor ports.ProcessorClient
	cfg       ports.ConfigProvider
	storeID   string
	logger    *zap.Logger
}

// NewEngine creates a reconciliation engine
func NewEngine(
	secrets ports.SecretSource,
	orders ports.OrderStore,
	processor ports.ProcessorClient,
	cfg ports.ConfigProvider,
	storeID string,
	logger *zap.Logger,
) *Engine {
	return &Engine{
		secrets:   secrets,
		resolver:  NewResolver(orders, logger),
		mapper:    NewStateMapper(processor, storeID, logger),
		orders:    orders,
		processor: processor,
		cfg:       cfg,
		storeID:   storeID,
		logger:    logger,
	}
}

// Handle processes one raw webhook delivery end to end
func (e *Engine) Handle(ctx context.Context, rawBody []byte, signatureHeader string) Outcome {
	start := time.Now()
	outcome := e.handle(ctx, rawBody, signatureHeader)
	observability.RecordWebhookEvent(string(outcome.EventType), strconv.Itoa(outcome.Status), time.Since(start))
	return outcome
}

func (e *Engine) handle(ctx context.Context, rawBody []byte, signatureHeader string) Outcome {
	secret, err := e.secrets.WebhookSecret(ctx)
	if err != nil {
		e.logger.Error("Failed to load webhook secret", zap.Error(err))
		return Outcome{Status: http.StatusInternalServerError, Message: "configuration error", Err: err}
	}

	if !VerifySignature(rawBody, signatureHeader, secret) {
		e.logger.Warn("Webhook signature verification failed")
		return Outcome{
			Status:  http.StatusUnauthorized,
			Message: "invalid signature",
			Err:     domain.ErrSignatureInvalid,
		}
	}

	event, err := ParseEvent(rawBody)
	if err != nil {
		e.logger.Warn("Failed to parse webhook payload",
			zap.Error(err),
			zap.ByteString("payload", rawBody),
		)
		return Outcome{Status: http.StatusBadRequest, Message: "malformed payload", Err: err}
	}

	ref, err := e.resolver.Resolve(ctx, event.InvoiceID)
	switch {
	case err == nil:
		// continue
	case domain.IsDomainError(err, domain.ErrorCodeOrderNotFound):
		// 200 so the processor's delivery queue does not retry a
		// permanently unmatchable event forever.
		return Outcome{Status: http.StatusOK, Message: "no order found for invoice", EventType: event.Type, Err: err}
	case domain.IsDomainError(err, domain.ErrorCodeOrderForeignGateway):
		return Outcome{Status: http.StatusOK, Message: "order handled by another gateway", EventType: event.Type, Err: err}
	case domain.IsDomainError(err, domain.ErrorCodeOrderAmbiguous):
		return Outcome{Status: http.StatusBadRequest, Message: "multiple orders match invoice", EventType: event.Type, Err: err}
	default:
		return Outcome{Status: http.StatusInternalServerError, Message: "order lookup failed", EventType: event.Type, Err: err}
	}

	if !event.Recognized() {
		e.logger.Info("Webhook event received but ignored",
			zap.String("event_type", string(event.Type)),
			zap.String("invoice_id", event.InvoiceID),
		)
		return Outcome{Status: http.StatusOK, Message: "event type not handled", EventType: event.Type, OrderID: ref.ID}
	}

	current, err := e.orders.GetStatus(ctx, ref.ID)
	if err != nil {
		e.logger.Error("Failed to read order status",
			zap.Error(err),
			zap.String("order_id", ref.ID),
		)
		return Outcome{Status: http.StatusInternalServerError, Message: "order status read failed", EventType: event.Type, OrderID: ref.ID, Err: err}
	}

	mapping := domain.NormalizeOrderStateMapping(e.cfg.OrderStateMapping(ctx))
	protect := e.cfg.Flag(ctx, ports.FlagProtectOrderStatus)

	transition, err := e.mapper.NextStatus(ctx, current, event, mapping, protect)
	if err != nil {
		// Outbound processor failure: surface 5xx so the processor
		// redelivers once it is reachable again.
		e.logger.Error("Failed to compute order transition",
			zap.Error(err),
			zap.String("order_id", ref.ID),
			zap.String("event_type", string(event.Type)),
		)
		return Outcome{Status: http.StatusBadGateway, Message: "processor unavailable", EventType: event.Type, OrderID: ref.ID, Err: err}
	}

	if err := e.applyTransition(ctx, ref.ID, current, event, transition); err != nil {
		return Outcome{Status: http.StatusInternalServerError, Message: "order update failed", EventType: event.Type, OrderID: ref.ID, Err: err}
	}

	return Outcome{Status: http.StatusOK, Message: "ok", EventType: event.Type, OrderID: ref.ID, Applied: transition.Apply}
}

// applyTransition persists the computed transition: payment-complete side
// effect first, then the status change, then the note and any fresh payment
// metadata, then commit.
func (e *Engine) applyTransition(
	ctx context.Context,
	orderID string,
	current domain.OrderStatus,
	event domain.WebhookEvent,
	transition Transition,
) error {
	if transition.PaymentComplete {
		if err := e.orders.MarkPaymentComplete(ctx, orderID); err != nil {
			return domain.WrapError(domain.ErrorCodeStoreError, "marking payment complete", err)
		}
	}

	if transition.Apply {
		e.logger.Info("Updating order status",
			zap.String("order_id", orderID),
			zap.String("from", string(current)),
			zap.String("to", string(transition.NewStatus)),
			zap.String("event_type", string(event.Type)),
		)
		if err := e.orders.SetStatus(ctx, orderID, transition.NewStatus); err != nil {
			return domain.WrapError(domain.ErrorCodeStoreError, "updating order status", err)
		}
		observability.RecordStatusTransition(string(current), string(transition.NewStatus))
	}

	if transition.Note != "" {
		if err := e.orders.AppendNote(ctx, orderID, transition.Note, false); err != nil {
			return domain.WrapError(domain.ErrorCodeStoreError, "appending order note", err)
		}
	}

	// Payment metadata refresh is best effort: the facts can be re-fetched
	// on the next delivery, so a processor hiccup here must not fail an
	// otherwise applied transition.
	if event.CarriesPaymentFacts() {
		if err := e.refreshPaymentMeta(ctx, orderID, event.InvoiceID); err != nil {
			e.logger.Warn("Failed to refresh payment metadata",
				zap.Error(err),
				zap.String("order_id", orderID),
				zap.String("invoice_id", event.InvoiceID),
			)
		}
	}

	if err := e.orders.Commit(ctx, orderID); err != nil {
		return domain.WrapError(domain.ErrorCodeStoreError, "committing order", err)
	}

	return nil
}

// refreshPaymentMeta fetches per-payment-method totals and transactions from
// the processor and mirrors them into order metadata
func (e *Engine) refreshPaymentMeta(ctx context.Context, orderID, invoiceID string) error {
	records, err := e.processor.GetInvoicePaymentMethods(ctx, e.storeID, invoiceID)
	if err != nil {
		return fmt.Errorf("fetching invoice payment methods: %w", err)
	}

	for _, record := range records {
		if !record.HasPayments() {
			continue
		}

		method := domain.NormalizeMethodSymbol(record.PaymentMethod)
		prefix := "BTCPay_" + method

		meta := map[string]string{
			prefix + "_total_paid":   record.TotalPaid.String(),
			prefix + "_total_amount": record.Amount.String(),
			prefix + "_total_due":    record.Due.String(),
			prefix + "_total_fee":    record.NetworkFee.String(),
			prefix + "_rate":         record.Rate.String(),
		}
		if record.Rate.IsPositive() {
			meta[prefix+"_rateFormatted"] = record.Rate.StringFixed(2)
		}

		// One entry per actual payment, keyed by index, append-only.
		for i, trx := range record.Transactions {
			key := fmt.Sprintf("%s_%d", prefix, i)
			meta[key+"_id"] = trx.TransactionID
			meta[key+"_timestamp"] = strconv.FormatInt(trx.ReceivedAt.Unix(), 10)
			meta[key+"_destination"] = trx.Destination
			meta[key+"_amount"] = trx.Value.String()
			meta[key+"_status"] = trx.Status
			meta[key+"_networkFee"] = trx.NetworkFee.String()
		}

		for key, value := range meta {
			if err := e.orders.SetMeta(ctx, orderID, key, value); err != nil {
				return fmt.Errorf("writing payment metadata %s: %w", key, err)
			}
		}
	}

	return nil
}
