package reconcile

import (
	"encoding/json"

	"github.com/commercekit/btcpay-reconciler/internal/domain"
)

// webhookPayload is the wire shape of a processor webhook delivery. Flags
// not applicable to the event type are simply absent.
type webhookPayload struct {
	Type            string `json:"type"`
	InvoiceID       string `json:"invoiceId"`
	AfterExpiration bool   `json:"afterExpiration"`
	OverPaid        bool   `json:"overPaid"`
	ManuallyMarked  bool   `json:"manuallyMarked"`
	PartiallyPaid   bool   `json:"partiallyPaid"`
}

// ParseEvent decodes a raw webhook body into a typed event. A missing
// invoice ID or type is a malformed payload; an unrecognized type is NOT an
// error, the event passes through and the engine no-ops it to stay forward
// compatible with new processor event types.
func ParseEvent(rawBody []byte) (domain.WebhookEvent, error) {
	var payload webhookPayload
	if err := json.Unmarshal(rawBody, &payload); err != nil {
		return domain.WebhookEvent{}, domain.WrapError(domain.ErrorCodePayloadMalformed, "decoding webhook payload", err)
	}

	if payload.InvoiceID == "" {
		return domain.WebhookEvent{}, domain.NewDomainError(domain.ErrorCodePayloadMalformed, "webhook payload missing invoiceId")
	}
	if payload.Type == "" {
		return domain.WebhookEvent{}, domain.NewDomainError(domain.ErrorCodePayloadMalformed, "webhook payload missing type")
	}

	return domain.WebhookEvent{
		Type:            domain.WebhookEventType(payload.Type),
		InvoiceID:       payload.InvoiceID,
		AfterExpiration: payload.AfterExpiration,
		OverPaid:        payload.OverPaid,
		ManuallyMarked:  payload.ManuallyMarked,
		PartiallyPaid:   payload.PartiallyPaid,
	}, nil
}
