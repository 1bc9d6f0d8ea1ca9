package domain

// WebhookEventType identifies the kind of invoice event delivered by the
// processor
type WebhookEventType string

const (
	EventInvoiceReceivedPayment WebhookEventType = "InvoiceReceivedPayment"
	EventInvoicePaymentSettled  WebhookEventType = "InvoicePaymentSettled"
	EventInvoiceProcessing      WebhookEventType = "InvoiceProcessing"
	EventInvoiceExpired         WebhookEventType = "InvoiceExpired"
	EventInvoiceSettled         WebhookEventType = "InvoiceSettled"
	EventInvoiceInvalid         WebhookEventType = "InvoiceInvalid"
)

// WebhookEvents lists the event types this service subscribes to when
// registering a webhook on the processor
var WebhookEvents = []WebhookEventType{
	EventInvoiceReceivedPayment,
	EventInvoicePaymentSettled,
	EventInvoiceProcessing,
	EventInvoiceExpired,
	EventInvoiceSettled,
	EventInvoiceInvalid,
}

// WebhookEvent is a parsed webhook delivery. Unknown event types are kept
// (Type holds the raw string) so the engine can no-op them explicitly rather
// than rejecting forward-compatible deliveries.
type WebhookEvent struct {
	Type      WebhookEventType
	InvoiceID string

	// Type-specific flags. The processor only sets the ones relevant to
	// the event type; the rest stay false.
	AfterExpiration bool
	OverPaid        bool
	ManuallyMarked  bool
	PartiallyPaid   bool
}

// Recognized reports whether the event type is one this engine reconciles
func (e WebhookEvent) Recognized() bool {
	switch e.Type {
	case EventInvoiceReceivedPayment, EventInvoicePaymentSettled,
		EventInvoiceProcessing, EventInvoiceExpired,
		EventInvoiceSettled, EventInvoiceInvalid:
		return true
	}
	return false
}

// CarriesPaymentFacts reports whether the event implies new payment data
// exists on the processor. Payment metadata is refreshed for these events
// regardless of whether the order status changes.
func (e WebhookEvent) CarriesPaymentFacts() bool {
	switch e.Type {
	case EventInvoiceReceivedPayment, EventInvoicePaymentSettled, EventInvoiceSettled:
		return true
	}
	return false
}
