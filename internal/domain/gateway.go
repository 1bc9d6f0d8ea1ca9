package domain

import "strings"

// TokenType distinguishes how a gateway denominates its invoices
type TokenType string

const (
	// TokenTypePayment creates invoices in the order currency and total
	TokenTypePayment TokenType = "payment"
	// TokenTypePromotion creates invoices counted per line-item quantity,
	// one token unit per item, instead of a fiat amount
	TokenTypePromotion TokenType = "promotion"
)

// Gateway is one parametrized payment gateway variant. Variants are plain
// data selected from a registry; there is one per enabled processor payment
// method instead of a generated class per method.
type Gateway struct {
	Symbol               string // payment method code, "-" normalized to "_", e.g. BTC_LightningNetwork
	DisplayName          string
	TokenType            TokenType
	PrimaryPaymentMethod string // promotion gateways use this as the invoice currency
}

// ID returns the gateway identifier recorded on orders as payment method
func (g Gateway) ID() string {
	return GatewayIDPrefix + g.Symbol
}

// PaymentMethods returns the processor payment-method codes this gateway
// restricts its invoices to. An empty symbol means no restriction.
func (g Gateway) PaymentMethods() []string {
	if g.Symbol == "" {
		return nil
	}
	return []string{g.Symbol}
}

// NormalizeMethodSymbol converts a processor payment-method code into the
// symbol form used in gateway IDs and metadata keys
func NormalizeMethodSymbol(method string) string {
	return strings.ReplaceAll(method, "-", "_")
}

// GatewayRegistry holds the configured gateway variants keyed by ID
type GatewayRegistry struct {
	gateways map[string]Gateway
}

// NewGatewayRegistry builds a registry from a list of gateway definitions
func NewGatewayRegistry(gateways []Gateway) *GatewayRegistry {
	byID := make(map[string]Gateway, len(gateways))
	for _, g := range gateways {
		g.Symbol = NormalizeMethodSymbol(g.Symbol)
		byID[g.ID()] = g
	}
	return &GatewayRegistry{gateways: byID}
}

// Lookup returns the gateway for a payment method identifier
func (r *GatewayRegistry) Lookup(gatewayID string) (Gateway, bool) {
	g, ok := r.gateways[gatewayID]
	return g, ok
}

// All returns every registered gateway
func (r *GatewayRegistry) All() []Gateway {
	out := make([]Gateway, 0, len(r.gateways))
	for _, g := range r.gateways {
		out = append(out, g)
	}
	return out
}
