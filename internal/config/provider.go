package config

import (
	"context"

	"github.com/commercekit/btcpay-reconciler/internal/domain"
	"github.com/commercekit/btcpay-reconciler/internal/domain/ports"
)

// Provider implements ports.ConfigProvider on top of the static environment
// configuration. Values are resolved at construction; a restart picks up
// changes.
type Provider struct {
	mapping domain.OrderStateMapping
	flags   map[string]bool
	speed   domain.TransactionSpeed
}

// NewProvider builds a ConfigProvider from the reconciler section
func NewProvider(cfg ReconcilerConfig) *Provider {
	return &Provider{
		mapping: cfg.OrderStateMapping(),
		flags: map[string]bool{
			ports.FlagProtectOrderStatus: cfg.ProtectOrderStatus,
			ports.FlagSendCustomerData:   cfg.SendCustomerData,
			ports.FlagRefundNoteVisible:  cfg.RefundNoteVisible,
			ports.FlagSeparateGateways:   cfg.SeparateGateways,
		},
		speed: domain.TransactionSpeed(cfg.TransactionSpeed),
	}
}

// OrderStateMapping returns the configured mapping table
func (p *Provider) OrderStateMapping(ctx context.Context) domain.OrderStateMapping {
	return p.mapping
}

// Flag returns the value of a named feature flag, false when unknown
func (p *Provider) Flag(ctx context.Context, name string) bool {
	return p.flags[name]
}

// TransactionSpeed returns the configured confirmation policy
func (p *Provider) TransactionSpeed(ctx context.Context) domain.TransactionSpeed {
	return p.speed
}
