package webhook

import (
	"context"

	"github.com/commercekit/btcpay-reconciler/internal/domain/ports"
)

// RegistrationSecretSource serves the webhook secret from the stored
// registration when one exists, falling back to the configured source. A
// webhook created automatically on the processor carries a processor-chosen
// secret, which must win over any statically configured one.
type RegistrationSecretSource struct {
	store    RegistrationStore
	fallback ports.SecretSource
}

// NewRegistrationSecretSource creates the combined secret source
func NewRegistrationSecretSource(store RegistrationStore, fallback ports.SecretSource) *RegistrationSecretSource {
	return &RegistrationSecretSource{store: store, fallback: fallback}
}

// WebhookSecret returns the signing secret for inbound deliveries
func (s *RegistrationSecretSource) WebhookSecret(ctx context.Context) (string, error) {
	reg, err := s.store.Load(ctx)
	if err == nil && reg != nil && reg.Secret != "" {
		return reg.Secret, nil
	}
	return s.fallback.WebhookSecret(ctx)
}
