package secrets

import (
	"context"

	"github.com/commercekit/btcpay-reconciler/internal/domain"
)

// EnvSecretSource serves a webhook secret loaded from the environment at
// startup. Suitable for development and single-instance deployments; use the
// Vault or AWS source when the secret must rotate without a restart.
type EnvSecretSource struct {
	secret string
}

// NewEnvSecretSource wraps a statically configured webhook secret
func NewEnvSecretSource(secret string) *EnvSecretSource {
	return &EnvSecretSource{secret: secret}
}

// WebhookSecret returns the configured secret
func (s *EnvSecretSource) WebhookSecret(ctx context.Context) (string, error) {
	if s.secret == "" {
		return "", domain.NewDomainError(domain.ErrorCodeValidationFailed, "webhook secret is not configured")
	}
	return s.secret, nil
}
