package ports

import "context"

// SecretSource supplies the shared webhook secret used to verify inbound
// deliveries. Backed by env, Vault or AWS Secrets Manager.
type SecretSource interface {
	WebhookSecret(ctx context.Context) (string, error)
}
