package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/commercekit/btcpay-reconciler/internal/domain"
)

// RegistrationStore persists the local record of the processor-side webhook
// subscription. One row per processor store.
type RegistrationStore struct {
	pool    *pgxpool.Pool
	storeID string
}

// NewRegistrationStore creates a PostgreSQL-backed webhook registration store
func NewRegistrationStore(pool *pgxpool.Pool, storeID string) *RegistrationStore {
	return &RegistrationStore{pool: pool, storeID: storeID}
}

// Load returns the stored registration, nil when none exists
func (s *RegistrationStore) Load(ctx context.Context) (*domain.WebhookRegistration, error) {
	var (
		reg    domain.WebhookRegistration
		events []string
	)
	err := s.pool.QueryRow(ctx, `
		SELECT webhook_id, url, secret, enabled, events
		FROM webhook_registrations
		WHERE store_id = $1`,
		s.storeID).Scan(&reg.ID, &reg.URL, &reg.Secret, &reg.Enabled, &events)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load webhook registration: %w", err)
	}

	reg.Events = make([]domain.WebhookEventType, len(events))
	for i, e := range events {
		reg.Events[i] = domain.WebhookEventType(e)
	}
	return &reg, nil
}

// Save upserts the registration for this store
func (s *RegistrationStore) Save(ctx context.Context, reg *domain.WebhookRegistration) error {
	events := make([]string, len(reg.Events))
	for i, e := range reg.Events {
		events[i] = string(e)
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO webhook_registrations (store_id, webhook_id, url, secret, enabled, events, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())
		ON CONFLICT (store_id) DO UPDATE SET
			webhook_id = EXCLUDED.webhook_id,
			url        = EXCLUDED.url,
			secret     = EXCLUDED.secret,
			enabled    = EXCLUDED.enabled,
			events     = EXCLUDED.events,
			updated_at = now()`,
		s.storeID, reg.ID, reg.URL, reg.Secret, reg.Enabled, events)
	if err != nil {
		return fmt.Errorf("save webhook registration: %w", err)
	}
	return nil
}
