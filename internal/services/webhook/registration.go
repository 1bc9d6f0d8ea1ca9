package webhook

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/commercekit/btcpay-reconciler/internal/domain"
	"github.com/commercekit/btcpay-reconciler/internal/domain/ports"
)

// ManualRegistrationID marks a webhook whose secret was entered by hand.
// Manual registrations cannot be queried on the processor (the API key may
// lack webhook permissions), so they are trusted as long as the secret is set.
const ManualRegistrationID = "manual"

// RegistrationStore persists the local copy of the processor-side webhook
// subscription
type RegistrationStore interface {
	Load(ctx context.Context) (*domain.WebhookRegistration, error)
	Save(ctx context.Context, reg *domain.WebhookRegistration) error
}

// RegistrationService keeps the processor-side webhook subscription that
// feeds the reconciliation engine in sync with the local record
type RegistrationService struct {
	processor ports.ProcessorClient
	store     RegistrationStore
	storeID   string
	logger    *zap.Logger
}

// NewRegistrationService creates a webhook registration service
func NewRegistrationService(processor ports.ProcessorClient, store RegistrationStore, storeID string, logger *zap.Logger) *RegistrationService {
	return &RegistrationService{
		processor: processor,
		store:     store,
		storeID:   storeID,
		logger:    logger,
	}
}

// EnsureRegistered verifies the stored webhook still exists on the processor
// and points at callbackURL, registering a new one when it does not. The
// returned registration carries the secret used for signature verification.
func (s *RegistrationService) EnsureRegistered(ctx context.Context, callbackURL string) (*domain.WebhookRegistration, error) {
	stored, err := s.store.Load(ctx)
	if err != nil {
		return nil, domain.WrapError(domain.ErrorCodeStoreError, "loading webhook registration", err)
	}

	if stored != nil && s.registrationValid(ctx, stored) {
		return stored, nil
	}

	return s.register(ctx, callbackURL)
}

// registrationValid checks a stored registration against the processor
func (s *RegistrationService) registrationValid(ctx context.Context, stored *domain.WebhookRegistration) bool {
	if stored.ID == ManualRegistrationID && stored.Secret != "" {
		s.logger.Debug("Using manually configured webhook registration")
		return true
	}

	remote, err := s.processor.GetWebhook(ctx, s.storeID, stored.ID)
	if err != nil {
		s.logger.Warn("Failed to fetch existing webhook from processor",
			zap.Error(err),
			zap.String("webhook_id", stored.ID),
		)
		return false
	}

	// The URL may have been edited on the processor side, which would make
	// deliveries stop reaching this service.
	if remote.ID == stored.ID && strings.Contains(remote.URL, stored.URL) {
		s.logger.Debug("Existing webhook registration confirmed",
			zap.String("webhook_id", stored.ID),
		)
		return true
	}

	return false
}

// register creates a new webhook on the processor subscribed to the invoice
// events this engine reconciles, and stores it locally
func (s *RegistrationService) register(ctx context.Context, callbackURL string) (*domain.WebhookRegistration, error) {
	created, err := s.processor.CreateWebhook(ctx, s.storeID, callbackURL, domain.WebhookEvents)
	if err != nil {
		return nil, domain.WrapError(domain.ErrorCodeProcessorUnavailable, "creating webhook on processor", err)
	}

	if err := s.store.Save(ctx, created); err != nil {
		return nil, domain.WrapError(domain.ErrorCodeStoreError, "saving webhook registration", err)
	}

	s.logger.Info("Registered webhook on processor",
		zap.String("webhook_id", created.ID),
		zap.String("url", created.URL),
	)

	return created, nil
}

// Update pushes changed registration settings (URL, enabled, events) to the
// processor and stores the result
func (s *RegistrationService) Update(ctx context.Context, reg domain.WebhookRegistration) (*domain.WebhookRegistration, error) {
	if len(reg.Events) == 0 {
		reg.Events = domain.WebhookEvents
	}

	updated, err := s.processor.UpdateWebhook(ctx, s.storeID, reg)
	if err != nil {
		return nil, domain.WrapError(domain.ErrorCodeProcessorUnavailable, "updating webhook on processor", err)
	}

	if err := s.store.Save(ctx, updated); err != nil {
		return nil, domain.WrapError(domain.ErrorCodeStoreError, "saving webhook registration", err)
	}

	return updated, nil
}
