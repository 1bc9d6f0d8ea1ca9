package webhook

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/commercekit/btcpay-reconciler/internal/domain"
	"github.com/commercekit/btcpay-reconciler/internal/testutil/mocks"
)

const testStoreID = "store-1"

type mockRegistrationStore struct {
	mock.Mock
}

func (m *mockRegistrationStore) Load(ctx context.Context) (*domain.WebhookRegistration, error) {
	args := m.Called(ctx)
	if reg, ok := args.Get(0).(*domain.WebhookRegistration); ok {
		return reg, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockRegistrationStore) Save(ctx context.Context, reg *domain.WebhookRegistration) error {
	args := m.Called(ctx, reg)
	return args.Error(0)
}

func TestEnsureRegistered_TrustsManualRegistration(t *testing.T) {
	store := new(mockRegistrationStore)
	processor := new(mocks.MockProcessorClient)
	store.On("Load", mock.Anything).Return(&domain.WebhookRegistration{
		ID:     ManualRegistrationID,
		Secret: "manual-secret",
	}, nil)

	svc := NewRegistrationService(processor, store, testStoreID, zap.NewNop())
	reg, err := svc.EnsureRegistered(context.Background(), "https://shop.example.com/btcpay/webhook")

	require.NoError(t, err)
	assert.Equal(t, "manual-secret", reg.Secret)
	processor.AssertNotCalled(t, "GetWebhook", mock.Anything, mock.Anything, mock.Anything)
	processor.AssertNotCalled(t, "CreateWebhook", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestEnsureRegistered_ConfirmsExistingWebhook(t *testing.T) {
	store := new(mockRegistrationStore)
	processor := new(mocks.MockProcessorClient)
	stored := &domain.WebhookRegistration{
		ID:     "wh-1",
		URL:    "https://shop.example.com/btcpay/webhook",
		Secret: "s1",
	}
	store.On("Load", mock.Anything).Return(stored, nil)
	processor.On("GetWebhook", mock.Anything, testStoreID, "wh-1").Return(&domain.WebhookRegistration{
		ID:  "wh-1",
		URL: "https://shop.example.com/btcpay/webhook",
	}, nil)

	svc := NewRegistrationService(processor, store, testStoreID, zap.NewNop())
	reg, err := svc.EnsureRegistered(context.Background(), "https://shop.example.com/btcpay/webhook")

	require.NoError(t, err)
	assert.Equal(t, "wh-1", reg.ID)
	processor.AssertNotCalled(t, "CreateWebhook", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestEnsureRegistered_ReregistersWhenRemoteGone(t *testing.T) {
	store := new(mockRegistrationStore)
	processor := new(mocks.MockProcessorClient)
	store.On("Load", mock.Anything).Return(&domain.WebhookRegistration{
		ID:  "wh-old",
		URL: "https://shop.example.com/btcpay/webhook",
	}, nil)
	processor.On("GetWebhook", mock.Anything, testStoreID, "wh-old").
		Return(nil, errors.New("404 not found"))
	created := &domain.WebhookRegistration{
		ID:     "wh-new",
		URL:    "https://shop.example.com/btcpay/webhook",
		Secret: "fresh-secret",
		Events: domain.WebhookEvents,
	}
	processor.On("CreateWebhook", mock.Anything, testStoreID, "https://shop.example.com/btcpay/webhook", domain.WebhookEvents).
		Return(created, nil)
	store.On("Save", mock.Anything, created).Return(nil)

	svc := NewRegistrationService(processor, store, testStoreID, zap.NewNop())
	reg, err := svc.EnsureRegistered(context.Background(), "https://shop.example.com/btcpay/webhook")

	require.NoError(t, err)
	assert.Equal(t, "wh-new", reg.ID)
	store.AssertCalled(t, "Save", mock.Anything, created)
}

func TestEnsureRegistered_RegistersWhenNothingStored(t *testing.T) {
	store := new(mockRegistrationStore)
	processor := new(mocks.MockProcessorClient)
	store.On("Load", mock.Anything).Return(nil, nil)
	created := &domain.WebhookRegistration{ID: "wh-1", Secret: "s"}
	processor.On("CreateWebhook", mock.Anything, testStoreID, mock.Anything, domain.WebhookEvents).
		Return(created, nil)
	store.On("Save", mock.Anything, created).Return(nil)

	svc := NewRegistrationService(processor, store, testStoreID, zap.NewNop())
	reg, err := svc.EnsureRegistered(context.Background(), "https://shop.example.com/btcpay/webhook")

	require.NoError(t, err)
	assert.Equal(t, "wh-1", reg.ID)
}

func TestRegistrationSecretSource(t *testing.T) {
	t.Run("stored secret wins", func(t *testing.T) {
		store := new(mockRegistrationStore)
		store.On("Load", mock.Anything).Return(&domain.WebhookRegistration{Secret: "from-store"}, nil)

		source := NewRegistrationSecretSource(store, &mocks.MockSecretSource{Secret: "from-env"})
		secret, err := source.WebhookSecret(context.Background())

		require.NoError(t, err)
		assert.Equal(t, "from-store", secret)
	})

	t.Run("falls back when nothing stored", func(t *testing.T) {
		store := new(mockRegistrationStore)
		store.On("Load", mock.Anything).Return(nil, nil)

		source := NewRegistrationSecretSource(store, &mocks.MockSecretSource{Secret: "from-env"})
		secret, err := source.WebhookSecret(context.Background())

		require.NoError(t, err)
		assert.Equal(t, "from-env", secret)
	})
}
