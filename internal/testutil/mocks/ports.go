// Package mocks provides shared mock implementations of the domain ports for
// testing.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/commercekit/btcpay-reconciler/internal/domain"
	"github.com/commercekit/btcpay-reconciler/internal/domain/ports"
)

// MockOrderStore mocks ports.OrderStore
type MockOrderStore struct {
	mock.Mock
}

func (m *MockOrderStore) FindByInvoiceID(ctx context.Context, invoiceID string) ([]domain.OrderRef, error) {
	args := m.Called(ctx, invoiceID)
	if refs, ok := args.Get(0).([]domain.OrderRef); ok {
		return refs, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockOrderStore) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	args := m.Called(ctx, orderID)
	if order, ok := args.Get(0).(*domain.Order); ok {
		return order, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockOrderStore) GetStatus(ctx context.Context, orderID string) (domain.OrderStatus, error) {
	args := m.Called(ctx, orderID)
	return args.Get(0).(domain.OrderStatus), args.Error(1)
}

func (m *MockOrderStore) SetStatus(ctx context.Context, orderID string, status domain.OrderStatus) error {
	args := m.Called(ctx, orderID, status)
	return args.Error(0)
}

func (m *MockOrderStore) AppendNote(ctx context.Context, orderID, note string, customerVisible bool) error {
	args := m.Called(ctx, orderID, note, customerVisible)
	return args.Error(0)
}

func (m *MockOrderStore) GetMeta(ctx context.Context, orderID, key string) (string, error) {
	args := m.Called(ctx, orderID, key)
	return args.String(0), args.Error(1)
}

func (m *MockOrderStore) SetMeta(ctx context.Context, orderID, key, value string) error {
	args := m.Called(ctx, orderID, key, value)
	return args.Error(0)
}

func (m *MockOrderStore) MarkPaymentComplete(ctx context.Context, orderID string) error {
	args := m.Called(ctx, orderID)
	return args.Error(0)
}

func (m *MockOrderStore) Commit(ctx context.Context, orderID string) error {
	args := m.Called(ctx, orderID)
	return args.Error(0)
}

// MockProcessorClient mocks ports.ProcessorClient
type MockProcessorClient struct {
	mock.Mock
}

func (m *MockProcessorClient) GetInvoice(ctx context.Context, storeID, invoiceID string) (*domain.Invoice, error) {
	args := m.Called(ctx, storeID, invoiceID)
	if inv, ok := args.Get(0).(*domain.Invoice); ok {
		return inv, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockProcessorClient) GetInvoicePaymentMethods(ctx context.Context, storeID, invoiceID string) ([]domain.PaymentRecord, error) {
	args := m.Called(ctx, storeID, invoiceID)
	if records, ok := args.Get(0).([]domain.PaymentRecord); ok {
		return records, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockProcessorClient) CreateInvoice(ctx context.Context, storeID string, req ports.CreateInvoiceRequest) (*domain.Invoice, error) {
	args := m.Called(ctx, storeID, req)
	if inv, ok := args.Get(0).(*domain.Invoice); ok {
		return inv, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockProcessorClient) MarkInvoiceInvalid(ctx context.Context, storeID, invoiceID string) error {
	args := m.Called(ctx, storeID, invoiceID)
	return args.Error(0)
}

func (m *MockProcessorClient) InvoiceFullyPaid(ctx context.Context, storeID, invoiceID string) (bool, error) {
	args := m.Called(ctx, storeID, invoiceID)
	return args.Bool(0), args.Error(1)
}

func (m *MockProcessorClient) CreatePullPayment(ctx context.Context, storeID string, req ports.CreatePullPaymentRequest) (*domain.PullPayment, error) {
	args := m.Called(ctx, storeID, req)
	if pp, ok := args.Get(0).(*domain.PullPayment); ok {
		return pp, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockProcessorClient) GetServerInfo(ctx context.Context) (*domain.ServerInfo, error) {
	args := m.Called(ctx)
	if info, ok := args.Get(0).(*domain.ServerInfo); ok {
		return info, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockProcessorClient) GetCurrentAPIKey(ctx context.Context) (*domain.APIKey, error) {
	args := m.Called(ctx)
	if key, ok := args.Get(0).(*domain.APIKey); ok {
		return key, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockProcessorClient) GetStorePaymentMethods(ctx context.Context, storeID string) ([]string, error) {
	args := m.Called(ctx, storeID)
	if methods, ok := args.Get(0).([]string); ok {
		return methods, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockProcessorClient) GetWebhook(ctx context.Context, storeID, webhookID string) (*domain.WebhookRegistration, error) {
	args := m.Called(ctx, storeID, webhookID)
	if reg, ok := args.Get(0).(*domain.WebhookRegistration); ok {
		return reg, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockProcessorClient) CreateWebhook(ctx context.Context, storeID, url string, events []domain.WebhookEventType) (*domain.WebhookRegistration, error) {
	args := m.Called(ctx, storeID, url, events)
	if reg, ok := args.Get(0).(*domain.WebhookRegistration); ok {
		return reg, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockProcessorClient) UpdateWebhook(ctx context.Context, storeID string, reg domain.WebhookRegistration) (*domain.WebhookRegistration, error) {
	args := m.Called(ctx, storeID, reg)
	if updated, ok := args.Get(0).(*domain.WebhookRegistration); ok {
		return updated, args.Error(1)
	}
	return nil, args.Error(1)
}

// MockConfigProvider mocks ports.ConfigProvider with plain fields instead of
// expectations; most tests just need fixed values
type MockConfigProvider struct {
	Mapping domain.OrderStateMapping
	Flags   map[string]bool
	Speed   domain.TransactionSpeed
}

func (m *MockConfigProvider) OrderStateMapping(ctx context.Context) domain.OrderStateMapping {
	return m.Mapping
}

func (m *MockConfigProvider) Flag(ctx context.Context, name string) bool {
	return m.Flags[name]
}

func (m *MockConfigProvider) TransactionSpeed(ctx context.Context) domain.TransactionSpeed {
	if m.Speed == "" {
		return domain.SpeedDefault
	}
	return m.Speed
}

// MockSecretSource mocks ports.SecretSource
type MockSecretSource struct {
	Secret string
	Err    error
}

func (m *MockSecretSource) WebhookSecret(ctx context.Context) (string, error) {
	return m.Secret, m.Err
}
