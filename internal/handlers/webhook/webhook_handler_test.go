package webhook

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"github.com/commercekit/btcpay-reconciler/internal/domain"
	"github.com/commercekit/btcpay-reconciler/internal/services/reconcile"
	"github.com/commercekit/btcpay-reconciler/internal/testutil/mocks"
)

const testSecret = "whsec-handler-test"

func newTestHandler(orders *mocks.MockOrderStore, processor *mocks.MockProcessorClient) *Handler {
	engine := reconcile.NewEngine(
		&mocks.MockSecretSource{Secret: testSecret},
		orders, processor,
		&mocks.MockConfigProvider{Flags: map[string]bool{}},
		"store-1", zap.NewNop(),
	)
	return NewHandler(engine, zap.NewNop())
}

func TestHandler_RejectsNonPost(t *testing.T) {
	handler := newTestHandler(new(mocks.MockOrderStore), new(mocks.MockProcessorClient))

	req := httptest.NewRequest(http.MethodGet, "/btcpay/webhook", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHandler_UnsignedDeliveryRejected(t *testing.T) {
	orders := new(mocks.MockOrderStore)
	handler := newTestHandler(orders, new(mocks.MockProcessorClient))

	req := httptest.NewRequest(http.MethodPost, "/btcpay/webhook",
		strings.NewReader(`{"type":"InvoiceSettled","invoiceId":"inv-1"}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid signature")
	orders.AssertNotCalled(t, "FindByInvoiceID", mock.Anything, mock.Anything)
}

func TestHandler_SignedDeliveryProcessed(t *testing.T) {
	orders := new(mocks.MockOrderStore)
	processor := new(mocks.MockProcessorClient)
	orders.On("FindByInvoiceID", mock.Anything, "inv-1").Return([]domain.OrderRef{
		{ID: "order-1", PaymentMethod: "btcpay_default", Status: domain.OrderStatusPending},
	}, nil)
	orders.On("GetStatus", mock.Anything, "order-1").Return(domain.OrderStatusPending, nil)
	orders.On("SetStatus", mock.Anything, "order-1", domain.OrderStatusCancelled).Return(nil)
	orders.On("AppendNote", mock.Anything, "order-1", mock.Anything, false).Return(nil)
	orders.On("Commit", mock.Anything, "order-1").Return(nil)

	handler := newTestHandler(orders, processor)

	body := `{"type":"InvoiceExpired","invoiceId":"inv-1"}`
	req := httptest.NewRequest(http.MethodPost, "/btcpay/webhook", strings.NewReader(body))
	req.Header.Set(SignatureHeader, reconcile.SignPayload([]byte(body), testSecret))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "requestId")
	orders.AssertCalled(t, "SetStatus", mock.Anything, "order-1", domain.OrderStatusCancelled)
}
