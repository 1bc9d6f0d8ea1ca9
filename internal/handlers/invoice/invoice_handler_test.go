package invoice

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"github.com/commercekit/btcpay-reconciler/internal/domain"
	invoicesvc "github.com/commercekit/btcpay-reconciler/internal/services/invoice"
	"github.com/commercekit/btcpay-reconciler/internal/testutil/mocks"
)

const testStoreID = "store-1"

type handlerFixture struct {
	orders    *mocks.MockOrderStore
	processor *mocks.MockProcessorClient
	mux       *http.ServeMux
}

func newHandlerFixture() *handlerFixture {
	orders := new(mocks.MockOrderStore)
	processor := new(mocks.MockProcessorClient)
	cfg := &mocks.MockConfigProvider{Flags: map[string]bool{}}

	manager := invoicesvc.NewManager(processor, orders, cfg, testStoreID, "0.1.0", zap.NewNop())
	gateways := domain.NewGatewayRegistry([]domain.Gateway{{DisplayName: "BTCPay"}})

	mux := http.NewServeMux()
	NewHandler(manager, orders, gateways, zap.NewNop()).Register(mux)
	return &handlerFixture{orders: orders, processor: processor, mux: mux}
}

func (f *handlerFixture) do(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, req)
	return rec
}

func storedOrder() *domain.Order {
	return &domain.Order{
		ID:       "order-1",
		Number:   "1001",
		Status:   domain.OrderStatusPending,
		Currency: "EUR",
		Total:    decimal.NewFromFloat(49.90),
	}
}

func TestCreateInvoiceEndpoint(t *testing.T) {
	f := newHandlerFixture()
	f.orders.On("GetOrder", mock.Anything, "order-1").Return(storedOrder(), nil)
	f.orders.On("GetMeta", mock.Anything, "order-1", domain.MetaInvoiceID).Return("", nil)
	f.processor.On("CreateInvoice", mock.Anything, testStoreID, mock.Anything).Return(&domain.Invoice{
		ID:           "inv-1",
		CheckoutLink: "https://btcpay.example.com/i/inv-1",
	}, nil)
	f.orders.On("SetMeta", mock.Anything, "order-1", mock.Anything, mock.Anything).Return(nil)
	f.orders.On("Commit", mock.Anything, "order-1").Return(nil)

	rec := f.do(http.MethodPost, "/api/v1/orders/order-1/invoice", `{"redirectUrl":"https://shop.example.com/thanks"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "inv-1")
	assert.Contains(t, rec.Body.String(), "checkoutLink")
}

func TestCreateInvoiceEndpoint_OrderNotFound(t *testing.T) {
	f := newHandlerFixture()
	f.orders.On("GetOrder", mock.Anything, "missing").Return(nil, domain.ErrOrderNotFound)

	rec := f.do(http.MethodPost, "/api/v1/orders/missing/invoice", `{}`)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRefundEndpoint(t *testing.T) {
	f := newHandlerFixture()
	f.orders.On("GetOrder", mock.Anything, "order-1").Return(storedOrder(), nil)
	f.processor.On("GetServerInfo", mock.Anything).Return(&domain.ServerInfo{Version: "2.0.0"}, nil)
	f.processor.On("GetCurrentAPIKey", mock.Anything).Return(&domain.APIKey{
		Permissions: []string{domain.PermissionCreatePullPayments},
	}, nil)
	f.orders.On("GetMeta", mock.Anything, "order-1", domain.MetaInvoiceID).Return("inv-1", nil)
	f.processor.On("CreatePullPayment", mock.Anything, testStoreID, mock.Anything).Return(&domain.PullPayment{
		ID:       "pp-1",
		ViewLink: "https://btcpay.example.com/pull-payments/pp-1",
	}, nil)
	f.orders.On("AppendNote", mock.Anything, "order-1", mock.Anything, false).Return(nil)
	f.orders.On("SetMeta", mock.Anything, "order-1", mock.Anything, mock.Anything).Return(nil)
	f.orders.On("Commit", mock.Anything, "order-1").Return(nil)

	rec := f.do(http.MethodPost, "/api/v1/orders/order-1/refunds", `{"amount":"10.00","reason":"damaged item"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "pp-1")
}

func TestRefundEndpoint_InvalidAmount(t *testing.T) {
	f := newHandlerFixture()

	rec := f.do(http.MethodPost, "/api/v1/orders/order-1/refunds", `{"amount":"ten"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	f.orders.AssertNotCalled(t, "GetOrder", mock.Anything, mock.Anything)
}

func TestRefundEndpoint_MissingPermission(t *testing.T) {
	f := newHandlerFixture()
	f.orders.On("GetOrder", mock.Anything, "order-1").Return(storedOrder(), nil)
	f.processor.On("GetServerInfo", mock.Anything).Return(&domain.ServerInfo{Version: "2.0.0"}, nil)
	f.processor.On("GetCurrentAPIKey", mock.Anything).Return(&domain.APIKey{
		Permissions: []string{"btcpay.store.canviewinvoices"},
	}, nil)

	rec := f.do(http.MethodPost, "/api/v1/orders/order-1/refunds", `{"amount":"5"}`)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}
