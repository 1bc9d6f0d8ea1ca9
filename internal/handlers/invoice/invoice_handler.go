package invoice

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/commercekit/btcpay-reconciler/internal/domain"
	"github.com/commercekit/btcpay-reconciler/internal/domain/ports"
	invoicesvc "github.com/commercekit/btcpay-reconciler/internal/services/invoice"
)

// Handler exposes the invoice lifecycle over HTTP for the storefront:
// creating (or reusing) an invoice when an order reaches checkout and
// issuing refunds as pull payments.
type Handler struct {
	manager  *invoicesvc.Manager
	orders   ports.OrderStore
	gateways *domain.GatewayRegistry
	logger   *zap.Logger
}

// NewHandler creates the invoice lifecycle HTTP handler
func NewHandler(manager *invoicesvc.Manager, orders ports.OrderStore, gateways *domain.GatewayRegistry, logger *zap.Logger) *Handler {
	return &Handler{manager: manager, orders: orders, gateways: gateways, logger: logger}
}

// Register mounts the handler's routes on mux
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/orders/{orderID}/invoice", h.createInvoice)
	mux.HandleFunc("POST /api/v1/orders/{orderID}/refunds", h.refund)
}

type createInvoiceRequest struct {
	GatewayID   string `json:"gatewayId"`
	RedirectURL string `json:"redirectUrl"`
}

type createInvoiceResponse struct {
	InvoiceID    string `json:"invoiceId"`
	CheckoutLink string `json:"checkoutLink"`
}

func (h *Handler) createInvoice(w http.ResponseWriter, r *http.Request) {
	var req createInvoiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	order, err := h.orders.GetOrder(r.Context(), r.PathValue("orderID"))
	if err != nil {
		h.writeFailure(w, "Failed to load order for invoice creation", err)
		return
	}

	gateway := h.resolveGateway(req.GatewayID, order)

	created, err := h.manager.CreateOrReuseInvoice(r.Context(), order, gateway, req.RedirectURL)
	if err != nil {
		h.writeFailure(w, "Failed to create invoice", err)
		return
	}

	writeJSON(w, http.StatusOK, createInvoiceResponse{
		InvoiceID:    created.ID,
		CheckoutLink: created.CheckoutLink,
	})
}

type refundRequest struct {
	Amount string `json:"amount"`
	Reason string `json:"reason"`
}

type refundResponse struct {
	PullPaymentID string `json:"pullPaymentId"`
	ViewLink      string `json:"viewLink"`
}

func (h *Handler) refund(w http.ResponseWriter, r *http.Request) {
	var req refundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid refund amount")
		return
	}

	order, err := h.orders.GetOrder(r.Context(), r.PathValue("orderID"))
	if err != nil {
		h.writeFailure(w, "Failed to load order for refund", err)
		return
	}

	gateway := h.resolveGateway("", order)

	payout, err := h.manager.Refund(r.Context(), order, amount, req.Reason, gateway)
	if err != nil {
		h.writeFailure(w, "Failed to create refund", err)
		return
	}

	writeJSON(w, http.StatusOK, refundResponse{
		PullPaymentID: payout.ID,
		ViewLink:      payout.ViewLink,
	})
}

// resolveGateway picks the gateway variant for the request, preferring an
// explicit gateway ID, then the order's recorded payment method, then the
// unrestricted default gateway.
func (h *Handler) resolveGateway(gatewayID string, order *domain.Order) domain.Gateway {
	if gatewayID != "" {
		if g, ok := h.gateways.Lookup(gatewayID); ok {
			return g
		}
	}
	if g, ok := h.gateways.Lookup(order.PaymentMethod); ok {
		return g
	}
	return domain.Gateway{}
}

// writeFailure maps a service error onto an HTTP status
func (h *Handler) writeFailure(w http.ResponseWriter, msg string, err error) {
	status := statusForError(err)
	if status >= 500 {
		h.logger.Error(msg, zap.Error(err))
	} else {
		h.logger.Warn(msg, zap.Error(err))
	}
	writeError(w, status, err.Error())
}

func statusForError(err error) int {
	if errors.Is(err, domain.ErrOrderNotFound) {
		return http.StatusNotFound
	}
	switch domain.GetErrorCode(err) {
	case domain.ErrorCodeValidationFailed:
		return http.StatusBadRequest
	case domain.ErrorCodeOrderNotFound:
		return http.StatusNotFound
	case domain.ErrorCodeInsufficientPermission:
		return http.StatusForbidden
	case domain.ErrorCodeProcessorUnsupported:
		return http.StatusNotImplemented
	case domain.ErrorCodeProcessorUnavailable, domain.ErrorCodeInvoiceNotFound:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
