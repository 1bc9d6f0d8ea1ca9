package webhook

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/commercekit/btcpay-reconciler/internal/services/reconcile"
)

// SignatureHeader carries the HMAC of the request body, hex encoded with a
// "sha256=" prefix
const SignatureHeader = "BTCPay-Sig"

// maxBodySize bounds webhook payloads; deliveries are small JSON documents
const maxBodySize = 1 << 20

// Handler exposes the reconciliation engine as the webhook callback endpoint
type Handler struct {
	engine *reconcile.Engine
	logger *zap.Logger
}

// NewHandler creates the webhook HTTP handler
func NewHandler(engine *reconcile.Engine, logger *zap.Logger) *Handler {
	return &Handler{engine: engine, logger: logger}
}

// ServeHTTP handles one webhook delivery. The raw body is read before any
// parsing because the signature covers the exact bytes sent.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	requestID := uuid.NewString()
	logger := h.logger.With(zap.String("request_id", requestID))

	rawBody, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		logger.Warn("Failed to read webhook body", zap.Error(err))
		writeResponse(w, requestID, http.StatusBadRequest, "unable to read request body")
		return
	}

	outcome := h.engine.Handle(r.Context(), rawBody, r.Header.Get(SignatureHeader))

	if outcome.Err != nil && outcome.Status >= 500 {
		logger.Error("Webhook handling failed",
			zap.Error(outcome.Err),
			zap.Int("status", outcome.Status),
			zap.String("event_type", string(outcome.EventType)),
			zap.String("order_id", outcome.OrderID),
		)
	} else {
		logger.Info("Webhook handled",
			zap.Int("status", outcome.Status),
			zap.String("event_type", string(outcome.EventType)),
			zap.String("order_id", outcome.OrderID),
			zap.Bool("applied", outcome.Applied),
		)
	}

	writeResponse(w, requestID, outcome.Status, outcome.Message)
}

// writeResponse emits the JSON body the processor's delivery log displays
func writeResponse(w http.ResponseWriter, requestID string, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"requestId": requestID,
		"message":   message,
	})
}
