package btcpay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/commercekit/btcpay-reconciler/internal/domain"
	"github.com/commercekit/btcpay-reconciler/internal/domain/ports"
	pkghttp "github.com/commercekit/btcpay-reconciler/pkg/http"
)

// Client talks to the BTCPay Server Greenfield API. It implements
// ports.ProcessorClient and performs no retries; callers decide whether a
// failure is surfaced for redelivery or logged as best effort.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a Greenfield API client. baseURL is the BTCPay Server
// root, e.g. "https://btcpay.example.com".
func NewClient(baseURL, apiKey string, httpClient *http.Client, logger *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = pkghttp.NewHTTPClient(pkghttp.ProcessorClientConfig(), 30*time.Second)
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: httpClient,
		logger:     logger,
	}
}

// InvoiceRedirectURL returns the hosted checkout URL for an invoice
func (c *Client) InvoiceRedirectURL(invoiceID string) string {
	return c.baseURL + "/i/" + url.PathEscape(invoiceID)
}

// Wire types. Greenfield encodes amounts as JSON strings.

type invoicePayload struct {
	ID           string `json:"id"`
	Status       string `json:"status"`
	Amount       string `json:"amount"`
	Currency     string `json:"currency"`
	CheckoutLink string `json:"checkoutLink"`
	Checkout     struct {
		PaymentMethods []string `json:"paymentMethods"`
	} `json:"checkout"`
}

func (p *invoicePayload) toDomain() *domain.Invoice {
	amount, _ := decimal.NewFromString(p.Amount)
	return &domain.Invoice{
		ID:             p.ID,
		Status:         domain.InvoiceStatus(p.Status),
		Currency:       p.Currency,
		Amount:         amount,
		CheckoutLink:   p.CheckoutLink,
		PaymentMethods: p.Checkout.PaymentMethods,
	}
}

type paymentMethodPayload struct {
	PaymentMethod     string `json:"paymentMethod"`
	Amount            string `json:"amount"`
	Due               string `json:"due"`
	TotalPaid         string `json:"totalPaid"`
	PaymentMethodPaid string `json:"paymentMethodPaid"`
	NetworkFee        string `json:"networkFee"`
	Rate              string `json:"rate"`
	Payments          []struct {
		ID           string `json:"id"`
		ReceivedDate int64  `json:"receivedDate"`
		Destination  string `json:"destination"`
		Value        string `json:"value"`
		Status       string `json:"status"`
		Fee          string `json:"fee"`
	} `json:"payments"`
}

type webhookPayload struct {
	ID                  string `json:"id"`
	URL                 string `json:"url"`
	Secret              string `json:"secret,omitempty"`
	Enabled             bool   `json:"enabled"`
	AutomaticRedelivery bool   `json:"automaticRedelivery"`
	AuthorizedEvents    struct {
		Everything     bool     `json:"everything"`
		SpecificEvents []string `json:"specificEvents"`
	} `json:"authorizedEvents"`
}

func (p *webhookPayload) toDomain() *domain.WebhookRegistration {
	events := make([]domain.WebhookEventType, len(p.AuthorizedEvents.SpecificEvents))
	for i, e := range p.AuthorizedEvents.SpecificEvents {
		events[i] = domain.WebhookEventType(e)
	}
	return &domain.WebhookRegistration{
		ID:      p.ID,
		URL:     p.URL,
		Secret:  p.Secret,
		Enabled: p.Enabled,
		Events:  events,
	}
}

// GetInvoice fetches an invoice by ID
func (c *Client) GetInvoice(ctx context.Context, storeID, invoiceID string) (*domain.Invoice, error) {
	var payload invoicePayload
	path := fmt.Sprintf("/api/v1/stores/%s/invoices/%s", url.PathEscape(storeID), url.PathEscape(invoiceID))
	if err := c.do(ctx, http.MethodGet, path, nil, &payload); err != nil {
		return nil, err
	}
	return payload.toDomain(), nil
}

// GetInvoicePaymentMethods fetches per-method payment totals and transactions
func (c *Client) GetInvoicePaymentMethods(ctx context.Context, storeID, invoiceID string) ([]domain.PaymentRecord, error) {
	var payloads []paymentMethodPayload
	path := fmt.Sprintf("/api/v1/stores/%s/invoices/%s/payment-methods", url.PathEscape(storeID), url.PathEscape(invoiceID))
	if err := c.do(ctx, http.MethodGet, path, nil, &payloads); err != nil {
		return nil, err
	}

	records := make([]domain.PaymentRecord, 0, len(payloads))
	for _, p := range payloads {
		record := domain.PaymentRecord{
			PaymentMethod: p.PaymentMethod,
			Amount:        parseAmount(p.Amount),
			Due:           parseAmount(p.Due),
			Paid:          parseAmount(p.PaymentMethodPaid),
			TotalPaid:     parseAmount(p.TotalPaid),
			NetworkFee:    parseAmount(p.NetworkFee),
			Rate:          parseAmount(p.Rate),
		}
		for _, trx := range p.Payments {
			record.Transactions = append(record.Transactions, domain.PaymentTransaction{
				TransactionID: trx.ID,
				ReceivedAt:    time.Unix(trx.ReceivedDate, 0).UTC(),
				Destination:   trx.Destination,
				Value:         parseAmount(trx.Value),
				Status:        trx.Status,
				NetworkFee:    parseAmount(trx.Fee),
			})
		}
		records = append(records, record)
	}
	return records, nil
}

// CreateInvoice creates a new invoice on the store
func (c *Client) CreateInvoice(ctx context.Context, storeID string, req ports.CreateInvoiceRequest) (*domain.Invoice, error) {
	metadata := make(map[string]interface{}, len(req.Metadata)+1)
	for k, v := range req.Metadata {
		metadata[k] = v
	}
	metadata["orderId"] = req.OrderNumber

	checkout := map[string]interface{}{
		"redirectURL": req.RedirectURL,
	}
	if len(req.PaymentMethods) > 0 {
		checkout["paymentMethods"] = req.PaymentMethods
	}
	if req.Speed != domain.SpeedDefault && req.Speed.Valid() {
		checkout["speedPolicy"] = string(req.Speed)
	}

	body := map[string]interface{}{
		"amount":   req.Amount.String(),
		"currency": req.Currency,
		"metadata": metadata,
		"checkout": checkout,
	}

	var payload invoicePayload
	path := fmt.Sprintf("/api/v1/stores/%s/invoices", url.PathEscape(storeID))
	if err := c.do(ctx, http.MethodPost, path, body, &payload); err != nil {
		return nil, err
	}
	return payload.toDomain(), nil
}

// MarkInvoiceInvalid marks an invoice Invalid on the processor
func (c *Client) MarkInvoiceInvalid(ctx context.Context, storeID, invoiceID string) error {
	c.logger.Debug("Marking invoice invalid", zap.String("invoice_id", invoiceID))
	body := map[string]string{"status": string(domain.InvoiceStatusInvalid)}
	path := fmt.Sprintf("/api/v1/stores/%s/invoices/%s/status", url.PathEscape(storeID), url.PathEscape(invoiceID))
	return c.do(ctx, http.MethodPost, path, body, nil)
}

// InvoiceFullyPaid reports whether the invoice has reached Settled status
func (c *Client) InvoiceFullyPaid(ctx context.Context, storeID, invoiceID string) (bool, error) {
	inv, err := c.GetInvoice(ctx, storeID, invoiceID)
	if err != nil {
		return false, err
	}
	return inv.Status == domain.InvoiceStatusSettled, nil
}

// CreatePullPayment creates a payout for a refund
func (c *Client) CreatePullPayment(ctx context.Context, storeID string, req ports.CreatePullPaymentRequest) (*domain.PullPayment, error) {
	body := map[string]interface{}{
		"name":     req.Name,
		"amount":   req.Amount.String(),
		"currency": req.Currency,
	}
	if len(req.PaymentMethods) > 0 {
		body["paymentMethods"] = req.PaymentMethods
	}

	var payload struct {
		ID       string `json:"id"`
		ViewLink string `json:"viewLink"`
		Amount   string `json:"amount"`
		Currency string `json:"currency"`
	}
	path := fmt.Sprintf("/api/v1/stores/%s/pull-payments", url.PathEscape(storeID))
	if err := c.do(ctx, http.MethodPost, path, body, &payload); err != nil {
		return nil, err
	}

	return &domain.PullPayment{
		ID:       payload.ID,
		ViewLink: payload.ViewLink,
		Amount:   parseAmount(payload.Amount),
		Currency: payload.Currency,
	}, nil
}

// GetServerInfo fetches version and sync state of the processor instance
func (c *Client) GetServerInfo(ctx context.Context) (*domain.ServerInfo, error) {
	var payload struct {
		Version      string `json:"version"`
		FullySynched bool   `json:"fullySynched"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/server/info", nil, &payload); err != nil {
		return nil, err
	}
	return &domain.ServerInfo{Version: payload.Version, FullySynched: payload.FullySynched}, nil
}

// GetCurrentAPIKey fetches the credential this client authenticates with
func (c *Client) GetCurrentAPIKey(ctx context.Context) (*domain.APIKey, error) {
	var payload struct {
		APIKey      string   `json:"apiKey"`
		Permissions []string `json:"permissions"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/api-keys/current", nil, &payload); err != nil {
		return nil, err
	}
	return &domain.APIKey{Key: payload.APIKey, Permissions: payload.Permissions}, nil
}

// GetWebhook fetches one webhook registration
func (c *Client) GetWebhook(ctx context.Context, storeID, webhookID string) (*domain.WebhookRegistration, error) {
	var payload webhookPayload
	path := fmt.Sprintf("/api/v1/stores/%s/webhooks/%s", url.PathEscape(storeID), url.PathEscape(webhookID))
	if err := c.do(ctx, http.MethodGet, path, nil, &payload); err != nil {
		return nil, err
	}
	return payload.toDomain(), nil
}

// CreateWebhook registers a webhook subscribed to the given events
func (c *Client) CreateWebhook(ctx context.Context, storeID, callbackURL string, events []domain.WebhookEventType) (*domain.WebhookRegistration, error) {
	var payload webhookPayload
	path := fmt.Sprintf("/api/v1/stores/%s/webhooks", url.PathEscape(storeID))
	if err := c.do(ctx, http.MethodPost, path, webhookBody(callbackURL, true, true, events), &payload); err != nil {
		return nil, err
	}
	return payload.toDomain(), nil
}

// UpdateWebhook updates an existing webhook registration
func (c *Client) UpdateWebhook(ctx context.Context, storeID string, reg domain.WebhookRegistration) (*domain.WebhookRegistration, error) {
	body := webhookBody(reg.URL, reg.Enabled, true, reg.Events)
	if reg.Secret != "" {
		body["secret"] = reg.Secret
	}

	var payload webhookPayload
	path := fmt.Sprintf("/api/v1/stores/%s/webhooks/%s", url.PathEscape(storeID), url.PathEscape(reg.ID))
	if err := c.do(ctx, http.MethodPut, path, body, &payload); err != nil {
		return nil, err
	}

	updated := payload.toDomain()
	if updated.Secret == "" {
		// The processor never echoes the secret back on update.
		updated.Secret = reg.Secret
	}
	return updated, nil
}

func webhookBody(callbackURL string, enabled, redelivery bool, events []domain.WebhookEventType) map[string]interface{} {
	specific := make([]string, len(events))
	for i, e := range events {
		specific[i] = string(e)
	}
	return map[string]interface{}{
		"url":                 callbackURL,
		"enabled":             enabled,
		"automaticRedelivery": redelivery,
		"authorizedEvents": map[string]interface{}{
			"everything":     false,
			"specificEvents": specific,
		},
	}
}

// do performs one API request. 404 on invoice lookups maps to the typed
// invoice-not-found error; any other non-2xx response is a processor error.
func (c *Client) do(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "token "+c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.WrapError(domain.ErrorCodeProcessorUnavailable, "request to processor failed", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.WrapError(domain.ErrorCodeProcessorUnavailable, "reading processor response", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return domain.ErrInvoiceNotFound.WithDetail("path", path)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("Processor API request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.ByteString("response", respBody),
		)
		return domain.NewDomainError(domain.ErrorCodeProcessorUnavailable,
			fmt.Sprintf("processor returned HTTP %d for %s %s", resp.StatusCode, method, path))
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return domain.WrapError(domain.ErrorCodeProcessorUnavailable, "decoding processor response", err)
		}
	}
	return nil
}

// parseAmount decodes a Greenfield amount string, treating absent values as zero
func parseAmount(s string) decimal.Decimal {
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
