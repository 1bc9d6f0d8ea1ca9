package btcpay

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/commercekit/btcpay-reconciler/internal/domain/ports"
)

// paymentMethodCacheTTL bounds how stale the enabled payment-method list may
// get. Store configuration changes rarely, and a stale list only affects
// which gateways are offered, never reconciliation correctness.
const paymentMethodCacheTTL = 5 * time.Minute

// GetStorePaymentMethods returns the payment methods enabled on the store
func (c *Client) GetStorePaymentMethods(ctx context.Context, storeID string) ([]string, error) {
	var payloads []struct {
		PaymentMethod string `json:"paymentMethod"`
		Enabled       bool   `json:"enabled"`
	}
	path := fmt.Sprintf("/api/v1/stores/%s/payment-methods", url.PathEscape(storeID))
	if err := c.do(ctx, http.MethodGet, path, nil, &payloads); err != nil {
		return nil, err
	}

	methods := make([]string, 0, len(payloads))
	for _, p := range payloads {
		if p.Enabled {
			methods = append(methods, p.PaymentMethod)
		}
	}
	return methods, nil
}

// CachedClient wraps a ProcessorClient and caches the store payment-method
// list in Redis. Every other call passes through untouched.
type CachedClient struct {
	ports.ProcessorClient
	cache  *redis.Client
	logger *zap.Logger
}

// NewCachedClient decorates inner with a Redis-backed payment-method cache
func NewCachedClient(inner ports.ProcessorClient, cache *redis.Client, logger *zap.Logger) *CachedClient {
	return &CachedClient{
		ProcessorClient: inner,
		cache:           cache,
		logger:          logger,
	}
}

// GetStorePaymentMethods serves the payment-method list from cache when
// possible. Cache failures degrade to a direct API call.
func (c *CachedClient) GetStorePaymentMethods(ctx context.Context, storeID string) ([]string, error) {
	key := "btcpay:payment_methods:" + storeID

	cached, err := c.cache.Get(ctx, key).Result()
	if err == nil {
		var methods []string
		if err := json.Unmarshal([]byte(cached), &methods); err == nil {
			return methods, nil
		}
		c.logger.Warn("Discarding undecodable payment-method cache entry", zap.String("key", key))
	} else if err != redis.Nil {
		c.logger.Warn("Payment-method cache read failed", zap.Error(err))
	}

	methods, err := c.ProcessorClient.GetStorePaymentMethods(ctx, storeID)
	if err != nil {
		return nil, err
	}

	encoded, err := json.Marshal(methods)
	if err == nil {
		if err := c.cache.Set(ctx, key, encoded, paymentMethodCacheTTL).Err(); err != nil {
			c.logger.Warn("Payment-method cache write failed", zap.Error(err))
		}
	}

	return methods, nil
}
