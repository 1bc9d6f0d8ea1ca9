package config

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/commercekit/btcpay-reconciler/internal/domain"
	"github.com/commercekit/btcpay-reconciler/internal/domain/ports"
)

func TestParseStatusMapping(t *testing.T) {
	t.Run("empty means no override", func(t *testing.T) {
		mapping, err := parseStatusMapping("")
		require.NoError(t, err)
		assert.Nil(t, mapping)
	})

	t.Run("valid pairs", func(t *testing.T) {
		mapping, err := parseStatusMapping("New=pending, Expired=failed")
		require.NoError(t, err)
		assert.Equal(t, domain.OrderStatusPending, mapping[domain.StateNew])
		assert.Equal(t, domain.OrderStatusFailed, mapping[domain.StateExpired])
	})

	t.Run("unknown state rejected", func(t *testing.T) {
		_, err := parseStatusMapping("Refunded=failed")
		assert.Error(t, err)
	})

	t.Run("malformed pair rejected", func(t *testing.T) {
		_, err := parseStatusMapping("New")
		assert.Error(t, err)
	})
}

func TestReconcilerConfig_OrderStateMapping(t *testing.T) {
	t.Run("no override yields defaults", func(t *testing.T) {
		cfg := ReconcilerConfig{}
		assert.Equal(t, domain.DefaultOrderStateMapping(), cfg.OrderStateMapping())
	})

	t.Run("partial override falls back to defaults whole", func(t *testing.T) {
		cfg := ReconcilerConfig{StatusMapping: "Expired=failed"}
		mapping := cfg.OrderStateMapping()
		// A mapping that does not cover every state is replaced entirely.
		assert.Equal(t, domain.OrderStatusCancelled, mapping[domain.StateExpired])
	})

	t.Run("complete override applies", func(t *testing.T) {
		cfg := ReconcilerConfig{
			StatusMapping: "New=pending,Processing=on-hold,Settled=completed," +
				"SettledPaidOver=processing,Invalid=failed,Expired=failed," +
				"ExpiredPaidPartial=failed,ExpiredPaidLate=processing",
		}
		mapping := cfg.OrderStateMapping()
		assert.Equal(t, domain.OrderStatusCompleted, mapping[domain.StateSettled])
		assert.Equal(t, domain.OrderStatusFailed, mapping[domain.StateExpired])
	})
}

func TestProvider(t *testing.T) {
	provider := NewProvider(ReconcilerConfig{
		ProtectOrderStatus: true,
		TransactionSpeed:   "HighSpeed",
	})

	ctx := context.Background()
	assert.True(t, provider.Flag(ctx, ports.FlagProtectOrderStatus))
	assert.False(t, provider.Flag(ctx, ports.FlagSendCustomerData))
	assert.False(t, provider.Flag(ctx, "unknown_flag"))
	assert.Equal(t, domain.SpeedHigh, provider.TransactionSpeed(ctx))
	assert.True(t, provider.OrderStateMapping(ctx).Complete())
}

func TestConfigValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Database:  DatabaseConfig{Password: "pw"},
			Processor: ProcessorConfig{BaseURL: "https://btcpay.example.com", APIKey: "key", StoreID: "store-1"},
			Webhook:   WebhookConfig{Source: "env"},
		}
	}

	t.Run("valid config passes", func(t *testing.T) {
		assert.NoError(t, valid().Validate())
	})

	t.Run("missing processor URL fails", func(t *testing.T) {
		cfg := valid()
		cfg.Processor.BaseURL = ""
		assert.Error(t, cfg.Validate())
	})

	t.Run("unknown secret source fails", func(t *testing.T) {
		cfg := valid()
		cfg.Webhook.Source = "gcp"
		assert.Error(t, cfg.Validate())
	})

	t.Run("vault source requires address", func(t *testing.T) {
		cfg := valid()
		cfg.Webhook.Source = "vault"
		assert.Error(t, cfg.Validate())

		cfg.Webhook.VaultAddress = "https://vault.example.com:8200"
		assert.NoError(t, cfg.Validate())
	})

	t.Run("bad status mapping fails", func(t *testing.T) {
		cfg := valid()
		cfg.Reconciler.StatusMapping = "Bogus=pending"
		assert.Error(t, cfg.Validate())
	})
}
