package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/joho/godotenv"

	"github.com/commercekit/btcpay-reconciler/internal/domain"
)

// Config holds all application configuration
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Processor  ProcessorConfig
	Webhook    WebhookConfig
	Reconciler ReconcilerConfig
	Logger     LoggerConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port        int
	Host        string
	MetricsPort int
	// PublicURL is the externally reachable base URL used when registering
	// the webhook on the processor
	PublicURL string
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int32
	MinConns int32
}

// RedisConfig holds Redis configuration for the payment-method cache
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// ProcessorConfig holds BTCPay Server connection configuration
type ProcessorConfig struct {
	BaseURL string // BTCPay Server root URL (e.g., https://btcpay.example.com)
	APIKey  string // Greenfield API key
	StoreID string // Store whose invoices this service reconciles
	Timeout int    // Request timeout in seconds (default: 30)
}

// WebhookConfig holds webhook secret-source configuration. Source selects
// where the shared secret comes from: "env", "vault" or "aws".
type WebhookConfig struct {
	Source string
	Secret string // used when Source is "env", or as the manual secret

	VaultAddress    string
	VaultToken      string
	VaultSecretPath string

	AWSRegion   string
	AWSSecretID string

	// RateLimit is the sustained deliveries-per-second the endpoint accepts;
	// RateBurst the burst on top of it
	RateLimit float64
	RateBurst int
}

// ReconcilerConfig holds the behavior switches of the reconciliation engine
type ReconcilerConfig struct {
	ProtectOrderStatus bool
	SendCustomerData   bool
	RefundNoteVisible  bool
	SeparateGateways   bool
	TransactionSpeed   string
	// StatusMapping overrides the default BTCPay-state to order-status
	// mapping, formatted "State=status" pairs separated by commas,
	// e.g. "New=pending,Expired=failed". Empty means defaults.
	StatusMapping string
}

// LoggerConfig holds logging configuration
type LoggerConfig struct {
	Level       string // debug, info, warn, error
	Development bool
}

// LoadFromEnv loads configuration from environment variables. A .env file in
// the working directory is honored when present.
func LoadFromEnv() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:        getEnvAsInt("SERVER_PORT", 8080),
			Host:        getEnv("SERVER_HOST", "0.0.0.0"),
			MetricsPort: getEnvAsInt("METRICS_PORT", 9090),
			PublicURL:   getEnv("PUBLIC_URL", ""),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			Database: getEnv("DB_NAME", "btcpay_reconciler"),
			SSLMode:  getEnv("DB_SSL_MODE", "disable"),
			MaxConns: int32(getEnvAsInt("DB_MAX_CONNS", 25)),
			MinConns: int32(getEnvAsInt("DB_MIN_CONNS", 5)),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Processor: ProcessorConfig{
			BaseURL: getEnv("BTCPAY_URL", ""),
			APIKey:  getEnv("BTCPAY_API_KEY", ""),
			StoreID: getEnv("BTCPAY_STORE_ID", ""),
			Timeout: getEnvAsInt("BTCPAY_TIMEOUT", 30),
		},
		Webhook: WebhookConfig{
			Source:          getEnv("WEBHOOK_SECRET_SOURCE", "env"),
			Secret:          getEnv("WEBHOOK_SECRET", ""),
			VaultAddress:    getEnv("VAULT_ADDR", ""),
			VaultToken:      getEnv("VAULT_TOKEN", ""),
			VaultSecretPath: getEnv("VAULT_SECRET_PATH", "btcpay-reconciler/webhook"),
			AWSRegion:       getEnv("AWS_REGION", "us-east-1"),
			AWSSecretID:     getEnv("AWS_WEBHOOK_SECRET_ID", ""),
			RateLimit:       getEnvAsFloat("WEBHOOK_RATE_LIMIT", 50),
			RateBurst:       getEnvAsInt("WEBHOOK_RATE_BURST", 100),
		},
		Reconciler: ReconcilerConfig{
			ProtectOrderStatus: getEnvAsBool("PROTECT_ORDER_STATUS", false),
			SendCustomerData:   getEnvAsBool("SEND_CUSTOMER_DATA", false),
			RefundNoteVisible:  getEnvAsBool("REFUND_NOTE_VISIBLE", false),
			SeparateGateways:   getEnvAsBool("SEPARATE_GATEWAYS", false),
			TransactionSpeed:   getEnv("TRANSACTION_SPEED", "default"),
			StatusMapping:      getEnv("STATUS_MAPPING", ""),
		},
		Logger: LoggerConfig{
			Level:       getEnv("LOG_LEVEL", "info"),
			Development: getEnvAsBool("LOG_DEVELOPMENT", false),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that required fields are present and well formed
func (c *Config) Validate() error {
	if err := validation.ValidateStruct(&c.Processor,
		validation.Field(&c.Processor.BaseURL, validation.Required, is.URL),
		validation.Field(&c.Processor.APIKey, validation.Required),
		validation.Field(&c.Processor.StoreID, validation.Required),
	); err != nil {
		return fmt.Errorf("processor config: %w", err)
	}

	if err := validation.ValidateStruct(&c.Database,
		validation.Field(&c.Database.Password, validation.Required),
	); err != nil {
		return fmt.Errorf("database config: %w", err)
	}

	if err := validation.ValidateStruct(&c.Webhook,
		validation.Field(&c.Webhook.Source, validation.Required, validation.In("env", "vault", "aws")),
	); err != nil {
		return fmt.Errorf("webhook config: %w", err)
	}

	switch c.Webhook.Source {
	case "vault":
		if c.Webhook.VaultAddress == "" {
			return fmt.Errorf("VAULT_ADDR is required when WEBHOOK_SECRET_SOURCE is vault")
		}
	case "aws":
		if c.Webhook.AWSSecretID == "" {
			return fmt.Errorf("AWS_WEBHOOK_SECRET_ID is required when WEBHOOK_SECRET_SOURCE is aws")
		}
	}

	if _, err := parseStatusMapping(c.Reconciler.StatusMapping); err != nil {
		return fmt.Errorf("reconciler config: %w", err)
	}

	return nil
}

// StatusMapping parses the configured mapping override. Validation has
// already run, so a parse failure here returns the defaults.
func (c *ReconcilerConfig) OrderStateMapping() domain.OrderStateMapping {
	mapping, err := parseStatusMapping(c.StatusMapping)
	if err != nil || mapping == nil {
		return domain.DefaultOrderStateMapping()
	}
	return domain.NormalizeOrderStateMapping(mapping)
}

// parseStatusMapping decodes "State=status,State=status" pairs. Empty input
// means no override. Unknown states or malformed pairs are rejected.
func parseStatusMapping(raw string) (domain.OrderStateMapping, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}

	known := make(map[domain.BTCPayState]bool, len(domain.AllStates))
	for _, s := range domain.AllStates {
		known[s] = true
	}

	mapping := make(domain.OrderStateMapping)
	for _, pair := range strings.Split(raw, ",") {
		parts := strings.SplitN(strings.TrimSpace(pair), "=", 2)
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			return nil, fmt.Errorf("malformed status mapping pair %q", pair)
		}
		state := domain.BTCPayState(parts[0])
		if !known[state] {
			return nil, fmt.Errorf("unknown invoice state %q in status mapping", parts[0])
		}
		mapping[state] = domain.OrderStatus(parts[1])
	}
	return mapping, nil
}

// ConnectionString returns PostgreSQL connection string
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}
