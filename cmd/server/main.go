package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/commercekit/btcpay-reconciler/internal/adapters/btcpay"
	"github.com/commercekit/btcpay-reconciler/internal/adapters/postgres"
	"github.com/commercekit/btcpay-reconciler/internal/adapters/secrets"
	"github.com/commercekit/btcpay-reconciler/internal/config"
	"github.com/commercekit/btcpay-reconciler/internal/domain"
	"github.com/commercekit/btcpay-reconciler/internal/domain/ports"
	invoicehandler "github.com/commercekit/btcpay-reconciler/internal/handlers/invoice"
	webhookhandler "github.com/commercekit/btcpay-reconciler/internal/handlers/webhook"
	invoicesvc "github.com/commercekit/btcpay-reconciler/internal/services/invoice"
	"github.com/commercekit/btcpay-reconciler/internal/services/reconcile"
	webhooksvc "github.com/commercekit/btcpay-reconciler/internal/services/webhook"
	pkghttp "github.com/commercekit/btcpay-reconciler/pkg/http"
	"github.com/commercekit/btcpay-reconciler/pkg/middleware"
	"github.com/commercekit/btcpay-reconciler/pkg/observability"
)

const serviceVersion = "0.1.0"

func main() {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := initLogger(cfg.Logger)
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting BTCPay reconciler",
		zap.String("version", serviceVersion),
		zap.String("store_id", cfg.Processor.StoreID),
	)

	dbPool, err := initDatabase(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer dbPool.Close()
	logger.Info("Database connection established",
		zap.String("database", cfg.Database.Database),
	)

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer func() { _ = redisClient.Close() }()

	secretSource, err := initSecretSource(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize webhook secret source", zap.Error(err))
	}

	httpClient := pkghttp.NewHTTPClient(pkghttp.ProcessorClientConfig(),
		time.Duration(cfg.Processor.Timeout)*time.Second)
	greenfield := btcpay.NewClient(cfg.Processor.BaseURL, cfg.Processor.APIKey, httpClient, logger)
	processor := btcpay.NewCachedClient(greenfield, redisClient, logger)

	orderStore := postgres.NewOrderStore(dbPool, logger)
	provider := config.NewProvider(cfg.Reconciler)

	registrations := postgres.NewRegistrationStore(dbPool, cfg.Processor.StoreID)
	registration := webhooksvc.NewRegistrationService(processor, registrations,
		cfg.Processor.StoreID, logger)

	// Automatically registered webhooks carry a processor-chosen secret,
	// which takes precedence over the configured one.
	engineSecrets := webhooksvc.NewRegistrationSecretSource(registrations, secretSource)

	engine := reconcile.NewEngine(engineSecrets, orderStore, processor,
		provider, cfg.Processor.StoreID, logger)

	// The webhook must exist on the processor before deliveries can arrive.
	// When the secret source is env the registration secret is the manual
	// one; registering automatically only makes sense with a public URL.
	if cfg.Server.PublicURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		reg, err := registration.EnsureRegistered(ctx, cfg.Server.PublicURL+"/btcpay/webhook")
		cancel()
		if err != nil {
			logger.Warn("Webhook registration could not be confirmed; deliveries may not arrive",
				zap.Error(err),
			)
		} else {
			logger.Info("Webhook registration confirmed", zap.String("webhook_id", reg.ID))
		}
	}

	rateLimiter := middleware.NewRateLimiter(cfg.Webhook.RateLimit, cfg.Webhook.RateBurst, logger)
	defer rateLimiter.Shutdown()

	gateways := buildGatewayRegistry(processor, cfg, logger)
	manager := invoicesvc.NewManager(processor, orderStore, provider,
		cfg.Processor.StoreID, serviceVersion, logger)

	mux := http.NewServeMux()
	mux.Handle("/btcpay/webhook", rateLimiter.Middleware(webhookhandler.NewHandler(engine, logger)))
	invoicehandler.NewHandler(manager, orderStore, gateways, logger).Register(mux)

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	healthChecker := observability.NewHealthChecker(dbPool, redisClient)
	metricsServer := observability.StartMetricsServer(strconv.Itoa(cfg.Server.MetricsPort), healthChecker, logger)

	go func() {
		logger.Info("Webhook server listening", zap.String("address", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to serve HTTP", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}
	if err := observability.ShutdownMetricsServer(metricsServer); err != nil {
		logger.Error("Metrics server shutdown error", zap.Error(err))
	}

	logger.Info("Shutdown complete")
}

// initLogger initializes the logger
func initLogger(cfg config.LoggerConfig) *zap.Logger {
	if cfg.Development {
		logger, _ := zap.NewDevelopment()
		return logger
	}

	level := zapcore.InfoLevel
	if parsed, err := zapcore.ParseLevel(cfg.Level); err == nil {
		level = parsed
	}

	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	logger, _ := zapCfg.Build()
	return logger
}

// initDatabase initializes the PostgreSQL connection pool
func initDatabase(cfg *config.Config, logger *zap.Logger) (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	poolConfig, err := pgxpool.ParseConfig(cfg.Database.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}

	poolConfig.MaxConns = cfg.Database.MaxConns
	poolConfig.MinConns = cfg.Database.MinConns

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}

// buildGatewayRegistry assembles the gateway variants. The unrestricted
// default gateway is always present; with separate gateways enabled, one
// variant per enabled processor payment method is added alongside it.
func buildGatewayRegistry(processor ports.ProcessorClient, cfg *config.Config, logger *zap.Logger) *domain.GatewayRegistry {
	gateways := []domain.Gateway{{
		DisplayName: "BTCPay",
		TokenType:   domain.TokenTypePayment,
	}}

	if cfg.Reconciler.SeparateGateways {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		methods, err := processor.GetStorePaymentMethods(ctx, cfg.Processor.StoreID)
		if err != nil {
			logger.Warn("Failed to fetch store payment methods; only the default gateway is available",
				zap.Error(err),
			)
		}
		for _, method := range methods {
			symbol := domain.NormalizeMethodSymbol(method)
			gateways = append(gateways, domain.Gateway{
				Symbol:               symbol,
				DisplayName:          "BTCPay (" + method + ")",
				TokenType:            domain.TokenTypePayment,
				PrimaryPaymentMethod: method,
			})
		}
	}

	return domain.NewGatewayRegistry(gateways)
}

// initSecretSource selects the webhook secret backend from configuration
func initSecretSource(cfg *config.Config, logger *zap.Logger) (ports.SecretSource, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	switch cfg.Webhook.Source {
	case "vault":
		vaultCfg := secrets.DefaultVaultConfig(cfg.Webhook.VaultAddress, cfg.Webhook.VaultSecretPath)
		vaultCfg.Token = cfg.Webhook.VaultToken
		return secrets.NewVaultSecretSource(ctx, vaultCfg, logger)
	case "aws":
		awsCfg := secrets.DefaultAWSConfig(cfg.Webhook.AWSRegion, cfg.Webhook.AWSSecretID)
		return secrets.NewAWSSecretSource(ctx, awsCfg, logger)
	default:
		return secrets.NewEnvSecretSource(cfg.Webhook.Secret), nil
	}
}
