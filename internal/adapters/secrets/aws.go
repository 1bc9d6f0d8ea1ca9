package secrets

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"go.uber.org/zap"
)

// AWSConfig contains configuration for the AWS Secrets Manager source
type AWSConfig struct {
	// AWS Region (e.g., "us-east-1")
	Region string

	// Optional: AWS profile name (for local development)
	Profile string

	// Optional: Custom endpoint (for LocalStack testing)
	Endpoint string

	// Secret name or full ARN holding the webhook secret
	SecretID string

	// Cache TTL for the secret (default: 5 minutes)
	CacheTTL time.Duration

	// Enable caching
	EnableCache bool
}

// DefaultAWSConfig returns default configuration
func DefaultAWSConfig(region, secretID string) *AWSConfig {
	return &AWSConfig{
		Region:      region,
		SecretID:    secretID,
		CacheTTL:    5 * time.Minute,
		EnableCache: true,
	}
}

// AWSSecretSource reads the webhook shared secret from AWS Secrets Manager
type AWSSecretSource struct {
	client *secretsmanager.Client
	config *AWSConfig
	logger *zap.Logger
	cache  *secretCache
}

// NewAWSSecretSource creates an AWS Secrets Manager-backed secret source
func NewAWSSecretSource(ctx context.Context, cfg *AWSConfig, logger *zap.Logger) (*AWSSecretSource, error) {
	var awsConfig aws.Config
	var err error

	if cfg.Profile != "" {
		awsConfig, err = config.LoadDefaultConfig(ctx,
			config.WithRegion(cfg.Region),
			config.WithSharedConfigProfile(cfg.Profile),
		)
	} else {
		// Default credentials chain (IAM role in production)
		awsConfig, err = config.LoadDefaultConfig(ctx,
			config.WithRegion(cfg.Region),
		)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	clientOptions := []func(*secretsmanager.Options){}
	if cfg.Endpoint != "" {
		clientOptions = append(clientOptions, func(o *secretsmanager.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}

	client := secretsmanager.NewFromConfig(awsConfig, clientOptions...)

	logger.Info("AWS Secrets Manager secret source initialized",
		zap.String("region", cfg.Region),
		zap.Bool("cache_enabled", cfg.EnableCache),
		zap.Duration("cache_ttl", cfg.CacheTTL),
	)

	return &AWSSecretSource{
		client: client,
		config: cfg,
		logger: logger,
		cache:  newSecretCache(cfg.EnableCache, cfg.CacheTTL),
	}, nil
}

// WebhookSecret returns the shared secret used to verify webhook signatures
func (s *AWSSecretSource) WebhookSecret(ctx context.Context) (string, error) {
	if cached, ok := s.cache.get(); ok {
		return cached, nil
	}

	input := &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(s.config.SecretID),
	}

	result, err := s.client.GetSecretValue(ctx, input)
	if err != nil {
		s.logger.Error("Failed to retrieve webhook secret",
			zap.String("secret_id", s.config.SecretID),
			zap.Error(err),
		)
		return "", fmt.Errorf("failed to get secret %s: %w", s.config.SecretID, err)
	}

	value := aws.ToString(result.SecretString)
	if value == "" {
		return "", fmt.Errorf("webhook secret %s is empty", s.config.SecretID)
	}

	s.cache.set(value)
	return value, nil
}
