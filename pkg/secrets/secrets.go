// Package secrets resolves named credentials from the process environment or
// AWS Secrets Manager.
package secrets

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"

	"histopost/pkg/awsutil"
	"histopost/pkg/config"
	"histopost/pkg/failure"
)

// Provider looks up one secret value by name.
type Provider interface {
	Get(ctx context.Context, name string) (string, error)
}

func New(ctx context.Context, cfg config.SecretsConfig) (Provider, error) {
	providerID := cfg.Provider
	if providerID == "" {
		providerID = "env"
	}

	secretsLogger().Debug("Resolving secrets provider", "provider", providerID)

	switch providerID {
	case "env":
		return Env{}, nil
	case "awssm":
		awsCfg, err := awsutil.LoadConfig(ctx, cfg.Region)
		if err != nil {
			return nil, failure.Wrap(failure.Configuration, "secrets manager", err)
		}
		return NewSecretsManager(secretsmanager.NewFromConfig(awsCfg)), nil
	default:
		return nil, fmt.Errorf("unsupported secrets provider: %s", providerID)
	}
}

// Env reads secrets from environment variables of the same name.
type Env struct{}

func (Env) Get(ctx context.Context, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", failure.New(failure.Configuration, "secret name is required")
	}

	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		secretsLogger().ErrorContext(ctx, "Secret is not set", "name", name, "provider", "env")
		return "", failure.New(failure.Configuration, fmt.Sprintf("secret %s is not set", name))
	}

	return value, nil
}

type getSecretValueAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// SecretsManager reads string secrets from AWS Secrets Manager.
type SecretsManager struct {
	api getSecretValueAPI
}

func NewSecretsManager(api getSecretValueAPI) *SecretsManager {
	return &SecretsManager{api: api}
}

func (s *SecretsManager) Get(ctx context.Context, name string) (string, error) {
	log := secretsLogger().With("name", name, "provider", "awssm")

	name = strings.TrimSpace(name)
	if name == "" {
		return "", failure.New(failure.Configuration, "secret name is required")
	}

	out, err := s.api.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{SecretId: aws.String(name)})
	if err != nil {
		if code, msg, ok := awsutil.APIError(err); ok {
			log.ErrorContext(ctx, "Secrets Manager API error", "code", code, "message", msg)
		} else {
			log.ErrorContext(ctx, "Secrets Manager request failed", "error", err)
		}
		// Any lookup failure means the publisher is misconfigured for this run.
		return "", failure.Wrap(failure.Configuration, "get secret "+name, err)
	}

	value := strings.TrimSpace(aws.ToString(out.SecretString))
	if value == "" {
		log.ErrorContext(ctx, "Secret has no string value")
		return "", failure.New(failure.Configuration, fmt.Sprintf("secret %s has no string value", name))
	}

	return value, nil
}

func secretsLogger() *slog.Logger {
	return slog.Default().With("component", "secrets")
}
