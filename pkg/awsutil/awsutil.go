// Package awsutil holds the AWS SDK plumbing shared by the Bedrock, Secrets
// Manager, and SNS backends.
package awsutil

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/smithy-go"

	"histopost/pkg/failure"
)

// LoadConfig resolves credentials through the default chain, pinned to region.
func LoadConfig(ctx context.Context, region string) (aws.Config, error) {
	region = strings.TrimSpace(region)
	if region == "" {
		return aws.Config{}, errors.New("aws region is required")
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return aws.Config{}, fmt.Errorf("load aws config: %w", err)
	}

	return cfg, nil
}

// APIError returns the service error code and message when err came back
// from an AWS API rather than the transport.
func APIError(err error) (code string, message string, ok bool) {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return "", "", false
	}

	return apiErr.ErrorCode(), apiErr.ErrorMessage(), true
}

// Classify wraps an SDK call error as a provider API or transport failure.
func Classify(detail string, err error) error {
	if err == nil {
		return nil
	}

	if code, message, ok := APIError(err); ok {
		return failure.Wrap(failure.ProviderAPI, fmt.Sprintf("%s: %s - %s", detail, code, message), err)
	}

	return failure.Wrap(failure.Transport, detail, err)
}
