// Package imagegen picks the image model backend named in configuration.
package imagegen

import (
	"context"
	"fmt"
	"log/slog"

	"histopost/pkg/config"
	"histopost/pkg/imagegen/bedrock"
	"histopost/pkg/imagegen/imagen"
	"histopost/pkg/imagegen/openai"
	imagetypes "histopost/pkg/imagegen/types"
)

func New(ctx context.Context, cfg *config.Config) (imagetypes.Client, error) {
	providerID := cfg.Image.Provider
	if providerID == "" {
		providerID = "bedrock"
	}

	slog.Default().With("component", "imagegen.factory").Debug("Resolving image model client", "provider", providerID, "model", cfg.Image.Model)

	switch providerID {
	case "bedrock":
		client, err := bedrock.New(ctx, cfg.Image)
		if err != nil {
			return nil, err
		}
		return client, nil
	case "openai":
		client, err := openai.New(cfg)
		if err != nil {
			return nil, err
		}
		return client, nil
	case "imagen":
		client, err := imagen.New(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unsupported image provider: %s", providerID)
	}
}
