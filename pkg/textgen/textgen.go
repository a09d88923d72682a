// Package textgen picks the text model backend named in configuration.
package textgen

import (
	"context"
	"fmt"
	"log/slog"

	"histopost/pkg/config"
	"histopost/pkg/textgen/bedrock"
	"histopost/pkg/textgen/fantasy"
	"histopost/pkg/textgen/gemini"
	texttypes "histopost/pkg/textgen/types"
)

func New(ctx context.Context, cfg *config.Config) (texttypes.Client, error) {
	providerID := cfg.Text.Provider
	if providerID == "" {
		providerID = "bedrock"
	}

	slog.Default().With("component", "textgen.factory").Debug("Resolving text model client", "provider", providerID, "model", cfg.Text.Model)

	switch providerID {
	case "bedrock":
		client, err := bedrock.New(ctx, cfg.Text)
		if err != nil {
			return nil, err
		}
		return client, nil
	case "openai":
		client, err := fantasy.New(cfg)
		if err != nil {
			return nil, err
		}
		return client, nil
	case "gemini":
		client, err := gemini.New(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unsupported text provider: %s", providerID)
	}
}
