package cmd

import (
	"context"
	"fmt"

	"histopost/pkg/config"
	"histopost/pkg/imagegen"
	"histopost/pkg/notify"
	"histopost/pkg/period"
	"histopost/pkg/pipeline"
	"histopost/pkg/publisher"
	"histopost/pkg/secrets"
	"histopost/pkg/textgen"
)

func loadPicker(cfg *config.Config) (*period.Picker, error) {
	list, err := period.Load(cfg.Periods.File)
	if err != nil {
		return nil, fmt.Errorf("load periods: %w", err)
	}

	return period.NewPicker(list, nil)
}

// buildPipeline wires every pipeline collaborator from configuration.
func buildPipeline(ctx context.Context, cfg *config.Config) (*pipeline.Pipeline, error) {
	picker, err := loadPicker(cfg)
	if err != nil {
		return nil, err
	}

	text, err := textgen.New(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("initialize text model: %w", err)
	}

	image, err := imagegen.New(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("initialize image model: %w", err)
	}

	secretProvider, err := secrets.New(ctx, cfg.Secrets)
	if err != nil {
		return nil, fmt.Errorf("initialize secrets: %w", err)
	}

	notifier, err := notify.New(ctx, cfg.Notify)
	if err != nil {
		return nil, fmt.Errorf("initialize notifier: %w", err)
	}

	return pipeline.New(pipeline.Deps{
		Periods:   picker,
		Text:      text,
		Image:     image,
		Publisher: publisher.New(cfg.Facebook, secretProvider, nil),
		Notifier:  notifier,
		Messages:  pipeline.MessagesFromConfig(cfg.Notify),
	})
}
