/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"histopost/pkg/pipeline"
	"histopost/pkg/textgen"
)

var (
	previewPeriod string
	previewWidth  int
)

// previewCmd generates post text without touching the image model or Facebook.
var previewCmd = &cobra.Command{
	Use:   "preview",
	Short: "Generate a post and image prompt without publishing",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadRuntime()
		if err != nil {
			return err
		}

		ctx := cmd.Context()

		period := previewPeriod
		if period == "" {
			picker, err := loadPicker(cfg)
			if err != nil {
				return err
			}
			period = picker.Pick()
		}

		text, err := textgen.New(ctx, cfg)
		if err != nil {
			return fmt.Errorf("initialize text model: %w", err)
		}

		preview, previewErr := pipeline.GeneratePreview(ctx, text, period)
		fmt.Fprint(cmd.OutOrStdout(), renderPreview(defaultPreviewTheme(), preview, previewErr, previewWidth))

		return previewErr
	},
}

func init() {
	rootCmd.AddCommand(previewCmd)
	previewCmd.Flags().StringVarP(&previewPeriod, "period", "p", "", "use this period instead of a random pick")
	previewCmd.Flags().IntVar(&previewWidth, "width", 72, "box width in columns (0 to fit content)")
}
