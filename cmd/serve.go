/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"histopost/pkg/server"
)

// serveCmd exposes the pipeline over HTTP and optionally on a fixed interval.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the invoke endpoint and run the optional schedule",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadRuntime()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		p, err := buildPipeline(ctx, cfg)
		if err != nil {
			return err
		}

		service, err := server.NewService(cfg.Serve, p, slog.Default())
		if err != nil {
			return err
		}

		return service.Run(ctx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
