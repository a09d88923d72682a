/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"histopost/pkg/config"
	"histopost/pkg/logger"
)

var (
	configPath string
	envFile    string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "histopost",
	Short: "Generate and publish history posts",
	Long: `histopost asks a text model for a short post about a random historical
period, illustrates it with an image model, publishes both to a Facebook Page,
and sends a status notification.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file (default: $HISTOPOST_CONFIG or ./config.json)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before configuration")
}

// loadRuntime reads the dotenv file and configuration, then installs the
// process logger.
func loadRuntime() (*config.Config, error) {
	if err := loadEnvFile(envFile); err != nil {
		return nil, err
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	appLogger, err := logger.New(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	slog.SetDefault(appLogger)

	return cfg, nil
}

// loadEnvFile loads path into the environment without overriding variables
// that are already set. A missing file is not an error.
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}

	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}

	return nil
}
