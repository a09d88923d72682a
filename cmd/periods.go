/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"histopost/pkg/period"
)

// periodsCmd prints the configured period list, one per line.
var periodsCmd = &cobra.Command{
	Use:   "periods",
	Short: "List the historical periods a run can pick from",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadRuntime()
		if err != nil {
			return err
		}

		list, err := period.Load(cfg.Periods.File)
		if err != nil {
			return fmt.Errorf("load periods: %w", err)
		}

		for _, name := range list.Names() {
			fmt.Fprintln(cmd.OutOrStdout(), name)
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(periodsCmd)
}
