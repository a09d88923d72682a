package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// version is overridden at build time with -ldflags "-X histopost/cmd.version=...".
var version = "dev"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the histopost version",
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintln(cmd.OutOrStdout(), "histopost "+version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
