/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"histopost/pkg/trigger"
)

var runPeriod string

// runCmd executes one generate-and-publish run and exits.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Generate and publish one history post",
	Long: `Run the full pipeline once: pick a period, generate the post and image,
publish to the configured Facebook Page, and send a notification. The
invocation response is printed as JSON and the exit status is non-zero when
the run fails.`,
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

		return runOnce(ctx, p, runPeriod, cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringVarP(&runPeriod, "period", "p", "", "use this period instead of a random pick")
}

func runOnce(ctx context.Context, runner trigger.Runner, period string, out io.Writer) error {
	resp := trigger.Handle(ctx, runner, periodEvent(period))
	fmt.Fprintln(out, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("run failed with status %d", resp.StatusCode)
	}

	return nil
}

func periodEvent(period string) json.RawMessage {
	if period == "" {
		return nil
	}

	event, err := json.Marshal(map[string]string{"period": period})
	if err != nil {
		return nil
	}

	return event
}
