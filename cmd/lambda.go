/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"encoding/json"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/spf13/cobra"

	"histopost/pkg/trigger"
)

// lambdaCmd runs the pipeline as an AWS Lambda function. Collaborators are
// built once per cold start and reused across invocations.
var lambdaCmd = &cobra.Command{
	Use:   "lambda",
	Short: "Run as an AWS Lambda handler",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadRuntime()
		if err != nil {
			return err
		}

		p, err := buildPipeline(cmd.Context(), cfg)
		if err != nil {
			return err
		}

		lambda.Start(lambdaHandler(p))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(lambdaCmd)
}

func lambdaHandler(runner trigger.Runner) func(context.Context, json.RawMessage) (trigger.Response, error) {
	return func(ctx context.Context, event json.RawMessage) (trigger.Response, error) {
		return trigger.Handle(ctx, runner, event), nil
	}
}
