// Package trigger maps one pipeline run onto the {statusCode, body} response
// shape shared by the Lambda entry point and the HTTP invoke endpoint.
package trigger

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"

	"histopost/pkg/extract"
	"histopost/pkg/pipeline"
)

const successMessage = "Facebook post generated successfully!"

// Runner is the part of the pipeline a trigger drives.
type Runner interface {
	Run(ctx context.Context) pipeline.Result
	RunPeriod(ctx context.Context, period string) pipeline.Result
}

type Response struct {
	StatusCode int               `json:"statusCode"`
	Headers    map[string]string `json:"headers,omitempty"`
	Body       string            `json:"body"`
}

type successBody struct {
	Message     string       `json:"message"`
	PostContent extract.Post `json:"post_content"`
	RunID       string       `json:"run_id"`
	Period      string       `json:"period"`
	PhotoID     string       `json:"photo_id,omitempty"`
	FeedPostID  string       `json:"feed_post_id,omitempty"`
	Partial     bool         `json:"partial,omitempty"`
}

type errorBody struct {
	Error string `json:"error"`
	RunID string `json:"run_id,omitempty"`
}

// Handle runs the pipeline once. An event of the form {"period": "..."}
// pins the historical period; any other event picks one at random. Handle
// never panics and always returns a response.
func Handle(ctx context.Context, runner Runner, event json.RawMessage) (resp Response) {
	log := triggerLogger()

	defer func() {
		if recovered := recover(); recovered != nil {
			log.ErrorContext(ctx, "Run panicked", "panic", fmt.Sprint(recovered))
			resp = failureResponse("", fmt.Errorf("panic: %v", recovered))
		}
	}()

	var result pipeline.Result
	if period := eventPeriod(event); period != "" {
		log.InfoContext(ctx, "Trigger received", "period", period)
		result = runner.RunPeriod(ctx, period)
	} else {
		log.InfoContext(ctx, "Trigger received")
		result = runner.Run(ctx)
	}

	if !result.OK() {
		return failureResponse(result.RunID, result.Err)
	}

	return jsonResponse(http.StatusOK, successBody{
		Message:     successMessage,
		PostContent: result.Post,
		RunID:       result.RunID,
		Period:      result.Period,
		PhotoID:     result.Publish.PhotoID,
		FeedPostID:  result.Publish.FeedPostID,
		Partial:     result.Publish.Partial(),
	})
}

func eventPeriod(event json.RawMessage) string {
	if len(event) == 0 || !gjson.ValidBytes(event) {
		return ""
	}

	period := gjson.GetBytes(event, "period")
	if period.Type != gjson.String {
		return ""
	}
	return strings.TrimSpace(period.String())
}

func failureResponse(runID string, err error) Response {
	return jsonResponse(http.StatusInternalServerError, errorBody{
		Error: "An unexpected error occurred: " + err.Error(),
		RunID: runID,
	})
}

func jsonResponse(status int, body any) Response {
	encoded, err := json.Marshal(body)
	if err != nil {
		status = http.StatusInternalServerError
		encoded = []byte(`{"error":"An unexpected error occurred: encode response"}`)
	}

	return Response{
		StatusCode: status,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       string(encoded),
	}
}

func triggerLogger() *slog.Logger {
	return slog.Default().With("component", "trigger")
}
