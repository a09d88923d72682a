package publisher

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const maxGraphBody = 1 << 20

// GraphError is the error object the Graph API returns with 4xx/5xx responses.
type GraphError struct {
	StatusCode int    `json:"-"`
	Message    string `json:"message"`
	Type       string `json:"type"`
	Code       int    `json:"code"`
	FBTraceID  string `json:"fbtrace_id"`
}

func (e *GraphError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("graph api status %d", e.StatusCode)
	}
	return fmt.Sprintf("graph api status %d: %s (type=%s code=%d)", e.StatusCode, e.Message, e.Type, e.Code)
}

type graphResponse struct {
	ID     string      `json:"id"`
	PostID string      `json:"post_id"`
	Error  *GraphError `json:"error"`
}

// readGraphResponse decodes a Graph API reply. A status of 400 or above is
// always returned as a *GraphError, even when the body is not JSON.
func readGraphResponse(resp *http.Response) (graphResponse, error) {
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxGraphBody))
	if err != nil {
		return graphResponse{}, fmt.Errorf("read graph response: %w", err)
	}

	var decoded graphResponse
	decodeErr := json.Unmarshal(raw, &decoded)

	if resp.StatusCode >= http.StatusBadRequest {
		graphErr := decoded.Error
		if decodeErr != nil || graphErr == nil {
			graphErr = &GraphError{Message: strings.TrimSpace(string(raw))}
		}
		graphErr.StatusCode = resp.StatusCode
		return graphResponse{}, graphErr
	}

	if decodeErr != nil {
		return graphResponse{}, fmt.Errorf("decode graph response: %w", decodeErr)
	}
	return decoded, nil
}
