// Package failure categorizes pipeline errors so logs can tell them apart
// while callers only check for a non-nil error.
package failure

import (
	"context"
	"errors"
	"fmt"
	"net"
)

const (
	Configuration     = "configuration"
	Transport         = "transport"
	ProviderAPI       = "provider_api"
	MalformedResponse = "malformed_response"
	Schema            = "schema"
	Structural        = "structural"
	Parse             = "parse"
	Unknown           = "unknown"
)

// Error represents a stable, categorized pipeline failure.
type Error struct {
	Category string
	Detail   string
	Err      error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}

	msg := e.Category
	if e.Detail != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Detail)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}

	return msg
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}

	return e.Err
}

// New creates a categorized error without an underlying cause.
func New(category string, detail string) error {
	return &Error{Category: category, Detail: detail}
}

// Wrap creates a categorized error around cause. A nil cause yields nil.
func Wrap(category string, detail string, cause error) error {
	if cause == nil {
		return nil
	}

	return &Error{Category: category, Detail: detail, Err: cause}
}

// CategoryOf returns the stable category for an error when available.
func CategoryOf(err error) string {
	if err == nil {
		return ""
	}

	var categorized *Error
	if errors.As(err, &categorized) {
		return categorized.Category
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return Transport
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return Transport
	}

	return Unknown
}

// Is reports whether err carries the given category.
func Is(err error, category string) bool {
	return err != nil && CategoryOf(err) == category
}
