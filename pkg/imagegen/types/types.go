package types

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// Image is one decoded image ready for upload.
type Image struct {
	Data   []byte
	Format string
}

// Client turns an image prompt into image bytes.
type Client interface {
	Generate(ctx context.Context, prompt string) (Image, error)
}

// DecodeBase64 decodes a standard base64 payload, tolerating embedded newlines.
func DecodeBase64(payload string) ([]byte, error) {
	payload = strings.Join(strings.Fields(payload), "")
	if payload == "" {
		return nil, errors.New("image payload is empty")
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	if len(data) == 0 {
		return nil, errors.New("decoded image is empty")
	}

	return data, nil
}
