// Package publisher posts a generated post and its image to a Facebook Page in
// two phases: an unpublished-then-referenced photo upload, then a feed post
// that attaches the uploaded photo.
package publisher

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"histopost/pkg/config"
	"histopost/pkg/failure"
	imagetypes "histopost/pkg/imagegen/types"
	"histopost/pkg/secrets"
)

// Result records what each phase produced. A photo without a feed post is a
// partial publish.
type Result struct {
	PhotoID    string
	FeedPostID string
	FeedErr    error
}

func (r Result) Partial() bool {
	return r.PhotoID != "" && r.FeedErr != nil
}

type Publisher struct {
	httpClient *http.Client
	secrets    secrets.Provider
	cfg        config.FacebookConfig
	wait       func(ctx context.Context, d time.Duration) error
}

func New(cfg config.FacebookConfig, provider secrets.Provider, httpClient *http.Client) *Publisher {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}

	return &Publisher{
		httpClient: httpClient,
		secrets:    provider,
		cfg:        cfg,
		wait:       sleepContext,
	}
}

type credentials struct {
	pageID string
	token  string
}

// Publish uploads the image with the post text as caption, waits the
// configured delay, then creates a feed post that attaches the photo.
//
// A phase-1 failure returns an error and phase 2 is never attempted. A
// transport failure on the last feed attempt is returned as an error too. Any
// other feed failure, including a reply without an id, leaves a partial
// Result with FeedErr set and a nil error.
func (p *Publisher) Publish(ctx context.Context, postText string, image imagetypes.Image) (Result, error) {
	log := publisherLogger()

	creds, err := p.resolveCredentials(ctx)
	if err != nil {
		log.ErrorContext(ctx, "Failed to resolve page credentials", "error", err)
		return Result{}, err
	}

	photoID, err := p.uploadPhoto(ctx, creds, postText, image)
	if err != nil {
		log.ErrorContext(ctx, "Photo upload failed", "category", failure.CategoryOf(err), "error", err)
		return Result{}, err
	}
	log.InfoContext(ctx, "Photo uploaded", "photo_id", photoID)

	result := Result{PhotoID: photoID}

	if err := p.wait(ctx, time.Duration(p.cfg.PublishDelayMS)*time.Millisecond); err != nil {
		result.FeedErr = failure.Wrap(failure.Transport, "wait before feed post", err)
		log.ErrorContext(ctx, "Feed post skipped", "photo_id", photoID, "error", result.FeedErr)
		return result, nil
	}

	attempts := max(p.cfg.FeedMaxAttempts, 1)
	for attempt := 1; attempt <= attempts; attempt++ {
		postID, feedErr := p.createFeedPost(ctx, creds, postText, photoID)
		if feedErr == nil && postID == "" {
			feedErr = failure.New(failure.MalformedResponse, "feed post response has no id")
		}
		if feedErr == nil {
			result.FeedPostID = postID
			result.FeedErr = nil
			log.InfoContext(ctx, "Feed post created", "photo_id", photoID, "post_id", postID, "attempt", attempt)
			return result, nil
		}

		result.FeedErr = feedErr
		log.ErrorContext(ctx, "Feed post failed", "photo_id", photoID, "attempt", attempt, "max_attempts", attempts, "category", failure.CategoryOf(feedErr), "error", feedErr)

		if attempt == attempts {
			if failure.CategoryOf(feedErr) == failure.Transport {
				return result, feedErr
			}
			break
		}
		if err := p.wait(ctx, time.Duration(p.cfg.FeedRetryDelayMS)*time.Millisecond); err != nil {
			result.FeedErr = failure.Wrap(failure.Transport, "wait before feed retry", err)
			break
		}
	}

	return result, nil
}

func (p *Publisher) resolveCredentials(ctx context.Context) (credentials, error) {
	if p.secrets == nil {
		return credentials{}, failure.New(failure.Configuration, "secrets provider is not configured")
	}

	pageID, err := p.secrets.Get(ctx, p.cfg.PageIDSecret)
	if err != nil {
		return credentials{}, failure.Wrap(failure.Configuration, "page id", err)
	}

	token, err := p.secrets.Get(ctx, p.cfg.AccessTokenSecret)
	if err != nil {
		return credentials{}, failure.Wrap(failure.Configuration, "page access token", err)
	}

	return credentials{pageID: pageID, token: token}, nil
}

func (p *Publisher) uploadPhoto(ctx context.Context, creds credentials, postText string, image imagetypes.Image) (string, error) {
	if len(image.Data) == 0 {
		return "", failure.New(failure.Configuration, "image is empty")
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	fields := [][2]string{
		{"message", postText},
		{"access_token", creds.token},
		{"published", strconv.FormatBool(p.cfg.Published)},
	}
	for _, field := range fields {
		if err := writer.WriteField(field[0], field[1]); err != nil {
			return "", fmt.Errorf("write %s field: %w", field[0], err)
		}
	}

	fileName, mimeType := sourceFile(p.cfg, image.Format)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="source"; filename=%q`, fileName))
	header.Set("Content-Type", mimeType)
	part, err := writer.CreatePart(header)
	if err != nil {
		return "", fmt.Errorf("create source part: %w", err)
	}
	if _, err := part.Write(image.Data); err != nil {
		return "", fmt.Errorf("write source part: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("close multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint(creds.pageID, "photos"), &body)
	if err != nil {
		return "", failure.Wrap(failure.Configuration, "build photo request", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	decoded, err := p.do(req)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(decoded.ID) == "" {
		return "", failure.New(failure.MalformedResponse, "photo upload response has no id")
	}

	return decoded.ID, nil
}

func (p *Publisher) createFeedPost(ctx context.Context, creds credentials, postText string, photoID string) (string, error) {
	attached, err := attachedMedia(photoID)
	if err != nil {
		return "", err
	}

	form := url.Values{}
	form.Set("message", postText)
	form.Set("access_token", creds.token)
	form.Set("attached_media", attached)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint(creds.pageID, "feed"), strings.NewReader(form.Encode()))
	if err != nil {
		return "", failure.Wrap(failure.Configuration, "build feed request", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	decoded, err := p.do(req)
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(decoded.ID), nil
}

func (p *Publisher) do(req *http.Request) (graphResponse, error) {
	edge := "graph " + path.Base(req.URL.Path)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return graphResponse{}, failure.Wrap(failure.Transport, edge, scrubURLError(err))
	}
	defer resp.Body.Close()

	decoded, err := readGraphResponse(resp)
	if err != nil {
		var graphErr *GraphError
		if errors.As(err, &graphErr) {
			return graphResponse{}, failure.Wrap(failure.ProviderAPI, edge, err)
		}
		return graphResponse{}, failure.Wrap(failure.MalformedResponse, edge, err)
	}

	return decoded, nil
}

func (p *Publisher) endpoint(pageID string, edge string) string {
	base := strings.TrimRight(p.cfg.GraphURL, "/")
	return fmt.Sprintf("%s/%s/%s/%s", base, p.cfg.APIVersion, url.PathEscape(pageID), edge)
}

// scrubURLError drops the request URL, which carries the page id, from
// transport errors.
func scrubURLError(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return fmt.Errorf("%s: %w", urlErr.Op, urlErr.Err)
	}
	return err
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func publisherLogger() *slog.Logger {
	return slog.Default().With("component", "publisher")
}
