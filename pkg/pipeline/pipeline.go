// Package pipeline runs one history post end to end: choose a period, build
// the prompt, generate and extract the post, generate the image, publish, and
// always notify.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"histopost/pkg/config"
	"histopost/pkg/extract"
	"histopost/pkg/failure"
	imagetypes "histopost/pkg/imagegen/types"
	"histopost/pkg/logger"
	"histopost/pkg/notify"
	"histopost/pkg/prompt"
	"histopost/pkg/publisher"
	texttypes "histopost/pkg/textgen/types"
)

type Stage string

const (
	StagePreparePrompt Stage = "prepare-prompt"
	StageGenerateText  Stage = "generate-text"
	StageExtract       Stage = "extract"
	StageGenerateImage Stage = "generate-image"
	StagePublish       Stage = "publish"
	StageDone          Stage = "done"
)

// PeriodSource yields the historical period for the next run.
type PeriodSource interface {
	Pick() string
}

// Publisher is the two-phase page publisher.
type Publisher interface {
	Publish(ctx context.Context, postText string, image imagetypes.Image) (publisher.Result, error)
}

// Result describes one run. Stage names the failed stage when Err is set and
// is StageDone otherwise.
type Result struct {
	RunID   string
	Period  string
	Post    extract.Post
	Publish publisher.Result
	Stage   Stage
	Err     error
}

func (r Result) OK() bool {
	return r.Err == nil
}

// Messages are the fixed notification texts.
type Messages struct {
	Success       string
	Partial       string
	FailurePrefix string
}

func MessagesFromConfig(cfg config.NotifyConfig) Messages {
	return Messages{
		Success:       cfg.SuccessMessage,
		Partial:       cfg.PartialMessage,
		FailurePrefix: cfg.FailurePrefix,
	}
}

type Pipeline struct {
	periods   PeriodSource
	text      texttypes.Client
	image     imagetypes.Client
	publisher Publisher
	notifier  notify.Notifier
	messages  Messages
	newRunID  func() string
}

type Deps struct {
	Periods   PeriodSource
	Text      texttypes.Client
	Image     imagetypes.Client
	Publisher Publisher
	Notifier  notify.Notifier
	Messages  Messages
}

func New(deps Deps) (*Pipeline, error) {
	switch {
	case deps.Periods == nil:
		return nil, errors.New("period source is required")
	case deps.Text == nil:
		return nil, errors.New("text client is required")
	case deps.Image == nil:
		return nil, errors.New("image client is required")
	case deps.Publisher == nil:
		return nil, errors.New("publisher is required")
	case deps.Notifier == nil:
		return nil, errors.New("notifier is required")
	}

	return &Pipeline{
		periods:   deps.Periods,
		text:      deps.Text,
		image:     deps.Image,
		publisher: deps.Publisher,
		notifier:  deps.Notifier,
		messages:  deps.Messages,
		newRunID:  uuid.NewString,
	}, nil
}

// Run executes one invocation with a randomly chosen period.
func (p *Pipeline) Run(ctx context.Context) Result {
	return p.RunPeriod(ctx, p.periods.Pick())
}

// RunPeriod executes one invocation for the given period. The notifier is
// always called exactly once before returning, also when a stage panics.
func (p *Pipeline) RunPeriod(ctx context.Context, period string) (out Result) {
	result := Result{RunID: p.newRunID(), Period: period}
	ctx = logger.WithRunID(ctx, result.RunID)
	log := pipelineLogger()
	startedAt := time.Now()

	notified := false
	defer func() {
		if recovered := recover(); recovered != nil {
			if notified {
				panic(recovered)
			}
			out = p.fail(ctx, result, fmt.Errorf("panic: %v", recovered))
		}
	}()
	failRun := func(err error) Result {
		notified = true
		return p.fail(ctx, result, err)
	}

	log.InfoContext(ctx, "Run started", "period", period)

	result.Stage = StagePreparePrompt
	userPrompt, err := prompt.Build(period)
	if err != nil {
		return failRun(err)
	}

	result.Stage = StageGenerateText
	reply, err := p.text.Generate(ctx, userPrompt)
	if err != nil {
		return failRun(err)
	}

	result.Stage = StageExtract
	post, err := extract.Extract(reply)
	if err != nil {
		return failRun(err)
	}
	result.Post = post
	log.InfoContext(ctx, "Post extracted",
		"post", prompt.Excerpt(post.PostText, 120),
		"image_prompt", prompt.Excerpt(post.ImagePrompt, 120),
	)

	result.Stage = StageGenerateImage
	image, err := p.image.Generate(ctx, post.ImagePrompt)
	if err != nil {
		return failRun(err)
	}

	result.Stage = StagePublish
	published, err := p.publisher.Publish(ctx, post.PostText, image)
	result.Publish = published
	if err != nil {
		return failRun(err)
	}

	result.Stage = StageDone
	if published.Partial() {
		log.WarnContext(ctx, "Run finished with partial publish",
			"photo_id", published.PhotoID,
			"feed_error", published.FeedErr,
			"duration_ms", time.Since(startedAt).Milliseconds(),
		)
		notified = true
		p.notifier.Notify(ctx, p.messages.Partial+published.FeedErr.Error())
		return result
	}

	log.InfoContext(ctx, "Run finished",
		"photo_id", published.PhotoID,
		"post_id", published.FeedPostID,
		"duration_ms", time.Since(startedAt).Milliseconds(),
	)
	notified = true
	p.notifier.Notify(ctx, p.messages.Success)
	return result
}

func (p *Pipeline) fail(ctx context.Context, result Result, err error) Result {
	result.Err = fmt.Errorf("%s: %w", result.Stage, err)

	pipelineLogger().ErrorContext(ctx, "Run failed",
		"stage", string(result.Stage),
		"category", failure.CategoryOf(err),
		"error", err,
	)
	p.notifier.Notify(ctx, p.messages.FailurePrefix+err.Error())
	return result
}

func pipelineLogger() *slog.Logger {
	return slog.Default().With("component", "pipeline")
}
