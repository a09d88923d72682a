package notify

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/smithy-go"
	"github.com/mymmrac/telego"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"histopost/pkg/config"
	"histopost/pkg/failure"
)

type fakeSNS struct {
	input *sns.PublishInput
	err   error
}

func (f *fakeSNS) Publish(_ context.Context, params *sns.PublishInput, _ ...func(*sns.Options)) (*sns.PublishOutput, error) {
	f.input = params
	if f.err != nil {
		return nil, f.err
	}
	return &sns.PublishOutput{MessageId: aws.String("msg-1")}, nil
}

type fakeTelegram struct {
	params *telego.SendMessageParams
	err    error
}

func (f *fakeTelegram) SendMessage(_ context.Context, params *telego.SendMessageParams) (*telego.Message, error) {
	f.params = params
	if f.err != nil {
		return nil, f.err
	}
	return &telego.Message{MessageID: 1}, nil
}

type failingSender struct{ calls int }

func (f *failingSender) Name() string { return "failing" }

func (f *failingSender) Send(context.Context, string, string) error {
	f.calls++
	return errors.New("delivery failed")
}

func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()

	var buf bytes.Buffer
	previous := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(previous) })
	return &buf
}

func TestSNSSend(t *testing.T) {
	fake := &fakeSNS{}
	sender := NewSNSWithAPI(fake, "arn:aws:sns:us-west-2:123456789012:history")

	require.NoError(t, sender.Send(context.Background(), "History post pipeline", "done"))
	assert.Equal(t, "arn:aws:sns:us-west-2:123456789012:history", aws.ToString(fake.input.TopicArn))
	assert.Equal(t, "done", aws.ToString(fake.input.Message))
	assert.Equal(t, "History post pipeline", aws.ToString(fake.input.Subject))
}

func TestSNSSendTruncatesSubject(t *testing.T) {
	fake := &fakeSNS{}
	require.NoError(t, NewSNSWithAPI(fake, "arn").Send(context.Background(), strings.Repeat("s", 150), "m"))
	assert.Len(t, aws.ToString(fake.input.Subject), snsSubjectLimit)
}

func TestSNSSendAPIError(t *testing.T) {
	fake := &fakeSNS{err: &smithy.GenericAPIError{Code: "AuthorizationError", Message: "not allowed"}}

	err := NewSNSWithAPI(fake, "arn").Send(context.Background(), "s", "m")
	require.Error(t, err)
	assert.Equal(t, failure.ProviderAPI, failure.CategoryOf(err))
}

func TestNewSNSRequiresTopic(t *testing.T) {
	_, err := NewSNS(context.Background(), config.SNSConfig{Region: "us-west-2"})
	require.Error(t, err)
	assert.Equal(t, failure.Configuration, failure.CategoryOf(err))
}

func TestTelegramSend(t *testing.T) {
	fake := &fakeTelegram{}
	sender := NewTelegramWithAPI(fake, 42)

	require.NoError(t, sender.Send(context.Background(), "History post pipeline", " failed: boom "))
	assert.Equal(t, int64(42), fake.params.ChatID.ID)
	assert.Equal(t, "History post pipeline\n\nfailed: boom", fake.params.Text)
}

func TestTelegramText(t *testing.T) {
	assert.Equal(t, "body", telegramText("", "body"))

	long := telegramText("", strings.Repeat("é", telegramMessageLimit+10))
	assert.Equal(t, telegramMessageLimit, len([]rune(long)))
	assert.True(t, strings.HasSuffix(long, "..."))
}

func TestNewTelegramValidatesConfig(t *testing.T) {
	_, err := NewTelegram(config.TelegramConfig{ChatID: 42})
	assert.Error(t, err)

	_, err = NewTelegram(config.TelegramConfig{Token: "123:abc"})
	assert.Error(t, err)
}

func TestBestEffortSwallowsErrors(t *testing.T) {
	logs := captureLogs(t)
	sender := &failingSender{}

	NewBestEffort(sender, "subject").Notify(context.Background(), "message")

	assert.Equal(t, 1, sender.calls)
	assert.Contains(t, logs.String(), "Failed to send notification")
	assert.Contains(t, logs.String(), "delivery failed")
}

func TestLogSender(t *testing.T) {
	logs := captureLogs(t)

	notifier, err := New(context.Background(), config.NotifyConfig{Provider: "log", Subject: "History post pipeline"})
	require.NoError(t, err)
	notifier.Notify(context.Background(), "Facebook post generated and published successfully.")

	assert.Contains(t, logs.String(), `"component":"notify.log"`)
	assert.Contains(t, logs.String(), "Facebook post generated and published successfully.")
}

func TestNewRejectsUnknownProvider(t *testing.T) {
	_, err := New(context.Background(), config.NotifyConfig{Provider: "pager"})
	assert.Error(t, err)
}
