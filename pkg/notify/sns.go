package notify

import (
	"context"
	"errors"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"

	"histopost/pkg/awsutil"
	"histopost/pkg/config"
	"histopost/pkg/failure"
)

// SNS subjects are limited to 100 characters.
const snsSubjectLimit = 100

type publishAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SNSSender publishes notifications to an SNS topic.
type SNSSender struct {
	api      publishAPI
	topicARN string
}

func NewSNS(ctx context.Context, cfg config.SNSConfig) (*SNSSender, error) {
	topicARN := strings.TrimSpace(cfg.TopicARN)
	if topicARN == "" {
		return nil, failure.New(failure.Configuration, "notify.sns.topic_arn or SNS_TOPIC_ARN is required")
	}

	awsCfg, err := awsutil.LoadConfig(ctx, cfg.Region)
	if err != nil {
		return nil, failure.Wrap(failure.Configuration, "sns notifier", err)
	}

	return NewSNSWithAPI(sns.NewFromConfig(awsCfg), topicARN), nil
}

func NewSNSWithAPI(api publishAPI, topicARN string) *SNSSender {
	return &SNSSender{api: api, topicARN: topicARN}
}

func (s *SNSSender) Name() string {
	return "sns"
}

func (s *SNSSender) Send(ctx context.Context, subject string, message string) error {
	if strings.TrimSpace(message) == "" {
		return errors.New("notification message is empty")
	}

	input := &sns.PublishInput{
		TopicArn: aws.String(s.topicARN),
		Message:  aws.String(message),
	}
	if subject = strings.TrimSpace(subject); subject != "" {
		if len(subject) > snsSubjectLimit {
			subject = subject[:snsSubjectLimit]
		}
		input.Subject = aws.String(subject)
	}

	out, err := s.api.Publish(ctx, input)
	if err != nil {
		return awsutil.Classify("sns publish", err)
	}

	notifyLogger().InfoContext(ctx, "SNS message published", "message_id", aws.ToString(out.MessageId))
	return nil
}
