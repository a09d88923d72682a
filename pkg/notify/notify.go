// Package notify delivers the one-line run status message. Delivery is best
// effort: failures are logged and never returned to the pipeline.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"histopost/pkg/config"
)

// Notifier sends a status message for a finished run.
type Notifier interface {
	Notify(ctx context.Context, message string)
}

// Sender is a delivery backend that reports its own failures.
type Sender interface {
	Name() string
	Send(ctx context.Context, subject string, message string) error
}

// BestEffort adapts a Sender into a Notifier that swallows delivery errors.
type BestEffort struct {
	sender  Sender
	subject string
}

func NewBestEffort(sender Sender, subject string) *BestEffort {
	return &BestEffort{sender: sender, subject: subject}
}

func (b *BestEffort) Notify(ctx context.Context, message string) {
	log := notifyLogger().With("backend", b.sender.Name())

	if err := b.sender.Send(ctx, b.subject, message); err != nil {
		log.ErrorContext(ctx, "Failed to send notification", "error", err)
		return
	}
	log.InfoContext(ctx, "Notification sent", "message_length", len(message))
}

// New builds the configured notifier.
func New(ctx context.Context, cfg config.NotifyConfig) (Notifier, error) {
	providerID := strings.TrimSpace(cfg.Provider)
	if providerID == "" {
		providerID = "log"
	}

	notifyLogger().Debug("Resolving notifier", "provider", providerID)

	var (
		sender Sender
		err    error
	)
	switch providerID {
	case "log":
		sender = NewLogSender(nil)
	case "sns":
		sender, err = NewSNS(ctx, cfg.SNS)
	case "telegram":
		sender, err = NewTelegram(cfg.Telegram)
	default:
		return nil, fmt.Errorf("unsupported notify provider: %s", providerID)
	}
	if err != nil {
		return nil, err
	}

	return NewBestEffort(sender, cfg.Subject), nil
}

// LogSender writes notifications to the structured log only.
type LogSender struct {
	log *slog.Logger
}

func NewLogSender(log *slog.Logger) *LogSender {
	if log == nil {
		log = slog.Default()
	}
	return &LogSender{log: log.With("component", "notify.log")}
}

func (l *LogSender) Name() string {
	return "log"
}

func (l *LogSender) Send(ctx context.Context, subject string, message string) error {
	l.log.InfoContext(ctx, "Notification", "subject", subject, "message", message)
	return nil
}

func notifyLogger() *slog.Logger {
	return slog.Default().With("component", "notify")
}
