package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"

	"histopost/pkg/config"
	"histopost/pkg/failure"
)

const telegramMessageLimit = 4096

type messageAPI interface {
	SendMessage(ctx context.Context, params *telego.SendMessageParams) (*telego.Message, error)
}

// TelegramSender posts notifications to a single Telegram chat.
type TelegramSender struct {
	api    messageAPI
	chatID int64
}

func NewTelegram(cfg config.TelegramConfig) (*TelegramSender, error) {
	token := strings.TrimSpace(cfg.Token)
	if token == "" {
		return nil, failure.New(failure.Configuration, "notify.telegram.token or TELEGRAM_BOT_TOKEN is required")
	}
	if cfg.ChatID == 0 {
		return nil, failure.New(failure.Configuration, "notify.telegram.chat_id or TELEGRAM_CHAT_ID is required")
	}

	bot, err := telego.NewBot(token)
	if err != nil {
		return nil, failure.Wrap(failure.Configuration, "initialize telegram bot", err)
	}

	return NewTelegramWithAPI(bot, cfg.ChatID), nil
}

func NewTelegramWithAPI(api messageAPI, chatID int64) *TelegramSender {
	return &TelegramSender{api: api, chatID: chatID}
}

func (t *TelegramSender) Name() string {
	return "telegram"
}

func (t *TelegramSender) Send(ctx context.Context, subject string, message string) error {
	if strings.TrimSpace(message) == "" {
		return errors.New("notification message is empty")
	}

	if _, err := t.api.SendMessage(ctx, tu.Message(tu.ID(t.chatID), telegramText(subject, message))); err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}
	return nil
}

// telegramText prefixes the subject and keeps the result within one message.
func telegramText(subject string, message string) string {
	text := strings.TrimSpace(message)
	if subject = strings.TrimSpace(subject); subject != "" {
		text = subject + "\n\n" + text
	}

	runes := []rune(text)
	if len(runes) <= telegramMessageLimit {
		return text
	}
	return string(runes[:telegramMessageLimit-3]) + "..."
}
