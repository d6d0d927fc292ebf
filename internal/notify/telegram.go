package notify

import (
	"context"
	"fmt"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	apperrors "github.com/servicecenter/api/pkg/errors"
)

// TelegramSender delivers chat notifications through the Telegram Bot API
type TelegramSender struct {
	bot    *tgbotapi.BotAPI
	logger *logrus.Logger
}

// NewTelegramSender creates a Telegram sender from a bot token
func NewTelegramSender(token string, logger *logrus.Logger) (*TelegramSender, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, apperrors.NewExternalError("telegram", "failed to create bot", err)
	}

	logger.WithField("username", bot.Self.UserName).Info("Telegram bot authorized")

	return &TelegramSender{bot: bot, logger: logger}, nil
}

// Send delivers an HTML-formatted message to the given chat.
// Manager chat IDs are stored as strings.
func (t *TelegramSender) Send(_ context.Context, chatID, message string) error {
	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid telegram chat id %q: %w", chatID, err)
	}

	msg := tgbotapi.NewMessage(id, message)
	msg.ParseMode = tgbotapi.ModeHTML
	if _, err := t.bot.Send(msg); err != nil {
		return apperrors.NewExternalError("telegram", "failed to send message", err)
	}
	return nil
}
