package error_notificator

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// Sender is the part of *tgbotapi.BotAPI used for alerts.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramInfra posts alerts into an admin chat.
type TelegramInfra struct {
	bot         Sender
	adminChatID int64
}

func NewTelegramInfra(bot Sender, adminChatID int64) *TelegramInfra {
	return &TelegramInfra{bot: bot, adminChatID: adminChatID}
}

func (i *TelegramInfra) Notify(ctx context.Context, channel string, err error, details string) error {
	text := fmt.Sprintf(
		"❗ Tutor relay error (%s)\n\nError: %v\n\nDetails: %s",
		channel,
		err,
		details,
	)

	if _, sendErr := i.bot.Send(tgbotapi.NewMessage(i.adminChatID, text)); sendErr != nil {
		return fmt.Errorf("send admin alert: %w", sendErr)
	}
	return nil
}

// LogInfra is used when no admin chat is configured.
type LogInfra struct {
	log *zap.SugaredLogger
}

func NewLogInfra(log *zap.SugaredLogger) *LogInfra {
	return &LogInfra{log: log}
}

func (i *LogInfra) Notify(ctx context.Context, channel string, err error, details string) error {
	i.log.Errorw("[error_notificator] "+details, "channel", channel, "err", err)
	return nil
}
