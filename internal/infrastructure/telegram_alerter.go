package infrastructure

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"revenda_bot/internal/interfaces"
)

// TelegramAlerter posts operator alerts to one Telegram chat.
type TelegramAlerter struct {
	Bot    *tgbotapi.BotAPI
	chatID int64
	log    zerolog.Logger
}

// NewAlerter returns a Telegram alerter, or a log-only alerter when the bot
// token is missing or rejected.
func NewAlerter(token string, chatID int64, log zerolog.Logger) interfaces.Alerter {
	log = log.With().Str("component", "alerts").Logger()
	if token == "" || chatID == 0 {
		return &LogAlerter{log: log}
	}
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		log.Warn().Err(err).Msg("telegram bot token issue, alerts go to the log only")
		return &LogAlerter{log: log}
	}
	log.Info().Str("bot", bot.Self.UserName).Msg("telegram alerts enabled")
	return &TelegramAlerter{Bot: bot, chatID: chatID, log: log}
}

// Alert sends in the background and never waits on the Telegram API.
func (t *TelegramAlerter) Alert(_ context.Context, text string) error {
	msg := tgbotapi.NewMessage(t.chatID, text)
	msg.DisableWebPagePreview = true
	go func() {
		if _, err := t.Bot.Send(msg); err != nil {
			t.log.Warn().Err(fmt.Errorf("telegram send: %w", err)).Msg("alert not delivered")
		}
	}()
	return nil
}

// LogAlerter writes alerts to the process log.
type LogAlerter struct {
	log zerolog.Logger
}

func (l *LogAlerter) Alert(_ context.Context, text string) error {
	l.log.Warn().Str("alert", text).Msg("operator alert")
	return nil
}
