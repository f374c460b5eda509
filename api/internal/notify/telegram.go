// Package notify forwards mediation actions to the platform admins.
package notify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"trust-engine/api/internal/moderation"
	"trust-engine/api/internal/util"
)

const maxAlertRunes = 3900

// Telegram posts admin alerts into a single admin chat.
type Telegram struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

// NewTelegram connects to the Bot API. An empty token yields (nil, nil): alerts are disabled.
func NewTelegram(token string, adminChatID int64) (*Telegram, error) {
	return NewTelegramWithClient(token, adminChatID, tgbotapi.APIEndpoint, &http.Client{})
}

func NewTelegramWithClient(token string, adminChatID int64, endpoint string, cl tgbotapi.HTTPClient) (*Telegram, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, nil
	}
	if adminChatID == 0 {
		return nil, errors.New("notify: telegram admin chat id is empty")
	}
	bot, err := tgbotapi.NewBotAPIWithClient(token, endpoint, cl)
	if err != nil {
		return nil, fmt.Errorf("notify: telegram: %w", err)
	}
	return &Telegram{bot: bot, chatID: adminChatID}, nil
}

// NotifyAction sends one alert about a proposed mediation action.
func (t *Telegram) NotifyAction(ctx context.Context, chatID string, v moderation.MediationVerdict) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(t.chatID, FormatAlert(chatID, v))
	msg.DisableWebPagePreview = true
	if _, err := t.bot.Send(msg); err != nil {
		return fmt.Errorf("notify: telegram send: %w", err)
	}
	return nil
}

// FormatAlert renders the admin alert text.
func FormatAlert(chatID string, v moderation.MediationVerdict) string {
	if chatID == "" {
		chatID = "unknown"
	}
	s := fmt.Sprintf("⚠️ Mediation action: %s\nChat: %s\n\n%s", v.Action, chatID, v.ResponseText)
	return util.Truncate(s, maxAlertRunes)
}
