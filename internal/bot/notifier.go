package bot

import (
	"context"
	"errors"
	"fmt"

	"gopkg.in/telebot.v3"
)

var ErrNoChat = errors.New("alert chat id not configured")

// Notify sends alert text to the configured chat as plain text; alerts carry
// raw transport errors that are not valid Markdown.
func (h *BotHandler) Notify(_ context.Context, text string) error {
	if h.chatID == 0 {
		return ErrNoChat
	}
	if _, err := h.Bot.Send(telebot.ChatID(h.chatID), text); err != nil {
		return fmt.Errorf("send alert: %w", err)
	}
	return nil
}
