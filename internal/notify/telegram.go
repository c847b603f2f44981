package notify

import (
	"context"
	"fmt"
	"net/http"
)

// telegramMessageMax is the Bot API's text length cap.
const telegramMessageMax = 4096

// TelegramSender delivers alerts through the Telegram Bot API sendMessage
// call.
type TelegramSender struct {
	token  string
	chatID string
	client *http.Client
}

// NewTelegramSender creates a TelegramSender for the given bot token and
// chat ID.
func NewTelegramSender(token, chatID string) *TelegramSender {
	return &TelegramSender{
		token:  token,
		chatID: chatID,
		client: &http.Client{Timeout: senderTimeout},
	}
}

// Send posts the message to the configured chat with the title in bold.
// Link previews are disabled; alert bodies contain no links worth unfurling.
func (t *TelegramSender) Send(ctx context.Context, title, message string) error {
	text := clampMessage(fmt.Sprintf("*%s*\n%s", title, message), telegramMessageMax)
	payload := map[string]any{
		"chat_id":                  t.chatID,
		"text":                     text,
		"parse_mode":               "Markdown",
		"disable_web_page_preview": true,
	}

	url := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", t.token)
	if err := postJSON(ctx, t.client, url, payload); err != nil {
		return fmt.Errorf("telegram: %w", err)
	}
	return nil
}

// Name returns the sender identifier.
func (t *TelegramSender) Name() string {
	return "telegram"
}
