package notify

import (
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// TelegramSender returns a Board delivery function that sends each notice as
// a one-off Telegram message. Delivery failures are silent: a notice is
// best-effort and the log copy always exists.
func TelegramSender(token string, chatID int64) func(key, message string) {
	return func(key, message string) {
		Telegram(token, chatID, message)
	}
}

// Telegram sends a one-off message without requiring a running bot instance.
func Telegram(token string, chatID int64, text string) {
	token = strings.TrimSpace(token)
	if token == "" || chatID == 0 || strings.TrimSpace(text) == "" {
		return
	}

	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = "Markdown"
	_, _ = bot.Send(msg)
}
