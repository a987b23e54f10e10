package adapter

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lecternhq/lectern/internal/config"
	"github.com/lecternhq/lectern/internal/errors"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// TelegramAdapter long-polls Telegram and answers each chat in its own
// session, keyed by chat ID.
type TelegramAdapter struct {
	token         string
	updateTimeout int
	handler       QueryHandler
	bot           *tgbotapi.BotAPI
	updates       tgbotapi.UpdatesChannel
}

func NewTelegramAdapter(token string, handler QueryHandler, updateTimeout int) *TelegramAdapter {
	if updateTimeout <= 0 {
		updateTimeout = config.DefaultTelegramUpdateTimeout
	}
	return &TelegramAdapter{
		token:         token,
		updateTimeout: updateTimeout,
		handler:       handler,
	}
}

func (t *TelegramAdapter) Name() string {
	return "telegram"
}

func (t *TelegramAdapter) Start(ctx context.Context) error {
	var err error
	t.bot, err = tgbotapi.NewBotAPI(t.token)
	if err != nil {
		return errors.Wrap(err, "failed to init telegram bot")
	}

	slog.Info("Telegram adapter started", "user", t.bot.Self.UserName)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = t.updateTimeout

	t.updates = t.bot.GetUpdatesChan(u)

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case update := <-t.updates:
				t.handleUpdate(ctx, update)
			}
		}
	}()

	return nil
}

func (t *TelegramAdapter) Stop(ctx context.Context) error {
	if t.bot != nil {
		t.bot.StopReceivingUpdates()
	}
	return nil
}

func (t *TelegramAdapter) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	if update.Message == nil || update.Message.Text == "" {
		return
	}

	msg := update.Message
	sessionID := fmt.Sprintf("telegram:%d", msg.Chat.ID)

	answer, err := t.handler(ctx, sessionID, msg.Text)
	if err != nil {
		slog.Error("Failed to answer Telegram message", "chat_id", msg.Chat.ID, "error", err)
		t.reply(msg.Chat.ID, "Sorry, something went wrong answering that question.")
		return
	}

	t.reply(msg.Chat.ID, FormatReply(answer))
}

func (t *TelegramAdapter) reply(chatID int64, content string) {
	msg := tgbotapi.NewMessage(chatID, content)
	if _, err := t.bot.Send(msg); err != nil {
		slog.Error("Failed to send Telegram message", "chat_id", chatID, "error", err)
	}
}

func (t *TelegramAdapter) Health(ctx context.Context) error {
	if t.bot == nil {
		return errors.Transient("Telegram bot not initialized")
	}

	if _, err := t.bot.GetMe(); err != nil {
		return errors.Transient("Telegram connection failed: " + err.Error())
	}

	return nil
}
