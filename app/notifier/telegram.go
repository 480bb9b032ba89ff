package notifier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"
)

// Telegram delivers roster alerts to a single chat. A fresh delivery for a
// stable identifier deletes the previous message for that identifier first,
// so the user sees one alert per logical event, always the newest.
type Telegram struct {
	bot    *tele.Bot
	chatID int64
	refs   MessageRefStore
}

func NewTelegram(token string, chatID int64, refs MessageRefStore) (*Telegram, error) {
	if strings.TrimSpace(token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	if chatID == 0 {
		return nil, errors.New("telegram chat id is not set")
	}

	bot, err := tele.NewBot(tele.Settings{
		Token:  token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	return &Telegram{bot: bot, chatID: chatID, refs: refs}, nil
}

func (t *Telegram) Deliver(ctx context.Context, n Notification) error {
	// Replace, don't stack: drop the previous message for this identifier.
	if id, ok, err := t.refs.GetMessageRef(n.StableID); err == nil && ok {
		if err := t.deleteMessage(id); err != nil {
			slog.Debug("Failed to delete superseded notification", "stable_id", n.StableID, "error", err)
		}
	}

	var b strings.Builder
	b.WriteString(n.Title)
	if n.Body != "" {
		b.WriteString("\n")
		b.WriteString(n.Body)
	}
	if n.DeepLink != "" {
		b.WriteString("\n")
		b.WriteString(n.DeepLink)
	}

	msg, err := t.bot.Send(tele.ChatID(t.chatID), b.String(), &tele.SendOptions{
		DisableWebPagePreview: true,
	})
	if err != nil {
		return fmt.Errorf("failed to send notification: %w", err)
	}

	if err := t.refs.SetMessageRef(n.StableID, int64(msg.ID)); err != nil {
		return fmt.Errorf("failed to record message ref: %w", err)
	}
	return nil
}

func (t *Telegram) Retract(ctx context.Context, stableID string) error {
	id, ok, err := t.refs.GetMessageRef(stableID)
	if err != nil {
		return fmt.Errorf("failed to look up message ref: %w", err)
	}
	if !ok {
		return nil
	}

	if err := t.deleteMessage(id); err != nil {
		slog.Debug("Failed to delete retracted notification", "stable_id", stableID, "error", err)
	}
	return t.refs.DeleteMessageRef(stableID)
}

func (t *Telegram) deleteMessage(messageID int64) error {
	return t.bot.Delete(&tele.StoredMessage{
		MessageID: strconv.FormatInt(messageID, 10),
		ChatID:    t.chatID,
	})
}
