package telegram

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// Sender delivers reply parts to one Telegram chat. It implements both
// chat.Deliverer and chat.MessageDeleter.
type Sender struct {
	bot    *bot.Bot
	chatID int64
	log    *slog.Logger
}

// NewSender creates a delivery channel bound to a chat.
func NewSender(b *bot.Bot, chatID int64, log *slog.Logger) *Sender {
	return &Sender{
		bot:    b,
		chatID: chatID,
		log:    log.With("component", "telegram_sender", "chat_id", chatID),
	}
}

// Typing shows the typing indicator. Failures are logged and ignored; the
// indicator is cosmetic.
func (s *Sender) Typing(ctx context.Context) {
	_, err := s.bot.SendChatAction(ctx, &bot.SendChatActionParams{
		ChatID: s.chatID,
		Action: models.ChatActionTyping,
	})
	if err != nil {
		s.log.DebugContext(ctx, "Failed to send typing action", "error", err)
	}
}

// SendPart sends one reply part and returns its Telegram message id.
func (s *Sender) SendPart(ctx context.Context, part string) (int, error) {
	msg, err := s.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: s.chatID,
		Text:   part,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to send message part: %w", err)
	}
	return msg.ID, nil
}

// DeleteMessage removes a previously sent or received message from the chat.
func (s *Sender) DeleteMessage(ctx context.Context, messageID int) error {
	_, err := s.bot.DeleteMessage(ctx, &bot.DeleteMessageParams{
		ChatID:    s.chatID,
		MessageID: messageID,
	})
	if err != nil {
		return fmt.Errorf("failed to delete message %d: %w", messageID, err)
	}
	return nil
}
