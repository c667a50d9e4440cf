package handlers

import (
	"context"
	"errors"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/passionapp/passionbot/internal/telegram"
)

// NewClearHandler returns a handler for the /clear command. It deletes the
// recorded bot and user messages from the chat (best-effort) and resets
// the session history.
func NewClearHandler(deps HandlerDeps) bot.HandlerFunc {
	return clearHandler{deps}.Handle
}

type clearHandler struct {
	deps HandlerDeps
}

func (h clearHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "clear")

	if update.Message == nil || update.Message.From == nil {
		log.WarnContext(ctx, "Clear handler received update with nil message or sender", "update_id", update.ID)
		return
	}

	chatID := update.Message.Chat.ID
	userID := update.Message.From.ID
	log.InfoContext(ctx, "Handling /clear command", "chat_id", chatID, "user_id", userID)

	timeoutCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	sender := telegram.NewSender(b, chatID, h.deps.Logger)
	err := h.deps.Orchestrator.Clear(timeoutCtx, userID, sender)

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		log.WarnContext(ctx, "History clear timed out or was cancelled", "user_id", userID)
		replyText(ctx, b, log, chatID, h.deps.Config.MsgGeneralError)
		return
	}
	if err != nil {
		log.ErrorContext(ctx, "Failed to clear history", "error", err, "user_id", userID)
		replyText(ctx, b, log, chatID, h.deps.Config.MsgGeneralError)
		return
	}

	log.InfoContext(ctx, "History cleared", "user_id", userID)
	replyText(ctx, b, log, chatID, h.deps.Config.MsgHistoryCleared)
}
