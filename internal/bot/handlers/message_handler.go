package handlers

import (
	"context"
	"errors"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/passionapp/passionbot/internal/chat"
	"github.com/passionapp/passionbot/internal/openrouter"
	"github.com/passionapp/passionbot/internal/telegram"
)

// NewMessageHandler returns the default handler for plain text messages.
// It runs one conversation turn and delivers the split reply with typing
// cadence.
func NewMessageHandler(deps HandlerDeps) bot.HandlerFunc {
	return messageHandler{deps}.Handle
}

type messageHandler struct {
	deps HandlerDeps
}

func (h messageHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "message")

	if update.Message == nil || update.Message.From == nil || update.Message.Text == "" {
		return
	}

	chatID := update.Message.Chat.ID
	userID := update.Message.From.ID
	log.InfoContext(ctx, "Handling text message", "chat_id", chatID, "user_id", userID)

	sender := telegram.NewSender(b, chatID, h.deps.Logger)
	sender.Typing(ctx)

	err := h.deps.Orchestrator.TurnDeliver(ctx, userID, update.Message.Text, update.Message.ID, sender)
	switch {
	case err == nil:
		return
	case errors.Is(err, chat.ErrAgeNotConfirmed):
		replyText(ctx, b, log, chatID, h.deps.Config.MsgConfirmAgeFirst)
	case errors.Is(err, chat.ErrNoPersona):
		replyText(ctx, b, log, chatID, h.deps.Config.MsgChoosePersonaFirst)
	case errors.Is(err, openrouter.ErrRateLimited):
		replyText(ctx, b, log, chatID, h.deps.Config.MsgRateLimited)
	default:
		log.ErrorContext(ctx, "Conversation turn failed", "error", err, "user_id", userID)
		replyText(ctx, b, log, chatID, h.deps.Config.MsgGeneralError)
	}
}
