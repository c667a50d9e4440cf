// Package handlers contains Telegram bot command and callback handlers,
// along with their registration metadata.
package handlers

import (
	"context"
	"fmt"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// NewStartHandler returns a handler for the /start command. Depending on
// session state it greets a returning user, offers persona selection, or
// shows the age gate.
func NewStartHandler(deps HandlerDeps) bot.HandlerFunc {
	return startHandler{deps}.Handle
}

type startHandler struct {
	deps HandlerDeps
}

func (h startHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "start")

	if update.Message == nil || update.Message.From == nil {
		log.WarnContext(ctx, "Start handler received update with nil message or sender", "update_id", update.ID)
		return
	}

	chatID := update.Message.Chat.ID
	userID := update.Message.From.ID
	log.InfoContext(ctx, "Handling /start command", "chat_id", chatID, "user_id", userID)

	session, err := h.deps.Orchestrator.Peek(ctx, userID)
	if err != nil {
		log.ErrorContext(ctx, "Failed to load session", "error", err, "user_id", userID)
		replyText(ctx, b, log, chatID, h.deps.Config.MsgGeneralError)
		return
	}

	if session.AgeConfirmed && session.PersonaID != "" {
		name := session.PersonaID
		if p, err := h.deps.Catalog.Get(session.PersonaID); err == nil {
			name = p.Name
		}
		replyText(ctx, b, log, chatID, fmt.Sprintf(h.deps.Config.MsgWelcomeBack, name))
		return
	}

	if session.AgeConfirmed {
		sendPersonaSelection(ctx, b, h.deps, log, chatID, userID)
		return
	}

	msg, err := b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: chatID,
		Text:   h.deps.Config.MsgAgeGate,
		ReplyMarkup: &models.InlineKeyboardMarkup{
			InlineKeyboard: [][]models.InlineKeyboardButton{
				{{Text: "✅ Yes, I'm 18+", CallbackData: CallbackAgeOK}},
				{{Text: "❌ No", CallbackData: CallbackAgeNo}},
			},
		},
	})
	if err != nil {
		log.ErrorContext(ctx, "Failed to send age gate", "error", err, "chat_id", chatID)
		return
	}
	if err := h.deps.Orchestrator.RecordSent(ctx, userID, msg.ID); err != nil {
		log.WarnContext(ctx, "Failed to record age gate message id", "error", err, "user_id", userID)
	}
}
