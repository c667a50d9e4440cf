package handlers

import (
	"context"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// NewAgeConfirmHandler returns the callback handler for the "I'm 18+"
// button. It marks the session age-confirmed and moves straight to
// persona selection.
func NewAgeConfirmHandler(deps HandlerDeps) bot.HandlerFunc {
	return ageConfirmHandler{deps}.Handle
}

type ageConfirmHandler struct {
	deps HandlerDeps
}

func (h ageConfirmHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "age_confirm")

	cq := update.CallbackQuery
	if cq == nil {
		return
	}
	answerCallback(ctx, b, log, cq.ID)

	userID := cq.From.ID
	chatID := callbackChatID(cq)
	if chatID == 0 {
		log.WarnContext(ctx, "Age confirmation callback without accessible chat", "user_id", userID)
		return
	}

	if err := h.deps.Orchestrator.ConfirmAge(ctx, userID); err != nil {
		log.ErrorContext(ctx, "Failed to confirm age", "error", err, "user_id", userID)
		replyText(ctx, b, log, chatID, h.deps.Config.MsgGeneralError)
		return
	}
	log.InfoContext(ctx, "Age confirmed", "user_id", userID)

	if msgID := callbackMessageID(cq); msgID != 0 {
		_, err := b.EditMessageText(ctx, &bot.EditMessageTextParams{
			ChatID:    chatID,
			MessageID: msgID,
			Text:      h.deps.Config.MsgAgeConfirmed,
		})
		if err != nil {
			log.DebugContext(ctx, "Failed to edit age gate message", "error", err, "chat_id", chatID)
		}
	}

	sendPersonaSelection(ctx, b, h.deps, log, chatID, userID)
}

// NewAgeDenyHandler returns the callback handler for the "No" button on
// the age gate.
func NewAgeDenyHandler(deps HandlerDeps) bot.HandlerFunc {
	return ageDenyHandler{deps}.Handle
}

type ageDenyHandler struct {
	deps HandlerDeps
}

func (h ageDenyHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "age_deny")

	cq := update.CallbackQuery
	if cq == nil {
		return
	}
	answerCallback(ctx, b, log, cq.ID)

	chatID := callbackChatID(cq)
	msgID := callbackMessageID(cq)
	if chatID == 0 || msgID == 0 {
		return
	}

	_, err := b.EditMessageText(ctx, &bot.EditMessageTextParams{
		ChatID:    chatID,
		MessageID: msgID,
		Text:      h.deps.Config.MsgAgeDenied,
	})
	if err != nil {
		log.DebugContext(ctx, "Failed to edit age gate message", "error", err, "chat_id", chatID)
	}
}
