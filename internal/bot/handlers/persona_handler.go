package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// NewPersonaSelectHandler returns the callback handler for persona
// selection buttons (callback data "persona_<id>").
func NewPersonaSelectHandler(deps HandlerDeps) bot.HandlerFunc {
	return personaSelectHandler{deps}.Handle
}

type personaSelectHandler struct {
	deps HandlerDeps
}

func (h personaSelectHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "persona_select")

	cq := update.CallbackQuery
	if cq == nil {
		return
	}
	answerCallback(ctx, b, log, cq.ID)

	userID := cq.From.ID
	chatID := callbackChatID(cq)
	personaID := strings.TrimPrefix(cq.Data, CallbackPersonaPrefix)

	p, err := h.deps.Catalog.Get(personaID)
	if err != nil {
		log.WarnContext(ctx, "Unknown persona selected", "persona_id", personaID, "user_id", userID)
		return
	}

	if err := h.deps.Orchestrator.SelectPersona(ctx, userID, personaID); err != nil {
		log.ErrorContext(ctx, "Failed to select persona", "error", err, "user_id", userID, "persona_id", personaID)
		if chatID != 0 {
			replyText(ctx, b, log, chatID, h.deps.Config.MsgGeneralError)
		}
		return
	}
	log.InfoContext(ctx, "Persona selected", "user_id", userID, "persona_id", personaID)

	if chatID == 0 {
		return
	}
	confirmation := fmt.Sprintf(h.deps.Config.MsgPersonaSelected, p.Name)
	if msgID := callbackMessageID(cq); msgID != 0 {
		_, err := b.EditMessageText(ctx, &bot.EditMessageTextParams{
			ChatID:    chatID,
			MessageID: msgID,
			Text:      confirmation,
		})
		if err == nil {
			return
		}
		log.DebugContext(ctx, "Failed to edit persona selection message", "error", err, "chat_id", chatID)
	}
	replyText(ctx, b, log, chatID, confirmation)
}
