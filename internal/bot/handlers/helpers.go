package handlers

import (
	"context"
	"log/slog"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// personaKeyboard builds the persona selection inline keyboard, one button
// per catalog entry in declaration order.
func personaKeyboard(deps HandlerDeps) *models.InlineKeyboardMarkup {
	personas := deps.Catalog.All()
	rows := make([][]models.InlineKeyboardButton, 0, len(personas))
	for _, p := range personas {
		rows = append(rows, []models.InlineKeyboardButton{
			{Text: p.Name, CallbackData: CallbackPersonaPrefix + p.ID},
		})
	}
	return &models.InlineKeyboardMarkup{InlineKeyboard: rows}
}

// sendPersonaSelection sends the persona selection prompt and records the
// sent message id so a later history clear can delete it.
func sendPersonaSelection(ctx context.Context, b *bot.Bot, deps HandlerDeps, log *slog.Logger, chatID, userID int64) {
	msg, err := b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:      chatID,
		Text:        deps.Config.MsgChoosePersona,
		ReplyMarkup: personaKeyboard(deps),
	})
	if err != nil {
		log.ErrorContext(ctx, "Failed to send persona selection", "error", err, "chat_id", chatID)
		return
	}
	if err := deps.Orchestrator.RecordSent(ctx, userID, msg.ID); err != nil {
		log.WarnContext(ctx, "Failed to record persona selection message id", "error", err, "user_id", userID)
	}
}

// replyText sends a plain text message, logging failures.
func replyText(ctx context.Context, b *bot.Bot, log *slog.Logger, chatID int64, text string) {
	if _, err := b.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: text}); err != nil {
		log.ErrorContext(ctx, "Failed to send message", "error", err, "chat_id", chatID)
	}
}

// answerCallback acknowledges a callback query so the client stops showing
// the progress spinner.
func answerCallback(ctx context.Context, b *bot.Bot, log *slog.Logger, callbackID string) {
	if _, err := b.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{CallbackQueryID: callbackID}); err != nil {
		log.DebugContext(ctx, "Failed to answer callback query", "error", err)
	}
}

// callbackChatID extracts the chat id from a callback query, handling
// inaccessible messages.
func callbackChatID(cq *models.CallbackQuery) int64 {
	if cq.Message.Message != nil {
		return cq.Message.Message.Chat.ID
	}
	if cq.Message.InaccessibleMessage != nil {
		return cq.Message.InaccessibleMessage.Chat.ID
	}
	return 0
}

// callbackMessageID extracts the message id from a callback query, or 0 for
// inaccessible messages.
func callbackMessageID(cq *models.CallbackQuery) int {
	if cq.Message.Message != nil {
		return cq.Message.Message.ID
	}
	return 0
}
