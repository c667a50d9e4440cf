package handlers

import (
	"log/slog"

	"github.com/passionapp/passionbot/internal/chat"
	"github.com/passionapp/passionbot/internal/config"
	"github.com/passionapp/passionbot/internal/persona"
)

// HandlerDeps provides dependencies for Telegram command handlers.
type HandlerDeps struct {
	Logger       *slog.Logger
	Config       *config.Config
	Orchestrator *chat.Orchestrator
	Catalog      *persona.Catalog
}
