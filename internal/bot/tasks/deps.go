// Package tasks implements scheduled background tasks for the bot.
package tasks

import (
	"log/slog"

	"github.com/passionapp/passionbot/internal/config"
	"github.com/passionapp/passionbot/internal/database"
)

// TaskDeps contains all dependencies required by scheduled tasks.
type TaskDeps struct {
	Logger *slog.Logger
	Store  database.Store
	Config *config.Config
}
