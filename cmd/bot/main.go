// Package main contains the entrypoint for the Telegram bot application.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbot "github.com/go-telegram/bot"

	"github.com/passionapp/passionbot/internal/api"
	"github.com/passionapp/passionbot/internal/bot"
	"github.com/passionapp/passionbot/internal/bot/handlers"
	"github.com/passionapp/passionbot/internal/bot/tasks"
	"github.com/passionapp/passionbot/internal/chat"
	"github.com/passionapp/passionbot/internal/config"
	"github.com/passionapp/passionbot/internal/database"
	"github.com/passionapp/passionbot/internal/logger"
	"github.com/passionapp/passionbot/internal/openrouter"
	"github.com/passionapp/passionbot/internal/persona"
	"github.com/passionapp/passionbot/internal/telegram"

	_ "modernc.org/sqlite"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	exitCode := run(ctx)
	stop()
	os.Exit(exitCode)
}

// run initializes and starts all application components (config, logger,
// db, personas, completion client, orchestrator, bot, HTTP server,
// scheduler), handles graceful shutdown, and returns an exit code.
func run(ctx context.Context) int {
	configPath := flag.String("config", "./config.yaml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", "path", *configPath, "error", err)
		return 1
	}

	log := logger.NewLogger(cfg.LogLevel, cfg.LogJSON)
	slog.SetDefault(log)
	log.Info("Logger initialized", "level", cfg.LogLevel, "json", cfg.LogJSON)

	db, err := database.NewDB(cfg.DBPath)
	if err != nil {
		log.Error("Failed to connect to database", "path", cfg.DBPath, "error", err)
		return 1
	}
	defer database.CloseDB(db)
	store := database.NewStore(db, log)

	catalog, err := persona.LoadCatalog()
	if err != nil {
		log.Error("Failed to load persona catalog", "error", err)
		return 1
	}
	log.Info("Persona catalog loaded", "count", len(catalog.All()))

	completionClient, err := openrouter.NewClient(cfg, log)
	if err != nil {
		log.Error("Failed to initialize completion client", "error", err)
		return 1
	}

	orchestrator := chat.NewOrchestrator(store, completionClient, catalog, log)

	hDeps := handlers.HandlerDeps{
		Logger:       log,
		Config:       cfg,
		Orchestrator: orchestrator,
		Catalog:      catalog,
	}
	tDeps := tasks.TaskDeps{
		Logger: log,
		Store:  store,
		Config: cfg,
	}

	botOpts := []tgbot.Option{
		tgbot.WithMiddlewares(logger.Middleware(log)),
		tgbot.WithDefaultHandler(handlers.NewMessageHandler(hDeps)),
	}
	tg, err := telegram.NewTelegramBot(cfg.TelegramToken, log, botOpts...)
	if err != nil {
		log.Error("Failed to create Telegram bot", "error", err)
		return 1
	}

	cmdHandlers := handlers.RegisterAllCommands(hDeps)
	if err := handlers.RegisterHandlers(tg, log, cmdHandlers); err != nil {
		log.Error("Failed to register Telegram handlers", "error", err)
		return 1
	}

	var webhook http.Handler
	if cfg.TelegramWebhookEnabled {
		webhook = tg.WebhookHandler()
	}
	apiHandler := api.NewHandler(cfg, orchestrator, log)
	router := api.NewRouter(cfg, apiHandler, webhook)

	sched, err := bot.NewScheduler(log, cfg, tasks.RegisterAllTasks(tDeps))
	if err != nil {
		log.Error("Failed to create scheduler", "error", err)
		return 1
	}
	app := bot.NewBot(log, cfg, store, tg, sched, router)

	log.Info("Starting bot...")
	runErr := app.Run(ctx)
	log.Info("Run loop finished. Initiating shutdown...")

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		log.Error("Bot stopped due to error", "error", runErr)
		time.Sleep(time.Second)
		return 1
	}

	log.Info("Bot stopped gracefully.")
	time.Sleep(time.Second)
	return 0
}
