// Package bot implements the core application lifecycle: the Telegram
// update loop, the HTTP server for the Mini App API and webhook, and the
// maintenance scheduler.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"golang.org/x/sync/errgroup"

	"github.com/passionapp/passionbot/internal/config"
	"github.com/passionapp/passionbot/internal/database"
)

// Bot represents the main application and manages its components' lifecycle.
type Bot struct {
	logger     *slog.Logger
	cfg        *config.Config
	store      database.Store
	tgBot      *tgbot.Bot
	scheduler  *Scheduler
	httpServer *http.Server
}

// NewBot creates a new instance of the application with all required
// dependencies. handler is the root HTTP handler serving both the Mini App
// API and the Telegram webhook route.
func NewBot(
	logger *slog.Logger,
	cfg *config.Config,
	store database.Store,
	tgBot *tgbot.Bot,
	scheduler *Scheduler,
	handler http.Handler,
) *Bot {
	return &Bot{
		logger:    logger.With("component", "app"),
		cfg:       cfg,
		store:     store,
		tgBot:     tgBot,
		scheduler: scheduler,
		httpServer: &http.Server{
			Addr:              cfg.ServerAddr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// Run starts all components and blocks until the context is cancelled or a
// component fails.
func (b *Bot) Run(ctx context.Context) error {
	b.logger.Info("Starting application...")

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	err := b.store.Ping(pingCtx)
	cancel()
	if err != nil {
		b.logger.Error("Database is not reachable", "error", err)
		return fmt.Errorf("database ping failed: %w", err)
	}

	if err := b.setCommands(ctx); err != nil {
		b.logger.Warn("Failed to set bot commands", "error", err)
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if b.cfg.TelegramWebhookEnabled {
			b.logger.Info("Starting Telegram webhook update loop...")
			b.tgBot.StartWebhook(gCtx)
		} else {
			b.logger.Info("Starting Telegram long-polling update loop...")
			b.tgBot.Start(gCtx)
		}
		b.logger.Info("Telegram update loop stopped.")

		if gCtx.Err() == nil {
			b.logger.Warn("Telegram update loop stopped unexpectedly without context cancellation.")
			return fmt.Errorf("telegram update loop stopped unexpectedly")
		}
		return nil
	})

	g.Go(func() error {
		b.logger.Info("Starting HTTP server...", "addr", b.httpServer.Addr)
		err := b.httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			b.logger.Error("HTTP server failed", "error", err)
			return fmt.Errorf("http server failed: %w", err)
		}
		b.logger.Info("HTTP server stopped.")
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		b.logger.Info("Shutdown signal received, stopping HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := b.httpServer.Shutdown(shutdownCtx); err != nil {
			b.logger.Error("Error during HTTP server shutdown", "error", err)
			return err
		}
		return nil
	})

	g.Go(func() error {
		b.logger.Info("Starting scheduler...")
		if err := b.scheduler.Start(); err != nil {
			b.logger.Error("Failed to start scheduler", "error", err)
			return fmt.Errorf("failed to start scheduler: %w", err)
		}

		<-gCtx.Done()
		b.logger.Info("Shutdown signal received, stopping scheduler...")

		if err := b.scheduler.Stop(); err != nil {
			b.logger.Error("Error stopping scheduler", "error", err)
		}
		return nil
	})

	b.logger.Info("Application running. Waiting for shutdown signal or error...")
	err = g.Wait()

	if err != nil && !errors.Is(err, context.Canceled) {
		b.logger.Error("Application stopped due to error", "error", err)
		return err
	}

	b.logger.Info("Application stopped gracefully.")
	return nil
}

func (b *Bot) setCommands(ctx context.Context) error {
	_, err := b.tgBot.SetMyCommands(ctx, &tgbot.SetMyCommandsParams{
		Commands: []models.BotCommand{
			{Command: "start", Description: "Start and pick a conversation partner"},
			{Command: "clear", Description: "Clear chat history"},
		},
	})
	return err
}
