// Package api implements the Mini App HTTP API and the webhook mount for
// the Telegram Bot API.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/passionapp/passionbot/internal/chat"
	"github.com/passionapp/passionbot/internal/config"
	"github.com/passionapp/passionbot/internal/database"
	"github.com/passionapp/passionbot/internal/openrouter"
	"github.com/passionapp/passionbot/internal/persona"
)

// Handler serves the Mini App chat API backed by the conversation
// orchestrator.
type Handler struct {
	cfg          *config.Config
	orchestrator *chat.Orchestrator
	log          *slog.Logger
}

// NewHandler creates the Mini App API handler.
func NewHandler(cfg *config.Config, orchestrator *chat.Orchestrator, log *slog.Logger) *Handler {
	return &Handler{
		cfg:          cfg,
		orchestrator: orchestrator,
		log:          log.With("component", "api"),
	}
}

// NewRouter builds the root HTTP router: the Mini App API under /api/chat
// and, when webhook is non-nil, the Telegram webhook under /webhook
// protected by the shared-secret header check.
func NewRouter(cfg *config.Config, h *Handler, webhook http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(requestLogger(h.log))

	r.Route("/api/chat", func(r chi.Router) {
		r.Get("/", h.GetHistory)
		r.Post("/", h.PostMessage)
		r.Delete("/", h.ClearHistory)
	})

	if webhook != nil {
		r.Post("/webhook", webhookSecretCheck(cfg.TelegramWebhookSecret, webhook))
	}

	return r
}

// requestLogger logs one line per request with method, path, and duration.
func requestLogger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			log.InfoContext(r.Context(), "Handled request",
				"method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
		})
	}
}

// webhookSecretCheck rejects webhook calls whose
// X-Telegram-Bot-Api-Secret-Token header does not match the configured
// secret. An empty configured secret disables the check.
func webhookSecretCheck(secret string, next http.Handler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if secret != "" && r.Header.Get("X-Telegram-Bot-Api-Secret-Token") != secret {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	}
}

type historyResponse struct {
	Messages []historyMessage `json:"messages"`
	AvatarID string           `json:"avatarId"`
}

type historyMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type postRequest struct {
	Message  string `json:"message"`
	AvatarID string `json:"avatarId"`
	InitData string `json:"initData"`
}

type postResponse struct {
	Response string `json:"response"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type successResponse struct {
	Success bool `json:"success"`
}

// GetHistory returns the stored conversation for the resolved user.
func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.resolveUser(w, r, r.URL.Query().Get("initData"))
	if !ok {
		return
	}

	session, err := h.orchestrator.Peek(r.Context(), userID)
	if err != nil {
		h.log.ErrorContext(r.Context(), "Failed to load session", "error", err, "user_id", userID)
		h.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
		return
	}

	resp := historyResponse{
		Messages: make([]historyMessage, 0, len(session.History)),
		AvatarID: session.PersonaID,
	}
	for _, entry := range session.History {
		resp.Messages = append(resp.Messages, historyMessage{Role: string(entry.Role), Content: entry.Content})
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// PostMessage runs one conversation turn and returns the unsplit reply.
// Splitting and pacing are re-applied client-side for display.
func (h *Handler) PostMessage(w http.ResponseWriter, r *http.Request) {
	var req postRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return
	}
	if req.Message == "" || req.AvatarID == "" {
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "missing required fields"})
		return
	}

	userID, ok := h.resolveUser(w, r, req.InitData)
	if !ok {
		return
	}

	reply, err := h.orchestrator.Turn(r.Context(), userID, req.AvatarID, req.Message)
	switch {
	case err == nil:
		h.writeJSON(w, http.StatusOK, postResponse{Response: reply})
	case errors.Is(err, persona.ErrNotFound):
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid avatar id"})
	case errors.Is(err, chat.ErrNoPersona):
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "no persona selected"})
	case errors.Is(err, openrouter.ErrRateLimited):
		// Provider failures are recovered into apology replies rather
		// than surfaced as 5xx responses.
		h.writeJSON(w, http.StatusOK, postResponse{Response: h.cfg.MsgRateLimited})
	case errors.Is(err, database.ErrStorage):
		h.log.ErrorContext(r.Context(), "Conversation turn failed", "error", err, "user_id", userID)
		h.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	default:
		// Provider errors, empty completions, and network failures all
		// read the same to the user.
		h.log.WarnContext(r.Context(), "Completion failed", "error", err, "user_id", userID)
		h.writeJSON(w, http.StatusOK, postResponse{Response: h.cfg.MsgGeneralError})
	}
}

// ClearHistory runs the history-clear action for the resolved user.
func (h *Handler) ClearHistory(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.resolveUser(w, r, r.URL.Query().Get("initData"))
	if !ok {
		return
	}

	if err := h.orchestrator.Clear(r.Context(), userID, nil); err != nil {
		h.log.ErrorContext(r.Context(), "Failed to clear history", "error", err, "user_id", userID)
		h.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
		return
	}
	h.writeJSON(w, http.StatusOK, successResponse{Success: true})
}

// resolveUser derives the user identity from Telegram WebApp launch data,
// verifying its signature unless the insecure development mode is on. When
// resolution fails it writes a 401 (or the development fallback user) and
// reports whether the caller may proceed.
func (h *Handler) resolveUser(w http.ResponseWriter, r *http.Request, initData string) (int64, bool) {
	if initData == "" {
		if h.cfg.ServerInsecureInitData {
			return h.cfg.ServerDevUserID, true
		}
		h.writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
		return 0, false
	}

	if !h.cfg.ServerInsecureInitData {
		if err := verifyInitData(initData, h.cfg.TelegramToken); err != nil {
			h.log.WarnContext(r.Context(), "Rejected init data", "error", err)
			h.writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
			return 0, false
		}
	}

	userID, err := userIDFromInitData(initData)
	if err != nil {
		if h.cfg.ServerInsecureInitData {
			return h.cfg.ServerDevUserID, true
		}
		h.log.WarnContext(r.Context(), "Failed to resolve user from init data", "error", err)
		h.writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
		return 0, false
	}
	return userID, true
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.log.Error("Failed to encode JSON response", "error", err)
	}
}
