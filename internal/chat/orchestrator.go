package chat

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/passionapp/passionbot/internal/database"
	"github.com/passionapp/passionbot/internal/openrouter"
	"github.com/passionapp/passionbot/internal/persona"
)

var (
	// ErrNoPersona is returned for a content turn when the session has no
	// selected persona. The model is never called in that case.
	ErrNoPersona = errors.New("no persona selected")

	// ErrAgeNotConfirmed is returned on the Telegram ingress when the user
	// has not passed the age gate yet.
	ErrAgeNotConfirmed = errors.New("age not confirmed")
)

// Deliverer sends reply parts to an interactive channel.
type Deliverer interface {
	// Typing signals a typing indicator; failures are ignored.
	Typing(ctx context.Context)

	// SendPart delivers one part and returns the channel's message id for
	// it, or 0 when the channel has no message identifiers.
	SendPart(ctx context.Context, part string) (int, error)
}

// MessageDeleter removes previously delivered messages from a channel.
type MessageDeleter interface {
	DeleteMessage(ctx context.Context, messageID int) error
}

// SleepFunc pauses for the given duration or until the context is done.
// It is injectable so tests and batch contexts run without real delays.
type SleepFunc func(ctx context.Context, d time.Duration) error

func ctxSleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Orchestrator runs conversation turns for both ingress adapters against
// the shared session store and completion client. Turns for the same user
// are serialized for their full duration, including the completion call
// and delivery pacing.
type Orchestrator struct {
	store   database.Store
	client  openrouter.Client
	catalog *persona.Catalog
	log     *slog.Logger
	sleep   SleepFunc
	locks   *userLocks
}

// NewOrchestrator creates a conversation orchestrator.
func NewOrchestrator(store database.Store, client openrouter.Client, catalog *persona.Catalog, log *slog.Logger) *Orchestrator {
	return &Orchestrator{
		store:   store,
		client:  client,
		catalog: catalog,
		log:     log.With("component", "orchestrator"),
		sleep:   ctxSleep,
		locks:   newUserLocks(),
	}
}

// Peek returns the current session for a user without running a turn.
// Callers must treat the result as read-only.
func (o *Orchestrator) Peek(ctx context.Context, userID int64) (*database.Session, error) {
	unlock := o.locks.Lock(userID)
	defer unlock()
	return o.load(ctx, userID)
}

// ConfirmAge marks the user's session as age-confirmed.
func (o *Orchestrator) ConfirmAge(ctx context.Context, userID int64) error {
	unlock := o.locks.Lock(userID)
	defer unlock()

	session, err := o.load(ctx, userID)
	if err != nil {
		return err
	}
	session.AgeConfirmed = true
	return o.save(ctx, session)
}

// SelectPersona sets the user's persona after validating it against the
// catalog.
func (o *Orchestrator) SelectPersona(ctx context.Context, userID int64, personaID string) error {
	if _, err := o.catalog.Get(personaID); err != nil {
		return err
	}

	unlock := o.locks.Lock(userID)
	defer unlock()

	session, err := o.load(ctx, userID)
	if err != nil {
		return err
	}
	session.PersonaID = personaID
	return o.save(ctx, session)
}

// RecordSent appends a bot-sent message id to the session bookkeeping so a
// later history clear can delete it. Used for prompt messages sent outside
// a turn (age gate, persona selection).
func (o *Orchestrator) RecordSent(ctx context.Context, userID int64, messageID int) error {
	if messageID == 0 {
		return nil
	}

	unlock := o.locks.Lock(userID)
	defer unlock()

	session, err := o.load(ctx, userID)
	if err != nil {
		return err
	}
	session.OutboundMessageIDs = append(session.OutboundMessageIDs, messageID)
	return o.save(ctx, session)
}

// Turn runs one conversation turn for the Mini App ingress and returns the
// unsplit assistant reply; splitting is re-applied client-side there. A
// non-empty personaID selects (or switches) the persona for the session.
func (o *Orchestrator) Turn(ctx context.Context, userID int64, personaID, text string) (string, error) {
	unlock := o.locks.Lock(userID)
	defer unlock()

	session, err := o.load(ctx, userID)
	if err != nil {
		return "", err
	}

	if personaID != "" {
		if _, err := o.catalog.Get(personaID); err != nil {
			return "", err
		}
		session.PersonaID = personaID
	}
	if session.PersonaID == "" {
		return "", ErrNoPersona
	}

	return o.generate(ctx, session, text)
}

// TurnDeliver runs one conversation turn for the Telegram ingress and
// delivers the split reply through d with typing-cadence pacing, recording
// delivered message ids in the session.
func (o *Orchestrator) TurnDeliver(ctx context.Context, userID int64, text string, inboundMessageID int, d Deliverer) error {
	unlock := o.locks.Lock(userID)
	defer unlock()

	session, err := o.load(ctx, userID)
	if err != nil {
		return err
	}
	if !session.AgeConfirmed {
		return ErrAgeNotConfirmed
	}
	if session.PersonaID == "" {
		return ErrNoPersona
	}

	if inboundMessageID != 0 {
		session.InboundMessageIDs = append(session.InboundMessageIDs, inboundMessageID)
	}

	reply, err := o.generate(ctx, session, text)
	if err != nil {
		return err
	}

	// The full reply is already in the history; delivery failures from
	// here on lose messages, not conversation memory.
	parts := SplitReply(reply)
	for i, part := range parts {
		if i > 0 {
			d.Typing(ctx)
			if err := o.sleep(ctx, PartDelay(part)); err != nil {
				o.log.WarnContext(ctx, "Delivery interrupted, dropping remaining parts",
					"user_id", userID, "delivered", i, "total", len(parts), "error", err)
				break
			}
		}
		id, err := d.SendPart(ctx, part)
		if err != nil {
			o.log.WarnContext(ctx, "Failed to deliver reply part, dropping remaining parts",
				"user_id", userID, "delivered", i, "total", len(parts), "error", err)
			break
		}
		if id != 0 {
			session.OutboundMessageIDs = append(session.OutboundMessageIDs, id)
		}
	}

	return o.save(ctx, session)
}

// Clear deletes all recorded outbound and inbound messages through deleter
// (best-effort; individual failures are logged and ignored) and resets the
// session's history and bookkeeping. Persona and age confirmation survive.
func (o *Orchestrator) Clear(ctx context.Context, userID int64, deleter MessageDeleter) error {
	unlock := o.locks.Lock(userID)
	defer unlock()

	session, err := o.load(ctx, userID)
	if err != nil {
		return err
	}

	if deleter != nil {
		ids := make([]int, 0, len(session.OutboundMessageIDs)+len(session.InboundMessageIDs))
		ids = append(ids, session.OutboundMessageIDs...)
		ids = append(ids, session.InboundMessageIDs...)
		for _, id := range ids {
			if err := deleter.DeleteMessage(ctx, id); err != nil {
				o.log.DebugContext(ctx, "Failed to delete message during history clear",
					"user_id", userID, "message_id", id, "error", err)
			}
		}
	}

	session.ClearHistory()
	return o.save(ctx, session)
}

// generate appends the user turn, calls the completion client, and appends
// the assistant turn on success. On completion failure the user turn stays
// in the history but no assistant turn is appended.
func (o *Orchestrator) generate(ctx context.Context, session *database.Session, text string) (string, error) {
	p, err := o.catalog.Get(session.PersonaID)
	if err != nil {
		return "", err
	}

	prior := session.History
	session.AppendUser(text)
	if err := o.save(ctx, session); err != nil {
		return "", err
	}

	reply, err := o.client.Complete(ctx, BuildSystemPrompt(p.SystemPrompt), prior, text)
	if err != nil {
		o.log.WarnContext(ctx, "Completion failed", "user_id", session.UserID, "error", err)
		return "", err
	}

	// The unsplit reply is what the conversation remembers; splitting is a
	// presentation concern only.
	session.AppendAssistant(reply)
	if err := o.save(ctx, session); err != nil {
		return "", err
	}

	return reply, nil
}

// load reads the session, retrying once on a storage failure.
func (o *Orchestrator) load(ctx context.Context, userID int64) (*database.Session, error) {
	session, err := o.store.GetSession(ctx, userID)
	if err != nil && errors.Is(err, database.ErrStorage) && ctx.Err() == nil {
		o.log.WarnContext(ctx, "Session load failed, retrying once", "user_id", userID, "error", err)
		session, err = o.store.GetSession(ctx, userID)
	}
	return session, err
}

// save persists the session, retrying once on a storage failure.
func (o *Orchestrator) save(ctx context.Context, session *database.Session) error {
	err := o.store.SaveSession(ctx, session)
	if err != nil && errors.Is(err, database.ErrStorage) && ctx.Err() == nil {
		o.log.WarnContext(ctx, "Session save failed, retrying once", "user_id", session.UserID, "error", err)
		err = o.store.SaveSession(ctx, session)
	}
	return err
}
