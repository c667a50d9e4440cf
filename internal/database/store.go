package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
)

// ErrStorage wraps any session read/write failure so callers can treat
// storage problems uniformly (and retry once before giving up).
var ErrStorage = errors.New("session storage error")

// Store defines the interface for session persistence.
// GetSession never fails on a missing row: unknown users get a default
// session (read-through with default). SaveSession is a full overwrite
// keyed by user id.
type Store interface {
	// Ping checks the database connection.
	Ping(ctx context.Context) error

	// GetSession retrieves the session for a user, creating a default
	// in-memory session if none is stored yet.
	GetSession(ctx context.Context, userID int64) (*Session, error)

	// SaveSession inserts or replaces the stored session for session.UserID.
	SaveSession(ctx context.Context, session *Session) error

	// RunSQLMaintenance performs database maintenance tasks like VACUUM.
	RunSQLMaintenance(ctx context.Context) error
}

// sessionRow is the wire form of a Session: list fields are stored as JSON
// text columns so the whole session round-trips in one row.
type sessionRow struct {
	UserID       int64     `db:"user_id"`
	PersonaID    string    `db:"persona_id"`
	AgeConfirmed bool      `db:"age_confirmed"`
	History      string    `db:"history"`
	OutboundIDs  string    `db:"outbound_message_ids"`
	InboundIDs   string    `db:"inbound_message_ids"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

// sqlxStore provides an implementation of the Store interface using sqlx.
type sqlxStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStore creates a new Store implementation backed by sqlx.
// It requires a connected sqlx.DB instance and a logger.
func NewStore(db *sqlx.DB, logger *slog.Logger) Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &sqlxStore{
		db:     db,
		logger: logger.With("component", "store"),
	}
}

// Ping checks the database connection.
func (s *sqlxStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// GetSession retrieves the session for a user, returning a fresh default
// session when the user has no stored row.
func (s *sqlxStore) GetSession(ctx context.Context, userID int64) (*Session, error) {
	if userID == 0 {
		return nil, fmt.Errorf("%w: user_id cannot be zero", ErrStorage)
	}

	var row sessionRow
	query := `
        SELECT user_id, persona_id, age_confirmed, history, outbound_message_ids, inbound_message_ids, created_at, updated_at
        FROM sessions
        WHERE user_id = ?;
    `

	err := s.db.GetContext(ctx, &row, query, userID)
	if errors.Is(err, sql.ErrNoRows) {
		s.logger.DebugContext(ctx, "No stored session, returning default", "user_id", userID)
		return NewSession(userID), nil
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "Error loading session", "user_id", userID, "error", err)
		return nil, fmt.Errorf("%w: failed to load session for user %d: %v", ErrStorage, userID, err)
	}

	session, err := rowToSession(&row)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error decoding stored session", "user_id", userID, "error", err)
		return nil, fmt.Errorf("%w: failed to decode session for user %d: %v", ErrStorage, userID, err)
	}

	s.logger.DebugContext(ctx, "Session loaded", "user_id", userID, "history_len", len(session.History))
	return session, nil
}

// SaveSession inserts or replaces the stored session for session.UserID.
func (s *sqlxStore) SaveSession(ctx context.Context, session *Session) error {
	if session == nil {
		return fmt.Errorf("%w: cannot save nil session", ErrStorage)
	}
	if session.UserID == 0 {
		return fmt.Errorf("%w: session must have a non-zero user_id", ErrStorage)
	}

	session.UpdatedAt = time.Now().UTC()
	if session.CreatedAt.IsZero() {
		session.CreatedAt = session.UpdatedAt
	}

	row, err := sessionToRow(session)
	if err != nil {
		return fmt.Errorf("%w: failed to encode session for user %d: %v", ErrStorage, session.UserID, err)
	}

	query := `
        INSERT INTO sessions (user_id, persona_id, age_confirmed, history, outbound_message_ids, inbound_message_ids, created_at, updated_at)
        VALUES (:user_id, :persona_id, :age_confirmed, :history, :outbound_message_ids, :inbound_message_ids, :created_at, :updated_at)
        ON CONFLICT(user_id) DO UPDATE SET
            persona_id = excluded.persona_id,
            age_confirmed = excluded.age_confirmed,
            history = excluded.history,
            outbound_message_ids = excluded.outbound_message_ids,
            inbound_message_ids = excluded.inbound_message_ids,
            updated_at = excluded.updated_at;
    `

	if _, err := s.db.NamedExecContext(ctx, query, row); err != nil {
		s.logger.ErrorContext(ctx, "Error saving session", "user_id", session.UserID, "error", err)
		return fmt.Errorf("%w: failed to save session for user %d: %v", ErrStorage, session.UserID, err)
	}

	s.logger.DebugContext(ctx, "Session saved", "user_id", session.UserID, "history_len", len(session.History))
	return nil
}

// RunSQLMaintenance executes a VACUUM command on the SQLite database.
func (s *sqlxStore) RunSQLMaintenance(ctx context.Context) error {
	if ctx.Err() != nil {
		s.logger.WarnContext(ctx, "Context cancelled or timed out before starting VACUUM", "error", ctx.Err())
		return ctx.Err()
	}

	s.logger.InfoContext(ctx, "Starting database maintenance (VACUUM)...")
	start := time.Now()

	if _, err := s.db.ExecContext(ctx, "VACUUM;"); err != nil {
		s.logger.ErrorContext(ctx, "Database maintenance failed", "error", err)
		return fmt.Errorf("failed to run VACUUM: %w", err)
	}

	s.logger.InfoContext(ctx, "Database maintenance finished", "duration", time.Since(start))
	return nil
}

func rowToSession(row *sessionRow) (*Session, error) {
	session := &Session{
		UserID:       row.UserID,
		PersonaID:    row.PersonaID,
		AgeConfirmed: row.AgeConfirmed,
		CreatedAt:    row.CreatedAt,
		UpdatedAt:    row.UpdatedAt,
	}

	if err := json.Unmarshal([]byte(row.History), &session.History); err != nil {
		return nil, fmt.Errorf("invalid history JSON: %w", err)
	}
	if err := json.Unmarshal([]byte(row.OutboundIDs), &session.OutboundMessageIDs); err != nil {
		return nil, fmt.Errorf("invalid outbound_message_ids JSON: %w", err)
	}
	if err := json.Unmarshal([]byte(row.InboundIDs), &session.InboundMessageIDs); err != nil {
		return nil, fmt.Errorf("invalid inbound_message_ids JSON: %w", err)
	}

	if session.History == nil {
		session.History = []HistoryEntry{}
	}
	if session.OutboundMessageIDs == nil {
		session.OutboundMessageIDs = []int{}
	}
	if session.InboundMessageIDs == nil {
		session.InboundMessageIDs = []int{}
	}

	return session, nil
}

func sessionToRow(session *Session) (*sessionRow, error) {
	history, err := json.Marshal(session.History)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal history: %w", err)
	}
	outbound, err := json.Marshal(session.OutboundMessageIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal outbound_message_ids: %w", err)
	}
	inbound, err := json.Marshal(session.InboundMessageIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal inbound_message_ids: %w", err)
	}

	return &sessionRow{
		UserID:       session.UserID,
		PersonaID:    session.PersonaID,
		AgeConfirmed: session.AgeConfirmed,
		History:      string(history),
		OutboundIDs:  string(outbound),
		InboundIDs:   string(inbound),
		CreatedAt:    session.CreatedAt,
		UpdatedAt:    session.UpdatedAt,
	}, nil
}
