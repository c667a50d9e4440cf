package database

import (
	"time"
)

// Role identifies the author of a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// HistoryEntry is a single conversation turn as sent to the completion API.
type HistoryEntry struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Session holds all per-user conversation state. Fields are always present;
// NewSession defaults them so callers never need nil checks.
type Session struct {
	UserID    int64     `db:"user_id"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`

	// PersonaID is empty until the user picks a persona.
	PersonaID    string `db:"persona_id"`
	AgeConfirmed bool   `db:"age_confirmed"`

	History            []HistoryEntry `db:"-"`
	OutboundMessageIDs []int          `db:"-"`
	InboundMessageIDs  []int          `db:"-"`
}

// NewSession returns the default session for a user that has never been seen.
func NewSession(userID int64) *Session {
	now := time.Now().UTC()
	return &Session{
		UserID:             userID,
		CreatedAt:          now,
		UpdatedAt:          now,
		History:            []HistoryEntry{},
		OutboundMessageIDs: []int{},
		InboundMessageIDs:  []int{},
	}
}

// AppendUser records a user turn at the end of the history.
func (s *Session) AppendUser(content string) {
	s.History = append(s.History, HistoryEntry{Role: RoleUser, Content: content})
}

// AppendAssistant records an assistant turn at the end of the history.
func (s *Session) AppendAssistant(content string) {
	s.History = append(s.History, HistoryEntry{Role: RoleAssistant, Content: content})
}

// ClearHistory resets the conversation history and message bookkeeping.
// The selected persona and the age confirmation flag survive a clear.
func (s *Session) ClearHistory() {
	s.History = []HistoryEntry{}
	s.OutboundMessageIDs = []int{}
	s.InboundMessageIDs = []int{}
}
