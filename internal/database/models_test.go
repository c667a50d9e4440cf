package database

import "testing"

func TestNewSessionDefaults(t *testing.T) {
	t.Parallel()

	s := NewSession(42)
	if s.UserID != 42 {
		t.Errorf("UserID = %d, want 42", s.UserID)
	}
	if s.PersonaID != "" || s.AgeConfirmed {
		t.Errorf("fresh session has persona %q / age %v, want empty defaults", s.PersonaID, s.AgeConfirmed)
	}
	if len(s.History) != 0 || len(s.OutboundMessageIDs) != 0 || len(s.InboundMessageIDs) != 0 {
		t.Error("fresh session carries non-empty history or bookkeeping")
	}
}

func TestAppendTurns(t *testing.T) {
	t.Parallel()

	s := NewSession(42)
	s.AppendUser("hello")
	s.AppendAssistant("hi there")

	if len(s.History) != 2 {
		t.Fatalf("history has %d entries, want 2", len(s.History))
	}
	if s.History[0].Role != RoleUser || s.History[0].Content != "hello" {
		t.Errorf("first entry = %+v", s.History[0])
	}
	if s.History[1].Role != RoleAssistant || s.History[1].Content != "hi there" {
		t.Errorf("second entry = %+v", s.History[1])
	}
}

func TestClearHistoryPreservesIdentity(t *testing.T) {
	t.Parallel()

	s := NewSession(42)
	s.PersonaID = "mila"
	s.AgeConfirmed = true
	s.AppendUser("hello")
	s.AppendAssistant("hi")
	s.OutboundMessageIDs = []int{1, 2}
	s.InboundMessageIDs = []int{3}

	s.ClearHistory()

	if len(s.History) != 0 {
		t.Errorf("history has %d entries after clear, want 0", len(s.History))
	}
	if len(s.OutboundMessageIDs) != 0 || len(s.InboundMessageIDs) != 0 {
		t.Errorf("bookkeeping not reset: %v / %v", s.OutboundMessageIDs, s.InboundMessageIDs)
	}
	if s.PersonaID != "mila" {
		t.Errorf("persona = %q, want preserved", s.PersonaID)
	}
	if !s.AgeConfirmed {
		t.Error("age confirmation lost")
	}
}
