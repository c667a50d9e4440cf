package database

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) Store {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := NewDB(dbPath)
	if err != nil {
		t.Fatalf("NewDB(%q) error = %v", dbPath, err)
	}
	t.Cleanup(func() { CloseDB(db) })

	return NewStore(db, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestGetSessionUnknownUser(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	session, err := store.GetSession(context.Background(), 42)
	if err != nil {
		t.Fatalf("GetSession() error = %v, unknown users must get a default session", err)
	}
	if session.UserID != 42 {
		t.Errorf("UserID = %d, want 42", session.UserID)
	}
	if len(session.History) != 0 {
		t.Errorf("default session carries %d history entries", len(session.History))
	}
}

func TestGetSessionZeroUser(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	_, err := store.GetSession(context.Background(), 0)
	if !errors.Is(err, ErrStorage) {
		t.Fatalf("GetSession(0) error = %v, want ErrStorage", err)
	}
}

func TestSaveAndGetSessionRoundTrip(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	session := NewSession(42)
	session.PersonaID = "mila"
	session.AgeConfirmed = true
	session.AppendUser("hello")
	session.AppendAssistant("hi there")
	session.OutboundMessageIDs = []int{11, 12}
	session.InboundMessageIDs = []int{21}

	if err := store.SaveSession(ctx, session); err != nil {
		t.Fatalf("SaveSession() error = %v", err)
	}

	loaded, err := store.GetSession(ctx, 42)
	if err != nil {
		t.Fatalf("GetSession() error = %v", err)
	}
	if loaded.PersonaID != "mila" || !loaded.AgeConfirmed {
		t.Errorf("identity fields = %q / %v", loaded.PersonaID, loaded.AgeConfirmed)
	}
	if len(loaded.History) != 2 {
		t.Fatalf("history has %d entries, want 2", len(loaded.History))
	}
	if loaded.History[0].Role != RoleUser || loaded.History[0].Content != "hello" {
		t.Errorf("first entry = %+v", loaded.History[0])
	}
	if loaded.History[1].Role != RoleAssistant || loaded.History[1].Content != "hi there" {
		t.Errorf("second entry = %+v", loaded.History[1])
	}
	if len(loaded.OutboundMessageIDs) != 2 || loaded.OutboundMessageIDs[0] != 11 {
		t.Errorf("outbound ids = %v", loaded.OutboundMessageIDs)
	}
	if len(loaded.InboundMessageIDs) != 1 || loaded.InboundMessageIDs[0] != 21 {
		t.Errorf("inbound ids = %v", loaded.InboundMessageIDs)
	}
	if loaded.CreatedAt.IsZero() || loaded.UpdatedAt.IsZero() {
		t.Error("timestamps not populated on save")
	}
}

func TestSaveSessionOverwrites(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	session := NewSession(42)
	session.PersonaID = "alex"
	session.AppendUser("first")
	if err := store.SaveSession(ctx, session); err != nil {
		t.Fatalf("SaveSession() error = %v", err)
	}

	session.AppendAssistant("reply")
	session.PersonaID = "dana"
	if err := store.SaveSession(ctx, session); err != nil {
		t.Fatalf("second SaveSession() error = %v", err)
	}

	loaded, err := store.GetSession(ctx, 42)
	if err != nil {
		t.Fatalf("GetSession() error = %v", err)
	}
	if loaded.PersonaID != "dana" {
		t.Errorf("persona = %q, want the overwritten value", loaded.PersonaID)
	}
	if len(loaded.History) != 2 {
		t.Errorf("history has %d entries, want 2", len(loaded.History))
	}
}

func TestSaveSessionNil(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	if err := store.SaveSession(context.Background(), nil); !errors.Is(err, ErrStorage) {
		t.Fatalf("SaveSession(nil) error = %v, want ErrStorage", err)
	}
}

func TestRunSQLMaintenance(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	if err := store.RunSQLMaintenance(context.Background()); err != nil {
		t.Fatalf("RunSQLMaintenance() error = %v", err)
	}
}

func TestExtractDBNameFromPath(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name     string
		path     string
		expected string
	}{
		{name: "plain path", path: "storage.db", expected: "storage.db"},
		{name: "file scheme", path: "file:storage.db", expected: "storage.db"},
		{name: "query params stripped", path: "file:storage.db?cache=shared", expected: "storage.db"},
		{name: "escaped path decoded", path: "data%20dir/storage.db", expected: "data dir/storage.db"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			if got := ExtractDBNameFromPath(tc.path); got != tc.expected {
				t.Errorf("ExtractDBNameFromPath(%q) = %q, want %q", tc.path, got, tc.expected)
			}
		})
	}
}
