package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"chatdesk/chatdesk/services/sessions"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestLoadEmptyDatabase(t *testing.T) {
	store := newTestStore(t)
	st, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if st != nil {
		t.Errorf("expected nil state, got %+v", st)
	}
	if err := store.Ping(context.Background()); err != nil {
		t.Errorf("Ping: %v", err)
	}
}

func TestSaveAndLoad(t *testing.T) {
	store := newTestStore(t)
	created := time.Date(2025, 1, 1, 0, 0, 0, 1000, time.UTC)

	want := sessions.StoreState{
		Sessions: []sessions.Session{
			{ID: "b", Title: "Second", Model: "gpt-4o", CreatedAt: created.Add(time.Hour), Messages: []sessions.Message{
				{ID: "b1", Role: sessions.RoleAssistant, Content: sessions.DefaultGreeting, Timestamp: created.Add(time.Hour)},
				{ID: "b2", Role: sessions.RoleUser, Content: "hello", Timestamp: created.Add(2 * time.Hour)},
			}},
			{ID: "a", Title: sessions.DefaultTitle, Model: "gpt-4o-mini", CreatedAt: created},
		},
		ActiveSessionID: "b",
		DefaultModel:    "gpt-4o-mini",
	}
	if err := store.Save(context.Background(), want); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.ActiveSessionID != "b" {
		t.Errorf("ActiveSessionID = %q, want %q", got.ActiveSessionID, "b")
	}
	if got.DefaultModel != "gpt-4o-mini" {
		t.Errorf("DefaultModel = %q, want %q", got.DefaultModel, "gpt-4o-mini")
	}
	if len(got.Sessions) != 2 || got.Sessions[0].ID != "b" || got.Sessions[1].ID != "a" {
		t.Fatalf("sessions out of order: %+v", got.Sessions)
	}
	if !got.Sessions[1].CreatedAt.Equal(created) {
		t.Errorf("CreatedAt = %v, want %v", got.Sessions[1].CreatedAt, created)
	}
	msgs := got.Sessions[0].Messages
	if len(msgs) != 2 || msgs[1].Content != "hello" || msgs[1].Role != sessions.RoleUser {
		t.Errorf("unexpected messages %+v", msgs)
	}
	if len(got.Sessions[1].Messages) != 0 {
		t.Errorf("expected no messages, got %+v", got.Sessions[1].Messages)
	}
}

func TestSaveOverwrites(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	store.Save(ctx, sessions.StoreState{
		Sessions:        []sessions.Session{{ID: "x", CreatedAt: now}, {ID: "y", CreatedAt: now}},
		ActiveSessionID: "x",
	})
	store.Save(ctx, sessions.StoreState{
		Sessions:        []sessions.Session{{ID: "y", Title: "kept", CreatedAt: now}},
		ActiveSessionID: "y",
	})

	got, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got.Sessions) != 1 || got.Sessions[0].Title != "kept" || got.ActiveSessionID != "y" {
		t.Errorf("unexpected state after overwrite: %+v", got)
	}
}

func TestPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chat.db")
	ctx := context.Background()

	first, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	st := sessions.New(nil, first).Initialize(ctx)
	first.Close()

	second, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer second.Close()
	reloaded := sessions.New(nil, second).Initialize(ctx)
	if len(reloaded.Sessions) != 1 || reloaded.Sessions[0].ID != st.Sessions[0].ID {
		t.Errorf("expected the seeded session to survive reopen, got %+v", reloaded.Sessions)
	}
}
