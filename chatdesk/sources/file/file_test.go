package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"chatdesk/chatdesk/services/sessions"
)

func sampleState() sessions.StoreState {
	t0 := time.Date(2025, 1, 1, 9, 30, 0, 123456000, time.UTC)
	return sessions.StoreState{
		Sessions: []sessions.Session{
			{
				ID: "s2", Title: "Explain quicksort", Model: "gpt-4o", CreatedAt: t0.Add(time.Hour),
				Messages: []sessions.Message{
					{ID: "m1", Role: sessions.RoleAssistant, Content: sessions.DefaultGreeting, Timestamp: t0.Add(time.Hour)},
					{ID: "m2", Role: sessions.RoleUser, Content: "Explain quicksort", Timestamp: t0.Add(time.Hour + time.Second)},
					{ID: "m3", Role: sessions.RoleAssistant, Content: "**Quicksort** picks a pivot...\n\n```go\nfunc qs() {}\n```", Timestamp: t0.Add(time.Hour + 2*time.Second)},
				},
			},
			{
				ID: "s1", Title: sessions.DefaultTitle, Model: "gpt-4o-mini", CreatedAt: t0,
				Messages: []sessions.Message{{ID: "m0", Role: sessions.RoleAssistant, Content: sessions.DefaultGreeting, Timestamp: t0}},
			},
		},
		ActiveSessionID: "s1",
		DefaultModel:    "gpt-4o-mini",
	}
}

func assertSameState(t *testing.T, got *sessions.StoreState, want sessions.StoreState) {
	t.Helper()
	if got == nil {
		t.Fatal("loaded state is nil")
	}
	if got.ActiveSessionID != want.ActiveSessionID || got.DefaultModel != want.DefaultModel {
		t.Errorf("header mismatch: got %q/%q, want %q/%q", got.ActiveSessionID, got.DefaultModel, want.ActiveSessionID, want.DefaultModel)
	}
	if len(got.Sessions) != len(want.Sessions) {
		t.Fatalf("sessions len = %d, want %d", len(got.Sessions), len(want.Sessions))
	}
	for i, ws := range want.Sessions {
		gs := got.Sessions[i]
		if gs.ID != ws.ID || gs.Title != ws.Title || gs.Model != ws.Model || !gs.CreatedAt.Equal(ws.CreatedAt) {
			t.Errorf("session %d = %+v, want %+v", i, gs, ws)
		}
		if len(gs.Messages) != len(ws.Messages) {
			t.Fatalf("session %d messages len = %d, want %d", i, len(gs.Messages), len(ws.Messages))
		}
		for j, wm := range ws.Messages {
			gm := gs.Messages[j]
			if gm.ID != wm.ID || gm.Role != wm.Role || gm.Content != wm.Content || !gm.Timestamp.Equal(wm.Timestamp) {
				t.Errorf("session %d message %d = %+v, want %+v", i, j, gm, wm)
			}
		}
	}
}

func TestRoundTripJSON(t *testing.T) {
	s, err := New(filepath.Join(t.TempDir(), "state.json"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	want := sampleState()
	if err := s.Save(context.Background(), want); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := s.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	assertSameState(t, got, want)
}

func TestRoundTripYAML(t *testing.T) {
	s, err := New(filepath.Join(t.TempDir(), "nested", "state.yaml"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	want := sampleState()
	if err := s.Save(context.Background(), want); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := s.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	assertSameState(t, got, want)
}

func TestLoadMissingFileIsAbsent(t *testing.T) {
	s, _ := New(filepath.Join(t.TempDir(), "state.json"))
	got, err := s.Load(context.Background())
	if err != nil || got != nil {
		t.Fatalf("expected (nil, nil), got (%v, %v)", got, err)
	}
}

func TestLoadMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	if err := os.WriteFile(path, []byte(`{"sessions": [`), 0o644); err != nil {
		t.Fatal(err)
	}
	s, _ := New(path)
	if _, err := s.Load(context.Background()); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestStoreInitializesFromMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	os.WriteFile(path, []byte(`not json at all`), 0o644)
	fs, _ := New(path)

	st := sessions.New(nil, fs).Initialize(context.Background())
	if len(st.Sessions) != 1 {
		t.Fatalf("expected one default session, got %d", len(st.Sessions))
	}
	reloaded, err := fs.Load(context.Background())
	if err != nil {
		t.Fatalf("default session should overwrite the broken file: %v", err)
	}
	if len(reloaded.Sessions) != 1 || reloaded.Sessions[0].ID != st.Sessions[0].ID {
		t.Errorf("unexpected reloaded state %+v", reloaded)
	}
}

func TestRoundTripDefaultOnlyState(t *testing.T) {
	s, _ := New(filepath.Join(t.TempDir(), "state.json"))
	want := sessions.New(nil, s, sessions.WithDefaultModel("m")).Initialize(context.Background())

	got, err := s.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	assertSameState(t, got, want)
}
