package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"chatdesk/chatdesk/services/llm"
	"chatdesk/chatdesk/services/sessions"
	"chatdesk/chatdesk/utils/color"
)

type upperClient struct{}

func (upperClient) Complete(_ context.Context, req llm.CompletionRequest) (string, error) {
	return strings.ToUpper(req.Text), nil
}

func runScript(t *testing.T, secret string, lines ...string) (*sessions.Store, string) {
	t.Helper()
	color.Disable()
	store := sessions.New(upperClient{}, sessions.NewMemoryPersistence(nil), sessions.WithDefaultModel("m"))
	store.Initialize(context.Background())

	var out bytes.Buffer
	in := strings.NewReader(strings.Join(lines, "\n") + "\n")
	newREPL(store, secret, in, &out).run(context.Background())
	return store, out.String()
}

func TestREPLSendsMessages(t *testing.T) {
	store, out := runScript(t, "", "hello there", "/quit")
	if !strings.Contains(out, "HELLO THERE") {
		t.Errorf("reply not printed:\n%s", out)
	}
	sess, _ := store.Session(store.ActiveSessionID())
	if len(sess.Messages) != 3 || sess.Title != "hello there" {
		t.Errorf("unexpected session %+v", sess)
	}
}

func TestREPLSessionCommands(t *testing.T) {
	store, out := runScript(t, "",
		"/new",
		"/model gpt-4o",
		"/list",
		"/use 2",
		"/delete",
		"/use nope",
		"/bogus",
	)
	st := store.State()
	if len(st.Sessions) != 1 {
		t.Fatalf("expected one session left, got %d", len(st.Sessions))
	}
	if st.Sessions[0].Model != "gpt-4o" {
		t.Errorf("model = %q, want gpt-4o", st.Sessions[0].Model)
	}
	if !strings.Contains(out, "not found") {
		t.Errorf("expected a not-found error for /use nope:\n%s", out)
	}
	if !strings.Contains(out, "unknown command /bogus") {
		t.Errorf("expected unknown command warning:\n%s", out)
	}
	if !strings.Contains(out, "Goodbye!") {
		t.Errorf("EOF should end the loop:\n%s", out)
	}
}

func TestREPLRegenerate(t *testing.T) {
	_, out := runScript(t, "", "/regen")
	if !strings.Contains(out, "invalid") {
		t.Errorf("regenerating a fresh chat should be rejected:\n%s", out)
	}
}

func TestREPLToken(t *testing.T) {
	_, out := runScript(t, "", "/token alice")
	if !strings.Contains(out, "JWT_SECRET is not set") {
		t.Errorf("expected missing secret error:\n%s", out)
	}
	_, out = runScript(t, "s3cret", "/token alice")
	if strings.Count(out, ".") < 2 {
		t.Errorf("expected a JWT in output:\n%s", out)
	}
}
