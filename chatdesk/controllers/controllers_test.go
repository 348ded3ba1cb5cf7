package controllers

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"chatdesk/chatdesk/services/llm"
	"chatdesk/chatdesk/services/sessions"
)

type echoClient struct {
	last llm.CompletionRequest
	err  error
	out  string
}

func (c *echoClient) Complete(_ context.Context, req llm.CompletionRequest) (string, error) {
	c.last = req
	if c.err != nil {
		return "", c.err
	}
	if c.out != "" {
		return c.out, nil
	}
	return "echo: " + req.Text, nil
}

// blockingClient holds every completion until release is closed.
type blockingClient struct {
	release chan struct{}
	once    sync.Once
}

func newBlockingClient() *blockingClient {
	return &blockingClient{release: make(chan struct{})}
}

func (c *blockingClient) Complete(_ context.Context, req llm.CompletionRequest) (string, error) {
	<-c.release
	return "echo: " + req.Text, nil
}

func (c *blockingClient) unblock() { c.once.Do(func() { close(c.release) }) }

func newChatController(t *testing.T, client llm.CompletionClient) *ChatController {
	t.Helper()
	store := sessions.New(client, sessions.NewMemoryPersistence(nil), sessions.WithDefaultModel("test-model"))
	store.Initialize(context.Background())
	return NewChatController(store)
}

// --- Relay ---

func TestRelayKeyStatus(t *testing.T) {
	ok, prefix := NewRelayController(nil, "", "").KeyStatus()
	if ok || prefix != "undefined" {
		t.Errorf("got (%v, %q), want (false, undefined)", ok, prefix)
	}
	ok, prefix = NewRelayController(nil, "sk-proj-abcdefghijkl", "").KeyStatus()
	if !ok || prefix != "sk-proj-ab" {
		t.Errorf("got (%v, %q), want (true, sk-proj-ab)", ok, prefix)
	}
}

func TestRelay(t *testing.T) {
	client := &echoClient{}
	ctrl := NewRelayController(client, "sk-test", "")

	reply, err := ctrl.Relay(context.Background(), "hello", "")
	if err != nil || reply != "echo: hello" {
		t.Fatalf("got (%q, %v)", reply, err)
	}
	if client.last.Model != "gpt-4o-mini" {
		t.Errorf("default model = %q, want gpt-4o-mini", client.last.Model)
	}

	ctrl.Relay(context.Background(), "hello", "gpt-4o")
	if client.last.Model != "gpt-4o" {
		t.Errorf("model = %q, want gpt-4o", client.last.Model)
	}
}

func TestRelayErrors(t *testing.T) {
	var cfgErr *llm.ConfigError
	if _, err := NewRelayController(&echoClient{}, "", "").Relay(context.Background(), "hi", ""); !errors.As(err, &cfgErr) {
		t.Errorf("missing key: got %v, want ConfigError", err)
	}
	if _, err := NewRelayController(&echoClient{}, "sk", "").Relay(context.Background(), "  ", ""); !errors.Is(err, ErrMessageRequired) {
		t.Errorf("blank message: got %v, want ErrMessageRequired", err)
	}
	upstream := &llm.UpstreamError{Status: 500, Message: "boom"}
	if _, err := NewRelayController(&echoClient{err: upstream}, "sk", "").Relay(context.Background(), "hi", ""); !errors.Is(err, upstream) {
		t.Errorf("upstream failure: got %v", err)
	}
}

// --- Chat ---

func TestSendMessageSync(t *testing.T) {
	ctrl := newChatController(t, &echoClient{})
	sess, err := ctrl.SendMessage(context.Background(), "ping", false)
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if len(sess.Messages) != 3 || sess.Messages[2].Content != "echo: ping" {
		t.Errorf("unexpected session %+v", sess.Messages)
	}
	if sess.Title != "ping" {
		t.Errorf("title = %q, want ping", sess.Title)
	}
}

func TestSendMessageAsync(t *testing.T) {
	ctrl := newChatController(t, &echoClient{})
	updates := ctrl.Subscribe(context.Background())

	sess, err := ctrl.SendMessage(context.Background(), "ping", true)
	if err != nil || sess != nil {
		t.Fatalf("async send should return (nil, nil), got (%v, %v)", sess, err)
	}

	deadline := time.After(2 * time.Second)
	for {
		select {
		case view := <-updates:
			active, _ := view.Lookup(view.ActiveSessionID)
			if len(active.Messages) == 3 && !view.AnyPending {
				return
			}
		case <-deadline:
			t.Fatal("reply never arrived")
		}
	}
}

func TestSendMessageRejectsBlank(t *testing.T) {
	ctrl := newChatController(t, &echoClient{})
	if _, err := ctrl.SendMessage(context.Background(), " \n", false); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("got %v, want ErrInvalidInput", err)
	}
}

func TestDeleteUnknownSession(t *testing.T) {
	ctrl := newChatController(t, &echoClient{})
	if err := ctrl.DeleteSession(context.Background(), "missing"); !errors.Is(err, sessions.ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
}

func TestSetSessionModelValidates(t *testing.T) {
	ctrl := newChatController(t, &echoClient{})
	id := ctrl.State().ActiveSessionID
	if err := ctrl.SetSessionModel(context.Background(), id, ""); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("got %v, want ErrInvalidInput", err)
	}
	if err := ctrl.SetSessionModel(context.Background(), id, "gpt-4o"); err != nil {
		t.Fatalf("SetSessionModel: %v", err)
	}
	if sess, _ := ctrl.State().Lookup(id); sess.Model != "gpt-4o" {
		t.Errorf("model = %q, want gpt-4o", sess.Model)
	}
}

func TestRegenerate(t *testing.T) {
	client := &echoClient{}
	ctrl := newChatController(t, client)
	id := ctrl.State().ActiveSessionID

	if _, err := ctrl.Regenerate(context.Background(), id); !errors.Is(err, sessions.ErrInvalidState) {
		t.Fatalf("seed-only session: got %v, want ErrInvalidState", err)
	}

	ctrl.SendMessage(context.Background(), "ping", false)
	client.out = "second answer"
	sess, err := ctrl.Regenerate(context.Background(), id)
	if err != nil {
		t.Fatalf("Regenerate: %v", err)
	}
	if len(sess.Messages) != 3 || sess.Messages[2].Content != "second answer" {
		t.Errorf("unexpected messages %+v", sess.Messages)
	}
}

func TestAsyncSendThenSelectKeepsOriginSession(t *testing.T) {
	client := newBlockingClient()
	defer client.unblock()
	ctrl := newChatController(t, client)
	ctx := context.Background()
	a := ctrl.State().ActiveSessionID
	b := ctrl.CreateSession(ctx)

	if _, err := ctrl.SendMessage(ctx, "for b", true); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}

	// The user message must already be in b when the call returns.
	sessB, _ := ctrl.State().Lookup(b)
	if len(sessB.Messages) != 2 || sessB.Messages[1].Content != "for b" {
		t.Fatalf("user message not recorded on return: %+v", sessB.Messages)
	}
	if !ctrl.State().AnyPending {
		t.Error("the send should be pending until the reply arrives")
	}

	if err := ctrl.SelectSession(ctx, a); err != nil {
		t.Fatalf("SelectSession: %v", err)
	}
	client.unblock()

	deadline := time.Now().Add(2 * time.Second)
	for ctrl.State().AnyPending {
		if time.Now().After(deadline) {
			t.Fatal("reply never arrived")
		}
		time.Sleep(5 * time.Millisecond)
	}
	st := ctrl.State()
	sessA, _ := st.Lookup(a)
	sessB, _ = st.Lookup(b)
	if len(sessA.Messages) != 1 {
		t.Errorf("session selected after the send must stay untouched, got %+v", sessA.Messages)
	}
	if len(sessB.Messages) != 3 || sessB.Messages[2].Content != "echo: for b" {
		t.Errorf("reply should land in the origin session, got %+v", sessB.Messages)
	}
}

func TestSyncSendReturnsSessionItWroteTo(t *testing.T) {
	client := newBlockingClient()
	ctrl := newChatController(t, client)
	ctx := context.Background()
	a := ctrl.State().ActiveSessionID
	b := ctrl.CreateSession(ctx)

	done := make(chan *sessions.Session, 1)
	go func() {
		sess, _ := ctrl.SendMessage(ctx, "for b", false)
		done <- sess
	}()

	deadline := time.Now().Add(2 * time.Second)
	for !ctrl.State().AnyPending {
		if time.Now().After(deadline) {
			t.Fatal("send never started")
		}
		time.Sleep(5 * time.Millisecond)
	}
	ctrl.SelectSession(ctx, a)
	client.unblock()

	sess := <-done
	if sess == nil || sess.ID != b {
		t.Fatalf("expected the snapshot of session %s, got %+v", b, sess)
	}
	if len(sess.Messages) != 3 {
		t.Errorf("unexpected messages %+v", sess.Messages)
	}
}
