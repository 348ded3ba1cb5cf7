package controllers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"chatdesk/chatdesk/services/sessions"
	"chatdesk/chatdesk/utils/logging"

	"go.uber.org/zap"
)

// ErrInvalidInput marks a request the store would silently ignore.
var ErrInvalidInput = errors.New("invalid input")

// StateView is the store state as the HTTP and WebSocket clients see it.
type StateView struct {
	sessions.StoreState
	PendingSessions []string `json:"pending_sessions"`
	AnyPending      bool     `json:"any_pending"`
}

type ChatController struct {
	store *sessions.Store
}

func NewChatController(store *sessions.Store) *ChatController {
	return &ChatController{store: store}
}

func (c *ChatController) State() StateView {
	pending := c.store.PendingSessions()
	return StateView{
		StoreState:      c.store.State(),
		PendingSessions: pending,
		AnyPending:      len(pending) > 0,
	}
}

// Subscribe forwards store changes as StateViews until ctx ends.
func (c *ChatController) Subscribe(ctx context.Context) <-chan StateView {
	updates, cancel := c.store.Subscribe()
	out := make(chan StateView, 1)
	go func() {
		defer close(out)
		defer cancel()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-updates:
				if !ok {
					return
				}
				// Pending flags are not part of the snapshot, so rebuild the view.
				select {
				case out <- c.State():
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

func (c *ChatController) CreateSession(ctx context.Context) string {
	return c.store.CreateSession(ctx)
}

func (c *ChatController) DeleteSession(ctx context.Context, id string) error {
	if !c.store.DeleteSession(ctx, id) {
		return fmt.Errorf("delete session %s: %w", id, sessions.ErrNotFound)
	}
	return nil
}

func (c *ChatController) SelectSession(ctx context.Context, id string) error {
	return c.store.SelectSession(ctx, id)
}

func (c *ChatController) SetSessionModel(ctx context.Context, id, model string) error {
	model = strings.TrimSpace(model)
	if model == "" {
		return fmt.Errorf("model is required: %w", ErrInvalidInput)
	}
	return c.store.SetSessionModel(ctx, id, model)
}

// SendMessage records content in the active session before it returns. With
// async set only the completion runs in the background and the result is nil;
// otherwise it waits for the reply and returns the session it landed in.
func (c *ChatController) SendMessage(ctx context.Context, content string, async bool) (*sessions.Session, error) {
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("content is required: %w", ErrInvalidInput)
	}
	target, finish, ok := c.store.BeginSend(ctx, content)
	if !ok {
		return nil, fmt.Errorf("no active session: %w", sessions.ErrNotFound)
	}
	if async {
		go finish()
		return nil, nil
	}

	defer logging.LogDuration(ctx, "ChatController.SendMessage")()
	finish()
	sess, ok := c.store.Session(target)
	if !ok {
		logging.AppLogger.Info("session deleted while sending", zap.String("session_id", target))
		return nil, fmt.Errorf("session %s: %w", target, sessions.ErrNotFound)
	}
	return &sess, nil
}

func (c *ChatController) Regenerate(ctx context.Context, id string) (*sessions.Session, error) {
	if err := c.store.RegenerateLastReply(ctx, id); err != nil {
		return nil, err
	}
	sess, ok := c.store.Session(id)
	if !ok {
		return nil, fmt.Errorf("session %s: %w", id, sessions.ErrNotFound)
	}
	return &sess, nil
}
