// Package sessions owns chat sessions, their message history and the active
// session pointer. Store is the only thing allowed to mutate that state.
package sessions

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"chatdesk/chatdesk/services/llm"
	"chatdesk/chatdesk/utils/logging"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Store struct {
	mu          sync.Mutex
	client      llm.CompletionClient
	persistence Persistence
	log         *zap.Logger
	errLog      *zap.Logger
	now         func() time.Time

	defaultModel string
	greeting     string

	sessions []*Session // newest first
	activeID string
	pending  map[string]int

	subs    map[int]chan StoreState
	nextSub int
}

type Option func(*Store)

func WithDefaultModel(model string) Option {
	return func(s *Store) {
		if model != "" {
			s.defaultModel = model
		}
	}
}

func WithGreeting(greeting string) Option {
	return func(s *Store) {
		if greeting != "" {
			s.greeting = greeting
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithLoggers replaces the app and error loggers (logging.AppLogger and
// logging.ErrorLogger by default).
func WithLoggers(app, errs *zap.Logger) Option {
	return func(s *Store) {
		if app != nil {
			s.log = app
		}
		if errs != nil {
			s.errLog = errs
		}
	}
}

// New builds an empty store. Call Initialize before serving requests.
func New(client llm.CompletionClient, persistence Persistence, opts ...Option) *Store {
	if client == nil {
		client = llm.Unconfigured("no completion client")
	}
	if persistence == nil {
		persistence = nopPersistence{}
	}
	s := &Store{
		client:       client,
		persistence:  persistence,
		log:          logging.AppLogger,
		errLog:       logging.ErrorLogger,
		now:          func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
		defaultModel: "gpt-4o-mini",
		greeting:     DefaultGreeting,
		pending:      make(map[string]int),
		subs:         make(map[int]chan StoreState),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Initialize adopts the persisted state when it holds sessions, otherwise it
// seeds one default session and saves it. Load failures are logged and
// treated as absent state.
func (s *Store) Initialize(ctx context.Context) StoreState {
	loaded, err := s.persistence.Load(ctx)
	if err != nil {
		s.errLog.Error("load persisted sessions", zap.Error(&PersistenceError{Op: "load", Err: err}))
		loaded = nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions = nil
	s.activeID = ""
	if loaded != nil {
		if loaded.DefaultModel != "" && loaded.DefaultModel != s.defaultModel {
			s.log.Info("persisted default model replaced by configured one",
				zap.String("persisted", loaded.DefaultModel), zap.String("configured", s.defaultModel))
		}
		for _, sess := range loaded.Sessions {
			if sess.ID == "" {
				s.log.Warn("persisted session without id dropped", zap.String("title", sess.Title))
				continue
			}
			c := sess.clone()
			if len(c.Messages) == 0 {
				c.Messages = []Message{s.newMessage(RoleAssistant, s.greeting)}
			}
			s.sessions = append(s.sessions, &c)
		}
	}

	if len(s.sessions) > 0 {
		s.activeID = s.sessions[0].ID
		s.log.Info("sessions restored", zap.Int("count", len(s.sessions)), zap.String("active", s.activeID))
		s.publishLocked()
		return s.snapshotLocked()
	}

	sess := s.newSession()
	s.sessions = []*Session{sess}
	s.activeID = sess.ID
	s.log.Info("default session created", zap.String("session_id", sess.ID))
	s.commitLocked(ctx)
	return s.snapshotLocked()
}

// CreateSession inserts a fresh session at the front and makes it active.
func (s *Store) CreateSession(ctx context.Context) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.newSession()
	s.sessions = append([]*Session{sess}, s.sessions...)
	s.activeID = sess.ID
	s.commitLocked(ctx)
	return sess.ID
}

// DeleteSession removes a session and reports whether it existed. The active
// pointer moves to the first remaining session; an emptied store gets a new
// default session.
func (s *Store) DeleteSession(ctx context.Context, id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexLocked(id)
	if idx < 0 {
		return false
	}
	s.sessions = append(s.sessions[:idx], s.sessions[idx+1:]...)

	if len(s.sessions) == 0 {
		sess := s.newSession()
		s.sessions = []*Session{sess}
		s.activeID = sess.ID
	} else if s.activeID == id || s.indexLocked(s.activeID) < 0 {
		s.activeID = s.sessions[0].ID
	}
	s.commitLocked(ctx)
	return true
}

func (s *Store) SelectSession(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.indexLocked(id) < 0 {
		return fmt.Errorf("select %s: %w", id, ErrNotFound)
	}
	s.activeID = id
	s.commitLocked(ctx)
	return nil
}

func (s *Store) SetSessionModel(ctx context.Context, id, model string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.findLocked(id)
	if sess == nil {
		return fmt.Errorf("set model on %s: %w", id, ErrNotFound)
	}
	sess.Model = model
	s.commitLocked(ctx)
	return nil
}

// SendUserMessage appends text to the active session, asks the completion
// client for a reply and appends it to that same session, even if another
// session became active meanwhile. It blocks until the reply (or the
// fallback message) is recorded and never fails.
func (s *Store) SendUserMessage(ctx context.Context, text string) {
	if _, finish, ok := s.BeginSend(ctx, text); ok {
		finish()
	}
}

// BeginSend records text as a user message in the active session, derives
// the title, marks the session pending and persists, all before it returns.
// The returned finish runs the completion and appends the reply to the
// session with the returned id; it may run on another goroutine. ok is false
// when text is blank or no session is active, and nothing was recorded.
func (s *Store) BeginSend(ctx context.Context, text string) (sessionID string, finish func(), ok bool) {
	if strings.TrimSpace(text) == "" {
		return "", nil, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.findLocked(s.activeID)
	if sess == nil {
		return "", nil, false
	}
	sessionID, model := sess.ID, sess.Model
	firstUserMessage := sess.UserMessages() == 0
	sess.Messages = append(sess.Messages, s.newMessage(RoleUser, text))
	if firstUserMessage && sess.Title == DefaultTitle {
		sess.Title = DeriveTitle(text)
	}
	s.pending[sessionID]++
	s.commitLocked(ctx)

	// The reply belongs to the session even if the caller goes away.
	callCtx := context.WithoutCancel(ctx)
	return sessionID, func() { s.finishSend(callCtx, sessionID, model, text) }, true
}

func (s *Store) finishSend(ctx context.Context, sessionID, model, text string) {
	reply, err := s.client.Complete(ctx, llm.CompletionRequest{Text: text, Model: model})
	if err != nil {
		s.logCompletionFailure("send", sessionID, err)
		reply = FallbackReply
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.donePendingLocked(sessionID)
	target := s.findLocked(sessionID)
	if target == nil {
		s.log.Warn("reply dropped, session deleted", zap.String("session_id", sessionID))
		s.publishLocked()
		return
	}
	target.Messages = append(target.Messages, s.newMessage(RoleAssistant, reply))
	s.commitLocked(ctx)
}

// RegenerateLastReply re-asks the completion for the user message preceding
// the final assistant message and swaps the reply in place. A failed
// completion leaves the old reply untouched and is only logged.
func (s *Store) RegenerateLastReply(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	sess := s.findLocked(sessionID)
	if sess == nil {
		s.mu.Unlock()
		return fmt.Errorf("regenerate %s: %w", sessionID, ErrNotFound)
	}
	n := len(sess.Messages)
	if n < 2 || sess.Messages[n-1].Role != RoleAssistant || sess.Messages[n-2].Role != RoleUser {
		s.mu.Unlock()
		return fmt.Errorf("regenerate %s: no user message followed by a reply: %w", sessionID, ErrInvalidState)
	}
	targetID := sess.Messages[n-1].ID
	text, model := sess.Messages[n-2].Content, sess.Model
	s.pending[sessionID]++
	s.publishLocked()
	s.mu.Unlock()

	callCtx := context.WithoutCancel(ctx)
	reply, err := s.client.Complete(callCtx, llm.CompletionRequest{Text: text, Model: model})

	s.mu.Lock()
	defer s.mu.Unlock()
	s.donePendingLocked(sessionID)
	if err != nil {
		s.logCompletionFailure("regenerate", sessionID, err)
		s.publishLocked()
		return nil
	}
	target := s.findLocked(sessionID)
	if target == nil {
		s.log.Warn("regenerated reply dropped, session deleted", zap.String("session_id", sessionID))
		s.publishLocked()
		return nil
	}
	for i := range target.Messages {
		if target.Messages[i].ID == targetID {
			target.Messages[i] = s.newMessage(RoleAssistant, reply)
			s.commitLocked(callCtx)
			return nil
		}
	}
	s.log.Warn("regenerated reply dropped, message gone", zap.String("session_id", sessionID), zap.String("message_id", targetID))
	s.publishLocked()
	return nil
}

// State returns a deep copy of the current state.
func (s *Store) State() StoreState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Store) Session(id string) (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.findLocked(id)
	if sess == nil {
		return Session{}, false
	}
	return sess.clone(), true
}

func (s *Store) ActiveSessionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeID
}

// IsPending reports whether a completion for the session is in flight.
func (s *Store) IsPending(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending[id] > 0
}

// AnyPending reports whether any completion is in flight.
func (s *Store) AnyPending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range s.pending {
		if n > 0 {
			return true
		}
	}
	return false
}

// PendingSessions lists the sessions with a completion in flight.
func (s *Store) PendingSessions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.pending))
	for _, sess := range s.sessions {
		if s.pending[sess.ID] > 0 {
			out = append(out, sess.ID)
		}
	}
	return out
}

// Subscribe returns a channel that receives a snapshot after every change.
// Slow readers only see the latest snapshot. Call the returned func to stop.
func (s *Store) Subscribe() (<-chan StoreState, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextSub
	s.nextSub++
	ch := make(chan StoreState, 1)
	s.subs[id] = ch
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.subs, id)
			close(ch)
		})
	}
}

func (s *Store) newSession() *Session {
	now := s.now()
	return &Session{
		ID:        uuid.Must(uuid.NewV7()).String(),
		Title:     DefaultTitle,
		Model:     s.defaultModel,
		Messages:  []Message{s.newMessage(RoleAssistant, s.greeting)},
		CreatedAt: now,
	}
}

func (s *Store) newMessage(role Role, content string) Message {
	return Message{
		ID:        uuid.Must(uuid.NewV7()).String(),
		Role:      role,
		Content:   content,
		Timestamp: s.now(),
	}
}

func (s *Store) indexLocked(id string) int {
	for i, sess := range s.sessions {
		if sess.ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) findLocked(id string) *Session {
	if i := s.indexLocked(id); i >= 0 {
		return s.sessions[i]
	}
	return nil
}

func (s *Store) donePendingLocked(id string) {
	if s.pending[id] <= 1 {
		delete(s.pending, id)
		return
	}
	s.pending[id]--
}

func (s *Store) snapshotLocked() StoreState {
	st := StoreState{
		Sessions:        make([]Session, len(s.sessions)),
		ActiveSessionID: s.activeID,
		DefaultModel:    s.defaultModel,
	}
	for i, sess := range s.sessions {
		st.Sessions[i] = sess.clone()
	}
	return st
}

// commitLocked saves and notifies subscribers. Save failures are logged only.
func (s *Store) commitLocked(ctx context.Context) {
	if err := s.persistence.Save(context.WithoutCancel(ctx), s.snapshotLocked()); err != nil {
		s.errLog.Error("save sessions", zap.Error(&PersistenceError{Op: "save", Err: err}))
	}
	s.publishLocked()
}

func (s *Store) publishLocked() {
	if len(s.subs) == 0 {
		return
	}
	snap := s.snapshotLocked()
	for _, ch := range s.subs {
		select {
		case ch <- snap:
		default:
			// drop the stale snapshot, keep the newest
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
}

func (s *Store) logCompletionFailure(op, sessionID string, err error) {
	s.errLog.Error("completion failed",
		zap.String("op", op),
		zap.String("session_id", sessionID),
		zap.String("kind", llm.Kind(err)),
		zap.Error(err),
	)
}
