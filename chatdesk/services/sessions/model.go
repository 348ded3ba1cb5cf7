package sessions

import (
	"time"
	"unicode/utf8"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

const (
	// DefaultTitle marks a session whose title has not been derived yet.
	DefaultTitle = "New Chat"
	// DefaultGreeting seeds every new session.
	DefaultGreeting = "Hello! How can I help you today?"
	// FallbackReply is appended when a completion fails.
	FallbackReply = "Sorry, something went wrong. Please try again."

	titleMaxRunes = 50
)

type Message struct {
	ID        string    `json:"id" yaml:"id"`
	Role      Role      `json:"role" yaml:"role"`
	Content   string    `json:"content" yaml:"content"`
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
}

type Session struct {
	ID        string    `json:"id" yaml:"id"`
	Title     string    `json:"title" yaml:"title"`
	Model     string    `json:"model" yaml:"model"`
	Messages  []Message `json:"messages" yaml:"messages"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

// StoreState is everything a Persistence writes and reads back.
// Sessions are ordered newest first.
type StoreState struct {
	Sessions        []Session `json:"sessions" yaml:"sessions"`
	ActiveSessionID string    `json:"active_session_id" yaml:"active_session_id"`
	DefaultModel    string    `json:"default_model" yaml:"default_model"`
}

// Lookup returns the session with id, if present.
func (st StoreState) Lookup(id string) (Session, bool) {
	for _, s := range st.Sessions {
		if s.ID == id {
			return s, true
		}
	}
	return Session{}, false
}

// Clone returns a copy that shares no slices with st.
func (st StoreState) Clone() StoreState {
	out := StoreState{
		ActiveSessionID: st.ActiveSessionID,
		DefaultModel:    st.DefaultModel,
	}
	if st.Sessions != nil {
		out.Sessions = make([]Session, len(st.Sessions))
		for i, s := range st.Sessions {
			out.Sessions[i] = s.clone()
		}
	}
	return out
}

func (s Session) clone() Session {
	c := s
	c.Messages = append([]Message(nil), s.Messages...)
	return c
}

// UserMessages counts the messages sent by the user.
func (s Session) UserMessages() int {
	n := 0
	for _, m := range s.Messages {
		if m.Role == RoleUser {
			n++
		}
	}
	return n
}

// DeriveTitle turns a first user message into a sidebar title. The title is
// a prefix of the text exactly as sent, surrounding whitespace included.
func DeriveTitle(text string) string {
	if utf8.RuneCountInString(text) <= titleMaxRunes {
		return text
	}
	return string([]rune(text)[:titleMaxRunes]) + "..."
}
