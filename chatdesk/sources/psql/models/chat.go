package models

import (
	"time"
)

// ChatSession is one row per conversation. Position keeps the sidebar order
// (0 = newest).
type ChatSession struct {
	ID        string        `json:"id" gorm:"type:varchar(64);primaryKey"`
	Position  int           `json:"position" gorm:"not null;index"`
	Title     string        `json:"title" gorm:"type:varchar(255);not null"`
	Model     string        `json:"model" gorm:"type:varchar(255);not null"`
	CreatedAt time.Time     `json:"created_at" gorm:"not null"`
	Messages  []ChatMessage `json:"messages,omitempty" gorm:"foreignKey:SessionID;references:ID;constraint:OnDelete:CASCADE"`
}

func (ChatSession) TableName() string {
	return "chat_sessions"
}

type ChatMessage struct {
	ID        string    `json:"id" gorm:"type:varchar(64);primaryKey"`
	SessionID string    `json:"session_id" gorm:"type:varchar(64);not null;index"`
	Position  int       `json:"position" gorm:"not null"`
	Role      string    `json:"role" gorm:"type:varchar(50);not null"`
	Content   string    `json:"content" gorm:"type:text;not null"`
	Timestamp time.Time `json:"timestamp" gorm:"not null"`
}

func (ChatMessage) TableName() string {
	return "chat_messages"
}

// StoreMeta is a single row (ID 1) holding the store-wide pointers.
type StoreMeta struct {
	ID              int    `json:"id" gorm:"primaryKey"`
	ActiveSessionID string `json:"active_session_id" gorm:"type:varchar(64)"`
	DefaultModel    string `json:"default_model" gorm:"type:varchar(255)"`
}

func (StoreMeta) TableName() string {
	return "chat_store_meta"
}
