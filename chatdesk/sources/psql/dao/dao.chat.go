package dao

import (
	"context"
	"errors"
	"fmt"

	"chatdesk/chatdesk/services/sessions"
	"chatdesk/chatdesk/sources/psql/models"

	"gorm.io/gorm"
)

const metaRowID = 1

// ChatStateDAO persists the whole chat store in chat_sessions,
// chat_messages and chat_store_meta.
type ChatStateDAO struct {
	DB *gorm.DB
}

func NewChatStateDAO(db *gorm.DB) *ChatStateDAO {
	return &ChatStateDAO{DB: db}
}

// Load returns (nil, nil) when no session has been saved.
func (dao *ChatStateDAO) Load(ctx context.Context) (*sessions.StoreState, error) {
	db := dao.DB.WithContext(ctx)

	var rows []models.ChatSession
	if err := db.Order("position asc").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load sessions: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	var msgs []models.ChatMessage
	if err := db.Order("session_id asc, position asc").Find(&msgs).Error; err != nil {
		return nil, fmt.Errorf("load messages: %w", err)
	}
	bySession := make(map[string][]sessions.Message, len(rows))
	for _, m := range msgs {
		bySession[m.SessionID] = append(bySession[m.SessionID], sessions.Message{
			ID:        m.ID,
			Role:      sessions.Role(m.Role),
			Content:   m.Content,
			Timestamp: m.Timestamp.UTC(),
		})
	}

	st := &sessions.StoreState{Sessions: make([]sessions.Session, 0, len(rows))}
	for _, r := range rows {
		st.Sessions = append(st.Sessions, sessions.Session{
			ID:        r.ID,
			Title:     r.Title,
			Model:     r.Model,
			CreatedAt: r.CreatedAt.UTC(),
			Messages:  bySession[r.ID],
		})
	}

	var meta models.StoreMeta
	err := db.First(&meta, metaRowID).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("load store meta: %w", err)
	}
	st.ActiveSessionID = meta.ActiveSessionID
	st.DefaultModel = meta.DefaultModel
	return st, nil
}

// Save replaces every stored row with st in one transaction.
func (dao *ChatStateDAO) Save(ctx context.Context, st sessions.StoreState) error {
	return dao.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		all := tx.Session(&gorm.Session{AllowGlobalUpdate: true})
		if err := all.Delete(&models.ChatMessage{}).Error; err != nil {
			return fmt.Errorf("clear messages: %w", err)
		}
		if err := all.Delete(&models.ChatSession{}).Error; err != nil {
			return fmt.Errorf("clear sessions: %w", err)
		}

		var rows []models.ChatSession
		var msgs []models.ChatMessage
		for i, s := range st.Sessions {
			rows = append(rows, models.ChatSession{
				ID:        s.ID,
				Position:  i,
				Title:     s.Title,
				Model:     s.Model,
				CreatedAt: s.CreatedAt,
			})
			for j, m := range s.Messages {
				msgs = append(msgs, models.ChatMessage{
					ID:        m.ID,
					SessionID: s.ID,
					Position:  j,
					Role:      string(m.Role),
					Content:   m.Content,
					Timestamp: m.Timestamp,
				})
			}
		}
		if len(rows) > 0 {
			if err := tx.Create(&rows).Error; err != nil {
				return fmt.Errorf("insert sessions: %w", err)
			}
		}
		if len(msgs) > 0 {
			if err := tx.CreateInBatches(&msgs, 200).Error; err != nil {
				return fmt.Errorf("insert messages: %w", err)
			}
		}

		meta := models.StoreMeta{ID: metaRowID, ActiveSessionID: st.ActiveSessionID, DefaultModel: st.DefaultModel}
		if err := tx.Save(&meta).Error; err != nil {
			return fmt.Errorf("save store meta: %w", err)
		}
		return nil
	})
}

// Ping checks that the database still answers.
func (dao *ChatStateDAO) Ping(ctx context.Context) error {
	sqlDB, err := dao.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
