package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/unclebandit/leadpilot-backend/internal/model"
)

type ConversationRepositoryInterface interface {
	AppendMessage(ctx context.Context, conversationID string, direction model.Direction, body string, at time.Time) error
	RecentHistory(ctx context.Context, conversationID string, limit int) ([]model.Message, error)
}

type ConversationRepository struct {
	DB *sql.DB
}

func (r *ConversationRepository) AppendMessage(ctx context.Context, conversationID string, direction model.Direction, body string, at time.Time) error {
	query := `
        INSERT INTO conversation_messages (conversation_id, direction, body, created_at)
        VALUES ($1, $2, $3, $4)
    `
	_, err := r.DB.ExecContext(ctx, query, conversationID, string(direction), body, at)
	return err
}

// RecentHistory returns the last limit messages, oldest first.
func (r *ConversationRepository) RecentHistory(ctx context.Context, conversationID string, limit int) ([]model.Message, error) {
	query := `
        SELECT id, conversation_id, direction, body, created_at FROM (
            SELECT id, conversation_id, direction, body, created_at
            FROM conversation_messages
            WHERE conversation_id=$1
            ORDER BY created_at DESC, id DESC
            LIMIT $2
        ) recent
        ORDER BY created_at ASC, id ASC
    `
	rows, err := r.DB.QueryContext(ctx, query, conversationID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := []model.Message{}
	for rows.Next() {
		var (
			m   model.Message
			dir string
		)
		if err := rows.Scan(&m.ID, &m.ConversationID, &dir, &m.Body, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.Direction = model.Direction(dir)
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

var _ ConversationRepositoryInterface = (*ConversationRepository)(nil)
