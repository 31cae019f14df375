package repositories

import (
	"context"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/qaaqit/QaaqConnect30-sub003/internal/models"
)

var ErrEmptyMessage = errors.New("message body is empty")

// MessageRepository defines interactions for chat messages.
type MessageRepository interface {
	CreateMessage(ctx context.Context, connectionID int, senderID int, body string) (models.ChatMessage, error)
	ListMessages(ctx context.Context, connectionID int) ([]models.ChatMessage, error)
	MarkRead(ctx context.Context, connectionID int, readerID int) (int64, error)
}

// MessageRepo is a sqlx-backed repository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

// CreateMessage stores a message in an accepted connection. The caller is
// responsible for the accepted-status check; the write itself is a single
// atomic row insert.
func (r *MessageRepo) CreateMessage(ctx context.Context, connectionID int, senderID int, body string) (models.ChatMessage, error) {
	if body == "" {
		return models.ChatMessage{}, ErrEmptyMessage
	}
	var msg models.ChatMessage
	err := r.db.QueryRowxContext(ctx,
		`INSERT INTO chat_messages (connection_id, sender_id, message) VALUES ($1, $2, $3)
         RETURNING id, connection_id, sender_id, message, is_read, created_at`,
		connectionID, senderID, body).StructScan(&msg)
	return msg, err
}

// ListMessages returns the connection's messages in send order.
func (r *MessageRepo) ListMessages(ctx context.Context, connectionID int) ([]models.ChatMessage, error) {
	var msgs []models.ChatMessage
	err := r.db.SelectContext(ctx, &msgs,
		`SELECT id, connection_id, sender_id, message, is_read, created_at
         FROM chat_messages WHERE connection_id=$1 ORDER BY created_at ASC`,
		connectionID)
	return msgs, err
}

// MarkRead flips is_read on messages addressed to the reader. Repeating the
// call is a no-op since already-read rows are excluded by the filter.
func (r *MessageRepo) MarkRead(ctx context.Context, connectionID int, readerID int) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE chat_messages SET is_read=TRUE WHERE connection_id=$1 AND sender_id<>$2 AND is_read=FALSE`,
		connectionID, readerID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
