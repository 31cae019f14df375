package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/qaaqit/QaaqConnect30-sub003/internal/models"
)

var (
	ErrConnectionNotFound = errors.New("connection not found")
	ErrConnectionExists   = errors.New("active connection already exists for pair")
	ErrSelfConnection     = errors.New("cannot request connection with self")
	ErrNotPending         = errors.New("connection is not pending")
)

const uniqueViolation = "23505"

// ConnectionRepository abstracts chat connection persistence.
type ConnectionRepository interface {
	CreateRequest(ctx context.Context, senderID int, receiverID int) (models.ChatConnection, error)
	GetConnection(ctx context.Context, connectionID int) (models.ChatConnection, error)
	ListConnectionsForUser(ctx context.Context, userID int) ([]models.ConnectionSummary, error)
	AcceptConnection(ctx context.Context, connectionID int) (models.ChatConnection, error)
	RejectConnection(ctx context.Context, connectionID int) error
	IsParticipant(ctx context.Context, connectionID int, userID int) (bool, error)
}

// ConnectionRepo is a sqlx implementation of ConnectionRepository.
type ConnectionRepo struct {
	db *sqlx.DB
}

// NewConnectionRepo constructs a ConnectionRepo.
func NewConnectionRepo(db *sqlx.DB) *ConnectionRepo {
	return &ConnectionRepo{db: db}
}

// CreateRequest persists a pending connection request from sender to receiver.
// The partial unique index on the pair rejects a second active request in
// either direction.
func (r *ConnectionRepo) CreateRequest(ctx context.Context, senderID int, receiverID int) (models.ChatConnection, error) {
	if senderID == receiverID {
		return models.ChatConnection{}, ErrSelfConnection
	}

	var conn models.ChatConnection
	err := r.db.QueryRowxContext(ctx,
		`INSERT INTO chat_connections (sender_id, receiver_id) VALUES ($1, $2)
         RETURNING id, sender_id, receiver_id, status, created_at, accepted_at`,
		senderID, receiverID).StructScan(&conn)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
			return models.ChatConnection{}, ErrConnectionExists
		}
		return models.ChatConnection{}, err
	}
	return conn, nil
}

// GetConnection fetches a connection by id.
func (r *ConnectionRepo) GetConnection(ctx context.Context, connectionID int) (models.ChatConnection, error) {
	var conn models.ChatConnection
	err := r.db.GetContext(ctx, &conn,
		`SELECT id, sender_id, receiver_id, status, created_at, accepted_at FROM chat_connections WHERE id=$1`,
		connectionID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ChatConnection{}, ErrConnectionNotFound
	}
	return conn, err
}

// ListConnectionsForUser returns the user's pending and accepted connections
// with unread message counts.
func (r *ConnectionRepo) ListConnectionsForUser(ctx context.Context, userID int) ([]models.ConnectionSummary, error) {
	query := `SELECT c.id, c.sender_id, c.receiver_id, c.status, c.created_at, c.accepted_at,
            COUNT(m.id) FILTER (WHERE m.is_read = FALSE AND m.sender_id <> $1) AS unread_count
        FROM chat_connections c
        LEFT JOIN chat_messages m ON m.connection_id = c.id
        WHERE (c.sender_id=$1 OR c.receiver_id=$1) AND c.status <> 'rejected'
        GROUP BY c.id
        ORDER BY c.created_at DESC`
	rows, err := r.db.QueryxContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []models.ConnectionSummary
	for rows.Next() {
		var row struct {
			models.ChatConnection
			UnreadCount int `db:"unread_count"`
		}
		if err := rows.StructScan(&row); err != nil {
			return nil, err
		}
		result = append(result, models.ConnectionSummary{
			ConnectionID: row.ID,
			PeerID:       row.PeerOf(userID),
			Status:       row.Status,
			UnreadCount:  row.UnreadCount,
			CreatedAt:    row.CreatedAt,
			AcceptedAt:   row.AcceptedAt,
		})
	}
	return result, rows.Err()
}

// AcceptConnection transitions a pending connection to accepted and stamps
// accepted_at.
func (r *ConnectionRepo) AcceptConnection(ctx context.Context, connectionID int) (models.ChatConnection, error) {
	var conn models.ChatConnection
	err := r.db.QueryRowxContext(ctx,
		`UPDATE chat_connections SET status='accepted', accepted_at=NOW()
         WHERE id=$1 AND status='pending'
         RETURNING id, sender_id, receiver_id, status, created_at, accepted_at`,
		connectionID).StructScan(&conn)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ChatConnection{}, ErrNotPending
	}
	return conn, err
}

// RejectConnection transitions a pending connection to rejected.
func (r *ConnectionRepo) RejectConnection(ctx context.Context, connectionID int) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE chat_connections SET status='rejected' WHERE id=$1 AND status='pending'`,
		connectionID)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrNotPending
	}
	return nil
}

// IsParticipant checks whether a user belongs to the connection.
func (r *ConnectionRepo) IsParticipant(ctx context.Context, connectionID int, userID int) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists,
		`SELECT EXISTS(SELECT 1 FROM chat_connections WHERE id=$1 AND (sender_id=$2 OR receiver_id=$2))`,
		connectionID, userID)
	return exists, err
}
