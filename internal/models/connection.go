package models

import "time"

// Connection status values. A connection starts as pending and is either
// accepted or rejected by the receiver. Rejected is terminal.
const (
	ConnectionPending  = "pending"
	ConnectionAccepted = "accepted"
	ConnectionRejected = "rejected"
)

// ChatConnection represents a directed chat request between two users.
// Messages may only flow once the receiver has accepted.
type ChatConnection struct {
	ID         int        `db:"id" json:"id"`
	SenderID   int        `db:"sender_id" json:"sender_id"`
	ReceiverID int        `db:"receiver_id" json:"receiver_id"`
	Status     string     `db:"status" json:"status"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
	AcceptedAt *time.Time `db:"accepted_at" json:"accepted_at,omitempty"`
}

// IsParticipant reports whether the user is one of the connection's two parties.
func (c ChatConnection) IsParticipant(userID int) bool {
	return c.SenderID == userID || c.ReceiverID == userID
}

// PeerOf returns the other party of the connection.
func (c ChatConnection) PeerOf(userID int) int {
	if c.SenderID == userID {
		return c.ReceiverID
	}
	return c.SenderID
}

// ConnectionSummary provides an API-friendly view of a connection for a user.
type ConnectionSummary struct {
	ConnectionID int        `db:"id" json:"connection_id"`
	PeerID       int        `json:"peer_id"`
	Status       string     `db:"status" json:"status"`
	UnreadCount  int        `db:"unread_count" json:"unread_count"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	AcceptedAt   *time.Time `db:"accepted_at" json:"accepted_at,omitempty"`
}
