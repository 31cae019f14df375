package models

import "time"

// ChatMessage represents a message within an accepted connection.
// It is mutated only to flip IsRead once the recipient has viewed it.
type ChatMessage struct {
	ID           int       `db:"id" json:"id"`
	ConnectionID int       `db:"connection_id" json:"connection_id"`
	SenderID     int       `db:"sender_id" json:"sender_id"`
	Message      string    `db:"message" json:"message"`
	IsRead       bool      `db:"is_read" json:"is_read"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// UserProfile is the minimal profile payload the client keeps alongside the
// session credential.
type UserProfile struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	Rank     string `json:"rank,omitempty"`
	ShipName string `json:"ship_name,omitempty"`
}
