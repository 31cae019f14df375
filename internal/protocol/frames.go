// Package protocol defines the JSON frames exchanged over the chat WebSocket.
// Every frame carries a "type" discriminator. Frames are decoded once at the
// transport boundary into typed structs so downstream code never does ad-hoc
// field access on raw maps.
package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/qaaqit/QaaqConnect30-sub003/internal/models"
)

// Client -> Server frame types.
const (
	TypeAuth        = "auth"
	TypeSendMessage = "send_message"
	TypeTyping      = "typing"
)

// Server -> Client frame types.
const (
	TypeAuthOK      = "auth_ok"
	TypeAuthError   = "auth_error"
	TypeMessage     = "message"
	TypeMessageSent = "message_sent"
	TypePeerTyping  = "peer_typing"
	TypeError       = "error"
)

// Frame is implemented by every decoded frame.
type Frame interface {
	FrameType() string
}

// AuthFrame associates the socket with a user session.
type AuthFrame struct {
	Type  string `json:"type"`
	Token string `json:"token"`
}

// SendMessageFrame asks the server to persist and relay a chat message.
type SendMessageFrame struct {
	Type         string `json:"type"`
	ConnectionID int    `json:"connectionId"`
	Message      string `json:"message"`
}

// TypingFrame is an ephemeral typing indicator, relayed without persistence.
type TypingFrame struct {
	Type         string `json:"type"`
	ConnectionID int    `json:"connectionId"`
	IsTyping     bool   `json:"isTyping"`
}

// AuthOKFrame confirms a successful auth handshake.
type AuthOKFrame struct {
	Type   string `json:"type"`
	UserID int    `json:"user_id"`
}

// AuthErrorFrame signals an invalid or expired credential. Clients are
// expected to clear stored credentials and re-authenticate.
type AuthErrorFrame struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// MessageFrame delivers a peer's chat message.
type MessageFrame struct {
	Type    string             `json:"type"`
	Message models.ChatMessage `json:"message"`
}

// MessageSentFrame acknowledges the sender's own message after persistence.
type MessageSentFrame struct {
	Type    string             `json:"type"`
	Message models.ChatMessage `json:"message"`
}

// PeerTypingFrame relays a peer's typing indicator.
type PeerTypingFrame struct {
	Type         string `json:"type"`
	ConnectionID int    `json:"connectionId"`
	SenderID     int    `json:"sender_id"`
	IsTyping     bool   `json:"isTyping"`
}

// ErrorFrame reports a request-level failure over the socket.
type ErrorFrame struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// RawFrame holds a frame whose type has no dedicated struct. The dispatch key
// is the type tag alone, so unknown server tags still reach registered
// handlers with the raw payload available for decoding.
type RawFrame struct {
	Type string
	Raw  json.RawMessage
}

func (f AuthFrame) FrameType() string        { return TypeAuth }
func (f SendMessageFrame) FrameType() string { return TypeSendMessage }
func (f TypingFrame) FrameType() string      { return TypeTyping }
func (f AuthOKFrame) FrameType() string      { return TypeAuthOK }
func (f AuthErrorFrame) FrameType() string   { return TypeAuthError }
func (f MessageFrame) FrameType() string     { return TypeMessage }
func (f MessageSentFrame) FrameType() string { return TypeMessageSent }
func (f PeerTypingFrame) FrameType() string  { return TypePeerTyping }
func (f ErrorFrame) FrameType() string       { return TypeError }
func (f RawFrame) FrameType() string         { return f.Type }

// envelope extracts the type discriminator while retaining the raw bytes for
// deferred decoding into the concrete struct.
type envelope struct {
	Type string          `json:"type"`
	Raw  json.RawMessage `json:"-"`
}

func (e *envelope) UnmarshalJSON(data []byte) error {
	e.Raw = make(json.RawMessage, len(data))
	copy(e.Raw, data)

	var partial struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &partial); err != nil {
		return fmt.Errorf("protocol: unmarshal envelope: %w", err)
	}
	if partial.Type == "" {
		return fmt.Errorf("protocol: missing or empty \"type\" field")
	}
	e.Type = partial.Type
	return nil
}

// Decode parses raw WebSocket bytes into a typed frame. Frames with an
// unrecognized type tag decode into a RawFrame; frames without a valid type
// tag or with a malformed payload return an error.
func Decode(data []byte) (Frame, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, err
	}

	var (
		frame Frame
		err   error
	)
	switch env.Type {
	case TypeAuth:
		var f AuthFrame
		err = json.Unmarshal(env.Raw, &f)
		frame = f
	case TypeSendMessage:
		var f SendMessageFrame
		err = json.Unmarshal(env.Raw, &f)
		frame = f
	case TypeTyping:
		var f TypingFrame
		err = json.Unmarshal(env.Raw, &f)
		frame = f
	case TypeAuthOK:
		var f AuthOKFrame
		err = json.Unmarshal(env.Raw, &f)
		frame = f
	case TypeAuthError:
		var f AuthErrorFrame
		err = json.Unmarshal(env.Raw, &f)
		frame = f
	case TypeMessage:
		var f MessageFrame
		err = json.Unmarshal(env.Raw, &f)
		frame = f
	case TypeMessageSent:
		var f MessageSentFrame
		err = json.Unmarshal(env.Raw, &f)
		frame = f
	case TypePeerTyping:
		var f PeerTypingFrame
		err = json.Unmarshal(env.Raw, &f)
		frame = f
	case TypeError:
		var f ErrorFrame
		err = json.Unmarshal(env.Raw, &f)
		frame = f
	default:
		frame = RawFrame{Type: env.Type, Raw: env.Raw}
	}
	if err != nil {
		return nil, fmt.Errorf("protocol: decode %q payload: %w", env.Type, err)
	}
	return frame, nil
}

// NewAuth builds the handshake frame for the given credential.
func NewAuth(token string) AuthFrame {
	return AuthFrame{Type: TypeAuth, Token: token}
}

// NewSendMessage builds an outbound chat message frame.
func NewSendMessage(connectionID int, message string) SendMessageFrame {
	return SendMessageFrame{Type: TypeSendMessage, ConnectionID: connectionID, Message: message}
}

// NewTyping builds an outbound typing indicator frame.
func NewTyping(connectionID int, isTyping bool) TypingFrame {
	return TypingFrame{Type: TypeTyping, ConnectionID: connectionID, IsTyping: isTyping}
}
