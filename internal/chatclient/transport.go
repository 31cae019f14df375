package chatclient

import (
	"fmt"
	"net/url"

	"github.com/gorilla/websocket"
)

// Transport is one live socket to the chat endpoint. The gorilla-backed
// implementation is used in production; tests substitute their own.
type Transport interface {
	WriteJSON(v any) error
	ReadMessage() ([]byte, error)
	Close() error
}

// Dialer opens transports.
type Dialer interface {
	Dial(url string) (Transport, error)
}

type wsDialer struct{}

func (wsDialer) Dial(endpoint string) (Transport, error) {
	conn, _, err := websocket.DefaultDialer.Dial(endpoint, nil)
	if err != nil {
		return nil, err
	}
	return &wsTransport{conn: conn}, nil
}

type wsTransport struct {
	conn *websocket.Conn
}

func (t *wsTransport) WriteJSON(v any) error {
	return t.conn.WriteJSON(v)
}

func (t *wsTransport) ReadMessage() ([]byte, error) {
	_, data, err := t.conn.ReadMessage()
	return data, err
}

func (t *wsTransport) Close() error {
	return t.conn.Close()
}

// EndpointFromOrigin derives the chat socket URL from the application origin:
// a secure origin yields wss, an insecure one ws.
func EndpointFromOrigin(origin string) (string, error) {
	u, err := url.Parse(origin)
	if err != nil {
		return "", fmt.Errorf("parse origin: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	default:
		return "", fmt.Errorf("unsupported origin scheme %q", u.Scheme)
	}
	u.Path = "/ws/chat"
	return u.String(), nil
}
