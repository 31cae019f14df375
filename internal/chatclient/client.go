// Package chatclient implements the client side of the chat socket: one
// managed transport with an auth handshake, automatic reconnection, a typed
// dispatch table for inbound frames, and observers for coarse connectivity
// transitions. A Client is constructed explicitly and injected where needed;
// there is no package-level instance.
package chatclient

import (
	"log"
	"sync"
	"time"

	"github.com/qaaqit/QaaqConnect30-sub003/internal/protocol"
)

// State is the transport lifecycle state.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateOpen
	StateClosing
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	default:
		return "unknown"
	}
}

const (
	// DefaultReconnectLimit is how many automatic reconnects are attempted
	// after an unexpected close before giving up.
	DefaultReconnectLimit = 5
	// DefaultReconnectDelay is the fixed wait before each reconnect attempt.
	DefaultReconnectDelay = 3 * time.Second
)

// Handler receives a decoded inbound frame. Handlers run on the read loop
// goroutine and may call back into the Client.
type Handler func(protocol.Frame)

// Observer receives coarse connectivity transitions. Connecting is not
// surfaced.
type Observer func(connected bool)

// Subscription identifies a registered observer.
type Subscription struct {
	id int
}

type observerEntry struct {
	id int
	fn Observer
}

// Option configures a Client.
type Option func(*Client)

// WithDialer substitutes the transport dialer. Used by tests.
func WithDialer(d Dialer) Option {
	return func(c *Client) { c.dialer = d }
}

// WithReconnectDelay overrides the reconnect delay.
func WithReconnectDelay(d time.Duration) Option {
	return func(c *Client) { c.reconnectDelay = d }
}

// WithReconnectLimit overrides the reconnect limit.
func WithReconnectLimit(n int) Option {
	return func(c *Client) { c.reconnectLimit = n }
}

// Client owns one chat socket and its lifecycle.
type Client struct {
	endpoint       string
	dialer         Dialer
	reconnectLimit int
	reconnectDelay time.Duration

	mu             sync.Mutex
	state          State
	conn           Transport
	token          string
	attempts       int
	intentional    bool
	gen            uint64
	reconnectTimer *time.Timer
	handlers       map[string]Handler
	observers      []observerEntry
	nextSubID      int
}

// New builds a disconnected Client for the given application origin.
func New(origin string, opts ...Option) (*Client, error) {
	endpoint, err := EndpointFromOrigin(origin)
	if err != nil {
		return nil, err
	}

	c := &Client{
		endpoint:       endpoint,
		dialer:         wsDialer{},
		reconnectLimit: DefaultReconnectLimit,
		reconnectDelay: DefaultReconnectDelay,
		handlers:       make(map[string]Handler),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// SetToken updates the held credential. It takes effect at the next auth
// handshake; an already-open connection is not re-authenticated.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// State reports the current transport state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connect opens the transport unless one is already connecting or open. The
// call returns immediately; the outcome is delivered through observers.
func (c *Client) Connect() {
	c.mu.Lock()
	if c.state == StateConnecting || c.state == StateOpen {
		c.mu.Unlock()
		return
	}
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
	c.state = StateConnecting
	c.intentional = false
	c.gen++
	gen := c.gen
	c.mu.Unlock()

	go c.dial(gen)
}

// Disconnect closes the transport and suppresses any pending or future
// automatic reconnection. Only an explicit Connect resumes the session.
func (c *Client) Disconnect() {
	c.mu.Lock()
	c.intentional = true
	c.gen++
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
	conn := c.conn
	c.conn = nil
	wasOpen := c.state == StateOpen
	if conn != nil {
		c.state = StateClosing
	}
	c.mu.Unlock()

	if conn != nil {
		conn.Close()
	}

	c.mu.Lock()
	c.state = StateDisconnected
	c.mu.Unlock()

	if wasOpen {
		c.notifyObservers(false)
	}
}

// SendMessage transmits a chat message. If the transport is not open the
// frame is dropped with a warning; the caller re-sends after reconnecting if
// delivery matters.
func (c *Client) SendMessage(connectionID int, message string) {
	c.sendFrame(protocol.NewSendMessage(connectionID, message))
}

// SendTyping transmits a typing indicator, fire-and-forget.
func (c *Client) SendTyping(connectionID int, isTyping bool) {
	c.sendFrame(protocol.NewTyping(connectionID, isTyping))
}

// Register installs the handler for a frame type. The previous handler for
// that type, if any, is replaced.
func (c *Client) Register(frameType string, handler Handler) {
	c.mu.Lock()
	c.handlers[frameType] = handler
	c.mu.Unlock()
}

// Unregister removes the handler for a frame type.
func (c *Client) Unregister(frameType string) {
	c.mu.Lock()
	delete(c.handlers, frameType)
	c.mu.Unlock()
}

// Subscribe adds a connectivity observer. Observers are notified in
// subscription order.
func (c *Client) Subscribe(fn Observer) Subscription {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextSubID++
	sub := Subscription{id: c.nextSubID}
	c.observers = append(c.observers, observerEntry{id: sub.id, fn: fn})
	return sub
}

// Unsubscribe removes a connectivity observer. Unknown subscriptions are
// ignored.
func (c *Client) Unsubscribe(sub Subscription) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, entry := range c.observers {
		if entry.id == sub.id {
			c.observers = append(c.observers[:i], c.observers[i+1:]...)
			return
		}
	}
}

func (c *Client) dial(gen uint64) {
	conn, err := c.dialer.Dial(c.endpoint)

	c.mu.Lock()
	if gen != c.gen {
		// Disconnect (or a newer Connect) superseded this dial.
		c.mu.Unlock()
		if conn != nil {
			conn.Close()
		}
		return
	}

	if err != nil {
		c.state = StateDisconnected
		c.scheduleReconnectLocked()
		c.mu.Unlock()
		log.Printf("chat socket connect failed: %v", err)
		c.notifyObservers(false)
		return
	}

	c.conn = conn
	c.attempts = 0
	// The auth frame goes out before the state flips visible to senders, so
	// no application frame can precede it.
	if c.token != "" {
		if werr := conn.WriteJSON(protocol.NewAuth(c.token)); werr != nil {
			log.Printf("chat socket auth write failed: %v", werr)
		}
	}
	c.state = StateOpen
	c.mu.Unlock()

	c.notifyObservers(true)
	go c.readLoop(conn)
}

func (c *Client) readLoop(conn Transport) {
	for {
		data, err := conn.ReadMessage()
		if err != nil {
			c.handleClose(conn, err)
			return
		}
		c.dispatch(data)
	}
}

func (c *Client) dispatch(data []byte) {
	frame, err := protocol.Decode(data)
	if err != nil {
		// Malformed frames are logged and discarded; dispatch survives.
		log.Printf("chat socket frame discarded: %v", err)
		return
	}

	c.mu.Lock()
	handler := c.handlers[frame.FrameType()]
	c.mu.Unlock()
	if handler == nil {
		return
	}
	handler(frame)
}

func (c *Client) handleClose(conn Transport, err error) {
	c.mu.Lock()
	if c.conn != conn {
		// Already replaced or intentionally closed.
		c.mu.Unlock()
		return
	}
	c.conn = nil
	c.state = StateDisconnected
	c.scheduleReconnectLocked()
	c.mu.Unlock()

	log.Printf("chat socket closed: %v", err)
	c.notifyObservers(false)
}

// scheduleReconnectLocked arms the reconnect timer unless the close was
// intentional or the attempt limit is exhausted. Callers hold c.mu.
func (c *Client) scheduleReconnectLocked() {
	if c.intentional {
		return
	}
	if c.attempts >= c.reconnectLimit {
		log.Printf("chat socket reconnect limit reached, waiting for explicit connect")
		return
	}
	c.attempts++
	attempt := c.attempts
	c.reconnectTimer = time.AfterFunc(c.reconnectDelay, func() {
		log.Printf("chat socket reconnecting attempt=%d", attempt)
		c.Connect()
	})
}

func (c *Client) sendFrame(frame protocol.Frame) {
	c.mu.Lock()
	if c.state != StateOpen || c.conn == nil {
		c.mu.Unlock()
		log.Printf("chat socket not open, dropping %s frame", frame.FrameType())
		return
	}
	err := c.conn.WriteJSON(frame)
	c.mu.Unlock()

	if err != nil {
		log.Printf("chat socket write failed: %v", err)
	}
}

func (c *Client) notifyObservers(connected bool) {
	c.mu.Lock()
	observers := make([]Observer, 0, len(c.observers))
	for _, entry := range c.observers {
		observers = append(observers, entry.fn)
	}
	c.mu.Unlock()

	for _, fn := range observers {
		fn(connected)
	}
}
