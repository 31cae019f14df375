package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"

	"github.com/qaaqit/QaaqConnect30-sub003/internal/auth"
	"github.com/qaaqit/QaaqConnect30-sub003/internal/models"
	"github.com/qaaqit/QaaqConnect30-sub003/internal/observability"
	"github.com/qaaqit/QaaqConnect30-sub003/internal/protocol"
	"github.com/qaaqit/QaaqConnect30-sub003/internal/repositories"
)

// authDeadline bounds how long an upgraded socket may stay unauthenticated
// before the server drops it.
const authDeadline = 10 * time.Second

// ChatWebSocketHandler handles the live chat socket. Clients authenticate by
// sending an auth frame immediately after the transport opens.
type ChatWebSocketHandler struct {
	hub         *Hub
	connRepo    repositories.ConnectionRepository
	messageRepo repositories.MessageRepository
	authService *auth.Service
}

// NewChatWebSocketHandler constructs a ChatWebSocketHandler.
func NewChatWebSocketHandler(hub *Hub, connRepo repositories.ConnectionRepository, messageRepo repositories.MessageRepository, authService *auth.Service) *ChatWebSocketHandler {
	return &ChatWebSocketHandler{hub: hub, connRepo: connRepo, messageRepo: messageRepo, authService: authService}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handle upgrades the connection, waits for the auth handshake, and runs the
// frame loop.
func (h *ChatWebSocketHandler) Handle(c *gin.Context) {
	ctx, span := otel.Tracer("qaaq-chat/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	userID, err := h.awaitAuth(conn)
	if err != nil {
		h.writeFrame(conn, protocol.AuthErrorFrame{Type: protocol.TypeAuthError, Message: "authentication failed"})
		conn.Close()
		return
	}
	conn.SetReadDeadline(time.Time{})
	h.writeFrame(conn, protocol.AuthOKFrame{Type: protocol.TypeAuthOK, UserID: userID})

	traceID := span.SpanContext().TraceID().String()
	requestID := observability.RequestIDFromRequest(c.Request)
	info := ConnInfo{
		ConnID:      newConnID(),
		UserID:      userID,
		DeviceID:    observability.DeviceIDFromRequest(c.Request),
		IP:          observability.IPFromRequest(c.Request),
		RequestID:   requestID,
		TraceID:     traceID,
		ConnectedAt: time.Now(),
	}
	h.hub.AddClient(userID, conn, info)

	observability.IncWSActive()
	observability.IncWSEvent("ws_connect")
	h.publishSocketEvent(ctx, "ws_connect", info, "")

	go h.readLoop(context.WithoutCancel(ctx), conn, info)
}

// awaitAuth reads the handshake frame. Any first frame other than a valid
// auth frame rejects the socket.
func (h *ChatWebSocketHandler) awaitAuth(conn *websocket.Conn) (int, error) {
	conn.SetReadDeadline(time.Now().Add(authDeadline))
	_, data, err := conn.ReadMessage()
	if err != nil {
		return 0, err
	}

	frame, err := protocol.Decode(data)
	if err != nil {
		return 0, err
	}
	authFrame, ok := frame.(protocol.AuthFrame)
	if !ok {
		return 0, errors.New("expected auth frame")
	}
	observability.IncWSFrame(protocol.TypeAuth, "in")
	return h.authService.Validate(authFrame.Token)
}

func (h *ChatWebSocketHandler) readLoop(ctx context.Context, conn *websocket.Conn, info ConnInfo) {
	var closeReason string
	defer func() {
		h.hub.RemoveClient(info.UserID, conn)
		observability.DecWSActive()
		observability.IncWSEvent("ws_disconnect")
		h.publishSocketEvent(ctx, "ws_disconnect", info, closeReason)
		conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			closeReason = err.Error()
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				observability.IncWSEvent("ws_error")
				h.publishSocketEvent(ctx, "ws_error", info, closeReason)
			}
			return
		}

		frame, err := protocol.Decode(data)
		if err != nil {
			// Malformed frames are dropped; the loop survives.
			log.Printf("websocket frame discarded: %v", err)
			continue
		}

		switch f := frame.(type) {
		case protocol.SendMessageFrame:
			observability.IncWSFrame(protocol.TypeSendMessage, "in")
			h.handleSendMessage(ctx, info.UserID, f)
		case protocol.TypingFrame:
			observability.IncWSFrame(protocol.TypeTyping, "in")
			h.handleTyping(ctx, info.UserID, f)
		case protocol.AuthFrame:
			// The socket is already bound to a session.
			log.Printf("websocket duplicate auth frame ignored user=%d", info.UserID)
		default:
			log.Printf("websocket unexpected frame type %q user=%d", frame.FrameType(), info.UserID)
		}
	}
}

// handleSendMessage persists the message and relays it. The accepted-status
// check runs on every send; acceptance is never cached per socket.
func (h *ChatWebSocketHandler) handleSendMessage(ctx context.Context, senderID int, f protocol.SendMessageFrame) {
	chatConn, err := h.connRepo.GetConnection(ctx, f.ConnectionID)
	if err != nil {
		h.sendError(senderID, f.ConnectionID, err)
		return
	}
	if !chatConn.IsParticipant(senderID) || chatConn.Status != models.ConnectionAccepted {
		h.hub.SendToUser(senderID, protocol.ErrorFrame{Type: protocol.TypeError, Code: "forbidden", Message: "connection not accepted"})
		return
	}

	msg, err := h.messageRepo.CreateMessage(ctx, f.ConnectionID, senderID, f.Message)
	if err != nil {
		h.sendError(senderID, f.ConnectionID, err)
		return
	}

	// Best-effort live delivery; the stored row is the durable copy.
	observability.IncWSFrame(protocol.TypeMessage, "out")
	h.hub.SendToUser(chatConn.PeerOf(senderID), protocol.MessageFrame{Type: protocol.TypeMessage, Message: msg})
	h.hub.SendToUser(senderID, protocol.MessageSentFrame{Type: protocol.TypeMessageSent, Message: msg})
}

// handleTyping relays the indicator without persisting anything.
func (h *ChatWebSocketHandler) handleTyping(ctx context.Context, senderID int, f protocol.TypingFrame) {
	chatConn, err := h.connRepo.GetConnection(ctx, f.ConnectionID)
	if err != nil || !chatConn.IsParticipant(senderID) || chatConn.Status != models.ConnectionAccepted {
		return
	}
	observability.IncWSFrame(protocol.TypePeerTyping, "out")
	h.hub.SendToUser(chatConn.PeerOf(senderID), protocol.PeerTypingFrame{
		Type:         protocol.TypePeerTyping,
		ConnectionID: f.ConnectionID,
		SenderID:     senderID,
		IsTyping:     f.IsTyping,
	})
}

func (h *ChatWebSocketHandler) sendError(userID int, connectionID int, err error) {
	code := "storage_error"
	if errors.Is(err, repositories.ErrConnectionNotFound) {
		code = "not_found"
	} else if errors.Is(err, repositories.ErrEmptyMessage) {
		code = "invalid_frame"
	}
	log.Printf("websocket send_message failed user=%d connection=%d: %v", userID, connectionID, err)
	h.hub.SendToUser(userID, protocol.ErrorFrame{Type: protocol.TypeError, Code: code, Message: err.Error()})
}

func (h *ChatWebSocketHandler) writeFrame(conn *websocket.Conn, frame any) {
	payload, err := json.Marshal(frame)
	if err != nil {
		return
	}
	if err := h.hub.writeConn(conn, payload); err != nil {
		log.Printf("websocket write error: %v", err)
	}
}

func (h *ChatWebSocketHandler) publishSocketEvent(ctx context.Context, event string, info ConnInfo, reason string) {
	_ = observability.PublishEvent(ctx, "ws_events.chat", observability.EventEnvelope{
		EventType: "ws_events",
		EventName: event,
		RequestID: info.RequestID,
		TraceID:   info.TraceID,
		Payload: map[string]any{
			"ws": map[string]any{
				"event":       event,
				"conn_id":     info.ConnID,
				"duration_ms": time.Since(info.ConnectedAt).Milliseconds(),
				"reason":      reason,
			},
			"identity": map[string]any{
				"user_id":   info.UserID,
				"device_id": info.DeviceID,
				"ip":        info.IP,
			},
		},
	})
}
