package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/qaaqit/QaaqConnect30-sub003/internal/models"
	"github.com/qaaqit/QaaqConnect30-sub003/internal/protocol"
	"github.com/qaaqit/QaaqConnect30-sub003/internal/repositories"
	"github.com/qaaqit/QaaqConnect30-sub003/internal/telemetry"
	"github.com/qaaqit/QaaqConnect30-sub003/internal/ws"
)

// ChatHandler manages chat connection and message endpoints.
type ChatHandler struct {
	connRepo    repositories.ConnectionRepository
	messageRepo repositories.MessageRepository
	hub         *ws.Hub
	audit       *telemetry.AuditEmitter
}

// NewChatHandler builds a ChatHandler.
func NewChatHandler(connRepo repositories.ConnectionRepository, messageRepo repositories.MessageRepository, hub *ws.Hub, audit *telemetry.AuditEmitter) *ChatHandler {
	return &ChatHandler{
		connRepo:    connRepo,
		messageRepo: messageRepo,
		hub:         hub,
		audit:       audit,
	}
}

// ListConnections returns pending and accepted connections for the user,
// with unread counts.
func (h *ChatHandler) ListConnections(c *gin.Context) {
	userID := c.GetInt("userID")

	connections, err := h.connRepo.ListConnectionsForUser(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load connections"})
		return
	}
	if connections == nil {
		connections = []models.ConnectionSummary{}
	}

	c.JSON(http.StatusOK, gin.H{"connections": connections})
}

// CreateConnection creates a pending connection request to another user.
func (h *ChatHandler) CreateConnection(c *gin.Context) {
	var req struct {
		ReceiverID int `json:"receiver_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetInt("userID")
	conn, err := h.connRepo.CreateRequest(c.Request.Context(), userID, req.ReceiverID)
	if err != nil {
		switch {
		case errors.Is(err, repositories.ErrSelfConnection):
			c.JSON(http.StatusBadRequest, gin.H{"error": "cannot connect with yourself"})
		case errors.Is(err, repositories.ErrConnectionExists):
			c.JSON(http.StatusConflict, gin.H{"error": "connection already exists"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create connection"})
		}
		return
	}

	h.emitAudit(c, fmt.Sprintf("connection requested %d -> %d", userID, req.ReceiverID))
	c.JSON(http.StatusCreated, conn)
}

// AcceptConnection transitions a pending connection to accepted. Only the
// receiver may accept.
func (h *ChatHandler) AcceptConnection(c *gin.Context) {
	conn, ok := h.loadConnection(c)
	if !ok {
		return
	}

	userID := c.GetInt("userID")
	if conn.ReceiverID != userID {
		c.JSON(http.StatusForbidden, gin.H{"error": "only the receiver can accept"})
		return
	}

	accepted, err := h.connRepo.AcceptConnection(c.Request.Context(), conn.ID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotPending) {
			c.JSON(http.StatusConflict, gin.H{"error": "connection is not pending"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not accept connection"})
		return
	}

	h.emitAudit(c, fmt.Sprintf("connection %d accepted", conn.ID))
	c.JSON(http.StatusOK, accepted)
}

// RejectConnection declines a pending connection. Only the receiver may
// reject; rejection is terminal.
func (h *ChatHandler) RejectConnection(c *gin.Context) {
	conn, ok := h.loadConnection(c)
	if !ok {
		return
	}

	userID := c.GetInt("userID")
	if conn.ReceiverID != userID {
		c.JSON(http.StatusForbidden, gin.H{"error": "only the receiver can reject"})
		return
	}

	if err := h.connRepo.RejectConnection(c.Request.Context(), conn.ID); err != nil {
		if errors.Is(err, repositories.ErrNotPending) {
			c.JSON(http.StatusConflict, gin.H{"error": "connection is not pending"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not reject connection"})
		return
	}

	h.emitAudit(c, fmt.Sprintf("connection %d rejected", conn.ID))
	c.Status(http.StatusNoContent)
}

// GetMessages returns the messages of a connection the user belongs to.
func (h *ChatHandler) GetMessages(c *gin.Context) {
	conn, ok := h.loadConnection(c)
	if !ok {
		return
	}

	userID := c.GetInt("userID")
	if !conn.IsParticipant(userID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a connection member"})
		return
	}

	msgs, err := h.messageRepo.ListMessages(c.Request.Context(), conn.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load messages"})
		return
	}
	if msgs == nil {
		msgs = []models.ChatMessage{}
	}

	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// PostMessage stores a message in an accepted connection and relays it to the
// receiver's live sockets.
func (h *ChatHandler) PostMessage(c *gin.Context) {
	conn, ok := h.loadConnection(c)
	if !ok {
		return
	}

	userID := c.GetInt("userID")
	if !conn.IsParticipant(userID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a connection member"})
		return
	}
	if conn.Status != models.ConnectionAccepted {
		c.JSON(http.StatusForbidden, gin.H{"error": "connection not accepted"})
		return
	}

	var req struct {
		Message string `json:"message" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	msg, err := h.messageRepo.CreateMessage(c.Request.Context(), conn.ID, userID, req.Message)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store message"})
		return
	}

	h.hub.SendToUser(conn.PeerOf(userID), protocol.MessageFrame{Type: protocol.TypeMessage, Message: msg})
	c.JSON(http.StatusCreated, msg)
}

// MarkRead flips is_read on messages addressed to the caller. Repeating the
// call is a no-op.
func (h *ChatHandler) MarkRead(c *gin.Context) {
	conn, ok := h.loadConnection(c)
	if !ok {
		return
	}

	userID := c.GetInt("userID")
	if !conn.IsParticipant(userID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a connection member"})
		return
	}

	updated, err := h.messageRepo.MarkRead(c.Request.Context(), conn.ID, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not mark messages read"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"updated": updated})
}

func (h *ChatHandler) loadConnection(c *gin.Context) (models.ChatConnection, bool) {
	connectionID, err := strconv.Atoi(c.Param("connection_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid connection id"})
		return models.ChatConnection{}, false
	}

	conn, err := h.connRepo.GetConnection(c.Request.Context(), connectionID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, repositories.ErrConnectionNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": "connection not found"})
		return models.ChatConnection{}, false
	}
	return conn, true
}

func (h *ChatHandler) emitAudit(c *gin.Context, text string) {
	h.audit.Emit(c.Request.Context(), "INFO", text, requestIDFromContext(c), userIDFromContext(c))
}
