package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/qaaqit/QaaqConnect30-sub003/internal/mocks"
	"github.com/qaaqit/QaaqConnect30-sub003/internal/models"
	"github.com/qaaqit/QaaqConnect30-sub003/internal/repositories"
	"github.com/qaaqit/QaaqConnect30-sub003/internal/ws"
)

func setupChatRouter(handler *ChatHandler, userID int) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("userID", userID)
		c.Next()
	})
	r.GET("/connections", handler.ListConnections)
	r.POST("/connections", handler.CreateConnection)
	r.POST("/connections/:connection_id/accept", handler.AcceptConnection)
	r.POST("/connections/:connection_id/reject", handler.RejectConnection)
	r.GET("/connections/:connection_id/messages", handler.GetMessages)
	r.POST("/connections/:connection_id/messages", handler.PostMessage)
	r.POST("/connections/:connection_id/read", handler.MarkRead)
	return r
}

func newChatHandler(connRepo repositories.ConnectionRepository, messageRepo repositories.MessageRepository) *ChatHandler {
	return NewChatHandler(connRepo, messageRepo, ws.NewHub(), nil)
}

func TestListConnectionsSuccess(t *testing.T) {
	connRepo := new(mocks.ConnectionRepositoryMock)
	handler := newChatHandler(connRepo, new(mocks.MessageRepositoryMock))
	router := setupChatRouter(handler, 1)

	connRepo.On("ListConnectionsForUser", mock.Anything, 1).Return([]models.ConnectionSummary{
		{ConnectionID: 3, PeerID: 2, Status: models.ConnectionAccepted, UnreadCount: 4},
		{ConnectionID: 5, PeerID: 9, Status: models.ConnectionPending},
	}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/connections", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Connections []models.ConnectionSummary `json:"connections"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Connections, 2)
	assert.Equal(t, 4, resp.Connections[0].UnreadCount)
	connRepo.AssertExpectations(t)
}

func TestListConnectionsEmpty(t *testing.T) {
	connRepo := new(mocks.ConnectionRepositoryMock)
	handler := newChatHandler(connRepo, new(mocks.MessageRepositoryMock))
	router := setupChatRouter(handler, 1)

	connRepo.On("ListConnectionsForUser", mock.Anything, 1).Return(([]models.ConnectionSummary)(nil), nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/connections", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"connections":[]}`, rec.Body.String())
}

func TestListConnectionsRepoError(t *testing.T) {
	connRepo := new(mocks.ConnectionRepositoryMock)
	handler := newChatHandler(connRepo, new(mocks.MessageRepositoryMock))
	router := setupChatRouter(handler, 1)

	connRepo.On("ListConnectionsForUser", mock.Anything, 1).Return(([]models.ConnectionSummary)(nil), assert.AnError).Once()

	req := httptest.NewRequest(http.MethodGet, "/connections", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	connRepo.AssertExpectations(t)
}

func TestCreateConnectionSuccess(t *testing.T) {
	connRepo := new(mocks.ConnectionRepositoryMock)
	handler := newChatHandler(connRepo, new(mocks.MessageRepositoryMock))
	router := setupChatRouter(handler, 1)

	connRepo.On("CreateRequest", mock.Anything, 1, 2).Return(models.ChatConnection{
		ID: 10, SenderID: 1, ReceiverID: 2, Status: models.ConnectionPending,
	}, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/connections", bytes.NewBufferString(`{"receiver_id":2}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	var conn models.ChatConnection
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&conn))
	assert.Equal(t, models.ConnectionPending, conn.Status)
	connRepo.AssertExpectations(t)
}

func TestCreateConnectionInvalidBody(t *testing.T) {
	handler := newChatHandler(new(mocks.ConnectionRepositoryMock), new(mocks.MessageRepositoryMock))
	router := setupChatRouter(handler, 1)

	req := httptest.NewRequest(http.MethodPost, "/connections", bytes.NewBufferString(`{}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateConnectionWithSelf(t *testing.T) {
	connRepo := new(mocks.ConnectionRepositoryMock)
	handler := newChatHandler(connRepo, new(mocks.MessageRepositoryMock))
	router := setupChatRouter(handler, 1)

	connRepo.On("CreateRequest", mock.Anything, 1, 1).Return(models.ChatConnection{}, repositories.ErrSelfConnection).Once()

	req := httptest.NewRequest(http.MethodPost, "/connections", bytes.NewBufferString(`{"receiver_id":1}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	connRepo.AssertExpectations(t)
}

func TestCreateConnectionDuplicate(t *testing.T) {
	connRepo := new(mocks.ConnectionRepositoryMock)
	handler := newChatHandler(connRepo, new(mocks.MessageRepositoryMock))
	router := setupChatRouter(handler, 1)

	connRepo.On("CreateRequest", mock.Anything, 1, 2).Return(models.ChatConnection{}, repositories.ErrConnectionExists).Once()

	req := httptest.NewRequest(http.MethodPost, "/connections", bytes.NewBufferString(`{"receiver_id":2}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusConflict, rec.Code)
	connRepo.AssertExpectations(t)
}

func TestAcceptConnectionSuccess(t *testing.T) {
	connRepo := new(mocks.ConnectionRepositoryMock)
	handler := newChatHandler(connRepo, new(mocks.MessageRepositoryMock))
	router := setupChatRouter(handler, 2)

	pending := models.ChatConnection{ID: 10, SenderID: 1, ReceiverID: 2, Status: models.ConnectionPending}
	connRepo.On("GetConnection", mock.Anything, 10).Return(pending, nil).Once()
	accepted := pending
	accepted.Status = models.ConnectionAccepted
	connRepo.On("AcceptConnection", mock.Anything, 10).Return(accepted, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/connections/10/accept", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var conn models.ChatConnection
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&conn))
	assert.Equal(t, models.ConnectionAccepted, conn.Status)
	connRepo.AssertExpectations(t)
}

func TestAcceptConnectionOnlyReceiver(t *testing.T) {
	connRepo := new(mocks.ConnectionRepositoryMock)
	handler := newChatHandler(connRepo, new(mocks.MessageRepositoryMock))
	// The sender cannot accept their own request.
	router := setupChatRouter(handler, 1)

	connRepo.On("GetConnection", mock.Anything, 10).Return(models.ChatConnection{
		ID: 10, SenderID: 1, ReceiverID: 2, Status: models.ConnectionPending,
	}, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/connections/10/accept", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	connRepo.AssertNotCalled(t, "AcceptConnection", mock.Anything, mock.Anything)
}

func TestAcceptConnectionNotPending(t *testing.T) {
	connRepo := new(mocks.ConnectionRepositoryMock)
	handler := newChatHandler(connRepo, new(mocks.MessageRepositoryMock))
	router := setupChatRouter(handler, 2)

	connRepo.On("GetConnection", mock.Anything, 10).Return(models.ChatConnection{
		ID: 10, SenderID: 1, ReceiverID: 2, Status: models.ConnectionAccepted,
	}, nil).Once()
	connRepo.On("AcceptConnection", mock.Anything, 10).Return(models.ChatConnection{}, repositories.ErrNotPending).Once()

	req := httptest.NewRequest(http.MethodPost, "/connections/10/accept", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusConflict, rec.Code)
	connRepo.AssertExpectations(t)
}

func TestAcceptConnectionNotFound(t *testing.T) {
	connRepo := new(mocks.ConnectionRepositoryMock)
	handler := newChatHandler(connRepo, new(mocks.MessageRepositoryMock))
	router := setupChatRouter(handler, 2)

	connRepo.On("GetConnection", mock.Anything, 99).Return(models.ChatConnection{}, repositories.ErrConnectionNotFound).Once()

	req := httptest.NewRequest(http.MethodPost, "/connections/99/accept", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAcceptConnectionInvalidID(t *testing.T) {
	handler := newChatHandler(new(mocks.ConnectionRepositoryMock), new(mocks.MessageRepositoryMock))
	router := setupChatRouter(handler, 2)

	req := httptest.NewRequest(http.MethodPost, "/connections/abc/accept", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRejectConnectionSuccess(t *testing.T) {
	connRepo := new(mocks.ConnectionRepositoryMock)
	handler := newChatHandler(connRepo, new(mocks.MessageRepositoryMock))
	router := setupChatRouter(handler, 2)

	connRepo.On("GetConnection", mock.Anything, 10).Return(models.ChatConnection{
		ID: 10, SenderID: 1, ReceiverID: 2, Status: models.ConnectionPending,
	}, nil).Once()
	connRepo.On("RejectConnection", mock.Anything, 10).Return(nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/connections/10/reject", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	connRepo.AssertExpectations(t)
}

func TestRejectConnectionOnlyReceiver(t *testing.T) {
	connRepo := new(mocks.ConnectionRepositoryMock)
	handler := newChatHandler(connRepo, new(mocks.MessageRepositoryMock))
	router := setupChatRouter(handler, 1)

	connRepo.On("GetConnection", mock.Anything, 10).Return(models.ChatConnection{
		ID: 10, SenderID: 1, ReceiverID: 2, Status: models.ConnectionPending,
	}, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/connections/10/reject", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	connRepo.AssertNotCalled(t, "RejectConnection", mock.Anything, mock.Anything)
}

func TestGetMessagesSuccess(t *testing.T) {
	connRepo := new(mocks.ConnectionRepositoryMock)
	messageRepo := new(mocks.MessageRepositoryMock)
	handler := newChatHandler(connRepo, messageRepo)
	router := setupChatRouter(handler, 1)

	connRepo.On("GetConnection", mock.Anything, 10).Return(models.ChatConnection{
		ID: 10, SenderID: 1, ReceiverID: 2, Status: models.ConnectionAccepted,
	}, nil).Once()
	messageRepo.On("ListMessages", mock.Anything, 10).Return([]models.ChatMessage{
		{ID: 1, ConnectionID: 10, SenderID: 2, Message: "hello", IsRead: true},
		{ID: 2, ConnectionID: 10, SenderID: 1, Message: "hi there"},
	}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/connections/10/messages", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Messages []models.ChatMessage `json:"messages"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Messages, 2)
	connRepo.AssertExpectations(t)
	messageRepo.AssertExpectations(t)
}

func TestGetMessagesNonMember(t *testing.T) {
	connRepo := new(mocks.ConnectionRepositoryMock)
	messageRepo := new(mocks.MessageRepositoryMock)
	handler := newChatHandler(connRepo, messageRepo)
	router := setupChatRouter(handler, 7)

	connRepo.On("GetConnection", mock.Anything, 10).Return(models.ChatConnection{
		ID: 10, SenderID: 1, ReceiverID: 2, Status: models.ConnectionAccepted,
	}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/connections/10/messages", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	messageRepo.AssertNotCalled(t, "ListMessages", mock.Anything, mock.Anything)
}

func TestPostMessageSuccess(t *testing.T) {
	connRepo := new(mocks.ConnectionRepositoryMock)
	messageRepo := new(mocks.MessageRepositoryMock)
	handler := newChatHandler(connRepo, messageRepo)
	router := setupChatRouter(handler, 1)

	connRepo.On("GetConnection", mock.Anything, 10).Return(models.ChatConnection{
		ID: 10, SenderID: 1, ReceiverID: 2, Status: models.ConnectionAccepted,
	}, nil).Once()
	messageRepo.On("CreateMessage", mock.Anything, 10, 1, "bon voyage").Return(models.ChatMessage{
		ID: 4, ConnectionID: 10, SenderID: 1, Message: "bon voyage",
	}, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/connections/10/messages", bytes.NewBufferString(`{"message":"bon voyage"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	var msg models.ChatMessage
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&msg))
	assert.Equal(t, 4, msg.ID)
	assert.False(t, msg.IsRead)
	connRepo.AssertExpectations(t)
	messageRepo.AssertExpectations(t)
}

func TestPostMessagePendingConnection(t *testing.T) {
	connRepo := new(mocks.ConnectionRepositoryMock)
	messageRepo := new(mocks.MessageRepositoryMock)
	handler := newChatHandler(connRepo, messageRepo)
	router := setupChatRouter(handler, 1)

	connRepo.On("GetConnection", mock.Anything, 10).Return(models.ChatConnection{
		ID: 10, SenderID: 1, ReceiverID: 2, Status: models.ConnectionPending,
	}, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/connections/10/messages", bytes.NewBufferString(`{"message":"too soon"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	messageRepo.AssertNotCalled(t, "CreateMessage", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestMarkReadSuccess(t *testing.T) {
	connRepo := new(mocks.ConnectionRepositoryMock)
	messageRepo := new(mocks.MessageRepositoryMock)
	handler := newChatHandler(connRepo, messageRepo)
	router := setupChatRouter(handler, 2)

	connRepo.On("GetConnection", mock.Anything, 10).Return(models.ChatConnection{
		ID: 10, SenderID: 1, ReceiverID: 2, Status: models.ConnectionAccepted,
	}, nil).Once()
	messageRepo.On("MarkRead", mock.Anything, 10, 2).Return(int64(3), nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/connections/10/read", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"updated":3}`, rec.Body.String())
	messageRepo.AssertExpectations(t)
}

func TestMarkReadNonMember(t *testing.T) {
	connRepo := new(mocks.ConnectionRepositoryMock)
	messageRepo := new(mocks.MessageRepositoryMock)
	handler := newChatHandler(connRepo, messageRepo)
	router := setupChatRouter(handler, 9)

	connRepo.On("GetConnection", mock.Anything, 10).Return(models.ChatConnection{
		ID: 10, SenderID: 1, ReceiverID: 2, Status: models.ConnectionAccepted,
	}, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/connections/10/read", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	messageRepo.AssertNotCalled(t, "MarkRead", mock.Anything, mock.Anything, mock.Anything)
}

// TestConnectionLifecycleFlow walks the full request/accept/message/read
// sequence: the request starts pending, the receiver accepts, the sender
// posts a message that arrives unread, and marking read is idempotent.
func TestConnectionLifecycleFlow(t *testing.T) {
	connRepo := new(mocks.ConnectionRepositoryMock)
	messageRepo := new(mocks.MessageRepositoryMock)
	handler := newChatHandler(connRepo, messageRepo)
	sender := setupChatRouter(handler, 1)
	receiver := setupChatRouter(handler, 2)

	pending := models.ChatConnection{ID: 10, SenderID: 1, ReceiverID: 2, Status: models.ConnectionPending}
	accepted := pending
	accepted.Status = models.ConnectionAccepted

	connRepo.On("CreateRequest", mock.Anything, 1, 2).Return(pending, nil).Once()
	connRepo.On("GetConnection", mock.Anything, 10).Return(pending, nil).Once()
	connRepo.On("AcceptConnection", mock.Anything, 10).Return(accepted, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/connections", bytes.NewBufferString(`{"receiver_id":2}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	sender.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = httptest.NewRecorder()
	receiver.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/connections/10/accept", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	// From here on the stored connection is accepted.
	connRepo.On("GetConnection", mock.Anything, 10).Return(accepted, nil)
	messageRepo.On("CreateMessage", mock.Anything, 10, 1, "welcome aboard").Return(models.ChatMessage{
		ID: 1, ConnectionID: 10, SenderID: 1, Message: "welcome aboard", IsRead: false,
	}, nil).Once()

	req = httptest.NewRequest(http.MethodPost, "/connections/10/messages", bytes.NewBufferString(`{"message":"welcome aboard"}`))
	req.Header.Set("Content-Type", "application/json")
	rec = httptest.NewRecorder()
	sender.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)
	var msg models.ChatMessage
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&msg))
	require.False(t, msg.IsRead)

	messageRepo.On("MarkRead", mock.Anything, 10, 2).Return(int64(1), nil).Once()
	rec = httptest.NewRecorder()
	receiver.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/connections/10/read", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"updated":1}`, rec.Body.String())

	// Second mark-read finds nothing left to flip.
	messageRepo.On("MarkRead", mock.Anything, 10, 2).Return(int64(0), nil).Once()
	rec = httptest.NewRecorder()
	receiver.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/connections/10/read", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"updated":0}`, rec.Body.String())

	connRepo.AssertExpectations(t)
	messageRepo.AssertExpectations(t)
}
