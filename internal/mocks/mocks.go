package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/qaaqit/QaaqConnect30-sub003/internal/models"
	"github.com/qaaqit/QaaqConnect30-sub003/internal/repositories"
)

type ConnectionRepositoryMock struct {
	mock.Mock
}

func (m *ConnectionRepositoryMock) CreateRequest(ctx context.Context, senderID int, receiverID int) (models.ChatConnection, error) {
	args := m.Called(ctx, senderID, receiverID)
	var conn models.ChatConnection
	if val := args.Get(0); val != nil {
		conn = val.(models.ChatConnection)
	}
	return conn, args.Error(1)
}

func (m *ConnectionRepositoryMock) GetConnection(ctx context.Context, connectionID int) (models.ChatConnection, error) {
	args := m.Called(ctx, connectionID)
	var conn models.ChatConnection
	if val := args.Get(0); val != nil {
		conn = val.(models.ChatConnection)
	}
	return conn, args.Error(1)
}

func (m *ConnectionRepositoryMock) ListConnectionsForUser(ctx context.Context, userID int) ([]models.ConnectionSummary, error) {
	args := m.Called(ctx, userID)
	var list []models.ConnectionSummary
	if val := args.Get(0); val != nil {
		list = val.([]models.ConnectionSummary)
	}
	return list, args.Error(1)
}

func (m *ConnectionRepositoryMock) AcceptConnection(ctx context.Context, connectionID int) (models.ChatConnection, error) {
	args := m.Called(ctx, connectionID)
	var conn models.ChatConnection
	if val := args.Get(0); val != nil {
		conn = val.(models.ChatConnection)
	}
	return conn, args.Error(1)
}

func (m *ConnectionRepositoryMock) RejectConnection(ctx context.Context, connectionID int) error {
	args := m.Called(ctx, connectionID)
	return args.Error(0)
}

func (m *ConnectionRepositoryMock) IsParticipant(ctx context.Context, connectionID int, userID int) (bool, error) {
	args := m.Called(ctx, connectionID, userID)
	return args.Bool(0), args.Error(1)
}

type MessageRepositoryMock struct {
	mock.Mock
}

func (m *MessageRepositoryMock) CreateMessage(ctx context.Context, connectionID int, senderID int, body string) (models.ChatMessage, error) {
	args := m.Called(ctx, connectionID, senderID, body)
	var msg models.ChatMessage
	if val := args.Get(0); val != nil {
		msg = val.(models.ChatMessage)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) ListMessages(ctx context.Context, connectionID int) ([]models.ChatMessage, error) {
	args := m.Called(ctx, connectionID)
	var msgs []models.ChatMessage
	if val := args.Get(0); val != nil {
		msgs = val.([]models.ChatMessage)
	}
	return msgs, args.Error(1)
}

func (m *MessageRepositoryMock) MarkRead(ctx context.Context, connectionID int, readerID int) (int64, error) {
	args := m.Called(ctx, connectionID, readerID)
	return args.Get(0).(int64), args.Error(1)
}

var _ repositories.ConnectionRepository = (*ConnectionRepositoryMock)(nil)
var _ repositories.MessageRepository = (*MessageRepositoryMock)(nil)
