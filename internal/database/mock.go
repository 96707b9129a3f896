package database

import (
	"time"

	"github.com/npezzotti/go-messenger/internal/types"
	"github.com/stretchr/testify/mock"
)

type MockMessengerRepository struct {
	mock.Mock
}

func (m *MockMessengerRepository) Ping() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockMessengerRepository) CreateAccount(params CreateAccountParams) (types.User, error) {
	args := m.Called(params)
	return args.Get(0).(types.User), args.Error(1)
}

func (m *MockMessengerRepository) GetAccountById(id string) (*Account, error) {
	args := m.Called(id)
	if a, ok := args.Get(0).(*Account); ok {
		return a, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockMessengerRepository) GetAccountByEmail(email string) (*Account, error) {
	args := m.Called(email)
	if a, ok := args.Get(0).(*Account); ok {
		return a, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockMessengerRepository) FindConversation(id, participantId string) (*types.Conversation, error) {
	args := m.Called(id, participantId)
	if conv, ok := args.Get(0).(*types.Conversation); ok {
		return conv, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockMessengerRepository) ListConversationsForUser(userId string) ([]types.Conversation, error) {
	args := m.Called(userId)
	if convs, ok := args.Get(0).([]types.Conversation); ok {
		return convs, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockMessengerRepository) FindOrCreateDirectConversation(externalId, userA, userB string) (types.Conversation, error) {
	args := m.Called(externalId, userA, userB)
	return args.Get(0).(types.Conversation), args.Error(1)
}

func (m *MockMessengerRepository) CreateGroupConversation(params CreateGroupConversationParams) (types.Conversation, error) {
	args := m.Called(params)
	return args.Get(0).(types.Conversation), args.Error(1)
}

func (m *MockMessengerRepository) TouchConversation(id string, at time.Time) error {
	args := m.Called(id, at)
	return args.Error(0)
}

func (m *MockMessengerRepository) CreateMessage(params CreateMessageParams) (types.Message, error) {
	args := m.Called(params)
	return args.Get(0).(types.Message), args.Error(1)
}

func (m *MockMessengerRepository) FindMessage(id string) (*types.Message, error) {
	args := m.Called(id)
	if msg, ok := args.Get(0).(*types.Message); ok {
		return msg, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockMessengerRepository) UpdateMessage(params UpdateMessageParams) (types.Message, error) {
	args := m.Called(params)
	return args.Get(0).(types.Message), args.Error(1)
}

func (m *MockMessengerRepository) DeleteMessage(id string) error {
	args := m.Called(id)
	return args.Error(0)
}

func (m *MockMessengerRepository) ListMessages(conversationId string, before time.Time, limit int) ([]types.Message, error) {
	args := m.Called(conversationId, before, limit)
	if msgs, ok := args.Get(0).([]types.Message); ok {
		return msgs, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockMessengerRepository) BulkMarkRead(conversationId, receiverId string, at time.Time) (int64, error) {
	args := m.Called(conversationId, receiverId, at)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockMessengerRepository) ToggleReaction(messageId, userId, emoji string) (*types.Reaction, bool, error) {
	args := m.Called(messageId, userId, emoji)
	if r, ok := args.Get(0).(*types.Reaction); ok {
		return r, args.Bool(1), args.Error(2)
	}
	return nil, args.Bool(1), args.Error(2)
}

func (m *MockMessengerRepository) ListReactions(messageId string) ([]types.Reaction, error) {
	args := m.Called(messageId)
	if reactions, ok := args.Get(0).([]types.Reaction); ok {
		return reactions, args.Error(1)
	}
	return nil, args.Error(1)
}
