package database

import (
	"time"

	"github.com/npezzotti/go-messenger/internal/types"
)

type CreateAccountParams struct {
	Username     string
	EmailAddress string
	PasswordHash string
}

type CreateMessageParams struct {
	ConversationId string
	SenderId       string
	ReceiverId     string
	Content        string
	Type           types.MessageType
	ReplyToId      string
	Metadata       map[string]any
	// Delivery is synchronous with persistence: the row is inserted
	// with status "sent" and is_delivered already true.
	DeliveredAt time.Time
}

type UpdateMessageParams struct {
	MessageId string
	Content   *string
	IsRead    *bool
	ReadAt    *time.Time
	IsEdited  *bool
	EditedAt  *time.Time
}

type CreateGroupConversationParams struct {
	ExternalId     string
	Name           string
	CreatedBy      string
	ParticipantIds []string
}

// Account is a user row including the password hash, which never leaves
// the api package.
type Account struct {
	types.User
	PasswordHash string
}

// MessengerRepository is the persistence collaborator consumed by the
// realtime core and the thin request layer. Find* methods return
// (nil, nil) when the entity is absent; every other failure is a store
// error the caller maps to an internal fault.
type MessengerRepository interface {
	Ping() error

	CreateAccount(params CreateAccountParams) (types.User, error)
	GetAccountById(id string) (*Account, error)
	GetAccountByEmail(email string) (*Account, error)

	// FindConversation returns the conversation, with participants
	// populated, only if it exists and participantId belongs to it.
	FindConversation(id, participantId string) (*types.Conversation, error)
	ListConversationsForUser(userId string) ([]types.Conversation, error)
	FindOrCreateDirectConversation(externalId, userA, userB string) (types.Conversation, error)
	CreateGroupConversation(params CreateGroupConversationParams) (types.Conversation, error)
	TouchConversation(id string, at time.Time) error

	CreateMessage(params CreateMessageParams) (types.Message, error)
	FindMessage(id string) (*types.Message, error)
	UpdateMessage(params UpdateMessageParams) (types.Message, error)
	DeleteMessage(id string) error
	ListMessages(conversationId string, before time.Time, limit int) ([]types.Message, error)
	BulkMarkRead(conversationId, receiverId string, at time.Time) (int64, error)

	// ToggleReaction removes the (message, user, emoji) triple if it
	// exists, otherwise creates it. added reports which happened.
	ToggleReaction(messageId, userId, emoji string) (reaction *types.Reaction, added bool, err error)
	ListReactions(messageId string) ([]types.Reaction, error)
}
