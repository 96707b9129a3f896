package chat

import (
	"fmt"
	"strings"
	"time"

	"github.com/npezzotti/go-messenger/internal/database"
	"github.com/npezzotti/go-messenger/internal/types"
)

const maxContentLength = 4096

// MessageService orchestrates the message lifecycle against the
// persistence collaborator. It holds no state of its own: every
// operation reloads what it needs from the store, trading redundant
// lookups for freedom from cache-invalidation bugs.
type MessageService struct {
	db  database.MessengerRepository
	now func() time.Time
}

func NewMessageService(db database.MessengerRepository) *MessageService {
	return &MessageService{db: db, now: Now}
}

type SendParams struct {
	ConversationId string
	SenderId       string
	ReceiverId     string
	Content        string
	Type           types.MessageType
	ReplyToId      string
	Metadata       map[string]any
}

// Send validates the sender and the declared receiver against the
// conversation's participant list, then persists the message with
// status "sent" and the delivered flag already set: delivery is
// synchronous with persistence, there is no separate transport
// acknowledgment. A persistence failure returns before anything is
// handed to the router, so a failed send never partially broadcasts.
func (ms *MessageService) Send(params SendParams) (types.Message, error) {
	if strings.TrimSpace(params.Content) == "" {
		return types.Message{}, NewValidationError("message content is required")
	}
	if len(params.Content) > maxContentLength {
		return types.Message{}, NewValidationError("message content too long")
	}
	if params.Type == "" {
		params.Type = types.MessageText
	}
	if !types.ValidMessageType(params.Type) {
		return types.Message{}, NewValidationError(fmt.Sprintf("invalid message type %q", params.Type))
	}

	conv, err := ms.db.FindConversation(params.ConversationId, params.SenderId)
	if err != nil {
		return types.Message{}, NewInternalError(fmt.Errorf("find conversation: %w", err))
	}
	if conv == nil {
		return types.Message{}, NewNotFoundError("conversation not found")
	}

	// Every message names one addressee, even inside a group room. The
	// receiver must be a participant of the same conversation.
	if !isParticipant(conv, params.ReceiverId) {
		return types.Message{}, NewNotAuthorizedError("receiver is not a participant in this conversation")
	}

	now := ms.now()
	msg, err := ms.db.CreateMessage(database.CreateMessageParams{
		ConversationId: params.ConversationId,
		SenderId:       params.SenderId,
		ReceiverId:     params.ReceiverId,
		Content:        params.Content,
		Type:           params.Type,
		ReplyToId:      params.ReplyToId,
		Metadata:       params.Metadata,
		DeliveredAt:    now,
	})
	if err != nil {
		return types.Message{}, NewInternalError(fmt.Errorf("create message: %w", err))
	}

	if err := ms.db.TouchConversation(params.ConversationId, now); err != nil {
		return types.Message{}, NewInternalError(fmt.Errorf("touch conversation: %w", err))
	}

	return msg, nil
}

// MarkRead marks the message read by its addressee. It is idempotent:
// an already-read message is returned unchanged with changed=false and
// no event should be broadcast for it.
func (ms *MessageService) MarkRead(messageId, readerId string) (types.Message, bool, error) {
	msg, err := ms.db.FindMessage(messageId)
	if err != nil {
		return types.Message{}, false, NewInternalError(fmt.Errorf("find message: %w", err))
	}
	if msg == nil {
		return types.Message{}, false, NewNotFoundError("message not found")
	}
	if msg.ReceiverId != readerId {
		return types.Message{}, false, NewNotAuthorizedError("only the receiver can mark a message read")
	}
	if msg.IsRead {
		return *msg, false, nil
	}

	now := ms.now()
	isRead := true
	updated, err := ms.db.UpdateMessage(database.UpdateMessageParams{
		MessageId: messageId,
		IsRead:    &isRead,
		ReadAt:    &now,
	})
	if err != nil {
		return types.Message{}, false, NewInternalError(fmt.Errorf("update message: %w", err))
	}

	return updated, true, nil
}

// MarkConversationRead bulk-marks every unread message addressed to the
// reader in the conversation. It is fire-and-forget from the realtime
// layer's perspective: no per-message event is emitted.
func (ms *MessageService) MarkConversationRead(conversationId, readerId string) (int64, error) {
	conv, err := ms.db.FindConversation(conversationId, readerId)
	if err != nil {
		return 0, NewInternalError(fmt.Errorf("find conversation: %w", err))
	}
	if conv == nil {
		return 0, NewNotFoundError("conversation not found")
	}

	n, err := ms.db.BulkMarkRead(conversationId, readerId, ms.now())
	if err != nil {
		return 0, NewInternalError(fmt.Errorf("bulk mark read: %w", err))
	}
	return n, nil
}

// Edit replaces the message content. Only the original sender may edit.
func (ms *MessageService) Edit(messageId, editorId, newContent string) (types.Message, error) {
	if strings.TrimSpace(newContent) == "" {
		return types.Message{}, NewValidationError("message content is required")
	}
	if len(newContent) > maxContentLength {
		return types.Message{}, NewValidationError("message content too long")
	}

	msg, err := ms.db.FindMessage(messageId)
	if err != nil {
		return types.Message{}, NewInternalError(fmt.Errorf("find message: %w", err))
	}
	if msg == nil {
		return types.Message{}, NewNotFoundError("message not found")
	}
	if msg.SenderId != editorId {
		return types.Message{}, NewNotAuthorizedError("only the sender can edit this message")
	}

	now := ms.now()
	isEdited := true
	updated, err := ms.db.UpdateMessage(database.UpdateMessageParams{
		MessageId: messageId,
		Content:   &newContent,
		IsEdited:  &isEdited,
		EditedAt:  &now,
	})
	if err != nil {
		return types.Message{}, NewInternalError(fmt.Errorf("update message: %w", err))
	}

	return updated, nil
}

// Delete hard-removes the message. Only the original sender may delete.
// Peers are not notified in real time; they keep a stale copy until
// their next history fetch.
func (ms *MessageService) Delete(messageId, requesterId string) error {
	msg, err := ms.db.FindMessage(messageId)
	if err != nil {
		return NewInternalError(fmt.Errorf("find message: %w", err))
	}
	if msg == nil {
		return NewNotFoundError("message not found")
	}
	if msg.SenderId != requesterId {
		return NewNotAuthorizedError("only the sender can delete this message")
	}

	if err := ms.db.DeleteMessage(messageId); err != nil {
		return NewInternalError(fmt.Errorf("delete message: %w", err))
	}
	return nil
}

// ToggleReaction creates the (message, user, emoji) reaction, or removes
// it if it already exists. Applying the same toggle twice returns the
// reaction store to its original state.
func (ms *MessageService) ToggleReaction(messageId, userId, emoji string) (*types.Reaction, bool, error) {
	if emoji == "" {
		return nil, false, NewValidationError("emoji is required")
	}

	msg, err := ms.db.FindMessage(messageId)
	if err != nil {
		return nil, false, NewInternalError(fmt.Errorf("find message: %w", err))
	}
	if msg == nil {
		return nil, false, NewNotFoundError("message not found")
	}

	conv, err := ms.db.FindConversation(msg.ConversationId, userId)
	if err != nil {
		return nil, false, NewInternalError(fmt.Errorf("find conversation: %w", err))
	}
	if conv == nil {
		return nil, false, NewNotFoundError("conversation not found")
	}

	reaction, added, err := ms.db.ToggleReaction(messageId, userId, emoji)
	if err != nil {
		return nil, false, NewInternalError(fmt.Errorf("toggle reaction: %w", err))
	}
	return reaction, added, nil
}

func isParticipant(conv *types.Conversation, userId string) bool {
	for _, p := range conv.Participants {
		if p.Id == userId {
			return true
		}
	}
	return false
}
