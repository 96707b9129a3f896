package chat

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/npezzotti/go-messenger/internal/database"
	"github.com/npezzotti/go-messenger/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

var testTime = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestService(db database.MessengerRepository) *MessageService {
	ms := NewMessageService(db)
	ms.now = func() time.Time { return testTime }
	return ms
}

func testConversation(id string, participantIds ...string) *types.Conversation {
	conv := &types.Conversation{Id: id, Type: types.ConversationGroup}
	for _, pid := range participantIds {
		conv.Participants = append(conv.Participants, types.User{Id: pid})
	}
	return conv
}

func TestMessageService_Send(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		db := &database.MockMessengerRepository{}
		db.On("FindConversation", "c1", "alice").Return(testConversation("c1", "alice", "bob"), nil)
		db.On("CreateMessage", mock.MatchedBy(func(p database.CreateMessageParams) bool {
			return p.ConversationId == "c1" && p.SenderId == "alice" &&
				p.ReceiverId == "bob" && p.Content == "hi" &&
				p.Type == types.MessageText && p.DeliveredAt.Equal(testTime)
		})).Return(types.Message{
			Id:             "m1",
			ConversationId: "c1",
			SenderId:       "alice",
			ReceiverId:     "bob",
			Content:        "hi",
			Status:         types.StatusSent,
			IsDelivered:    true,
		}, nil)
		db.On("TouchConversation", "c1", testTime).Return(nil)

		svc := newTestService(db)
		msg, err := svc.Send(SendParams{
			ConversationId: "c1",
			SenderId:       "alice",
			ReceiverId:     "bob",
			Content:        "hi",
		})

		assert.NoError(t, err)
		assert.Equal(t, types.StatusSent, msg.Status)
		assert.True(t, msg.IsDelivered)
		db.AssertExpectations(t)
	})

	t.Run("conversation not found", func(t *testing.T) {
		db := &database.MockMessengerRepository{}
		db.On("FindConversation", "c1", "alice").Return(nil, nil)

		svc := newTestService(db)
		_, err := svc.Send(SendParams{
			ConversationId: "c1",
			SenderId:       "alice",
			ReceiverId:     "bob",
			Content:        "hi",
		})

		assert.Equal(t, KindNotFound, Kind(err))
		db.AssertNotCalled(t, "CreateMessage", mock.Anything)
	})

	t.Run("sender not a participant", func(t *testing.T) {
		db := &database.MockMessengerRepository{}
		// FindConversation scopes by participant, so a non-participant
		// sender observes the conversation as absent.
		db.On("FindConversation", "c1", "mallory").Return(nil, nil)

		svc := newTestService(db)
		_, err := svc.Send(SendParams{
			ConversationId: "c1",
			SenderId:       "mallory",
			ReceiverId:     "bob",
			Content:        "hi",
		})

		assert.Equal(t, KindNotFound, Kind(err))
	})

	t.Run("receiver not a participant", func(t *testing.T) {
		db := &database.MockMessengerRepository{}
		db.On("FindConversation", "c1", "alice").Return(testConversation("c1", "alice", "bob"), nil)

		svc := newTestService(db)
		_, err := svc.Send(SendParams{
			ConversationId: "c1",
			SenderId:       "alice",
			ReceiverId:     "eve",
			Content:        "hi",
		})

		assert.Equal(t, KindNotAuthorized, Kind(err))
		db.AssertNotCalled(t, "CreateMessage", mock.Anything)
	})

	t.Run("empty content", func(t *testing.T) {
		db := &database.MockMessengerRepository{}

		svc := newTestService(db)
		_, err := svc.Send(SendParams{ConversationId: "c1", SenderId: "alice", ReceiverId: "bob", Content: "  "})

		assert.Equal(t, KindValidation, Kind(err))
		db.AssertNotCalled(t, "FindConversation", mock.Anything, mock.Anything)
	})

	t.Run("content too long", func(t *testing.T) {
		db := &database.MockMessengerRepository{}

		svc := newTestService(db)
		_, err := svc.Send(SendParams{
			ConversationId: "c1",
			SenderId:       "alice",
			ReceiverId:     "bob",
			Content:        strings.Repeat("a", maxContentLength+1),
		})

		assert.Equal(t, KindValidation, Kind(err))
	})

	t.Run("invalid message type", func(t *testing.T) {
		db := &database.MockMessengerRepository{}

		svc := newTestService(db)
		_, err := svc.Send(SendParams{
			ConversationId: "c1",
			SenderId:       "alice",
			ReceiverId:     "bob",
			Content:        "hi",
			Type:           "hologram",
		})

		assert.Equal(t, KindValidation, Kind(err))
	})

	t.Run("persistence failure short-circuits", func(t *testing.T) {
		db := &database.MockMessengerRepository{}
		db.On("FindConversation", "c1", "alice").Return(testConversation("c1", "alice", "bob"), nil)
		db.On("CreateMessage", mock.Anything).Return(types.Message{}, errors.New("connection reset"))

		svc := newTestService(db)
		_, err := svc.Send(SendParams{ConversationId: "c1", SenderId: "alice", ReceiverId: "bob", Content: "hi"})

		assert.Equal(t, KindInternal, Kind(err))
		assert.NotContains(t, Translate(err).Message, "connection reset")
		db.AssertNotCalled(t, "TouchConversation", mock.Anything, mock.Anything)
	})
}

func TestMessageService_MarkRead(t *testing.T) {
	t.Run("marks unread message read", func(t *testing.T) {
		db := &database.MockMessengerRepository{}
		db.On("FindMessage", "m1").Return(&types.Message{
			Id: "m1", ConversationId: "c1", SenderId: "alice", ReceiverId: "bob",
			Status: types.StatusSent,
		}, nil)
		db.On("UpdateMessage", mock.MatchedBy(func(p database.UpdateMessageParams) bool {
			return p.MessageId == "m1" && p.IsRead != nil && *p.IsRead && p.ReadAt != nil
		})).Return(types.Message{
			Id: "m1", ConversationId: "c1", SenderId: "alice", ReceiverId: "bob",
			Status: types.StatusRead, IsRead: true,
		}, nil)

		svc := newTestService(db)
		msg, changed, err := svc.MarkRead("m1", "bob")

		assert.NoError(t, err)
		assert.True(t, changed)
		assert.True(t, msg.IsRead)
		db.AssertExpectations(t)
	})

	t.Run("idempotent when already read", func(t *testing.T) {
		db := &database.MockMessengerRepository{}
		db.On("FindMessage", "m1").Return(&types.Message{
			Id: "m1", ReceiverId: "bob", IsRead: true, Status: types.StatusRead,
		}, nil)

		svc := newTestService(db)
		msg, changed, err := svc.MarkRead("m1", "bob")

		assert.NoError(t, err)
		assert.False(t, changed)
		assert.True(t, msg.IsRead)
		db.AssertNotCalled(t, "UpdateMessage", mock.Anything)
	})

	t.Run("not found", func(t *testing.T) {
		db := &database.MockMessengerRepository{}
		db.On("FindMessage", "m1").Return(nil, nil)

		svc := newTestService(db)
		_, _, err := svc.MarkRead("m1", "bob")
		assert.Equal(t, KindNotFound, Kind(err))
	})

	t.Run("only receiver may mark read", func(t *testing.T) {
		db := &database.MockMessengerRepository{}
		db.On("FindMessage", "m1").Return(&types.Message{
			Id: "m1", SenderId: "alice", ReceiverId: "bob",
		}, nil)

		svc := newTestService(db)
		_, _, err := svc.MarkRead("m1", "carol")
		assert.Equal(t, KindNotAuthorized, Kind(err))
	})
}

func TestMessageService_MarkConversationRead(t *testing.T) {
	t.Run("bulk marks addressed messages", func(t *testing.T) {
		db := &database.MockMessengerRepository{}
		db.On("FindConversation", "c1", "bob").Return(testConversation("c1", "alice", "bob"), nil)
		db.On("BulkMarkRead", "c1", "bob", testTime).Return(int64(3), nil)

		svc := newTestService(db)
		n, err := svc.MarkConversationRead("c1", "bob")

		assert.NoError(t, err)
		assert.Equal(t, int64(3), n)
	})

	t.Run("not a participant", func(t *testing.T) {
		db := &database.MockMessengerRepository{}
		db.On("FindConversation", "c1", "eve").Return(nil, nil)

		svc := newTestService(db)
		_, err := svc.MarkConversationRead("c1", "eve")
		assert.Equal(t, KindNotFound, Kind(err))
		db.AssertNotCalled(t, "BulkMarkRead", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestMessageService_Edit(t *testing.T) {
	t.Run("sender edits", func(t *testing.T) {
		db := &database.MockMessengerRepository{}
		db.On("FindMessage", "m1").Return(&types.Message{Id: "m1", SenderId: "alice"}, nil)
		db.On("UpdateMessage", mock.MatchedBy(func(p database.UpdateMessageParams) bool {
			return p.MessageId == "m1" && p.Content != nil && *p.Content == "edited" &&
				p.IsEdited != nil && *p.IsEdited
		})).Return(types.Message{Id: "m1", SenderId: "alice", Content: "edited", IsEdited: true}, nil)

		svc := newTestService(db)
		msg, err := svc.Edit("m1", "alice", "edited")

		assert.NoError(t, err)
		assert.True(t, msg.IsEdited)
		assert.Equal(t, "edited", msg.Content)
	})

	t.Run("non-author is rejected without mutation", func(t *testing.T) {
		db := &database.MockMessengerRepository{}
		db.On("FindMessage", "m1").Return(&types.Message{Id: "m1", SenderId: "alice", Content: "original"}, nil)

		svc := newTestService(db)
		_, err := svc.Edit("m1", "carol", "hijacked")

		assert.Equal(t, KindNotAuthorized, Kind(err))
		db.AssertNotCalled(t, "UpdateMessage", mock.Anything)
	})

	t.Run("empty content", func(t *testing.T) {
		db := &database.MockMessengerRepository{}

		svc := newTestService(db)
		_, err := svc.Edit("m1", "alice", "")
		assert.Equal(t, KindValidation, Kind(err))
	})
}

func TestMessageService_Delete(t *testing.T) {
	t.Run("sender deletes", func(t *testing.T) {
		db := &database.MockMessengerRepository{}
		db.On("FindMessage", "m1").Return(&types.Message{Id: "m1", SenderId: "alice"}, nil)
		db.On("DeleteMessage", "m1").Return(nil)

		svc := newTestService(db)
		assert.NoError(t, svc.Delete("m1", "alice"))
		db.AssertExpectations(t)
	})

	t.Run("non-author is rejected", func(t *testing.T) {
		db := &database.MockMessengerRepository{}
		db.On("FindMessage", "m1").Return(&types.Message{Id: "m1", SenderId: "alice"}, nil)

		svc := newTestService(db)
		err := svc.Delete("m1", "bob")
		assert.Equal(t, KindNotAuthorized, Kind(err))
		db.AssertNotCalled(t, "DeleteMessage", mock.Anything)
	})

	t.Run("not found", func(t *testing.T) {
		db := &database.MockMessengerRepository{}
		db.On("FindMessage", "m1").Return(nil, nil)

		svc := newTestService(db)
		assert.Equal(t, KindNotFound, Kind(svc.Delete("m1", "alice")))
	})
}

func TestMessageService_ToggleReaction(t *testing.T) {
	msg := &types.Message{Id: "m1", ConversationId: "c1", SenderId: "alice", ReceiverId: "bob"}

	t.Run("double toggle restores original state", func(t *testing.T) {
		db := &database.MockMessengerRepository{}
		db.On("FindMessage", "m1").Return(msg, nil)
		db.On("FindConversation", "c1", "bob").Return(testConversation("c1", "alice", "bob"), nil)
		// First application creates the triple, second removes it.
		db.On("ToggleReaction", "m1", "bob", "👍").Return(&types.Reaction{
			Id: "r1", MessageId: "m1", UserId: "bob", Emoji: "👍",
		}, true, nil).Once()
		db.On("ToggleReaction", "m1", "bob", "👍").Return(nil, false, nil).Once()

		svc := newTestService(db)

		reaction, added, err := svc.ToggleReaction("m1", "bob", "👍")
		assert.NoError(t, err)
		assert.True(t, added)
		assert.NotNil(t, reaction)

		reaction, added, err = svc.ToggleReaction("m1", "bob", "👍")
		assert.NoError(t, err)
		assert.False(t, added)
		assert.Nil(t, reaction)

		db.AssertExpectations(t)
	})

	t.Run("message not found", func(t *testing.T) {
		db := &database.MockMessengerRepository{}
		db.On("FindMessage", "m1").Return(nil, nil)

		svc := newTestService(db)
		_, _, err := svc.ToggleReaction("m1", "bob", "👍")
		assert.Equal(t, KindNotFound, Kind(err))
	})

	t.Run("reactor must be a participant", func(t *testing.T) {
		db := &database.MockMessengerRepository{}
		db.On("FindMessage", "m1").Return(msg, nil)
		db.On("FindConversation", "c1", "eve").Return(nil, nil)

		svc := newTestService(db)
		_, _, err := svc.ToggleReaction("m1", "eve", "👍")
		assert.Equal(t, KindNotFound, Kind(err))
		db.AssertNotCalled(t, "ToggleReaction", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("missing emoji", func(t *testing.T) {
		db := &database.MockMessengerRepository{}

		svc := newTestService(db)
		_, _, err := svc.ToggleReaction("m1", "bob", "")
		assert.Equal(t, KindValidation, Kind(err))
	})
}
