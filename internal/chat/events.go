package chat

import (
	"encoding/json"
	"time"

	"github.com/npezzotti/go-messenger/internal/types"
)

// Inbound event names accepted from clients. Anything else is ignored.
const (
	EventSendMessage       = "send_message"
	EventMarkMessageRead   = "mark_message_read"
	EventTypingIndicator   = "typing_indicator"
	EventJoinConversation  = "join_conversation"
	EventLeaveConversation = "leave_conversation"
)

// Outbound event names pushed to clients.
const (
	EventMessageReceived     = "message_received"
	EventMessageDelivered    = "message_delivered"
	EventMessageRead         = "message_read"
	EventTypingStart         = "typing_start"
	EventTypingStop          = "typing_stop"
	EventUserOnline          = "user_online"
	EventUserOffline         = "user_offline"
	EventNotification        = "notification"
	EventConversationCreated = "conversation_created"
	EventError               = "error"
)

// ClientEvent is the envelope for every inbound frame. Data is decoded
// lazily into the payload type for the named event.
type ClientEvent struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type SendMessagePayload struct {
	ConversationId string            `json:"conversation_id"`
	ReceiverId     string            `json:"receiver_id"`
	Content        string            `json:"content"`
	Type           types.MessageType `json:"type"`
	ReplyToId      string            `json:"reply_to_id,omitempty"`
	Metadata       map[string]any    `json:"metadata,omitempty"`
}

type MarkMessageReadPayload struct {
	MessageId string `json:"message_id"`
}

type TypingIndicatorPayload struct {
	ConversationId string `json:"conversation_id"`
	IsTyping       bool   `json:"is_typing"`
}

type JoinConversationPayload struct {
	ConversationId string `json:"conversation_id"`
}

type LeaveConversationPayload struct {
	ConversationId string `json:"conversation_id"`
}

// ServerEvent is the envelope for every outbound frame. Error events
// carry Message instead of Data.
type ServerEvent struct {
	Type      string    `json:"type"`
	Data      any       `json:"data,omitempty"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func NewServerEvent(eventType string, data any) *ServerEvent {
	return &ServerEvent{
		Type:      eventType,
		Data:      data,
		Timestamp: Now(),
	}
}

func NewErrorEvent(message string) *ServerEvent {
	return &ServerEvent{
		Type:      EventError,
		Message:   message,
		Timestamp: Now(),
	}
}

type TypingEventData struct {
	ConversationId string `json:"conversation_id"`
	UserId         string `json:"user_id"`
}

type PresenceEventData struct {
	UserId string `json:"user_id"`
}

func Now() time.Time {
	return time.Now().UTC().Round(time.Millisecond)
}
