package types

import (
	"time"
)

type ConversationType string

const (
	ConversationDirect ConversationType = "direct"
	ConversationGroup  ConversationType = "group"
)

type MessageType string

const (
	MessageText     MessageType = "text"
	MessageImage    MessageType = "image"
	MessageVideo    MessageType = "video"
	MessageAudio    MessageType = "audio"
	MessageFile     MessageType = "file"
	MessageLocation MessageType = "location"
)

// ValidMessageType reports whether t is one of the supported message types.
func ValidMessageType(t MessageType) bool {
	switch t {
	case MessageText, MessageImage, MessageVideo, MessageAudio, MessageFile, MessageLocation:
		return true
	}
	return false
}

type MessageStatus string

const (
	StatusSent      MessageStatus = "sent"
	StatusDelivered MessageStatus = "delivered"
	StatusRead      MessageStatus = "read"
	StatusFailed    MessageStatus = "failed"
)

// ValidStatusTransition reports whether a message status may move from
// one value to the next. The status axis is monotonic: sent -> delivered
// -> read, with failed reachable only from sent. Equal statuses are
// allowed so idempotent updates don't trip the guard.
func ValidStatusTransition(from, to MessageStatus) bool {
	if from == to {
		return true
	}
	switch from {
	case StatusSent:
		return to == StatusDelivered || to == StatusRead || to == StatusFailed
	case StatusDelivered:
		return to == StatusRead
	}
	return false
}

type User struct {
	Id           string    `json:"id"`
	Username     string    `json:"username"`
	EmailAddress string    `json:"email_address,omitempty"`
	Password     string    `json:"-"`
	CreatedAt    time.Time `json:"created_at,omitempty"`
	UpdatedAt    time.Time `json:"updated_at,omitempty"`
}

type Conversation struct {
	Id           string           `json:"id"`
	Type         ConversationType `json:"type"`
	Name         string           `json:"name,omitempty"`
	CreatedBy    string           `json:"created_by,omitempty"`
	Participants []User           `json:"participants,omitempty"`
	CreatedAt    time.Time        `json:"created_at,omitempty"`
	UpdatedAt    time.Time        `json:"updated_at,omitempty"`
}

type Message struct {
	Id             string         `json:"id"`
	ConversationId string         `json:"conversation_id"`
	SenderId       string         `json:"sender_id"`
	ReceiverId     string         `json:"receiver_id"`
	Content        string         `json:"content"`
	Type           MessageType    `json:"type"`
	Status         MessageStatus  `json:"status"`
	IsDelivered    bool           `json:"is_delivered"`
	DeliveredAt    *time.Time     `json:"delivered_at,omitempty"`
	IsRead         bool           `json:"is_read"`
	ReadAt         *time.Time     `json:"read_at,omitempty"`
	IsEdited       bool           `json:"is_edited"`
	EditedAt       *time.Time     `json:"edited_at,omitempty"`
	ReplyToId      string         `json:"reply_to_id,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at,omitempty"`
}

type Reaction struct {
	Id        string    `json:"id"`
	MessageId string    `json:"message_id"`
	UserId    string    `json:"user_id"`
	Emoji     string    `json:"emoji"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}
