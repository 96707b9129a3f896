package chat

import "sync"

// Transition records an actual typing state change for one user in one
// conversation.
type Transition struct {
	ConversationId string
	UserId         string
	Started        bool
}

// TypingTracker maintains a per-conversation set of users currently
// typing. State is ephemeral and guarded by a single mutex. Transitions
// are only reported on real state changes so repeated indicators from a
// client never produce duplicate broadcasts.
type TypingTracker struct {
	mu     sync.Mutex
	typing map[string]map[string]struct{}
}

func NewTypingTracker() *TypingTracker {
	return &TypingTracker{
		typing: make(map[string]map[string]struct{}),
	}
}

// SetTyping records the user's typing state for the conversation and
// returns the transition, or nil if nothing changed.
func (tt *TypingTracker) SetTyping(conversationId, userId string, isTyping bool) *Transition {
	tt.mu.Lock()
	defer tt.mu.Unlock()

	users, ok := tt.typing[conversationId]
	if isTyping {
		if !ok {
			users = make(map[string]struct{})
			tt.typing[conversationId] = users
		}
		if _, present := users[userId]; present {
			return nil
		}
		users[userId] = struct{}{}
		return &Transition{ConversationId: conversationId, UserId: userId, Started: true}
	}

	if !ok {
		return nil
	}
	if _, present := users[userId]; !present {
		return nil
	}
	delete(users, userId)
	if len(users) == 0 {
		delete(tt.typing, conversationId)
	}
	return &Transition{ConversationId: conversationId, UserId: userId, Started: false}
}

// ClearUser removes the user from every conversation's typing set and
// returns a stopped transition for each conversation that changed. Used
// on disconnect so peers aren't left believing the user is still typing.
func (tt *TypingTracker) ClearUser(userId string) []Transition {
	tt.mu.Lock()
	defer tt.mu.Unlock()

	var stopped []Transition
	for conversationId, users := range tt.typing {
		if _, present := users[userId]; !present {
			continue
		}
		delete(users, userId)
		if len(users) == 0 {
			delete(tt.typing, conversationId)
		}
		stopped = append(stopped, Transition{ConversationId: conversationId, UserId: userId, Started: false})
	}
	return stopped
}

// IsTyping reports whether the user is currently typing in the
// conversation.
func (tt *TypingTracker) IsTyping(conversationId, userId string) bool {
	tt.mu.Lock()
	defer tt.mu.Unlock()

	_, present := tt.typing[conversationId][userId]
	return present
}
