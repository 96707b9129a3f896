package chat

import "sync"

// SessionRegistry is the single source of truth for which users are
// online. It keeps a forward index (connection id -> user id) and a
// reverse index (user id -> connection ids) that are mutated together
// under one mutex so they can never diverge. Registry state is purely
// ephemeral; it is rebuilt from nothing on process restart.
type SessionRegistry struct {
	mu     sync.Mutex
	byConn map[string]string
	byUser map[string]map[string]struct{}
}

func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{
		byConn: make(map[string]string),
		byUser: make(map[string]map[string]struct{}),
	}
}

// Register adds the connection to both indices and reports whether this
// was the user's first live connection.
func (sr *SessionRegistry) Register(connId, userId string) (becameOnline bool) {
	sr.mu.Lock()
	defer sr.mu.Unlock()

	sr.byConn[connId] = userId
	conns, ok := sr.byUser[userId]
	if !ok {
		conns = make(map[string]struct{})
		sr.byUser[userId] = conns
	}
	conns[connId] = struct{}{}

	return len(conns) == 1
}

// Deregister removes the connection from both indices. It returns the
// owning user id and whether the user's connection set became empty.
// Deregistering an unknown connection is a no-op.
func (sr *SessionRegistry) Deregister(connId string) (userId string, becameOffline bool) {
	sr.mu.Lock()
	defer sr.mu.Unlock()

	userId, ok := sr.byConn[connId]
	if !ok {
		return "", false
	}

	delete(sr.byConn, connId)
	if conns, ok := sr.byUser[userId]; ok {
		delete(conns, connId)
		if len(conns) == 0 {
			delete(sr.byUser, userId)
			return userId, true
		}
	}

	return userId, false
}

func (sr *SessionRegistry) IsOnline(userId string) bool {
	sr.mu.Lock()
	defer sr.mu.Unlock()

	return len(sr.byUser[userId]) > 0
}

// OnlineCount returns the number of distinct users with at least one
// live connection.
func (sr *SessionRegistry) OnlineCount() int {
	sr.mu.Lock()
	defer sr.mu.Unlock()

	return len(sr.byUser)
}

// Connections returns the connection ids currently owned by the user.
func (sr *SessionRegistry) Connections(userId string) []string {
	sr.mu.Lock()
	defer sr.mu.Unlock()

	conns := make([]string, 0, len(sr.byUser[userId]))
	for id := range sr.byUser[userId] {
		conns = append(conns, id)
	}
	return conns
}
