package chat

import "sync"

// Room name helpers. Every connection joins RoomGlobal on connect, its
// owner's personal room, and one room per conversation it belongs to.
const RoomGlobal = "global"

func UserRoom(userId string) string {
	return "user:" + userId
}

func ConversationRoom(conversationId string) string {
	return "conversation:" + conversationId
}

// Sender is the delivery end of a connection as seen by the router.
// Queue must not block; it reports whether the event was accepted.
type Sender interface {
	ConnId() string
	Queue(evt *ServerEvent) bool
}

// Router assigns connections to broadcast groups and fans events out to
// them. The gateway only ever talks to this interface, so a distributed
// implementation can replace the in-process one without touching it.
type Router interface {
	Join(s Sender, roomId string)
	Leave(connId, roomId string)
	LeaveAll(connId string)
	Broadcast(roomId string, evt *ServerEvent, excludeConnId string)
}

// RoomRouter is the in-process Router: membership tables guarded by a
// single mutex, delivery into each member's send queue. Broadcasting to
// a room with no members is a no-op. Delivery is best-effort; a full
// send queue drops the event for that connection only.
type RoomRouter struct {
	mu     sync.RWMutex
	rooms  map[string]map[string]Sender
	byConn map[string]map[string]struct{}
}

func NewRoomRouter() *RoomRouter {
	return &RoomRouter{
		rooms:  make(map[string]map[string]Sender),
		byConn: make(map[string]map[string]struct{}),
	}
}

// Join adds the connection to the room. Joining twice is a no-op.
func (rr *RoomRouter) Join(s Sender, roomId string) {
	rr.mu.Lock()
	defer rr.mu.Unlock()

	members, ok := rr.rooms[roomId]
	if !ok {
		members = make(map[string]Sender)
		rr.rooms[roomId] = members
	}
	members[s.ConnId()] = s

	roomSet, ok := rr.byConn[s.ConnId()]
	if !ok {
		roomSet = make(map[string]struct{})
		rr.byConn[s.ConnId()] = roomSet
	}
	roomSet[roomId] = struct{}{}
}

// Leave removes the connection from the room. Leaving a room the
// connection is not in is a no-op.
func (rr *RoomRouter) Leave(connId, roomId string) {
	rr.mu.Lock()
	defer rr.mu.Unlock()

	rr.leaveLocked(connId, roomId)
}

func (rr *RoomRouter) leaveLocked(connId, roomId string) {
	if members, ok := rr.rooms[roomId]; ok {
		delete(members, connId)
		if len(members) == 0 {
			delete(rr.rooms, roomId)
		}
	}
	if roomSet, ok := rr.byConn[connId]; ok {
		delete(roomSet, roomId)
		if len(roomSet) == 0 {
			delete(rr.byConn, connId)
		}
	}
}

// LeaveAll removes the connection from every room it is a member of.
func (rr *RoomRouter) LeaveAll(connId string) {
	rr.mu.Lock()
	defer rr.mu.Unlock()

	for roomId := range rr.byConn[connId] {
		rr.leaveLocked(connId, roomId)
	}
}

// Broadcast queues evt for every current member of the room except the
// optional excluded connection.
func (rr *RoomRouter) Broadcast(roomId string, evt *ServerEvent, excludeConnId string) {
	rr.mu.RLock()
	members := make([]Sender, 0, len(rr.rooms[roomId]))
	for connId, s := range rr.rooms[roomId] {
		if connId == excludeConnId {
			continue
		}
		members = append(members, s)
	}
	rr.mu.RUnlock()

	for _, s := range members {
		s.Queue(evt)
	}
}

// Members returns the connection ids currently in the room.
func (rr *RoomRouter) Members(roomId string) []string {
	rr.mu.RLock()
	defer rr.mu.RUnlock()

	ids := make([]string, 0, len(rr.rooms[roomId]))
	for connId := range rr.rooms[roomId] {
		ids = append(ids, connId)
	}
	return ids
}
