package chat

import (
	"log"
	"sync"

	"github.com/npezzotti/go-messenger/internal/database"
	"github.com/npezzotti/go-messenger/internal/stats"
	"github.com/npezzotti/go-messenger/internal/types"
)

// ChatServer is the realtime hub. It owns the session registry, the
// typing tracker and the room router, binds inbound client events to
// the message lifecycle, and exposes the fan-out surface the REST layer
// pushes notifications through. The registry, tracker and router tables
// are the only mutable shared state in the core and are never touched
// from outside this package.
//
// Presence events are broadcast to every connected client, not narrowed
// to contacts. That is the observed product behavior and a known
// scalability and privacy limitation.
type ChatServer struct {
	log      *log.Logger
	db       database.MessengerRepository
	registry *SessionRegistry
	router   Router
	typing   *TypingTracker
	svc      *MessageService
	stats    stats.Provider

	clientsLock sync.Mutex
	clients     map[string]*Client
}

func NewChatServer(logger *log.Logger, db database.MessengerRepository, router Router, st stats.Provider) (*ChatServer, error) {
	return &ChatServer{
		log:      logger,
		db:       db,
		registry: NewSessionRegistry(),
		router:   router,
		typing:   NewTypingTracker(),
		svc:      NewMessageService(db),
		stats:    st,
		clients:  make(map[string]*Client),
	}, nil
}

// RegisterClient moves an authenticated connection to active: it is
// recorded in the session registry, joined to the global and personal
// rooms, and joined to one room per conversation the user belongs to.
// A conversation-listing failure is logged and leaves the user
// connected with partial room membership rather than cascading into a
// disconnect. If this is the user's first connection, user_online is
// broadcast globally.
func (cs *ChatServer) RegisterClient(c *Client) {
	cs.clientsLock.Lock()
	cs.clients[c.ConnId()] = c
	cs.clientsLock.Unlock()

	becameOnline := cs.registry.Register(c.ConnId(), c.UserId())
	cs.stats.ConnectionOpened()
	cs.stats.SetOnlineUsers(cs.registry.OnlineCount())

	cs.router.Join(c, RoomGlobal)
	cs.router.Join(c, UserRoom(c.UserId()))

	convs, err := cs.db.ListConversationsForUser(c.UserId())
	if err != nil {
		cs.log.Printf("list conversations for %s: %v", c.UserId(), err)
	} else {
		for _, conv := range convs {
			cs.router.Join(c, ConversationRoom(conv.Id))
		}
	}

	if becameOnline {
		cs.router.Broadcast(RoomGlobal,
			NewServerEvent(EventUserOnline, PresenceEventData{UserId: c.UserId()}), c.ConnId())
	}
}

// UnregisterClient tears down a closed connection: typing entries are
// cleared with a typing_stop for every conversation that changed, room
// memberships are dropped, and if the user's last connection is gone
// user_offline is broadcast globally.
func (cs *ChatServer) UnregisterClient(c *Client) {
	cs.clientsLock.Lock()
	if _, ok := cs.clients[c.ConnId()]; !ok {
		cs.clientsLock.Unlock()
		return
	}
	delete(cs.clients, c.ConnId())
	cs.clientsLock.Unlock()

	for _, t := range cs.typing.ClearUser(c.UserId()) {
		cs.router.Broadcast(ConversationRoom(t.ConversationId),
			NewServerEvent(EventTypingStop, TypingEventData{
				ConversationId: t.ConversationId,
				UserId:         t.UserId,
			}), c.ConnId())
	}

	cs.router.LeaveAll(c.ConnId())

	userId, becameOffline := cs.registry.Deregister(c.ConnId())
	cs.stats.ConnectionClosed()
	cs.stats.SetOnlineUsers(cs.registry.OnlineCount())

	if becameOffline {
		cs.router.Broadcast(RoomGlobal,
			NewServerEvent(EventUserOffline, PresenceEventData{UserId: userId}), c.ConnId())
	}
}

func (cs *ChatServer) handleSendMessage(c *Client, p *SendMessagePayload) {
	cs.stats.EventReceived(EventSendMessage)

	msg, err := cs.svc.Send(SendParams{
		ConversationId: p.ConversationId,
		SenderId:       c.UserId(),
		ReceiverId:     p.ReceiverId,
		Content:        p.Content,
		Type:           p.Type,
		ReplyToId:      p.ReplyToId,
		Metadata:       p.Metadata,
	})
	if err != nil {
		cs.fail(c, EventSendMessage, err)
		return
	}

	cs.stats.MessageProcessed("sent")
	cs.router.Broadcast(ConversationRoom(msg.ConversationId),
		NewServerEvent(EventMessageReceived, msg), "")
	// Private delivery receipt for the sending connection only.
	c.Queue(NewServerEvent(EventMessageDelivered, msg))
}

func (cs *ChatServer) handleMarkMessageRead(c *Client, p *MarkMessageReadPayload) {
	cs.stats.EventReceived(EventMarkMessageRead)

	msg, changed, err := cs.svc.MarkRead(p.MessageId, c.UserId())
	if err != nil {
		cs.fail(c, EventMarkMessageRead, err)
		return
	}
	if !changed {
		return
	}

	cs.stats.MessageProcessed("read")
	cs.router.Broadcast(ConversationRoom(msg.ConversationId),
		NewServerEvent(EventMessageRead, msg), "")
}

func (cs *ChatServer) handleTypingIndicator(c *Client, p *TypingIndicatorPayload) {
	cs.stats.EventReceived(EventTypingIndicator)

	if p.ConversationId == "" {
		cs.fail(c, EventTypingIndicator, NewValidationError("conversation_id is required"))
		return
	}

	t := cs.typing.SetTyping(p.ConversationId, c.UserId(), p.IsTyping)
	if t == nil {
		return
	}

	event := EventTypingStop
	if t.Started {
		event = EventTypingStart
	}
	cs.router.Broadcast(ConversationRoom(t.ConversationId),
		NewServerEvent(event, TypingEventData{
			ConversationId: t.ConversationId,
			UserId:         t.UserId,
		}), c.ConnId())
}

func (cs *ChatServer) handleJoinConversation(c *Client, p *JoinConversationPayload) {
	cs.stats.EventReceived(EventJoinConversation)

	if p.ConversationId == "" {
		cs.fail(c, EventJoinConversation, NewValidationError("conversation_id is required"))
		return
	}

	conv, err := cs.db.FindConversation(p.ConversationId, c.UserId())
	if err != nil {
		cs.fail(c, EventJoinConversation, NewInternalError(err))
		return
	}
	if conv == nil {
		cs.fail(c, EventJoinConversation, NewNotFoundError("conversation not found"))
		return
	}

	cs.router.Join(c, ConversationRoom(conv.Id))
}

func (cs *ChatServer) handleLeaveConversation(c *Client, p *LeaveConversationPayload) {
	cs.stats.EventReceived(EventLeaveConversation)

	if p.ConversationId == "" {
		cs.fail(c, EventLeaveConversation, NewValidationError("conversation_id is required"))
		return
	}

	cs.router.Leave(c.ConnId(), ConversationRoom(p.ConversationId))

	if t := cs.typing.SetTyping(p.ConversationId, c.UserId(), false); t != nil {
		cs.router.Broadcast(ConversationRoom(t.ConversationId),
			NewServerEvent(EventTypingStop, TypingEventData{
				ConversationId: t.ConversationId,
				UserId:         t.UserId,
			}), c.ConnId())
	}
}

// fail translates an operation failure into an error event for the
// requesting client only. Internal details are logged here and never
// reach the wire.
func (cs *ChatServer) fail(c *Client, op string, err error) {
	kind := Kind(err)
	if kind == KindInternal {
		cs.log.Printf("%s from %s: %v", op, c.ConnId(), err)
	}
	cs.stats.ErrorOccurred(kind.String())
	c.Queue(Translate(err))
}

// IsUserOnline reports whether the user has at least one live
// connection.
func (cs *ChatServer) IsUserOnline(userId string) bool {
	return cs.registry.IsOnline(userId)
}

// OnlineCount returns the number of distinct online users.
func (cs *ChatServer) OnlineCount() int {
	return cs.registry.OnlineCount()
}

// SendNotificationToUser pushes a notification event to every live
// connection of the user.
func (cs *ChatServer) SendNotificationToUser(userId string, payload any) {
	cs.router.Broadcast(UserRoom(userId), NewServerEvent(EventNotification, payload), "")
}

// NotifyNewMessage lets non-realtime code fan a message out to a
// conversation room without re-implementing broadcast.
func (cs *ChatServer) NotifyNewMessage(conversationId string, msg types.Message) {
	cs.router.Broadcast(ConversationRoom(conversationId),
		NewServerEvent(EventMessageReceived, msg), "")
}

// NotifyNewConversation joins the user's live connections to the new
// conversation's room and pushes a conversation_created event to them.
func (cs *ChatServer) NotifyNewConversation(userId string, conv types.Conversation) {
	cs.clientsLock.Lock()
	for _, connId := range cs.registry.Connections(userId) {
		if c, ok := cs.clients[connId]; ok {
			cs.router.Join(c, ConversationRoom(conv.Id))
		}
	}
	cs.clientsLock.Unlock()

	cs.router.Broadcast(UserRoom(userId), NewServerEvent(EventConversationCreated, conv), "")
}

// Shutdown stops every client's write pump, which closes the underlying
// connections and lets the read loops run their cleanup.
func (cs *ChatServer) Shutdown() {
	cs.clientsLock.Lock()
	clients := make([]*Client, 0, len(cs.clients))
	for _, c := range cs.clients {
		clients = append(clients, c)
	}
	cs.clientsLock.Unlock()

	for _, c := range clients {
		c.Stop()
	}
}
