package chat

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/npezzotti/go-messenger/internal/types"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = (pongWait * 9) / 10
	maxMessageSize = 8192
	sendQueueSize  = 256
)

// Client is one live transport: exactly one Client exists per open
// websocket. A user may own any number of concurrent Clients
// (multi-device). Events from a single Client are handled one at a time
// in arrival order by its Read loop.
type Client struct {
	connId string
	user   types.User
	claims map[string]any
	conn   *websocket.Conn
	hub    *ChatServer
	log    *log.Logger
	send   chan *ServerEvent
	stop   chan struct{}

	stopOnce sync.Once
}

func NewClient(connId string, user types.User, claims map[string]any, conn *websocket.Conn, hub *ChatServer, l *log.Logger) *Client {
	return &Client{
		connId: connId,
		user:   user,
		claims: claims,
		conn:   conn,
		hub:    hub,
		log:    l,
		send:   make(chan *ServerEvent, sendQueueSize),
		stop:   make(chan struct{}),
	}
}

func (c *Client) ConnId() string { return c.connId }

func (c *Client) UserId() string { return c.user.Id }

// Queue enqueues an outbound event without blocking. Delivery is
// best-effort: if the client's send queue is full the event is dropped
// for this connection only and the client relies on its own
// reconnect-and-refetch flow.
func (c *Client) Queue(evt *ServerEvent) bool {
	select {
	case c.send <- evt:
		return true
	default:
		c.log.Printf("send queue full for connection %s, dropping %s", c.connId, evt.Type)
		return false
	}
}

func (c *Client) Write() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case evt, ok := <-c.send:
			if !ok {
				return
			}

			data, err := json.Marshal(evt)
			if err != nil {
				c.log.Println("failed to serialize event:", err)
				continue
			}

			if !c.writeFrame(websocket.TextMessage, data) {
				return
			}
		case <-c.stop:
			return
		case <-ticker.C:
			if !c.writeFrame(websocket.PingMessage, nil) {
				return
			}
		}
	}
}

func (c *Client) Read() {
	defer func() {
		c.conn.Close()
		c.cleanup()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				c.log.Printf("ws: read: %v", err)
			}
			break
		}

		var evt ClientEvent
		if err := json.Unmarshal(raw, &evt); err != nil {
			c.log.Println("error parsing event:", err)
			c.Queue(NewErrorEvent("invalid event format"))
			continue
		}

		c.dispatch(&evt)
	}
}

// dispatch binds an inbound event to its operation. Unrecognized events
// are ignored, not errors.
func (c *Client) dispatch(evt *ClientEvent) {
	switch evt.Event {
	case EventSendMessage:
		var p SendMessagePayload
		if !c.decode(evt.Data, &p) {
			return
		}
		c.hub.handleSendMessage(c, &p)
	case EventMarkMessageRead:
		var p MarkMessageReadPayload
		if !c.decode(evt.Data, &p) {
			return
		}
		c.hub.handleMarkMessageRead(c, &p)
	case EventTypingIndicator:
		var p TypingIndicatorPayload
		if !c.decode(evt.Data, &p) {
			return
		}
		c.hub.handleTypingIndicator(c, &p)
	case EventJoinConversation:
		var p JoinConversationPayload
		if !c.decode(evt.Data, &p) {
			return
		}
		c.hub.handleJoinConversation(c, &p)
	case EventLeaveConversation:
		var p LeaveConversationPayload
		if !c.decode(evt.Data, &p) {
			return
		}
		c.hub.handleLeaveConversation(c, &p)
	default:
		c.log.Printf("ignoring unrecognized event %q from %s", evt.Event, c.connId)
	}
}

func (c *Client) decode(raw json.RawMessage, v any) bool {
	if err := json.Unmarshal(raw, v); err != nil {
		c.log.Println("error decoding payload:", err)
		c.Queue(NewErrorEvent("invalid event payload"))
		return false
	}
	return true
}

func (c *Client) writeFrame(msgType int, data []byte) bool {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteMessage(msgType, data); err != nil {
		if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
			websocket.CloseNormalClosure) {
			c.log.Printf("write frame: %v", err)
		}
		return false
	}
	return true
}

// Stop signals the write pump to exit. Safe to call more than once.
func (c *Client) Stop() {
	c.stopOnce.Do(func() {
		close(c.stop)
	})
}

func (c *Client) cleanup() {
	c.hub.UnregisterClient(c)
	c.Stop()
}
