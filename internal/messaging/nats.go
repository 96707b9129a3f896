// Package messaging relays room broadcasts across server instances over
// NATS so a multi-process deployment preserves per-room fan-out. Only
// per-room ordering is preserved; there is no cross-room total order.
package messaging

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/npezzotti/go-messenger/internal/chat"
)

const (
	subjectPrefix   = "messenger.room."
	subjectWildcard = "messenger.room.>"

	reconnectWait = 2 * time.Second
)

// envelope is the wire form of a relayed broadcast. Origin lets an
// instance skip envelopes it published itself: those were already
// delivered locally.
type envelope struct {
	Origin string           `json:"origin"`
	Room   string           `json:"room"`
	Event  chat.ServerEvent `json:"event"`
}

// RelayRouter wraps the in-process router: membership stays local, but
// every broadcast is also published to NATS and foreign broadcasts are
// delivered to local room members.
type RelayRouter struct {
	local  *chat.RoomRouter
	conn   *nats.Conn
	sub    *nats.Subscription
	log    *log.Logger
	origin string
}

func NewRelayRouter(url, name string, local *chat.RoomRouter, logger *log.Logger) (*RelayRouter, error) {
	opts := []nats.Option{
		nats.Name(name),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Printf("nats disconnected: %v", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Printf("nats reconnected to %s", nc.ConnectedUrl())
		}),
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	rr := &RelayRouter{
		local:  local,
		conn:   nc,
		log:    logger,
		origin: uuid.NewString(),
	}

	rr.sub, err = nc.Subscribe(subjectWildcard, rr.handleRemote)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("nats subscribe: %w", err)
	}

	logger.Printf("relaying room broadcasts via %s", nc.ConnectedUrl())
	return rr, nil
}

func (rr *RelayRouter) Join(s chat.Sender, roomId string) {
	rr.local.Join(s, roomId)
}

func (rr *RelayRouter) Leave(connId, roomId string) {
	rr.local.Leave(connId, roomId)
}

func (rr *RelayRouter) LeaveAll(connId string) {
	rr.local.LeaveAll(connId)
}

// Broadcast delivers to local members and publishes the event for other
// instances. A publish failure is logged and does not affect local
// delivery.
func (rr *RelayRouter) Broadcast(roomId string, evt *chat.ServerEvent, excludeConnId string) {
	rr.local.Broadcast(roomId, evt, excludeConnId)

	data, err := json.Marshal(envelope{Origin: rr.origin, Room: roomId, Event: *evt})
	if err != nil {
		rr.log.Printf("marshal relay envelope: %v", err)
		return
	}
	if err := rr.conn.Publish(subjectPrefix+roomId, data); err != nil {
		rr.log.Printf("publish to %s: %v", subjectPrefix+roomId, err)
	}
}

func (rr *RelayRouter) handleRemote(msg *nats.Msg) {
	var env envelope
	if err := json.Unmarshal(msg.Data, &env); err != nil {
		rr.log.Printf("decode relay envelope: %v", err)
		return
	}
	if env.Origin == rr.origin {
		return
	}
	rr.local.Broadcast(env.Room, &env.Event, "")
}

func (rr *RelayRouter) Close() error {
	if rr.sub != nil {
		if err := rr.sub.Unsubscribe(); err != nil {
			rr.log.Printf("nats unsubscribe: %v", err)
		}
	}
	rr.conn.Close()
	return nil
}
