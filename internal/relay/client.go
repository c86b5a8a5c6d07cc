/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package relay

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"

	"github.com/Seednode/blindboard/internal/pubsub"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

type client struct {
	id   string
	addr string
	conn *websocket.Conn
	hub  *Hub
}

// ServeWS upgrades the request and relays events until either side disconnects.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("RELAY: Upgrade failed")
		return
	}

	c := &client{
		id:   uuid.NewString(),
		addr: h.addr(r),
		conn: conn,
		hub:  h,
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	first, events := h.subscribe(ctx)

	h.log.Info().Str("client", c.id).Str("addr", c.addr).Msg("RELAY: Client connected")

	go c.writePump(cancel, first, events)
	c.readPump(ctx)

	h.log.Info().Str("client", c.id).Str("addr", c.addr).Msg("RELAY: Client disconnected")
}

func (c *client) readPump(ctx context.Context) {
	defer c.conn.Close()

	c.conn.SetReadLimit(c.hub.readLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				c.hub.log.Warn().Err(err).Str("client", c.id).Msg("RELAY: Read failed")
			}
			return
		}

		var msg Event
		if err := json.Unmarshal(data, &msg); err != nil {
			c.hub.log.Warn().Err(err).Str("client", c.id).Msg("RELAY: Ignoring malformed frame")
			continue
		}

		switch msg.Event {
		case QuestionEvent:
			c.hub.log.Info().Str("client", c.id).Str("question", msg.Data).Msg("RELAY: Question received")
			c.hub.SetQuestion(ctx, msg.Data)
		case WordEvent:
			if c.hub.limiter != nil && !c.hub.limiter.Allow(hostOnly(c.addr)) {
				c.hub.log.Warn().Str("client", c.id).Str("addr", c.addr).Msg("RELAY: Word rate limit exceeded")
				continue
			}
			c.hub.log.Info().Str("client", c.id).Str("word", msg.Data).Msg("RELAY: Word received")
			c.hub.Word(ctx, msg.Data)
		default:
			// ignore unknown events
		}
	}
}

// writePump is the only writer on the connection. The current question is
// always the first frame a client sees, either as first or from the stream.
func (c *client) writePump(cancel context.CancelFunc, first *Event, events <-chan pubsub.Event[Event]) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		cancel()
		_ = c.conn.Close()
	}()

	if first != nil {
		if err := c.write(*first); err != nil {
			return
		}
	}

	for {
		select {
		case e, ok := <-events:
			if !ok {
				_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
				_ = c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "server closing"))
				return
			}
			if err := c.write(e.Payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *client) write(e Event) error {
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(e)
}

func hostOnly(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}
