/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package client connects terminal tools to a blindboard relay.
package client

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Seednode/blindboard/internal/relay"
)

const writeWait = 10 * time.Second

var ErrClosed = errors.New("connection closed")

// Conn is a relay connection. Events are delivered in arrival order on Events;
// the first is always the relay's current question.
type Conn struct {
	ws     *websocket.Conn
	events chan relay.Event

	writeMu sync.Mutex

	done      chan struct{}
	closeOnce sync.Once

	errMu sync.Mutex
	err   error
}

// URL turns a server address (host:port, http(s):// or ws(s)://) into the relay's websocket URL.
func URL(server string) (string, error) {
	if !strings.Contains(server, "://") {
		server = "ws://" + server
	}

	u, err := url.Parse(server)
	if err != nil {
		return "", fmt.Errorf("parse server address: %w", err)
	}

	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}

	if u.Host == "" {
		return "", fmt.Errorf("missing host in %q", server)
	}

	if !strings.HasSuffix(u.Path, "/ws") {
		u.Path = strings.TrimSuffix(u.Path, "/") + "/ws"
	}

	return u.String(), nil
}

// Dial connects to the relay at server.
func Dial(ctx context.Context, server string) (*Conn, error) {
	target, err := URL(server)
	if err != nil {
		return nil, err
	}

	ws, _, err := websocket.DefaultDialer.DialContext(ctx, target, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", target, err)
	}

	c := &Conn{
		ws:     ws,
		events: make(chan relay.Event, 64),
		done:   make(chan struct{}),
	}

	go c.readLoop()

	return c, nil
}

func (c *Conn) readLoop() {
	defer close(c.events)

	for {
		var e relay.Event
		if err := c.ws.ReadJSON(&e); err != nil {
			c.setErr(err)
			return
		}

		select {
		case c.events <- e:
		case <-c.done:
			return
		}
	}
}

func (c *Conn) setErr(err error) {
	c.errMu.Lock()
	defer c.errMu.Unlock()

	if c.err == nil {
		c.err = err
	}
}

// Err reports why the event stream ended, or nil while it is open or after a clean close.
func (c *Conn) Err() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()

	if websocket.IsCloseError(c.err, websocket.CloseNormalClosure) {
		return nil
	}

	select {
	case <-c.done:
		return nil
	default:
	}

	return c.err
}

// Events is closed when the connection ends.
func (c *Conn) Events() <-chan relay.Event {
	return c.events
}

func (c *Conn) Emit(event, data string) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.ws.WriteJSON(relay.Event{Event: event, Data: data}); err != nil {
		return fmt.Errorf("send %s: %w", event, err)
	}

	return nil
}

// Question asks a new question.
func (c *Conn) Question(text string) error {
	return c.Emit(relay.QuestionEvent, text)
}

// Word submits a response.
func (c *Conn) Word(text string) error {
	return c.Emit(relay.WordEvent, text)
}

// Await consumes events until one matches event and data.
func (c *Conn) Await(ctx context.Context, event, data string) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case e, ok := <-c.events:
			if !ok {
				if err := c.Err(); err != nil {
					return err
				}
				return ErrClosed
			}
			if e.Event == event && e.Data == data {
				return nil
			}
		}
	}
}

// Close says goodbye to the relay and releases the connection.
func (c *Conn) Close() error {
	var err error

	c.closeOnce.Do(func() {
		close(c.done)

		c.writeMu.Lock()
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		c.writeMu.Unlock()

		err = c.ws.Close()
	})

	return err
}
