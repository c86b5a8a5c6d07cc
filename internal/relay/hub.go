/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package relay rebroadcasts question and word events to every connected
// websocket client, remembering only the most recent question.
//
// Wire format: one JSON text frame per event.
//
//	{"event": "question", "data": "What did you learn today?"}
//	{"event": "word", "data": "goroutines"}
package relay

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Seednode/blindboard/internal/pubsub"
)

const (
	QuestionEvent = "question"
	WordEvent     = "word"
)

const (
	defaultReadLimit  int64 = 4096
	defaultBufferSize       = 64
)

// Event is both the inbound and outbound message shape.
type Event struct {
	Event string `json:"event"`
	Data  string `json:"data"`
}

// Recorder is notified of every relayed event, after it has been broadcast
// and in broadcast order.
type Recorder interface {
	RecordQuestion(ctx context.Context, text string, at time.Time) error
	RecordWord(ctx context.Context, text string, at time.Time) error
}

// Limiter decides whether a word from the given address may be relayed.
type Limiter interface {
	Allow(key string) bool
}

type Options struct {
	Logger zerolog.Logger

	// Optional.
	Recorder Recorder
	Limiter  Limiter

	// RemoteAddr extracts the client address used for logging and throttling.
	// Defaults to the request's RemoteAddr.
	RemoteAddr func(*http.Request) string

	// ReadLimit caps the size of a single inbound frame in bytes.
	ReadLimit int64

	// BufferSize is the number of pending events a slow client may lag behind.
	BufferSize int

	// QuietJoin sends the current question only to the joining client.
	// Otherwise every join rebroadcasts it, resetting all clients.
	QuietJoin bool
}

type Hub struct {
	mu       sync.Mutex
	question string

	// recordMu is acquired before mu is released, so the recorder sees
	// events in the order they were published.
	recordMu sync.Mutex

	broker   *pubsub.Broker[Event]
	log      zerolog.Logger
	recorder Recorder
	limiter  Limiter
	addr     func(*http.Request) string
	tracer   trace.Tracer
	upgrader websocket.Upgrader

	readLimit int64
	quietJoin bool
}

func NewHub(opts Options) *Hub {
	if opts.ReadLimit <= 0 {
		opts.ReadLimit = defaultReadLimit
	}
	if opts.BufferSize <= 0 {
		opts.BufferSize = defaultBufferSize
	}
	if opts.RemoteAddr == nil {
		opts.RemoteAddr = func(r *http.Request) string {
			return r.RemoteAddr
		}
	}

	h := &Hub{
		broker:   pubsub.NewBroker[Event](opts.BufferSize),
		log:      opts.Logger,
		recorder: opts.Recorder,
		limiter:  opts.Limiter,
		addr:     opts.RemoteAddr,
		tracer:   otel.Tracer("github.com/Seednode/blindboard/internal/relay"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		readLimit: opts.ReadLimit,
		quietJoin: opts.QuietJoin,
	}

	h.broker.OnDrop(func(e pubsub.Event[Event]) {
		h.log.Warn().Str("event", e.Payload.Event).Msg("RELAY: Dropped event for slow client")
	})

	return h
}

// Question returns the most recently set question, or "" if none was set.
func (h *Hub) Question() string {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.question
}

// SetQuestion replaces the current question and broadcasts it to all clients.
func (h *Hub) SetQuestion(ctx context.Context, question string) {
	ctx, span := h.tracer.Start(ctx, "relay.question",
		trace.WithAttributes(attribute.Int("question.length", len(question))))
	defer span.End()

	h.mu.Lock()
	h.question = question
	h.broker.Publish(QuestionEvent, Event{Event: QuestionEvent, Data: question})

	if h.recorder == nil {
		h.mu.Unlock()
		return
	}

	h.recordMu.Lock()
	h.mu.Unlock()
	defer h.recordMu.Unlock()

	if err := h.recorder.RecordQuestion(context.WithoutCancel(ctx), question, time.Now()); err != nil {
		span.RecordError(err)
		h.log.Error().Err(err).Msg("RELAY: Failed to archive question")
	}
}

// Word broadcasts a submitted word to all clients. Words are never stored.
func (h *Hub) Word(ctx context.Context, word string) {
	ctx, span := h.tracer.Start(ctx, "relay.word",
		trace.WithAttributes(attribute.Int("word.length", len(word))))
	defer span.End()

	// Publishing under the same lock as questions keeps every client's view
	// of the event stream in the same order.
	h.mu.Lock()
	h.broker.Publish(WordEvent, Event{Event: WordEvent, Data: word})

	if h.recorder == nil {
		h.mu.Unlock()
		return
	}

	h.recordMu.Lock()
	h.mu.Unlock()
	defer h.recordMu.Unlock()

	if err := h.recorder.RecordWord(context.WithoutCancel(ctx), word, time.Now()); err != nil {
		span.RecordError(err)
		h.log.Error().Err(err).Msg("RELAY: Failed to archive word")
	}
}

// subscribe registers a new client and arranges for the current question to
// be its first event. Both happen under mu, so no question set in between can
// be missed. The returned event, if any, must be written before the stream.
func (h *Hub) subscribe(ctx context.Context) (*Event, <-chan pubsub.Event[Event]) {
	h.mu.Lock()
	defer h.mu.Unlock()

	events := h.broker.Subscribe(ctx)
	current := Event{Event: QuestionEvent, Data: h.question}

	if h.quietJoin {
		return &current, events
	}

	// The joining client is already subscribed, so it receives this too.
	h.broker.Publish(QuestionEvent, current)

	return nil, events
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	return h.broker.SubscriberCount()
}

// Close disconnects every client. The hub relays nothing afterwards.
func (h *Hub) Close() {
	h.broker.Close()
}
