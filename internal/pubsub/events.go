// Package pubsub provides a generic publish/subscribe event system.
package pubsub

import "time"

// EventType names the kind of event being published.
type EventType string

// Event is a published payload plus the time it was published.
type Event[T any] struct {
	Type      EventType
	Payload   T
	Timestamp time.Time
}
