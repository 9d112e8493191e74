// Package stream carries ordered pipeline progress events to a single
// subscriber and serializes them onto an SSE connection with periodic
// keep-alives.
package stream

import (
	"sync"

	"go.uber.org/zap"

	"github.com/leadflow/leadflow-server/internal/model"
)

// Event names on the wire.
const (
	EventStatus    = "status"
	EventCompleted = "completed"
	EventError     = "error"
)

// Event is one named event with a JSON-serializable payload.
type Event struct {
	Name string
	Data any
}

const defaultBuffer = 256

// Channel is a push channel from one pipeline run to one subscriber. Events
// are delivered in emission order; after a terminal Completed or Error
// event the channel is closed and further emissions are dropped.
type Channel struct {
	events chan Event

	mu       sync.Mutex
	terminal bool
}

// NewChannel creates a Channel with the default buffer.
func NewChannel() *Channel {
	return &Channel{events: make(chan Event, defaultBuffer)}
}

// Events returns the subscriber side. It is closed after the terminal
// event.
func (c *Channel) Events() <-chan Event {
	return c.events
}

// Status pushes an ordered progress event. Dropped if the terminal event
// was already emitted or the subscriber stopped draining.
func (c *Channel) Status(ev model.ProgressEvent) {
	c.push(Event{Name: EventStatus, Data: ev})
}

// Completed emits the terminal success event and closes the channel.
func (c *Channel) Completed(p model.CompletedPayload) {
	c.finish(Event{Name: EventCompleted, Data: p})
}

// Error emits the terminal failure event and closes the channel.
func (c *Channel) Error(msg string) {
	c.finish(Event{Name: EventError, Data: model.ErrorPayload{Message: msg}})
}

func (c *Channel) push(ev Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.terminal {
		return
	}
	select {
	case c.events <- ev:
	default:
		zap.L().Warn("stream: event buffer full, dropping status event")
	}
}

func (c *Channel) finish(ev Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.terminal {
		return
	}
	c.terminal = true
	select {
	case c.events <- ev:
	default:
		// Buffer full of status events. The stream must still end with its
		// terminal frame, so evict the oldest status to make room.
		select {
		case <-c.events:
		default:
		}
		select {
		case c.events <- ev:
		default:
		}
	}
	close(c.events)
}
