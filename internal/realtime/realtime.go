// Package realtime is the channel primitive notifications are pushed through:
// named channels carrying row insert/update events for a table, narrowed by a
// column filter such as "user_id=eq.42".
package realtime

import (
	"context"
	"encoding/json"
	"time"
)

type Status string

const (
	StatusSubscribed   Status = "SUBSCRIBED"
	StatusChannelError Status = "CHANNEL_ERROR"
	StatusTimedOut     Status = "TIMED_OUT"
	StatusClosed       Status = "CLOSED"
)

type EventKind string

const (
	EventInsert EventKind = "insert"
	EventUpdate EventKind = "update"
	EventAll    EventKind = "*"
)

// Event is one row change as it travels over the transport.
type Event struct {
	Kind       EventKind       `json:"kind"`
	Table      string          `json:"table"`
	Row        json.RawMessage `json:"row"`
	CommitTime time.Time       `json:"commit_time"`
}

// Binding narrows a channel listener to one table and optional row filter.
type Binding struct {
	Table  string
	Filter string
}

type Handler func(Event)

// StatusHandler receives channel lifecycle transitions. err is set for
// CHANNEL_ERROR and TIMED_OUT.
type StatusHandler func(status Status, err error)

// Channel is a named subscription on the transport. On must be called before
// Subscribe; Unsubscribe is silent (no CLOSED is reported for it).
type Channel interface {
	Name() string
	On(kind EventKind, b Binding, h Handler) Channel
	Subscribe(cb StatusHandler) Channel
	Unsubscribe() error
}

// Client is the registry of channels opened on one transport connection.
type Client interface {
	Channel(name string) Channel
	Channels() []Channel
	RemoveChannel(ch Channel) error
}

// Publisher emits row events to every channel whose binding matches.
type Publisher interface {
	Publish(ctx context.Context, table string, kind EventKind, row any) error
}
