// Package realtime fans change events out to subscribers of a collection.
//
// A Broker delivers events in-process. A RedisRelay wraps a Broker and
// forwards events through a Redis pub/sub channel so that every server
// instance sees every change.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// EventType is the kind of row change.
type EventType string

const (
	Insert EventType = "INSERT"
	Update EventType = "UPDATE"
	Delete EventType = "DELETE"
)

// ParseEventType accepts INSERT, UPDATE or DELETE in any case.
func ParseEventType(s string) (EventType, error) {
	switch t := EventType(strings.ToUpper(strings.TrimSpace(s))); t {
	case Insert, Update, Delete:
		return t, nil
	}
	return "", fmt.Errorf("unknown event type %q", s)
}

// ParseEventTypes parses a comma separated list. Empty input means all types
// and yields nil.
func ParseEventTypes(csv string) ([]EventType, error) {
	if strings.TrimSpace(csv) == "" {
		return nil, nil
	}
	var out []EventType
	for _, part := range strings.Split(csv, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		t, err := ParseEventType(part)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

// Event describes one row change in a collection. Payload carries the row
// as the API serializes it (the deleted row for DELETE).
type Event struct {
	ID         string          `json:"id"`
	Type       EventType       `json:"type"`
	Collection string          `json:"collection"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	At         time.Time       `json:"at"`

	// Origin identifies the instance that produced the event. Set by RedisRelay.
	Origin string `json:"origin,omitempty"`
}

// NewEvent builds an event with a fresh id and payload marshalled from row.
func NewEvent(t EventType, collection string, row any) (Event, error) {
	ev := Event{
		ID:         uuid.NewString(),
		Type:       t,
		Collection: collection,
		At:         time.Now().UTC(),
	}
	if row != nil {
		b, err := json.Marshal(row)
		if err != nil {
			return Event{}, err
		}
		ev.Payload = b
	}
	return ev, nil
}

// Publisher accepts change events. Implementations must not block on slow
// subscribers.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Discard is a Publisher that drops every event.
var Discard Publisher = discard{}

type discard struct{}

func (discard) Publish(context.Context, Event) error { return nil }
