package realtime

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Subscription is a live registration on one collection. Events arrive on C
// until the subscription is released with Broker.Unsubscribe, at which point
// C is closed.
type Subscription struct {
	id         string
	collection string
	types      map[EventType]struct{} // empty: every type
	ch         chan Event
	closed     bool // guarded by Broker.mu
}

// ID returns the subscription id.
func (s *Subscription) ID() string { return s.id }

// Collection returns the collection the subscription listens to.
func (s *Subscription) Collection() string { return s.collection }

// C returns the delivery channel.
func (s *Subscription) C() <-chan Event { return s.ch }

func (s *Subscription) wants(t EventType) bool {
	if len(s.types) == 0 {
		return true
	}
	_, ok := s.types[t]
	return ok
}

// Broker is an in-process fan-out of change events keyed by collection.
//
// Each subscription has a bounded buffer. When it is full the new event is
// dropped for that subscriber: any queued event already triggers a full
// refetch, so a dropped one loses no information.
type Broker struct {
	mu     sync.RWMutex
	subs   map[string]map[string]*Subscription
	buffer int
}

// NewBroker returns a broker whose subscriptions buffer up to buffer events.
func NewBroker(buffer int) *Broker {
	if buffer < 1 {
		buffer = 1
	}
	return &Broker{subs: make(map[string]map[string]*Subscription), buffer: buffer}
}

// Subscribe registers for events on collection, optionally restricted to
// the given types.
func (b *Broker) Subscribe(collection string, types ...EventType) *Subscription {
	s := &Subscription{
		id:         uuid.NewString(),
		collection: collection,
		types:      make(map[EventType]struct{}, len(types)),
		ch:         make(chan Event, b.buffer),
	}
	for _, t := range types {
		s.types[t] = struct{}{}
	}

	b.mu.Lock()
	set, ok := b.subs[collection]
	if !ok {
		set = make(map[string]*Subscription)
		b.subs[collection] = set
	}
	set[s.id] = s
	n := len(set)
	b.mu.Unlock()

	subscribersGauge.WithLabelValues(collection).Set(float64(n))
	return s
}

// Unsubscribe releases s and closes its channel. Safe to call more than once.
func (b *Broker) Unsubscribe(s *Subscription) {
	if s == nil {
		return
	}
	b.mu.Lock()
	if s.closed {
		b.mu.Unlock()
		return
	}
	s.closed = true
	set := b.subs[s.collection]
	delete(set, s.id)
	n := len(set)
	if n == 0 {
		delete(b.subs, s.collection)
	}
	close(s.ch)
	b.mu.Unlock()

	subscribersGauge.WithLabelValues(s.collection).Set(float64(n))
}

// Publish delivers ev to every matching subscriber without blocking.
func (b *Broker) Publish(_ context.Context, ev Event) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	eventsPublished.WithLabelValues(ev.Collection, string(ev.Type)).Inc()
	for _, s := range b.subs[ev.Collection] {
		if !s.wants(ev.Type) {
			continue
		}
		select {
		case s.ch <- ev:
		default:
			eventsDropped.WithLabelValues(ev.Collection).Inc()
		}
	}
	return nil
}

// Subscribers returns the number of live subscriptions on collection.
func (b *Broker) Subscribers(collection string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[collection])
}

// Close releases every subscription.
func (b *Broker) Close() {
	b.mu.Lock()
	all := b.subs
	b.subs = make(map[string]map[string]*Subscription)
	for _, set := range all {
		for _, s := range set {
			if !s.closed {
				s.closed = true
				close(s.ch)
			}
		}
	}
	b.mu.Unlock()

	for c := range all {
		subscribersGauge.WithLabelValues(c).Set(0)
	}
}
