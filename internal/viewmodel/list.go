package viewmodel

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/tbourn/go-restaurant-backend/internal/realtime"
)

// Fetcher reads the full, filtered content of one collection.
type Fetcher[T any] func(ctx context.Context) ([]T, error)

// ListModel mirrors one remote collection in memory.
//
// The list is replaced wholesale on every fetch. When two refetches overlap,
// whichever resolves last wins. A failed read leaves an empty list and is
// only logged. If the subscription can report its end (a Done channel, as
// client.Stream has), a stream the server closes unmounts the model and
// closes Lost; nothing reconnects it.
type ListModel[T any] struct {
	svc        DataService
	collection string
	fetch      Fetcher[T]
	log        zerolog.Logger

	mu       sync.Mutex
	items    []T
	loading  int // refetches currently showing the loading state
	sub      Subscription
	hooks    []func()
	mounted  bool
	quiet    bool // event refetches never show loading
	fetchErr error
	lost     chan struct{}
	lostOnce sync.Once
}

// ListOption tunes a ListModel at construction.
type ListOption func(*listOptions)

type listOptions struct {
	quiet bool
}

// WithQuietRefetch keeps event-driven refetches from showing the loading
// state, for lists that never show one.
func WithQuietRefetch() ListOption {
	return func(o *listOptions) { o.quiet = true }
}

// NewListModel builds a model for collection that reads through fetch.
func NewListModel[T any](svc DataService, collection string, fetch Fetcher[T], lg zerolog.Logger, opts ...ListOption) *ListModel[T] {
	var o listOptions
	for _, opt := range opts {
		opt(&o)
	}
	return &ListModel[T]{
		svc:        svc,
		collection: collection,
		fetch:      fetch,
		log:        lg.With().Str("collection", collection).Logger(),
		items:      []T{},
		quiet:      o.quiet,
		lost:       make(chan struct{}),
	}
}

// Mount performs the initial read, showing the loading state only when
// showLoading is set, then subscribes to the collection's change stream.
// Event refetches show it for INSERT and UPDATE unless the model was built
// WithQuietRefetch.
// Refetches triggered by events outlive ctx's cancellation; only Unmount
// stops them from being started.
func (m *ListModel[T]) Mount(ctx context.Context, showLoading bool) error {
	m.mu.Lock()
	if m.mounted {
		m.mu.Unlock()
		return nil
	}
	m.mounted = true
	m.mu.Unlock()

	m.Refresh(ctx, showLoading)

	bg := context.WithoutCancel(ctx)
	sub, err := m.svc.Subscribe(ctx, m.collection, nil, func(ev realtime.Event) {
		m.log.Debug().Str("event", string(ev.Type)).Msg("change received")
		m.Refresh(bg, !m.quiet && ev.Type != realtime.Delete)
	})
	if err != nil {
		m.log.Warn().Err(err).Msg("subscribe failed; list will not follow changes")
		return err
	}

	m.mu.Lock()
	if !m.mounted {
		// Unmounted while subscribing.
		m.mu.Unlock()
		sub.Unsubscribe()
		return nil
	}
	m.sub = sub
	m.mu.Unlock()

	if d, ok := sub.(interface{ Done() <-chan struct{} }); ok {
		go m.watchStream(sub, d.Done())
	}
	return nil
}

// watchStream detaches the model when the server ends the stream. The list
// keeps its last content, Mounted turns false and Lost is closed.
func (m *ListModel[T]) watchStream(sub Subscription, done <-chan struct{}) {
	<-done
	m.mu.Lock()
	if m.sub != sub {
		// Released by Unmount.
		m.mu.Unlock()
		return
	}
	m.sub = nil
	m.mounted = false
	m.mu.Unlock()

	m.log.Warn().Msg("change stream ended; list no longer follows changes")
	m.lostOnce.Do(func() { close(m.lost) })
	m.notify()
}

// Lost is closed when a mounted model's change stream ends without Unmount.
func (m *ListModel[T]) Lost() <-chan struct{} { return m.lost }

// Unmount releases the change subscription. In-flight reads still land.
func (m *ListModel[T]) Unmount() {
	m.mu.Lock()
	sub := m.sub
	m.sub = nil
	m.mounted = false
	m.mu.Unlock()

	if sub != nil {
		sub.Unsubscribe()
	}
}

// Refresh refetches the collection and replaces the list.
func (m *ListModel[T]) Refresh(ctx context.Context, showLoading bool) {
	if showLoading {
		m.mu.Lock()
		m.loading++
		m.mu.Unlock()
		m.notify()
	}

	rows, err := m.fetch(ctx)
	if err != nil {
		m.log.Warn().Err(err).Msg("read failed; showing empty list")
		rows = nil
	}
	if rows == nil {
		rows = []T{}
	}

	m.mu.Lock()
	m.items = rows
	m.fetchErr = err
	if showLoading {
		m.loading--
	}
	m.mu.Unlock()
	m.notify()
}

// Items returns a copy of the current list.
func (m *ListModel[T]) Items() []T {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]T, len(m.items))
	copy(out, m.items)
	return out
}

// Loading reports whether a refetch that shows the loading state is running.
func (m *ListModel[T]) Loading() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loading > 0
}

// Mounted reports whether the model holds a live subscription or is
// acquiring one.
func (m *ListModel[T]) Mounted() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mounted
}

// LastError is the error of the most recent read, for diagnostics only.
func (m *ListModel[T]) LastError() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fetchErr
}

// OnChange registers fn to run after every list or loading change.
func (m *ListModel[T]) OnChange(fn func()) {
	m.mu.Lock()
	m.hooks = append(m.hooks, fn)
	m.mu.Unlock()
}

func (m *ListModel[T]) notify() {
	m.mu.Lock()
	hooks := append([]func(){}, m.hooks...)
	m.mu.Unlock()
	for _, fn := range hooks {
		fn()
	}
}
