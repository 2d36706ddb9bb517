// Package handlers – service contracts and handler wiring.
//
// Handlers are transport-thin: they validate input, call application services,
// and translate results into HTTP responses (including conditional responses
// and idempotent replays).
package handlers

import (
	"context"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/tbourn/go-restaurant-backend/internal/domain"
	"github.com/tbourn/go-restaurant-backend/internal/realtime"
)

//
// Service contracts (context-aware)
//

// TableService defines table operations consumed by HTTP handlers.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type TableService interface {
	// List returns the tables matching f in storage order.
	List(ctx context.Context, f domain.TableFilter) ([]domain.Table, error)
	// GetByCode returns the first table carrying code.
	GetByCode(ctx context.Context, code int) (*domain.Table, error)
	// Get returns a table by id (used to serve idempotent replays).
	Get(ctx context.Context, id int64) (*domain.Table, error)
	// Create opens a table; an empty date means today.
	Create(ctx context.Context, code int, date string) (*domain.Table, error)
	// DeleteByCode removes every table carrying code and reports how many.
	DeleteByCode(ctx context.Context, code int) (int, error)
	// Today and Yesterday return business dates in domain.DateLayout.
	Today() string
	Yesterday() string
}

// ItemService defines menu operations consumed by HTTP handlers.
type ItemService interface {
	// Search ranks items against query; a blank query lists the menu.
	Search(ctx context.Context, query, categoryCode string, limit int) ([]domain.Item, error)
	Get(ctx context.Context, id int64) (*domain.Item, error)
	Create(ctx context.Context, in domain.ItemInput) (*domain.Item, error)
	Update(ctx context.Context, id int64, in domain.ItemInput) (*domain.Item, error)
	Delete(ctx context.Context, id int64) error
}

// CategoryService lists the read-only categories.
type CategoryService interface {
	List(ctx context.Context) ([]domain.Category, error)
}

// tableStats and itemStats are optional; when a service implements them the
// list endpoints emit weak ETags.
type tableStats interface {
	Stats(ctx context.Context, f domain.TableFilter) (count int64, maxID int64, err error)
}

type itemStats interface {
	Stats(ctx context.Context) (count int64, lastUpdate string, err error)
}

// Subscriber hands out change-stream subscriptions for the websocket route.
type Subscriber interface {
	Subscribe(collection string, types ...realtime.EventType) *realtime.Subscription
	Unsubscribe(s *realtime.Subscription)
}

// IdempotencyStore remembers the resource created for an Idempotency-Key.
type IdempotencyStore interface {
	// Lookup returns the stored resource id for (clientID, scope, key) when a
	// still-valid record exists.
	Lookup(ctx context.Context, clientID, scope, key string, now time.Time) (resourceID int64, found bool, err error)
	// Save records resourceID for (clientID, scope, key). Best effort.
	Save(ctx context.Context, clientID, scope, key string, resourceID int64, status int) error
}

//
// Handler wiring
//

// Options carries the dependencies of Handlers. Tables, Items and Categories
// are required; the rest may be nil.
type Options struct {
	Tables      TableService
	Items       ItemService
	Categories  CategoryService
	Realtime    Subscriber
	Idempotency IdempotencyStore

	// PriceLocale is a BCP 47 tag for price labels (default "vi").
	PriceLocale string
	// PingInterval is the websocket keepalive period (default 30s).
	PingInterval time.Duration
	// SearchLimit caps ranked search results (default 50).
	SearchLimit int
}

// Handlers groups HTTP endpoints for tables, items, categories and the
// change stream.
type Handlers struct {
	tables     TableService
	items      ItemService
	categories CategoryService
	subs       Subscriber
	idem       IdempotencyStore

	printer     *message.Printer
	ping        time.Duration
	searchLimit int
}

// New constructs a Handlers instance bound to the given services.
func New(o Options) *Handlers {
	tag, err := language.Parse(o.PriceLocale)
	if err != nil || o.PriceLocale == "" {
		tag = language.Vietnamese
	}
	ping := o.PingInterval
	if ping <= 0 {
		ping = 30 * time.Second
	}
	limit := o.SearchLimit
	if limit <= 0 {
		limit = 50
	}
	return &Handlers{
		tables:      o.Tables,
		items:       o.Items,
		categories:  o.Categories,
		subs:        o.Realtime,
		idem:        o.Idempotency,
		printer:     message.NewPrinter(tag),
		ping:        ping,
		searchLimit: limit,
	}
}
