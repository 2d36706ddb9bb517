// Package viewmodel keeps client-side lists of tables and menu items in step
// with the restaurant API.
//
// A ListModel mirrors one collection: it fetches on Mount, refetches the
// whole collection on every change event and releases its subscription on
// Unmount. Writes go through the coordinators and never touch a list
// directly; the change stream brings them back. Destructive writes sit behind
// a ConfirmGate and item edits go through an ItemForm. The pages bundle these
// pieces the way each screen uses them.
//
// All types are safe for concurrent use. Change callbacks run on the
// subscription's goroutine while user actions run on the caller's.
package viewmodel

import (
	"context"
	"errors"

	"github.com/tbourn/go-restaurant-backend/internal/domain"
	"github.com/tbourn/go-restaurant-backend/internal/realtime"
)

// ErrConstraintViolation is returned by DataService.InsertItem when the item
// code is already taken.
var ErrConstraintViolation = errors.New("constraint violation")

// Subscription is a live change-stream registration.
type Subscription interface {
	// Unsubscribe releases the subscription. It is safe to call more than once.
	Unsubscribe()
}

// DataService is the remote store the view-models read from and write to.
type DataService interface {
	ListTables(ctx context.Context, f domain.TableFilter) ([]domain.Table, error)
	InsertTable(ctx context.Context, t domain.Table) (*domain.Table, error)
	DeleteTables(ctx context.Context, code int) error

	ListItems(ctx context.Context) ([]domain.Item, error)
	InsertItem(ctx context.Context, in domain.ItemInput) (*domain.Item, error)
	UpdateItem(ctx context.Context, id int64, in domain.ItemInput) error
	DeleteItem(ctx context.Context, id int64) error

	ListCategories(ctx context.Context) ([]domain.Category, error)

	// Subscribe calls fn for every change in collection whose type is in
	// types (all types when empty) until the subscription is released.
	Subscribe(ctx context.Context, collection string, types []realtime.EventType, fn func(realtime.Event)) (Subscription, error)
}
