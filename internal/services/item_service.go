// Package services – ItemService
//
// ItemService manages the menu. Item codes are business keys and are unique;
// a clash is reported as ErrDuplicateItemCode. Every successful write
// publishes a change event on the items collection.
package services

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-restaurant-backend/internal/domain"
	"github.com/tbourn/go-restaurant-backend/internal/realtime"
	"github.com/tbourn/go-restaurant-backend/internal/repo"
	"github.com/tbourn/go-restaurant-backend/internal/search"
)

// ItemService provides menu item operations.
type ItemService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Events receives a change event after each write.
	Events realtime.Publisher
	// MaxCodeRunes and MaxNameRunes bound field lengths (0 disables).
	MaxCodeRunes int
	MaxNameRunes int
}

// NewItemService constructs an ItemService with column-sized limits.
func NewItemService(db *gorm.DB, events realtime.Publisher) *ItemService {
	return &ItemService{DB: db, Events: events, MaxCodeRunes: 32, MaxNameRunes: 255}
}

// List returns the menu, optionally restricted to one category code.
func (s *ItemService) List(ctx context.Context, categoryCode string) ([]domain.Item, error) {
	ctx, span := otel.Tracer("services/ItemService").Start(ctx, "List",
		trace.WithAttributes(attribute.String("category.code", categoryCode)),
	)
	defer span.End()
	return repo.ListItems(ctx, s.DB, strings.TrimSpace(categoryCode))
}

// Search ranks menu items against query by code, name and category name.
// A blank query behaves like List.
func (s *ItemService) Search(ctx context.Context, query, categoryCode string, limit int) ([]domain.Item, error) {
	ctx, span := otel.Tracer("services/ItemService").Start(ctx, "Search",
		trace.WithAttributes(
			attribute.String("query", query),
			attribute.Int("limit", limit),
		),
	)
	defer span.End()

	items, err := repo.ListItems(ctx, s.DB, strings.TrimSpace(categoryCode))
	if err != nil || strings.TrimSpace(query) == "" {
		return items, err
	}

	docs := make([]search.Document, len(items))
	byID := make(map[int64]domain.Item, len(items))
	for i, it := range items {
		text := it.Code + " " + it.Name
		if it.Category != nil {
			text += " " + it.Category.Name
		}
		docs[i] = search.Document{ID: it.ID, Text: text}
		byID[it.ID] = it
	}
	hits := search.New(docs).TopK(query, limit)
	out := make([]domain.Item, 0, len(hits))
	for _, h := range hits {
		out = append(out, byID[h.ID])
	}
	span.SetAttributes(attribute.Int("hits", len(out)))
	return out, nil
}

// Get returns a single item with its category.
func (s *ItemService) Get(ctx context.Context, id int64) (*domain.Item, error) {
	it, err := repo.GetItem(ctx, s.DB, id)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrItemNotFound
		}
		return nil, err
	}
	return it, nil
}

// Create inserts an item. The returned item has its category joined.
func (s *ItemService) Create(ctx context.Context, in domain.ItemInput) (*domain.Item, error) {
	ctx, span := otel.Tracer("services/ItemService").Start(ctx, "Create",
		trace.WithAttributes(attribute.String("item.code", in.Code)),
	)
	defer span.End()

	in, err := s.normalize(ctx, in)
	if err != nil {
		return nil, err
	}
	created, err := repo.CreateItem(ctx, s.DB, in)
	if err != nil {
		if isDuplicate(err) {
			return nil, ErrDuplicateItemCode
		}
		return nil, err
	}
	it := s.reread(ctx, created)
	publish(ctx, s.Events, realtime.Insert, domain.CollectionItems, it)
	return it, nil
}

// Update overwrites the writable fields of item id.
func (s *ItemService) Update(ctx context.Context, id int64, in domain.ItemInput) (*domain.Item, error) {
	ctx, span := otel.Tracer("services/ItemService").Start(ctx, "Update",
		trace.WithAttributes(attribute.Int64("item.id", id)),
	)
	defer span.End()

	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	in, err := s.normalize(ctx, in)
	if err != nil {
		return nil, err
	}
	if err := repo.UpdateItem(ctx, s.DB, id, in); err != nil {
		if isDuplicate(err) {
			return nil, ErrDuplicateItemCode
		}
		return nil, err
	}
	it := s.reread(ctx, &domain.Item{ID: id, Code: in.Code, Name: in.Name, Price: in.Price, CategoryID: in.CategoryID})
	publish(ctx, s.Events, realtime.Update, domain.CollectionItems, it)
	return it, nil
}

// reread loads a just-written item with its category joined. The write is
// already committed, so a failed read falls back to written and is only
// logged; subscribers still get the event.
func (s *ItemService) reread(ctx context.Context, written *domain.Item) *domain.Item {
	it, err := s.Get(ctx, written.ID)
	if err != nil {
		log.Warn().Err(err).Int64("item_id", written.ID).Msg("re-read after write failed; returning written row")
		return written
	}
	return it
}

// Delete removes item id.
func (s *ItemService) Delete(ctx context.Context, id int64) error {
	ctx, span := otel.Tracer("services/ItemService").Start(ctx, "Delete",
		trace.WithAttributes(attribute.Int64("item.id", id)),
	)
	defer span.End()

	it, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := repo.DeleteItem(ctx, s.DB, id); err != nil {
		if isNotFound(err) {
			return ErrItemNotFound
		}
		return err
	}
	publish(ctx, s.Events, realtime.Delete, domain.CollectionItems, it)
	return nil
}

// Stats returns (count, latest update) for ETags.
func (s *ItemService) Stats(ctx context.Context) (int64, string, error) {
	n, last, err := repo.ItemsStats(ctx, s.DB)
	if err != nil || last == nil {
		return n, "", err
	}
	return n, last.UTC().Format("20060102150405.000000000"), nil
}

// normalize trims text fields and checks required fields, ranges and the
// category reference.
func (s *ItemService) normalize(ctx context.Context, in domain.ItemInput) (domain.ItemInput, error) {
	in.Code = strings.TrimSpace(in.Code)
	in.Name = strings.TrimSpace(in.Name)
	if in.Code == "" || in.Name == "" || in.Price < 0 {
		return in, ErrInvalidItem
	}
	if s.MaxCodeRunes > 0 && len([]rune(in.Code)) > s.MaxCodeRunes {
		return in, ErrInvalidItem
	}
	if s.MaxNameRunes > 0 && len([]rune(in.Name)) > s.MaxNameRunes {
		return in, ErrInvalidItem
	}
	if in.CategoryID != nil {
		ok, err := repo.CategoryExists(ctx, s.DB, *in.CategoryID)
		if err != nil {
			return in, err
		}
		if !ok {
			return in, ErrCategoryNotFound
		}
	}
	return in, nil
}

// IsValidation reports whether err is a client input error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidItem) ||
		errors.Is(err, ErrCategoryNotFound) ||
		errors.Is(err, ErrInvalidTableCode) ||
		errors.Is(err, ErrInvalidDate)
}
