package viewmodel

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/tbourn/go-restaurant-backend/internal/domain"
)

// Table code range, inclusive.
const (
	MinTableCode = 1000
	MaxTableCode = 9999
)

var (
	// ErrNoFreeCode means every code in the range is already in the snapshot.
	ErrNoFreeCode = errors.New("no free table code")
	// ErrMissingFields means a required item field is blank.
	ErrMissingFields = errors.New("code, name, price and category are required")
)

// RandomTableCode draws a code uniformly from [MinTableCode, MaxTableCode].
func RandomTableCode() int {
	return MinTableCode + rand.Intn(MaxTableCode-MinTableCode+1)
}

// GenerateTableCode draws from gen until the code is not in snapshot.
//
// Uniqueness holds only against snapshot. Another client can insert the same
// code between the check and the insert; tables have no remote uniqueness
// constraint, so such a duplicate is stored.
func GenerateTableCode(snapshot []domain.Table, gen func() int) (int, error) {
	taken := make(map[int]struct{}, len(snapshot))
	for _, t := range snapshot {
		if t.Code >= MinTableCode && t.Code <= MaxTableCode {
			taken[t.Code] = struct{}{}
		}
	}
	if len(taken) > MaxTableCode-MinTableCode {
		return 0, ErrNoFreeCode
	}
	for {
		code := gen()
		if _, dup := taken[code]; !dup {
			return code, nil
		}
	}
}

// TableCoordinator creates and deletes tables.
type TableCoordinator struct {
	svc DataService
	log zerolog.Logger
	gen func() int
	now func() time.Time
	loc *time.Location
}

// NewTableCoordinator uses RandomTableCode and the local clock.
func NewTableCoordinator(svc DataService, lg zerolog.Logger) *TableCoordinator {
	return &TableCoordinator{svc: svc, log: lg, gen: RandomTableCode, now: time.Now, loc: time.Local}
}

// Today is the business date new tables are opened on.
func (c *TableCoordinator) Today() string {
	return c.now().In(c.loc).Format(domain.DateLayout)
}

// Yesterday is the business date before Today.
func (c *TableCoordinator) Yesterday() string {
	return c.now().In(c.loc).AddDate(0, 0, -1).Format(domain.DateLayout)
}

// AddTable inserts a table for today with a code not present in snapshot.
// The list is not touched; the change stream refreshes it.
func (c *TableCoordinator) AddTable(ctx context.Context, snapshot []domain.Table) (*domain.Table, error) {
	code, err := GenerateTableCode(snapshot, c.gen)
	if err != nil {
		return nil, err
	}
	return c.svc.InsertTable(ctx, domain.Table{Code: code, Date: c.Today()})
}

// DeleteTable deletes every table with code.
func (c *TableCoordinator) DeleteTable(ctx context.Context, code int) error {
	return c.svc.DeleteTables(ctx, code)
}

// ItemDraft is the editable form of an item. ID is zero for a new item.
type ItemDraft struct {
	ID         int64
	Code       string
	Name       string
	Price      *int64
	CategoryID *int64
}

// DraftFrom copies it into a draft, dropping the category join.
func DraftFrom(it domain.Item) ItemDraft {
	d := ItemDraft{ID: it.ID, Code: it.Code, Name: it.Name}
	p := it.Price
	d.Price = &p
	if it.CategoryID != nil {
		id := *it.CategoryID
		d.CategoryID = &id
	}
	return d
}

// Complete reports whether every required field is set.
func (d ItemDraft) Complete() bool {
	return strings.TrimSpace(d.Code) != "" &&
		strings.TrimSpace(d.Name) != "" &&
		d.Price != nil &&
		d.CategoryID != nil && *d.CategoryID > 0
}

// Input is the write payload for d. The caller must check Complete first.
func (d ItemDraft) Input() domain.ItemInput {
	in := domain.ItemInput{Code: strings.TrimSpace(d.Code), Name: strings.TrimSpace(d.Name)}
	if d.Price != nil {
		in.Price = *d.Price
	}
	if d.CategoryID != nil {
		id := *d.CategoryID
		in.CategoryID = &id
	}
	return in
}

// ItemCoordinator creates, updates and deletes menu items.
type ItemCoordinator struct {
	svc DataService
	log zerolog.Logger
}

// NewItemCoordinator returns a coordinator writing through svc.
func NewItemCoordinator(svc DataService, lg zerolog.Logger) *ItemCoordinator {
	return &ItemCoordinator{svc: svc, log: lg}
}

// AddItem inserts d. A taken code yields ErrConstraintViolation.
func (c *ItemCoordinator) AddItem(ctx context.Context, d ItemDraft) (*domain.Item, error) {
	if !d.Complete() {
		return nil, ErrMissingFields
	}
	return c.svc.InsertItem(ctx, d.Input())
}

// UpdateItem writes d over the item with id.
func (c *ItemCoordinator) UpdateItem(ctx context.Context, id int64, d ItemDraft) error {
	if !d.Complete() {
		return ErrMissingFields
	}
	return c.svc.UpdateItem(ctx, id, d.Input())
}

// DeleteItem deletes the item with id.
func (c *ItemCoordinator) DeleteItem(ctx context.Context, id int64) error {
	return c.svc.DeleteItem(ctx, id)
}
