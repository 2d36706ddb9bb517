package viewmodel

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/tbourn/go-restaurant-backend/internal/domain"
)

// TodayPage lists today's tables and opens and closes them.
type TodayPage struct {
	Date   string
	Tables *ListModel[domain.Table]
	Gate   *ConfirmGate[int]

	coord *TableCoordinator
	log   zerolog.Logger
}

// NewTodayPage builds the page for the current local date.
func NewTodayPage(svc DataService, lg zerolog.Logger) *TodayPage {
	return newTodayPage(svc, NewTableCoordinator(svc, lg), lg)
}

func newTodayPage(svc DataService, coord *TableCoordinator, lg zerolog.Logger) *TodayPage {
	p := &TodayPage{Date: coord.Today(), coord: coord, log: lg.With().Str("page", "today").Logger()}
	p.Tables = tableList(svc, domain.TableFilter{Date: p.Date}, p.log)
	p.Gate = NewConfirmGate(coord.DeleteTable)
	return p
}

// Mount loads today's tables with the loading state shown and follows changes.
func (p *TodayPage) Mount(ctx context.Context) error { return p.Tables.Mount(ctx, true) }

// Unmount stops following changes.
func (p *TodayPage) Unmount() { p.Tables.Unmount() }

// AddTable opens a table with a code unused in the current list.
// Failures are logged and otherwise dropped; the list shows the outcome.
func (p *TodayPage) AddTable(ctx context.Context) {
	t, err := p.coord.AddTable(ctx, p.Tables.Items())
	if err != nil {
		p.log.Warn().Err(err).Msg("add table failed")
		return
	}
	p.log.Debug().Int("code", t.Code).Msg("table added")
}

// RequestDelete asks for confirmation to delete the table with code.
func (p *TodayPage) RequestDelete(code int) error { return p.Gate.Request(code) }

// CancelDelete drops the pending delete.
func (p *TodayPage) CancelDelete() error { return p.Gate.Cancel() }

// ConfirmDelete deletes the pending table. Only gate errors are returned;
// a failed delete is logged and dropped like AddTable.
func (p *TodayPage) ConfirmDelete(ctx context.Context) error {
	err := p.Gate.Confirm(ctx)
	if err == nil || errors.Is(err, ErrGateBusy) || errors.Is(err, ErrNothingPending) {
		return err
	}
	p.log.Warn().Err(err).Msg("delete table failed")
	return nil
}

// Loading reports whether the list is refreshing or a delete is running.
func (p *TodayPage) Loading() bool { return p.Tables.Loading() || p.Gate.Busy() }

// RecordsPage lists yesterday's tables. It never shows a loading state.
type RecordsPage struct {
	Date   string
	Tables *ListModel[domain.Table]
}

// NewRecordsPage builds the page for the local date before today.
func NewRecordsPage(svc DataService, lg zerolog.Logger) *RecordsPage {
	return newRecordsPage(svc, NewTableCoordinator(svc, lg), lg)
}

func newRecordsPage(svc DataService, coord *TableCoordinator, lg zerolog.Logger) *RecordsPage {
	date := coord.Yesterday()
	return &RecordsPage{
		Date:   date,
		Tables: tableList(svc, domain.TableFilter{Date: date}, lg.With().Str("page", "records").Logger(), WithQuietRefetch()),
	}
}

// Mount loads yesterday's tables and follows changes.
func (p *RecordsPage) Mount(ctx context.Context) error { return p.Tables.Mount(ctx, false) }

// Unmount stops following changes.
func (p *RecordsPage) Unmount() { p.Tables.Unmount() }

func tableList(svc DataService, f domain.TableFilter, lg zerolog.Logger, opts ...ListOption) *ListModel[domain.Table] {
	return NewListModel[domain.Table](svc, domain.CollectionTables, func(ctx context.Context) ([]domain.Table, error) {
		return svc.ListTables(ctx, f)
	}, lg, opts...)
}

// ItemsPage manages the menu: list, category filter, add/edit form and
// confirmed delete.
type ItemsPage struct {
	Items *ListModel[domain.Item]
	Menu  *MenuModel
	Form  *ItemForm
	Gate  *ConfirmGate[int64]

	svc DataService
	log zerolog.Logger
}

// NewItemsPage wires the menu page to svc.
func NewItemsPage(svc DataService, lg zerolog.Logger) *ItemsPage {
	lg = lg.With().Str("page", "items").Logger()
	coord := NewItemCoordinator(svc, lg)
	p := &ItemsPage{
		Items: NewListModel[domain.Item](svc, domain.CollectionItems, svc.ListItems, lg),
		Menu:  NewMenuModel(),
		Form:  NewItemForm(coord, lg),
		Gate:  NewConfirmGate(coord.DeleteItem),
		svc:   svc,
		log:   lg,
	}
	p.Items.OnChange(func() { p.Menu.SetItems(p.Items.Items()) })
	return p
}

// Mount loads categories, then the items, and follows item changes.
func (p *ItemsPage) Mount(ctx context.Context) error {
	p.Menu.SetCategories(loadCategories(ctx, p.svc, p.log))
	return p.Items.Mount(ctx, false)
}

// Unmount stops following changes.
func (p *ItemsPage) Unmount() { p.Items.Unmount() }

// Add opens the form for a new item.
func (p *ItemsPage) Add() error { return p.Form.Open(nil) }

// Edit opens the form on a copy of it.
func (p *ItemsPage) Edit(it domain.Item) error { return p.Form.Open(&it) }

// RequestDelete asks for confirmation to delete the item with id.
func (p *ItemsPage) RequestDelete(id int64) error { return p.Gate.Request(id) }

// CancelDelete drops the pending delete.
func (p *ItemsPage) CancelDelete() error { return p.Gate.Cancel() }

// ConfirmDelete deletes the pending item and returns the delete error, which
// is also logged.
func (p *ItemsPage) ConfirmDelete(ctx context.Context) error {
	err := p.Gate.Confirm(ctx)
	if err != nil && !errors.Is(err, ErrGateBusy) && !errors.Is(err, ErrNothingPending) {
		p.log.Error().Err(err).Msg("delete item failed")
	}
	return err
}

// Loading reports whether the list is refreshing or a delete is running.
func (p *ItemsPage) Loading() bool { return p.Items.Loading() || p.Gate.Busy() }

// TablePage is the detail view of one table: the table itself and the menu
// to order from.
type TablePage struct {
	Code int
	Menu *MenuModel

	svc DataService
	log zerolog.Logger

	mu    sync.Mutex
	table *domain.Table
}

// NewTablePage builds the detail page for code.
func NewTablePage(svc DataService, code int, lg zerolog.Logger) *TablePage {
	return &TablePage{
		Code: code,
		Menu: NewMenuModel(),
		svc:  svc,
		log:  lg.With().Str("page", "table").Int("code", code).Logger(),
	}
}

// Load reads the first table with Code, the categories and the items.
// Read failures leave the corresponding part empty.
func (p *TablePage) Load(ctx context.Context) {
	var table *domain.Table
	rows, err := p.svc.ListTables(ctx, domain.TableFilter{Code: p.Code})
	switch {
	case err != nil:
		p.log.Warn().Err(err).Msg("table read failed")
	case len(rows) > 0:
		t := rows[0]
		table = &t
	}
	p.mu.Lock()
	p.table = table
	p.mu.Unlock()

	p.Menu.SetCategories(loadCategories(ctx, p.svc, p.log))
	items, err := p.svc.ListItems(ctx)
	if err != nil {
		p.log.Warn().Err(err).Msg("menu read failed")
		items = nil
	}
	p.Menu.SetItems(items)
}

// Table returns the loaded table, or nil when none matched.
func (p *TablePage) Table() *domain.Table {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.table == nil {
		return nil
	}
	t := *p.table
	return &t
}

func loadCategories(ctx context.Context, svc DataService, lg zerolog.Logger) []domain.Category {
	cats, err := svc.ListCategories(ctx)
	if err != nil {
		lg.Warn().Err(err).Msg("category read failed")
		return nil
	}
	return cats
}
