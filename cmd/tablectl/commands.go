package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/docopt/docopt-go"

	"github.com/tbourn/go-restaurant-backend/internal/domain"
	"github.com/tbourn/go-restaurant-backend/internal/export"
	"github.com/tbourn/go-restaurant-backend/internal/sysutil"
	"github.com/tbourn/go-restaurant-backend/internal/viewmodel"
)

func (a *app) tables(ctx context.Context, opts docopt.Opts) error {
	yesterday, _ := opts.Bool("--yesterday")
	watch, _ := opts.Bool("--watch")

	var (
		date  string
		list  *viewmodel.ListModel[domain.Table]
		mount func(context.Context) error
		stop  func()
	)
	if yesterday {
		p := viewmodel.NewRecordsPage(a.api, a.log)
		date, list, mount, stop = p.Date, p.Tables, p.Mount, p.Unmount
	} else {
		p := viewmodel.NewTodayPage(a.api, a.log)
		date, list, mount, stop = p.Date, p.Tables, p.Mount, p.Unmount
	}

	if !watch {
		list.Refresh(ctx, false)
		return renderTables(a.out, date, list.Items())
	}

	var mu sync.Mutex
	draw := func() {
		mu.Lock()
		defer mu.Unlock()
		if list.Loading() {
			return
		}
		fmt.Fprintf(a.out, "\n-- %s --\n", time.Now().Format(time.TimeOnly))
		_ = renderTables(a.out, date, list.Items())
	}
	list.OnChange(draw)
	if err := mount(ctx); err != nil {
		return err
	}
	defer stop()
	return follow(ctx, list.Lost())
}

func (a *app) table(ctx context.Context, opts docopt.Opts) error {
	code, err := intArg(opts, "<code>")
	if err != nil {
		return err
	}
	p := viewmodel.NewTablePage(a.api, code, a.log)
	p.Load(ctx)
	t := p.Table()
	if t == nil {
		return fmt.Errorf("table %d not found", code)
	}
	if cat, _ := opts.String("--category"); cat != "" {
		p.Menu.Select(cat)
	}
	fmt.Fprintf(a.out, "Table %d, opened %s\n\n", t.Code, t.Date)
	return renderItems(a.out, p.Menu.Visible())
}

func (a *app) addTable(ctx context.Context, _ docopt.Opts) error {
	coord := viewmodel.NewTableCoordinator(a.api, a.log)
	today, err := a.api.ListTables(ctx, domain.TableFilter{Date: coord.Today()})
	if err != nil {
		return err
	}
	t, err := coord.AddTable(ctx, today)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "opened table %d on %s\n", t.Code, t.Date)
	return nil
}

func (a *app) deleteTable(ctx context.Context, opts docopt.Opts) error {
	code, err := intArg(opts, "<code>")
	if err != nil {
		return err
	}
	coord := viewmodel.NewTableCoordinator(a.api, a.log)
	gate := viewmodel.NewConfirmGate(coord.DeleteTable)
	ok, err := confirm(a, gate, code, opts, fmt.Sprintf("Delete table %d?", code))
	if err != nil || !ok {
		return err
	}
	if err := gate.Confirm(ctx); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "deleted table %d\n", code)
	return nil
}

func (a *app) items(ctx context.Context, opts docopt.Opts) error {
	cat, _ := opts.String("--category")
	watch, _ := opts.Bool("--watch")

	if q, _ := opts.String("--search"); q != "" {
		views, err := a.api.SearchItems(ctx, q, serverCategory(cat))
		if err != nil {
			return err
		}
		return renderItemViews(a.out, views)
	}

	p := viewmodel.NewItemsPage(a.api, a.log)
	p.Menu.Select(cat)
	if !watch {
		p.Menu.SetCategories(categoriesOrEmpty(ctx, a))
		p.Items.Refresh(ctx, false)
		return renderItems(a.out, p.Menu.Visible())
	}

	var mu sync.Mutex
	p.Items.OnChange(func() {
		mu.Lock()
		defer mu.Unlock()
		if p.Items.Loading() {
			return
		}
		fmt.Fprintf(a.out, "\n-- %s --\n", time.Now().Format(time.TimeOnly))
		_ = renderItems(a.out, p.Menu.Visible())
	})
	if err := p.Mount(ctx); err != nil {
		return err
	}
	defer p.Unmount()
	return follow(ctx, p.Items.Lost())
}

// errStreamEnded stops a watch whose change stream the server closed.
var errStreamEnded = errors.New("change stream ended by the server")

// follow blocks until ctx is done or the list loses its change stream.
func follow(ctx context.Context, lost <-chan struct{}) error {
	select {
	case <-ctx.Done():
		return nil
	case <-lost:
		return errStreamEnded
	}
}

func (a *app) addItem(ctx context.Context, opts docopt.Opts) error {
	form := viewmodel.NewItemForm(viewmodel.NewItemCoordinator(a.api, a.log), a.log)
	if err := a.fillDraft(ctx, form, opts); err != nil {
		return err
	}
	if err := form.Submit(ctx); err != nil {
		if msg := form.Error(); msg != "" {
			return errors.New(msg)
		}
		return err
	}
	fmt.Fprintln(a.out, "item added")
	return nil
}

func (a *app) updateItem(ctx context.Context, opts docopt.Opts) error {
	id, err := int64Arg(opts, "<id>")
	if err != nil {
		return err
	}
	items, err := a.api.ListItems(ctx)
	if err != nil {
		return err
	}
	var rec *domain.Item
	for i := range items {
		if items[i].ID == id {
			rec = &items[i]
			break
		}
	}
	if rec == nil {
		return fmt.Errorf("item %d not found", id)
	}

	form := viewmodel.NewItemForm(viewmodel.NewItemCoordinator(a.api, a.log), a.log)
	if err := form.Open(rec); err != nil {
		return err
	}
	if err := a.fillDraft(ctx, form, opts); err != nil {
		return err
	}
	if err := form.Submit(ctx); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "item %d saved\n", id)
	return nil
}

func (a *app) deleteItem(ctx context.Context, opts docopt.Opts) error {
	id, err := int64Arg(opts, "<id>")
	if err != nil {
		return err
	}
	gate := viewmodel.NewConfirmGate(viewmodel.NewItemCoordinator(a.api, a.log).DeleteItem)
	ok, err := confirm(a, gate, id, opts, fmt.Sprintf("Delete item %d?", id))
	if err != nil || !ok {
		return err
	}
	if err := gate.Confirm(ctx); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "deleted item %d\n", id)
	return nil
}

func (a *app) export(ctx context.Context, opts docopt.Opts) error {
	cat, _ := opts.String("--category")
	name, _ := opts.String("--out")
	if name == "" {
		name = "menu_" + time.Now().Format("20060102") + ".xlsx"
	}
	f, err := os.Create(name)
	if err != nil {
		return err
	}
	n, err := a.api.ExportItems(ctx, serverCategory(cat), f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(name)
		return err
	}
	fmt.Fprintf(a.out, "wrote %s (%d bytes, sheet %q)\n", name, n, export.SheetName)
	return nil
}

// confirm puts target in the gate and asks on stdin unless --yes or
// $TABLECTL_ASSUME_YES is set.
// A refusal cancels the gate.
func confirm[K comparable](a *app, gate *viewmodel.ConfirmGate[K], target K, opts docopt.Opts, prompt string) (bool, error) {
	if err := gate.Request(target); err != nil {
		return false, err
	}
	if yes, _ := opts.Bool("--yes"); yes || sysutil.IsTruthy(os.Getenv("TABLECTL_ASSUME_YES")) {
		return true, nil
	}
	fmt.Fprintf(a.out, "%s [y/N] ", prompt)
	line, _ := bufio.NewReader(a.in).ReadString('\n')
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	}
	fmt.Fprintln(a.out, "cancelled")
	return false, gate.Cancel()
}

// fillDraft applies the item flags that were given to the form's draft.
func (a *app) fillDraft(ctx context.Context, form *viewmodel.ItemForm, opts docopt.Opts) error {
	var catID *int64
	if code, _ := opts.String("--category"); code != "" {
		id, err := a.categoryID(ctx, code)
		if err != nil {
			return err
		}
		catID = &id
	}
	var price *int64
	if s, _ := opts.String("--price"); s != "" {
		p, err := strconv.ParseInt(s, 10, 64)
		if err != nil || p < 0 {
			return fmt.Errorf("price must be a non-negative integer, got %q", s)
		}
		price = &p
	}
	code, _ := opts.String("--code")
	name, _ := opts.String("--name")

	return form.Update(func(d *viewmodel.ItemDraft) {
		if code != "" {
			d.Code = code
		}
		if name != "" {
			d.Name = name
		}
		if price != nil {
			d.Price = price
		}
		if catID != nil {
			d.CategoryID = catID
		}
	})
}

func (a *app) categoryID(ctx context.Context, code string) (int64, error) {
	cats, err := a.api.ListCategories(ctx)
	if err != nil {
		return 0, err
	}
	for _, c := range cats {
		if c.Code == code {
			return c.ID, nil
		}
	}
	return 0, fmt.Errorf("unknown category %q", code)
}

func categoriesOrEmpty(ctx context.Context, a *app) []domain.Category {
	cats, err := a.api.ListCategories(ctx)
	if err != nil {
		a.log.Warn().Err(err).Msg("category read failed")
	}
	return cats
}

// serverCategory maps the "all" selection to the API's empty filter.
func serverCategory(code string) string {
	if code == viewmodel.AllCategories {
		return ""
	}
	return code
}

func intArg(opts docopt.Opts, key string) (int, error) {
	s, _ := opts.String(key)
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number, got %q", key, s)
	}
	return n, nil
}

func int64Arg(opts docopt.Opts, key string) (int64, error) {
	s, _ := opts.String(key)
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%s must be a positive number, got %q", key, s)
	}
	return n, nil
}
