package viewmodel

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/tbourn/go-restaurant-backend/internal/domain"
	"github.com/tbourn/go-restaurant-backend/internal/realtime"
)

var errBoom = errors.New("boom")

var nopLog = zerolog.Nop()

// fakeService is an in-memory DataService. Change events are delivered
// synchronously on the writer's goroutine after the store lock is released.
type fakeService struct {
	mu      sync.Mutex
	tables  []domain.Table
	items   []domain.Item
	cats    []domain.Category
	nextID  int64
	subs    map[int]*fakeSub
	nextSub int

	tableFilters []domain.TableFilter
	deletedCodes []int
	deletedItems []int64
	updates      int
	inserts      int

	listErr      error
	writeErr     error
	subscribeErr error
	// beforeList runs at the start of every read, outside the lock.
	beforeList func()
}

func newFake() *fakeService {
	return &fakeService{
		nextID: 100,
		subs:   map[int]*fakeSub{},
		cats: []domain.Category{
			{ID: 1, Code: "food", Name: "Food"},
			{ID: 2, Code: "drink", Name: "Drink"},
		},
	}
}

type fakeSub struct {
	f          *fakeService
	id         int
	collection string
	types      []realtime.EventType
	fn         func(realtime.Event)
	once       sync.Once
	done       chan struct{}
}

func (s *fakeSub) Unsubscribe() {
	s.once.Do(func() {
		s.f.mu.Lock()
		delete(s.f.subs, s.id)
		s.f.mu.Unlock()
		close(s.done)
	})
}

func (s *fakeSub) Done() <-chan struct{} { return s.done }

// endStreams closes every subscription on collection from the service side.
func (f *fakeService) endStreams(collection string) {
	f.mu.Lock()
	var subs []*fakeSub
	for _, s := range f.subs {
		if s.collection == collection {
			subs = append(subs, s)
		}
	}
	f.mu.Unlock()
	for _, s := range subs {
		s.Unsubscribe()
	}
}

func (f *fakeService) subscribers(collection string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, s := range f.subs {
		if s.collection == collection {
			n++
		}
	}
	return n
}

func (f *fakeService) emit(t realtime.EventType, collection string) {
	f.mu.Lock()
	var fns []func(realtime.Event)
	for _, s := range f.subs {
		if s.collection != collection {
			continue
		}
		if len(s.types) > 0 {
			want := false
			for _, st := range s.types {
				want = want || st == t
			}
			if !want {
				continue
			}
		}
		fns = append(fns, s.fn)
	}
	f.mu.Unlock()
	for _, fn := range fns {
		fn(realtime.Event{Type: t, Collection: collection})
	}
}

func (f *fakeService) read() error {
	if f.beforeList != nil {
		f.beforeList()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listErr
}

func (f *fakeService) ListTables(_ context.Context, flt domain.TableFilter) ([]domain.Table, error) {
	if err := f.read(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tableFilters = append(f.tableFilters, flt)
	var out []domain.Table
	for _, t := range f.tables {
		if (flt.Date == "" || t.Date == flt.Date) && (flt.Code == 0 || t.Code == flt.Code) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeService) InsertTable(_ context.Context, t domain.Table) (*domain.Table, error) {
	f.mu.Lock()
	if f.writeErr != nil {
		f.mu.Unlock()
		return nil, f.writeErr
	}
	f.nextID++
	t.ID = f.nextID
	f.tables = append(f.tables, t)
	f.inserts++
	f.mu.Unlock()
	f.emit(realtime.Insert, domain.CollectionTables)
	return &t, nil
}

func (f *fakeService) DeleteTables(_ context.Context, code int) error {
	f.mu.Lock()
	f.deletedCodes = append(f.deletedCodes, code)
	if f.writeErr != nil {
		f.mu.Unlock()
		return f.writeErr
	}
	kept := f.tables[:0]
	for _, t := range f.tables {
		if t.Code != code {
			kept = append(kept, t)
		}
	}
	f.tables = kept
	f.mu.Unlock()
	f.emit(realtime.Delete, domain.CollectionTables)
	return nil
}

func (f *fakeService) ListItems(context.Context) ([]domain.Item, error) {
	if err := f.read(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.Item, 0, len(f.items))
	for _, it := range f.items {
		if it.CategoryID != nil {
			for _, c := range f.cats {
				if c.ID == *it.CategoryID {
					c := c
					it.Category = &c
				}
			}
		}
		out = append(out, it)
	}
	return out, nil
}

func (f *fakeService) InsertItem(_ context.Context, in domain.ItemInput) (*domain.Item, error) {
	f.mu.Lock()
	if f.writeErr != nil {
		f.mu.Unlock()
		return nil, f.writeErr
	}
	for _, it := range f.items {
		if it.Code == in.Code {
			f.mu.Unlock()
			return nil, ErrConstraintViolation
		}
	}
	f.nextID++
	it := domain.Item{ID: f.nextID, Code: in.Code, Name: in.Name, Price: in.Price, CategoryID: in.CategoryID}
	f.items = append(f.items, it)
	f.inserts++
	f.mu.Unlock()
	f.emit(realtime.Insert, domain.CollectionItems)
	return &it, nil
}

func (f *fakeService) UpdateItem(_ context.Context, id int64, in domain.ItemInput) error {
	f.mu.Lock()
	f.updates++
	if f.writeErr != nil {
		f.mu.Unlock()
		return f.writeErr
	}
	for i := range f.items {
		if f.items[i].ID == id {
			f.items[i].Code, f.items[i].Name, f.items[i].Price, f.items[i].CategoryID = in.Code, in.Name, in.Price, in.CategoryID
		}
	}
	f.mu.Unlock()
	f.emit(realtime.Update, domain.CollectionItems)
	return nil
}

func (f *fakeService) DeleteItem(_ context.Context, id int64) error {
	f.mu.Lock()
	f.deletedItems = append(f.deletedItems, id)
	if f.writeErr != nil {
		f.mu.Unlock()
		return f.writeErr
	}
	kept := f.items[:0]
	for _, it := range f.items {
		if it.ID != id {
			kept = append(kept, it)
		}
	}
	f.items = kept
	f.mu.Unlock()
	f.emit(realtime.Delete, domain.CollectionItems)
	return nil
}

func (f *fakeService) ListCategories(context.Context) ([]domain.Category, error) {
	if err := f.read(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Category(nil), f.cats...), nil
}

func (f *fakeService) Subscribe(_ context.Context, collection string, types []realtime.EventType, fn func(realtime.Event)) (Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.subscribeErr != nil {
		return nil, f.subscribeErr
	}
	f.nextSub++
	s := &fakeSub{f: f, id: f.nextSub, collection: collection, types: types, fn: fn, done: make(chan struct{})}
	f.subs[s.id] = s
	return s, nil
}

func ptr[T any](v T) *T { return &v }

// sequence returns a generator yielding vals in order, then the last value.
func sequence(vals ...int) func() int {
	i := 0
	return func() int {
		v := vals[min(i, len(vals)-1)]
		i++
		return v
	}
}
