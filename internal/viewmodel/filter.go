package viewmodel

import (
	"sync"

	"github.com/tbourn/go-restaurant-backend/internal/domain"
)

// AllCategories selects every item.
const AllCategories = "all"

// FilterByCategory returns the items whose category has the given code.
// AllCategories (or "") returns every item. The category is resolved through
// categories by CategoryID, falling back to the item's own join. The input is
// never modified; the result is always a fresh slice.
func FilterByCategory(items []domain.Item, categories []domain.Category, code string) []domain.Item {
	out := make([]domain.Item, 0, len(items))
	if code == "" || code == AllCategories {
		return append(out, items...)
	}

	byID := make(map[int64]string, len(categories))
	for _, c := range categories {
		byID[c.ID] = c.Code
	}
	for _, it := range items {
		if it.CategoryID == nil {
			continue
		}
		got, ok := byID[*it.CategoryID]
		if !ok && it.Category != nil {
			got, ok = it.Category.Code, true
		}
		if ok && got == code {
			out = append(out, it)
		}
	}
	return out
}

// MenuModel is the menu view: items narrowed to the selected category.
// The visible list is recomputed on every input change.
type MenuModel struct {
	mu         sync.Mutex
	items      []domain.Item
	categories []domain.Category
	selected   string
	visible    []domain.Item
}

// NewMenuModel starts with AllCategories selected.
func NewMenuModel() *MenuModel {
	return &MenuModel{selected: AllCategories, visible: []domain.Item{}}
}

// SetItems replaces the source list.
func (m *MenuModel) SetItems(items []domain.Item) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = append([]domain.Item(nil), items...)
	m.recompute()
}

// SetCategories replaces the category list used to resolve item codes.
func (m *MenuModel) SetCategories(cats []domain.Category) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.categories = append([]domain.Category(nil), cats...)
	m.recompute()
}

// Select changes the selected category code.
func (m *MenuModel) Select(code string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if code == "" {
		code = AllCategories
	}
	m.selected = code
	m.recompute()
}

// Selected returns the selected category code.
func (m *MenuModel) Selected() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.selected
}

// Categories returns a copy of the category list.
func (m *MenuModel) Categories() []domain.Category {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Category{}, m.categories...)
}

// Visible returns a copy of the filtered items.
func (m *MenuModel) Visible() []domain.Item {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Item{}, m.visible...)
}

func (m *MenuModel) recompute() {
	m.visible = FilterByCategory(m.items, m.categories, m.selected)
}
