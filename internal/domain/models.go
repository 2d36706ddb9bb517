// Package domain defines the persistence models for restaurant tables, menu
// items, and categories. These types are mapped with GORM and shared by the
// server layers and the client-side view-models.
package domain

import (
	"time"
)

// DateLayout is the wire and storage format of Table.Date ("YYYY/MM/DD").
const DateLayout = "2006/01/02"

// Collection names used by the HTTP API and the change stream.
const (
	CollectionTables     = "tables"
	CollectionItems      = "items"
	CollectionCategories = "categories"
)

// Table is a seating opened for one business day.
//
// Fields:
//   - ID: assigned by the store.
//   - Code: 4-digit code in [1000,9999], generated by the client. Not unique
//     in storage; the client only checks it against the list it has loaded.
//   - Date: business day in DateLayout.
type Table struct {
	ID        int64     `json:"id"   gorm:"primaryKey;autoIncrement"`
	Code      int       `json:"code" gorm:"not null;index:idx_tables_date_code,priority:2;check:code BETWEEN 1000 AND 9999"`
	Date      string    `json:"date" gorm:"type:varchar(10);not null;index:idx_tables_date_code,priority:1"`
	CreatedAt time.Time `json:"-"`
}

// TableName returns the database table name for Table.
func (Table) TableName() string { return "tables" }

// Category groups menu items. Read-only through the API.
type Category struct {
	ID   int64  `json:"id"   gorm:"primaryKey;autoIncrement"`
	Name string `json:"name" gorm:"type:varchar(64);not null"`
	Code string `json:"code" gorm:"type:varchar(32);not null;uniqueIndex:ux_categories_code"`
}

// TableName returns the database table name for Category.
func (Category) TableName() string { return "categories" }

// Item is a menu entry. Code is the business key and is unique.
// Price is in thousands of the display currency.
//
// Category is a read-side join. It is populated by list queries and is never
// written; use Input to build a write payload.
type Item struct {
	ID         int64     `json:"id"          gorm:"primaryKey;autoIncrement"`
	Code       string    `json:"code"        gorm:"type:varchar(32);not null;uniqueIndex:ux_items_code"`
	Name       string    `json:"name"        gorm:"type:varchar(255);not null"`
	Price      int64     `json:"price"       gorm:"not null;default:0;check:price >= 0"`
	CategoryID *int64    `json:"category_id" gorm:"index"`
	CreatedAt  time.Time `json:"-"`
	UpdatedAt  time.Time `json:"-"`

	Category *Category `json:"category,omitempty" gorm:"foreignKey:CategoryID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL"`
}

// TableName returns the database table name for Item.
func (Item) TableName() string { return "items" }

// Input strips the read-side join and identity, leaving the writable fields.
func (it Item) Input() ItemInput {
	in := ItemInput{Code: it.Code, Name: it.Name, Price: it.Price}
	if it.CategoryID != nil {
		id := *it.CategoryID
		in.CategoryID = &id
	}
	return in
}

// ItemInput is the write payload for items.
type ItemInput struct {
	Code       string `json:"code"`
	Name       string `json:"name"`
	Price      int64  `json:"price"`
	CategoryID *int64 `json:"category_id"`
}

// TableFilter is an equality predicate on one table field. Zero values are
// ignored.
type TableFilter struct {
	Date string `json:"date,omitempty"`
	Code int    `json:"code,omitempty"`
}
