// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Table model.
//
// Functions follow the "thin repository" approach: no business rules, only
// persistence and query composition. Missing rows surface as ErrNotFound.
package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/tbourn/go-restaurant-backend/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

func tableQuery(ctx context.Context, db *gorm.DB, f domain.TableFilter) *gorm.DB {
	q := db.WithContext(ctx).Model(&domain.Table{})
	if f.Date != "" {
		q = q.Where("date = ?", f.Date)
	}
	if f.Code != 0 {
		q = q.Where("code = ?", f.Code)
	}
	return q
}

// ListTables returns tables matching f in insertion order. An empty filter
// returns every table.
func ListTables(ctx context.Context, db *gorm.DB, f domain.TableFilter) ([]domain.Table, error) {
	out := []domain.Table{}
	err := tableQuery(ctx, db, f).Order("id asc").Find(&out).Error
	return out, err
}

// GetTableByCode returns the first table with the given code, or ErrNotFound.
func GetTableByCode(ctx context.Context, db *gorm.DB, code int) (*domain.Table, error) {
	var t domain.Table
	if err := tableQuery(ctx, db, domain.TableFilter{Code: code}).Order("id asc").First(&t).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

// GetTable fetches a table by primary key.
func GetTable(ctx context.Context, db *gorm.DB, id int64) (*domain.Table, error) {
	var t domain.Table
	if err := db.WithContext(ctx).First(&t, id).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

// CreateTable inserts a table row.
func CreateTable(ctx context.Context, db *gorm.DB, code int, date string) (*domain.Table, error) {
	t := &domain.Table{Code: code, Date: date}
	if err := db.WithContext(ctx).Create(t).Error; err != nil {
		return nil, err
	}
	return t, nil
}

// DeleteTablesByCode removes every table with the given code and returns the
// rows it deleted. Deleting nothing is not an error.
func DeleteTablesByCode(ctx context.Context, db *gorm.DB, code int) ([]domain.Table, error) {
	var gone []domain.Table
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tableQuery(ctx, tx, domain.TableFilter{Code: code}).Find(&gone).Error; err != nil {
			return err
		}
		if len(gone) == 0 {
			return nil
		}
		return tx.Where("code = ?", code).Delete(&domain.Table{}).Error
	})
	if err != nil {
		return nil, err
	}
	return gone, nil
}
