// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides small aggregate queries used for
// conditional responses (weak ETags) in the HTTP layer.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-restaurant-backend/internal/domain"
)

// TablesStats returns the number of tables matching f and the highest id
// among them. Tables are never updated, so (count, max id) changes exactly
// when the filtered list does.
func TablesStats(ctx context.Context, db *gorm.DB, f domain.TableFilter) (count int64, maxID int64, err error) {
	q := tableQuery(ctx, db, f)
	if err = q.Count(&count).Error; err != nil {
		return 0, 0, err
	}
	if count == 0 {
		return 0, 0, nil
	}
	var row struct{ ID int64 }
	if err = tableQuery(ctx, db, f).Select("id").Order("id DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, 0, err
	}
	return count, row.ID, nil
}

// ItemsStats returns the total number of items and the latest UpdatedAt.
// maxUpdatedAt is nil when there are no items.
func ItemsStats(ctx context.Context, db *gorm.DB) (count int64, maxUpdatedAt *time.Time, err error) {
	q := db.WithContext(ctx).Model(&domain.Item{})
	if err = q.Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	// Get latest updated_at (avoid MAX() -> TEXT in SQLite)
	var row struct {
		UpdatedAt time.Time
	}
	if err = db.WithContext(ctx).Model(&domain.Item{}).Select("updated_at").Order("updated_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.UpdatedAt, nil
}
