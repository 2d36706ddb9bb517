package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-restaurant-backend/internal/domain"
)

// ListItems returns items with their Category joined, ordered by id. When
// categoryCode is non-empty only items in that category are returned.
func ListItems(ctx context.Context, db *gorm.DB, categoryCode string) ([]domain.Item, error) {
	out := []domain.Item{}
	q := db.WithContext(ctx).Preload("Category").Order("items.id asc")
	if categoryCode != "" {
		q = q.Joins("JOIN categories ON categories.id = items.category_id").
			Where("categories.code = ?", categoryCode)
	}
	err := q.Find(&out).Error
	return out, err
}

// GetItem fetches a single item (with Category) by id, or ErrNotFound.
func GetItem(ctx context.Context, db *gorm.DB, id int64) (*domain.Item, error) {
	var it domain.Item
	if err := db.WithContext(ctx).Preload("Category").First(&it, id).Error; err != nil {
		return nil, err
	}
	return &it, nil
}

// CreateItem inserts an item. A duplicate business code yields ErrDuplicate.
func CreateItem(ctx context.Context, db *gorm.DB, in domain.ItemInput) (*domain.Item, error) {
	it := &domain.Item{Code: in.Code, Name: in.Name, Price: in.Price, CategoryID: in.CategoryID}
	if err := db.WithContext(ctx).Omit("Category").Create(it).Error; err != nil {
		if IsUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return it, nil
}

// UpdateItem overwrites the writable fields of item id and returns
// ErrDuplicate when the new code clashes. Callers check existence first:
// MySQL reports zero affected rows for no-op updates.
func UpdateItem(ctx context.Context, db *gorm.DB, id int64, in domain.ItemInput) error {
	res := db.WithContext(ctx).
		Model(&domain.Item{}).
		Where("id = ?", id).
		Select("code", "name", "price", "category_id", "updated_at").
		Updates(map[string]any{
			"code":        in.Code,
			"name":        in.Name,
			"price":       in.Price,
			"category_id": in.CategoryID,
			"updated_at":  time.Now(),
		})
	if res.Error != nil {
		if IsUniqueViolation(res.Error) {
			return ErrDuplicate
		}
		return res.Error
	}
	return nil
}

// DeleteItem removes item id. It returns ErrNotFound when nothing was deleted.
func DeleteItem(ctx context.Context, db *gorm.DB, id int64) error {
	res := db.WithContext(ctx).Delete(&domain.Item{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// IsUniqueViolation detects unique-constraint failures across drivers that
// may not map to gorm.ErrDuplicatedKey.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	// SQLite: "UNIQUE constraint failed"; Postgres: "duplicate key value";
	// MySQL: "Duplicate entry".
	low := strings.ToLower(err.Error())
	return strings.Contains(low, "unique constraint") ||
		strings.Contains(low, "constraint failed: unique") ||
		strings.Contains(low, "duplicate key") ||
		strings.Contains(low, "duplicate entry")
}
