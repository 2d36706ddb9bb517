package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/tbourn/go-restaurant-backend/internal/domain"
)

// ListCategories returns all categories ordered by id.
func ListCategories(ctx context.Context, db *gorm.DB) ([]domain.Category, error) {
	out := []domain.Category{}
	err := db.WithContext(ctx).Order("id asc").Find(&out).Error
	return out, err
}

// CategoryExists reports whether a category with the given id exists.
func CategoryExists(ctx context.Context, db *gorm.DB, id int64) (bool, error) {
	var n int64
	err := db.WithContext(ctx).Model(&domain.Category{}).Where("id = ?", id).Count(&n).Error
	return n > 0, err
}
