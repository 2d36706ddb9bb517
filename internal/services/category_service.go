package services

import (
	"context"

	"go.opentelemetry.io/otel"
	"gorm.io/gorm"

	"github.com/tbourn/go-restaurant-backend/internal/domain"
	"github.com/tbourn/go-restaurant-backend/internal/repo"
)

// CategoryService exposes the read-only category list.
type CategoryService struct {
	DB *gorm.DB
}

// NewCategoryService constructs a CategoryService.
func NewCategoryService(db *gorm.DB) *CategoryService { return &CategoryService{DB: db} }

// List returns every category.
func (s *CategoryService) List(ctx context.Context) ([]domain.Category, error) {
	ctx, span := otel.Tracer("services/CategoryService").Start(ctx, "List")
	defer span.End()
	return repo.ListCategories(ctx, s.DB)
}
