package services

import (
	"context"
	"fmt"
	"sync"
	"testing"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-restaurant-backend/internal/domain"
	"github.com/tbourn/go-restaurant-backend/internal/realtime"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:svc_%s?mode=memory&cache=shared", uuid.NewString())

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, _ := db.DB()
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := db.AutoMigrate(&domain.Category{}, &domain.Item{}, &domain.Table{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

// recorder captures published events.
type recorder struct {
	mu     sync.Mutex
	events []realtime.Event
	err    error
}

func (r *recorder) Publish(_ context.Context, ev realtime.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return r.err
}

func (r *recorder) types() []realtime.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]realtime.EventType, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}

func seedCategories(t *testing.T, db *gorm.DB) (food, drink domain.Category) {
	t.Helper()
	food = domain.Category{Name: "Food", Code: "food"}
	drink = domain.Category{Name: "Drink", Code: "drink"}
	if err := db.Create(&food).Error; err != nil {
		t.Fatalf("seed food: %v", err)
	}
	if err := db.Create(&drink).Error; err != nil {
		t.Fatalf("seed drink: %v", err)
	}
	return food, drink
}
