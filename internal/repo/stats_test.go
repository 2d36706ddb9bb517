package repo

import (
	"context"
	"testing"
	"time"

	"github.com/tbourn/go-restaurant-backend/internal/domain"
)

func TestTablesStats(t *testing.T) {
	db := newTestDB(t, &domain.Table{})
	ctx := context.Background()
	f := domain.TableFilter{Date: "2024/01/01"}

	n, maxID, err := TablesStats(ctx, db, f)
	if err != nil || n != 0 || maxID != 0 {
		t.Fatalf("empty stats: n=%d max=%d err=%v", n, maxID, err)
	}

	_, _ = CreateTable(ctx, db, 1111, "2024/01/01")
	b, _ := CreateTable(ctx, db, 2222, "2024/01/01")
	_, _ = CreateTable(ctx, db, 3333, "2024/01/02")

	n, maxID, err = TablesStats(ctx, db, f)
	if err != nil || n != 2 || maxID != b.ID {
		t.Fatalf("stats: n=%d max=%d err=%v (want 2, %d)", n, maxID, err, b.ID)
	}
}

func TestItemsStats(t *testing.T) {
	db, food, _ := newMenuDB(t)
	ctx := context.Background()

	n, last, err := ItemsStats(ctx, db)
	if err != nil || n != 0 || last != nil {
		t.Fatalf("empty stats: n=%d last=%v err=%v", n, last, err)
	}

	it, _ := CreateItem(ctx, db, domain.ItemInput{Code: "A", Name: "Rice", Price: 1, CategoryID: &food.ID})
	n, first, err := ItemsStats(ctx, db)
	if err != nil || n != 1 || first == nil {
		t.Fatalf("stats after insert: n=%d last=%v err=%v", n, first, err)
	}

	time.Sleep(5 * time.Millisecond)
	if err := UpdateItem(ctx, db, it.ID, domain.ItemInput{Code: "A", Name: "Rice+", Price: 2}); err != nil {
		t.Fatalf("UpdateItem: %v", err)
	}
	_, second, err := ItemsStats(ctx, db)
	if err != nil || second == nil || !second.After(*first) {
		t.Fatalf("expected updated_at to advance: first=%v second=%v err=%v", first, second, err)
	}
}
