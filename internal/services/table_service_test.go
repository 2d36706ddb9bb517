package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tbourn/go-restaurant-backend/internal/domain"
	"github.com/tbourn/go-restaurant-backend/internal/realtime"
)

func fixedTableService(t *testing.T, ev *recorder) *TableService {
	t.Helper()
	loc := time.FixedZone("ICT", 7*3600)
	svc := NewTableService(newTestDB(t), ev, loc)
	// 2024-03-01 20:30 UTC is already 2024-03-02 in ICT.
	svc.Now = func() time.Time { return time.Date(2024, 3, 1, 20, 30, 0, 0, time.UTC) }
	return svc
}

func TestTableService_TodayYesterday_UseLocation(t *testing.T) {
	svc := fixedTableService(t, &recorder{})
	if got := svc.Today(); got != "2024/03/02" {
		t.Fatalf("Today() = %q; want 2024/03/02", got)
	}
	if got := svc.Yesterday(); got != "2024/03/01" {
		t.Fatalf("Yesterday() = %q; want 2024/03/01", got)
	}
}

func TestValidDateAndCode(t *testing.T) {
	for _, d := range []string{"2024/01/01", "2024/02/29"} {
		if !ValidDate(d) {
			t.Fatalf("ValidDate(%q) = false", d)
		}
	}
	for _, d := range []string{"", "2024-01-01", "2024/1/1", "2023/02/29", "2024/13/01"} {
		if ValidDate(d) {
			t.Fatalf("ValidDate(%q) = true", d)
		}
	}
	if !ValidTableCode(1000) || !ValidTableCode(9999) || ValidTableCode(999) || ValidTableCode(10000) {
		t.Fatalf("ValidTableCode bounds wrong")
	}
}

func TestTableService_Create_DefaultsToTodayAndPublishes(t *testing.T) {
	ev := &recorder{}
	svc := fixedTableService(t, ev)
	ctx := context.Background()

	tbl, err := svc.Create(ctx, 1234, "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if tbl.Date != "2024/03/02" || tbl.Code != 1234 || tbl.ID == 0 {
		t.Fatalf("unexpected table: %+v", tbl)
	}
	if got := ev.types(); len(got) != 1 || got[0] != realtime.Insert {
		t.Fatalf("expected one INSERT event, got %v", got)
	}
	if ev.events[0].Collection != domain.CollectionTables {
		t.Fatalf("wrong collection: %q", ev.events[0].Collection)
	}

	if _, err := svc.Create(ctx, 42, ""); !errors.Is(err, ErrInvalidTableCode) {
		t.Fatalf("expected ErrInvalidTableCode, got %v", err)
	}
	if _, err := svc.Create(ctx, 1234, "2024-03-02"); !errors.Is(err, ErrInvalidDate) {
		t.Fatalf("expected ErrInvalidDate, got %v", err)
	}
	if len(ev.types()) != 1 {
		t.Fatalf("rejected creates must not publish")
	}
}

func TestTableService_Create_PublishFailureDoesNotFailWrite(t *testing.T) {
	ev := &recorder{err: errors.New("broker down")}
	svc := fixedTableService(t, ev)
	if _, err := svc.Create(context.Background(), 2345, "2024/03/02"); err != nil {
		t.Fatalf("Create should succeed even if publish fails: %v", err)
	}
}

func TestTableService_List_FiltersAndValidates(t *testing.T) {
	svc := fixedTableService(t, &recorder{})
	ctx := context.Background()

	_, _ = svc.Create(ctx, 1111, "2024/03/02")
	_, _ = svc.Create(ctx, 2222, "2024/03/01")

	today, err := svc.List(ctx, domain.TableFilter{Date: svc.Today()})
	if err != nil || len(today) != 1 || today[0].Code != 1111 {
		t.Fatalf("today: %+v err=%v", today, err)
	}
	yesterday, err := svc.List(ctx, domain.TableFilter{Date: svc.Yesterday()})
	if err != nil || len(yesterday) != 1 || yesterday[0].Code != 2222 {
		t.Fatalf("yesterday: %+v err=%v", yesterday, err)
	}

	if _, err := svc.List(ctx, domain.TableFilter{Date: "bad"}); !errors.Is(err, ErrInvalidDate) {
		t.Fatalf("expected ErrInvalidDate, got %v", err)
	}
	if _, err := svc.List(ctx, domain.TableFilter{Code: 5}); !errors.Is(err, ErrInvalidTableCode) {
		t.Fatalf("expected ErrInvalidTableCode, got %v", err)
	}
}

func TestTableService_GetByCode(t *testing.T) {
	svc := fixedTableService(t, &recorder{})
	ctx := context.Background()
	created, _ := svc.Create(ctx, 3333, "")

	got, err := svc.GetByCode(ctx, 3333)
	if err != nil || got.ID != created.ID {
		t.Fatalf("GetByCode: %+v err=%v", got, err)
	}
	if _, err := svc.GetByCode(ctx, 4444); !errors.Is(err, ErrTableNotFound) {
		t.Fatalf("expected ErrTableNotFound, got %v", err)
	}
	if _, err := svc.GetByCode(ctx, 1); !errors.Is(err, ErrInvalidTableCode) {
		t.Fatalf("expected ErrInvalidTableCode, got %v", err)
	}
	if _, err := svc.Get(ctx, 999); !errors.Is(err, ErrTableNotFound) {
		t.Fatalf("expected ErrTableNotFound by id, got %v", err)
	}
}

func TestTableService_DeleteByCode(t *testing.T) {
	ev := &recorder{}
	svc := fixedTableService(t, ev)
	ctx := context.Background()

	_, _ = svc.Create(ctx, 7777, "")
	_, _ = svc.Create(ctx, 8888, "")

	n, err := svc.DeleteByCode(ctx, 7777)
	if err != nil || n != 1 {
		t.Fatalf("DeleteByCode: n=%d err=%v", n, err)
	}
	types := ev.types()
	if len(types) != 3 || types[2] != realtime.Delete {
		t.Fatalf("expected trailing DELETE event, got %v", types)
	}

	// Nothing left to delete: no error, no event.
	n, err = svc.DeleteByCode(ctx, 7777)
	if err != nil || n != 0 || len(ev.types()) != 3 {
		t.Fatalf("second delete: n=%d err=%v events=%v", n, err, ev.types())
	}

	if _, err := svc.DeleteByCode(ctx, 77); !errors.Is(err, ErrInvalidTableCode) {
		t.Fatalf("expected ErrInvalidTableCode, got %v", err)
	}

	cnt, maxID, err := svc.Stats(ctx, domain.TableFilter{Date: svc.Today()})
	if err != nil || cnt != 1 || maxID == 0 {
		t.Fatalf("Stats: cnt=%d max=%d err=%v", cnt, maxID, err)
	}
}
