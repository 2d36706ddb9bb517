// Package services – TableService
//
// TableService manages the tables opened for each business day. It validates
// codes and dates, resolves "today" and "yesterday" in the configured time
// zone, and publishes a change event after every successful write.
//
// Codes are generated by clients and are not unique in storage; two clients
// adding a table at the same moment may pick the same code.
package services

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-restaurant-backend/internal/domain"
	"github.com/tbourn/go-restaurant-backend/internal/realtime"
	"github.com/tbourn/go-restaurant-backend/internal/repo"
)

const (
	MinTableCode = 1000
	MaxTableCode = 9999
)

// TableService provides table operations.
type TableService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Events receives a change event after each write.
	Events realtime.Publisher
	// Location is the business time zone. Defaults to time.Local.
	Location *time.Location
	// Now is the clock. Defaults to time.Now.
	Now func() time.Time
}

// NewTableService constructs a TableService.
func NewTableService(db *gorm.DB, events realtime.Publisher, loc *time.Location) *TableService {
	if loc == nil {
		loc = time.Local
	}
	return &TableService{DB: db, Events: events, Location: loc, Now: time.Now}
}

func (s *TableService) now() time.Time {
	if s.Now == nil {
		return time.Now().In(s.loc())
	}
	return s.Now().In(s.loc())
}

func (s *TableService) loc() *time.Location {
	if s.Location == nil {
		return time.Local
	}
	return s.Location
}

// Today returns the current business date in domain.DateLayout.
func (s *TableService) Today() string { return s.now().Format(domain.DateLayout) }

// Yesterday returns the previous business date in domain.DateLayout.
func (s *TableService) Yesterday() string {
	return s.now().AddDate(0, 0, -1).Format(domain.DateLayout)
}

// ValidDate reports whether d is a real calendar date in domain.DateLayout.
func ValidDate(d string) bool {
	t, err := time.Parse(domain.DateLayout, d)
	return err == nil && t.Format(domain.DateLayout) == d
}

// ValidTableCode reports whether code is in [MinTableCode, MaxTableCode].
func ValidTableCode(code int) bool { return code >= MinTableCode && code <= MaxTableCode }

func (s *TableService) checkFilter(f domain.TableFilter) error {
	if f.Date != "" && !ValidDate(f.Date) {
		return ErrInvalidDate
	}
	if f.Code != 0 && !ValidTableCode(f.Code) {
		return ErrInvalidTableCode
	}
	return nil
}

// List returns tables matching f.
func (s *TableService) List(ctx context.Context, f domain.TableFilter) ([]domain.Table, error) {
	ctx, span := otel.Tracer("services/TableService").Start(ctx, "List",
		trace.WithAttributes(
			attribute.String("table.date", f.Date),
			attribute.Int("table.code", f.Code),
		),
	)
	defer span.End()

	if err := s.checkFilter(f); err != nil {
		return nil, err
	}
	return repo.ListTables(ctx, s.DB, f)
}

// GetByCode returns the first table carrying code.
func (s *TableService) GetByCode(ctx context.Context, code int) (*domain.Table, error) {
	ctx, span := otel.Tracer("services/TableService").Start(ctx, "GetByCode",
		trace.WithAttributes(attribute.Int("table.code", code)),
	)
	defer span.End()

	if !ValidTableCode(code) {
		return nil, ErrInvalidTableCode
	}
	t, err := repo.GetTableByCode(ctx, s.DB, code)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrTableNotFound
		}
		return nil, err
	}
	return t, nil
}

// Get returns a table by id.
func (s *TableService) Get(ctx context.Context, id int64) (*domain.Table, error) {
	t, err := repo.GetTable(ctx, s.DB, id)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrTableNotFound
		}
		return nil, err
	}
	return t, nil
}

// Create opens a table. An empty date means today.
func (s *TableService) Create(ctx context.Context, code int, date string) (*domain.Table, error) {
	ctx, span := otel.Tracer("services/TableService").Start(ctx, "Create",
		trace.WithAttributes(attribute.Int("table.code", code)),
	)
	defer span.End()

	if !ValidTableCode(code) {
		return nil, ErrInvalidTableCode
	}
	if date == "" {
		date = s.Today()
	}
	if !ValidDate(date) {
		return nil, ErrInvalidDate
	}
	t, err := repo.CreateTable(ctx, s.DB, code, date)
	if err != nil {
		return nil, err
	}
	publish(ctx, s.Events, realtime.Insert, domain.CollectionTables, t)
	return t, nil
}

// DeleteByCode removes every table carrying code and returns how many were
// removed. Removing nothing is not an error and publishes nothing.
func (s *TableService) DeleteByCode(ctx context.Context, code int) (int, error) {
	ctx, span := otel.Tracer("services/TableService").Start(ctx, "DeleteByCode",
		trace.WithAttributes(attribute.Int("table.code", code)),
	)
	defer span.End()

	if !ValidTableCode(code) {
		return 0, ErrInvalidTableCode
	}
	gone, err := repo.DeleteTablesByCode(ctx, s.DB, code)
	if err != nil {
		return 0, err
	}
	for i := range gone {
		publish(ctx, s.Events, realtime.Delete, domain.CollectionTables, &gone[i])
	}
	span.SetAttributes(attribute.Int("table.deleted", len(gone)))
	return len(gone), nil
}

// Stats returns (count, max id) for the filtered list, used for ETags.
func (s *TableService) Stats(ctx context.Context, f domain.TableFilter) (int64, int64, error) {
	return repo.TablesStats(ctx, s.DB, f)
}
