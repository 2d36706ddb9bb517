// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file contains database bootstrapping helpers for
// SQLite (pure Go driver), MySQL and PostgreSQL, plus schema migrations and
// category seeding.
package repo

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	tracing "gorm.io/plugin/opentelemetry/tracing"

	"github.com/tbourn/go-restaurant-backend/internal/domain"
)

// Open dispatches on driver ("sqlite", "mysql", "postgres"). For sqlite the
// target is a file path, otherwise a DSN. The returned handle has the
// OpenTelemetry tracing plugin installed.
func Open(driver, target string) (*gorm.DB, error) {
	var (
		db  *gorm.DB
		err error
	)
	switch strings.ToLower(driver) {
	case "", "sqlite":
		db, err = OpenSQLite(target)
	case "mysql":
		db, err = gorm.Open(mysql.Open(target), &gorm.Config{TranslateError: true})
	case "postgres", "postgresql":
		db, err = gorm.Open(postgres.Open(target), &gorm.Config{TranslateError: true})
	default:
		return nil, fmt.Errorf("unsupported db driver %q", driver)
	}
	if err != nil {
		return nil, err
	}
	if err := db.Use(tracing.NewPlugin(tracing.WithoutMetrics())); err != nil {
		return nil, err
	}
	configurePool(db)
	return db, nil
}

// OpenSQLite opens (or creates) a SQLite database and applies PRAGMAs.
func OpenSQLite(path string) (*gorm.DB, error) {
	// Fail early if parent directory does not exist (instead of sqlite "out of memory (14)" on Windows).
	if dir := filepath.Dir(path); dir != "." {
		if _, err := os.Stat(dir); err != nil {
			return nil, err
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	// PRAGMAs
	db.Exec("PRAGMA journal_mode=WAL;")
	db.Exec("PRAGMA synchronous=NORMAL;")
	db.Exec("PRAGMA foreign_keys=ON;")
	db.Exec("PRAGMA busy_timeout=5000;")

	configurePool(db)
	return db, nil
}

func configurePool(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(10)
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetConnMaxIdleTime(5 * time.Minute)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}
}

// AutoMigrate creates or updates the schema for all persisted models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.Category{},
		&domain.Item{},
		&domain.Table{},
		&domain.Idempotency{},
	)
}

// SeedCategories inserts the given "code:Name" pairs when the categories
// table is empty. It returns the number of rows inserted.
func SeedCategories(ctx context.Context, db *gorm.DB, pairs []string) (int, error) {
	var n int64
	if err := db.WithContext(ctx).Model(&domain.Category{}).Count(&n).Error; err != nil {
		return 0, err
	}
	if n > 0 || len(pairs) == 0 {
		return 0, nil
	}
	cats := make([]domain.Category, 0, len(pairs))
	for _, p := range pairs {
		code, name, ok := strings.Cut(p, ":")
		code, name = strings.TrimSpace(code), strings.TrimSpace(name)
		if !ok || code == "" || name == "" {
			return 0, fmt.Errorf("bad category seed %q", p)
		}
		cats = append(cats, domain.Category{Code: code, Name: name})
	}
	if err := db.WithContext(ctx).Create(&cats).Error; err != nil {
		return 0, err
	}
	return len(cats), nil
}
