// Package services defines the business logic for restaurant tables, menu
// items, and categories. This file centralizes common service-level error
// values so that they can be consistently returned by service methods and
// checked by callers.
//
// Translation into user-facing messages or HTTP status codes is performed at
// the handler layer.
package services

import (
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/tbourn/go-restaurant-backend/internal/repo"
)

// Table-related errors.
var (
	// ErrTableNotFound indicates that no table carries the requested code.
	ErrTableNotFound = errors.New("table not found")

	// ErrInvalidTableCode is returned when a code is outside [1000,9999].
	ErrInvalidTableCode = errors.New("table code must be a 4-digit number")

	// ErrInvalidDate is returned when a date does not match YYYY/MM/DD.
	ErrInvalidDate = errors.New("date must look like YYYY/MM/DD")
)

// Item-related errors.
var (
	// ErrItemNotFound indicates that the requested item does not exist.
	ErrItemNotFound = errors.New("item not found")

	// ErrDuplicateItemCode is returned when another item already uses the code.
	ErrDuplicateItemCode = errors.New("item code already exists")

	// ErrInvalidItem is returned when a required item field is missing or a
	// value is out of range.
	ErrInvalidItem = errors.New("invalid item")

	// ErrCategoryNotFound is returned when category_id names no category.
	ErrCategoryNotFound = errors.New("category not found")
)

// isNotFound treats repo-level not found sentinels as "not found" in a
// driver-agnostic way.
func isNotFound(err error) bool {
	return errors.Is(err, repo.ErrNotFound) || errors.Is(err, gorm.ErrRecordNotFound)
}

// isDuplicate detects unique-constraint violations across drivers that may
// not map to gorm.ErrDuplicatedKey.
func isDuplicate(err error) bool {
	if errors.Is(err, repo.ErrDuplicate) || errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate key")
}
