package domain

import "time"

// Idempotency records the outcome of a create request keyed by
// (client_id, scope, key), so a retried POST returns the original resource
// instead of inserting it twice.
type Idempotency struct {
	ID         string    `gorm:"type:varchar(36);primaryKey"`
	ClientID   string    `gorm:"type:varchar(64);not null;uniqueIndex:ux_client_scope_key,priority:1"`
	Scope      string    `gorm:"type:varchar(32);not null;uniqueIndex:ux_client_scope_key,priority:2"`
	Key        string    `gorm:"type:varchar(128);not null;uniqueIndex:ux_client_scope_key,priority:3"`
	ResourceID int64     `gorm:"not null"`
	Status     int       `gorm:"not null"`
	CreatedAt  time.Time `gorm:"not null;autoCreateTime"`
	ExpiresAt  time.Time `gorm:"not null;index"`
}

// TableName implements the GORM tabler interface.
func (Idempotency) TableName() string { return "idempotency" }
