package domain

import (
	"time"

	"gorm.io/datatypes"
)

// Idempotency records the outcome of a previously processed write, keyed
// by (scope, key). Scope is the route that produced the response (for
// example "POST /api/v1/ingest"), so the same client key may be reused on
// different endpoints. Response holds the JSON body that is replayed.
type Idempotency struct {
	ID        string         `gorm:"type:TEXT NOT NULL;primaryKey"`
	Scope     string         `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_scope_key,priority:1"`
	Key       string         `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_scope_key,priority:2"`
	Status    int            `gorm:"type:INTEGER NOT NULL"`
	Response  datatypes.JSON `gorm:"not null"`
	CreatedAt time.Time      `gorm:"not null;autoCreateTime"`
	ExpiresAt time.Time      `gorm:"not null;index"`
}

// TableName implements the GORM tabler interface.
func (Idempotency) TableName() string { return "idempotency" }
