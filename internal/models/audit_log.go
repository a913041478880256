package models

import "time"

type AuditAction string

const (
	AuditActionCreate AuditAction = "create"
)

// AuditLog records catalog events (product and recipe creation). Quantity
// changes are tracked in QuantityHistory instead.
type AuditLog struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"createdAt"`

	UserName string `gorm:"size:100" json:"userName"`

	// "product" or "recipe"
	EntityType string `gorm:"size:50;index" json:"entityType"`
	EntityID   uint   `gorm:"index" json:"entityId"`

	Action      AuditAction `gorm:"size:20" json:"action"`
	Description string      `gorm:"size:255" json:"description"`

	// Snapshot of the entity after the action, as JSON.
	AfterData string `gorm:"type:text" json:"afterData"`
}
