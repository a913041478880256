package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"bakery-inventory/internal/models"

	"gorm.io/gorm"
)

const (
	EntityProduct = "product"
	EntityRecipe  = "recipe"
)

type LogOptions struct {
	UserName    string
	EntityType  string
	EntityID    uint
	Action      models.AuditAction
	Description string
	After       any
}

// WriteLog appends an audit row using tx, so the row commits or rolls back
// together with the change it describes.
func WriteLog(tx *gorm.DB, opts LogOptions) error {
	afterStr := "null"
	if opts.After != nil {
		b, err := json.Marshal(opts.After)
		if err != nil {
			return fmt.Errorf("encode audit snapshot: %w", err)
		}
		afterStr = string(b)
	}

	log := models.AuditLog{
		UserName:    opts.UserName,
		EntityType:  opts.EntityType,
		EntityID:    opts.EntityID,
		Action:      opts.Action,
		Description: opts.Description,
		AfterData:   afterStr,
	}

	if err := tx.Create(&log).Error; err != nil {
		return fmt.Errorf("write audit log: %w", err)
	}
	return nil
}

type Filter struct {
	EntityType string
	EntityID   uint
	UserName   string
	Limit      int
}

// List returns audit rows newest first.
func List(ctx context.Context, db *gorm.DB, f Filter) ([]models.AuditLog, error) {
	q := db.WithContext(ctx).Model(&models.AuditLog{})
	if f.EntityType != "" {
		q = q.Where("entity_type = ?", f.EntityType)
	}
	if f.EntityID != 0 {
		q = q.Where("entity_id = ?", f.EntityID)
	}
	if f.UserName != "" {
		q = q.Where("user_name = ?", f.UserName)
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}

	var logs []models.AuditLog
	if err := q.Order("created_at DESC, id DESC").Find(&logs).Error; err != nil {
		return nil, fmt.Errorf("list audit logs: %w", err)
	}
	return logs, nil
}
