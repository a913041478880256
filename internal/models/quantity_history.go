package models

import "time"

// QuantityHistory is one append-only ledger row. Quantity is the stock level
// after the change, ChangeAmount the signed delta that produced it.
type QuantityHistory struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	ProductID    uint      `gorm:"not null;index" json:"productId"`
	Quantity     int       `gorm:"not null" json:"quantity"`
	ChangeAmount int       `gorm:"not null" json:"changeAmount"`
	Timestamp    time.Time `gorm:"not null;index" json:"timestamp"`
	Reason       string    `gorm:"type:text;not null" json:"reason"`
	BatchID      string    `gorm:"size:36;index" json:"batchId,omitempty"`
	ChangedBy    string    `gorm:"size:100" json:"changedBy,omitempty"`
}

func (QuantityHistory) TableName() string { return "quantity_history" }
