package models

import "time"

type Product struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Barcode     string    `gorm:"size:64;not null;uniqueIndex" json:"barcode"`
	Name        string    `gorm:"size:200;not null" json:"name"`
	Description string    `gorm:"type:text;not null" json:"description"`
	Category    string    `gorm:"size:100;not null;index" json:"category"`
	Quantity    int       `gorm:"not null;default:0" json:"quantity"`
	MinQuantity int       `gorm:"not null;default:10" json:"minQuantity"`
	ExpiryDate  Date      `gorm:"not null" json:"expiryDate"`
	ImageURL    string    `gorm:"type:text;not null" json:"imageUrl"`
	LastUpdated time.Time `gorm:"not null" json:"lastUpdated"`

	// Version is bumped on every quantity mutation and guards the update
	// against concurrent writers.
	Version int `gorm:"not null;default:1" json:"version"`
}
