package models

import "gorm.io/datatypes"

type Recipe struct {
	ID           uint                                  `gorm:"primaryKey" json:"id"`
	Name         string                                `gorm:"size:200;not null" json:"name"`
	Description  string                                `gorm:"type:text" json:"description"`
	Yield        int                                   `gorm:"not null" json:"yield"`
	Ingredients  datatypes.JSONSlice[RecipeIngredient] `json:"ingredients"`
	Instructions string                                `gorm:"type:text" json:"instructions"`
}

// RecipeIngredient is the amount of one product needed for a single batch.
// ProductID is not a foreign key; a dangling reference makes the recipe
// infeasible rather than invalid.
type RecipeIngredient struct {
	ProductID uint    `json:"productId"`
	Quantity  float64 `json:"quantity"`
	Unit      string  `json:"unit"`
}
