// Package recipe computes how many batches of a recipe current stock allows.
package recipe

import (
	"math"

	"bakery-inventory/internal/models"
)

// Limit is the batch capacity a single ingredient allows on its own.
type Limit struct {
	ProductID  uint    `json:"productId"`
	Required   float64 `json:"required"`
	Available  int     `json:"available"`
	MaxBatches int     `json:"maxBatches"`
	Missing    bool    `json:"missing"`
}

type Projection struct {
	RecipeID   uint    `json:"recipeId"`
	MaxBatches int     `json:"maxBatches"`
	Unbounded  bool    `json:"unbounded"`
	Limiting   []Limit `json:"limiting"`
}

// MaxBatches returns the number of whole batches the given stock supports.
// A missing product or a non-positive ingredient amount yields 0, and so
// does a recipe without ingredients.
func MaxBatches(r models.Recipe, products []models.Product) int {
	return Project(r, products).MaxBatches
}

// Project is MaxBatches with the per-ingredient breakdown. Limiting keeps the
// recipe's ingredient order.
func Project(r models.Recipe, products []models.Product) Projection {
	proj := Projection{RecipeID: r.ID, Limiting: []Limit{}}
	if len(r.Ingredients) == 0 {
		proj.Unbounded = true
		return proj
	}

	byID := make(map[uint]models.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	best := math.MaxInt
	for _, ing := range r.Ingredients {
		l := Limit{ProductID: ing.ProductID, Required: ing.Quantity}
		p, ok := byID[ing.ProductID]
		switch {
		case !ok:
			l.Missing = true
		case ing.Quantity <= 0:
			l.Available = p.Quantity
		default:
			l.Available = p.Quantity
			l.MaxBatches = int(math.Floor(float64(p.Quantity) / ing.Quantity))
		}
		if l.MaxBatches < best {
			best = l.MaxBatches
		}
		proj.Limiting = append(proj.Limiting, l)
	}
	proj.MaxBatches = best
	return proj
}
