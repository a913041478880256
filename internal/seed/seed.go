// Package seed loads the sample catalog used for demos and local development.
package seed

import (
	"context"
	"errors"
	"time"

	"bakery-inventory/internal/ledger"
	"bakery-inventory/internal/models"

	"go.uber.org/zap"
)

const actor = "seed"

// Products returns the sample products with expiry dates relative to now.
func Products(now time.Time) []models.Product {
	return []models.Product{
		{
			Barcode:     "123456789",
			Name:        "Sourdough Bread",
			Description: "Artisanal sourdough bread made fresh daily",
			Category:    "Bread",
			Quantity:    15,
			MinQuantity: 10,
			ExpiryDate:  models.DateOf(now.AddDate(0, 0, 2)),
			ImageURL:    "https://images.unsplash.com/photo-1555507036-ab1f4038808a",
		},
		{
			Barcode:     "987654321",
			Name:        "Chocolate Croissant",
			Description: "Buttery croissant filled with dark chocolate",
			Category:    "Pastries",
			Quantity:    8,
			MinQuantity: 15,
			ExpiryDate:  models.DateOf(now.AddDate(0, 0, 1)),
			ImageURL:    "https://images.unsplash.com/photo-1523294587484-bae6cc870010",
		},
	}
}

// Run creates the sample products that are not present yet and returns how
// many were created. Running it twice is harmless.
func Run(ctx context.Context, store *ledger.Store, now time.Time) (int, error) {
	created := 0
	for _, p := range Products(now) {
		_, err := store.CreateProduct(ctx, p, actor)
		if errors.Is(err, ledger.ErrDuplicateBarcode) {
			zap.S().Debugw("sample product already present", "barcode", p.Barcode)
			continue
		}
		if err != nil {
			return created, err
		}
		created++
	}
	zap.S().Infow("sample data loaded", "created", created)
	return created, nil
}
