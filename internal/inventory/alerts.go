package inventory

import (
	"time"

	"bakery-inventory/internal/models"
)

// ExpiryWarning is how close to its expiry date a product gets flagged.
const ExpiryWarning = 48 * time.Hour

// IsLowStock reports quantity strictly below the minimum.
func IsLowStock(p models.Product) bool {
	return p.Quantity < p.MinQuantity
}

// IsExpiringSoon compares the start of the expiry day (UTC) with now. A
// product exactly ExpiryWarning away is not flagged; expired ones are.
func IsExpiringSoon(p models.Product, now time.Time) bool {
	return p.ExpiryDate.Sub(now) < ExpiryWarning
}

type Alerts struct {
	LowStock     []models.Product `json:"lowStock"`
	ExpiringSoon []models.Product `json:"expiringSoon"`
}

func BuildAlerts(products []models.Product, now time.Time) Alerts {
	a := Alerts{LowStock: []models.Product{}, ExpiringSoon: []models.Product{}}
	for _, p := range products {
		if IsLowStock(p) {
			a.LowStock = append(a.LowStock, p)
		}
		if IsExpiringSoon(p, now) {
			a.ExpiringSoon = append(a.ExpiringSoon, p)
		}
	}
	return a
}
