package inventory

import (
	"time"

	"bakery-inventory/internal/auth"
	"bakery-inventory/internal/forecast"
	"bakery-inventory/internal/ledger"
	"bakery-inventory/internal/models"

	"github.com/gofiber/fiber/v2"
)

const productNotFound = "Product not found"

type CreateProductRequest struct {
	Barcode     string `json:"barcode" validate:"required"`
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
	Category    string `json:"category" validate:"required"`
	Quantity    *int   `json:"quantity" validate:"omitempty,min=0"`
	MinQuantity *int   `json:"minQuantity" validate:"omitempty,min=1"`
	ExpiryDate  string `json:"expiryDate" validate:"required,datetime=2006-01-02"`
	ImageURL    string `json:"imageUrl"`
}

type UpdateQuantityRequest struct {
	Quantity *int   `json:"quantity" validate:"required,min=0"`
	Reason   string `json:"reason" validate:"required"`
}

type BatchUpdateItem struct {
	ID       uint   `json:"id" validate:"required"`
	Quantity *int   `json:"quantity" validate:"required,min=0"`
	Reason   string `json:"reason" validate:"required"`
}

// GET /api/products
func ListProductsHandler(store *ledger.Store) fiber.Handler {
	return func(c *fiber.Ctx) error {
		products, err := store.Products(c.UserContext())
		if err != nil {
			return err
		}
		return c.JSON(products)
	}
}

// GET /api/products/:id
func GetProductHandler(store *ledger.Store) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := paramID(c, "Product")
		if err != nil {
			return err
		}
		p, err := store.Product(c.UserContext(), id)
		if err != nil {
			return storeError(c, err, "", productNotFound)
		}
		return c.JSON(p)
	}
}

// GET /api/products/barcode/:barcode
// Exact match only.
func GetProductByBarcodeHandler(store *ledger.Store) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, err := store.ProductByBarcode(c.UserContext(), c.Params("barcode"))
		if err != nil {
			return storeError(c, err, "", productNotFound)
		}
		return c.JSON(p)
	}
}

// GET /api/products/:id/history
// Unknown products have an empty history rather than a 404.
func ProductHistoryHandler(store *ledger.Store) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := paramID(c, "Product")
		if err != nil {
			return c.JSON([]models.QuantityHistory{})
		}
		entries, err := store.QuantityHistory(c.UserContext(), id)
		if err != nil {
			return err
		}
		if entries == nil {
			entries = []models.QuantityHistory{}
		}
		return c.JSON(entries)
	}
}

// POST /api/products
func CreateProductHandler(store *ledger.Store) fiber.Handler {
	return func(c *fiber.Ctx) error {
		const msg = "Invalid product data"

		var body CreateProductRequest
		if err := c.BodyParser(&body); err != nil {
			return invalid(c, msg, nil)
		}
		if errs := check(body); errs != nil {
			return invalid(c, msg, errs)
		}

		expiry, err := models.ParseDate(body.ExpiryDate)
		if err != nil {
			return invalid(c, msg, FieldErrors{"expiryDate": "must be a date in YYYY-MM-DD format"})
		}

		p := models.Product{
			Barcode:     body.Barcode,
			Name:        body.Name,
			Description: body.Description,
			Category:    body.Category,
			MinQuantity: 10,
			ExpiryDate:  expiry,
			ImageURL:    body.ImageURL,
		}
		if body.Quantity != nil {
			p.Quantity = *body.Quantity
		}
		if body.MinQuantity != nil {
			p.MinQuantity = *body.MinQuantity
		}

		created, err := store.CreateProduct(c.UserContext(), p, auth.Actor(c))
		if err != nil {
			return storeError(c, err, msg, productNotFound)
		}
		return c.Status(fiber.StatusCreated).JSON(created)
	}
}

// PATCH /api/products/:id/quantity
func UpdateQuantityHandler(store *ledger.Store) fiber.Handler {
	return func(c *fiber.Ctx) error {
		const msg = "Invalid quantity update"

		id, err := paramID(c, "Product")
		if err != nil {
			return err
		}

		var body UpdateQuantityRequest
		if err := c.BodyParser(&body); err != nil {
			return invalid(c, msg, nil)
		}
		if errs := check(body); errs != nil {
			return invalid(c, msg, errs)
		}

		p, err := store.UpdateQuantity(c.UserContext(), id, *body.Quantity, body.Reason, auth.Actor(c))
		if err != nil {
			return storeError(c, err, msg, productNotFound)
		}
		return c.JSON(p)
	}
}

// POST /api/products/batch-update
// The body is a JSON array. A missing product rejects the whole batch and the
// message names its id.
func BatchUpdateHandler(store *ledger.Store) fiber.Handler {
	return func(c *fiber.Ctx) error {
		const msg = "Invalid batch update data"

		var body []BatchUpdateItem
		if err := c.BodyParser(&body); err != nil {
			return invalid(c, msg, nil)
		}
		if len(body) == 0 {
			return invalid(c, msg, FieldErrors{"updates": "must contain at least 1 item(s)"})
		}
		if errs := checkSlice(body); errs != nil {
			return invalid(c, msg, errs)
		}

		items := make([]ledger.BatchItem, len(body))
		for i, it := range body {
			items[i] = ledger.BatchItem{ID: it.ID, Quantity: *it.Quantity, Reason: it.Reason}
		}

		products, err := store.BatchUpdateQuantity(c.UserContext(), items, auth.Actor(c))
		if err != nil {
			return storeError(c, err, msg, "")
		}
		return c.JSON(products)
	}
}

// GET /api/products/alerts
func AlertsHandler(store *ledger.Store, now func() time.Time) fiber.Handler {
	return func(c *fiber.Ctx) error {
		products, err := store.Products(c.UserContext())
		if err != nil {
			return err
		}
		return c.JSON(BuildAlerts(products, now()))
	}
}

// GET /api/products/:id/forecast
func ForecastHandler(store *ledger.Store, now func() time.Time) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := paramID(c, "Product")
		if err != nil {
			return err
		}
		p, err := store.Product(c.UserContext(), id)
		if err != nil {
			return storeError(c, err, "", productNotFound)
		}
		history, err := store.QuantityHistory(c.UserContext(), id)
		if err != nil {
			return err
		}
		return c.JSON(forecast.Estimate(p, history, now()))
	}
}
