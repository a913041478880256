// Package server assembles the fiber application: middleware, error
// rendering and routes.
package server

import (
	"errors"
	"strings"
	"time"

	"bakery-inventory/internal/audit"
	"bakery-inventory/internal/auth"
	"bakery-inventory/internal/config"
	"bakery-inventory/internal/inventory"
	"bakery-inventory/internal/ledger"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Deps struct {
	Config *config.Config
	DB     *gorm.DB
	Store  *ledger.Store
	// Gatherer backs GET /metrics. Nil disables the endpoint.
	Gatherer prometheus.Gatherer
	Now      func() time.Time
}

func New(d Deps) *fiber.App {
	if d.Now == nil {
		d.Now = func() time.Time { return time.Now().UTC() }
	}

	app := fiber.New(fiber.Config{
		AppName:      "bakery-inventory",
		ErrorHandler: ErrorHandler,
	})

	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(requestLogger())

	corsOrigins := strings.Split(d.Config.CORSOrigins, ",")
	for i := range corsOrigins {
		corsOrigins[i] = strings.TrimSpace(corsOrigins[i])
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(corsOrigins, ","),
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET,POST,PATCH,OPTIONS",
	}))

	app.Get("/healthz", func(c *fiber.Ctx) error {
		sqlDB, err := d.DB.DB()
		if err == nil {
			err = sqlDB.PingContext(c.UserContext())
		}
		if err != nil {
			zap.S().Warnw("health check failed", "error", err)
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "unavailable"})
		}
		return c.JSON(fiber.Map{"status": "ok"})
	})
	if d.Gatherer != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	}

	api := app.Group("/api")
	api.Use(auth.JWTMiddleware(d.Config))
	write := auth.RequireUser(d.Config)

	// Operator accounts
	api.Post("/auth/register", auth.RegisterHandler(d.DB, d.Config))
	api.Post("/auth/login", auth.LoginHandler(d.DB, d.Config))
	api.Get("/auth/me", auth.MeHandler(d.DB))

	// Products. Static paths go before /:id.
	api.Get("/products", inventory.ListProductsHandler(d.Store))
	api.Get("/products/alerts", inventory.AlertsHandler(d.Store, d.Now))
	api.Get("/products/export", inventory.ExportStockSheetHandler(d.Store))
	api.Post("/products/stock-count", write, inventory.StockCountHandler(d.Store))
	api.Get("/products/barcode/:barcode", inventory.GetProductByBarcodeHandler(d.Store))
	api.Post("/products", write, inventory.CreateProductHandler(d.Store))
	api.Post("/products/batch-update", write, inventory.BatchUpdateHandler(d.Store))
	api.Get("/products/:id", inventory.GetProductHandler(d.Store))
	api.Get("/products/:id/history", inventory.ProductHistoryHandler(d.Store))
	api.Get("/products/:id/forecast", inventory.ForecastHandler(d.Store, d.Now))
	api.Patch("/products/:id/quantity", write, inventory.UpdateQuantityHandler(d.Store))

	// Recipes
	api.Get("/recipes", inventory.ListRecipesHandler(d.Store))
	api.Post("/recipes", write, inventory.CreateRecipeHandler(d.Store))
	api.Get("/recipes/:id", inventory.GetRecipeHandler(d.Store))
	api.Get("/recipes/:id/projection", inventory.RecipeProjectionHandler(d.Store))

	api.Get("/audit-logs", audit.ListAuditLogsHandler(d.DB))

	return app
}

// ErrorHandler renders every error as {"message": ...}. Anything that is not
// a *fiber.Error is logged and hidden behind a 500.
func ErrorHandler(c *fiber.Ctx, err error) error {
	var e *fiber.Error
	if errors.As(err, &e) {
		return c.Status(e.Code).JSON(fiber.Map{"message": e.Message})
	}

	if errors.Is(err, ledger.ErrConflict) {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"message": "Product was modified concurrently, retry the update"})
	}

	zap.S().Errorw("unexpected error",
		"method", c.Method(),
		"path", c.Path(),
		"requestId", c.GetRespHeader(fiber.HeaderXRequestID),
		"error", err,
	)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "Internal server error"})
}

func requestLogger() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		if err != nil {
			if herr := c.App().ErrorHandler(c, err); herr != nil {
				_ = c.SendStatus(fiber.StatusInternalServerError)
			}
		}
		zap.L().Info("request",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", c.Response().StatusCode()),
			zap.Duration("latency", time.Since(start)),
			zap.String("requestId", c.GetRespHeader(fiber.HeaderXRequestID)),
		)
		return nil
	}
}
