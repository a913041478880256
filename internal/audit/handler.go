package audit

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// GET /api/audit-logs?entity_type=product&entity_id=1&user_name=ann&limit=50
func ListAuditLogsHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		f := Filter{
			EntityType: c.Query("entity_type"),
			UserName:   c.Query("user_name"),
			Limit:      200,
		}

		if s := c.Query("entity_id"); s != "" {
			id, err := strconv.ParseUint(s, 10, 64)
			if err != nil || id == 0 {
				return fiber.NewError(fiber.StatusBadRequest, "Invalid entity_id")
			}
			f.EntityID = uint(id)
		}
		if s := c.Query("limit"); s != "" {
			n, err := strconv.Atoi(s)
			if err != nil || n <= 0 {
				return fiber.NewError(fiber.StatusBadRequest, "Invalid limit")
			}
			f.Limit = n
		}

		logs, err := List(c.UserContext(), db, f)
		if err != nil {
			zap.S().Errorw("audit list failed", "error", err)
			return fiber.NewError(fiber.StatusInternalServerError, "Audit logs could not be listed")
		}
		return c.JSON(logs)
	}
}
