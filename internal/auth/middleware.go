package auth

import (
	"strings"

	"bakery-inventory/internal/config"

	"github.com/gofiber/fiber/v2"
)

const (
	CtxUserIDKey   = "user_id"
	CtxUserNameKey = "user_name"
)

// JWTMiddleware identifies the caller from an optional bearer token. Requests
// without an Authorization header pass through anonymously; a malformed or
// expired token is always rejected.
func JWTMiddleware(cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get(fiber.HeaderAuthorization)
		if authHeader == "" || !cfg.AuthEnabled() {
			return c.Next()
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			return fiber.NewError(fiber.StatusUnauthorized, "Authorization header must be 'Bearer <token>'")
		}

		claims, err := ParseToken(cfg.JWTSecret, parts[1])
		if err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "Invalid or expired token")
		}

		c.Locals(CtxUserIDKey, claims.UserID)
		c.Locals(CtxUserNameKey, claims.Name)
		return c.Next()
	}
}

// RequireUser guards mutating routes when AUTH_REQUIRED is set.
func RequireUser(cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if cfg.AuthRequired {
			if _, ok := c.Locals(CtxUserIDKey).(uint); !ok {
				return fiber.NewError(fiber.StatusUnauthorized, "Authentication required")
			}
		}
		return c.Next()
	}
}

// Actor returns the name of the authenticated caller or "" when anonymous.
func Actor(c *fiber.Ctx) string {
	name, _ := c.Locals(CtxUserNameKey).(string)
	return name
}
