package middleware

import (
	"github.com/gofiber/fiber/v2"

	"github.com/justic/shortsgen/internal/auth"
	"github.com/justic/shortsgen/pkg/response"
)

// GatewayAuthMiddleware trusts the X-User-* headers written by the gateway's
// ForwardAuth call to /auth/verify. Only mount it when the API is unreachable
// except through the gateway.
func GatewayAuthMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Get(HeaderUserID)
		if userID == "" {
			return response.Unauthorized(c, "Missing user identity headers")
		}

		setIdentity(c, &auth.Identity{
			UserID: userID,
			Email:  c.Get(HeaderUserEmail),
			Name:   c.Get(HeaderUserName),
		})
		return c.Next()
	}
}

// Identity headers shared between /auth/verify and the gateway middleware.
const (
	HeaderUserID    = "X-User-Id"
	HeaderUserEmail = "X-User-Email"
	HeaderUserName  = "X-User-Name"
)
