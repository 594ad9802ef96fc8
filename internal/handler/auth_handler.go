package handler

import (
	"github.com/gofiber/fiber/v2"

	"github.com/justic/shortsgen/internal/auth"
	"github.com/justic/shortsgen/internal/middleware"
)

// AuthHandler answers the gateway's ForwardAuth subrequests.
type AuthHandler struct {
	authn *auth.Authenticator
}

func NewAuthHandler(authn *auth.Authenticator) *AuthHandler {
	return &AuthHandler{authn: authn}
}

// Verify handles GET /auth/verify. 200 carries the caller in X-User-* headers
// for the gateway to forward; anything else is a bare 401.
func (h *AuthHandler) Verify(c *fiber.Ctx) error {
	id, err := h.authn.Authenticate(c.Get(fiber.HeaderAuthorization))
	if err != nil {
		return c.SendStatus(fiber.StatusUnauthorized)
	}

	c.Set(middleware.HeaderUserID, id.UserID)
	c.Set(middleware.HeaderUserEmail, id.Email)
	if id.Name != "" {
		c.Set(middleware.HeaderUserName, id.Name)
	}
	return c.SendStatus(fiber.StatusOK)
}
