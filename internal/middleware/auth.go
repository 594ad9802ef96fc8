package middleware

import (
	"errors"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/justic/shortsgen/internal/auth"
	"github.com/justic/shortsgen/pkg/response"
)

const (
	localUserID = "userId"
	localEmail  = "email"
	localName   = "name"
)

// AuthMiddleware rejects requests without a valid bearer token and stores
// the caller's identity in the request locals.
type AuthMiddleware struct {
	authn  *auth.Authenticator
	logger zerolog.Logger
}

func NewAuthMiddleware(authn *auth.Authenticator, logger zerolog.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		authn:  authn,
		logger: logger.With().Str("component", "auth").Logger(),
	}
}

func (m *AuthMiddleware) Authenticate() fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get(fiber.HeaderAuthorization)
		// browsers cannot set headers on a websocket handshake
		if header == "" && websocket.IsWebSocketUpgrade(c) && c.Query("access_token") != "" {
			header = "Bearer " + c.Query("access_token")
		}

		id, err := m.authn.Authenticate(header)
		switch {
		case errors.Is(err, auth.ErrMissingToken):
			return response.Unauthorized(c, "Missing or malformed authorization header")
		case errors.Is(err, auth.ErrNotConfigured):
			m.logger.Error().Msg("no token verifier or jwt secret configured")
			return response.Unauthorized(c, "Authentication not configured")
		case err != nil:
			m.logger.Debug().Err(err).Str("path", c.Path()).Msg("token rejected")
			return response.Unauthorized(c, "Invalid or expired token")
		}

		setIdentity(c, id)
		return c.Next()
	}
}

func setIdentity(c *fiber.Ctx, id *auth.Identity) {
	c.Locals(localUserID, id.UserID)
	c.Locals(localEmail, id.Email)
	c.Locals(localName, id.Name)
}

// GetUserID returns the authenticated caller, or "" on public routes.
func GetUserID(c *fiber.Ctx) string {
	userID, _ := c.Locals(localUserID).(string)
	return userID
}
