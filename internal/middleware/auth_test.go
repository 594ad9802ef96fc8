package middleware

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justic/shortsgen/internal/auth"
)

const testSecret = "middleware-secret"

func whoami(c *fiber.Ctx) error {
	return c.SendString(GetUserID(c))
}

func call(t *testing.T, app *fiber.App, headers map[string]string) (int, string) {
	t.Helper()
	req := httptest.NewRequest("GET", "/me", nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestAuthMiddleware(t *testing.T) {
	authn := auth.NewAuthenticator(nil, testSecret)
	app := fiber.New()
	app.Get("/me", NewAuthMiddleware(authn, zerolog.Nop()).Authenticate(), whoami)

	token, err := auth.IssueLegacyToken("user-9", "u9@example.com", testSecret, time.Hour)
	require.NoError(t, err)

	status, body := call(t, app, map[string]string{"Authorization": "Bearer " + token})
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "user-9", body)

	status, _ = call(t, app, nil)
	assert.Equal(t, fiber.StatusUnauthorized, status)

	status, _ = call(t, app, map[string]string{"Authorization": "Bearer nope"})
	assert.Equal(t, fiber.StatusUnauthorized, status)
}

func TestGatewayAuthMiddleware(t *testing.T) {
	app := fiber.New()
	app.Get("/me", GatewayAuthMiddleware(), whoami)

	status, body := call(t, app, map[string]string{HeaderUserID: "gw-user"})
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "gw-user", body)

	status, _ = call(t, app, nil)
	assert.Equal(t, fiber.StatusUnauthorized, status)
}
