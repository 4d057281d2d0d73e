package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func signToken(t *testing.T, secret, sub, display string, roles []string) string {
	t.Helper()
	claims := jwt.MapClaims{
		"sub":     sub,
		"display": display,
		"exp":     time.Now().Add(time.Hour).Unix(),
	}
	if roles != nil {
		anyRoles := make([]interface{}, len(roles))
		for i, r := range roles {
			anyRoles[i] = r
		}
		claims["roles"] = anyRoles
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func authApp() *fiber.App {
	InitAuth(testSecret)
	app := fiber.New()
	app.Get("/me", AuthRequired, func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"id":      ActorID(c),
			"display": ActorDisplay(c),
			"staff":   HasRole(c, "staff"),
		})
	})
	app.Get("/staff", AuthRequired, StaffOnly, func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})
	return app
}

func doGet(t *testing.T, app *fiber.App, path, token string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := app.Test(req, 5000)
	require.NoError(t, err)
	return resp
}

func TestAuthRequiredRejectsMissingToken(t *testing.T) {
	app := authApp()
	resp := doGet(t, app, "/me", "")
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestAuthRequiredRejectsWrongSecret(t *testing.T) {
	app := authApp()
	token := signToken(t, "other-secret", "alice", "Alice", nil)
	resp := doGet(t, app, "/me", token)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestAuthRequiredRejectsExpiredToken(t *testing.T) {
	app := authApp()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "alice",
		"exp": time.Now().Add(-time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	resp := doGet(t, app, "/me", signed)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestAuthRequiredAcceptsValidToken(t *testing.T) {
	app := authApp()
	token := signToken(t, testSecret, "alice", "Alice", nil)
	resp := doGet(t, app, "/me", token)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestStaffOnlyRequiresRole(t *testing.T) {
	app := authApp()

	resp := doGet(t, app, "/staff", signToken(t, testSecret, "alice", "Alice", nil))
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	resp = doGet(t, app, "/staff", signToken(t, testSecret, "marta", "Marta", []string{"staff"}))
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}
