// Package middleware provides authentication, logging, and rate limiting for
// the HTTP surface.
package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

var jwtSecret []byte

// InitAuth sets the secret used to validate bearer tokens issued by the
// platform bridge.
func InitAuth(secret string) {
	jwtSecret = []byte(secret)
}

// AuthRequired enforces a valid bearer token and stores the actor identity in
// c.Locals("actorID") plus their roles in c.Locals("roles").
func AuthRequired(c *fiber.Ctx) error {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Authorization header required",
		})
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Invalid authorization header format",
		})
	}

	token, err := jwt.Parse(parts[1], func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fiber.NewError(fiber.StatusUnauthorized, "Invalid signing method")
		}
		return jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Invalid or expired token",
		})
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Invalid token claims",
		})
	}

	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Invalid token structure - missing subject",
		})
	}
	c.Locals("actorID", sub)

	if display, ok := claims["display"].(string); ok {
		c.Locals("actorDisplay", display)
	}

	var roles []string
	if raw, ok := claims["roles"].([]interface{}); ok {
		for _, r := range raw {
			if s, ok := r.(string); ok {
				roles = append(roles, s)
			}
		}
	}
	c.Locals("roles", roles)

	return c.Next()
}

// StaffOnly requires the "staff" role. Must run after AuthRequired.
func StaffOnly(c *fiber.Ctx) error {
	roles, _ := c.Locals("roles").([]string)
	for _, r := range roles {
		if r == "staff" {
			return c.Next()
		}
	}
	return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
		"error": "Staff role required",
	})
}

// HasRole reports whether the authenticated actor carries the given role.
func HasRole(c *fiber.Ctx, role string) bool {
	roles, _ := c.Locals("roles").([]string)
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}

// ActorID returns the authenticated actor identity for the request.
func ActorID(c *fiber.Ctx) string {
	id, _ := c.Locals("actorID").(string)
	return id
}

// ActorDisplay returns the actor's display name, falling back to the id.
func ActorDisplay(c *fiber.Ctx) string {
	if display, ok := c.Locals("actorDisplay").(string); ok && display != "" {
		return display
	}
	return ActorID(c)
}
