package middleware

import (
	"strings"

	"fixmystuff/internal/auth"

	"github.com/gofiber/fiber/v2"
)

// Locals keys set by the auth middleware.
const (
	LocalUserID = "userID"
	LocalClaims = "claims"
)

// bearerToken extracts "<token>" from an "Authorization: Bearer <token>" header.
func bearerToken(c *fiber.Ctx) (string, string) {
	header := c.Get(fiber.HeaderAuthorization)
	if header == "" {
		return "", "Authorization header required"
	}
	parts := strings.Split(header, " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", "Invalid authorization header format"
	}
	return parts[1], ""
}

// AuthRequired enforces a valid, unrevoked access token on protected routes.
func AuthRequired(tm *auth.TokenManager, revoker *auth.Revoker) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, problem := bearerToken(c)
		if problem != "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": problem})
		}

		claims, err := tm.Parse(token, auth.TokenAccess)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid or expired token",
			})
		}
		if revoker.IsRevoked(c.UserContext(), claims.ID) {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Token has been revoked",
			})
		}

		setIdentity(c, claims)
		return c.Next()
	}
}

// OptionalAuth attaches the caller's identity when a valid access token is
// present and lets anonymous requests through untouched.
func OptionalAuth(tm *auth.TokenManager, revoker *auth.Revoker) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, problem := bearerToken(c)
		if problem != "" {
			return c.Next()
		}
		claims, err := tm.Parse(token, auth.TokenAccess)
		if err == nil && !revoker.IsRevoked(c.UserContext(), claims.ID) {
			setIdentity(c, claims)
		}
		return c.Next()
	}
}

func setIdentity(c *fiber.Ctx, claims *auth.Claims) {
	c.Locals(LocalUserID, claims.UserID)
	c.Locals(LocalClaims, claims)
	c.SetUserContext(WithUserID(c.UserContext(), claims.UserID))
}

// ClaimsFrom returns the verified claims stored by AuthRequired.
func ClaimsFrom(c *fiber.Ctx) (*auth.Claims, bool) {
	claims, ok := c.Locals(LocalClaims).(*auth.Claims)
	return claims, ok
}
