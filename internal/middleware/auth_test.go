package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"fixmystuff/internal/auth"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key-12345678901234567890123456789012"

func TestAuthRequired(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	tm := auth.NewTokenManager(testSecret)
	revoker := auth.NewRevoker(rdb)

	app := fiber.New()
	app.Get("/test", AuthRequired(tm, revoker), func(c *fiber.Ctx) error {
		userID := c.Locals("userID")
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"userID": userID})
	})

	valid, _, err := tm.Issue(123, "fixer", auth.TokenAccess)
	require.NoError(t, err)
	refresh, _, err := tm.Issue(123, "fixer", auth.TokenRefresh)
	require.NoError(t, err)
	expired, _, err := auth.NewTokenManager(testSecret).
		WithClock(func() time.Time { return time.Now().Add(-8 * 24 * time.Hour) }).
		Issue(123, "fixer", auth.TokenAccess)
	require.NoError(t, err)
	revoked, revokedClaims, err := tm.Issue(123, "fixer", auth.TokenAccess)
	require.NoError(t, err)
	require.NoError(t, revoker.Revoke(context.Background(), revokedClaims.ID, revokedClaims.ExpiresAt))

	tests := []struct {
		name           string
		authHeader     string
		expectedStatus int
		expectedUserID uint
	}{
		{"Happy Path", "Bearer " + valid, http.StatusOK, 123},
		{"Missing Header", "", http.StatusUnauthorized, 0},
		{"Invalid Format", "Basic dXNlcjpwYXNz", http.StatusUnauthorized, 0},
		{"Malformed Token", "Bearer malformed.token.here", http.StatusUnauthorized, 0},
		{"Expired Token", "Bearer " + expired, http.StatusUnauthorized, 0},
		{"Refresh Token Rejected", "Bearer " + refresh, http.StatusUnauthorized, 0},
		{"Revoked Token", "Bearer " + revoked, http.StatusUnauthorized, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}

			resp, err := app.Test(req)
			require.NoError(t, err)
			defer func() { _ = resp.Body.Close() }()
			assert.Equal(t, tt.expectedStatus, resp.StatusCode)

			if tt.expectedStatus == http.StatusOK {
				var body map[string]any
				require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
				assert.Equal(t, float64(tt.expectedUserID), body["userID"])
			}
		})
	}
}

func TestOptionalAuth(t *testing.T) {
	tm := auth.NewTokenManager(testSecret)
	app := fiber.New()
	app.Get("/maybe", OptionalAuth(tm, nil), func(c *fiber.Ctx) error {
		if uid, ok := c.Locals("userID").(uint); ok {
			return c.JSON(fiber.Map{"userID": uid})
		}
		return c.JSON(fiber.Map{"userID": nil})
	})

	token, _, err := tm.Issue(7, "fixer", auth.TokenAccess)
	require.NoError(t, err)

	for name, header := range map[string]string{"anonymous": "", "garbage": "Bearer nope", "signed in": "Bearer " + token} {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/maybe", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			defer func() { _ = resp.Body.Close() }()
			assert.Equal(t, http.StatusOK, resp.StatusCode)

			var body map[string]any
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			if name == "signed in" {
				assert.Equal(t, float64(7), body["userID"])
			} else {
				assert.Nil(t, body["userID"])
			}
		})
	}
}
