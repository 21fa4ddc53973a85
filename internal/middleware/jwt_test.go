package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestJWTProtected(t *testing.T) {
	const secret = "access-secret"
	valid := jwt.MapClaims{"sub": "7", "role": "teacher", "typ": "access", "exp": time.Now().Add(time.Minute).Unix()}
	refresh := jwt.MapClaims{"sub": "7", "role": "teacher", "typ": "refresh", "exp": time.Now().Add(time.Minute).Unix()}
	expired := jwt.MapClaims{"sub": "7", "role": "teacher", "typ": "access", "exp": time.Now().Add(-time.Minute).Unix()}

	app := fiber.New()
	app.Use(JWTProtected(secret))
	app.Get("/me", func(c *fiber.Ctx) error {
		identity := IdentityFromContext(c)
		return c.JSON(fiber.Map{"id": identity.UserID, "role": identity.Role})
	})

	cases := []struct {
		name   string
		header string
		status int
	}{
		{"valid", "Bearer " + signToken(t, secret, valid), fiber.StatusOK},
		{"lowercase scheme", "bearer " + signToken(t, secret, valid), fiber.StatusOK},
		{"refresh token", "Bearer " + signToken(t, secret, refresh), fiber.StatusUnauthorized},
		{"expired", "Bearer " + signToken(t, secret, expired), fiber.StatusUnauthorized},
		{"wrong secret", "Bearer " + signToken(t, "other", valid), fiber.StatusUnauthorized},
		{"missing", "", fiber.StatusUnauthorized},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			require.Equal(t, tc.status, resp.StatusCode)
		})
	}
}
