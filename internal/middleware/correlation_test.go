package middleware

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func correlationApp() *fiber.App {
	app := fiber.New()
	app.Use(CorrelationID())
	app.Get("/", func(c *fiber.Ctx) error {
		return c.SendString(CorrelationIDFrom(c.UserContext()) + "|" + GetCorrelationID(c))
	})
	return app
}

func TestCorrelationIDKeepsValidClientID(t *testing.T) {
	app := correlationApp()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(CorrelationHeader, "login-7f3a.2")
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, "login-7f3a.2", resp.Header.Get(CorrelationHeader))
	require.Equal(t, "login-7f3a.2|login-7f3a.2", string(body))
}

func TestCorrelationIDReplacesUnsafeClientID(t *testing.T) {
	app := correlationApp()

	for _, incoming := range []string{"", "bad id\ninjected", strings.Repeat("a", maxCorrelationLength+1)} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if incoming != "" {
			req.Header.Set(CorrelationHeader, incoming)
		}
		resp, err := app.Test(req)
		require.NoError(t, err)
		resp.Body.Close()

		id := resp.Header.Get(CorrelationHeader)
		require.NotEqual(t, incoming, id)
		_, err = uuid.Parse(id)
		require.NoError(t, err)
	}
}

func TestWithCorrelationIDIgnoresBlank(t *testing.T) {
	ctx := WithCorrelationID(context.Background(), "")
	require.Empty(t, CorrelationIDFrom(ctx))
	require.Equal(t, "abc", CorrelationIDFrom(WithCorrelationID(ctx, "abc")))
}
