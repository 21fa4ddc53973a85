package observability

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestMetricsHandlerServesRegistry(t *testing.T) {
	SessionAdmissions().WithLabelValues("contended").Inc()

	app := fiber.New()
	app.Get("/metrics", MetricsHandler(zerolog.Nop()))

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), `hms_session_admissions_total{outcome="contended"} 1`)
	require.Contains(t, string(body), "go_goroutines")
}
