package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveConversion("lead", nil)
		m.ObserveTransition("lead", "won")
	})
}

func TestObserveConversion(t *testing.T) {
	m := New()
	m.ObserveConversion("quote", nil)
	m.ObserveConversion("quote", errors.New("boom"))
	m.ObserveConversion("quote", errors.New("boom"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.conversions.WithLabelValues("quote", OutcomeSuccess)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.conversions.WithLabelValues("quote", OutcomeFailure)))
}

func TestMiddlewareAndHandler(t *testing.T) {
	m := New()
	app := fiber.New()
	app.Use(m.Middleware())
	app.Get("/api/leads/:id", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })
	app.Get("/metrics", adaptor.HTTPHandler(m.Handler()))

	_, err := app.Test(httptest.NewRequest("GET", "/api/leads/7", nil))
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("GET", "/api/leads/:id", "200")))

	resp, err := app.Test(httptest.NewRequest("GET", "/metrics", nil))
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	assert.True(t, strings.Contains(string(body), MetricHTTPRequestsTotal))
}
