package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/friendcoin/friendcoin/internal/ledger"
)

func TestObserveOperationLabelsOutcome(t *testing.T) {
	m := New()
	m.ObserveOperation("transfer", nil)
	m.ObserveOperation("transfer", nil)
	m.ObserveOperation("transfer", ledger.ErrInsufficientFunds)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.operations.WithLabelValues("transfer", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.operations.WithLabelValues("transfer", "INSUFFICIENT_FUNDS")))
}

func TestGaugesAndCounters(t *testing.T) {
	m := New()
	m.AddTax(50)
	m.AddTax(0)
	m.SetCirculation(149)
	m.OverdueNotified(2)

	assert.Equal(t, 50.0, testutil.ToFloat64(m.taxDestroyed))
	assert.Equal(t, 149.0, testutil.ToFloat64(m.circulation))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.overdueNotified))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveOperation("loan", nil)
	m.AddTax(1)
	m.SetCirculation(1)
	m.OverdueNotified(1)
}

func TestMiddlewareAndHandler(t *testing.T) {
	m := New()
	app := fiber.New()
	app.Use(m.Middleware())
	app.Get("/metrics", m.Handler())
	app.Get("/accounts/:id", func(c *fiber.Ctx) error { return c.SendString(c.Params("id")) })

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/accounts/alice", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("GET", "/accounts/:id", "200")))

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `http_requests_total{method="GET",route="/accounts/:id",status="200"} 1`)
}
