package routes

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/friendcoin/friendcoin/internal/apperr"
	"github.com/friendcoin/friendcoin/internal/config"
	"github.com/friendcoin/friendcoin/internal/currency"
	"github.com/friendcoin/friendcoin/internal/ledger"
	"github.com/friendcoin/friendcoin/internal/logging"
	"github.com/friendcoin/friendcoin/internal/metrics"
	"github.com/friendcoin/friendcoin/internal/notification"
)

type apiClient struct {
	t   *testing.T
	app *fiber.App
}

func testConfig() config.Config {
	return config.Config{
		AppName:         "FriendCoin",
		AppEnv:          "test",
		TotalBaseCoins:  1_000,
		TransferTaxRate: decimal.RequireFromString("0.05"),
		LoanTermMonths:  1,
		RatePerMinute:   1_000,
		SessionTTL:      15 * time.Minute,
		IdempotencyTTL:  time.Hour,
	}
}

func newAPI(t *testing.T, store ledger.Store, cache *redis.Client) *apiClient {
	t.Helper()
	logger := logging.Discard()
	app := fiber.New(fiber.Config{ErrorHandler: apperr.Handler(logger)})
	err := Setup(app, Deps{
		Cfg:      testConfig(),
		Cache:    cache,
		Logger:   logger,
		Metrics:  metrics.New(),
		Store:    store,
		Notifier: &notification.Recorder{},
	})
	require.NoError(t, err)
	return &apiClient{t: t, app: app}
}

func (a *apiClient) do(method, path, account string, body any, headers map[string]string) (int, map[string]any) {
	a.t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(a.t, err)
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if account != "" {
		req.Header.Set("X-Account-ID", account)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := a.app.Test(req, -1)
	require.NoError(a.t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(a.t, err)
	out := map[string]any{}
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(a.t, json.Unmarshal(raw, &out))
	}
	return resp.StatusCode, out
}

func formatted(t *testing.T, body map[string]any, field string) string {
	t.Helper()
	view, ok := body[field].(map[string]any)
	require.True(t, ok, "field %s missing in %v", field, body)
	return view["formatted"].(string)
}

func TestTransferFlow(t *testing.T) {
	store := ledger.NewInMemory(1_000)
	api := newAPI(t, store, nil)

	status, _ := api.do(http.MethodPost, "/api/v1/accounts", "alice", nil, nil)
	require.Equal(t, http.StatusCreated, status)
	status, _ = api.do(http.MethodPost, "/api/v1/accounts", "bob", nil, nil)
	require.Equal(t, http.StatusCreated, status)
	ledger.SeedBalance(store, "alice", currency.Amount{Coins: 100})

	status, body := api.do(http.MethodPost, "/api/v1/transfers", "alice", map[string]any{
		"recipient": "bob",
		"amount":    "10",
	}, nil)
	require.Equal(t, http.StatusCreated, status, "body: %v", body)
	assert.Equal(t, "0.50f€", formatted(t, body, "tax"))
	assert.Equal(t, "89.50f€", formatted(t, body, "from_balance"))

	status, body = api.do(http.MethodPost, "/api/v1/transfers", "alice", map[string]any{
		"recipient":                   "bob",
		"amount_friendcoins":          1000,
		"amount_friendship_fractions": 0,
	}, nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, apperr.CodeInsufficientFunds, body["error"])

	status, body = api.do(http.MethodPost, "/api/v1/transfers", "alice", map[string]any{
		"recipient": "bob",
		"amount":    "ten coins",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, apperr.CodeInvalidFormat, body["error"])

	status, body = api.do(http.MethodPost, "/api/v1/transfers", "alice", map[string]any{"amount": "1"}, nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, apperr.CodeValidation, body["error"])

	status, body = api.do(http.MethodGet, "/api/v1/accounts/me/balance", "bob", nil, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "10.00f€", formatted(t, body, "balance"))

	status, body = api.do(http.MethodGet, "/api/v1/accounts/me/balance", "", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, apperr.CodeUnauthorized, body["error"])
}

func TestAdminRoutesRequireRole(t *testing.T) {
	api := newAPI(t, ledger.NewInMemory(100), nil)

	status, body := api.do(http.MethodPost, "/api/v1/circulation", "alice", map[string]any{"delta": 5, "reason": "seed"}, nil)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "FORBIDDEN", body["error"])

	admin := map[string]string{"X-Account-Roles": "admin"}
	status, body = api.do(http.MethodPost, "/api/v1/circulation", "root", map[string]any{"delta": 5, "reason": "seed"}, admin)
	require.Equal(t, http.StatusOK, status, "body: %v", body)
	assert.EqualValues(t, 5, body["total_coins_in_circulation"])

	status, body = api.do(http.MethodPost, "/api/v1/circulation", "root", map[string]any{"delta": 500, "reason": "too much"}, admin)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, apperr.CodeCirculationLimitExceeded, body["error"])

	status, body = api.do(http.MethodPut, "/api/v1/products/mug", "root", map[string]any{"name": "Mug", "amount": "2.50f€", "stock": 1}, admin)
	require.Equal(t, http.StatusOK, status, "body: %v", body)

	status, body = api.do(http.MethodGet, "/api/v1/circulation", "alice", nil, nil)
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 100, body["circulation_cap"])
}

func TestLoanAndMarketFlow(t *testing.T) {
	store := ledger.NewInMemory(1_000)
	api := newAPI(t, store, nil)
	api.do(http.MethodPost, "/api/v1/accounts", "alice", nil, nil)
	admin := map[string]string{"X-Account-Roles": "admin"}
	status, _ := api.do(http.MethodPut, "/api/v1/products/mug", "root", map[string]any{"name": "Mug", "amount": "2.50f€", "stock": 1}, admin)
	require.Equal(t, http.StatusOK, status)

	status, loan := api.do(http.MethodPost, "/api/v1/loans", "alice", map[string]any{"amount": "5.00f€"}, nil)
	require.Equal(t, http.StatusCreated, status, "body: %v", loan)

	status, body := api.do(http.MethodPost, "/api/v1/loans", "alice", map[string]any{"amount": "1.00f€"}, nil)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, apperr.CodeActiveLoanExists, body["error"])

	status, body = api.do(http.MethodPost, "/api/v1/products/mug/purchase", "alice", map[string]any{"quantity": 1}, nil)
	require.Equal(t, http.StatusCreated, status, "body: %v", body)
	assert.Equal(t, "2.50f€", formatted(t, body, "balance"))

	status, body = api.do(http.MethodPost, "/api/v1/products/mug/purchase", "alice", map[string]any{"quantity": 1}, nil)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, apperr.CodeInsufficientStock, body["error"])

	status, body = api.do(http.MethodPost, "/api/v1/loans/"+loan["id"].(string)+"/payments", "alice", map[string]any{"amount": "2.50f€"}, nil)
	require.Equal(t, http.StatusCreated, status, "body: %v", body)
	assert.Equal(t, "0.00f€", formatted(t, body, "balance"))

	status, body = api.do(http.MethodGet, "/api/v1/loans", "alice", nil, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["loans"], 1)
}

func TestIdempotentTransferReplay(t *testing.T) {
	mr := miniredis.RunT(t)
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { cache.Close() })

	store := ledger.NewInMemory(1_000)
	api := newAPI(t, store, cache)
	key := map[string]string{"Idempotency-Key": "open-alice"}
	status, _ := api.do(http.MethodPost, "/api/v1/accounts", "alice", nil, key)
	require.Equal(t, http.StatusCreated, status)
	status, _ = api.do(http.MethodPost, "/api/v1/accounts", "bob", nil, map[string]string{"Idempotency-Key": "open-bob"})
	require.Equal(t, http.StatusCreated, status)
	ledger.SeedBalance(store, "alice", currency.Amount{Coins: 10})

	transfer := map[string]any{"recipient": "bob", "amount": "1.00f€"}
	replay := map[string]string{"Idempotency-Key": "tx-1"}
	status, first := api.do(http.MethodPost, "/api/v1/transfers", "alice", transfer, replay)
	require.Equal(t, http.StatusCreated, status)
	status, second := api.do(http.MethodPost, "/api/v1/transfers", "alice", transfer, replay)
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, first["transaction_id"], second["transaction_id"])

	bal, err := store.Balance(t.Context(), "bob")
	require.NoError(t, err)
	assert.Equal(t, "1.00f€", bal.String())

	status, _ = api.do(http.MethodPost, "/api/v1/transfers", "alice", transfer, nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestHealthAndMetrics(t *testing.T) {
	api := newAPI(t, ledger.NewInMemory(1_000), nil)

	status, body := api.do(http.MethodGet, "/healthz", "", nil, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, map[string]any{"postgres": "disabled", "redis": "disabled"}, body["status"])

	resp, err := api.app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "http_requests_total")
}

func TestSetupRequiresBackendsOutsideDevelopment(t *testing.T) {
	cfg := testConfig()
	cfg.AppEnv = "production"
	err := Setup(fiber.New(), Deps{Cfg: cfg, Logger: logging.Discard()})
	assert.Error(t, err)
}
