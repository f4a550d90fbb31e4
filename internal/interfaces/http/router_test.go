package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/clusterkeys/internal/application/keys"
	"github.com/turtacn/clusterkeys/internal/config"
	"github.com/turtacn/clusterkeys/internal/domain/models"
	"github.com/turtacn/clusterkeys/internal/domain/repository"
	"github.com/turtacn/clusterkeys/internal/infrastructure/monitoring"
	"github.com/turtacn/clusterkeys/internal/infrastructure/persistence/memory"
	"github.com/turtacn/clusterkeys/internal/interfaces/http/handlers"
	"github.com/turtacn/clusterkeys/internal/interfaces/http/middleware"
	"github.com/turtacn/clusterkeys/pkg/logger"
	"github.com/turtacn/clusterkeys/tests/fakes"
)

const testSecret = "test-admin-secret"

type routerFixture struct {
	repo     *memory.KeyRepository
	clock    *keys.VectorClock
	switches *keys.Switches
	mgr      *keys.Manager
	router   *Router
}

func newRouterFixture(t *testing.T) *routerFixture {
	t.Helper()
	f := &routerFixture{
		repo:     memory.NewKeyRepository(),
		clock:    keys.NewVectorClock(),
		switches: keys.NewSwitches(),
	}
	mgr, err := keys.NewManager(keys.ManagerConfig{
		Purpose:               "HMAC",
		RotationInterval:      time.Hour,
		ValidationWaitTimeout: 200 * time.Millisecond,
	}, f.repo, fakes.NewFakeKeySource(), f.clock, keys.WithPolicy(f.switches))
	require.NoError(t, err)
	t.Cleanup(mgr.StopMonitoring)
	f.mgr = mgr

	log := logger.NewNoopLogger()
	reg := prometheus.NewRegistry()
	keyHandler := handlers.NewKeyHandler(mgr, f.switches, f.clock, log)
	healthHandler := handlers.NewHealthHandler(mgr, map[string]repository.HealthChecker{"store": f.repo}, log)
	f.router = NewRouter(config.ServerConfig{}, config.AdminConfig{JWTSecret: testSecret, Issuer: "clusterkeys"},
		log, keyHandler, healthHandler, monitoring.NewMetrics(reg), reg)
	return f
}

func (f *routerFixture) do(t *testing.T, method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	f.router.Engine().ServeHTTP(w, req)
	return w
}

func adminToken(t *testing.T, role string) string {
	t.Helper()
	claims := middleware.AdminClaims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "clusterkeys",
			Subject:   "operator",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code string `json:"code"`
	} `json:"error"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

func TestRouter_HealthAndReadiness(t *testing.T) {
	f := newRouterFixture(t)

	w := f.do(t, http.MethodGet, "/healthz", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = f.do(t, http.MethodGet, "/readyz", nil, "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	require.NoError(t, f.mgr.StartMonitoring(context.Background()))
	w = f.do(t, http.MethodGet, "/readyz", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouter_KeyLookups(t *testing.T) {
	f := newRouterFixture(t)
	ctx := context.Background()
	require.NoError(t, f.repo.Insert(ctx, models.NewKeyDocument(1, "HMAC", []byte("a"), models.NewLogicalTime(100, 0))))
	require.NoError(t, f.repo.Insert(ctx, models.NewKeyDocument(2, "HMAC", []byte("b"), models.NewLogicalTime(200, 0))))
	f.clock.Advance(models.NewLogicalTime(50, 0))
	require.NoError(t, f.mgr.StartMonitoring(ctx))

	t.Run("signing at explicit time", func(t *testing.T) {
		w := f.do(t, http.MethodGet, "/v1/keys/signing?at=150", nil, "")
		require.Equal(t, http.StatusOK, w.Code)
		var key struct {
			KeyID           int64  `json:"key_id"`
			ExpiresAtString string `json:"expires_at_string"`
		}
		require.NoError(t, json.Unmarshal(decode(t, w).Data, &key))
		assert.Equal(t, int64(2), key.KeyID)
		assert.Equal(t, "Timestamp(200, 0)", key.ExpiresAtString)
		assert.NotContains(t, w.Body.String(), `"key":`)
	})

	t.Run("signing defaults to cluster time", func(t *testing.T) {
		w := f.do(t, http.MethodGet, "/v1/keys/signing", nil, "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, string(decode(t, w).Data), `"key_id":1`)
	})

	t.Run("signing with nothing valid", func(t *testing.T) {
		w := f.do(t, http.MethodGet, "/v1/keys/signing?at=200", nil, "")
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "key_not_found", decode(t, w).Error.Code)
	})

	t.Run("validation", func(t *testing.T) {
		w := f.do(t, http.MethodGet, "/v1/keys/1?at=500", nil, "")
		assert.Equal(t, http.StatusOK, w.Code)

		w = f.do(t, http.MethodGet, "/v1/keys/9?at=1", nil, "")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("bad parameters", func(t *testing.T) {
		w := f.do(t, http.MethodGet, "/v1/keys/abc", nil, "")
		assert.Equal(t, http.StatusBadRequest, w.Code)

		w = f.do(t, http.MethodGet, "/v1/keys/signing?at=-1", nil, "")
		assert.Equal(t, http.StatusBadRequest, w.Code)

		w = f.do(t, http.MethodGet, "/v1/keys/signing?at=1&inc=x", nil, "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("status", func(t *testing.T) {
		w := f.do(t, http.MethodGet, "/v1/keys/status", nil, "")
		require.Equal(t, http.StatusOK, w.Code)
		var st keys.Status
		require.NoError(t, json.Unmarshal(decode(t, w).Data, &st))
		assert.Equal(t, "running", st.State)
		assert.True(t, st.HasSeenKeys)
		assert.Len(t, st.Keys, 2)
	})
}

func TestRouter_ValidationBeforeFirstRefreshTimesOut(t *testing.T) {
	f := newRouterFixture(t)
	w := f.do(t, http.MethodGet, "/v1/keys/1?at=1", nil, "")
	assert.Equal(t, http.StatusGatewayTimeout, w.Code)
	assert.Equal(t, "deadline_exceeded", decode(t, w).Error.Code)
}

func TestRouter_AdminRoutes(t *testing.T) {
	f := newRouterFixture(t)
	token := adminToken(t, middleware.AdminRole)

	t.Run("rejects missing and wrong tokens", func(t *testing.T) {
		assert.Equal(t, http.StatusUnauthorized, f.do(t, http.MethodPost, "/v1/keys/refresh", nil, "").Code)
		assert.Equal(t, http.StatusUnauthorized, f.do(t, http.MethodPost, "/v1/keys/refresh", nil, "garbage").Code)
		assert.Equal(t, http.StatusUnauthorized, f.do(t, http.MethodPost, "/v1/keys/refresh", nil, adminToken(t, "viewer")).Code)
	})

	t.Run("refresh requires a running refresher", func(t *testing.T) {
		w := f.do(t, http.MethodPost, "/v1/keys/refresh", nil, token)
		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, "illegal_state", decode(t, w).Error.Code)
	})

	t.Run("generator toggle creates a key on refresh", func(t *testing.T) {
		f.clock.Advance(models.NewLogicalTime(1000, 0))
		require.NoError(t, f.mgr.StartMonitoring(context.Background()))

		w := f.do(t, http.MethodPut, "/v1/keys/generator", map[string]bool{"enabled": true}, token)
		require.Equal(t, http.StatusOK, w.Code)

		w = f.do(t, http.MethodPost, "/v1/keys/refresh", nil, token)
		require.Equal(t, http.StatusOK, w.Code)

		require.Eventually(t, func() bool {
			docs, err := f.repo.FindAll(context.Background(), "HMAC")
			return err == nil && len(docs) == 1
		}, 2*time.Second, 10*time.Millisecond)
	})

	t.Run("generator body is required", func(t *testing.T) {
		w := f.do(t, http.MethodPut, "/v1/keys/generator", map[string]string{}, token)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("switches", func(t *testing.T) {
		w := f.do(t, http.MethodPut, "/v1/keys/switches/disableKeyGeneration", map[string]bool{"on": true}, token)
		require.Equal(t, http.StatusOK, w.Code)
		assert.True(t, f.switches.IsGenerationSuppressed())

		w = f.do(t, http.MethodPut, "/v1/keys/switches/bogus", map[string]bool{"on": true}, token)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestRouter_MetricsAndNotFound(t *testing.T) {
	f := newRouterFixture(t)
	f.do(t, http.MethodGet, "/healthz", nil, "")

	w := f.do(t, http.MethodGet, "/metrics", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "clusterkeys_http_requests_total")

	w = f.do(t, http.MethodGet, "/nope", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
