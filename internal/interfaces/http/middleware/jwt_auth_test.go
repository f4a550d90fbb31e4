package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/clusterkeys/pkg/logger"
)

func TestRequireAdminJWT(t *testing.T) {
	gin.SetMode(gin.TestMode)
	secret := []byte("s3cret")

	router := gin.New()
	router.POST("/admin", RequireAdminJWT(secret, "clusterkeys", logger.NewNoopLogger()), func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString("admin_subject"))
	})

	call := func(header string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest(http.MethodPost, "/admin", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		router.ServeHTTP(w, req)
		return w
	}

	valid, err := NewAdminToken(secret, "ops", "clusterkeys", time.Minute)
	require.NoError(t, err)
	wrongIssuer, err := NewAdminToken(secret, "ops", "someone-else", time.Minute)
	require.NoError(t, err)
	expired, err := NewAdminToken(secret, "ops", "clusterkeys", -time.Minute)
	require.NoError(t, err)
	wrongKey, err := NewAdminToken([]byte("other"), "ops", "clusterkeys", time.Minute)
	require.NoError(t, err)
	noRole, err := jwt.NewWithClaims(jwt.SigningMethodHS256, AdminClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "clusterkeys",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
	}).SignedString(secret)
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"valid token", "Bearer " + valid, http.StatusOK},
		{"missing header", "", http.StatusUnauthorized},
		{"malformed header", "Token " + valid, http.StatusUnauthorized},
		{"wrong issuer", "Bearer " + wrongIssuer, http.StatusUnauthorized},
		{"expired", "Bearer " + expired, http.StatusUnauthorized},
		{"wrong key", "Bearer " + wrongKey, http.StatusUnauthorized},
		{"missing role", "Bearer " + noRole, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := call(tt.header)
			assert.Equal(t, tt.status, w.Code)
			if tt.status == http.StatusOK {
				assert.Equal(t, "ops", w.Body.String())
			} else {
				assert.Contains(t, w.Body.String(), "unauthorized")
			}
		})
	}
}
