package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/clusterkeys/internal/application/dto"
	"github.com/turtacn/clusterkeys/internal/interfaces/http/middleware"
	"github.com/turtacn/clusterkeys/pkg/logger"
)

func writeConfig(t *testing.T, suppressed bool) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := fmt.Sprintf(`store:
  backend: sqlite
  sqlite_path: %s
keys:
  purpose: HMAC
  rotation_interval: 1h
  generation_suppressed: %t
`, filepath.Join(dir, "keys.db"), suppressed)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestKeysCommands(t *testing.T) {
	t.Run("generate then list and resolve the signing key", func(t *testing.T) {
		cfgPath := writeConfig(t, false)

		out, err := run(t, "keys", "generate", "--config", cfgPath)
		require.NoError(t, err)
		assert.Contains(t, out, "generated a new key")

		out, err = run(t, "keys", "list", "--json", "--config", cfgPath)
		require.NoError(t, err)
		var listed []dto.KeyResponse
		require.NoError(t, json.Unmarshal([]byte(out), &listed))
		require.Len(t, listed, 1)
		assert.Equal(t, int64(1), listed[0].KeyID)
		assert.Equal(t, "HMAC", listed[0].Purpose)

		out, err = run(t, "keys", "signing", "--json", "--config", cfgPath)
		require.NoError(t, err)
		var signing []dto.KeyResponse
		require.NoError(t, json.Unmarshal([]byte(out), &signing))
		require.Len(t, signing, 1)
		assert.Equal(t, int64(1), signing[0].KeyID)
	})

	t.Run("signing lookup past every expiry", func(t *testing.T) {
		cfgPath := writeConfig(t, false)
		_, err := run(t, "keys", "generate", "--config", cfgPath)
		require.NoError(t, err)

		_, err = run(t, "keys", "signing", "--at", "4294967295", "--config", cfgPath)
		assert.Error(t, err)
	})

	t.Run("kill switch suppresses generation", func(t *testing.T) {
		cfgPath := writeConfig(t, true)

		out, err := run(t, "keys", "generate", "--config", cfgPath)
		require.NoError(t, err)
		assert.Contains(t, out, "key generation is suppressed")

		out, err = run(t, "keys", "list", "--config", cfgPath)
		require.NoError(t, err)
		assert.Contains(t, out, "KEY ID")
		assert.NotContains(t, out, "HMAC")
	})
}

func TestAdminCommands(t *testing.T) {
	gin.SetMode(gin.TestMode)
	const secret = "cli-secret"

	engine := gin.New()
	var ready atomic.Bool
	engine.GET("/readyz", func(c *gin.Context) {
		if ready.Load() {
			c.JSON(http.StatusOK, gin.H{"status": "ready"})
			return
		}
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready"})
	})
	admin := engine.Group("/v1/keys", middleware.RequireAdminJWT([]byte(secret), "", logger.NewNoopLogger()))
	admin.POST("/refresh", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"refreshed": true})
	})
	admin.PUT("/generator", func(c *gin.Context) {
		var req dto.GeneratorRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.Status(http.StatusBadRequest)
			return
		}
		c.JSON(http.StatusOK, dto.GeneratorResponse{Enabled: *req.Enabled})
	})
	srv := httptest.NewServer(engine)
	defer srv.Close()

	t.Run("serve-check", func(t *testing.T) {
		ready.Store(true)
		out, err := run(t, "admin", "serve-check", "--url", srv.URL)
		require.NoError(t, err)
		assert.Contains(t, out, "ready")

		ready.Store(false)
		_, err = run(t, "admin", "serve-check", "--url", srv.URL)
		assert.Error(t, err)
	})

	t.Run("refresh requires a secret", func(t *testing.T) {
		_, err := run(t, "admin", "refresh", "--url", srv.URL)
		assert.Error(t, err)

		_, err = run(t, "admin", "refresh", "--url", srv.URL, "--jwt-secret", "wrong")
		assert.Error(t, err)

		out, err := run(t, "admin", "refresh", "--url", srv.URL, "--jwt-secret", secret)
		require.NoError(t, err)
		assert.Contains(t, out, `"refreshed": true`)
	})

	t.Run("generator", func(t *testing.T) {
		out, err := run(t, "admin", "generator", "--enabled=false", "--url", srv.URL, "--jwt-secret", secret)
		require.NoError(t, err)
		assert.Contains(t, out, `"enabled": false`)
	})
}
