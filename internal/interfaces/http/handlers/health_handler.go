package handlers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/clusterkeys/internal/domain/repository"
	"github.com/turtacn/clusterkeys/pkg/logger"
)

// ReadinessChecker reports whether the key cache has been loaded.
type ReadinessChecker interface {
	Ready() bool
}

// HealthHandler provides health check endpoints.
type HealthHandler struct {
	manager  ReadinessChecker
	checkers map[string]repository.HealthChecker
	timeout  time.Duration
	log      logger.Logger
}

// NewHealthHandler creates a new HealthHandler. checkers are pinged by the
// readiness probe, keyed by dependency name.
func NewHealthHandler(manager ReadinessChecker, checkers map[string]repository.HealthChecker, log logger.Logger) *HealthHandler {
	return &HealthHandler{
		manager:  manager,
		checkers: checkers,
		timeout:  2 * time.Second,
		log:      log.WithComponent("HealthHandler"),
	}
}

// LivenessCheck godoc
// @Summary      Liveness Check
// @Tags         health
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Router       /healthz [get]
func (h *HealthHandler) LivenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "alive",
		"timestamp": time.Now().UTC(),
	})
}

// ReadinessCheck godoc
// @Summary      Readiness Check
// @Description  Ready once a key refresh succeeded and every dependency answers.
// @Tags         health
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      503  {object}  map[string]interface{}
// @Router       /readyz [get]
func (h *HealthHandler) ReadinessCheck(c *gin.Context) {
	checks := h.performChecks(c.Request.Context())
	if h.manager.Ready() {
		checks["key_cache"] = "ok"
	} else {
		checks["key_cache"] = "not refreshed"
	}

	status, httpStatus := "ready", http.StatusOK
	for _, checkStatus := range checks {
		if checkStatus != "ok" {
			status, httpStatus = "not_ready", http.StatusServiceUnavailable
			break
		}
	}

	c.JSON(httpStatus, gin.H{
		"status":    status,
		"timestamp": time.Now().UTC(),
		"checks":    checks,
	})
}

func (h *HealthHandler) performChecks(ctx context.Context) map[string]string {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	var wg sync.WaitGroup
	var mu sync.Mutex
	checks := make(map[string]string, len(h.checkers)+1)

	for name, checker := range h.checkers {
		wg.Add(1)
		go func(name string, checker repository.HealthChecker) {
			defer wg.Done()
			status := "ok"
			if err := checker.Ping(ctx); err != nil {
				h.log.Warn(ctx, "Readiness dependency check failed", logger.String("dependency", name), logger.Err(err))
				status = "error: " + err.Error()
			}
			mu.Lock()
			checks[name] = status
			mu.Unlock()
		}(name, checker)
	}
	wg.Wait()
	return checks
}

//Personal.AI order the ending
