// Package http exposes the key manager's admin and status API over gin.
package http

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"

	"github.com/turtacn/clusterkeys/internal/config"
	"github.com/turtacn/clusterkeys/internal/interfaces/http/handlers"
	"github.com/turtacn/clusterkeys/internal/interfaces/http/middleware"
	"github.com/turtacn/clusterkeys/pkg/constants"
	"github.com/turtacn/clusterkeys/pkg/logger"
)

// Router HTTP 路由器
type Router struct {
	engine        *gin.Engine
	config        config.ServerConfig
	admin         config.AdminConfig
	logger        logger.Logger
	keyHandler    *handlers.KeyHandler
	healthHandler *handlers.HealthHandler
	metrics       middleware.RequestMetrics
	gatherer      prometheus.Gatherer

	mu     sync.Mutex
	server *http.Server
}

// NewRouter 创建路由器并注册全部路由
func NewRouter(
	serverCfg config.ServerConfig,
	adminCfg config.AdminConfig,
	log logger.Logger,
	keyHandler *handlers.KeyHandler,
	healthHandler *handlers.HealthHandler,
	metrics middleware.RequestMetrics,
	gatherer prometheus.Gatherer,
) *Router {
	gin.SetMode(gin.ReleaseMode)

	r := &Router{
		engine:        gin.New(),
		config:        serverCfg,
		admin:         adminCfg,
		logger:        log.WithComponent("HTTPRouter"),
		keyHandler:    keyHandler,
		healthHandler: healthHandler,
		metrics:       metrics,
		gatherer:      gatherer,
	}
	r.setupRoutes()
	return r
}

// setupRoutes 设置路由
func (r *Router) setupRoutes() {
	// 全局中间件
	r.engine.Use(handlers.RecoveryMiddleware(r.logger))
	r.engine.Use(handlers.RequestIDMiddleware())
	r.engine.Use(middleware.ObservabilityMiddleware(otel.Tracer("clusterkeys/http"), r.metrics))

	// CORS 配置
	origins := r.config.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.engine.Use(cors.New(cors.Config{
		AllowOrigins:  origins,
		AllowMethods:  []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", handlers.RequestIDHeader},
		ExposeHeaders: []string{handlers.RequestIDHeader},
		MaxAge:        12 * time.Hour,
	}))

	// 健康检查路由（不需要认证）
	r.engine.GET(constants.DefaultHealthCheckPath, r.healthHandler.LivenessCheck)
	r.engine.GET(constants.DefaultReadinessCheckPath, r.healthHandler.ReadinessCheck)

	// Prometheus metrics
	r.engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(r.gatherer, promhttp.HandlerOpts{})))

	// Pprof 性能分析（仅在显式开启时）
	if r.config.EnablePprof {
		pprof.Register(r.engine)
	}

	v1 := r.engine.Group("/v1/keys")
	v1.Use(handlers.LoggingMiddleware(r.logger))
	{
		v1.GET("/signing", r.keyHandler.GetSigningKey)
		v1.GET("/status", r.keyHandler.GetStatus)
		v1.GET("/:id", r.keyHandler.GetValidationKey)
	}

	if r.admin.JWTSecret == "" {
		r.logger.Warn(context.Background(), "admin.jwt_secret is empty; mutating admin routes are disabled")
	} else {
		admin := v1.Group("")
		admin.Use(middleware.RequireAdminJWT([]byte(r.admin.JWTSecret), r.admin.Issuer, r.logger))
		{
			admin.POST("/refresh", r.keyHandler.Refresh)
			admin.PUT("/generator", r.keyHandler.SetGenerator)
			admin.PUT("/switches/:name", r.keyHandler.SetSwitch)
		}
	}

	// 404 处理
	r.engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"error":             "not_found",
			"error_description": "The requested resource was not found",
		})
	})
}

// Serve 在给定 listener 上提供服务，直到 Stop 被调用
func (r *Router) Serve(lis net.Listener) error {
	server := &http.Server{
		Handler:        r.engine,
		ReadTimeout:    r.config.ReadTimeout,
		WriteTimeout:   r.config.WriteTimeout,
		MaxHeaderBytes: 1 << 20, // 1MB
	}
	r.mu.Lock()
	r.server = server
	r.mu.Unlock()

	r.logger.Info(context.Background(), "Starting HTTP server", logger.String("address", lis.Addr().String()))
	if err := server.Serve(lis); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Start 监听配置的地址并提供服务
func (r *Router) Start() error {
	addr := fmt.Sprintf("%s:%d", r.config.Host, r.config.Port)
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	return r.Serve(lis)
}

// Stop 停止 HTTP 服务器
func (r *Router) Stop(ctx context.Context) error {
	r.mu.Lock()
	server := r.server
	r.mu.Unlock()
	if server == nil {
		return nil
	}
	r.logger.Info(ctx, "Stopping HTTP server...")
	return server.Shutdown(ctx)
}

// Engine returns the gin engine, for tests.
func (r *Router) Engine() *gin.Engine {
	return r.engine
}
